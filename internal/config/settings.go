package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Settings is the runtime configuration. It is read once at startup and
// handed to constructors; nothing reads the environment after Load returns.
type Settings struct {
	Production bool   `yaml:"production"`
	LogLevel   string `yaml:"log_level"`
	ListenAddr string `yaml:"listen_addr"`

	Model     ModelSettings     `yaml:"model"`
	Embedding EmbeddingSettings `yaml:"embedding"`
	Chunking  ChunkSettings     `yaml:"chunking"`
	Retrieval RetrievalSettings `yaml:"retrieval"`
	History   HistorySettings   `yaml:"history"`

	Redis  RedisSettings  `yaml:"redis"`
	Qdrant QdrantSettings `yaml:"qdrant"`
	Nats   NatsSettings   `yaml:"nats"`
	Auth   AuthSettings   `yaml:"auth"`

	SessionIdleTTL time.Duration `yaml:"session_idle_ttl"`
}

type ModelSettings struct {
	GoogleAPIKey string  `yaml:"google_api_key"`
	OpenAIAPIKey string  `yaml:"openai_api_key"`
	Name         string  `yaml:"name"`
	OpenAIName   string  `yaml:"openai_name"`
	Temperature  float32 `yaml:"temperature"`
	MaxTokens    int32   `yaml:"max_tokens"`
}

type EmbeddingSettings struct {
	// Provider and Fallback name one of "google", "openai" or "hash".
	Provider    string `yaml:"provider"`
	Fallback    string `yaml:"fallback"`
	GoogleModel string `yaml:"google_model"`
	OpenAIModel string `yaml:"openai_model"`
	Dimension   int    `yaml:"dimension"`
}

type ChunkSettings struct {
	Size    int `yaml:"size"`
	Overlap int `yaml:"overlap"`
}

type RetrievalSettings struct {
	TopK               int `yaml:"top_k"`
	MaxContextSegments int `yaml:"max_context_segments"`
}

type HistorySettings struct {
	// Backend is "redis", "bolt" or "memory".
	Backend   string `yaml:"backend"`
	BoltPath  string `yaml:"bolt_path"`
	MaxTurns  int    `yaml:"max_turns"`
	MaxChars  int    `yaml:"max_chars"`
	LoadLimit int    `yaml:"load_limit"`
}

type RedisSettings struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
}

type QdrantSettings struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type NatsSettings struct {
	URL string `yaml:"url"`
}

type AuthSettings struct {
	Token  string `yaml:"token"`
	Bypass bool   `yaml:"bypass"`
}

func Default() *Settings {
	return &Settings{
		LogLevel:   "debug",
		ListenAddr: ServerListenAddr,
		Model: ModelSettings{
			Name:        GeminiModelName,
			OpenAIName:  OpenAIChatModel,
			Temperature: ModelTemperature,
			MaxTokens:   ModelMaxTokens,
		},
		Embedding: EmbeddingSettings{
			Provider:    "google",
			Fallback:    "hash",
			GoogleModel: GoogleEmbeddingModel,
			OpenAIModel: OpenAIEmbeddingModel,
			Dimension:   EmbeddingOutputDimensionality,
		},
		Chunking: ChunkSettings{Size: DefaultChunkSize, Overlap: DefaultChunkOverlap},
		Retrieval: RetrievalSettings{
			TopK:               DefaultTopK,
			MaxContextSegments: DefaultMaxContextSegments,
		},
		History: HistorySettings{
			Backend:   "redis",
			BoltPath:  DefaultBoltPath,
			MaxTurns:  DefaultMaxHistoryTurns,
			MaxChars:  DefaultMaxHistoryChars,
			LoadLimit: 50,
		},
		Redis:          RedisSettings{Addr: RedisAddr},
		Qdrant:         QdrantSettings{Port: QdrantGrpcPort},
		SessionIdleTTL: SessionIdleTTL,
	}
}

// Load layers defaults, the optional yaml file at path, a .env file in the
// working directory and finally the process environment.
func Load(path string) (*Settings, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse %s: %w", path, err)
			}
		case errors.Is(err, os.ErrNotExist):
		default:
			return nil, err
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (s *Settings) Validate() error {
	if s.Chunking.Size <= 0 {
		return fmt.Errorf("chunk size must be positive, got %d", s.Chunking.Size)
	}
	if s.Chunking.Overlap < 0 || s.Chunking.Overlap >= s.Chunking.Size {
		return fmt.Errorf("chunk overlap must be in [0, %d), got %d", s.Chunking.Size, s.Chunking.Overlap)
	}
	if s.Model.Temperature < 0 || s.Model.Temperature > 2 {
		return fmt.Errorf("temperature must be in [0, 2], got %v", s.Model.Temperature)
	}
	if s.Model.MaxTokens <= 0 {
		return fmt.Errorf("max tokens must be positive, got %d", s.Model.MaxTokens)
	}
	if s.Embedding.Dimension <= 0 {
		return fmt.Errorf("embedding dimension must be positive, got %d", s.Embedding.Dimension)
	}
	if s.Retrieval.TopK <= 0 || s.Retrieval.MaxContextSegments <= 0 {
		return errors.New("retrieval limits must be positive")
	}
	switch s.History.Backend {
	case "redis", "bolt", "memory":
	default:
		return fmt.Errorf("unknown history backend %q", s.History.Backend)
	}
	return nil
}

func (s *Settings) IsAuthBypassed() bool {
	return s.Auth.Bypass || s.Auth.Token == ""
}

func applyEnv(cfg *Settings) error {
	envString(&cfg.ListenAddr, "LISTEN_ADDR")
	envString(&cfg.LogLevel, "LOG_LEVEL")
	if v := os.Getenv("APP_ENV"); v != "" {
		cfg.Production = strings.EqualFold(v, "production") || strings.EqualFold(v, "prod")
	}

	envString(&cfg.Model.GoogleAPIKey, "GEMINI_API_KEY")
	envString(&cfg.Model.GoogleAPIKey, "GOOGLE_API_KEY")
	envString(&cfg.Model.OpenAIAPIKey, "OPENAI_API_KEY")
	envString(&cfg.Model.Name, "MODEL_NAME")
	envString(&cfg.Model.OpenAIName, "OPENAI_MODEL_NAME")
	envString(&cfg.Embedding.Provider, "EMBEDDING_PROVIDER")
	envString(&cfg.Embedding.Fallback, "EMBEDDING_FALLBACK")
	envString(&cfg.Embedding.GoogleModel, "EMBEDDING_MODEL")
	envString(&cfg.Embedding.OpenAIModel, "OPENAI_EMBEDDING_MODEL")
	envString(&cfg.History.Backend, "HISTORY_BACKEND")
	envString(&cfg.History.BoltPath, "BOLT_PATH")
	envString(&cfg.Redis.Addr, "REDIS_ADDR")
	envString(&cfg.Redis.Password, "REDIS_PASSWORD")
	envString(&cfg.Qdrant.Host, "QDRANT_HOST")
	envString(&cfg.Nats.URL, "NATS_URL")
	envString(&cfg.Auth.Token, "AUTH_TOKEN")

	ints := []struct {
		dst *int
		key string
	}{
		{&cfg.Embedding.Dimension, "EMBEDDING_DIMENSION"},
		{&cfg.Chunking.Size, "CHUNK_SIZE"},
		{&cfg.Chunking.Overlap, "CHUNK_OVERLAP"},
		{&cfg.Retrieval.TopK, "TOP_K"},
		{&cfg.Retrieval.MaxContextSegments, "MAX_CONTEXT_SEGMENTS"},
		{&cfg.History.MaxTurns, "MAX_HISTORY_TURNS"},
		{&cfg.History.MaxChars, "MAX_HISTORY_CHARS"},
		{&cfg.Qdrant.Port, "QDRANT_PORT"},
	}
	for _, i := range ints {
		if err := envInt(i.dst, i.key); err != nil {
			return err
		}
	}

	if v := os.Getenv("MAX_TOKENS"); v != "" {
		n, err := strconv.ParseInt(v, 10, 32)
		if err != nil {
			return fmt.Errorf("MAX_TOKENS: %w", err)
		}
		cfg.Model.MaxTokens = int32(n)
	}
	if v := os.Getenv("LLM_TEMPERATURE"); v != "" {
		f, err := strconv.ParseFloat(v, 32)
		if err != nil {
			return fmt.Errorf("LLM_TEMPERATURE: %w", err)
		}
		cfg.Model.Temperature = float32(f)
	}
	if v := os.Getenv("NO_AUTH_BYPASS"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("NO_AUTH_BYPASS: %w", err)
		}
		cfg.Auth.Bypass = b
	}
	if v := os.Getenv("SESSION_IDLE_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("SESSION_IDLE_TTL: %w", err)
		}
		cfg.SessionIdleTTL = d
	}
	return nil
}

func envString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func envInt(dst *int, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = n
	return nil
}
