// Package bootstrap turns Settings into the running service graph shared by
// the HTTP API and the MCP server.
package bootstrap

import (
	"context"
	"fmt"
	"strings"

	"github.com/akolanti/PDFChat/internal/config"
	"github.com/akolanti/PDFChat/internal/data/store"
	"github.com/akolanti/PDFChat/internal/domain/jobModel"
	"github.com/akolanti/PDFChat/internal/events"
	"github.com/akolanti/PDFChat/internal/job"
	"github.com/akolanti/PDFChat/internal/rag"
	"github.com/akolanti/PDFChat/internal/rag/embedding"
	"github.com/akolanti/PDFChat/internal/rag/embedding/googleEmbedding"
	"github.com/akolanti/PDFChat/internal/rag/embedding/hashEmbedding"
	"github.com/akolanti/PDFChat/internal/rag/embedding/openaiEmbedding"
	"github.com/akolanti/PDFChat/internal/rag/llm"
	"github.com/akolanti/PDFChat/internal/rag/llm/gemini"
	"github.com/akolanti/PDFChat/internal/rag/llm/openaiLLM"
	"github.com/akolanti/PDFChat/internal/rag/vectorDB"
	"github.com/akolanti/PDFChat/internal/rag/vectorDB/qdrantDB"
	"github.com/akolanti/PDFChat/internal/session"
	"github.com/akolanti/PDFChat/pkg/logger_i"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

// Build wires stores, model clients and the engine. Every external
// dependency is optional: missing ones degrade the service rather than
// stopping it. Background goroutines stop when ctx is cancelled.
func Build(ctx context.Context, settings *config.Settings) (*job.Service, error) {
	log := logger_i.NewLogger("bootstrap")
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))

	embedder, diag, err := embedding.Select(ctx, embeddingLoaders(settings)...)
	if err != nil {
		log.Error("Running without embeddings, uploads and questions will be refused", "error", err)
	}

	provider := llmProvider(ctx, settings, log)

	var cache vectorDB.AnswerCache
	if embedder != nil {
		cache = answerCache(ctx, settings, embedder.Dimension())
	}

	ragService, err := rag.NewService(embedder, provider, cache, rag.OptionsFromSettings(settings))
	if err != nil {
		return nil, fmt.Errorf("build engine: %w", err)
	}

	svc := job.InitJobService(job.ServiceConfig{
		JobChannel:        make(chan jobModel.Job, config.BufferLimit),
		DispatcherChannel: make(chan bool, 1),
		JobStore:          jobStore(ctx, settings, log),
		MessageStore:      messageStore(ctx, settings, log),
		Sessions:          session.NewRegistry(settings.SessionIdleTTL),
		Rag:               ragService,
		Events:            publisher(ctx, settings, log),
		Embedding:         diag,
		HistoryLimit:      settings.History.LoadLimit,
	})
	svc.Sessions.OnExpire = svc.TeardownSession
	svc.Sessions.StartSweeper(ctx, config.SessionSweepInterval)

	log.Info("Services ready",
		"embedding", diag.Active,
		"generation", provider != nil,
		"cache", cache != nil,
		"history", settings.History.Backend)
	return svc, nil
}

// embeddingLoaders lists the configured provider first, then the fallback.
func embeddingLoaders(settings *config.Settings) []embedding.Loader {
	var loaders []embedding.Loader
	seen := make(map[string]bool)
	for _, name := range []string{settings.Embedding.Provider, settings.Embedding.Fallback} {
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		if l, ok := loaderFor(name, settings); ok {
			loaders = append(loaders, l)
		}
	}
	return loaders
}

func loaderFor(name string, settings *config.Settings) (embedding.Loader, bool) {
	switch name {
	case "google":
		return embedding.Loader{Name: name, Load: func(ctx context.Context) (embedding.Embedder, error) {
			return googleEmbedding.GetGoogleEmbeddingClient(ctx, settings)
		}}, true
	case "openai":
		return embedding.Loader{Name: name, Load: func(ctx context.Context) (embedding.Embedder, error) {
			return openaiEmbedding.GetOpenAIEmbeddingClient(ctx, settings)
		}}, true
	case "hash":
		return embedding.Loader{Name: name, Load: func(ctx context.Context) (embedding.Embedder, error) {
			return hashEmbedding.New(settings.Embedding.Dimension)
		}}, true
	default:
		return embedding.Loader{}, false
	}
}

// llmProvider prefers Gemini and falls back to OpenAI. nil means answers are
// replaced by the unavailable message.
func llmProvider(ctx context.Context, settings *config.Settings, log *logger_i.Logger) llm.Provider {
	p, err := gemini.GetGeminiClient(ctx, settings)
	if err == nil {
		return p
	}
	log.Warn("Gemini unavailable", "error", err)

	p, err = openaiLLM.GetOpenAIClient(ctx, settings)
	if err == nil {
		return p
	}
	log.Warn("OpenAI unavailable", "error", err)
	return nil
}

func answerCache(ctx context.Context, settings *config.Settings, dimension int) vectorDB.AnswerCache {
	holder := qdrantDB.GetQdrantClient(ctx, settings, dimension)
	if holder == nil {
		return nil
	}
	return holder
}

func jobStore(ctx context.Context, settings *config.Settings, log *logger_i.Logger) jobModel.JobStore {
	if s := store.GetRedisJobStore(ctx, settings); s != nil {
		return s
	}
	log.Warn("Redis job store offline, using in-memory store")
	return store.InitInMemoryJobStore()
}

func messageStore(ctx context.Context, settings *config.Settings, log *logger_i.Logger) jobModel.MessageStore {
	switch settings.History.Backend {
	case "redis":
		if s := store.GetRedisMessageStore(ctx, settings); s != nil {
			return s
		}
		if !config.FALLBACK_REDIS_TO_INTERNALSTORE {
			break
		}
		log.Warn("Redis message store offline, using in-memory store")
	case "bolt":
		s, err := store.NewBoltMessageStore(settings.History.BoltPath)
		if err == nil {
			s.CloseOnDone(ctx)
			return s
		}
		log.Error("Could not open bolt history, using in-memory store", "path", settings.History.BoltPath, "error", err)
	}
	return store.InitMessageStore()
}

func publisher(ctx context.Context, settings *config.Settings, log *logger_i.Logger) events.Publisher {
	if settings.Nats.URL == "" {
		return events.Noop{}
	}
	p, err := events.Connect(ctx, settings.Nats.URL)
	if err != nil {
		log.Warn("NATS unavailable, events disabled", "url", settings.Nats.URL, "error", err)
		return events.Noop{}
	}
	return p
}
