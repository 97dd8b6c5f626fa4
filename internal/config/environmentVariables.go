package config

import (
	"log/slog"
	"time"
)

const (
	LOG_LEVEL_PROD                  = slog.LevelInfo
	FALLBACK_REDIS_TO_INTERNALSTORE = true //if redis init fails, it falls back to an internals in-memory store
	TRACE_ID_KEY                    = "traceId"
	SESSION_ID_KEY                  = "sessionId"
	RATE_LIMIT_PER_SECOND           = 2
	BURST_RATE_LIMIT_PER_SECOND     = 5
	LimiterPruneInterval            = 10 * time.Minute
	CacheSimilarityCutoff           = 0.97

	RequestsPerNewWorkerCount int64 = 10
	MaxWorkerCount            int64 = 10
	MinWorkerCount            int64 = 1
	IdleWorkerTimeout               = 1 * time.Minute

	//a job holds its worker for the whole embed/generate round trip
	JobTimeout    = 120 * time.Second
	QueryTimeout  = 60 * time.Second
	IngestTimeout = 10 * time.Minute

	//serverTimeouts
	ReadTimeout            = 30 * time.Second
	WriteTimeout           = 30 * time.Second
	IdleTimeout            = 120 * time.Second
	ShutdownContextTimeout = 10 * time.Second

	//server listening port
	ServerListenAddr = ":3000"

	//job requests buffer limit
	BufferLimit = 100

	//uploads
	MaxUploadSize      = 32 << 20 //32mb
	UploadFormField    = "files"
	TemporaryDataDir   = "temporary_data"
	PageExtractTimeout = 10 * time.Second

	//sessions
	SessionIdleTTL       = 2 * time.Hour
	SessionSweepInterval = 5 * time.Minute

	//vectorDB - semantic answer cache
	QdrantConnectionTimeout = 30 * time.Second
	QdrantGrpcPort          = 6334
	QdrantUseTLS            = false //set for https
	QdrantPoolSize          = 1     //2-5 is preferred for prod according to documentation
	SemanticCacheCollection = "pdfchat-semantic-cache"

	//llm
	GeminiModelName          = "gemini-2.0-flash"
	OpenAIChatModel          = "gpt-4o-mini"
	ModelTemperature float32 = 0.7
	ModelMaxTokens     int32 = 2048
	ModelContext             = "You are a helpful AI assistant that answers questions based on the provided context from uploaded PDF documents. " +
		"Answer using only the provided context. If the answer is not in the context, say so politely. Be concise but informative."

	//embeddings
	GoogleEmbeddingModel          = "gemini-embedding-001"
	OpenAIEmbeddingModel          = "text-embedding-3-small"
	EmbeddingOutputDimensionality = 768
	EmbeddingRequestBatchSize     = 100
	AsyncEmbeddingThreshold       = 5000 //above this many chunks we go through the batch job api
	BatchPollInterval             = 30 * time.Second
	EmbeddingCheckTimeout         = 15 * time.Second
	MaxModelRetries               = 3
	ModelRetryWait                = 2 * time.Second
	ModelRetryMaxWait             = 10 * time.Second

	//chunking
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 200

	//retrieval
	DefaultTopK               = 5
	DefaultMaxContextSegments = 3
	DefaultMaxHistoryTurns    = 10
	DefaultMaxHistoryChars    = 6000

	MaxIdleConns        = 50
	MaxIdleConnsPerHost = 25
	IdleConnTimeout     = 60 * time.Second
	HttpClientTimeout   = 90 * time.Second

	//redis
	redisHost = "127.0.0.1"
	redisPort = "6379"
	RedisAddr = redisHost + ":" + redisPort

	//redis has 16 DB we can use
	RedisJobStore     = 0
	RedisMessageStore = 1

	//redis timeouts
	RedisJobStoreTTL     = 24 * time.Hour
	RedisMessageStoreTTL = 24 * time.Hour
	RedisPingTimeout     = 3 * time.Second
	RedisIOTimeout       = 30 * time.Second

	//bolt
	DefaultBoltPath = "pdfchat_history.db"
	BoltOpenTimeout = 5 * time.Second

	//nats
	NatsConnectTimeout   = 5 * time.Second
	NatsSubjectIndexed   = "pdfchat.documents.indexed"
	NatsSubjectAnswered  = "pdfchat.chat.answered"
	NatsSubjectCleared   = "pdfchat.session.cleared"
	NatsSubjectRejected  = "pdfchat.documents.rejected"
)
