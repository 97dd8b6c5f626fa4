package googleEmbedding

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/akolanti/PDFChat/internal/config"
	"github.com/akolanti/PDFChat/internal/customHttpClient"
	"github.com/akolanti/PDFChat/internal/rag/embedding"
	"github.com/akolanti/PDFChat/pkg/logger_i"
	"github.com/akolanti/PDFChat/pkg/retry"
	"google.golang.org/genai"
)

const (
	taskDocument = "RETRIEVAL_DOCUMENT"
	taskQuery    = "RETRIEVAL_QUERY"
)

var errClosed = errors.New("google embedding client closed")

var logger *logger_i.Logger
var once sync.Once
var embeddingClient *client
var initErr error

type client struct {
	genAi     *genai.Client
	model     string
	dimension int32
	closed    atomic.Bool
}

func newGoogleEmbedder(ctx context.Context, settings *config.Settings) (*client, error) {
	if settings.Model.GoogleAPIKey == "" {
		return nil, errors.New("GOOGLE_API_KEY is not set")
	}
	c, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:     settings.Model.GoogleAPIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: customHttpClient.Get(),
	})
	if err != nil {
		logger.Error("Error creating Google Embedding client:", "error", err)
		return nil, err
	}

	ec := &client{
		genAi:     c,
		model:     settings.Embedding.GoogleModel,
		dimension: int32(settings.Embedding.Dimension),
	}
	logger.Debug("Google Embedding model name: " + ec.model)
	logger.Info("Google Embedding client created")
	go closeClient(ctx, ec)
	return ec, nil
}

func closeClient(ctx context.Context, embeddingClient *client) {
	<-ctx.Done()
	logger.Info("Closing Google Embedding client")
	embeddingClient.closed.Store(true)
}

// GetGoogleEmbeddingClient builds the client once per process.
func GetGoogleEmbeddingClient(ctx context.Context, settings *config.Settings) (embedding.Embedder, error) {
	once.Do(func() {
		logger = logger_i.NewLogger("google_embedding")
		embeddingClient, initErr = newGoogleEmbedder(ctx, settings)
	})

	//if init still fails
	if initErr != nil {
		return nil, initErr
	}
	return embeddingClient, nil
}

func (c *client) Name() string {
	return "google:" + c.model
}

func (c *client) Dimension() int {
	return int(c.dimension)
}

func (c *client) EmbedOne(ctx context.Context, query string) ([]float32, error) {
	res, err := c.callWithRetry(ctx, genai.Text(query), taskQuery)
	if err != nil {
		return nil, err
	}
	if len(res.Embeddings) != 1 || res.Embeddings[0] == nil {
		return nil, fmt.Errorf("expected 1 embedding, got %d", len(res.Embeddings))
	}
	return res.Embeddings[0].Values, nil
}

// Embed sends small inputs as synchronous sub-batches and very large ones
// through the batch job api.
func (c *client) Embed(ctx context.Context, chunks []string) ([][]float32, error) {
	log := logger.WithContext(ctx)
	if len(chunks) == 0 {
		return [][]float32{}, nil
	}
	if len(chunks) > config.AsyncEmbeddingThreshold {
		return c.batchJobEmbedding(ctx, chunks)
	}

	results := make([][]float32, 0, len(chunks))
	for _, window := range embedding.Batches(len(chunks), config.EmbeddingRequestBatchSize) {
		part := chunks[window[0]:window[1]]
		res, err := c.callWithRetry(ctx, getContent(part), taskDocument)
		if err != nil {
			log.Error("Error getting Embeddings from Google", "error", err, "batchStart", window[0])
			return nil, err
		}
		if len(res.Embeddings) != len(part) {
			return nil, fmt.Errorf("google returned %d embeddings for %d texts", len(res.Embeddings), len(part))
		}
		for _, r := range res.Embeddings {
			results = append(results, r.Values)
		}
	}
	return results, nil
}

func (c *client) callWithRetry(ctx context.Context, content []*genai.Content, task string) (*genai.EmbedContentResponse, error) {
	log := logger.WithContext(ctx)
	opts := retry.Options{
		MaxAttempts: config.MaxModelRetries,
		InitialWait: config.ModelRetryWait,
		MaxWait:     config.ModelRetryMaxWait,
		Jitter:      true,
		Retryable: func(err error) bool {
			return doRetry(err, log)
		},
	}
	return retry.Do(ctx, opts, func(ctx context.Context) (*genai.EmbedContentResponse, error) {
		return c.doCall(ctx, content, task)
	})
}

func (c *client) doCall(ctx context.Context, content []*genai.Content, task string) (*genai.EmbedContentResponse, error) {
	if c.closed.Load() {
		return nil, errClosed
	}
	return c.genAi.Models.EmbedContent(ctx, c.model, content, &genai.EmbedContentConfig{
		OutputDimensionality: &c.dimension,
		TaskType:             task,
	})
}

func (c *client) batchJobEmbedding(ctx context.Context, chunks []string) ([][]float32, error) {
	if c.closed.Load() {
		return nil, errClosed
	}
	displayName := fmt.Sprintf("pdfchat-%d-chunks", len(chunks))
	log := logger.WithContext(ctx).With("batchJob", displayName, "big file", len(chunks))

	source := genai.EmbeddingsBatchJobSource{InlinedRequests: c.getInlinedBatchRequests(chunks)}
	conf := genai.CreateEmbeddingsBatchJobConfig{DisplayName: displayName}
	job, err := c.genAi.Batches.CreateEmbeddings(ctx, &c.model, &source, &conf)
	if err != nil {
		log.Error("Error getting batch Embeddings from Google", "error", err.Error())
		return nil, err
	}

	answer, err := c.pollForAnswer(ctx, job.Name, log)
	if err != nil {
		return nil, err
	}
	return downloadAnswerFromClient(answer, len(chunks), log)
}
