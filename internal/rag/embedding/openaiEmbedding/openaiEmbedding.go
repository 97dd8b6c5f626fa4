package openaiEmbedding

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/akolanti/PDFChat/internal/config"
	"github.com/akolanti/PDFChat/internal/customHttpClient"
	"github.com/akolanti/PDFChat/internal/rag/embedding"
	"github.com/akolanti/PDFChat/pkg/logger_i"
	"github.com/akolanti/PDFChat/pkg/retry"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

var logger *logger_i.Logger
var once sync.Once
var embeddingClient *client
var initErr error

type client struct {
	api       openai.Client
	model     string
	dimension int
}

// GetOpenAIEmbeddingClient builds the client once per process.
func GetOpenAIEmbeddingClient(ctx context.Context, settings *config.Settings) (embedding.Embedder, error) {
	once.Do(func() {
		logger = logger_i.NewLogger("openai_embedding")
		if settings.Model.OpenAIAPIKey == "" {
			initErr = errors.New("OPENAI_API_KEY is not set")
			return
		}
		embeddingClient = &client{
			api: openai.NewClient(
				option.WithAPIKey(settings.Model.OpenAIAPIKey),
				option.WithHTTPClient(customHttpClient.Get()),
				option.WithMaxRetries(0),
			),
			model:     settings.Embedding.OpenAIModel,
			dimension: settings.Embedding.Dimension,
		}
		logger.Info("OpenAI Embedding client created", "model", embeddingClient.model)
	})

	if initErr != nil {
		return nil, initErr
	}
	return embeddingClient, nil
}

func (c *client) Name() string {
	return "openai:" + c.model
}

func (c *client) Dimension() int {
	return c.dimension
}

func (c *client) EmbedOne(ctx context.Context, text string) ([]float32, error) {
	vecs, err := c.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (c *client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	log := logger.WithContext(ctx)

	results := make([][]float32, 0, len(texts))
	for _, window := range embedding.Batches(len(texts), config.EmbeddingRequestBatchSize) {
		part := texts[window[0]:window[1]]
		vecs, err := retry.Do(ctx, retry.Options{
			MaxAttempts: config.MaxModelRetries,
			InitialWait: config.ModelRetryWait,
			MaxWait:     config.ModelRetryMaxWait,
			Jitter:      true,
			Retryable:   isRateLimited,
		}, func(ctx context.Context) ([][]float32, error) {
			return c.doCall(ctx, part)
		})
		if err != nil {
			log.Error("Error getting Embeddings from OpenAI", "error", err, "batchStart", window[0])
			return nil, err
		}
		results = append(results, vecs...)
	}
	return results, nil
}

func (c *client) doCall(ctx context.Context, texts []string) ([][]float32, error) {
	resp, err := c.api.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Input:      openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts},
		Model:      openai.EmbeddingModel(c.model),
		Dimensions: openai.Int(int64(c.dimension)),
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("openai returned %d embeddings for %d texts", len(resp.Data), len(texts))
	}

	out := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || int(d.Index) >= len(out) {
			return nil, fmt.Errorf("openai returned embedding index %d out of range", d.Index)
		}
		out[d.Index] = toFloat32(d.Embedding)
	}
	return out, nil
}

func isRateLimited(err error) bool {
	var apiErr *openai.Error
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusTooManyRequests
}

func toFloat32(v []float64) []float32 {
	out := make([]float32, len(v))
	for i, f := range v {
		out[i] = float32(f)
	}
	return out
}
