package googleEmbedding

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/akolanti/PDFChat/internal/config"
	"github.com/akolanti/PDFChat/pkg/logger_i"
	"google.golang.org/genai"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func getContent(chunks []string) []*genai.Content {
	contentsToSend := make([]*genai.Content, 0, len(chunks))

	for _, chunk := range chunks {
		contentsToSend = append(contentsToSend, &genai.Content{
			Parts: []*genai.Part{{Text: chunk}},
		})
	}
	return contentsToSend
}

// doRetry reports rate limiting, the only failure worth another attempt.
func doRetry(err error, log *logger_i.Logger) bool {
	if s, ok := status.FromError(err); ok && s.Code() == codes.ResourceExhausted {
		log.Warn("Rate limit hit! ", "error", err)
		return true
	}
	var apiErr genai.APIError
	if errors.As(err, &apiErr) && apiErr.Code == http.StatusTooManyRequests {
		log.Warn("Rate limit hit! ", "error", err)
		return true
	}
	return false
}

func (c *client) getInlinedBatchRequests(chunks []string) *genai.EmbedContentBatch {
	conf := genai.EmbedContentConfig{OutputDimensionality: &c.dimension, TaskType: taskDocument}
	return &genai.EmbedContentBatch{
		Config:   &conf,
		Contents: getContent(chunks),
	}
}

func (c *client) pollForAnswer(ctx context.Context, batchJobName string, log *logger_i.Logger) (*genai.BatchJob, error) {
	ticker := time.NewTicker(config.BatchPollInterval)
	defer ticker.Stop()
	log.Debug("pollForAnswer", "job", batchJobName)
	for {
		select {
		case <-ctx.Done():
			log.Error("pollForAnswer cancelled", "error:", ctx.Err())
			return nil, ctx.Err()

		case <-ticker.C:
			bJob, err := c.genAi.Batches.Get(ctx, batchJobName, nil)
			if err != nil {
				log.Warn("Error getting batch job:", "error", err)
				continue
			}
			done, err := batchOutcome(bJob)
			if done {
				return bJob, err
			}
		}
	}
}

// batchOutcome reports whether the job reached a final state and, if so,
// whether it failed. https://pkg.go.dev/google.golang.org/genai#JobState
func batchOutcome(job *genai.BatchJob) (bool, error) {
	switch job.State {
	case "JOB_STATE_SUCCEEDED":
		return true, nil
	case "JOB_STATE_FAILED":
		msg := "unknown error"
		if job.Error != nil {
			msg = job.Error.Message
		}
		return true, fmt.Errorf("batch job failed: %s", msg)
	case "JOB_STATE_CANCELLED", "JOB_STATE_EXPIRED", "JOB_STATE_PARTIALLY_SUCCEEDED":
		return true, fmt.Errorf("batch job ended prematurely: %s", job.State)
	}
	return false, nil
}

// downloadAnswerFromClient rejects partial results; the index needs one
// vector per chunk.
func downloadAnswerFromClient(answer *genai.BatchJob, expected int, log *logger_i.Logger) ([][]float32, error) {
	if answer.Dest == nil {
		return nil, errors.New("batch job has no destination")
	}
	res := answer.Dest.InlinedEmbedContentResponses
	if len(res) != expected {
		return nil, fmt.Errorf("batch job returned %d embeddings for %d texts", len(res), expected)
	}

	results := make([][]float32, 0, len(res))
	for i, r := range res {
		if r == nil || r.Error != nil || r.Response == nil || r.Response.Embedding == nil {
			log.Error("Error with a particular result in batch embedding", "index", i)
			return nil, fmt.Errorf("batch embedding %d missing", i)
		}
		results = append(results, r.Response.Embedding.Values)
	}
	return results, nil
}
