package rag

import (
	"context"
	"time"

	"github.com/akolanti/PDFChat/internal/config"
	"github.com/akolanti/PDFChat/internal/domain/commonModels"
	"github.com/akolanti/PDFChat/internal/metrics"
	"github.com/akolanti/PDFChat/internal/rag/vectorDB"
	"github.com/akolanti/PDFChat/pkg/logger_i"
)

func (s *service) executeEmbeddingStep(ctx context.Context, question string) ([]float32, error) {
	start := time.Now()
	defer func() { metrics.CaptureExecutionMetrics("embedding", time.Since(start)) }()

	ctx, cancel := context.WithTimeout(ctx, config.QueryTimeout)
	defer cancel()
	return s.embedder.EmbedOne(ctx, question)
}

func (s *service) executeBatchEmbeddingStep(ctx context.Context, texts []string) ([][]float32, error) {
	start := time.Now()
	defer func() { metrics.CaptureExecutionMetrics("batch_embedding", time.Since(start)) }()

	return s.embedder.Embed(ctx, texts)
}

func (s *service) executeIndexBuildStep(segments []commonModels.Segment, vectors [][]float32) (*vectorDB.FlatIndex, error) {
	start := time.Now()
	defer func() { metrics.CaptureExecutionMetrics("index_build", time.Since(start)) }()

	return vectorDB.Build(segments, vectors)
}

// executeCacheCheckStep treats every cache failure as a miss.
func (s *service) executeCacheCheckStep(ctx context.Context, log *logger_i.Logger, scope vectorDB.CacheScope, emb []float32) (string, bool) {
	if s.cache == nil {
		return "", false
	}
	start := time.Now()
	defer func() { metrics.CaptureExecutionMetrics("cache_lookup", time.Since(start)) }()

	ans, found, err := s.cache.Lookup(ctx, scope, emb)
	if err != nil {
		log.Warn("Cache lookup failed", "error", err)
		return "", false
	}
	return ans, found
}

func (s *service) executeCacheSaveStep(ctx context.Context, log *logger_i.Logger, scope vectorDB.CacheScope, emb []float32, answer string) {
	if s.cache == nil {
		return
	}
	start := time.Now()
	defer func() { metrics.CaptureExecutionMetrics("cache_save", time.Since(start)) }()

	if err := s.cache.Store(ctx, scope, emb, answer); err != nil {
		log.Warn("Failed to save to cache", "error", err)
	}
}

func (s *service) invalidateCache(ctx context.Context, sessionId string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, sessionId); err != nil {
		s.logger.WithContext(ctx).Warn("Cache invalidation failed", "sessionId", sessionId, "error", err)
	}
}

func (s *service) executeVectorSearchStep(index *vectorDB.FlatIndex, emb []float32) ([]commonModels.Segment, error) {
	start := time.Now()
	defer func() { metrics.CaptureExecutionMetrics("vector_search", time.Since(start)) }()

	return NewRetriever(s.embedder, index).SearchVector(emb, s.topK)
}

func (s *service) executeLLMStep(ctx context.Context, question string, sources []commonModels.Segment, history []commonModels.Turn) (string, error) {
	start := time.Now()
	defer func() { metrics.CaptureExecutionMetrics("llm_generation", time.Since(start)) }()

	ctx, cancel := context.WithTimeout(ctx, config.QueryTimeout)
	defer cancel()
	return s.generator.Generate(ctx, question, sources, history)
}
