package rag_test

import (
	"context"
	"sync/atomic"

	"github.com/akolanti/PDFChat/internal/rag/llm"
	"github.com/akolanti/PDFChat/internal/rag/vectorDB"
)

// MockEmbedder implements embedding.Embedder
type MockEmbedder struct {
	OnEmbed    func(ctx context.Context, texts []string) ([][]float32, error)
	OnEmbedOne func(ctx context.Context, text string) ([]float32, error)

	EmbedCalls    atomic.Int32
	EmbedOneCalls atomic.Int32
}

func (m *MockEmbedder) Name() string   { return "mock" }
func (m *MockEmbedder) Dimension() int { return 2 }

func (m *MockEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	m.EmbedCalls.Add(1)
	if m.OnEmbed != nil {
		return m.OnEmbed(ctx, texts)
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = defaultVector(t)
	}
	return out, nil
}

func (m *MockEmbedder) EmbedOne(ctx context.Context, text string) ([]float32, error) {
	m.EmbedOneCalls.Add(1)
	if m.OnEmbedOne != nil {
		return m.OnEmbedOne(ctx, text)
	}
	return defaultVector(text), nil
}

func (m *MockEmbedder) Calls() int {
	return int(m.EmbedCalls.Load() + m.EmbedOneCalls.Load())
}

func defaultVector(text string) []float32 {
	return []float32{float32(len(text)), 1}
}

// MockLLM implements llm.Provider
type MockLLM struct {
	OnGenerate func(ctx context.Context, prompt llm.Prompt) (string, error)

	Calls      atomic.Int32
	LastPrompt llm.Prompt
}

func (m *MockLLM) Name() string { return "mock-llm" }

func (m *MockLLM) Generate(ctx context.Context, prompt llm.Prompt) (string, error) {
	m.Calls.Add(1)
	m.LastPrompt = prompt
	if m.OnGenerate != nil {
		return m.OnGenerate(ctx, prompt)
	}
	return "mocked llm response", nil
}

// MockCache implements vectorDB.AnswerCache
type MockCache struct {
	OnLookup     func(ctx context.Context, scope vectorDB.CacheScope, v []float32) (string, bool, error)
	OnStore      func(ctx context.Context, scope vectorDB.CacheScope, v []float32, answer string) error
	OnInvalidate func(ctx context.Context, sessionId string) error

	Stores atomic.Int32
}

func (m *MockCache) Lookup(ctx context.Context, scope vectorDB.CacheScope, v []float32) (string, bool, error) {
	if m.OnLookup != nil {
		return m.OnLookup(ctx, scope, v)
	}
	return "", false, nil
}

func (m *MockCache) Store(ctx context.Context, scope vectorDB.CacheScope, v []float32, answer string) error {
	m.Stores.Add(1)
	if m.OnStore != nil {
		return m.OnStore(ctx, scope, v, answer)
	}
	return nil
}

func (m *MockCache) Invalidate(ctx context.Context, sessionId string) error {
	if m.OnInvalidate != nil {
		return m.OnInvalidate(ctx, sessionId)
	}
	return nil
}
