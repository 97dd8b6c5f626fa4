// Package hashEmbedding is the offline embedder: a signed feature-hashing bag
// of words. It needs no network and gives the same vector for the same text
// on every run, so retrieval keeps working without any API key.
package hashEmbedding

import (
	"context"
	"errors"
	"hash/fnv"
	"math"
	"strings"
	"unicode"

	"github.com/akolanti/PDFChat/internal/rag/embedding"
)

type Embedder struct {
	dimension int
}

var _ embedding.Embedder = (*Embedder)(nil)

func New(dimension int) (*Embedder, error) {
	if dimension <= 0 {
		return nil, errors.New("hash embedding dimension must be positive")
	}
	return &Embedder{dimension: dimension}, nil
}

func (e *Embedder) Name() string {
	return "hash"
}

func (e *Embedder) Dimension() int {
	return e.dimension
}

func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out[i] = e.vector(t)
	}
	return out, nil
}

func (e *Embedder) EmbedOne(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return e.vector(text), nil
}

func (e *Embedder) vector(text string) []float32 {
	vec := make([]float32, e.dimension)
	for _, tok := range tokenize(text) {
		h := fnv.New64a()
		_, _ = h.Write([]byte(tok))
		sum := h.Sum64()
		bucket := int(sum % uint64(e.dimension))
		// the top bit picks the sign so collisions tend to cancel
		if sum>>63 == 1 {
			vec[bucket]--
		} else {
			vec[bucket]++
		}
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		return vec
	}
	scale := float32(1 / math.Sqrt(norm))
	for i := range vec {
		vec[i] *= scale
	}
	return vec
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
