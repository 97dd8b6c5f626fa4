package rag

import (
	"context"

	"github.com/akolanti/PDFChat/internal/domain/commonModels"
	"github.com/akolanti/PDFChat/internal/rag/embedding"
	"github.com/akolanti/PDFChat/internal/rag/vectorDB"
)

// Retriever pairs an embedder with one index snapshot.
type Retriever struct {
	embedder embedding.Embedder
	index    *vectorDB.FlatIndex
}

func NewRetriever(embedder embedding.Embedder, index *vectorDB.FlatIndex) *Retriever {
	return &Retriever{embedder: embedder, index: index}
}

// Retrieve embeds the query and returns the k nearest segments. An empty
// corpus yields an empty result without touching the embedder.
func (r *Retriever) Retrieve(ctx context.Context, query string, k int) ([]commonModels.Segment, error) {
	if r.index.Len() == 0 || k <= 0 {
		return []commonModels.Segment{}, nil
	}
	if r.embedder == nil {
		return nil, embedding.ErrEmbeddingUnavailable
	}
	vec, err := r.embedder.EmbedOne(ctx, query)
	if err != nil {
		return nil, err
	}
	return r.SearchVector(vec, k)
}

func (r *Retriever) SearchVector(vec []float32, k int) ([]commonModels.Segment, error) {
	hits, err := r.index.Search(vec, k)
	if err != nil {
		return nil, err
	}
	segments := make([]commonModels.Segment, len(hits))
	for i, h := range hits {
		segments[i] = h.Segment
	}
	return segments, nil
}
