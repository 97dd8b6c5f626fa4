package vectorDB

import (
	"container/heap"
	"errors"
	"fmt"

	"github.com/akolanti/PDFChat/internal/domain/commonModels"
)

var (
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
	ErrLengthMismatch    = errors.New("segment and vector counts differ")
)

// FlatIndex is an exact nearest neighbour index over squared euclidean
// distance. The i-th vector belongs to the i-th segment. It is immutable once
// built, so searches need no locking.
type FlatIndex struct {
	segments  []commonModels.Segment
	vectors   [][]float32
	dimension int
}

type Hit struct {
	Segment  commonModels.Segment
	Distance float64
	Position int
}

// Build copies the slice headers of segments and vectors; callers must not
// mutate the vectors afterwards.
func Build(segments []commonModels.Segment, vectors [][]float32) (*FlatIndex, error) {
	if len(segments) != len(vectors) {
		return nil, fmt.Errorf("%w: %d segments, %d vectors", ErrLengthMismatch, len(segments), len(vectors))
	}
	idx := &FlatIndex{
		segments: append([]commonModels.Segment(nil), segments...),
		vectors:  append([][]float32(nil), vectors...),
	}
	if len(vectors) == 0 {
		return idx, nil
	}
	idx.dimension = len(vectors[0])
	for i, v := range vectors {
		if len(v) != idx.dimension {
			return nil, fmt.Errorf("%w: vector %d has %d dimensions, expected %d", ErrDimensionMismatch, i, len(v), idx.dimension)
		}
	}
	return idx, nil
}

func (idx *FlatIndex) Len() int {
	if idx == nil {
		return 0
	}
	return len(idx.segments)
}

func (idx *FlatIndex) Dimension() int {
	if idx == nil {
		return 0
	}
	return idx.dimension
}

// Search returns up to k hits by ascending distance. Equal distances keep
// insertion order.
func (idx *FlatIndex) Search(query []float32, k int) ([]Hit, error) {
	if idx.Len() == 0 || k <= 0 {
		return []Hit{}, nil
	}
	if len(query) != idx.dimension {
		return nil, fmt.Errorf("%w: query has %d dimensions, index has %d", ErrDimensionMismatch, len(query), idx.dimension)
	}

	// max-heap on (distance, position) holding the k best seen so far
	h := make(hitHeap, 0, min(k, len(idx.vectors)))
	for i, v := range idx.vectors {
		d := SquaredL2(query, v)
		if h.Len() < k {
			heap.Push(&h, candidate{distance: d, position: i})
			continue
		}
		if worse(h[0], candidate{distance: d, position: i}) {
			h[0] = candidate{distance: d, position: i}
			heap.Fix(&h, 0)
		}
	}

	hits := make([]Hit, h.Len())
	for i := len(hits) - 1; i >= 0; i-- {
		c := heap.Pop(&h).(candidate)
		hits[i] = Hit{Segment: idx.segments[c.position], Distance: c.distance, Position: c.position}
	}
	return hits, nil
}

// SquaredL2 assumes len(a) == len(b).
func SquaredL2(a, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return sum
}

type candidate struct {
	distance float64
	position int
}

// worse reports whether a ranks after b.
func worse(a, b candidate) bool {
	if a.distance != b.distance {
		return a.distance > b.distance
	}
	return a.position > b.position
}

type hitHeap []candidate

func (h hitHeap) Len() int           { return len(h) }
func (h hitHeap) Less(i, j int) bool { return worse(h[i], h[j]) }
func (h hitHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *hitHeap) Push(x any)        { *h = append(*h, x.(candidate)) }
func (h *hitHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
