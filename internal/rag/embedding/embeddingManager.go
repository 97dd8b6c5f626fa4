package embedding

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/akolanti/PDFChat/internal/config"
	"github.com/akolanti/PDFChat/pkg/logger_i"
)

var ErrEmbeddingUnavailable = errors.New("no embedding provider available")

// Embedder turns texts into vectors of a fixed dimension. Embed preserves
// input order.
type Embedder interface {
	Name() string
	Dimension() int
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	EmbedOne(ctx context.Context, text string) ([]float32, error)
}

// Loader constructs one provider. Load is only called by Select.
type Loader struct {
	Name string
	Load func(ctx context.Context) (Embedder, error)
}

type Attempt struct {
	Provider string `json:"provider"`
	Error    string `json:"error,omitempty"`
	Active   bool   `json:"active"`
}

type Diagnostics struct {
	Active    string    `json:"active,omitempty"`
	Dimension int       `json:"dimension,omitempty"`
	Attempts  []Attempt `json:"attempts"`
}

var logger = sync.OnceValue(func() *logger_i.Logger { return logger_i.NewLogger("Embedding Selection") })

const checkText = "connectivity check"

// Select tries the loaders in order and keeps the first provider that loads
// and answers a connectivity check with a vector of its declared dimension.
func Select(ctx context.Context, loaders ...Loader) (Embedder, Diagnostics, error) {
	diag := Diagnostics{Attempts: make([]Attempt, 0, len(loaders))}

	for _, l := range loaders {
		attempt := Attempt{Provider: l.Name}
		e, err := load(ctx, l)
		if err != nil {
			attempt.Error = err.Error()
			diag.Attempts = append(diag.Attempts, attempt)
			logger().Warn("Embedding provider unavailable", "provider", l.Name, "error", err)
			continue
		}

		attempt.Active = true
		diag.Attempts = append(diag.Attempts, attempt)
		diag.Active = e.Name()
		diag.Dimension = e.Dimension()
		logger().Info("Embedding provider selected", "provider", e.Name(), "dimension", e.Dimension())
		return e, diag, nil
	}

	logger().Error("No embedding provider could be loaded", "attempts", len(diag.Attempts))
	return nil, diag, ErrEmbeddingUnavailable
}

func load(ctx context.Context, l Loader) (Embedder, error) {
	if l.Load == nil {
		return nil, errors.New("no loader configured")
	}
	e, err := l.Load(ctx)
	if err != nil {
		return nil, err
	}
	if e == nil {
		return nil, errors.New("loader returned no provider")
	}

	checkCtx, cancel := context.WithTimeout(ctx, config.EmbeddingCheckTimeout)
	defer cancel()
	vec, err := e.EmbedOne(checkCtx, checkText)
	if err != nil {
		return nil, fmt.Errorf("connectivity check failed: %w", err)
	}
	if len(vec) != e.Dimension() {
		return nil, fmt.Errorf("connectivity check returned %d dimensions, expected %d", len(vec), e.Dimension())
	}
	return e, nil
}

// Batches splits n items into consecutive [start, end) windows of at most size.
func Batches(n, size int) [][2]int {
	if n <= 0 {
		return nil
	}
	if size <= 0 {
		size = n
	}
	out := make([][2]int, 0, (n+size-1)/size)
	for start := 0; start < n; start += size {
		out = append(out, [2]int{start, min(start+size, n)})
	}
	return out
}
