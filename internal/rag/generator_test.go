package rag

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/akolanti/PDFChat/internal/domain/commonModels"
	"github.com/akolanti/PDFChat/internal/rag/llm"
	"github.com/akolanti/PDFChat/internal/rag/vectorDB"
)

type stubProvider struct {
	calls  int
	answer string
	err    error
}

func (p *stubProvider) Name() string { return "stub" }
func (p *stubProvider) Generate(ctx context.Context, prompt llm.Prompt) (string, error) {
	p.calls++
	return p.answer, p.err
}

func turns(n, size int) []commonModels.Turn {
	out := make([]commonModels.Turn, n)
	for i := range out {
		role := commonModels.RoleUser
		if i%2 == 1 {
			role = commonModels.RoleAssistant
		}
		out[i] = commonModels.Turn{Role: role, Content: fmt.Sprintf("%03d%s", i, strings.Repeat("x", size-3))}
	}
	return out
}

func TestTruncateHistory(t *testing.T) {
	tests := []struct {
		name      string
		history   []commonModels.Turn
		maxTurns  int
		maxChars  int
		wantFirst string
		wantLen   int
	}{
		{"under both limits", turns(4, 10), 10, 1000, "000", 4},
		{"turn limit", turns(12, 10), 10, 1000, "002", 10},
		{"char limit", turns(6, 100), 10, 250, "004", 2},
		{"single turn too large", turns(1, 500), 10, 100, "", 0},
		{"zero turns allowed", turns(3, 10), 0, 1000, "", 0},
		{"empty history", nil, 10, 100, "", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := truncateHistory(tt.history, tt.maxTurns, tt.maxChars)
			if len(got) != tt.wantLen {
				t.Fatalf("got %d turns, want %d", len(got), tt.wantLen)
			}
			if tt.wantLen > 0 && !strings.HasPrefix(got[0].Content, tt.wantFirst) {
				t.Errorf("oldest kept turn %q, want prefix %q", got[0].Content[:3], tt.wantFirst)
			}
			if tt.wantLen > 0 && got[len(got)-1].Content != tt.history[len(tt.history)-1].Content {
				t.Error("most recent turn must always be kept first")
			}
		})
	}
}

func TestBuildPrompt(t *testing.T) {
	g := NewGenerator(&stubProvider{}, GeneratorOptions{MaxContextSegments: 2, MaxHistoryTurns: 10, MaxHistoryChars: 1000})
	segs := []commonModels.Segment{
		{Source: "a.pdf", Text: "first", Position: 0, TotalSegments: 3},
		{Source: "a.pdf", Text: "second", Position: 1, TotalSegments: 3},
		{Source: "b.pdf", Text: "third", Position: 0, TotalSegments: 1},
	}

	p := g.BuildPrompt("what?", segs, turns(2, 10))
	if p.System == "" {
		t.Error("system instruction missing")
	}
	if !strings.Contains(p.User, "[Source: a.pdf, segment 2 of 3]\nsecond") {
		t.Errorf("segment label missing: %q", p.User)
	}
	if strings.Contains(p.User, "third") {
		t.Error("segments beyond the limit must be dropped")
	}
	if !strings.HasSuffix(p.User, "User question: what?") {
		t.Errorf("question should close the message: %q", p.User)
	}
	if len(p.History) != 2 || p.History[1].Role != llm.RoleAssistant {
		t.Errorf("unexpected history %+v", p.History)
	}

	empty := g.BuildPrompt("what?", nil, nil)
	if !strings.Contains(empty.User, noContextSection) {
		t.Errorf("no-context section missing: %q", empty.User)
	}
}

func TestGenerate(t *testing.T) {
	t.Run("one call", func(t *testing.T) {
		p := &stubProvider{answer: "ok"}
		text, err := NewGenerator(p, GeneratorOptions{}).Generate(context.Background(), "q", nil, nil)
		if err != nil || text != "ok" || p.calls != 1 {
			t.Errorf("text=%q err=%v calls=%d", text, err, p.calls)
		}
	})

	t.Run("provider error", func(t *testing.T) {
		p := &stubProvider{err: errors.New("boom")}
		text, err := NewGenerator(p, GeneratorOptions{}).Generate(context.Background(), "q", nil, nil)
		if err == nil || text != ApologyMessage || p.calls != 1 {
			t.Errorf("text=%q err=%v calls=%d", text, err, p.calls)
		}
	})

	t.Run("no provider", func(t *testing.T) {
		text, err := NewGenerator(nil, GeneratorOptions{}).Generate(context.Background(), "q", nil, nil)
		if !errors.Is(err, llm.ErrGenerationUnavailable) || text != UnavailableMessage {
			t.Errorf("text=%q err=%v", text, err)
		}
	})
}

type countingEmbedder struct{ calls int }

func (e *countingEmbedder) Name() string   { return "counting" }
func (e *countingEmbedder) Dimension() int { return 2 }
func (e *countingEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	e.calls++
	return nil, nil
}
func (e *countingEmbedder) EmbedOne(ctx context.Context, text string) ([]float32, error) {
	e.calls++
	return []float32{1, 0}, nil
}

func TestRetriever(t *testing.T) {
	e := &countingEmbedder{}

	segs, err := NewRetriever(e, nil).Retrieve(context.Background(), "q", 3)
	if err != nil || len(segs) != 0 || e.calls != 0 {
		t.Errorf("empty corpus: segs=%d err=%v calls=%d", len(segs), err, e.calls)
	}

	idx, _ := vectorDB.Build(
		[]commonModels.Segment{{Text: "near"}, {Text: "far"}},
		[][]float32{{1, 0}, {-1, 0}},
	)
	segs, err = NewRetriever(e, idx).Retrieve(context.Background(), "q", 1)
	if err != nil || len(segs) != 1 || segs[0].Text != "near" {
		t.Errorf("got %+v, err %v", segs, err)
	}
}
