package rag

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/akolanti/PDFChat/internal/config"
	"github.com/akolanti/PDFChat/internal/domain/commonModels"
	"github.com/akolanti/PDFChat/internal/rag/llm"
)

const (
	EmptyCorpusMessage  = "Please upload some PDF documents first before asking questions!"
	UnavailableMessage  = "AI is currently unavailable. Please check your API configuration."
	ApologyMessage      = "I apologize, but I encountered an error while processing your request. Please try again."
	noContextSection    = "No relevant context was found in the uploaded documents."
	contextSectionTitle = "Context from the uploaded documents:"
)

type GeneratorOptions struct {
	SystemInstruction  string
	MaxContextSegments int
	MaxHistoryTurns    int
	MaxHistoryChars    int
}

func DefaultGeneratorOptions() GeneratorOptions {
	return GeneratorOptions{
		SystemInstruction:  config.ModelContext,
		MaxContextSegments: config.DefaultMaxContextSegments,
		MaxHistoryTurns:    config.DefaultMaxHistoryTurns,
		MaxHistoryChars:    config.DefaultMaxHistoryChars,
	}
}

// Generator assembles a grounded prompt and makes exactly one provider call.
type Generator struct {
	provider llm.Provider
	opts     GeneratorOptions
}

func NewGenerator(provider llm.Provider, opts GeneratorOptions) *Generator {
	def := DefaultGeneratorOptions()
	if opts.SystemInstruction == "" {
		opts.SystemInstruction = def.SystemInstruction
	}
	if opts.MaxContextSegments <= 0 {
		opts.MaxContextSegments = def.MaxContextSegments
	}
	if opts.MaxHistoryTurns < 0 {
		opts.MaxHistoryTurns = 0
	}
	if opts.MaxHistoryChars < 0 {
		opts.MaxHistoryChars = 0
	}
	return &Generator{provider: provider, opts: opts}
}

func (g *Generator) Available() bool {
	return g.provider != nil
}

// Generate always returns text fit to show the user. On failure that text is
// a placeholder and the error says why.
func (g *Generator) Generate(ctx context.Context, query string, segments []commonModels.Segment, history []commonModels.Turn) (string, error) {
	if g.provider == nil {
		return UnavailableMessage, llm.ErrGenerationUnavailable
	}
	answer, err := g.provider.Generate(ctx, g.BuildPrompt(query, segments, history))
	if err != nil {
		return ApologyMessage, fmt.Errorf("generation failed: %w", err)
	}
	return answer, nil
}

func (g *Generator) BuildPrompt(query string, segments []commonModels.Segment, history []commonModels.Turn) llm.Prompt {
	var b strings.Builder
	if len(segments) > g.opts.MaxContextSegments {
		segments = segments[:g.opts.MaxContextSegments]
	}
	if len(segments) == 0 {
		b.WriteString(noContextSection)
	} else {
		b.WriteString(contextSectionTitle)
		for _, seg := range segments {
			fmt.Fprintf(&b, "\n\n[Source: %s, segment %d of %d]\n%s", seg.Source, seg.Position+1, seg.TotalSegments, seg.Text)
		}
	}
	fmt.Fprintf(&b, "\n\nUser question: %s", query)

	kept := truncateHistory(history, g.opts.MaxHistoryTurns, g.opts.MaxHistoryChars)
	messages := make([]llm.Message, len(kept))
	for i, t := range kept {
		role := llm.RoleUser
		if t.Role == commonModels.RoleAssistant {
			role = llm.RoleAssistant
		}
		messages[i] = llm.Message{Role: role, Content: t.Content}
	}

	return llm.Prompt{
		System:  g.opts.SystemInstruction,
		History: messages,
		User:    b.String(),
	}
}

// truncateHistory keeps the most recent turns, at most maxTurns of them and
// at most maxChars runes in total, oldest dropped first.
func truncateHistory(history []commonModels.Turn, maxTurns, maxChars int) []commonModels.Turn {
	start := len(history)
	total := 0
	for i := len(history) - 1; i >= 0; i-- {
		if len(history)-i > maxTurns {
			break
		}
		total += utf8.RuneCountInString(history[i].Content)
		if total > maxChars {
			break
		}
		start = i
	}
	return history[start:]
}
