package llm

import (
	"context"
	"errors"
)

var ErrGenerationUnavailable = errors.New("no generation provider available")

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type Message struct {
	Role    Role
	Content string
}

// Prompt is a fully assembled request: system instruction, prior turns and
// the user message that already embeds the retrieved context.
type Prompt struct {
	System  string
	History []Message
	User    string
}

type Provider interface {
	Name() string
	Generate(ctx context.Context, prompt Prompt) (string, error)
}
