package openaiLLM

import (
	"testing"

	"github.com/akolanti/PDFChat/internal/rag/llm"
)

func TestBuildMessages(t *testing.T) {
	prompt := llm.Prompt{
		System: "be brief",
		History: []llm.Message{
			{Role: llm.RoleUser, Content: "hi"},
			{Role: llm.RoleAssistant, Content: "hello"},
		},
		User: "question",
	}

	msgs := buildMessages(prompt)
	if len(msgs) != 4 {
		t.Fatalf("expected 4 messages, got %d", len(msgs))
	}
	if msgs[0].OfSystem == nil {
		t.Error("first message should be the system instruction")
	}
	if msgs[1].OfUser == nil || msgs[2].OfAssistant == nil || msgs[3].OfUser == nil {
		t.Error("history roles not preserved")
	}

	noSystem := buildMessages(llm.Prompt{User: "q"})
	if len(noSystem) != 1 || noSystem[0].OfUser == nil {
		t.Errorf("expected only the user message, got %d", len(noSystem))
	}
}
