// Package mcpserver exposes one chat session as Model Context Protocol tools.
package mcpserver

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/akolanti/PDFChat/internal/data/store"
	"github.com/akolanti/PDFChat/internal/domain/commonModels"
	"github.com/akolanti/PDFChat/internal/job"
	"github.com/akolanti/PDFChat/internal/rag"
	"github.com/akolanti/PDFChat/internal/rag/ingest"
	"github.com/akolanti/PDFChat/pkg/logger_i"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const (
	serverName    = "pdfchat"
	serverVersion = "1.0.0"
)

var logger = sync.OnceValue(func() *logger_i.Logger { return logger_i.NewLogger("MCP") })

type UploadInput struct {
	Paths []string `json:"paths" jsonschema:"local paths of the PDF files to index"`
}

type AskInput struct {
	Question string `json:"question" jsonschema:"the question to answer from the indexed documents"`
}

type Empty struct{}

type AskOutput struct {
	Answer   string   `json:"answer"`
	Sources  []string `json:"sources,omitempty"`
	Grounded bool     `json:"grounded"`
	Cached   bool     `json:"cached"`
}

// InfoOutput mirrors rag.SessionInfo with timestamps rendered as strings.
type InfoOutput struct {
	SessionId  string             `json:"session_id"`
	State      string             `json:"state"`
	CorpusSize int                `json:"corpus_size"`
	IndexReady bool               `json:"index_ready"`
	Turns      int                `json:"turns"`
	Documents  []rag.DocumentInfo `json:"documents"`
	LastActive string             `json:"last_active"`
}

type ClearOutput struct {
	Status string `json:"status"`
}

// Tools serves a single session. The registry may expire it while the
// client is idle; the next call starts it again under the same id.
type Tools struct {
	svc       *job.Service
	sessionId string
}

func NewTools(svc *job.Service) *Tools {
	sess := svc.Sessions.Create()
	if svc.MessageStore != nil {
		if err := svc.MessageStore.InitNewSession(context.Background(), sess.Id()); err != nil {
			logger().Warn("Could not initialise session history", "sessionId", sess.Id(), "error", err)
		}
	}
	return &Tools{svc: svc, sessionId: sess.Id()}
}

func (t *Tools) session() *rag.Session {
	return t.svc.Sessions.GetOrCreate(t.sessionId)
}

// NewServer registers the tools on a fresh MCP server.
func NewServer(t *Tools) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{Name: serverName, Version: serverVersion}, nil)
	mcp.AddTool(server, &mcp.Tool{
		Name:        "upload_pdf",
		Description: "Extract, chunk and index local PDF files into the session.",
	}, t.UploadPDF)
	mcp.AddTool(server, &mcp.Tool{
		Name:        "ask",
		Description: "Answer a question from the indexed PDF documents.",
	}, t.Ask)
	mcp.AddTool(server, &mcp.Tool{
		Name:        "clear_documents",
		Description: "Remove every document and the chat history from the session.",
	}, t.Clear)
	mcp.AddTool(server, &mcp.Tool{
		Name:        "clear_history",
		Description: "Start a new conversation, keeping the indexed documents.",
	}, t.ClearHistory)
	mcp.AddTool(server, &mcp.Tool{
		Name:        "session_info",
		Description: "Describe the session: state, corpus size and documents.",
	}, t.Info)
	return server
}

func (t *Tools) UploadPDF(ctx context.Context, _ *mcp.CallToolRequest, in UploadInput) (*mcp.CallToolResult, commonModels.UploadReport, error) {
	if len(in.Paths) == 0 {
		return nil, commonModels.UploadReport{}, errors.New("no files provided")
	}
	sess := t.session()

	var (
		files    []ingest.UploadFile
		failures []commonModels.FileReport
	)
	for _, p := range in.Paths {
		f, err := os.Open(p)
		if err != nil {
			failures = append(failures, commonModels.FileReport{
				FileName: filepath.Base(p),
				Error:    fmt.Sprintf("Error processing %s: %v", filepath.Base(p), err),
			})
			continue
		}
		defer f.Close()
		info, err := f.Stat()
		if err != nil {
			failures = append(failures, commonModels.FileReport{
				FileName: filepath.Base(p),
				Error:    fmt.Sprintf("Error processing %s: %v", filepath.Base(p), err),
			})
			continue
		}
		files = append(files, ingest.UploadFile{Name: filepath.Base(p), Reader: f, Size: info.Size()})
	}

	var report commonModels.UploadReport
	if len(files) > 0 {
		report = t.svc.Rag.ProcessUpload(ctx, sess, files)
	} else {
		msgs := make([]string, 0, len(failures))
		for _, f := range failures {
			msgs = append(msgs, f.Error)
		}
		report = commonModels.UploadReport{
			CorpusSize: sess.CorpusSize(),
			IndexReady: sess.IndexReady(),
			Message:    "Failed to process files: " + strings.Join(msgs, "; "),
		}
	}
	report.Files = append(report.Files, failures...)
	logger().WithContext(ctx).Info("Upload processed", "sessionId", sess.Id(), "processed", report.FilesProcessed, "failed", len(failures))
	return nil, report, nil
}

func (t *Tools) Ask(ctx context.Context, _ *mcp.CallToolRequest, in AskInput) (*mcp.CallToolResult, AskOutput, error) {
	question := strings.TrimSpace(in.Question)
	if question == "" {
		return nil, AskOutput{}, errors.New("question is empty")
	}
	sess := t.session()

	asked := time.Now()
	reply := t.svc.Rag.Ask(ctx, sess, question)
	if t.svc.MessageStore != nil && reply.Recorded {
		turns := []commonModels.Turn{
			{Role: commonModels.RoleUser, Content: question, Timestamp: asked},
			{Role: commonModels.RoleAssistant, Content: reply.Text, Timestamp: reply.Timestamp},
		}
		err := t.svc.MessageStore.AppendTurns(ctx, sess.Id(), turns...)
		if errors.Is(err, store.ErrUnknownSession) {
			// history expired with the session
			if err = t.svc.MessageStore.InitNewSession(ctx, sess.Id()); err == nil {
				err = t.svc.MessageStore.AppendTurns(ctx, sess.Id(), turns...)
			}
		}
		if err != nil {
			logger().Warn("Could not persist turns", "sessionId", sess.Id(), "error", err)
		}
	}

	out := AskOutput{Answer: reply.Text, Grounded: reply.Grounded, Cached: reply.Cached}
	for _, s := range reply.Sources {
		out.Sources = append(out.Sources, fmt.Sprintf("%s (segment %d of %d)", s.Source, s.Position+1, s.TotalSegments))
	}
	return nil, out, nil
}

func (t *Tools) Clear(ctx context.Context, _ *mcp.CallToolRequest, _ Empty) (*mcp.CallToolResult, ClearOutput, error) {
	sess := t.session()
	t.svc.Rag.Clear(ctx, sess)
	if t.svc.MessageStore != nil {
		if err := t.svc.MessageStore.InitNewSession(ctx, sess.Id()); err != nil {
			logger().Warn("Could not reset session history", "sessionId", sess.Id(), "error", err)
		}
	}
	return nil, ClearOutput{Status: "All documents and chat history cleared"}, nil
}

func (t *Tools) ClearHistory(ctx context.Context, _ *mcp.CallToolRequest, _ Empty) (*mcp.CallToolResult, ClearOutput, error) {
	sess := t.session()
	t.svc.Rag.ClearHistory(ctx, sess)
	if t.svc.MessageStore != nil {
		if err := t.svc.MessageStore.InitNewSession(ctx, sess.Id()); err != nil {
			logger().Warn("Could not reset session history", "sessionId", sess.Id(), "error", err)
		}
	}
	return nil, ClearOutput{Status: fmt.Sprintf("Chat history cleared, %d segments still indexed", sess.CorpusSize())}, nil
}

func (t *Tools) Info(_ context.Context, _ *mcp.CallToolRequest, _ Empty) (*mcp.CallToolResult, InfoOutput, error) {
	info := t.session().Info()
	return nil, InfoOutput{
		SessionId:  info.SessionId,
		State:      string(info.State),
		CorpusSize: info.CorpusSize,
		IndexReady: info.IndexReady,
		Turns:      info.Turns,
		Documents:  info.Documents,
		LastActive: info.LastActive.UTC().Format(time.RFC3339),
	}, nil
}
