package rag_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/akolanti/PDFChat/internal/config"
	"github.com/akolanti/PDFChat/internal/domain/commonModels"
	"github.com/akolanti/PDFChat/internal/rag"
	"github.com/akolanti/PDFChat/internal/rag/embedding"
	"github.com/akolanti/PDFChat/internal/rag/ingest"
	"github.com/akolanti/PDFChat/internal/rag/llm"
	"github.com/akolanti/PDFChat/internal/rag/vectorDB"
)

func testOptions() rag.Options {
	return rag.Options{
		TopK:         5,
		ChunkSize:    1000,
		ChunkOverlap: 200,
		Generator:    rag.DefaultGeneratorOptions(),
	}
}

func newService(t *testing.T, e embedding.Embedder, l llm.Provider, c vectorDB.AnswerCache) rag.Service {
	t.Helper()
	s, err := rag.NewService(e, l, c, testOptions())
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return s
}

func testContext() context.Context {
	return context.WithValue(context.Background(), config.TRACE_ID_KEY, "test-trace")
}

func segmentsFor(source string, texts ...string) []commonModels.Segment {
	segs := make([]commonModels.Segment, len(texts))
	for i, t := range texts {
		segs[i] = commonModels.Segment{
			Id:            fmt.Sprintf("%s-%d", source, i),
			Source:        source,
			Text:          t,
			Position:      i,
			TotalSegments: len(texts),
			SizeChars:     len(t),
		}
	}
	return segs
}

// buildPDF writes a single page PDF showing text.
func buildPDF(text string) []byte {
	content := fmt.Sprintf("BT /F1 12 Tf 72 720 Td (%s) Tj ET", text)
	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << /Font << /F1 4 0 R >> >> /Contents 5 0 R >>",
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>",
		fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(content), content),
	}
	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}
	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(objects)+1)
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)
	return buf.Bytes()
}

func upload(name string, data []byte) ingest.UploadFile {
	return ingest.UploadFile{Name: name, Reader: bytes.NewReader(data), Size: int64(len(data))}
}

func TestAsk_EmptySession(t *testing.T) {
	mEmbed := &MockEmbedder{}
	mLLM := &MockLLM{}
	s := newService(t, mEmbed, mLLM, &MockCache{})
	sess := rag.NewSession("empty")

	reply := s.Ask(testContext(), sess, "what is this about?")

	if reply.Text != "Please upload some PDF documents first before asking questions!" {
		t.Errorf("unexpected reply %q", reply.Text)
	}
	if sess.IndexReady() {
		t.Error("indexReady should be false")
	}
	if mEmbed.Calls() != 0 || mLLM.Calls.Load() != 0 {
		t.Errorf("empty session touched the models: embed=%d llm=%d", mEmbed.Calls(), mLLM.Calls.Load())
	}
	history := sess.History()
	if len(history) != 2 || history[0].Role != commonModels.RoleUser || history[1].Content != reply.Text {
		t.Errorf("turns not recorded: %+v", history)
	}
}

func TestAddDocuments_Accumulates(t *testing.T) {
	mEmbed := &MockEmbedder{}
	s := newService(t, mEmbed, &MockLLM{}, nil)
	sess := rag.NewSession("acc")
	ctx := testContext()

	n, err := s.AddDocuments(ctx, sess, segmentsFor("a.pdf", "alpha one", "alpha two"))
	if err != nil || n != 2 {
		t.Fatalf("first upload: n=%d err=%v", n, err)
	}
	n, err = s.AddDocuments(ctx, sess, segmentsFor("b.pdf", "beta one", "beta two"))
	if err != nil || n != 4 {
		t.Fatalf("second upload: n=%d err=%v", n, err)
	}

	if sess.CorpusSize() != 4 || !sess.IndexReady() || sess.State() != rag.StateIndexed {
		t.Errorf("corpus=%d ready=%v state=%s", sess.CorpusSize(), sess.IndexReady(), sess.State())
	}
	if mEmbed.EmbedCalls.Load() != 2 {
		t.Errorf("expected one batch call per upload, got %d", mEmbed.EmbedCalls.Load())
	}
	docs := sess.Documents()
	if len(docs) != 2 || docs[0].Name != "a.pdf" || docs[1].Segments != 2 {
		t.Errorf("unexpected documents %+v", docs)
	}
}

func TestAddDocuments_FailureKeepsPreviousIndex(t *testing.T) {
	mEmbed := &MockEmbedder{}
	s := newService(t, mEmbed, &MockLLM{}, nil)
	sess := rag.NewSession("keep")
	ctx := testContext()

	if _, err := s.AddDocuments(ctx, sess, segmentsFor("a.pdf", "one", "two")); err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	tests := []struct {
		name    string
		onEmbed func(ctx context.Context, texts []string) ([][]float32, error)
	}{
		{"provider error", func(ctx context.Context, texts []string) ([][]float32, error) {
			return nil, errors.New("quota")
		}},
		{"short result", func(ctx context.Context, texts []string) ([][]float32, error) {
			return [][]float32{{1, 1}}, nil
		}},
		{"wrong dimension", func(ctx context.Context, texts []string) ([][]float32, error) {
			out := make([][]float32, len(texts))
			for i := range out {
				out[i] = []float32{1, 2, 3}
			}
			return out, nil
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mEmbed.OnEmbed = tt.onEmbed
			if _, err := s.AddDocuments(ctx, sess, segmentsFor("b.pdf", "three", "four")); err == nil {
				t.Fatal("expected an error")
			}
			if sess.CorpusSize() != 2 || !sess.IndexReady() {
				t.Errorf("previous index lost: corpus=%d", sess.CorpusSize())
			}
		})
	}
}

func TestAddDocuments_NoEmbedder(t *testing.T) {
	s := newService(t, nil, &MockLLM{}, nil)
	sess := rag.NewSession("none")
	_, err := s.AddDocuments(testContext(), sess, segmentsFor("a.pdf", "x"))
	if !errors.Is(err, embedding.ErrEmbeddingUnavailable) {
		t.Errorf("expected ErrEmbeddingUnavailable, got %v", err)
	}
	if s.EmbeddingAvailable() {
		t.Error("EmbeddingAvailable should be false")
	}
}

func TestAsk_Scenarios(t *testing.T) {
	tests := []struct {
		name         string
		setupMocks   func(e *MockEmbedder, l *MockLLM, c *MockCache)
		nilProvider  bool
		expectedText string
		wantGrounded bool
		wantCached   bool
		wantLLMCalls int32
		wantStores   int32
	}{
		{
			name: "Success_Full_Flow",
			setupMocks: func(e *MockEmbedder, l *MockLLM, c *MockCache) {
				l.OnGenerate = func(ctx context.Context, p llm.Prompt) (string, error) {
					return "final answer", nil
				}
			},
			expectedText: "final answer",
			wantGrounded: true,
			wantLLMCalls: 1,
			wantStores:   1,
		},
		{
			name: "Success_Cache_Hit",
			setupMocks: func(e *MockEmbedder, l *MockLLM, c *MockCache) {
				c.OnLookup = func(ctx context.Context, scope vectorDB.CacheScope, v []float32) (string, bool, error) {
					return "cached answer", true, nil
				}
			},
			expectedText: "cached answer",
			wantGrounded: true,
			wantCached:   true,
		},
		{
			name: "Cache_Error_Is_A_Miss",
			setupMocks: func(e *MockEmbedder, l *MockLLM, c *MockCache) {
				c.OnLookup = func(ctx context.Context, scope vectorDB.CacheScope, v []float32) (string, bool, error) {
					return "", false, errors.New("qdrant down")
				}
			},
			expectedText: "mocked llm response",
			wantGrounded: true,
			wantLLMCalls: 1,
			wantStores:   1,
		},
		{
			name: "Failure_Embedding",
			setupMocks: func(e *MockEmbedder, l *MockLLM, c *MockCache) {
				e.OnEmbedOne = func(ctx context.Context, text string) ([]float32, error) {
					return nil, errors.New("api limit")
				}
			},
			expectedText: rag.ApologyMessage,
		},
		{
			name: "Failure_LLM_Generation",
			setupMocks: func(e *MockEmbedder, l *MockLLM, c *MockCache) {
				l.OnGenerate = func(ctx context.Context, p llm.Prompt) (string, error) {
					return "", errors.New("provider down")
				}
			},
			expectedText: rag.ApologyMessage,
			wantLLMCalls: 1,
		},
		{
			name:         "No_Provider",
			setupMocks:   func(e *MockEmbedder, l *MockLLM, c *MockCache) {},
			nilProvider:  true,
			expectedText: rag.UnavailableMessage,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mEmbed := &MockEmbedder{}
			mLLM := &MockLLM{}
			mCache := &MockCache{}
			tt.setupMocks(mEmbed, mLLM, mCache)

			var provider llm.Provider = mLLM
			if tt.nilProvider {
				provider = nil
			}
			s := newService(t, mEmbed, provider, mCache)
			sess := rag.NewSession("ask")
			ctx := testContext()
			if _, err := s.AddDocuments(ctx, sess, segmentsFor("report.pdf", "revenue grew", "costs fell")); err != nil {
				t.Fatalf("seed failed: %v", err)
			}

			reply := s.Ask(ctx, sess, "how did revenue do?")

			if reply.Text != tt.expectedText {
				t.Errorf("Text got %q, want %q", reply.Text, tt.expectedText)
			}
			if reply.Grounded != tt.wantGrounded || reply.Cached != tt.wantCached {
				t.Errorf("grounded=%v cached=%v", reply.Grounded, reply.Cached)
			}
			if mLLM.Calls.Load() != tt.wantLLMCalls {
				t.Errorf("LLM calls got %d, want %d", mLLM.Calls.Load(), tt.wantLLMCalls)
			}
			if mCache.Stores.Load() != tt.wantStores {
				t.Errorf("cache stores got %d, want %d", mCache.Stores.Load(), tt.wantStores)
			}
			if reply.Timestamp.IsZero() {
				t.Error("reply has no timestamp")
			}
			history := sess.History()
			if len(history) != 2 || history[1].Content != tt.expectedText {
				t.Errorf("turn pair not recorded: %+v", history)
			}
		})
	}
}

func TestAsk_PromptCarriesContextAndHistory(t *testing.T) {
	mLLM := &MockLLM{}
	s := newService(t, &MockEmbedder{}, mLLM, nil)
	sess := rag.NewSession("prompt")
	ctx := testContext()
	_, _ = s.AddDocuments(ctx, sess, segmentsFor("guide.pdf", "install with make", "run the binary"))

	s.Ask(ctx, sess, "first question")
	reply := s.Ask(ctx, sess, "second question")

	p := mLLM.LastPrompt
	if !strings.Contains(p.User, "second question") || !strings.Contains(p.User, "[Source: guide.pdf") {
		t.Errorf("user message missing question or sources: %q", p.User)
	}
	if len(p.History) != 2 || p.History[0].Content != "first question" || p.History[1].Role != llm.RoleAssistant {
		t.Errorf("unexpected history %+v", p.History)
	}
	if len(reply.Sources) != 2 {
		t.Errorf("expected both segments as sources, got %d", len(reply.Sources))
	}
	if len(sess.History()) != 4 {
		t.Errorf("expected 4 turns, got %d", len(sess.History()))
	}
}

func TestAsk_CacheScopedByRevision(t *testing.T) {
	var scopes []vectorDB.CacheScope
	mCache := &MockCache{
		OnLookup: func(ctx context.Context, scope vectorDB.CacheScope, v []float32) (string, bool, error) {
			scopes = append(scopes, scope)
			return "", false, nil
		},
	}
	s := newService(t, &MockEmbedder{}, &MockLLM{}, mCache)
	sess := rag.NewSession("scoped")
	ctx := testContext()

	_, _ = s.AddDocuments(ctx, sess, segmentsFor("a.pdf", "one"))
	s.Ask(ctx, sess, "q")
	s.ClearHistory(ctx, sess)
	_, _ = s.AddDocuments(ctx, sess, segmentsFor("b.pdf", "two"))
	s.Ask(ctx, sess, "q")

	if len(scopes) != 2 || scopes[0].Revision == scopes[1].Revision || scopes[0].SessionId != "scoped" {
		t.Errorf("cache scopes should change with the corpus: %+v", scopes)
	}
}

func TestAsk_FollowUpsBypassCache(t *testing.T) {
	lookups := 0
	mCache := &MockCache{OnLookup: func(ctx context.Context, scope vectorDB.CacheScope, v []float32) (string, bool, error) {
		lookups++
		return "", false, nil
	}}
	mLLM := &MockLLM{}
	s := newService(t, &MockEmbedder{}, mLLM, mCache)
	sess := rag.NewSession("follow-up")
	ctx := testContext()
	_, _ = s.AddDocuments(ctx, sess, segmentsFor("list.pdf", "first item", "second item"))

	s.Ask(ctx, sess, "what is the first item?")
	reply := s.Ask(ctx, sess, "and the second one?")

	if lookups != 1 || mCache.Stores.Load() != 1 {
		t.Errorf("only the opening question should use the cache: lookups=%d stores=%d", lookups, mCache.Stores.Load())
	}
	if reply.Cached || mLLM.Calls.Load() != 2 {
		t.Errorf("follow-up should be generated: cached=%v llm calls=%d", reply.Cached, mLLM.Calls.Load())
	}
}

func TestAsk_CacheHitCarriesSources(t *testing.T) {
	mCache := &MockCache{OnLookup: func(ctx context.Context, scope vectorDB.CacheScope, v []float32) (string, bool, error) {
		return "cached answer", true, nil
	}}
	mLLM := &MockLLM{}
	s := newService(t, &MockEmbedder{}, mLLM, mCache)
	sess := rag.NewSession("cached-sources")
	ctx := testContext()
	_, _ = s.AddDocuments(ctx, sess, segmentsFor("report.pdf", "revenue grew"))

	reply := s.Ask(ctx, sess, "revenue?")
	if !reply.Cached || !reply.Grounded || len(reply.Sources) != 1 || reply.Sources[0].Source != "report.pdf" {
		t.Errorf("cached reply should name its sources: %+v", reply)
	}
	if mLLM.Calls.Load() != 0 {
		t.Error("cache hit should not call the model")
	}
}

func TestClearHistory_KeepsCorpus(t *testing.T) {
	s := newService(t, &MockEmbedder{}, &MockLLM{}, nil)
	sess := rag.NewSession("history-reset")
	ctx := testContext()
	_, _ = s.AddDocuments(ctx, sess, segmentsFor("a.pdf", "one", "two"))
	s.Ask(ctx, sess, "hello")

	s.ClearHistory(ctx, sess)

	if len(sess.History()) != 0 {
		t.Errorf("history not cleared: %+v", sess.History())
	}
	if sess.CorpusSize() != 2 || !sess.IndexReady() || sess.State() != rag.StateIndexed {
		t.Errorf("corpus should survive a history reset: %+v", sess.Info())
	}
	if reply := s.Ask(ctx, sess, "still indexed?"); !reply.Grounded || !reply.Recorded {
		t.Errorf("expected a grounded, recorded reply, got %+v", reply)
	}
	if len(sess.History()) != 2 {
		t.Errorf("expected the new turn pair only, got %d turns", len(sess.History()))
	}
}

func TestClearHistory_DuringAsk(t *testing.T) {
	var s rag.Service
	sess := rag.NewSession("history-race")
	ctx := testContext()
	mLLM := &MockLLM{OnGenerate: func(ctx context.Context, p llm.Prompt) (string, error) {
		s.ClearHistory(ctx, sess)
		return "late answer", nil
	}}
	s = newService(t, &MockEmbedder{}, mLLM, nil)
	_, _ = s.AddDocuments(ctx, sess, segmentsFor("a.pdf", "one"))

	reply := s.Ask(ctx, sess, "question from before the reset")

	if reply.Text != "late answer" || reply.Recorded {
		t.Errorf("answer should be returned but not recorded: %+v", reply)
	}
	if len(sess.History()) != 0 {
		t.Errorf("stale turns recorded after reset: %+v", sess.History())
	}
	if sess.CorpusSize() != 1 {
		t.Errorf("corpus changed by a history reset: %d", sess.CorpusSize())
	}
}

func TestClear(t *testing.T) {
	invalidated := 0
	mCache := &MockCache{OnInvalidate: func(ctx context.Context, id string) error {
		invalidated++
		return nil
	}}
	s := newService(t, &MockEmbedder{}, &MockLLM{}, mCache)
	sess := rag.NewSession("clear")
	ctx := testContext()
	_, _ = s.AddDocuments(ctx, sess, segmentsFor("a.pdf", "one", "two"))
	s.Ask(ctx, sess, "hello")

	s.Clear(ctx, sess)

	if sess.State() != rag.StateEmpty || sess.CorpusSize() != 0 || sess.IndexReady() || len(sess.History()) != 0 {
		t.Errorf("session not cleared: %+v", sess.Info())
	}
	if invalidated < 2 {
		t.Errorf("expected cache invalidation on add and clear, got %d", invalidated)
	}
	if reply := s.Ask(ctx, sess, "anything?"); reply.Text != rag.EmptyCorpusMessage {
		t.Errorf("expected empty message after clear, got %q", reply.Text)
	}
}

func TestClear_DuringAddDocuments(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	mEmbed := &MockEmbedder{OnEmbed: func(ctx context.Context, texts []string) ([][]float32, error) {
		close(entered)
		<-release
		out := make([][]float32, len(texts))
		for i := range out {
			out[i] = []float32{1, 1}
		}
		return out, nil
	}}
	s := newService(t, mEmbed, &MockLLM{}, nil)
	sess := rag.NewSession("race")
	ctx := testContext()

	var (
		wg  sync.WaitGroup
		err error
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, err = s.AddDocuments(ctx, sess, segmentsFor("a.pdf", "one"))
	}()

	<-entered
	s.Clear(ctx, sess)
	close(release)
	wg.Wait()

	if !errors.Is(err, rag.ErrSessionCleared) {
		t.Errorf("expected ErrSessionCleared, got %v", err)
	}
	if sess.CorpusSize() != 0 {
		t.Errorf("cleared session received documents: %d", sess.CorpusSize())
	}
}

func TestRemoveDocument(t *testing.T) {
	mEmbed := &MockEmbedder{}
	s := newService(t, mEmbed, &MockLLM{}, nil)
	sess := rag.NewSession("remove")
	ctx := testContext()
	_, _ = s.AddDocuments(ctx, sess, segmentsFor("a.pdf", "one", "two"))
	_, _ = s.AddDocuments(ctx, sess, segmentsFor("b.pdf", "three"))
	embedCalls := mEmbed.EmbedCalls.Load()

	n, err := s.RemoveDocument(ctx, sess, "a.pdf")
	if err != nil || n != 1 {
		t.Fatalf("RemoveDocument: n=%d err=%v", n, err)
	}
	if mEmbed.EmbedCalls.Load() != embedCalls {
		t.Error("removal should not embed anything")
	}
	if docs := sess.Documents(); len(docs) != 1 || docs[0].Name != "b.pdf" {
		t.Errorf("unexpected documents %+v", docs)
	}

	if _, err := s.RemoveDocument(ctx, sess, "missing.pdf"); !errors.Is(err, rag.ErrDocumentNotFound) {
		t.Errorf("expected ErrDocumentNotFound, got %v", err)
	}

	n, _ = s.RemoveDocument(ctx, sess, "b.pdf")
	if n != 0 || sess.State() != rag.StateEmpty || sess.IndexReady() {
		t.Errorf("removing the last document should empty the session: %+v", sess.Info())
	}
}

func TestProcessUpload(t *testing.T) {
	tests := []struct {
		name          string
		files         []ingest.UploadFile
		wantProcessed int
		wantMessage   string
		wantReady     bool
	}{
		{
			name:          "single pdf",
			files:         []ingest.UploadFile{upload("hello.pdf", buildPDF("Hello world. This is a test document."))},
			wantProcessed: 1,
			wantMessage:   "Successfully processed 1 files with AI capabilities",
			wantReady:     true,
		},
		{
			name: "mixed batch",
			files: []ingest.UploadFile{
				upload("hello.pdf", buildPDF("Hello world.")),
				upload("notes.txt", []byte("plain")),
			},
			wantProcessed: 1,
			wantMessage:   "Successfully processed 1 files with AI capabilities. Errors: notes.txt: Only PDF files are allowed",
			wantReady:     true,
		},
		{
			name:          "only failures",
			files:         []ingest.UploadFile{upload("empty.pdf", nil)},
			wantMessage:   "Failed to process files: empty.pdf: File is empty",
			wantProcessed: 0,
		},
		{
			name:        "nothing uploaded",
			wantMessage: "No valid PDF files found",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mEmbed := &MockEmbedder{}
			s := newService(t, mEmbed, &MockLLM{}, nil)
			sess := rag.NewSession("upload")

			report := s.ProcessUpload(testContext(), sess, tt.files)

			if report.FilesProcessed != tt.wantProcessed {
				t.Errorf("FilesProcessed got %d, want %d", report.FilesProcessed, tt.wantProcessed)
			}
			if report.Message != tt.wantMessage {
				t.Errorf("Message got %q, want %q", report.Message, tt.wantMessage)
			}
			if report.IndexReady != tt.wantReady {
				t.Errorf("IndexReady got %v, want %v", report.IndexReady, tt.wantReady)
			}
			if len(report.Files) != len(tt.files) {
				t.Errorf("expected one file report per upload, got %d", len(report.Files))
			}
			if tt.wantProcessed == 0 && mEmbed.Calls() != 0 {
				t.Error("embedder called without segments")
			}
		})
	}
}

func TestProcessUpload_SingleSegment(t *testing.T) {
	s := newService(t, &MockEmbedder{}, &MockLLM{}, nil)
	sess := rag.NewSession("scenario")
	report := s.ProcessUpload(testContext(), sess,
		[]ingest.UploadFile{upload("hello.pdf", buildPDF("Hello world. This is a test document."))})

	if report.TotalChunks != 1 || report.Files[0].ChunkCount != 1 || report.CorpusSize != 1 {
		t.Errorf("expected exactly one segment, got %+v", report)
	}
}

func TestProcessUpload_IndexingFailure(t *testing.T) {
	mEmbed := &MockEmbedder{OnEmbed: func(ctx context.Context, texts []string) ([][]float32, error) {
		return nil, errors.New("quota exceeded")
	}}
	s := newService(t, mEmbed, &MockLLM{}, nil)
	sess := rag.NewSession("fail")

	report := s.ProcessUpload(testContext(), sess, []ingest.UploadFile{upload("hello.pdf", buildPDF("Hello world."))})
	if report.IndexReady || report.FilesProcessed != 0 || report.TotalChunks != 0 || report.Error == "" {
		t.Errorf("indexing failure not reported: %+v", report)
	}
	if !strings.HasPrefix(report.Message, "Failed to process files: Error indexing documents") {
		t.Errorf("unexpected message %q", report.Message)
	}
	assertFileNotIndexed(t, report.Files, "quota exceeded")
}

func TestProcessUpload_NoEmbedder(t *testing.T) {
	s := newService(t, nil, &MockLLM{}, nil)
	sess := rag.NewSession("no-embedder")

	report := s.ProcessUpload(testContext(), sess, []ingest.UploadFile{upload("hello.pdf", buildPDF("Hello world."))})
	if report.IndexReady || report.FilesProcessed != 0 || sess.CorpusSize() != 0 {
		t.Errorf("upload indexed without an embedder: %+v", report)
	}
	assertFileNotIndexed(t, report.Files, "")
}

func assertFileNotIndexed(t *testing.T, files []commonModels.FileReport, wantInError string) {
	t.Helper()
	if len(files) != 1 {
		t.Fatalf("expected one file report, got %+v", files)
	}
	f := files[0]
	if f.Processed || f.ChunkCount != 0 || f.Error == "" {
		t.Errorf("file report contradicts the aggregate: %+v", f)
	}
	if !strings.Contains(f.Error, wantInError) {
		t.Errorf("file error %q does not mention %q", f.Error, wantInError)
	}
}
