package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/akolanti/PDFChat/internal/api"
	"github.com/akolanti/PDFChat/internal/config"
	"github.com/akolanti/PDFChat/internal/data/store"
	"github.com/akolanti/PDFChat/internal/domain/commonModels"
	"github.com/akolanti/PDFChat/internal/domain/jobModel"
	"github.com/akolanti/PDFChat/internal/job"
	"github.com/akolanti/PDFChat/internal/rag"
	"github.com/akolanti/PDFChat/internal/rag/rag_test"
	"github.com/akolanti/PDFChat/internal/session"
	"github.com/go-chi/chi/v5"
)

type testEnv struct {
	router http.Handler
	svc    *job.Service
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ragService, err := rag.NewService(&rag_test.MockEmbedder{}, &rag_test.MockLLM{}, nil, rag.Options{
		TopK:         5,
		ChunkSize:    1000,
		ChunkOverlap: 200,
		Generator:    rag.DefaultGeneratorOptions(),
	})
	if err != nil {
		t.Fatal(err)
	}

	svc := job.InitJobService(job.ServiceConfig{
		JobChannel:        make(chan jobModel.Job, 10),
		DispatcherChannel: make(chan bool, 1),
		JobStore:          store.InitInMemoryJobStore(),
		MessageStore:      store.InitMessageStore(),
		Sessions:          session.NewRegistry(time.Hour),
		Rag:               ragService,
		HistoryLimit:      50,
	})
	InitJobHandler(svc)

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			ctx := context.WithValue(req.Context(), config.TRACE_ID_KEY, "test-trace")
			next.ServeHTTP(w, req.WithContext(ctx))
		})
	})
	r.Get("/health", HealthHandler)
	r.Get("/status/{id}", GetStatusHandler)
	r.Post("/sessions", CreateSessionHandler)
	r.Get("/sessions/{sessionId}", GetSessionHandler)
	r.Delete("/sessions/{sessionId}", DeleteSessionHandler)
	r.Post("/sessions/{sessionId}/clear", ClearSessionHandler)
	r.Get("/sessions/{sessionId}/history", GetHistoryHandler)
	r.Delete("/sessions/{sessionId}/history", ClearHistoryHandler)
	r.Post("/sessions/{sessionId}/chat", ChatHandler)
	r.Post("/sessions/{sessionId}/documents", PostDocumentsHandler)
	r.Get("/sessions/{sessionId}/documents", GetDocumentsHandler)
	r.Delete("/sessions/{sessionId}/documents/{name}", DeleteDocumentHandler)

	return &testEnv{router: r, svc: svc}
}

func (e *testEnv) do(t *testing.T, method, path string, body *bytes.Buffer, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	if body == nil {
		body = &bytes.Buffer{}
	}
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) createSession(t *testing.T) string {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/sessions", nil, "")
	if rec.Code != http.StatusCreated {
		t.Fatalf("create session: %d %s", rec.Code, rec.Body.String())
	}
	var res api.SessionCreatedResponse
	if err := json.NewDecoder(rec.Body).Decode(&res); err != nil || res.SessionId == "" {
		t.Fatalf("bad create response: %v %+v", err, res)
	}
	return res.SessionId
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) api.JobResponse {
	t.Helper()
	var res api.JobResponse
	if err := json.NewDecoder(rec.Body).Decode(&res); err != nil {
		t.Fatalf("decode error envelope: %v", err)
	}
	if res.Error == nil {
		t.Fatal("error envelope without error")
	}
	return res
}

func TestSessionLifecycle(t *testing.T) {
	env := newTestEnv(t)
	id := env.createSession(t)

	rec := env.do(t, http.MethodGet, "/sessions/"+id, nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("get session: %d", rec.Code)
	}
	var info rag.SessionInfo
	if err := json.NewDecoder(rec.Body).Decode(&info); err != nil {
		t.Fatal(err)
	}
	if info.SessionId != id || info.State != rag.StateEmpty || info.IndexReady {
		t.Errorf("unexpected session info %+v", info)
	}
	if !env.svc.MessageStore.ValidateSessionId(context.Background(), id) {
		t.Error("history should be initialised on create")
	}

	rec = env.do(t, http.MethodDelete, "/sessions/"+id, nil, "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete session: %d", rec.Code)
	}
	if env.svc.MessageStore.ValidateSessionId(context.Background(), id) {
		t.Error("history should be dropped on delete")
	}

	rec = env.do(t, http.MethodGet, "/sessions/"+id, nil, "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("deleted session: %d", rec.Code)
	}
	if res := decodeError(t, rec); res.Error.Code != http.StatusNotFound {
		t.Errorf("error code %d", res.Error.Code)
	}
	if rec := env.do(t, http.MethodDelete, "/sessions/"+id, nil, ""); rec.Code != http.StatusNotFound {
		t.Errorf("second delete: %d", rec.Code)
	}
}

func TestChatHandler(t *testing.T) {
	env := newTestEnv(t)
	id := env.createSession(t)

	tests := []struct {
		name     string
		session  string
		body     string
		wantCode int
	}{
		{"valid question", id, `{"message":"What is this about?"}`, http.StatusAccepted},
		{"empty message", id, `{"message":"   "}`, http.StatusBadRequest},
		{"malformed json", id, `{"message":`, http.StatusBadRequest},
		{"unknown session", "ghost", `{"message":"hi"}`, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodPost, "/sessions/"+tt.session+"/chat", bytes.NewBufferString(tt.body), "application/json")
			if rec.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d: %s", rec.Code, tt.wantCode, rec.Body.String())
			}
			if tt.wantCode != http.StatusAccepted {
				decodeError(t, rec)
				return
			}

			var res api.InitJobResponse
			if err := json.NewDecoder(rec.Body).Decode(&res); err != nil {
				t.Fatal(err)
			}
			if res.StatusURL != "/status/"+res.Id {
				t.Errorf("status url %q", res.StatusURL)
			}

			select {
			case queued := <-env.svc.JobChannel:
				if queued.Id != res.Id || queued.SessionId != id || queued.JobType != jobModel.JobTypeQuery {
					t.Errorf("queued job %+v", queued)
				}
				if queued.JobPayload.Question != "What is this about?" || queued.TraceId != "test-trace" {
					t.Errorf("payload not carried: %+v", queued)
				}
			default:
				t.Fatal("no job queued")
			}

			status := env.do(t, http.MethodGet, res.StatusURL, nil, "")
			if status.Code != http.StatusOK {
				t.Fatalf("status lookup: %d", status.Code)
			}
			var jr api.JobResponse
			if err := json.NewDecoder(status.Body).Decode(&jr); err != nil {
				t.Fatal(err)
			}
			if jr.Result.Status != string(jobModel.JobStatusQueued) || jr.SessionId != id {
				t.Errorf("status response %+v", jr)
			}
		})
	}
}

func TestGetStatusHandler_NotFound(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/status/nope", nil, "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rec.Code)
	}
	if res := decodeError(t, rec); res.Error.Message != "Job not found" {
		t.Errorf("message %q", res.Error.Message)
	}
}

func multipartBody(t *testing.T, files map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	for name, content := range files {
		part, err := mw.CreateFormFile(config.UploadFormField, name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := part.Write([]byte(content)); err != nil {
			t.Fatal(err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	return body, mw.FormDataContentType()
}

func TestPostDocumentsHandler(t *testing.T) {
	t.Chdir(t.TempDir())
	env := newTestEnv(t)
	id := env.createSession(t)

	body, contentType := multipartBody(t, map[string]string{
		"a.pdf":     "%PDF-1.4 first",
		"notes.txt": "plain text",
	})
	rec := env.do(t, http.MethodPost, "/sessions/"+id+"/documents", body, contentType)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("upload: %d %s", rec.Code, rec.Body.String())
	}

	var queued jobModel.Job
	select {
	case queued = <-env.svc.JobChannel:
	default:
		t.Fatal("no ingest job queued")
	}
	if queued.JobType != jobModel.JobTypeIngest || len(queued.JobPayload.IngestFiles) != 2 {
		t.Fatalf("queued job %+v", queued)
	}
	for _, f := range queued.JobPayload.IngestFiles {
		data, err := os.ReadFile(f.Path)
		if err != nil {
			t.Fatalf("spooled file %s missing: %v", f.Name, err)
		}
		if int64(len(data)) != f.Size {
			t.Errorf("%s: size %d, spooled %d", f.Name, f.Size, len(data))
		}
		if !strings.HasSuffix(f.Path, f.Name) {
			t.Errorf("spool path %q does not end in %q", f.Path, f.Name)
		}
	}
}

func TestPostDocumentsHandler_Rejections(t *testing.T) {
	t.Chdir(t.TempDir())
	env := newTestEnv(t)
	id := env.createSession(t)

	empty, emptyType := multipartBody(t, nil)
	tests := []struct {
		name        string
		session     string
		body        *bytes.Buffer
		contentType string
		wantCode    int
	}{
		{"no files", id, empty, emptyType, http.StatusBadRequest},
		{"not multipart", id, bytes.NewBufferString("{}"), "application/json", http.StatusBadRequest},
		{"unknown session", "ghost", &bytes.Buffer{}, emptyType, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodPost, "/sessions/"+tt.session+"/documents", tt.body, tt.contentType)
			if rec.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantCode)
			}
			decodeError(t, rec)
		})
	}
	if len(env.svc.JobChannel) != 0 {
		t.Error("rejected uploads must not queue jobs")
	}
}

func TestClearAndDocuments(t *testing.T) {
	env := newTestEnv(t)
	id := env.createSession(t)
	sess, _ := env.svc.Sessions.Get(id)

	_, err := env.svc.Rag.AddDocuments(context.Background(), sess, []commonModels.Segment{
		{Id: "1", Source: "a.pdf", Text: "alpha", TotalSegments: 1},
		{Id: "2", Source: "b.pdf", Text: "beta", TotalSegments: 1},
	})
	if err != nil {
		t.Fatal(err)
	}

	rec := env.do(t, http.MethodGet, "/sessions/"+id+"/documents", nil, "")
	var docs api.DocumentsResponse
	if err := json.NewDecoder(rec.Body).Decode(&docs); err != nil {
		t.Fatal(err)
	}
	if docs.CorpusSize != 2 || len(docs.Documents) != 2 {
		t.Fatalf("documents %+v", docs)
	}

	rec = env.do(t, http.MethodDelete, "/sessions/"+id+"/documents/a.pdf", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("remove document: %d %s", rec.Code, rec.Body.String())
	}
	if err := json.NewDecoder(rec.Body).Decode(&docs); err != nil {
		t.Fatal(err)
	}
	if docs.CorpusSize != 1 || docs.Documents[0].Name != "b.pdf" {
		t.Errorf("after remove %+v", docs)
	}
	if rec := env.do(t, http.MethodDelete, "/sessions/"+id+"/documents/missing.pdf", nil, ""); rec.Code != http.StatusNotFound {
		t.Errorf("missing document: %d", rec.Code)
	}

	rec = env.do(t, http.MethodPost, "/sessions/"+id+"/clear", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("clear: %d", rec.Code)
	}
	var cleared api.ClearResponse
	if err := json.NewDecoder(rec.Body).Decode(&cleared); err != nil {
		t.Fatal(err)
	}
	if cleared.SessionId != id || cleared.IndexReady {
		t.Errorf("clear response %+v", cleared)
	}
	if sess.CorpusSize() != 0 {
		t.Errorf("corpus not cleared: %d", sess.CorpusSize())
	}
}

func TestClearHistoryHandler(t *testing.T) {
	env := newTestEnv(t)
	id := env.createSession(t)
	sess, _ := env.svc.Sessions.Get(id)
	ctx := context.Background()

	if _, err := env.svc.Rag.AddDocuments(ctx, sess, []commonModels.Segment{
		{Id: "1", Source: "a.pdf", Text: "alpha", TotalSegments: 1},
	}); err != nil {
		t.Fatal(err)
	}
	reply := env.svc.Rag.Ask(ctx, sess, "what is alpha?")
	if err := env.svc.MessageStore.AppendTurns(ctx, id,
		commonModels.Turn{Role: commonModels.RoleUser, Content: "what is alpha?", Timestamp: time.Now()},
		commonModels.Turn{Role: commonModels.RoleAssistant, Content: reply.Text, Timestamp: reply.Timestamp},
	); err != nil {
		t.Fatal(err)
	}

	rec := env.do(t, http.MethodDelete, "/sessions/"+id+"/history", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("clear history: %d %s", rec.Code, rec.Body.String())
	}
	var cleared api.ClearResponse
	if err := json.NewDecoder(rec.Body).Decode(&cleared); err != nil {
		t.Fatal(err)
	}
	if cleared.SessionId != id || !cleared.IndexReady {
		t.Errorf("index should survive a history reset: %+v", cleared)
	}
	if sess.CorpusSize() != 1 || len(sess.History()) != 0 {
		t.Errorf("corpus=%d turns=%d", sess.CorpusSize(), len(sess.History()))
	}

	rec = env.do(t, http.MethodGet, "/sessions/"+id+"/history", nil, "")
	var history api.HistoryResponse
	if err := json.NewDecoder(rec.Body).Decode(&history); err != nil {
		t.Fatal(err)
	}
	if len(history.Turns) != 0 {
		t.Errorf("persisted history not reset: %+v", history.Turns)
	}

	if rec := env.do(t, http.MethodDelete, "/sessions/missing/history", nil, ""); rec.Code != http.StatusNotFound {
		t.Errorf("missing session: %d", rec.Code)
	}
}

func TestGetHistoryHandler(t *testing.T) {
	env := newTestEnv(t)
	id := env.createSession(t)
	ctx := context.Background()

	now := time.Now().UTC()
	for _, q := range []string{"one", "two", "three"} {
		err := env.svc.MessageStore.AppendTurns(ctx, id,
			commonModels.Turn{Role: commonModels.RoleUser, Content: q, Timestamp: now},
			commonModels.Turn{Role: commonModels.RoleAssistant, Content: "re " + q, Timestamp: now})
		if err != nil {
			t.Fatal(err)
		}
	}

	tests := []struct {
		query     string
		wantCode  int
		wantTurns int
		wantFirst string
	}{
		{"", http.StatusOK, 6, "one"},
		{"?limit=2", http.StatusOK, 2, "three"},
		{"?limit=-1", http.StatusBadRequest, 0, ""},
	}
	for _, tt := range tests {
		t.Run("limit"+tt.query, func(t *testing.T) {
			rec := env.do(t, http.MethodGet, "/sessions/"+id+"/history"+tt.query, nil, "")
			if rec.Code != tt.wantCode {
				t.Fatalf("status = %d", rec.Code)
			}
			if tt.wantCode != http.StatusOK {
				return
			}
			var res api.HistoryResponse
			if err := json.NewDecoder(rec.Body).Decode(&res); err != nil {
				t.Fatal(err)
			}
			if len(res.Turns) != tt.wantTurns || res.Turns[0].Content != tt.wantFirst {
				t.Errorf("turns %+v", res.Turns)
			}
		})
	}
}

func TestHealthHandler(t *testing.T) {
	env := newTestEnv(t)
	env.createSession(t)

	rec := env.do(t, http.MethodGet, "/health", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("health: %d", rec.Code)
	}
	var res api.HealthResponse
	if err := json.NewDecoder(rec.Body).Decode(&res); err != nil {
		t.Fatal(err)
	}
	if res.Status != "ok" || !res.EmbeddingAvailable || !res.GenerationAvailable || res.ActiveSessions != 1 {
		t.Errorf("health %+v", res)
	}
}
