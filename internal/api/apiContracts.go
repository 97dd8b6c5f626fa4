package api

import (
	"time"

	"github.com/akolanti/PDFChat/internal/domain/commonModels"
	"github.com/akolanti/PDFChat/internal/rag"
	"github.com/akolanti/PDFChat/internal/rag/embedding"
)

type JobExternalStatus string

const (
	JobStatusError JobExternalStatus = "Error"
)

type JobResponse struct {
	Id        string            `json:"id" example:"job_cz109"`
	SessionId string            `json:"session_id" example:"session_550"`
	Result    Result            `json:"result"`
	Error     *JobOutgoingError `json:"error,omitempty"`
	StartTime time.Time         `json:"start_time"`
	EndTime   time.Time         `json:"end_time,omitempty"`
}

type JobOutgoingError struct {
	Code    int    `json:"code" example:"400"`
	Message string `json:"message" example:"Job not found"`
	Retry   bool   `json:"can_retry" example:"false"`
}

type RAGResponse struct {
	Question   string   `json:"question"`
	Answer     string   `json:"answer"`
	AnsweredAt string   `json:"answered_at" example:"2024-05-01T10:00:00Z"`
	Sources    []string `json:"sources"`
	Grounded   bool     `json:"grounded"`
	Cached     bool     `json:"cached"`
}

type Result struct {
	Status              string                     `json:"status"`
	Step                string                     `json:"step,omitempty"`
	RAGExternalResponse *RAGResponse               `json:"rag_response,omitempty"`
	Upload              *commonModels.UploadReport `json:"upload,omitempty"`
}

type InitJobResponse struct {
	Id        string `json:"id"`
	StatusURL string `json:"status_url"`
}

type SessionCreatedResponse struct {
	SessionId string `json:"session_id" example:"4f1c..."`
}

type ClearResponse struct {
	SessionId  string `json:"session_id"`
	IndexReady bool   `json:"index_ready"`
}

type TurnResponse struct {
	Role      string    `json:"role" example:"user"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

type HistoryResponse struct {
	SessionId string         `json:"session_id"`
	Turns     []TurnResponse `json:"turns"`
}

type DocumentsResponse struct {
	SessionId  string             `json:"session_id"`
	CorpusSize int                `json:"corpus_size"`
	Documents  []rag.DocumentInfo `json:"documents"`
}

type HealthResponse struct {
	Status              string                `json:"status" example:"ok"`
	Embedding           embedding.Diagnostics `json:"embedding"`
	EmbeddingAvailable  bool                  `json:"embedding_available"`
	GenerationAvailable bool                  `json:"generation_available"`
	ActiveSessions      int                   `json:"active_sessions"`
	ActiveWorkers       int64                 `json:"active_workers"`
	QueuedJobs          int                   `json:"queued_jobs"`
}

// requests---------------------

type ChatRequest struct {
	Message string `json:"message" validate:"required"`
}
