package jobModel

import (
	"context"
	"time"

	"github.com/akolanti/PDFChat/internal/domain/commonModels"
)

type JobStatus string
type InternalStatus string

type JobType string

const (
	JobStatusQueued   JobStatus = "QUEUED"
	JobStatusRunning  JobStatus = "RUNNING"
	JobStatusComplete JobStatus = "COMPLETE"
	JobStatusError    JobStatus = "Error"

	UserQueryInit    InternalStatus = "Init"
	CacheCall        InternalStatus = "CacheCall"
	RAGCall          InternalStatus = "RAG"
	LLMCall          InternalStatus = "LLM"
	VectorDBCall     InternalStatus = "VectorSearch"
	EmbeddingAPICall InternalStatus = "EmbeddingAPI"
	HistoryCall      InternalStatus = "History"

	IngestInit       InternalStatus = "IngestInit"
	IngestExtraction InternalStatus = "IngestExtraction"
	IngestEmbedding  InternalStatus = "IngestEmbedding"
	IndexBuild       InternalStatus = "IndexBuild"
	Error            InternalStatus = "Error"

	Complete InternalStatus = "Complete"

	JobTypeQuery  JobType = "Query"
	JobTypeIngest JobType = "Ingest"
)

type Job struct {
	Id          string         `json:"id"`
	SessionId   string         `json:"session_id"`
	TraceId     string         `json:"trace_id"`
	JobType     JobType        `json:"job_type"`
	JobPayload  JobPayload     `json:"job_payload"`
	Error       JobError       `json:"error,omitempty"`
	CreatedTime time.Time      `json:"created_time"`
	EndTime     time.Time      `json:"end_time,omitempty"`
	Status      JobStatus      `json:"status"`
	CurrentStep InternalStatus `json:"current_step"`
}

type JobError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Retry   bool   `json:"retry"`
}

// IngestFile is an upload spooled to disk by the request handler.
type IngestFile struct {
	Name string `json:"name"`
	Path string `json:"path"`
	Size int64  `json:"size"`
}

type JobPayload struct {
	Question   string    `json:"question,omitempty"`
	Answer     string    `json:"answer,omitempty"`
	AnsweredAt time.Time `json:"answered_at,omitempty"`
	Sources    []string  `json:"sources,omitempty"`
	Grounded   bool      `json:"grounded,omitempty"`
	Cached     bool      `json:"cached,omitempty"`

	IngestFiles []IngestFile               `json:"ingest_files,omitempty"`
	Upload      *commonModels.UploadReport `json:"upload,omitempty"`
}

type JobStore interface {
	GetJob(ctx context.Context, jobId string) (Job, bool)
	SaveJob(ctx context.Context, job Job) error
	DeleteJob(ctx context.Context, jobID string)
}

// MessageStore persists the conversation history of a session outside the
// process. The in-memory session keeps its own copy for prompting.
type MessageStore interface {
	ValidateSessionId(ctx context.Context, id string) bool
	InitNewSession(ctx context.Context, id string) error
	AppendTurns(ctx context.Context, id string, turns ...commonModels.Turn) error
	GetHistory(ctx context.Context, id string, limit int) ([]commonModels.Turn, error)
	DeleteSession(ctx context.Context, id string) error
}
