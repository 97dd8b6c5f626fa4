package job

import (
	"context"

	"github.com/akolanti/PDFChat/internal/config"
	"github.com/akolanti/PDFChat/internal/domain/jobModel"
	"github.com/akolanti/PDFChat/internal/events"
	"github.com/akolanti/PDFChat/internal/rag"
	"github.com/akolanti/PDFChat/internal/rag/embedding"
	"github.com/akolanti/PDFChat/internal/session"
	"github.com/akolanti/PDFChat/pkg/logger_i"
)

// Service is everything the handlers and the worker pool share.
type Service struct {
	JobChannel        chan jobModel.Job
	RequestCount      int64
	DispatcherChannel chan bool
	JobStore          jobModel.JobStore
	MessageStore      jobModel.MessageStore
	Sessions          *session.Registry
	Rag               rag.Service
	Events            events.Publisher
	Embedding         embedding.Diagnostics
	HistoryLimit      int
}

type ServiceConfig struct {
	JobChannel        chan jobModel.Job
	RequestCount      int64
	DispatcherChannel chan bool
	JobStore          jobModel.JobStore
	MessageStore      jobModel.MessageStore
	Sessions          *session.Registry
	Rag               rag.Service
	Events            events.Publisher
	Embedding         embedding.Diagnostics
	HistoryLimit      int
}

func InitJobService(cfg ServiceConfig) *Service {
	publisher := cfg.Events
	if publisher == nil {
		publisher = events.Noop{}
	}
	return &Service{
		JobChannel:        cfg.JobChannel,
		RequestCount:      cfg.RequestCount,
		DispatcherChannel: cfg.DispatcherChannel,
		JobStore:          cfg.JobStore,
		MessageStore:      cfg.MessageStore,
		Sessions:          cfg.Sessions,
		Rag:               cfg.Rag,
		Events:            publisher,
		Embedding:         cfg.Embedding,
		HistoryLimit:      cfg.HistoryLimit,
	}
}

// TeardownSession drops everything held for a session that has already been
// removed from the registry.
func (s *Service) TeardownSession(ctx context.Context, sess *rag.Session) {
	log := logger_i.NewLogger("Job Service").WithContext(ctx).With("sessionId", sess.Id())
	if s.Rag != nil {
		s.Rag.Clear(ctx, sess)
	}
	if s.MessageStore != nil {
		if err := s.MessageStore.DeleteSession(ctx, sess.Id()); err != nil {
			log.Error("Could not delete session history", "error", err)
		}
	}
	events.Emit(ctx, s.Events, config.NatsSubjectCleared, events.Event{SessionId: sess.Id(), Data: map[string]any{"deleted": true}})
	log.Info("Session torn down")
}
