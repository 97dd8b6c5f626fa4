package worker

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"sync/atomic"
	"time"

	"github.com/akolanti/PDFChat/internal/config"
	"github.com/akolanti/PDFChat/internal/data/store"
	"github.com/akolanti/PDFChat/internal/domain/commonModels"
	jobmodel "github.com/akolanti/PDFChat/internal/domain/jobModel"
	"github.com/akolanti/PDFChat/internal/events"
	"github.com/akolanti/PDFChat/internal/metrics"
	"github.com/akolanti/PDFChat/internal/rag"
	"github.com/akolanti/PDFChat/internal/rag/ingest"
	"github.com/akolanti/PDFChat/pkg/logger_i"
)

var errSessionGone = errors.New("session not found")

func executeJob(job jobmodel.Job) {
	start := time.Now()
	defer func() {
		metrics.CaptureJobMetrics(string(job.JobType), string(job.Status), time.Since(start))
	}()
	ctx := context.WithValue(context.Background(), config.TRACE_ID_KEY, job.TraceId)
	ctx = context.WithValue(ctx, config.SESSION_ID_KEY, job.SessionId)
	ctx, cancel := context.WithTimeout(ctx, jobTimeout(job.JobType))
	defer cancel()
	log := logger.WithContext(ctx).With("jobId", job.Id, "jobType", job.JobType)
	log.Debug("Processing job")

	job = saveJobState(ctx, job, jobmodel.JobStatusRunning)

	sess, ok := _jobService.Sessions.Get(job.SessionId)
	switch {
	case !ok:
		job = failJob(job, http.StatusNotFound, errSessionGone, false)
	case job.JobType == jobmodel.JobTypeIngest:
		job = ingestDocument(ctx, job, sess, log)
	default:
		job = processQuery(ctx, job, sess, log)
	}

	job.EndTime = time.Now()
	if job.Status == jobmodel.JobStatusError {
		log.Warn("Job failed", "step", job.CurrentStep, "error", job.Error.Message)
		job = saveJobState(ctx, job, jobmodel.JobStatusError)
		return
	}
	job.CurrentStep = jobmodel.Complete
	job = saveJobState(ctx, job, jobmodel.JobStatusComplete)
	log.Debug("Job complete", "elapsed", time.Since(start))
}

func jobTimeout(t jobmodel.JobType) time.Duration {
	if t == jobmodel.JobTypeIngest {
		return config.IngestTimeout
	}
	return config.JobTimeout
}

// removeWorker releases a worker. claimed is true when the caller already
// took the worker off the count.
func removeWorker(reason string, claimed bool) {
	if !claimed {
		atomic.AddInt64(&currentWorkerCount, -1)
	}
	workerWaitGroup.Done()
	logger.Info("Removed worker", "reason", reason, "workerCount", atomic.LoadInt64(&currentWorkerCount))
	metrics.DecrementActiveWorkerCount()
}

func ingestDocument(ctx context.Context, job jobmodel.Job, sess *rag.Session, log *logger_i.Logger) jobmodel.Job {
	job.CurrentStep = jobmodel.IngestExtraction
	files, closeFiles := openUploads(job.JobPayload.IngestFiles, log)
	defer closeFiles()

	report := _ragService.ProcessUpload(ctx, sess, files)
	job.JobPayload.Upload = &report
	job.JobPayload.IngestFiles = nil

	subject := config.NatsSubjectIndexed
	if !report.IndexReady || report.FilesProcessed == 0 {
		subject = config.NatsSubjectRejected
	}
	events.Emit(ctx, _jobService.Events, subject, events.Event{
		SessionId: job.SessionId,
		JobId:     job.Id,
		Data: map[string]any{
			"files_processed": report.FilesProcessed,
			"total_chunks":    report.TotalChunks,
			"corpus_size":     report.CorpusSize,
		},
	})
	log.Info("Upload processed", "filesProcessed", report.FilesProcessed, "corpusSize", report.CorpusSize, "indexReady", report.IndexReady)
	return job
}

// openUploads opens the spooled files. Each file is removed from disk once
// the returned cleanup runs, whether or not it could be opened.
func openUploads(spooled []jobmodel.IngestFile, log *logger_i.Logger) ([]ingest.UploadFile, func()) {
	files := make([]ingest.UploadFile, 0, len(spooled))
	var handles []*os.File
	for _, f := range spooled {
		upload := ingest.UploadFile{Name: f.Name}
		fh, err := os.Open(f.Path)
		if err != nil {
			log.Error("Could not open spooled upload", "file", f.Name, "error", err)
			files = append(files, upload)
			continue
		}
		handles = append(handles, fh)
		upload.Reader = fh
		upload.Size = f.Size
		if info, err := fh.Stat(); err == nil {
			upload.Size = info.Size()
		}
		files = append(files, upload)
	}
	return files, func() {
		for _, fh := range handles {
			_ = fh.Close()
		}
		for _, f := range spooled {
			if err := os.Remove(f.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
				log.Warn("Could not remove spooled upload", "path", f.Path, "error", err)
			}
		}
	}
}

func processQuery(ctx context.Context, job jobmodel.Job, sess *rag.Session, log *logger_i.Logger) jobmodel.Job {
	job.CurrentStep = jobmodel.RAGCall
	asked := time.Now().UTC()
	reply := _ragService.Ask(ctx, sess, job.JobPayload.Question)

	job.JobPayload.Answer = reply.Text
	job.JobPayload.AnsweredAt = reply.Timestamp
	job.JobPayload.Grounded = reply.Grounded
	job.JobPayload.Cached = reply.Cached
	job.JobPayload.Sources = sourceLabels(reply.Sources)

	job.CurrentStep = jobmodel.HistoryCall
	if reply.Recorded {
		err := _jobService.MessageStore.AppendTurns(ctx, job.SessionId,
			commonModels.Turn{Role: commonModels.RoleUser, Content: job.JobPayload.Question, Timestamp: asked},
			commonModels.Turn{Role: commonModels.RoleAssistant, Content: reply.Text, Timestamp: reply.Timestamp},
		)
		switch {
		case errors.Is(err, store.ErrUnknownSession):
			log.Warn("History not persisted, session unknown to message store")
		case err != nil:
			log.Error("Failed to save chat history", "err", err)
		}
	} else {
		log.Info("History reset while answering, turns not persisted")
	}

	events.Emit(ctx, _jobService.Events, config.NatsSubjectAnswered, events.Event{
		SessionId: job.SessionId,
		JobId:     job.Id,
		Data: map[string]any{
			"grounded": reply.Grounded,
			"cached":   reply.Cached,
			"sources":  len(reply.Sources),
		},
	})
	return job
}

func sourceLabels(segments []commonModels.Segment) []string {
	if len(segments) == 0 {
		return nil
	}
	labels := make([]string, 0, len(segments))
	for _, s := range segments {
		labels = append(labels, fmt.Sprintf("%s (segment %d of %d)", s.Source, s.Position+1, s.TotalSegments))
	}
	return labels
}

func failJob(job jobmodel.Job, code int, err error, retry bool) jobmodel.Job {
	job.Status = jobmodel.JobStatusError
	job.Error = jobmodel.JobError{Code: code, Message: err.Error(), Retry: retry}
	return job
}

func saveJobState(ctx context.Context, job jobmodel.Job, jobStatus jobmodel.JobStatus) jobmodel.Job {
	job.Status = jobStatus
	if err := _jobService.JobStore.SaveJob(ctx, job); err != nil {
		logger.Error("Failed to update job state", "jobId", job.Id, "err", err)
	}
	return job
}
