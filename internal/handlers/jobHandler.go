package handlers

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/akolanti/PDFChat/internal/config"
	"github.com/akolanti/PDFChat/internal/domain/jobModel"
	"github.com/akolanti/PDFChat/internal/job"
	"github.com/akolanti/PDFChat/internal/metrics"
	"github.com/akolanti/PDFChat/internal/rag"
	"github.com/akolanti/PDFChat/pkg/logger_i"
)

var (
	handlerInstance *JobHandler //private singleton
	once            sync.Once
	logJH           *logger_i.Logger
)

var errQueueFull = errors.New("job queue is full")

type JobHandler struct {
	service *job.Service
}

func InitJobHandler(jobService *job.Service) {
	once.Do(func() {
		logJH = logger_i.NewLogger("JobHandler")
		logRH = logger_i.NewLogger("RequestHandler")
		logJH.Info("Starting job handler")
	})
	handlerInstance = &JobHandler{service: jobService}
}

// CreateNewJob records the job as queued and hands it to the worker pool.
func CreateNewJob(ctx context.Context, newJob newJobData) error {
	logJH.WithContext(ctx).Debug("To create new job", "jobId", newJob.id, "ingest", newJob.isDocumentIngest)
	return handlerInstance.pushToJobChannel(ctx, newJob)
}

func GetJobStatus(ctx context.Context, id string) (result jobModel.Job, isFound bool) {
	if handlerInstance != nil {
		return handlerInstance.service.JobStore.GetJob(ctx, id)
	}
	return result, false
}

func lookupSession(id string) (*rag.Session, bool) {
	if handlerInstance == nil || id == "" {
		return nil, false
	}
	return handlerInstance.service.Sessions.Get(id)
}

func createSession(ctx context.Context) (*rag.Session, error) {
	sess := handlerInstance.service.Sessions.Create()
	if err := handlerInstance.service.MessageStore.InitNewSession(ctx, sess.Id()); err != nil {
		handlerInstance.service.Sessions.Delete(sess.Id())
		return nil, err
	}
	return sess, nil
}

func deleteSession(ctx context.Context, id string) bool {
	sess, ok := handlerInstance.service.Sessions.Delete(id)
	if !ok {
		return false
	}
	handlerInstance.service.TeardownSession(ctx, sess)
	return true
}

// private methods
func (h *JobHandler) pushToJobChannel(ctx context.Context, newJob newJobData) error {

	_job := jobModel.Job{
		Id:          newJob.id,
		SessionId:   newJob.sessionId,
		CreatedTime: time.Now(),
		TraceId:     newJob.traceId,
		Status:      jobModel.JobStatusQueued,
	}

	if newJob.isDocumentIngest {
		_job.CurrentStep = jobModel.IngestInit
		_job.JobType = jobModel.JobTypeIngest
		_job.JobPayload.IngestFiles = newJob.files
	} else {
		_job.JobType = jobModel.JobTypeQuery
		_job.JobPayload.Question = newJob.message
		_job.CurrentStep = jobModel.UserQueryInit
	}

	if err := h.service.JobStore.SaveJob(ctx, _job); err != nil {
		logJH.WithContext(ctx).Error("Could not record queued job", "jobId", _job.Id, "error", err)
	}

	//this is a blocking send to prevent the system from being overwhelmed
	metrics.IncrementJobsInQueue(string(_job.JobType))
	select {
	case h.service.JobChannel <- _job:
	case <-ctx.Done():
		metrics.DecrementJobsInQueue(string(_job.JobType))
		return errQueueFull
	}
	logJH.WithContext(ctx).Debug("Created new job", "jobId", _job.Id)

	//a new worker every RequestsPerNewWorkerCount requests, and one for every upload
	//since ingestion holds its worker for the embedding round trips.
	//idle workers retire on their own
	accurateCount := atomic.AddInt64(&h.service.RequestCount, 1)
	if accurateCount%config.RequestsPerNewWorkerCount == 0 || _job.JobType == jobModel.JobTypeIngest {
		select {
		case h.service.DispatcherChannel <- true:
			metrics.StartDispatcherSignalCount()
		default:
		}
	}
	return nil
}
