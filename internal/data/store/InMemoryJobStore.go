package store

import (
	"context"
	"sync"
	"time"

	"github.com/akolanti/PDFChat/internal/config"
	"github.com/akolanti/PDFChat/internal/domain/jobModel"
	"github.com/akolanti/PDFChat/pkg/logger_i"
)

var inMemLogger = sync.OnceValue(func() *logger_i.Logger { return logger_i.NewLogger("InMem Store") })

type storedJob struct {
	job     jobModel.Job
	savedAt time.Time
}

// InMemoryJobStore is the fallback when redis is offline. Entries expire like
// their redis counterparts, after ttl without a save.
type InMemoryJobStore struct {
	jobMutex sync.RWMutex
	jobMap   map[string]storedJob
	ttl      time.Duration
	now      func() time.Time
}

var _ jobModel.JobStore = (*InMemoryJobStore)(nil)

func InitInMemoryJobStore() *InMemoryJobStore {
	return NewInMemoryJobStore(config.RedisJobStoreTTL, time.Now)
}

// NewInMemoryJobStore takes the expiry and the clock explicitly. ttl <= 0
// keeps jobs forever.
func NewInMemoryJobStore(ttl time.Duration, now func() time.Time) *InMemoryJobStore {
	return &InMemoryJobStore{
		jobMap: make(map[string]storedJob),
		ttl:    ttl,
		now:    now,
	}
}

func (store *InMemoryJobStore) SaveJob(ctx context.Context, job jobModel.Job) error {
	store.jobMutex.Lock()
	defer store.jobMutex.Unlock()

	now := store.now()
	store.jobMap[job.Id] = storedJob{job: job, savedAt: now}
	store.purgeLocked(now)
	inMemLogger().WithContext(ctx).Debug("Saved job to store", "jobId", job.Id, "status", job.Status)
	return nil
}

func (store *InMemoryJobStore) GetJob(ctx context.Context, jobId string) (jobModel.Job, bool) {
	store.jobMutex.RLock()
	entry, found := store.jobMap[jobId]
	store.jobMutex.RUnlock()

	if found && store.expired(entry, store.now()) {
		found = false
	}
	inMemLogger().WithContext(ctx).Debug("Job lookup", "jobId", jobId, "found", found)
	if !found {
		return jobModel.Job{}, false
	}
	return entry.job, true
}

func (store *InMemoryJobStore) DeleteJob(ctx context.Context, jobID string) {
	store.jobMutex.Lock()
	defer store.jobMutex.Unlock()
	delete(store.jobMap, jobID)
}

func (store *InMemoryJobStore) expired(entry storedJob, now time.Time) bool {
	return store.ttl > 0 && now.Sub(entry.savedAt) > store.ttl
}

// purgeLocked drops expired jobs. Caller holds the write lock.
func (store *InMemoryJobStore) purgeLocked(now time.Time) {
	for id, entry := range store.jobMap {
		if store.expired(entry, now) {
			delete(store.jobMap, id)
		}
	}
}
