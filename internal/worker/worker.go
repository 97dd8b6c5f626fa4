package worker

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/akolanti/PDFChat/internal/config"
	"github.com/akolanti/PDFChat/internal/job"
	"github.com/akolanti/PDFChat/internal/metrics"
	"github.com/akolanti/PDFChat/internal/rag"
	"github.com/akolanti/PDFChat/pkg/logger_i"
)

// The pool grows on dispatcher signals up to maxWorkerCount and shrinks back
// to minWorkerCount as workers sit idle. Every query or upload job holds one
// worker for its whole embed and generate round trip.
var (
	_jobService        *job.Service
	_ragService        rag.Service
	stopWorkerChannel  chan bool
	workerWaitGroup    *sync.WaitGroup
	dispatcherChannel  chan bool
	currentWorkerCount int64
	logger             *logger_i.Logger
	minWorkerCount     = config.MinWorkerCount
	maxWorkerCount     = config.MaxWorkerCount
	idleWorkerTimeout  = config.IdleWorkerTimeout
)

func InitServices(jobService *job.Service) {
	_jobService = jobService
	_ragService = jobService.Rag
	dispatcherChannel = jobService.DispatcherChannel
}

func InitWorkerPool(stopWorkerChan chan bool, waitGroup *sync.WaitGroup) {
	stopWorkerChannel = stopWorkerChan
	workerWaitGroup = waitGroup
	logger = logger_i.NewLogger("WorkerPool")
	logger.Info("Initializing worker pool", "min", minWorkerCount, "max", maxWorkerCount)
	go dispatcher()
}

// ActiveWorkers reports the current pool size.
func ActiveWorkers() int64 {
	return atomic.LoadInt64(&currentWorkerCount)
}

func dispatcher() {
	for i := int64(0); i < max(minWorkerCount, 1); i++ {
		createWorker()
	}
	logger.Info("Dispatcher started", "workerCount", ActiveWorkers())
	for range dispatcherChannel {
		if ActiveWorkers() >= maxWorkerCount {
			logger.Debug("Pool at capacity, job waits for a free worker", "workerCount", ActiveWorkers())
			continue
		}
		createWorker()
	}
}

func createWorker() {
	workerWaitGroup.Add(1)
	n := atomic.AddInt64(&currentWorkerCount, 1)
	metrics.IncrementActiveWorkerCount()
	go worker()
	logger.Debug("Created new worker", "workerCount", n)
}

func worker() {
	idle := time.NewTimer(idleWorkerTimeout)
	defer idle.Stop()
	for {
		select {
		case currentJob := <-_jobService.JobChannel:
			metrics.DecrementJobsInQueue(string(currentJob.JobType))
			executeJob(currentJob)
			resetTimer(idle, idleWorkerTimeout)

		case <-stopWorkerChannel:
			removeWorker("Stop worker signal received", false)
			return

		case <-idle.C:
			if tryRetire() {
				removeWorker("Idle worker timeout", true)
				return
			}
			idle.Reset(idleWorkerTimeout)
		}
	}
}

// tryRetire claims one slot above the pool floor.
func tryRetire() bool {
	for {
		current := atomic.LoadInt64(&currentWorkerCount)
		if current <= atomic.LoadInt64(&minWorkerCount) {
			return false
		}
		if atomic.CompareAndSwapInt64(&currentWorkerCount, current, current-1) {
			return true
		}
	}
}

func resetTimer(t *time.Timer, d time.Duration) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
	t.Reset(d)
}
