package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "pdfchat"

var HttpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Name:      "http_requests_total",
	Help:      "Total number of requests labelled by route pattern and status",
}, []string{"path", "status"})

var jobsInQueue = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Namespace: namespace,
	Name:      "jobs_in_queue",
	Help:      "Jobs waiting for a worker, by job type",
}, []string{"type"})

var dispatcherSignals = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: namespace,
	Name:      "dispatcher_signals_total",
	Help:      "How often the dispatcher was asked to start a worker",
})

var activeWorkerCount = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: namespace,
	Name:      "active_workers",
	Help:      "Number of live workers in the pool",
})

var activeSessions = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: namespace,
	Name:      "active_sessions",
	Help:      "Number of live chat sessions",
})

var filesIngested = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Name:      "files_ingested_total",
	Help:      "Uploaded files labelled by outcome",
}, []string{"outcome"})

var answersTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Name:      "answers_total",
	Help:      "Answers produced labelled by source: generated, cached, empty or unavailable",
}, []string{"source"})

var jobDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: namespace,
	Name:      "job_duration_seconds",
	Help:      "Time a job held its worker, by job type and final status.",
	Buckets:   []float64{.1, .5, 1, 2, 5, 10, 30, 60, 120, 300, 600},
}, []string{"type", "status"})

var dependencyLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: namespace,
	Name:      "dependency_latency_seconds",
	Help:      "Latency of pipeline stages and external calls.",
	Buckets:   []float64{.005, .05, .1, .25, .5, 1, 2, 5, 10, 30},
}, []string{"stage"})

// HttpStatusRecorder remembers the status written by a handler.
type HttpStatusRecorder struct {
	http.ResponseWriter
	Status int
}

func (r *HttpStatusRecorder) WriteHeader(code int) {
	r.Status = code
	r.ResponseWriter.WriteHeader(code)
}

func IncrementJobsInQueue(jobType string) {
	jobsInQueue.WithLabelValues(jobType).Inc()
}

func DecrementJobsInQueue(jobType string) {
	jobsInQueue.WithLabelValues(jobType).Dec()
}

func StartDispatcherSignalCount() {
	dispatcherSignals.Inc()
}

func IncrementActiveWorkerCount() {
	activeWorkerCount.Inc()
}

func DecrementActiveWorkerCount() {
	activeWorkerCount.Dec()
}

func SetActiveSessions(n int) {
	activeSessions.Set(float64(n))
}

func CaptureFileOutcome(processed bool) {
	if processed {
		filesIngested.WithLabelValues("processed").Inc()
		return
	}
	filesIngested.WithLabelValues("rejected").Inc()
}

func CaptureAnswer(source string) {
	answersTotal.WithLabelValues(source).Inc()
}

func CaptureExecutionMetrics(stage string, timeElapsed time.Duration) {
	dependencyLatency.WithLabelValues(stage).Observe(timeElapsed.Seconds())
}

func CaptureJobMetrics(jobType, status string, timeElapsed time.Duration) {
	jobDuration.WithLabelValues(jobType, status).Observe(timeElapsed.Seconds())
}
