// Package metrics provides Prometheus metrics for the groupsplit service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns every Prometheus collector used by groupsplit.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	registry         prometheus.Registerer

	// Candidate pipeline
	candidatesGenerated  prometheus.Counter
	candidatesSuppressed prometheus.Counter
	candidatesScored     prometheus.Counter
	candidatesDuplicate  prometheus.Counter

	// Picking
	picks        *prometheus.CounterVec
	pickDuration prometheus.Histogram
	bestScore    prometheus.Gauge

	// History store
	historySize  prometheus.Gauge
	storeLatency *prometheus.HistogramVec
	storeErrors  *prometheus.CounterVec

	// Parallel scoring
	queueSize               prometheus.Gauge
	queueCapacity           prometheus.Gauge
	queueEnqueued           prometheus.Counter
	queueDequeued           prometheus.Counter
	workerActiveCount       prometheus.Gauge
	workerProcessingLatency prometheus.Histogram

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	errorsByComponent *prometheus.CounterVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
}

// Latency buckets in milliseconds, 10µs to about 2.6s.
const (
	latencyBucketStart  = 0.01
	latencyBucketFactor = 4
	latencyBucketCount  = 10
)

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a metrics manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "groupsplit",
		subsystem:        "picker",
		histogramBuckets: prometheus.ExponentialBuckets(latencyBucketStart, latencyBucketFactor, latencyBucketCount),
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

func (m *Manager) counter(name, help string) prometheus.Counter {
	return promauto.With(m.registry).NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help,
	})
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help,
	})
}

func (m *Manager) histogram(name, help string) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help,
		Buckets: m.histogramBuckets,
	})
}

func (m *Manager) initializeMetrics() {
	auto := promauto.With(m.registry)

	m.candidatesGenerated = m.counter("candidates_generated_total", "Candidate occurrences emitted by the generator")
	m.candidatesSuppressed = m.counter("candidates_suppressed_total", "Candidate occurrences dropped by exempt meetings")
	m.candidatesScored = m.counter("candidates_scored_total", "Candidate occurrences scored by the picker")
	m.candidatesDuplicate = m.counter("candidates_duplicate_total", "Candidate occurrences skipped as already-scored partitions")

	m.picks = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "picks_total",
		Help: "Picks by outcome (selected or empty)",
	}, []string{"outcome"})
	m.pickDuration = m.histogram("pick_duration_milliseconds", "Time spent generating and scoring candidates for one pick")
	m.bestScore = m.gauge("best_score", "Score of the most recently selected occurrence")

	m.historySize = m.gauge("history_occurrences", "Occurrences currently stored in history")
	m.storeLatency = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name:    "store_latency_milliseconds",
		Help:    "History store operation latency",
		Buckets: m.histogramBuckets,
	}, []string{"backend", "op"})
	m.storeErrors = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "store_errors_total",
		Help: "History store operation failures",
	}, []string{"backend", "op"})

	m.queueSize = m.gauge("queue_size", "Candidates waiting to be scored")
	m.queueCapacity = m.gauge("queue_capacity", "Capacity of the candidate queue")
	m.queueEnqueued = m.counter("queue_enqueued_total", "Candidates placed on the queue")
	m.queueDequeued = m.counter("queue_dequeued_total", "Candidates taken off the queue")
	m.workerActiveCount = m.gauge("worker_active_count", "Scoring workers currently running")
	m.workerProcessingLatency = m.histogram("worker_processing_latency_milliseconds", "Time a worker spends scoring one candidate")

	m.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "http_requests_total",
		Help: "Total number of HTTP requests by endpoint and method",
	}, []string{"endpoint", "method", "status_code"})
	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name:    "http_request_duration_milliseconds",
		Help:    "HTTP request duration in milliseconds",
		Buckets: m.histogramBuckets,
	}, []string{"endpoint", "method", "status_code"})

	m.errorsByComponent = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "errors_total",
		Help: "Errors by component and type",
	}, []string{"component", "error_type"})

	m.systemMemoryUsage = m.gauge("system_memory_bytes", "Heap bytes allocated")
	m.systemGoroutineCount = m.gauge("system_goroutines", "Number of goroutines")
}

// Candidate pipeline.

// AddCandidatesGenerated adds n emitted candidates.
func AddCandidatesGenerated(n int) {
	globalManager.candidatesGenerated.Add(float64(n))
}

// AddCandidatesSuppressed adds n candidates dropped by exempt meetings.
func AddCandidatesSuppressed(n int) {
	globalManager.candidatesSuppressed.Add(float64(n))
}

// AddCandidatesScored adds n scored candidates.
func AddCandidatesScored(n int) {
	globalManager.candidatesScored.Add(float64(n))
}

// AddCandidatesDuplicate adds n candidates skipped as duplicates.
func AddCandidatesDuplicate(n int) {
	globalManager.candidatesDuplicate.Add(float64(n))
}

// Picking.

// RecordPick counts a pick with its outcome ("selected" or "empty").
func RecordPick(outcome string) {
	globalManager.picks.WithLabelValues(outcome).Inc()
}

// RecordPickDuration records how long a pick took.
func RecordPickDuration(durationMs float64) {
	globalManager.pickDuration.Observe(durationMs)
}

// UpdateBestScore sets the score of the latest winner.
func UpdateBestScore(score float64) {
	globalManager.bestScore.Set(score)
}

// History store.

// UpdateHistorySize sets the number of stored occurrences.
func UpdateHistorySize(count int) {
	globalManager.historySize.Set(float64(count))
}

// RecordStoreLatency records a store operation latency.
func RecordStoreLatency(backend, op string, latencyMs float64) {
	globalManager.storeLatency.WithLabelValues(backend, op).Observe(latencyMs)
}

// RecordStoreError counts a failed store operation.
func RecordStoreError(backend, op string) {
	globalManager.storeErrors.WithLabelValues(backend, op).Inc()
}

// Parallel scoring.

// UpdateQueueSize sets the number of queued candidates.
func UpdateQueueSize(size int) {
	globalManager.queueSize.Set(float64(size))
}

// UpdateQueueCapacity sets the candidate queue capacity.
func UpdateQueueCapacity(capacity int) {
	globalManager.queueCapacity.Set(float64(capacity))
}

// RecordQueueEnqueue increments the enqueue counter.
func RecordQueueEnqueue() {
	globalManager.queueEnqueued.Inc()
}

// RecordQueueDequeue increments the dequeue counter.
func RecordQueueDequeue() {
	globalManager.queueDequeued.Inc()
}

// UpdateWorkerActiveCount sets the number of running workers.
func UpdateWorkerActiveCount(count int) {
	globalManager.workerActiveCount.Set(float64(count))
}

// RecordWorkerProcessingLatency records how long one candidate took to score.
func RecordWorkerProcessingLatency(latencyMs float64) {
	globalManager.workerProcessingLatency.Observe(latencyMs)
}

// HTTP.

// RecordHTTPRequest increments the HTTP request counter.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorsByComponent.WithLabelValues(component, errorType).Inc()
}

// System.

// UpdateSystemMemoryUsage sets the heap allocation in bytes.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
