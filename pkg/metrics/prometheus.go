// Package metrics provides Prometheus metrics for the eventrank recommendation service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns every Prometheus collector exported by the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	enabled          bool
	registry         prometheus.Registerer

	// Embedding service calls
	embeddingRequests *prometheus.CounterVec
	embeddingRetries  prometheus.Counter
	embeddingLatency  prometheus.Histogram

	// Embedding cache
	cacheOperations *prometheus.CounterVec

	// Recommendation pipeline
	recommendations      prometheus.Counter
	recommendLatency     prometheus.Histogram
	candidatesScored     prometheus.Counter
	degradedScores       *prometheus.CounterVec
	diagnosticRuns       prometheus.Counter
	embeddingJobsDup     prometheus.Counter
	embeddingJobsApplied prometheus.Counter

	// Queue
	queueSize          prometheus.Gauge
	queueCapacity      prometheus.Gauge
	queueUtilization   prometheus.Gauge
	queueEnqueued      prometheus.Counter
	queueDequeued      prometheus.Counter
	queueEnqueueErrors prometheus.Counter

	// Workers
	workerCount             prometheus.Gauge
	workerProcessingLatency prometheus.Histogram
	workerErrors            prometheus.Counter

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Errors
	errorsByComponent *prometheus.CounterVec

	// Runtime
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "eventrank",
		subsystem:        "recommender",
		histogramBuckets: prometheus.DefBuckets,
		enabled:          true,
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
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      name,
		Help:      help,
	})
}

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      name,
		Help:      help,
	}, labels)
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      name,
		Help:      help,
	})
}

func (m *Manager) histogram(name, help string, buckets []float64) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      name,
		Help:      help,
		Buckets:   buckets,
	})
}

func (m *Manager) initializeMetrics() {
	m.embeddingRequests = m.counterVec("embedding_requests_total",
		"Embedding service calls by final outcome", "outcome")
	m.embeddingRetries = m.counter("embedding_retries_total",
		"Embedding service retry attempts after transient failures")
	m.embeddingLatency = m.histogram("embedding_latency_milliseconds",
		"Embedding call latency in milliseconds including retries", m.histogramBuckets)

	m.cacheOperations = m.counterVec("cache_operations_total",
		"Embedding cache operations by backend and result", "backend", "operation", "result")

	m.recommendations = m.counter("recommendations_total",
		"Recommendation requests served")
	m.recommendLatency = m.histogram("recommend_latency_milliseconds",
		"End-to-end recommendation latency in milliseconds", m.histogramBuckets)
	m.candidatesScored = m.counter("candidates_scored_total",
		"Candidate events scored across all requests")
	m.degradedScores = m.counterVec("degraded_scores_total",
		"Score results computed with a degraded component", "reason")
	m.diagnosticRuns = m.counter("diagnostic_runs_total",
		"Diagnostic harness runs")
	m.embeddingJobsDup = m.counter("embedding_jobs_duplicate_total",
		"Event embedding jobs dropped as duplicates")
	m.embeddingJobsApplied = m.counter("embedding_jobs_applied_total",
		"Event embedding jobs computed and written to the cache")

	m.queueSize = m.gauge("queue_size", "Current size of the embedding job queue")
	m.queueCapacity = m.gauge("queue_capacity", "Maximum queue capacity")
	m.queueUtilization = m.gauge("queue_utilization_ratio", "Queue utilization ratio (current size / capacity)")
	m.queueEnqueued = m.counter("queue_enqueue_total", "Total number of jobs enqueued")
	m.queueDequeued = m.counter("queue_dequeue_total", "Total number of jobs dequeued")
	m.queueEnqueueErrors = m.counter("queue_enqueue_errors_total", "Total number of enqueue errors")

	m.workerCount = m.gauge("worker_count", "Number of embedding workers")
	m.workerProcessingLatency = m.histogram("worker_processing_latency_milliseconds",
		"Worker job processing latency in milliseconds", m.histogramBuckets)
	m.workerErrors = m.counter("worker_errors_total", "Total number of failed worker jobs")

	m.httpRequests = m.counterVec("http_requests_total",
		"Total number of HTTP requests by endpoint and method", "endpoint", "method", "status_code")
	m.httpRequestDuration = promauto.With(m.registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "http_request_duration_milliseconds",
			Help:      "HTTP request duration in milliseconds",
			Buckets:   m.histogramBuckets,
		},
		[]string{"endpoint", "method", "status_code"},
	)

	m.errorsByComponent = m.counterVec("errors_by_component_total",
		"Total number of errors by component", "component", "error_type")

	m.systemMemoryUsage = m.gauge("system_memory_usage_bytes", "System memory usage in bytes")
	m.systemGoroutineCount = m.gauge("system_goroutine_count", "Number of goroutines")
	m.systemGCPauseTime = m.histogram("system_gc_pause_time_milliseconds", "GC pause time in milliseconds",
		[]float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000})
}

// RecordEmbeddingRequest counts one embedding call by outcome
// (success, config, transient, format, canceled).
func RecordEmbeddingRequest(outcome string, latencyMs float64) {
	if !globalManager.enabled {
		return
	}
	globalManager.embeddingRequests.WithLabelValues(outcome).Inc()
	globalManager.embeddingLatency.Observe(latencyMs)
}

// RecordEmbeddingRetry increments the retry counter.
func RecordEmbeddingRetry() {
	if !globalManager.enabled {
		return
	}
	globalManager.embeddingRetries.Inc()
}

// RecordCacheOperation counts a cache get/put with its result (hit, miss, ok, error).
func RecordCacheOperation(backend, operation, result string) {
	if !globalManager.enabled {
		return
	}
	globalManager.cacheOperations.WithLabelValues(backend, operation, result).Inc()
}

// RecordRecommendation records a served recommendation request.
func RecordRecommendation(candidates int, latencyMs float64) {
	if !globalManager.enabled {
		return
	}
	globalManager.recommendations.Inc()
	globalManager.candidatesScored.Add(float64(candidates))
	globalManager.recommendLatency.Observe(latencyMs)
}

// RecordDegradedScore counts a score result with a degraded component.
func RecordDegradedScore(reason string) {
	if !globalManager.enabled {
		return
	}
	globalManager.degradedScores.WithLabelValues(reason).Inc()
}

// RecordDiagnosticRun increments the diagnostic run counter.
func RecordDiagnosticRun() {
	if !globalManager.enabled {
		return
	}
	globalManager.diagnosticRuns.Inc()
}

// RecordEmbeddingJobDuplicate increments the duplicate job counter.
func RecordEmbeddingJobDuplicate() {
	if !globalManager.enabled {
		return
	}
	globalManager.embeddingJobsDup.Inc()
}

// RecordEmbeddingJobApplied increments the applied job counter.
func RecordEmbeddingJobApplied() {
	if !globalManager.enabled {
		return
	}
	globalManager.embeddingJobsApplied.Inc()
}

// UpdateQueueSize sets the current queue size.
func UpdateQueueSize(size int) {
	globalManager.queueSize.Set(float64(size))
}

// UpdateQueueCapacity sets the maximum queue capacity.
func UpdateQueueCapacity(capacity int) {
	globalManager.queueCapacity.Set(float64(capacity))
}

// UpdateQueueUtilization sets the queue utilization ratio.
func UpdateQueueUtilization(utilization float64) {
	globalManager.queueUtilization.Set(utilization)
}

// RecordQueueEnqueue increments the enqueue counter.
func RecordQueueEnqueue() {
	globalManager.queueEnqueued.Inc()
}

// RecordQueueDequeue increments the dequeue counter.
func RecordQueueDequeue() {
	globalManager.queueDequeued.Inc()
}

// RecordQueueEnqueueError increments the enqueue error counter.
func RecordQueueEnqueueError() {
	globalManager.queueEnqueueErrors.Inc()
}

// UpdateWorkerCount sets the current worker count.
func UpdateWorkerCount(count int) {
	globalManager.workerCount.Set(float64(count))
}

// RecordWorkerProcessingLatency records worker processing latency.
func RecordWorkerProcessingLatency(latencyMs float64) {
	globalManager.workerProcessingLatency.Observe(latencyMs)
}

// RecordWorkerError increments the worker error counter.
func RecordWorkerError() {
	globalManager.workerErrors.Inc()
}

// RecordHTTPRequest records an HTTP request.
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

// UpdateSystemMemoryUsage sets the system memory usage in bytes.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// RecordSystemGCPauseTime records GC pause time in milliseconds.
func RecordSystemGCPauseTime(pauseMs float64) {
	globalManager.systemGCPauseTime.Observe(pauseMs)
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
