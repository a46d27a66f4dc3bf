package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Label values shared by callers.
const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"

	ModeSync  = "sync"
	ModeAsync = "async"
)

// Manager owns every Prometheus collector of the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	registry         prometheus.Registerer

	// Clustering
	analyses           *prometheus.CounterVec
	analysisDuration   prometheus.Histogram
	analysisRecords    prometheus.Histogram
	kmeansIterations   prometheus.Histogram
	selectedK          prometheus.Histogram
	lastInertia        prometheus.Gauge
	converged          *prometheus.CounterVec
	selectionReasons   *prometheus.CounterVec
	candidateFailures  prometheus.Counter
	insights           *prometheus.CounterVec
	duplicateSubmitted prometheus.Counter

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Queue
	queueSize          prometheus.Gauge
	queueCapacity      prometheus.Gauge
	queueEnqueued      prometheus.Counter
	queueDequeued      prometheus.Counter
	queueEnqueueErrors prometheus.Counter
	queueWaitLatency   prometheus.Histogram

	// Workers
	workerCount             prometheus.Gauge
	workerActiveCount       prometheus.Gauge
	workerProcessingLatency prometheus.Histogram
	workerErrors            prometheus.Counter

	// Result store and notifications
	storeResults  prometheus.Gauge
	storeLatency  *prometheus.HistogramVec
	storeErrors   *prometheus.CounterVec
	notifications *prometheus.CounterVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // metrics registry

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a metrics manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "spendseg",
		subsystem:        "segmentation",
		histogramBuckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000},
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

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help,
	}, labels)
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help,
	})
}

func (m *Manager) histogram(name, help string, buckets []float64) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, Buckets: buckets,
	})
}

func (m *Manager) histogramVec(name, help string, buckets []float64, labels ...string) *prometheus.HistogramVec {
	return promauto.With(m.registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, Buckets: buckets,
	}, labels)
}

func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every collector
	lat := m.histogramBuckets

	m.analyses = m.counterVec("analyses_total", "Analyses run, by outcome and submission mode", "outcome", "mode")
	m.analysisDuration = m.histogram("analysis_duration_milliseconds", "End-to-end analysis duration in milliseconds", lat)
	m.analysisRecords = m.histogram("analysis_records", "Transactions per analysis",
		prometheus.ExponentialBuckets(5, 2, 12))
	m.kmeansIterations = m.histogram("kmeans_iterations", "Iterations used by the final k-means run",
		[]float64{1, 2, 5, 10, 20, 50, 100, 200, 300})
	m.selectedK = m.histogram("selected_k", "Cluster count used per analysis",
		prometheus.LinearBuckets(1, 1, 10))
	m.lastInertia = m.gauge("last_inertia", "Inertia of the most recent analysis")
	m.converged = m.counterVec("kmeans_runs_total", "Final k-means runs by convergence", "converged")
	m.selectionReasons = m.counterVec("k_selection_total", "Automatic k selections by reason", "reason")
	m.candidateFailures = m.counter("elbow_candidate_failures_total", "Elbow candidate runs recorded as infinite inertia")
	m.insights = m.counterVec("insights_total", "Insights emitted, by kind", "kind")
	m.duplicateSubmitted = m.counter("duplicate_submissions_total", "Asynchronous submissions answered from an earlier request ID")

	m.httpRequests = m.counterVec("http_requests_total", "HTTP requests by endpoint, method and status", "endpoint", "method", "status_code")
	m.httpRequestDuration = m.histogramVec("http_request_duration_milliseconds", "HTTP request duration in milliseconds",
		lat, "endpoint", "method", "status_code")

	m.queueSize = m.gauge("queue_size", "Analysis jobs waiting in the queue")
	m.queueCapacity = m.gauge("queue_capacity", "Maximum queue capacity")
	m.queueEnqueued = m.counter("queue_enqueue_total", "Jobs enqueued")
	m.queueDequeued = m.counter("queue_dequeue_total", "Jobs dequeued")
	m.queueEnqueueErrors = m.counter("queue_enqueue_errors_total", "Jobs rejected by a full or closed queue")
	m.queueWaitLatency = m.histogram("queue_wait_latency_milliseconds", "Time jobs spent queued in milliseconds", lat)

	m.workerCount = m.gauge("worker_count", "Configured analysis workers")
	m.workerActiveCount = m.gauge("worker_active_count", "Workers currently running an analysis")
	m.workerProcessingLatency = m.histogram("worker_processing_latency_milliseconds", "Job processing time in milliseconds", lat)
	m.workerErrors = m.counter("worker_errors_total", "Jobs that failed in a worker")

	m.storeResults = m.gauge("store_results", "Results held by the result store")
	m.storeLatency = m.histogramVec("store_operation_latency_milliseconds", "Result store latency in milliseconds", lat, "op")
	m.storeErrors = m.counterVec("store_errors_total", "Result store failures by operation", "op")
	m.notifications = m.counterVec("notifications_total", "Completion notifications by outcome", "outcome")

	m.systemMemoryUsage = m.gauge("system_memory_usage_bytes", "Heap bytes allocated")
	m.systemGoroutineCount = m.gauge("system_goroutine_count", "Number of goroutines")
	m.systemGCPauseTime = m.histogram("system_gc_pause_time_milliseconds", "Average GC pause in milliseconds",
		[]float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000})
}

// Clustering.

// RecordAnalysis counts one analysis attempt.
func RecordAnalysis(outcome, mode string) {
	globalManager.analyses.WithLabelValues(outcome, mode).Inc()
}

// RecordAnalysisDuration records the duration of a successful analysis.
func RecordAnalysisDuration(durationMs float64) {
	globalManager.analysisDuration.Observe(durationMs)
}

// RecordAnalysisRecords records how many transactions an analysis clustered.
func RecordAnalysisRecords(n int) {
	globalManager.analysisRecords.Observe(float64(n))
}

// RecordKMeansRun records the final run of an analysis.
func RecordKMeansRun(k, iterations int, inertia float64, converged bool) {
	globalManager.selectedK.Observe(float64(k))
	globalManager.kmeansIterations.Observe(float64(iterations))
	globalManager.lastInertia.Set(inertia)
	label := "false"
	if converged {
		label = "true"
	}
	globalManager.converged.WithLabelValues(label).Inc()
}

// RecordSelection counts an automatic k selection and its failed candidates.
func RecordSelection(reason string, failedCandidates int) {
	globalManager.selectionReasons.WithLabelValues(reason).Inc()
	globalManager.candidateFailures.Add(float64(failedCandidates))
}

// RecordInsight counts one emitted insight.
func RecordInsight(kind string) {
	globalManager.insights.WithLabelValues(kind).Inc()
}

// RecordDuplicateSubmission counts an idempotent resubmission.
func RecordDuplicateSubmission() {
	globalManager.duplicateSubmitted.Inc()
}

// HTTP.

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration in milliseconds.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, durationMs float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(durationMs)
}

// Queue.

// UpdateQueueSize sets the current queue length.
func UpdateQueueSize(size int) {
	globalManager.queueSize.Set(float64(size))
}

// UpdateQueueCapacity sets the maximum queue capacity.
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

// RecordQueueEnqueueError increments the enqueue error counter.
func RecordQueueEnqueueError() {
	globalManager.queueEnqueueErrors.Inc()
}

// RecordQueueWaitLatency records how long a job waited in the queue.
func RecordQueueWaitLatency(latencyMs float64) {
	globalManager.queueWaitLatency.Observe(latencyMs)
}

// Workers.

// UpdateWorkerCount sets the configured worker count.
func UpdateWorkerCount(count int) {
	globalManager.workerCount.Set(float64(count))
}

// UpdateWorkerActiveCount sets the number of busy workers.
func UpdateWorkerActiveCount(count int) {
	globalManager.workerActiveCount.Set(float64(count))
}

// RecordWorkerProcessingLatency records job processing time.
func RecordWorkerProcessingLatency(latencyMs float64) {
	globalManager.workerProcessingLatency.Observe(latencyMs)
}

// RecordWorkerError increments the worker error counter.
func RecordWorkerError() {
	globalManager.workerErrors.Inc()
}

// Store and notifications.

// UpdateStoreResults sets the number of stored results.
func UpdateStoreResults(count int) {
	globalManager.storeResults.Set(float64(count))
}

// RecordStoreLatency records a result store operation.
func RecordStoreLatency(op string, latencyMs float64) {
	globalManager.storeLatency.WithLabelValues(op).Observe(latencyMs)
}

// RecordStoreError counts a failed result store operation.
func RecordStoreError(op string) {
	globalManager.storeErrors.WithLabelValues(op).Inc()
}

// RecordNotification counts a completion notification attempt.
func RecordNotification(outcome string) {
	globalManager.notifications.WithLabelValues(outcome).Inc()
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

// RecordSystemGCPauseTime records an average GC pause in milliseconds.
func RecordSystemGCPauseTime(pauseMs float64) {
	globalManager.systemGCPauseTime.Observe(pauseMs)
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
