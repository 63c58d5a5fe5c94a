// Package metrics provides Prometheus metrics for the APS evaluation service.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Bucket layouts for the domain histograms.
var (
	confidenceBuckets = []float64{40, 45, 50, 60, 75, 85, 90, 92, 95, 100}                   //nolint:gochecknoglobals // fixed bucket layout
	apsBuckets        = prometheus.LinearBuckets(6, 3, 13)                                  //nolint:gochecknoglobals // 6..42, the NSC APS range
	latencyBuckets    = []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 25, 50, 100, 250, 500, 1000} //nolint:gochecknoglobals // milliseconds
)

// Manager manages all Prometheus metrics for the APS service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	constLabels      prometheus.Labels
	registry         prometheus.Registerer

	// Evaluation metrics
	evaluations       *prometheus.CounterVec
	programChecks     *prometheus.CounterVec
	matchConfidence   prometheus.Histogram
	matchRules        *prometheus.CounterVec
	apsTotals         prometheus.Histogram
	evaluationLatency prometheus.Histogram
	duplicateRequests prometheus.Counter

	// HTTP metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	rateLimited         *prometheus.CounterVec

	// Queue metrics
	queueSize          prometheus.Gauge
	queueCapacity      prometheus.Gauge
	queueUtilization   prometheus.Gauge
	queueEnqueued      prometheus.Counter
	queueDequeued      prometheus.Counter
	queueEnqueueErrors prometheus.Counter

	// Worker metrics
	workerCount             prometheus.Gauge
	workerActiveCount       prometheus.Gauge
	workerProcessed         prometheus.Counter
	workerErrors            prometheus.Counter
	workerProcessingLatency prometheus.Histogram

	// Store metrics
	storeOperations *prometheus.CounterVec
	storeErrors     *prometheus.CounterVec
	storeEntries    prometheus.Gauge

	errorsByComponent *prometheus.CounterVec
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
		namespace:        "apsmatch",
		subsystem:        "service",
		histogramBuckets: latencyBuckets,
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) counter(name, help string) prometheus.CounterOpts {
	return prometheus.CounterOpts{Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels}
}

func (m *Manager) gauge(name, help string) prometheus.GaugeOpts {
	return prometheus.GaugeOpts{Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels}
}

func (m *Manager) histogram(name, help string, buckets []float64) prometheus.HistogramOpts {
	return prometheus.HistogramOpts{Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, Buckets: buckets, ConstLabels: m.constLabels}
}

func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every metric definition
	auto := promauto.With(m.registry)

	m.evaluations = auto.NewCounterVec(m.counter("evaluations_total", "Evaluations finished, by status"), []string{"status"})
	m.programChecks = auto.NewCounterVec(m.counter("program_checks_total", "Program requirement checks, by verdict"), []string{"verdict"})
	m.matchConfidence = auto.NewHistogram(m.histogram("match_confidence", "Confidence of accepted subject matches", confidenceBuckets))
	m.matchRules = auto.NewCounterVec(m.counter("match_rules_total", "Subject matches by the rule that decided them"), []string{"rule"})
	m.apsTotals = auto.NewHistogram(m.histogram("aps_total", "Distribution of computed APS totals", apsBuckets))
	m.evaluationLatency = auto.NewHistogram(m.histogram("evaluation_latency_milliseconds", "Time from submission to stored result", m.histogramBuckets))
	m.duplicateRequests = auto.NewCounter(m.counter("duplicate_submissions_total", "Submissions answered from an existing request id"))

	m.httpRequests = auto.NewCounterVec(m.counter("http_requests_total", "HTTP requests by endpoint, method and status"),
		[]string{"endpoint", "method", "status_code"})
	m.httpRequestDuration = auto.NewHistogramVec(m.histogram("http_request_duration_milliseconds", "HTTP request duration in milliseconds", m.histogramBuckets),
		[]string{"endpoint", "method", "status_code"})
	m.rateLimited = auto.NewCounterVec(m.counter("rate_limited_total", "Requests rejected by the rate limiter"), []string{"endpoint"})

	m.queueSize = auto.NewGauge(m.gauge("queue_size", "Jobs waiting in the evaluation queue"))
	m.queueCapacity = auto.NewGauge(m.gauge("queue_capacity", "Maximum evaluation queue capacity"))
	m.queueUtilization = auto.NewGauge(m.gauge("queue_utilization_ratio", "Queue size divided by capacity"))
	m.queueEnqueued = auto.NewCounter(m.counter("queue_enqueued_total", "Jobs accepted by the queue"))
	m.queueDequeued = auto.NewCounter(m.counter("queue_dequeued_total", "Jobs taken off the queue by workers"))
	m.queueEnqueueErrors = auto.NewCounter(m.counter("queue_enqueue_errors_total", "Jobs rejected by the queue"))

	m.workerCount = auto.NewGauge(m.gauge("worker_count", "Configured evaluation workers"))
	m.workerActiveCount = auto.NewGauge(m.gauge("worker_active_count", "Workers currently running"))
	m.workerProcessed = auto.NewCounter(m.counter("worker_processed_total", "Jobs processed by workers"))
	m.workerErrors = auto.NewCounter(m.counter("worker_errors_total", "Jobs that failed inside a worker"))
	m.workerProcessingLatency = auto.NewHistogram(m.histogram("worker_processing_latency_milliseconds", "Time a worker spends on one job", m.histogramBuckets))

	m.storeOperations = auto.NewCounterVec(m.counter("store_operations_total", "Result store operations"), []string{"backend", "operation"})
	m.storeErrors = auto.NewCounterVec(m.counter("store_errors_total", "Result store operation failures"), []string{"backend", "operation"})
	m.storeEntries = auto.NewGauge(m.gauge("store_entries", "Evaluations held by the result store"))

	m.errorsByComponent = auto.NewCounterVec(m.counter("errors_by_component_total", "Errors by component and type"), []string{"component", "error_type"})
}

// Evaluation metrics.

// RecordEvaluation counts a finished evaluation by status (completed, failed).
func RecordEvaluation(status string) {
	globalManager.evaluations.WithLabelValues(status).Inc()
}

// RecordProgramCheck counts one program verdict.
func RecordProgramCheck(eligible bool) {
	verdict := "ineligible"
	if eligible {
		verdict = "eligible"
	}
	globalManager.programChecks.WithLabelValues(verdict).Inc()
}

// RecordMatch records an accepted subject match.
func RecordMatch(rule string, confidence int) {
	globalManager.matchRules.WithLabelValues(rule).Inc()
	globalManager.matchConfidence.Observe(float64(confidence))
}

// RecordAPSTotal records a computed APS total.
func RecordAPSTotal(total int) {
	globalManager.apsTotals.Observe(float64(total))
}

// RecordEvaluationLatency records submission-to-result latency.
func RecordEvaluationLatency(latencyMs float64) {
	globalManager.evaluationLatency.Observe(latencyMs)
}

// RecordDuplicateSubmission counts a submission answered from its request id.
func RecordDuplicateSubmission() {
	globalManager.duplicateRequests.Inc()
}

// HTTP metrics.

// RecordHTTPRequest counts a served HTTP request.
func RecordHTTPRequest(endpoint, method string, statusCode int) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, strconv.Itoa(statusCode)).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration in milliseconds.
func RecordHTTPRequestDuration(endpoint, method string, statusCode int, durationMs float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, strconv.Itoa(statusCode)).Observe(durationMs)
}

// RecordRateLimited counts a request rejected by the rate limiter.
func RecordRateLimited(endpoint string) {
	globalManager.rateLimited.WithLabelValues(endpoint).Inc()
}

// Queue metrics.

// UpdateQueueSize sets the current queue length.
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

// Worker metrics.

// UpdateWorkerCount sets the configured worker count.
func UpdateWorkerCount(count int) {
	globalManager.workerCount.Set(float64(count))
}

// UpdateWorkerActiveCount sets the number of running workers.
func UpdateWorkerActiveCount(count int) {
	globalManager.workerActiveCount.Set(float64(count))
}

// RecordWorkerProcessed counts a job a worker finished.
func RecordWorkerProcessed() {
	globalManager.workerProcessed.Inc()
}

// RecordWorkerError increments the worker error counter.
func RecordWorkerError() {
	globalManager.workerErrors.Inc()
}

// RecordWorkerProcessingLatency records worker processing latency.
func RecordWorkerProcessingLatency(latencyMs float64) {
	globalManager.workerProcessingLatency.Observe(latencyMs)
}

// Store metrics.

// RecordStoreOperation counts a store operation.
func RecordStoreOperation(backend, operation string) {
	globalManager.storeOperations.WithLabelValues(backend, operation).Inc()
}

// RecordStoreError counts a failed store operation.
func RecordStoreError(backend, operation string) {
	globalManager.storeErrors.WithLabelValues(backend, operation).Inc()
}

// UpdateStoreEntries sets the number of evaluations held by the store.
func UpdateStoreEntries(count int) {
	globalManager.storeEntries.Set(float64(count))
}

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorsByComponent.WithLabelValues(component, errorType).Inc()
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
