// Package metrics provides Prometheus metrics for the ExamIntel plan service.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Millisecond latency buckets, 1ms to 10s.
var defaultLatencyBuckets = []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000} //nolint:gochecknoglobals

// Manager owns every collector exported by the service.
type Manager struct {
	namespace        string
	subsystem        string
	latencyBuckets []float64
	constLabels    map[string]string
	metricPrefix   string
	registry       prometheus.Registerer

	// Plan generation
	plansGenerated     prometheus.Counter
	plansFailed        *prometheus.CounterVec
	planLatency        prometheus.Histogram
	topicsRanked       prometheus.Histogram
	hoursScheduled     prometheus.Histogram
	subjectsDegraded   prometheus.Counter
	recommendationsOut *prometheus.CounterVec

	// Retrieval collaborator
	retrievalLatency  prometheus.Histogram
	retrievalErrors   *prometheus.CounterVec
	retrievalHits     prometheus.Histogram
	cacheLookups      *prometheus.CounterVec
	retrievalFallback prometheus.Counter

	// Store
	storeRecords    prometheus.Gauge
	storeOpLatency  *prometheus.HistogramVec
	storeOpFailures *prometheus.CounterVec

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	errorsByEndpoint    *prometheus.CounterVec

	// Job queue and workers
	queueSize         prometheus.Gauge
	queueCapacity     prometheus.Gauge
	queueEnqueued     prometheus.Counter
	queueDequeued     prometheus.Counter
	queueRejected     *prometheus.CounterVec
	jobsDuplicate     prometheus.Counter
	workerCount       prometheus.Gauge
	workerBusy        prometheus.Gauge
	workerJobLatency  prometheus.Histogram
	workerErrors      prometheus.Counter
	errorsByComponent *prometheus.CounterVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // shared registry for /healthz

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:      "examintel",
		subsystem:      "planner",
		latencyBuckets: defaultLatencyBuckets,
		registry:       prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) name(n string) string {
	if m.metricPrefix == "" {
		return n
	}
	return m.metricPrefix + "_" + n
}

func (m *Manager) counterOpts(name, help string) prometheus.CounterOpts {
	return prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name(name), Help: help,
		ConstLabels: m.constLabels,
	}
}

func (m *Manager) gaugeOpts(name, help string) prometheus.GaugeOpts {
	return prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name(name), Help: help,
		ConstLabels: m.constLabels,
	}
}

func (m *Manager) histogramOpts(name, help string, buckets []float64) prometheus.HistogramOpts {
	return prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name(name), Help: help,
		ConstLabels: m.constLabels, Buckets: buckets,
	}
}

func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every collector
	auto := promauto.With(m.registry)
	countBuckets := []float64{0, 1, 2, 5, 10, 15, 20, 30, 50}
	hourBuckets := []float64{0, 5, 10, 20, 40, 80, 160, 320}

	m.plansGenerated = auto.NewCounter(m.counterOpts("plans_generated_total",
		"Total number of study plans generated"))
	m.plansFailed = auto.NewCounterVec(m.counterOpts("plans_failed_total",
		"Plan generation failures by reason"), []string{"reason"})
	m.planLatency = auto.NewHistogram(m.histogramOpts("plan_latency_milliseconds",
		"End-to-end plan generation latency in milliseconds", m.latencyBuckets))
	m.topicsRanked = auto.NewHistogram(m.histogramOpts("topics_ranked",
		"Number of topics kept after ranking", countBuckets))
	m.hoursScheduled = auto.NewHistogram(m.histogramOpts("hours_scheduled",
		"Study hours placed on the calendar per plan", hourBuckets))
	m.subjectsDegraded = auto.NewCounter(m.counterOpts("subjects_degraded_total",
		"Subjects planned from self-assessment only"))
	m.recommendationsOut = auto.NewCounterVec(m.counterOpts("recommendations_total",
		"Recommendations emitted by kind"), []string{"kind"})

	m.retrievalLatency = auto.NewHistogram(m.histogramOpts("retrieval_latency_milliseconds",
		"Latency of calls to the retrieval proxy in milliseconds", m.latencyBuckets))
	m.retrievalErrors = auto.NewCounterVec(m.counterOpts("retrieval_errors_total",
		"Retrieval failures by error code"), []string{"code"})
	m.retrievalHits = auto.NewHistogram(m.histogramOpts("retrieval_hits",
		"Hits returned per retrieval call", countBuckets))
	m.cacheLookups = auto.NewCounterVec(m.counterOpts("retrieval_cache_lookups_total",
		"Retrieval cache lookups by result"), []string{"result"})
	m.retrievalFallback = auto.NewCounter(m.counterOpts("retrieval_fallback_total",
		"Subjects that fell back to assessment-only estimates"))

	m.storeRecords = auto.NewGauge(m.gaugeOpts("store_records",
		"Plans held by the plan store"))
	m.storeOpLatency = auto.NewHistogramVec(m.histogramOpts("store_op_latency_milliseconds",
		"Plan store operation latency in milliseconds", m.latencyBuckets), []string{"op"})
	m.storeOpFailures = auto.NewCounterVec(m.counterOpts("store_op_failures_total",
		"Plan store operation failures"), []string{"op"})

	m.httpRequests = auto.NewCounterVec(m.counterOpts("http_requests_total",
		"Total number of HTTP requests by endpoint and method"),
		[]string{"endpoint", "method", "status_code"})
	m.httpRequestDuration = auto.NewHistogramVec(m.histogramOpts("http_request_duration_milliseconds",
		"HTTP request duration in milliseconds", m.latencyBuckets),
		[]string{"endpoint", "method", "status_code"})
	m.errorsByEndpoint = auto.NewCounterVec(m.counterOpts("errors_by_endpoint_total",
		"Total number of errors by endpoint"), []string{"endpoint", "method", "error_type"})

	m.queueSize = auto.NewGauge(m.gaugeOpts("queue_size", "Plan jobs waiting in the queue"))
	m.queueCapacity = auto.NewGauge(m.gaugeOpts("queue_capacity", "Maximum plan job queue capacity"))
	m.queueEnqueued = auto.NewCounter(m.counterOpts("queue_enqueue_total", "Plan jobs enqueued"))
	m.queueDequeued = auto.NewCounter(m.counterOpts("queue_dequeue_total", "Plan jobs dequeued"))
	m.queueRejected = auto.NewCounterVec(m.counterOpts("queue_rejected_total",
		"Plan jobs rejected by reason"), []string{"reason"})
	m.jobsDuplicate = auto.NewCounter(m.counterOpts("jobs_duplicate_total",
		"Plan jobs refused because the assessment was already in flight"))
	m.workerCount = auto.NewGauge(m.gaugeOpts("worker_count", "Plan workers running"))
	m.workerBusy = auto.NewGauge(m.gaugeOpts("worker_busy", "Plan workers currently generating"))
	m.workerJobLatency = auto.NewHistogram(m.histogramOpts("worker_job_latency_milliseconds",
		"Plan job processing latency in milliseconds", m.latencyBuckets))
	m.workerErrors = auto.NewCounter(m.counterOpts("worker_errors_total", "Plan jobs that failed"))
	m.errorsByComponent = auto.NewCounterVec(m.counterOpts("errors_by_component_total",
		"Total number of errors by component"), []string{"component", "error_type"})

	m.systemMemoryUsage = auto.NewGauge(m.gaugeOpts("system_memory_usage_bytes", "Heap bytes allocated"))
	m.systemGoroutineCount = auto.NewGauge(m.gaugeOpts("system_goroutine_count", "Number of goroutines"))
	m.systemGCPauseTime = auto.NewHistogram(m.histogramOpts("system_gc_pause_time_milliseconds",
		"Average GC pause time in milliseconds", []float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000}))
}

func ms(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

// RecordPlanGenerated records a successful plan with its shape.
func RecordPlanGenerated(latency time.Duration, topics int, hours float64) {
	globalManager.plansGenerated.Inc()
	globalManager.planLatency.Observe(ms(latency))
	globalManager.topicsRanked.Observe(float64(topics))
	globalManager.hoursScheduled.Observe(hours)
}

// RecordPlanFailed increments plan failures for reason.
func RecordPlanFailed(reason string) {
	globalManager.plansFailed.WithLabelValues(reason).Inc()
}

// RecordSubjectDegraded counts a subject served by the fallback path.
func RecordSubjectDegraded() {
	globalManager.subjectsDegraded.Inc()
}

// RecordRecommendation counts an emitted recommendation.
func RecordRecommendation(kind string) {
	globalManager.recommendationsOut.WithLabelValues(kind).Inc()
}

// RecordRetrieval records a completed retrieval call.
func RecordRetrieval(latency time.Duration, hits int) {
	globalManager.retrievalLatency.Observe(ms(latency))
	globalManager.retrievalHits.Observe(float64(hits))
}

// RecordRetrievalError counts a retrieval failure by code.
func RecordRetrievalError(code string) {
	globalManager.retrievalErrors.WithLabelValues(code).Inc()
	globalManager.errorsByComponent.WithLabelValues("retrieval", code).Inc()
}

// RecordRetrievalFallback counts a subject downgraded after a retrieval failure.
func RecordRetrievalFallback() {
	globalManager.retrievalFallback.Inc()
}

// RecordCacheLookup records a cache hit, miss or error.
func RecordCacheLookup(result string) {
	globalManager.cacheLookups.WithLabelValues(result).Inc()
}

// UpdateStoreRecords sets the number of stored plans.
func UpdateStoreRecords(n int) {
	globalManager.storeRecords.Set(float64(n))
}

// RecordStoreOp records a store operation and whether it failed.
func RecordStoreOp(op string, latency time.Duration, err error) {
	globalManager.storeOpLatency.WithLabelValues(op).Observe(ms(latency))
	if err != nil {
		globalManager.storeOpFailures.WithLabelValues(op).Inc()
		globalManager.errorsByComponent.WithLabelValues("store", op).Inc()
	}
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, durationMs float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(durationMs)
}

// RecordErrorByEndpoint records an error with endpoint, method, and error type labels.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.errorsByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorsByComponent.WithLabelValues(component, errorType).Inc()
}

// UpdateQueueSize sets the current queue size.
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

// RecordQueueRejected counts a job the queue refused.
func RecordQueueRejected(reason string) {
	globalManager.queueRejected.WithLabelValues(reason).Inc()
	globalManager.errorsByComponent.WithLabelValues("queue", reason).Inc()
}

// RecordJobDuplicate counts a job refused by the in-flight guard.
func RecordJobDuplicate() {
	globalManager.jobsDuplicate.Inc()
}

// UpdateWorkerCount sets the number of workers.
func UpdateWorkerCount(count int) {
	globalManager.workerCount.Set(float64(count))
}

// AddWorkerBusy moves the busy-worker gauge by delta.
func AddWorkerBusy(delta int) {
	globalManager.workerBusy.Add(float64(delta))
}

// RecordWorkerJob records the processing latency of one job.
func RecordWorkerJob(latency time.Duration, err error) {
	globalManager.workerJobLatency.Observe(ms(latency))
	if err != nil {
		globalManager.workerErrors.Inc()
		globalManager.errorsByComponent.WithLabelValues("worker", "job_failed").Inc()
	}
}

// UpdateSystemMemoryUsage sets the heap allocation in bytes.
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
