// Package metrics provides Prometheus metrics for the region selection service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Selection outcomes used as label values.
const (
	OutcomeSelected          = "selected"
	OutcomePseudoInverse     = "pseudo_inverse"
	OutcomeNoUsableProfile   = "no_usable_profile"
	OutcomeEmptyProfileSet   = "empty_profile_set"
	OutcomeDimensionMismatch = "dimension_mismatch"
	OutcomeError             = "error"
)

// Manager manages all Prometheus metrics for the service.
type Manager struct {
	namespace      string
	subsystem      string
	latencyBuckets []float64
	constLabels    map[string]string
	registry       prometheus.Registerer

	// Selection metrics
	selections       *prometheus.CounterVec
	selectionLatency prometheus.Histogram
	skippedRegions   *prometheus.CounterVec

	// Profile metrics
	profileRegions         prometheus.Gauge
	profileDimension       prometheus.Gauge
	profileUnusableRegions prometheus.Gauge
	profilePublishes       prometheus.Counter
	profilePublishLastUnix prometheus.Gauge
	profileReloadFailures  prometheus.Counter
	buildSamples           prometheus.Counter
	buildRegularized       prometheus.Counter
	buildExcluded          prometheus.Counter
	buildDuration          prometheus.Histogram

	// Ingest and transfer metrics
	embeddingsLoaded  prometheus.Counter
	embeddingsSkipped *prometheus.CounterVec
	transferObjects   *prometheus.CounterVec
	transferBytes     prometheus.Counter

	// HTTP Performance Metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Queue Metrics
	queueSize              prometheus.Gauge
	queueCapacity          prometheus.Gauge
	queueEnqueue           prometheus.Counter
	queueDequeue           prometheus.Counter
	queueEnqueueErrors     prometheus.Counter
	queueProcessingLatency prometheus.Histogram

	// Worker Metrics
	workerCount             prometheus.Gauge
	workerActiveCount       prometheus.Gauge
	workerProcessingLatency prometheus.Histogram
	workerErrors            prometheus.Counter

	// System Performance Metrics
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

// Initialize global metrics.
func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:      "regionsel",
		subsystem:      "selector",
		latencyBuckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 25, 50, 100, 250, 1000},
		constLabels:    make(map[string]string),
		registry:       prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

func (m *Manager) counter(name, help string) prometheus.Counter {
	return promauto.With(m.registry).NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	})
}

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	}, labels)
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	})
}

func (m *Manager) histogram(name, help string) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
		Buckets: m.latencyBuckets,
	})
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() {
	m.selections = m.counterVec("selections_total", "Total number of region selections by outcome", "outcome")
	m.selectionLatency = m.histogram("selection_latency_milliseconds", "Histogram of selection latency in milliseconds")
	m.skippedRegions = m.counterVec("skipped_regions_total", "Regions skipped during selection because their covariance could not be used", "region", "kind")

	m.profileRegions = m.gauge("profile_regions", "Number of regions in the published profile set")
	m.profileDimension = m.gauge("profile_dimension", "Feature dimension of the published profile set")
	m.profileUnusableRegions = m.gauge("profile_unusable_regions", "Regions of the published profile set that are singular for every query")
	m.profilePublishes = m.counter("profile_publishes_total", "Total number of profile sets published")
	m.profilePublishLastUnix = m.gauge("profile_publish_last_unix", "Unix timestamp of the last profile set publish")
	m.profileReloadFailures = m.counter("profile_reload_failures_total", "Total number of failed profile reloads")
	m.buildSamples = m.counter("build_samples_total", "Total number of samples consumed by profile builds")
	m.buildRegularized = m.counter("build_regularized_regions_total", "Total number of regions regularized during builds")
	m.buildExcluded = m.counter("build_excluded_regions_total", "Total number of regions excluded during builds")
	m.buildDuration = m.histogram("build_duration_milliseconds", "Profile build duration in milliseconds")

	m.embeddingsLoaded = m.counter("embeddings_loaded_total", "Total number of embedding rows loaded")
	m.embeddingsSkipped = m.counterVec("embeddings_skipped_total", "Embedding items skipped during loading by reason", "reason")
	m.transferObjects = m.counterVec("transfer_objects_total", "Objects handled by the store mirror by outcome", "outcome")
	m.transferBytes = m.counter("transfer_bytes_total", "Total bytes copied by the store mirror")

	m.httpRequests = m.counterVec("http_requests_total", "Total number of HTTP requests by endpoint and method", "endpoint", "method", "status_code")
	m.httpRequestDuration = promauto.With(m.registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "http_request_duration_milliseconds",
		Help:        "HTTP request duration in milliseconds",
		ConstLabels: m.constLabels,
		Buckets:     m.latencyBuckets,
	}, []string{"endpoint", "method", "status_code"})

	m.queueSize = m.gauge("queue_size", "Current size of the selection job queue")
	m.queueCapacity = m.gauge("queue_capacity", "Maximum queue capacity")
	m.queueEnqueue = m.counter("queue_enqueue_total", "Total number of jobs enqueued")
	m.queueDequeue = m.counter("queue_dequeue_total", "Total number of jobs dequeued")
	m.queueEnqueueErrors = m.counter("queue_enqueue_errors_total", "Total number of rejected enqueues")
	m.queueProcessingLatency = m.histogram("queue_processing_latency_milliseconds", "Time jobs spend queued in milliseconds")

	m.workerCount = m.gauge("worker_count", "Number of configured workers")
	m.workerActiveCount = m.gauge("worker_active_count", "Number of workers currently processing a job")
	m.workerProcessingLatency = m.histogram("worker_processing_latency_milliseconds", "Worker processing latency in milliseconds")
	m.workerErrors = m.counter("worker_errors_total", "Total number of worker errors")

	m.systemMemoryUsage = m.gauge("system_memory_usage_bytes", "System memory usage in bytes")
	m.systemGoroutineCount = m.gauge("system_goroutine_count", "Number of goroutines")
}

// Selection Metrics Functions.

// RecordSelection increments the selection counter for outcome.
func RecordSelection(outcome string) {
	globalManager.selections.WithLabelValues(outcome).Inc()
}

// RecordSelectionLatency records selection latency in milliseconds.
func RecordSelectionLatency(latencyMs float64) {
	globalManager.selectionLatency.Observe(latencyMs)
}

// RecordSkippedRegion counts a region skipped for a query.
func RecordSkippedRegion(region, kind string) {
	globalManager.skippedRegions.WithLabelValues(region, kind).Inc()
}

// Profile Metrics Functions.

// UpdateProfileSet sets the gauges describing the published profile set.
func UpdateProfileSet(regions, dim, unusable int) {
	globalManager.profileRegions.Set(float64(regions))
	globalManager.profileDimension.Set(float64(dim))
	globalManager.profileUnusableRegions.Set(float64(unusable))
}

// RecordProfilePublish counts a publish and stamps its time.
func RecordProfilePublish(unix int64) {
	globalManager.profilePublishes.Inc()
	globalManager.profilePublishLastUnix.Set(float64(unix))
}

// RecordProfileReloadFailure counts a failed reload.
func RecordProfileReloadFailure() {
	globalManager.profileReloadFailures.Inc()
}

// RecordBuild records the outcome of one profile build.
func RecordBuild(samples, regularized, excluded int, durationMs float64) {
	globalManager.buildSamples.Add(float64(samples))
	globalManager.buildRegularized.Add(float64(regularized))
	globalManager.buildExcluded.Add(float64(excluded))
	globalManager.buildDuration.Observe(durationMs)
}

// Ingest and Transfer Metrics Functions.

// RecordEmbeddingsLoaded adds loaded embedding rows.
func RecordEmbeddingsLoaded(rows int) {
	globalManager.embeddingsLoaded.Add(float64(rows))
}

// RecordEmbeddingSkipped counts a skipped embedding item.
func RecordEmbeddingSkipped(reason string) {
	globalManager.embeddingsSkipped.WithLabelValues(reason).Inc()
}

// RecordTransferObject counts a mirrored object by outcome.
func RecordTransferObject(outcome string, bytes int) {
	globalManager.transferObjects.WithLabelValues(outcome).Inc()
	if bytes > 0 {
		globalManager.transferBytes.Add(float64(bytes))
	}
}

// HTTP Metrics Functions.

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// Queue Metrics Functions.

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
	globalManager.queueEnqueue.Inc()
}

// RecordQueueDequeue increments the dequeue counter.
func RecordQueueDequeue() {
	globalManager.queueDequeue.Inc()
}

// RecordQueueEnqueueError increments the enqueue error counter.
func RecordQueueEnqueueError() {
	globalManager.queueEnqueueErrors.Inc()
}

// RecordQueueProcessingLatency records queue processing latency.
func RecordQueueProcessingLatency(latencyMs float64) {
	globalManager.queueProcessingLatency.Observe(latencyMs)
}

// Worker Metrics Functions.

// UpdateWorkerCount sets the configured worker count.
func UpdateWorkerCount(count int) {
	globalManager.workerCount.Set(float64(count))
}

// UpdateWorkerActiveCount sets the number of active workers.
func UpdateWorkerActiveCount(count int) {
	globalManager.workerActiveCount.Set(float64(count))
}

// RecordWorkerProcessingLatency records worker processing latency.
func RecordWorkerProcessingLatency(latencyMs float64) {
	globalManager.workerProcessingLatency.Observe(latencyMs)
}

// RecordWorkerError increments the worker error counter.
func RecordWorkerError() {
	globalManager.workerErrors.Inc()
}

// System Performance Metrics Functions.

// UpdateSystemMemoryUsage sets the system memory usage in bytes.
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
