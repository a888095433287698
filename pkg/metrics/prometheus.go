// Package metrics provides Prometheus metrics for the gradecast pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns every collector exported by the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	constLabels      map[string]string
	registry         prometheus.Registerer

	// Batch pipeline
	batches          *prometheus.CounterVec
	recordsScored    prometheus.Counter
	recordsSkipped   prometheus.Counter
	predictions      *prometheus.CounterVec
	scoringLatency   prometheus.Histogram
	batchDuration    prometheus.Histogram
	commitLatency    prometheus.Histogram
	commitErrors     prometheus.Counter
	storeRecordsSave prometheus.Counter

	// Mirror sync
	mirrorSyncs        *prometheus.CounterVec
	mirrorSyncLatency  prometheus.Histogram
	mirrorRetries      prometheus.Counter
	syncQueueSize      prometheus.Gauge
	syncQueueCapacity  prometheus.Gauge
	syncQueueRejected  prometheus.Counter
	workerActiveCount  prometheus.Gauge
	workerProcessed    prometheus.Counter
	workerProcessingMs prometheus.Histogram

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Errors
	errorsByComponent *prometheus.CounterVec

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

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "gradecast",
		subsystem:        "pipeline",
		histogramBuckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()
	return m
}

func (m *Manager) counterOpts(name, help string) prometheus.CounterOpts {
	return prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.constLabels,
	}
}

func (m *Manager) gaugeOpts(name, help string) prometheus.GaugeOpts {
	return prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.constLabels,
	}
}

func (m *Manager) histogramOpts(name, help string) prometheus.HistogramOpts {
	return prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		Buckets:     m.histogramBuckets,
		ConstLabels: m.constLabels,
	}
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every collector
	auto := promauto.With(m.registry)

	m.batches = auto.NewCounterVec(m.counterOpts("batches_total", "Batches processed by final state"), []string{"state"})
	m.recordsScored = auto.NewCounter(m.counterOpts("records_scored_total", "Records scored across all batches"))
	m.recordsSkipped = auto.NewCounter(m.counterOpts("records_skipped_total", "Malformed or out-of-range rows skipped by the parser"))
	m.predictions = auto.NewCounterVec(m.counterOpts("predictions_total", "Predictions by label and entry point"), []string{"prediction", "path"})
	m.scoringLatency = auto.NewHistogram(m.histogramOpts("scoring_latency_milliseconds", "Per-record scoring latency in milliseconds"))
	m.batchDuration = auto.NewHistogram(m.histogramOpts("batch_duration_milliseconds", "End-to-end batch processing time in milliseconds"))
	m.commitLatency = auto.NewHistogram(m.histogramOpts("commit_latency_milliseconds", "Durable bulk write latency in milliseconds"))
	m.commitErrors = auto.NewCounter(m.counterOpts("commit_errors_total", "Failed durable bulk writes"))
	m.storeRecordsSave = auto.NewCounter(m.counterOpts("store_records_saved_total", "Records written to the primary store"))

	m.mirrorSyncs = auto.NewCounterVec(m.counterOpts("mirror_syncs_total", "Mirror sync attempts by result"), []string{"result"})
	m.mirrorSyncLatency = auto.NewHistogram(m.histogramOpts("mirror_sync_latency_milliseconds", "Mirror append latency in milliseconds"))
	m.mirrorRetries = auto.NewCounter(m.counterOpts("mirror_retries_total", "Mirror append retries"))
	m.syncQueueSize = auto.NewGauge(m.gaugeOpts("sync_queue_size", "Mirror sync jobs waiting in the queue"))
	m.syncQueueCapacity = auto.NewGauge(m.gaugeOpts("sync_queue_capacity", "Mirror sync queue capacity"))
	m.syncQueueRejected = auto.NewCounter(m.counterOpts("sync_queue_rejected_total", "Mirror sync jobs rejected by a full or closed queue"))
	m.workerActiveCount = auto.NewGauge(m.gaugeOpts("worker_active_count", "Mirror sync workers running"))
	m.workerProcessed = auto.NewCounter(m.counterOpts("worker_jobs_processed_total", "Mirror sync jobs processed by workers"))
	m.workerProcessingMs = auto.NewHistogram(m.histogramOpts("worker_processing_latency_milliseconds", "Mirror sync job processing latency in milliseconds"))

	m.httpRequests = auto.NewCounterVec(
		m.counterOpts("http_requests_total", "Total number of HTTP requests by endpoint and method"),
		[]string{"endpoint", "method", "status_code"},
	)
	m.httpRequestDuration = auto.NewHistogramVec(
		m.histogramOpts("http_request_duration_milliseconds", "HTTP request duration in milliseconds"),
		[]string{"endpoint", "method", "status_code"},
	)

	m.errorsByComponent = auto.NewCounterVec(
		m.counterOpts("errors_by_component_total", "Errors by component and type"),
		[]string{"component", "error_type"},
	)

	m.systemMemoryUsage = auto.NewGauge(m.gaugeOpts("system_memory_usage_bytes", "System memory usage in bytes"))
	m.systemGoroutineCount = auto.NewGauge(m.gaugeOpts("system_goroutine_count", "Number of goroutines"))
	gc := m.histogramOpts("system_gc_pause_time_milliseconds", "GC pause time in milliseconds")
	gc.Buckets = []float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000}
	m.systemGCPauseTime = auto.NewHistogram(gc)
}

// RecordBatch increments the batch counter for a final state (completed, failed, rejected).
func RecordBatch(state string) {
	globalManager.batches.WithLabelValues(state).Inc()
}

// RecordRecordScored increments the scored records counter.
func RecordRecordScored() {
	globalManager.recordsScored.Inc()
}

// RecordRecordsSkipped adds n skipped rows.
func RecordRecordsSkipped(n int) {
	if n > 0 {
		globalManager.recordsSkipped.Add(float64(n))
	}
}

// RecordPrediction counts one prediction for an entry point ("batch" or "manual").
func RecordPrediction(prediction, path string) {
	globalManager.predictions.WithLabelValues(prediction, path).Inc()
}

// RecordScoringLatency records scoring latency in milliseconds.
func RecordScoringLatency(latencyMs float64) {
	globalManager.scoringLatency.Observe(latencyMs)
}

// RecordBatchDuration records the whole batch duration in milliseconds.
func RecordBatchDuration(latencyMs float64) {
	globalManager.batchDuration.Observe(latencyMs)
}

// RecordCommitLatency records durable write latency in milliseconds.
func RecordCommitLatency(latencyMs float64) {
	globalManager.commitLatency.Observe(latencyMs)
}

// RecordCommitError increments the failed commit counter.
func RecordCommitError() {
	globalManager.commitErrors.Inc()
}

// RecordRecordsSaved adds n records written to the primary store.
func RecordRecordsSaved(n int) {
	if n > 0 {
		globalManager.storeRecordsSave.Add(float64(n))
	}
}

// RecordMirrorSync counts a mirror sync result (success, failure, rejected, disabled).
func RecordMirrorSync(result string) {
	globalManager.mirrorSyncs.WithLabelValues(result).Inc()
}

// RecordMirrorSyncLatency records mirror append latency in milliseconds.
func RecordMirrorSyncLatency(latencyMs float64) {
	globalManager.mirrorSyncLatency.Observe(latencyMs)
}

// RecordMirrorRetry increments the mirror retry counter.
func RecordMirrorRetry() {
	globalManager.mirrorRetries.Inc()
}

// UpdateSyncQueueSize sets the current queue length.
func UpdateSyncQueueSize(size int) {
	globalManager.syncQueueSize.Set(float64(size))
}

// UpdateSyncQueueCapacity sets the queue capacity.
func UpdateSyncQueueCapacity(capacity int) {
	globalManager.syncQueueCapacity.Set(float64(capacity))
}

// RecordSyncQueueRejected increments the rejected job counter.
func RecordSyncQueueRejected() {
	globalManager.syncQueueRejected.Inc()
}

// UpdateWorkerActiveCount sets the number of running workers.
func UpdateWorkerActiveCount(count int) {
	globalManager.workerActiveCount.Set(float64(count))
}

// RecordWorkerProcessed increments the processed job counter.
func RecordWorkerProcessed() {
	globalManager.workerProcessed.Inc()
}

// RecordWorkerProcessingLatency records job processing latency in milliseconds.
func RecordWorkerProcessingLatency(latencyMs float64) {
	globalManager.workerProcessingMs.Observe(latencyMs)
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordErrorByComponent records errors by component.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorsByComponent.WithLabelValues(component, errorType).Inc()
}

// UpdateSystemMemoryUsage sets the system memory usage.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// RecordSystemGCPauseTime records GC pause time.
func RecordSystemGCPauseTime(pauseMs float64) {
	globalManager.systemGCPauseTime.Observe(pauseMs)
}

// GetRegistry returns the registry the global manager writes to.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
