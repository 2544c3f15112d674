// Package metrics provides Prometheus metrics for the rollcall service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager manages all Prometheus metrics for the rollcall service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	registry         prometheus.Registerer

	// Engine outcomes
	enrollments          *prometheus.CounterVec
	recognitions         *prometheus.CounterVec
	galleryRecordsSkip   *prometheus.CounterVec
	gallerySize          prometheus.Gauge
	matchLatency         prometheus.Histogram
	extractionLatency    prometheus.Histogram
	attendanceEvents     prometheus.Counter
	attendanceSuppressed prometheus.Counter
	storeErrors          *prometheus.CounterVec

	// Batch Queue and Worker Metrics
	queueSize       prometheus.Gauge
	queueCapacity   prometheus.Gauge
	queueRejections prometheus.Counter
	jobsProcessed   *prometheus.CounterVec
	jobLatency      prometheus.Histogram
	workersActive   prometheus.Gauge

	// HTTP Performance Metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	errorRateByEndpoint *prometheus.CounterVec

	// System Performance Metrics
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
		namespace:        "rollcall",
		subsystem:        "engine",
		histogramBuckets: []float64{1, 2, 5, 10, 25, 50, 100, 250, 500, 1000, 2500},
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
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      name,
		Help:      help,
	}
}

func (m *Manager) gaugeOpts(name, help string) prometheus.GaugeOpts {
	return prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      name,
		Help:      help,
	}
}

func (m *Manager) histogramOpts(name, help string, buckets []float64) prometheus.HistogramOpts {
	return prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      name,
		Help:      help,
		Buckets:   buckets,
	}
}

func (m *Manager) initializeMetrics() {
	auto := promauto.With(m.registry)

	m.enrollments = auto.NewCounterVec(
		m.counterOpts("enrollments_total", "Enrollment attempts by outcome"),
		[]string{"outcome"},
	)
	m.recognitions = auto.NewCounterVec(
		m.counterOpts("recognitions_total", "Recognition attempts by outcome"),
		[]string{"outcome"},
	)
	m.galleryRecordsSkip = auto.NewCounterVec(
		m.counterOpts("gallery_records_skipped_total", "Gallery entries skipped during a scan, by reason"),
		[]string{"reason"},
	)
	m.gallerySize = auto.NewGauge(m.gaugeOpts("gallery_size", "Number of enrolled identities seen by the last scan"))
	m.matchLatency = auto.NewHistogram(m.histogramOpts(
		"match_latency_milliseconds", "Gallery scan latency in milliseconds", m.histogramBuckets))
	m.extractionLatency = auto.NewHistogram(m.histogramOpts(
		"extraction_latency_milliseconds", "Descriptor extraction latency in milliseconds", m.histogramBuckets))
	m.attendanceEvents = auto.NewCounter(m.counterOpts("attendance_events_total", "Attendance events persisted"))
	m.attendanceSuppressed = auto.NewCounter(m.counterOpts(
		"attendance_suppressed_total", "Recognitions not recorded because the roll was marked within the window"))
	m.storeErrors = auto.NewCounterVec(
		m.counterOpts("store_errors_total", "Persistence failures by operation"),
		[]string{"op"},
	)

	m.queueSize = auto.NewGauge(m.gaugeOpts("queue_size", "Jobs waiting in the batch queue"))
	m.queueCapacity = auto.NewGauge(m.gaugeOpts("queue_capacity", "Capacity of the batch queue"))
	m.queueRejections = auto.NewCounter(m.counterOpts("queue_rejections_total", "Jobs refused because the queue was full or closed"))
	m.jobsProcessed = auto.NewCounterVec(
		m.counterOpts("jobs_processed_total", "Batch jobs processed by status"),
		[]string{"status"},
	)
	m.jobLatency = auto.NewHistogram(m.histogramOpts(
		"job_latency_milliseconds", "Batch job processing latency in milliseconds", m.histogramBuckets))
	m.workersActive = auto.NewGauge(m.gaugeOpts("workers_active", "Number of running batch workers"))

	m.httpRequests = auto.NewCounterVec(
		m.counterOpts("http_requests_total", "Total number of HTTP requests by endpoint and method"),
		[]string{"endpoint", "method", "status_code"},
	)
	m.httpRequestDuration = auto.NewHistogramVec(
		m.histogramOpts("http_request_duration_milliseconds", "HTTP request duration in milliseconds", m.histogramBuckets),
		[]string{"endpoint", "method", "status_code"},
	)
	m.errorRateByEndpoint = auto.NewCounterVec(
		m.counterOpts("errors_by_endpoint_total", "Total number of errors by endpoint"),
		[]string{"endpoint", "method", "error_type"},
	)

	m.systemMemoryUsage = auto.NewGauge(m.gaugeOpts("system_memory_usage_bytes", "System memory usage in bytes"))
	m.systemGoroutineCount = auto.NewGauge(m.gaugeOpts("system_goroutine_count", "Number of goroutines"))
	m.systemGCPauseTime = auto.NewHistogram(m.histogramOpts(
		"system_gc_pause_time_milliseconds", "GC pause time in milliseconds",
		[]float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000}))
}

// RecordEnrollment counts an enrollment attempt by outcome.
func RecordEnrollment(outcome string) {
	globalManager.enrollments.WithLabelValues(outcome).Inc()
}

// RecordRecognition counts a recognition attempt by outcome.
func RecordRecognition(outcome string) {
	globalManager.recognitions.WithLabelValues(outcome).Inc()
}

// RecordGallerySkips adds n skipped gallery entries for reason.
func RecordGallerySkips(reason string, n int) {
	if n <= 0 {
		return
	}
	globalManager.galleryRecordsSkip.WithLabelValues(reason).Add(float64(n))
}

// UpdateGallerySize sets the gallery size gauge.
func UpdateGallerySize(n int) {
	globalManager.gallerySize.Set(float64(n))
}

// RecordMatchLatency records gallery scan latency in milliseconds.
func RecordMatchLatency(latencyMs float64) {
	globalManager.matchLatency.Observe(latencyMs)
}

// RecordExtractionLatency records descriptor extraction latency in milliseconds.
func RecordExtractionLatency(latencyMs float64) {
	globalManager.extractionLatency.Observe(latencyMs)
}

// RecordAttendanceEvent counts a persisted attendance event.
func RecordAttendanceEvent() {
	globalManager.attendanceEvents.Inc()
}

// RecordAttendanceSuppressed counts a recognition that did not produce a new event.
func RecordAttendanceSuppressed() {
	globalManager.attendanceSuppressed.Inc()
}

// RecordStoreError counts a persistence failure for op.
func RecordStoreError(op string) {
	globalManager.storeErrors.WithLabelValues(op).Inc()
}

// UpdateQueueSize sets the number of queued jobs.
func UpdateQueueSize(n int) {
	globalManager.queueSize.Set(float64(n))
}

// UpdateQueueCapacity sets the queue capacity gauge.
func UpdateQueueCapacity(n int) {
	globalManager.queueCapacity.Set(float64(n))
}

// RecordQueueRejection counts a job the queue refused.
func RecordQueueRejection() {
	globalManager.queueRejections.Inc()
}

// RecordJobProcessed counts a finished job by status ("ok" or "error").
func RecordJobProcessed(status string) {
	globalManager.jobsProcessed.WithLabelValues(status).Inc()
}

// RecordJobLatency records job processing latency in milliseconds.
func RecordJobLatency(latencyMs float64) {
	globalManager.jobLatency.Observe(latencyMs)
}

// AddActiveWorkers adjusts the running worker gauge by delta.
func AddActiveWorkers(delta int) {
	globalManager.workersActive.Add(float64(delta))
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordErrorByEndpoint records an error with endpoint, method, and error type labels.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.errorRateByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
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
