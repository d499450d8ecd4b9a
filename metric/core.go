package metric

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Error type labels recorded on http_request_errors_total.
const (
	ErrorTypeClient = "client_error"
	ErrorTypeServer = "server_error"
)

// Metrics contains all core application metrics: the HTTP request series
// written by the instrumentation middleware and the process series written by
// the system sampler.
type Metrics struct {
	// HTTP request metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPRequestSize     *prometheus.HistogramVec
	HTTPResponseSize    *prometheus.HistogramVec
	HTTPRequestsActive  prometheus.Gauge
	HTTPRequestErrors   *prometheus.CounterVec
	HTTPSlowRequests    *prometheus.CounterVec

	// Process metrics
	CPUSecondsTotal     prometheus.Counter
	CPUUsagePercent     prometheus.Gauge
	MemoryResidentBytes prometheus.Gauge
	MemoryVirtualBytes  prometheus.Gauge
	MemoryUsagePercent  prometheus.Gauge
	OpenFDs             prometheus.Gauge
	ThreadsTotal        prometheus.Gauge
	StartTimeSeconds    prometheus.Gauge
	UptimeSeconds       prometheus.Gauge

	// Go runtime metrics. The GC series are labeled by cycle kind
	// (automatic, forced) since the Go collector is not generational.
	GCCollectionsTotal *prometheus.CounterVec
	GCPauseSeconds     prometheus.Counter
	HeapObjects        prometheus.Gauge
	GoroutinesTotal    prometheus.Gauge

	// Alerting thresholds exposed as gauges so dashboards can draw them
	CPUAlertThreshold    prometheus.Gauge
	MemoryAlertThreshold prometheus.Gauge

	// AppInfo carries static process identity as constant labels
	AppInfo *prometheus.GaugeVec
}

// Options controls histogram bucket layout for the core metrics
type Options struct {
	DurationBuckets []float64
	SizeBuckets     []float64
}

// DefaultOptions returns bucket layouts matching the production defaults
func DefaultOptions() Options {
	return Options{
		DurationBuckets: []float64{0.001, 0.01, 0.1, 0.5, 1.0, 2.5, 5.0, 10.0, 25.0, 50.0, 100.0},
		SizeBuckets:     []float64{1, 10, 100, 1000, 10000, 100000, 1000000, 10000000},
	}
}

// NewMetrics creates a new Metrics instance with all core metrics
func NewMetrics(opts Options) *Metrics {
	if len(opts.DurationBuckets) == 0 {
		opts.DurationBuckets = DefaultOptions().DurationBuckets
	}
	if len(opts.SizeBuckets) == 0 {
		opts.SizeBuckets = DefaultOptions().SizeBuckets
	}

	return &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total HTTP requests",
			},
			[]string{"method", "endpoint", "status_code"},
		),

		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: opts.DurationBuckets,
			},
			[]string{"method", "endpoint"},
		),

		HTTPRequestSize: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_size_bytes",
				Help:    "HTTP request size in bytes",
				Buckets: opts.SizeBuckets,
			},
			[]string{"method", "endpoint"},
		),

		HTTPResponseSize: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_response_size_bytes",
				Help:    "HTTP response size in bytes",
				Buckets: opts.SizeBuckets,
			},
			[]string{"method", "endpoint", "status_code"},
		),

		HTTPRequestsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_active",
				Help: "Number of HTTP requests currently being processed",
			},
		),

		HTTPRequestErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_request_errors_total",
				Help: "Total HTTP request errors",
			},
			[]string{"method", "endpoint", "error_type"},
		),

		HTTPSlowRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_slow_requests_total",
				Help: "Total HTTP requests slower than the configured threshold",
			},
			[]string{"method", "endpoint"},
		),

		CPUSecondsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "app_cpu_seconds_total",
				Help: "Total user and system CPU time spent by the application in seconds",
			},
		),

		CPUUsagePercent: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "app_cpu_usage_percent",
				Help: "Current CPU usage percentage of the application",
			},
		),

		MemoryResidentBytes: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "app_memory_resident_bytes",
				Help: "Physical memory currently used by the application in bytes",
			},
		),

		MemoryVirtualBytes: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "app_memory_virtual_bytes",
				Help: "Virtual memory allocated by the application in bytes",
			},
		),

		MemoryUsagePercent: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "app_memory_usage_percent",
				Help: "Memory usage percentage of the application",
			},
		),

		OpenFDs: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "app_open_fds",
				Help: "Number of open file descriptors for the application",
			},
		),

		ThreadsTotal: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "app_threads_total",
				Help: "Number of OS threads in the application process",
			},
		),

		StartTimeSeconds: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "app_start_time_seconds",
				Help: "Start time of the application since unix epoch in seconds",
			},
		),

		UptimeSeconds: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "app_uptime_seconds",
				Help: "Time in seconds since the application started",
			},
		),

		GCCollectionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "app_gc_collections_total",
				Help: "Total number of garbage collection cycles",
			},
			[]string{"kind"},
		),

		GCPauseSeconds: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "app_gc_pause_seconds_total",
				Help: "Total time spent in garbage collection stop-the-world pauses",
			},
		),

		HeapObjects: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "app_heap_objects",
				Help: "Number of allocated heap objects",
			},
		),

		GoroutinesTotal: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "app_goroutines_total",
				Help: "Number of goroutines in the application process",
			},
		),

		CPUAlertThreshold: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "cpu_alert_threshold_percent",
				Help: "CPU usage threshold for alerting in percent",
			},
		),

		MemoryAlertThreshold: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "memory_alert_threshold_percent",
				Help: "Memory usage threshold for alerting in percent",
			},
		),

		AppInfo: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "app_info",
				Help: "Application process information",
			},
			[]string{"name", "version", "go_version", "pid"},
		),
	}
}

// collectors returns every core collector for bulk registration
func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestSize,
		m.HTTPResponseSize,
		m.HTTPRequestsActive,
		m.HTTPRequestErrors,
		m.HTTPSlowRequests,
		m.CPUSecondsTotal,
		m.CPUUsagePercent,
		m.MemoryResidentBytes,
		m.MemoryVirtualBytes,
		m.MemoryUsagePercent,
		m.OpenFDs,
		m.ThreadsTotal,
		m.StartTimeSeconds,
		m.UptimeSeconds,
		m.GCCollectionsTotal,
		m.GCPauseSeconds,
		m.HeapObjects,
		m.GoroutinesTotal,
		m.CPUAlertThreshold,
		m.MemoryAlertThreshold,
		m.AppInfo,
	}
}

// RecordRequestStart increments the active-request gauge
func (m *Metrics) RecordRequestStart() {
	m.HTTPRequestsActive.Inc()
}

// RecordRequestFinish decrements the active-request gauge
func (m *Metrics) RecordRequestFinish() {
	m.HTTPRequestsActive.Dec()
}

// RecordRequest records the terminal metrics for a completed request
func (m *Metrics) RecordRequest(method, endpoint, statusCode string, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// RecordRequestSize observes the request body size in bytes
func (m *Metrics) RecordRequestSize(method, endpoint string, bytes float64) {
	m.HTTPRequestSize.WithLabelValues(method, endpoint).Observe(bytes)
}

// RecordResponseSize observes the response body size in bytes
func (m *Metrics) RecordResponseSize(method, endpoint, statusCode string, bytes float64) {
	m.HTTPResponseSize.WithLabelValues(method, endpoint, statusCode).Observe(bytes)
}

// RecordRequestError increments the error counter for a failed request
func (m *Metrics) RecordRequestError(method, endpoint, errorType string) {
	m.HTTPRequestErrors.WithLabelValues(method, endpoint, errorType).Inc()
}

// RecordSlowRequest increments the slow-request counter
func (m *Metrics) RecordSlowRequest(method, endpoint string) {
	m.HTTPSlowRequests.WithLabelValues(method, endpoint).Inc()
}
