package observability

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for previewd
type Metrics struct {
	// HTTP metrics
	httpRequestsTotal    *prometheus.CounterVec
	httpRequestDuration  *prometheus.HistogramVec
	httpResponseSize     *prometheus.HistogramVec
	httpRequestsInFlight prometheus.Gauge

	// Preview build metrics
	previewBuildsTotal   *prometheus.CounterVec
	previewBuildDuration prometheus.Histogram
	previewBundleSize    prometheus.Histogram

	// System metrics
	systemUptime prometheus.Gauge
}

// Build outcome labels recorded by RecordBuild.
const (
	BuildOutcomeSuccess          = "success"
	BuildOutcomeCompileError     = "compile_error"
	BuildOutcomeNoEntry          = "no_entry"
	BuildOutcomeTimeout          = "timeout"
	BuildOutcomeStoreUnavailable = "store_unavailable"
)

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics() *Metrics {
	m := &Metrics{
		httpRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "previewd_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		httpRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "previewd_http_request_duration_seconds",
				Help:    "HTTP request latency in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path", "status"},
		),
		httpResponseSize: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "previewd_http_response_size_bytes",
				Help:    "HTTP response size in bytes",
				Buckets: prometheus.ExponentialBuckets(100, 10, 8),
			},
			[]string{"method", "path", "status"},
		),
		httpRequestsInFlight: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "previewd_http_requests_in_flight",
				Help: "Current number of HTTP requests being processed",
			},
		),

		previewBuildsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "previewd_builds_total",
				Help: "Total number of preview builds by outcome",
			},
			[]string{"outcome"},
		),
		previewBuildDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "previewd_build_duration_seconds",
				Help:    "Preview build latency in seconds",
				Buckets: []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
		),
		previewBundleSize: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "previewd_bundle_size_bytes",
				Help:    "Compiled bundle size in bytes",
				Buckets: prometheus.ExponentialBuckets(1024, 4, 10),
			},
		),

		systemUptime: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "previewd_system_uptime_seconds",
				Help: "System uptime in seconds",
			},
		),
	}

	return m
}

// MetricsMiddleware returns a Fiber middleware that collects HTTP metrics
func (m *Metrics) MetricsMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		m.httpRequestsInFlight.Inc()
		defer m.httpRequestsInFlight.Dec()

		path := normalizePath(c.Route().Path, c.Path())
		method := c.Method()

		err := c.Next()

		duration := time.Since(start).Seconds()
		status := statusClass(c.Response().StatusCode())
		responseSize := len(c.Response().Body())

		m.httpRequestsTotal.WithLabelValues(method, path, status).Inc()
		m.httpRequestDuration.WithLabelValues(method, path, status).Observe(duration)
		m.httpResponseSize.WithLabelValues(method, path, status).Observe(float64(responseSize))

		return err
	}
}

// RecordBuild records the outcome and duration of one preview build
func (m *Metrics) RecordBuild(outcome string, duration time.Duration) {
	m.previewBuildsTotal.WithLabelValues(outcome).Inc()
	m.previewBuildDuration.Observe(duration.Seconds())
}

// RecordBundleSize records the size of a successfully compiled bundle
func (m *Metrics) RecordBundleSize(bytes int) {
	m.previewBundleSize.Observe(float64(bytes))
}

// UpdateUptime updates the system uptime metric
func (m *Metrics) UpdateUptime(startTime time.Time) {
	m.systemUptime.Set(time.Since(startTime).Seconds())
}

// Handler returns a Fiber handler that exposes Prometheus metrics
func (m *Metrics) Handler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}

// normalizePath prefers the route pattern over the raw path so project ids
// do not explode label cardinality
func normalizePath(routePath, rawPath string) string {
	if routePath != "" {
		return routePath
	}
	if len(rawPath) > 50 {
		return "long_path"
	}
	return rawPath
}

// statusClass returns the HTTP status class (2xx, 3xx, 4xx, 5xx)
func statusClass(status int) string {
	switch {
	case status >= 200 && status < 300:
		return "2xx"
	case status >= 300 && status < 400:
		return "3xx"
	case status >= 400 && status < 500:
		return "4xx"
	case status >= 500:
		return "5xx"
	default:
		return "1xx"
	}
}
