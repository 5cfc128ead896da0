package metrics

import (
	"runtime"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// APIMetrics covers the admin API's own HTTP surface and its database
// collaborators (audit, serverregistry), separate from MonitorMetrics
// which covers the probe/diff/dispatch/journal pipeline itself.
type APIMetrics struct {
	RequestDuration *prometheus.HistogramVec
	RequestsTotal   *prometheus.CounterVec
	RequestErrors   *prometheus.CounterVec
	ActiveRequests  *prometheus.GaugeVec

	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec

	GoroutineCount   prometheus.Gauge
	MemoryAllocBytes prometheus.Gauge
	GCPauseDuration  *prometheus.HistogramVec
}

// NewAPIMetrics creates and registers the admin API's Prometheus metrics.
func NewAPIMetrics() *APIMetrics {
	return &APIMetrics{
		RequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "clustermon_admin_api_request_duration_seconds",
				Help:    "Admin API request latency in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5},
			},
			[]string{"method", "endpoint", "status"},
		),
		RequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "clustermon_admin_api_requests_total",
				Help: "Total number of admin API requests",
			},
			[]string{"method", "endpoint", "status"},
		),
		RequestErrors: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "clustermon_admin_api_request_errors_total",
				Help: "Total number of admin API request errors (status >= 500)",
			},
			[]string{"method", "endpoint"},
		),
		ActiveRequests: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "clustermon_admin_api_requests_active",
				Help: "Number of currently in-flight admin API requests",
			},
			[]string{"method", "endpoint"},
		),
		DBQueryDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "clustermon_db_query_duration_seconds",
				Help:    "Duration of audit/registry database queries",
				Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0},
			},
			[]string{"component", "operation"},
		),
		DBQueryErrors: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "clustermon_db_query_errors_total",
				Help: "Total number of audit/registry database query errors",
			},
			[]string{"component", "operation"},
		),
		GoroutineCount: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "clustermon_goroutines",
				Help: "Number of currently running goroutines",
			},
		),
		MemoryAllocBytes: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "clustermon_memory_alloc_bytes",
				Help: "Bytes allocated and still in use",
			},
		),
		GCPauseDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "clustermon_gc_pause_seconds",
				Help:    "Garbage collection pause duration in seconds",
				Buckets: []float64{0.00001, 0.0001, 0.001, 0.01, 0.1},
			},
			[]string{"type"},
		),
	}
}

// RecordAPIRequest records one admin API request's outcome and latency.
func (m *APIMetrics) RecordAPIRequest(method, endpoint, status string, durationSeconds float64) {
	m.RequestDuration.WithLabelValues(method, endpoint, status).Observe(durationSeconds)
	m.RequestsTotal.WithLabelValues(method, endpoint, status).Inc()
}

// RecordAPIError records a 5xx admin API response.
func (m *APIMetrics) RecordAPIError(method, endpoint string) {
	m.RequestErrors.WithLabelValues(method, endpoint).Inc()
}

func (m *APIMetrics) IncActiveRequests(method, endpoint string) {
	m.ActiveRequests.WithLabelValues(method, endpoint).Inc()
}

func (m *APIMetrics) DecActiveRequests(method, endpoint string) {
	m.ActiveRequests.WithLabelValues(method, endpoint).Dec()
}

// RecordDBQuery records one audit/registry database call.
func (m *APIMetrics) RecordDBQuery(component, operation string, durationSeconds float64) {
	m.DBQueryDuration.WithLabelValues(component, operation).Observe(durationSeconds)
}

// RecordDBError records a failed audit/registry database call.
func (m *APIMetrics) RecordDBError(component, operation string) {
	m.DBQueryErrors.WithLabelValues(component, operation).Inc()
}

// collectRuntimeStats samples goroutine count, heap usage, and the most
// recent GC pause. Called periodically by Server.
func (m *APIMetrics) collectRuntimeStats() {
	var stats runtime.MemStats
	runtime.ReadMemStats(&stats)

	m.GoroutineCount.Set(float64(runtime.NumGoroutine()))
	m.MemoryAllocBytes.Set(float64(stats.Alloc))

	if stats.PauseNs[(stats.NumGC+255)%256] > 0 {
		pauseSeconds := float64(stats.PauseNs[(stats.NumGC+255)%256]) / 1e9
		m.GCPauseDuration.WithLabelValues("stop-the-world").Observe(pauseSeconds)
	}
}
