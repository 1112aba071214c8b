package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// Gateway HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Upstream call metrics
	UpstreamRequestsTotal   *prometheus.CounterVec
	UpstreamRequestDuration *prometheus.HistogramVec
	FallbacksTotal          *prometheus.CounterVec

	// Audit metrics
	AuditRunsTotal          *prometheus.CounterVec
	AuditRunDuration        prometheus.Histogram
	AuditFindingsTotal      *prometheus.CounterVec
	SmokeTestsTotal         *prometheus.CounterVec
	PagesFetchedTotal       prometheus.Counter
	CollectionsAuditedTotal prometheus.Counter
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cmsgate_http_requests_total",
				Help: "Total number of gateway HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "cmsgate_http_request_duration_seconds",
				Help:    "Gateway HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		UpstreamRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cmsgate_upstream_requests_total",
				Help: "Total number of upstream CMS requests",
			},
			[]string{"method", "generation", "status"},
		),
		UpstreamRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "cmsgate_upstream_request_duration_seconds",
				Help:    "Upstream CMS request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "generation"},
		),
		FallbacksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cmsgate_fallbacks_total",
				Help: "Total number of version/shape/discovery fallbacks taken",
			},
			[]string{"kind"},
		),
		AuditRunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cmsgate_audit_runs_total",
				Help: "Total number of audit runs",
			},
			[]string{"status"},
		),
		AuditRunDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "cmsgate_audit_run_duration_seconds",
				Help:    "Audit run duration in seconds",
				Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
			},
		),
		AuditFindingsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cmsgate_audit_findings_total",
				Help: "Total number of audit findings by kind",
			},
			[]string{"kind"},
		),
		SmokeTestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cmsgate_smoke_tests_total",
				Help: "Total number of smoke-test runs",
			},
			[]string{"status"},
		),
		PagesFetchedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "cmsgate_pages_fetched_total",
				Help: "Total number of item pages fetched from the upstream",
			},
		),
		CollectionsAuditedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "cmsgate_collections_audited_total",
				Help: "Total number of collections audited",
			},
		),
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.UpstreamRequestsTotal,
		m.UpstreamRequestDuration,
		m.FallbacksTotal,
		m.AuditRunsTotal,
		m.AuditRunDuration,
		m.AuditFindingsTotal,
		m.SmokeTestsTotal,
		m.PagesFetchedTotal,
		m.CollectionsAuditedTotal,
	)

	return m
}

// ObserveUpstreamRequest records one upstream call outcome
func (m *Metrics) ObserveUpstreamRequest(method, generation string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.UpstreamRequestsTotal.WithLabelValues(method, generation, strconv.Itoa(status)).Inc()
	m.UpstreamRequestDuration.WithLabelValues(method, generation).Observe(duration.Seconds())
}

// ObserveFallback records one fallback of the given kind
func (m *Metrics) ObserveFallback(kind string) {
	if m == nil {
		return
	}
	m.FallbacksTotal.WithLabelValues(kind).Inc()
}

// Handler returns an http.Handler exposing the registry's metrics
func Handler(registry *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
