// Package metrics holds the Prometheus instruments for a holdwise process.
// All recording methods are no-ops on a nil *Metrics so components can run
// without instrumentation in tests.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every instrument registered on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	Resolutions     *prometheus.CounterVec
	BatchCalls      *prometheus.CounterVec
	CacheHits       *prometheus.CounterVec
	CacheMisses     *prometheus.CounterVec
	EnrichFailures  *prometheus.CounterVec
	ManagerRuns     *prometheus.CounterVec
	ManagerDuration prometheus.Histogram
	ActiveManagers  prometheus.Gauge
}

// New creates and registers all holdwise metrics.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		Resolutions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "holdwise_resolutions_total",
				Help: "Holdings resolved, by resolution method",
			},
			[]string{"method"},
		),

		BatchCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "holdwise_resolver_batch_calls_total",
				Help: "Batched external identifier lookups, by result",
			},
			[]string{"result"},
		),

		CacheHits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "holdwise_cache_hits_total",
				Help: "Cache hits by cache name",
			},
			[]string{"cache"},
		),

		CacheMisses: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "holdwise_cache_misses_total",
				Help: "Cache misses by cache name",
			},
			[]string{"cache"},
		),

		EnrichFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "holdwise_enrichment_failures_total",
				Help: "Enrichment source failures, by source",
			},
			[]string{"source"},
		),

		ManagerRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "holdwise_manager_runs_total",
				Help: "Manager pipelines completed, by status",
			},
			[]string{"status"},
		),

		ManagerDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "holdwise_manager_duration_seconds",
				Help:    "Wall time of one manager pipeline",
				Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
			},
		),

		ActiveManagers: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "holdwise_active_managers",
				Help: "Manager pipelines currently running",
			},
		),
	}

	m.registry.MustRegister(
		m.Resolutions,
		m.BatchCalls,
		m.CacheHits,
		m.CacheMisses,
		m.EnrichFailures,
		m.ManagerRuns,
		m.ManagerDuration,
		m.ActiveManagers,
	)
	return m
}

// Registry exposes the underlying registry for gathering.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Resolved records one holding resolved by method.
func (m *Metrics) Resolved(method string) {
	if m == nil {
		return
	}
	m.Resolutions.WithLabelValues(method).Inc()
}

// BatchCall records one batched external lookup attempt outcome.
func (m *Metrics) BatchCall(result string) {
	if m == nil {
		return
	}
	m.BatchCalls.WithLabelValues(result).Inc()
}

// CacheLookup records a cache hit or miss.
func (m *Metrics) CacheLookup(cache string, hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.CacheHits.WithLabelValues(cache).Inc()
	} else {
		m.CacheMisses.WithLabelValues(cache).Inc()
	}
}

// EnrichFailed records a failed enrichment source call.
func (m *Metrics) EnrichFailed(source string) {
	if m == nil {
		return
	}
	m.EnrichFailures.WithLabelValues(source).Inc()
}

// ManagerStarted marks a manager pipeline as running.
func (m *Metrics) ManagerStarted() {
	if m == nil {
		return
	}
	m.ActiveManagers.Inc()
}

// ManagerFinished records a manager pipeline outcome and duration.
func (m *Metrics) ManagerFinished(status string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.ActiveManagers.Dec()
	m.ManagerRuns.WithLabelValues(status).Inc()
	m.ManagerDuration.Observe(elapsed.Seconds())
}
