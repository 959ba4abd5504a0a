// Package metrics exposes Prometheus instruments for backtest runs.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds all Prometheus metrics for the backtester
// ⭐ SSOT: 메트릭 정의는 여기서만
//
// Each Registry owns its own prometheus.Registry so tests and parallel
// engines never collide on the default registerer.
type Registry struct {
	registry *prometheus.Registry

	StageDuration *prometheus.HistogramVec
	Runs          *prometheus.CounterVec
	RebalanceRows prometheus.Histogram
	CacheRequests *prometheus.CounterVec
	LastNetReturn *prometheus.GaugeVec
}

// New creates a registry with all backtester metrics registered
func New() *Registry {
	r := &Registry{
		registry: prometheus.NewRegistry(),

		StageDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "backtester_stage_duration_seconds",
				Help:    "Duration of each engine stage in seconds",
				Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
			},
			[]string{"stage"},
		),

		Runs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "backtester_runs_total",
				Help: "Total number of backtest runs by outcome",
			},
			[]string{"status"},
		),

		RebalanceRows: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "backtester_rebalance_dates",
				Help:    "Number of rebalance dates per run",
				Buckets: prometheus.ExponentialBuckets(1, 4, 8),
			},
		),

		CacheRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "backtester_cache_requests_total",
				Help: "Market data cache lookups by result",
			},
			[]string{"result"},
		),

		LastNetReturn: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "backtester_last_total_net_return",
				Help: "Total compounded net return of the latest run per strategy",
			},
			[]string{"strategy"},
		),
	}

	r.registry.MustRegister(
		r.StageDuration,
		r.Runs,
		r.RebalanceRows,
		r.CacheRequests,
		r.LastNetReturn,
	)

	return r
}

// ObserveStage records how long an engine stage took
func (r *Registry) ObserveStage(stage string, started time.Time) {
	if r == nil {
		return
	}
	r.StageDuration.WithLabelValues(stage).Observe(time.Since(started).Seconds())
}

// RunFinished counts a completed or failed run
func (r *Registry) RunFinished(err error, rebalanceDates int) {
	if r == nil {
		return
	}
	if err != nil {
		r.Runs.WithLabelValues("error").Inc()
		return
	}
	r.Runs.WithLabelValues("ok").Inc()
	r.RebalanceRows.Observe(float64(rebalanceDates))
}

// CacheLookup counts a cache hit or miss
func (r *Registry) CacheLookup(hit bool) {
	if r == nil {
		return
	}
	if hit {
		r.CacheRequests.WithLabelValues("hit").Inc()
		return
	}
	r.CacheRequests.WithLabelValues("miss").Inc()
}

// SetNetReturn publishes the final compounded return of a strategy
func (r *Registry) SetNetReturn(strategy string, total float64) {
	if r == nil {
		return
	}
	r.LastNetReturn.WithLabelValues(strategy).Set(total)
}

// Handler serves the registry in the Prometheus text format
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// Gatherer exposes the underlying registry for tests
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.registry
}
