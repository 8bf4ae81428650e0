package keeper

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics are the keeper's Prometheus series, served at /metrics by the API
// layer.
type Metrics struct {
	Cycles        prometheus.Counter
	Candidates    prometheus.Counter
	Executed      prometheus.Counter
	Skipped       *prometheus.CounterVec
	SubmitFailed  prometheus.Counter
	CacheSize     prometheus.Gauge
	CycleDuration prometheus.Histogram
}

// NewMetrics builds and registers the keeper metric set. Pass a fresh
// registry in tests to avoid duplicate registration.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Cycles: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "keeper_poll_cycles_total",
			Help: "Completed poll cycles",
		}),
		Candidates: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "keeper_triggered_candidates_total",
			Help: "Triggered records discovered",
		}),
		Executed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "keeper_executions_total",
			Help: "Successful execution bundles",
		}),
		Skipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "keeper_skips_total",
			Help: "Candidates skipped, by reason",
		}, []string{"reason"}),
		SubmitFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "keeper_submit_failures_total",
			Help: "Bundle submissions that failed",
		}),
		CacheSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "keeper_params_cache_entries",
			Help: "Registered plaintext parameter entries",
		}),
		CycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "keeper_cycle_duration_seconds",
			Help:    "Wall time of one poll cycle",
			Buckets: prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(m.Cycles, m.Candidates, m.Executed, m.Skipped, m.SubmitFailed, m.CacheSize, m.CycleDuration)
	return m
}

// Skip reasons.
const (
	skipNoCache       = "no_cache_entry"
	skipBadCommitment = "commitment_mismatch"
	skipStalePrice    = "stale_price"
	skipFeedError     = "feed_error"
)
