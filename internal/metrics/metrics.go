package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Chunk outcomes
const (
	ChunkSuccess  = "success"
	ChunkConflict = "conflict"
	ChunkFailure  = "failure"
)

// Event results
const (
	EventApplied   = "applied"
	EventStale     = "stale"
	EventIgnored   = "ignored"
	EventMalformed = "malformed"
)

// Metrics holds the collectors of the minting engine.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	claimed        prometheus.Counter
	released       prometheus.Counter
	chunks         *prometheus.CounterVec
	records        *prometheus.CounterVec
	events         *prometheus.CounterVec
	quotaRemaining prometheus.Gauge
}

// New creates the collectors on a dedicated registry
func New(app string) *Metrics {
	labels := prometheus.Labels{"app": app}
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		claimed: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "mint_claimed_total",
			Help:        "Mint requests claimed by the submission loop",
			ConstLabels: labels,
		}),
		released: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "mint_stale_claims_released_total",
			Help:        "Stale claims moved back to unset",
			ConstLabels: labels,
		}),
		chunks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "mint_chunks_total",
			Help:        "Chunks submitted to the minting API by outcome",
			ConstLabels: labels,
		}, []string{"outcome"}),
		records: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "mint_records_total",
			Help:        "Mint requests transitioned by the submission loop by status",
			ConstLabels: labels,
		}, []string{"status"}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "mint_events_total",
			Help:        "Reconciliation events by result",
			ConstLabels: labels,
		}, []string{"result"}),
		quotaRemaining: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "mint_quota_remaining",
			Help:        "Remaining mint requests reported by the minting API",
			ConstLabels: labels,
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.claimed,
		m.released,
		m.chunks,
		m.records,
		m.events,
		m.quotaRemaining,
	)

	return m
}

// Handler serves the registry in the prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) Claimed(n int) {
	if m == nil {
		return
	}
	m.claimed.Add(float64(n))
}

func (m *Metrics) Released(n int64) {
	if m == nil {
		return
	}
	m.released.Add(float64(n))
}

func (m *Metrics) Chunk(outcome string) {
	if m == nil {
		return
	}
	m.chunks.WithLabelValues(outcome).Inc()
}

func (m *Metrics) Records(status string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.records.WithLabelValues(status).Add(float64(n))
}

func (m *Metrics) Event(result string) {
	if m == nil {
		return
	}
	m.events.WithLabelValues(result).Inc()
}

func (m *Metrics) QuotaRemaining(n int) {
	if m == nil {
		return
	}
	m.quotaRemaining.Set(float64(n))
}
