// Package metrics provides Prometheus counters for the file bots.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the bots.
type Metrics struct {
	TokensIssued     prometheus.Counter
	PostsTotal       *prometheus.CounterVec
	RedemptionsTotal *prometheus.CounterVec
	GateChecksTotal  *prometheus.CounterVec
	DeletionsTotal   *prometheus.CounterVec
	RepostsTotal     *prometheus.CounterVec
	PendingDeletions prometheus.Gauge

	registry *prometheus.Registry
}

// New creates and registers all metrics.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		TokensIssued: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "filegate_tokens_issued_total",
				Help: "Total number of file tokens written by the posting flow.",
			},
		),
		PostsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "filegate_posts_total",
				Help: "Operator post attempts by outcome.",
			},
			[]string{"outcome"},
		),
		RedemptionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "filegate_redemptions_total",
				Help: "Token redemptions by entry point and outcome.",
			},
			[]string{"via", "outcome"},
		),
		GateChecksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "filegate_gate_checks_total",
				Help: "Membership gate evaluations by result.",
			},
			[]string{"result"},
		),
		DeletionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "filegate_deletions_total",
				Help: "Deferred deletions fired by result.",
			},
			[]string{"result"},
		),
		RepostsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "filegate_reposts_total",
				Help: "Channel posts mirrored by media kind and result.",
			},
			[]string{"kind", "result"},
		),
		PendingDeletions: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "filegate_pending_deletions",
				Help: "Deletions currently armed.",
			},
		),
		registry: reg,
	}

	reg.MustRegister(m.TokensIssued)
	reg.MustRegister(m.PostsTotal)
	reg.MustRegister(m.RedemptionsTotal)
	reg.MustRegister(m.GateChecksTotal)
	reg.MustRegister(m.DeletionsTotal)
	reg.MustRegister(m.RepostsTotal)
	reg.MustRegister(m.PendingDeletions)

	return m
}

// Handler returns an http.Handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// AddTokens increments the issued token counter.
func (m *Metrics) AddTokens(n int) {
	if m == nil {
		return
	}
	m.TokensIssued.Add(float64(n))
}

// RecordPost increments the post counter.
func (m *Metrics) RecordPost(outcome string) {
	if m == nil {
		return
	}
	m.PostsTotal.WithLabelValues(outcome).Inc()
}

// RecordRedemption increments the redemption counter.
func (m *Metrics) RecordRedemption(via, outcome string) {
	if m == nil {
		return
	}
	m.RedemptionsTotal.WithLabelValues(via, outcome).Inc()
}

// RecordGate increments the gate counter.
func (m *Metrics) RecordGate(passed bool) {
	if m == nil {
		return
	}
	result := "blocked"
	if passed {
		result = "passed"
	}
	m.GateChecksTotal.WithLabelValues(result).Inc()
}

// RecordDeletion increments the deletion counter.
func (m *Metrics) RecordDeletion(result string) {
	if m == nil {
		return
	}
	m.DeletionsTotal.WithLabelValues(result).Inc()
}

// RecordRepost increments the repost counter.
func (m *Metrics) RecordRepost(kind, result string) {
	if m == nil {
		return
	}
	m.RepostsTotal.WithLabelValues(kind, result).Inc()
}

// SetPendingDeletions sets the armed deletion gauge.
func (m *Metrics) SetPendingDeletions(n int) {
	if m == nil {
		return
	}
	m.PendingDeletions.Set(float64(n))
}
