// Package metrics provides Prometheus metrics for the profile agent.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the agent.
type Metrics struct {
	TurnsTotal     *prometheus.CounterVec
	TurnDuration   *prometheus.HistogramVec
	ActionsTotal   *prometheus.CounterVec
	LLMDuration    prometheus.Histogram
	MessagesSent   *prometheus.CounterVec
	StoreDegraded  prometheus.Gauge
	SessionsActive prometheus.Gauge
	ErrorsTotal    *prometheus.CounterVec

	registry *prometheus.Registry
}

// New creates and registers all metrics.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		TurnsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agent_turns_total",
				Help: "Total conversation turns by stage and outcome.",
			},
			[]string{"stage", "outcome"},
		),
		TurnDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "agent_turn_duration_seconds",
				Help:    "Turn processing duration by stage.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"stage"},
		),
		ActionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agent_actions_total",
				Help: "Executed actions by type and status.",
			},
			[]string{"action", "status"},
		),
		LLMDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "agent_llm_duration_seconds",
				Help:    "LLM decision call duration.",
				Buckets: []float64{0.5, 1, 2, 5, 10, 20, 60},
			},
		),
		MessagesSent: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agent_messages_sent_total",
				Help: "Outbound messages by delivery status.",
			},
			[]string{"status"},
		),
		StoreDegraded: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "agent_store_degraded",
				Help: "1 when the session store has fallen back to memory.",
			},
		),
		SessionsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "agent_sessions_active",
				Help: "Number of known sessions.",
			},
		),
		ErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agent_errors_total",
				Help: "Total errors by module and type.",
			},
			[]string{"module", "type"},
		),
		registry: reg,
	}

	reg.MustRegister(m.TurnsTotal)
	reg.MustRegister(m.TurnDuration)
	reg.MustRegister(m.ActionsTotal)
	reg.MustRegister(m.LLMDuration)
	reg.MustRegister(m.MessagesSent)
	reg.MustRegister(m.StoreDegraded)
	reg.MustRegister(m.SessionsActive)
	reg.MustRegister(m.ErrorsTotal)

	return m
}

// Handler returns an http.Handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordTurn increments the turn counter and observes its duration.
func (m *Metrics) RecordTurn(stage, outcome string, seconds float64) {
	m.TurnsTotal.WithLabelValues(stage, outcome).Inc()
	m.TurnDuration.WithLabelValues(stage).Observe(seconds)
}

// RecordAction increments the action counter.
func (m *Metrics) RecordAction(action, status string) {
	m.ActionsTotal.WithLabelValues(action, status).Inc()
}

// RecordError increments the error counter.
func (m *Metrics) RecordError(module, errType string) {
	m.ErrorsTotal.WithLabelValues(module, errType).Inc()
}
