package observability

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aretw0/sieve/pkg/domain"
)

// Metrics holds the Prometheus collectors fed by the engine hooks.
type Metrics struct {
	registry *prometheus.Registry

	nodeVisits    *prometheus.CounterVec
	nodeFailures  *prometheus.CounterVec
	signals       *prometheus.CounterVec
	modelDuration *prometheus.HistogramVec
	modelErrors   *prometheus.CounterVec
	outcomes      *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them, together with the
// Go runtime collectors, on a fresh registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		nodeVisits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sieve_node_visits_total",
			Help: "Total number of node visits",
		}, []string{"node_id", "family"}),
		nodeFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sieve_node_failures_total",
			Help: "Nodes that returned an error",
		}, []string{"node_id"}),
		signals: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sieve_signals_total",
			Help: "Signals emitted when leaving a node",
		}, []string{"node_id", "signal"}),
		modelDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "sieve_model_call_duration_seconds",
			Help:    "Duration of language model round trips",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"node_id", "model"}),
		modelErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sieve_model_errors_total",
			Help: "Language model calls that failed",
		}, []string{"node_id", "model"}),
		outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sieve_outcomes_total",
			Help: "Engine runs by outcome kind",
		}, []string{"kind"}),
	}
	m.registry.MustRegister(
		m.nodeVisits, m.nodeFailures, m.signals,
		m.modelDuration, m.modelErrors, m.outcomes,
		collectors.NewGoCollector(),
	)
	return m
}

// Registry exposes the underlying registry, mostly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Hooks returns lifecycle hooks that record into m.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnNodeEnter: func(_ context.Context, e *domain.NodeEvent) {
			m.nodeVisits.WithLabelValues(string(e.NodeID), string(e.Family)).Inc()
		},
		OnNodeLeave: func(_ context.Context, e *domain.NodeEvent) {
			if e.Err != nil {
				m.nodeFailures.WithLabelValues(string(e.NodeID)).Inc()
				return
			}
			m.signals.WithLabelValues(string(e.NodeID), string(e.Signal)).Inc()
		},
		OnModelReturn: func(_ context.Context, e *domain.ModelEvent) {
			m.modelDuration.WithLabelValues(string(e.NodeID), e.Model).Observe(e.Duration.Seconds())
			if e.IsError {
				m.modelErrors.WithLabelValues(string(e.NodeID), e.Model).Inc()
			}
		},
	}
}

// RecordOutcome counts a finished Start or Resume call.
func (m *Metrics) RecordOutcome(out *domain.Outcome) {
	if out == nil {
		return
	}
	m.outcomes.WithLabelValues(string(out.Kind)).Inc()
}
