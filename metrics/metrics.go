// Package metrics exposes Prometheus collectors for transitions, proofs,
// submissions and the RPC server. Collectors are fed from events so the
// core packages never import Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tolelom/zkgame/events"
)

const namespace = "zkgame"

// Metrics holds every collector.
type Metrics struct {
	reg prometheus.Gatherer

	Phases        *prometheus.CounterVec
	ProofDuration *prometheus.HistogramVec
	Submissions   *prometheus.CounterVec
	InFlight      prometheus.Gauge
	LocalActions  *prometheus.CounterVec
	RPCRequests   *prometheus.CounterVec
	RPCDuration   *prometheus.HistogramVec
}

// New registers the collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Metrics{
		reg: reg,
		Phases: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "orchestrator",
			Name:      "phase_transitions_total",
			Help:      "State-machine phase entries by action and phase",
		}, []string{"action", "phase"}),
		ProofDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "prover",
			Name:      "proof_duration_seconds",
			Help:      "Wall time spent generating a proof",
			Buckets:   []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		}, []string{"action"}),
		Submissions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "gateway",
			Name:      "submissions_total",
			Help:      "Verifier submissions by action and outcome",
		}, []string{"action", "outcome"}),
		InFlight: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "orchestrator",
			Name:      "in_flight",
			Help:      "Transitions currently running",
		}),
		LocalActions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "actions",
			Name:      "applied_total",
			Help:      "Local actions applied by type",
		}, []string{"action"}),
		RPCRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "rpc",
			Name:      "requests_total",
			Help:      "JSON-RPC requests by method and status",
		}, []string{"method", "status"}),
		RPCDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "rpc",
			Name:      "request_duration_seconds",
			Help:      "JSON-RPC request duration",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 30, 120},
		}, []string{"method"}),
	}
}

// Attach subscribes the collectors to e.
func (m *Metrics) Attach(e *events.Emitter) {
	e.Subscribe(events.EventPhase, func(ev events.Event) {
		action, _ := ev.Data["action"].(string)
		phase, _ := ev.Data["phase"].(string)
		m.Phases.WithLabelValues(action, phase).Inc()
		switch phase {
		case "validating":
			m.InFlight.Inc()
		case "idle":
			m.InFlight.Dec()
		}
	})
	e.Subscribe(events.EventProofGenerated, func(ev events.Event) {
		action, _ := ev.Data["action"].(string)
		if d, ok := ev.Data["took"].(time.Duration); ok {
			m.ProofDuration.WithLabelValues(action).Observe(d.Seconds())
		}
	})
	e.Subscribe(events.EventSubmitted, func(ev events.Event) {
		action, _ := ev.Data["action"].(string)
		outcome := "rejected"
		if ok, _ := ev.Data["success"].(bool); ok {
			outcome = "accepted"
		}
		m.Submissions.WithLabelValues(action, outcome).Inc()
	})
	e.Subscribe(events.EventLocalApplied, func(ev events.Event) {
		action, _ := ev.Data["action"].(string)
		m.LocalActions.WithLabelValues(action).Inc()
	})
}

// ObserveRPC records one RPC call.
func (m *Metrics) ObserveRPC(method string, failed bool, took time.Duration) {
	status := "ok"
	if failed {
		status = "error"
	}
	m.RPCRequests.WithLabelValues(method, status).Inc()
	m.RPCDuration.WithLabelValues(method).Observe(took.Seconds())
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}

// Gatherer exposes the registry, mainly for tests.
func (m *Metrics) Gatherer() prometheus.Gatherer { return m.reg }
