package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the collectors used across the process.
type Metrics struct {
	AuditEntries     *prometheus.CounterVec
	EventsEmitted    *prometheus.CounterVec
	AgentAPIRequests *prometheus.CounterVec
	AgentConnected   *prometheus.GaugeVec
}

// New creates the collectors and registers them with reg. A nil reg leaves them unregistered.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		AuditEntries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "diw_audit_entries_total",
				Help: "Total number of audit entries recorded by action",
			},
			[]string{"action"},
		),
		EventsEmitted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "diw_events_emitted_total",
				Help: "Total number of event bus emissions by category",
			},
			[]string{"category"},
		),
		AgentAPIRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "diw_agent_api_requests_total",
				Help: "Total number of agent API requests by route and status",
			},
			[]string{"route", "status"},
		),
		AgentConnected: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "diw_agent_connected",
				Help: "Whether the controller is connected to an agent (1 = connected)",
			},
			[]string{"agent"},
		),
	}

	if reg != nil {
		reg.MustRegister(m.AuditEntries, m.EventsEmitted, m.AgentAPIRequests, m.AgentConnected)
	}
	return m
}

// Noop returns unregistered collectors, for tests and tools.
func Noop() *Metrics {
	return New(nil)
}
