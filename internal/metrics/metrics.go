// Package metrics provides the Prometheus collectors Maestra's C3 bus,
// C5 stream registry, and C6 negotiator publish their activity through,
// exposed by C8 at GET /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds every collector Maestra registers.
type Metrics struct {
	BusPublishesTotal *prometheus.CounterVec
	Negotiations      *prometheus.CounterVec
	ActiveStreams     prometheus.Gauge
	ActiveSessions    prometheus.Gauge
}

// New creates a Metrics instance registered against the default registerer,
// suitable for a single-process deployment.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates a Metrics instance registered against registerer.
func NewWithRegistry(registerer prometheus.Registerer) *Metrics {
	m := &Metrics{
		BusPublishesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "maestra_bus_publishes_total",
				Help: "Total messages published on the fan-out bus, by tree.",
			},
			[]string{"tree"},
		),
		Negotiations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "maestra_negotiations_total",
				Help: "Total stream negotiation requests, by outcome.",
			},
			[]string{"outcome"},
		),
		ActiveStreams: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "maestra_active_streams",
				Help: "Currently advertised streams.",
			},
		),
		ActiveSessions: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "maestra_active_sessions",
				Help: "Currently open negotiated sessions.",
			},
		),
	}

	registerer.MustRegister(
		m.BusPublishesTotal,
		m.Negotiations,
		m.ActiveStreams,
		m.ActiveSessions,
	)

	return m
}

// RecordBusPublish increments the publish counter for the given tree
// ("nats" or "mqtt").
func (m *Metrics) RecordBusPublish(tree string) {
	if m == nil {
		return
	}

	m.BusPublishesTotal.WithLabelValues(tree).Inc()
}

// RecordNegotiation increments the negotiation counter for the given
// outcome ("accepted", "rejected", or "error").
func (m *Metrics) RecordNegotiation(outcome string) {
	if m == nil {
		return
	}

	m.Negotiations.WithLabelValues(outcome).Inc()
}

// StreamAdvertised and StreamWithdrawn track the active-stream gauge.
func (m *Metrics) StreamAdvertised() {
	if m == nil {
		return
	}

	m.ActiveStreams.Inc()
}

func (m *Metrics) StreamWithdrawn() {
	if m == nil {
		return
	}

	m.ActiveStreams.Dec()
}

// SessionOpened and SessionClosed track the active-session gauge.
func (m *Metrics) SessionOpened() {
	if m == nil {
		return
	}

	m.ActiveSessions.Inc()
}

func (m *Metrics) SessionClosed() {
	if m == nil {
		return
	}

	m.ActiveSessions.Dec()
}
