// Package metrics exposes prometheus collectors for the hub's live path.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Command dispatch outcome labels.
const (
	OutcomeOK           = "ok"
	OutcomeOffline      = "device_offline"
	OutcomeTransmission = "transmission_failed"
)

// Metrics holds the hub's collectors.
type Metrics struct {
	registry *prometheus.Registry

	Connections     prometheus.Gauge
	FramesTotal     *prometheus.CounterVec
	CommandsTotal   *prometheus.CounterVec
	BroadcastsTotal prometheus.Counter
	EvictionsTotal  prometheus.Counter
}

// New creates and registers the hub collectors on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		Connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "hub_connections",
			Help: "Number of currently registered websocket connections.",
		}),
		FramesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hub_frames_total",
			Help: "Total inbound frames processed by wire type (dropped covers malformed and unknown).",
		}, []string{"type"}),
		CommandsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hub_commands_total",
			Help: "Total relay command dispatches by outcome.",
		}, []string{"outcome"}),
		BroadcastsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hub_broadcasts_total",
			Help: "Total fan-out calls to viewer connections.",
		}),
		EvictionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hub_evictions_total",
			Help: "Total connections evicted by the liveness monitor.",
		}),
	}

	m.registry.MustRegister(
		m.Connections,
		m.FramesTotal,
		m.CommandsTotal,
		m.BroadcastsTotal,
		m.EvictionsTotal,
	)
	return m
}

// Handler serves the collectors in prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
