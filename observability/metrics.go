// Package observability exposes the process metrics over the default
// prometheus registry, served at /metrics.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ActiveConnections tracks live websocket connections.
	ActiveConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "kolloquy",
		Name:      "active_connections",
		Help:      "Number of open live-channel connections.",
	})

	// ActiveRooms tracks room channels currently held by the hub.
	ActiveRooms = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "kolloquy",
		Name:      "active_rooms",
		Help:      "Number of room broadcast channels with subscribers.",
	})

	// EnvelopesPublished counts envelopes accepted for fan-out.
	EnvelopesPublished = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "kolloquy",
		Name:      "envelopes_published_total",
		Help:      "Envelopes published to room channels.",
	})

	// EnvelopesDropped counts envelopes lost to lagging subscribers.
	EnvelopesDropped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "kolloquy",
		Name:      "envelopes_dropped_total",
		Help:      "Envelopes dropped because a subscriber buffer was full.",
	})

	// SessionsEvicted counts sessions removed by lazy expiry.
	SessionsEvicted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "kolloquy",
		Name:      "sessions_evicted_total",
		Help:      "Sessions evicted after their TTL elapsed.",
	})
)
