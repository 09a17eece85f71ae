package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "roomchat_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// Hub metrics
	ConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "roomchat_connections_active",
			Help: "Live WebSocket connections attached to the hub",
		},
	)

	RoomsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "roomchat_rooms_active",
			Help: "Rooms with at least one member",
		},
	)

	EventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "roomchat_events_total",
			Help: "Inbound events processed by the hub",
		},
		[]string{"event", "outcome"}, // outcome: "ok" or "rejected"
	)

	MessagesFannedOut = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "roomchat_messages_fanned_out_total",
			Help: "Chat messages relayed to a room",
		},
	)

	DeliveriesDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "roomchat_deliveries_dropped_total",
			Help: "Outbound frames dropped because a connection's send queue was full",
		},
	)
)
