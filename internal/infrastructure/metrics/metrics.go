package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Room lifecycle
	RoomsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "syncstream_rooms_created_total",
			Help: "Total rooms created",
		},
	)

	RoomsExpired = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "syncstream_rooms_expired_total",
			Help: "Total rooms removed by the idle sweep",
		},
	)

	RoomsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "syncstream_rooms_active",
			Help: "Rooms currently registered",
		},
	)

	// Playback sync
	IntentsApplied = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "syncstream_intents_applied_total",
			Help: "Playback intents accepted, by kind",
		},
		[]string{"kind"},
	)

	IntentsRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "syncstream_intents_rejected_total",
			Help: "Playback intents rejected, by reason",
		},
		[]string{"reason"},
	)

	// Chat
	MessagesPosted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "syncstream_messages_posted_total",
			Help: "Chat messages accepted",
		},
	)

	// Gateway
	ClientsConnected = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "syncstream_clients_connected",
			Help: "WebSocket clients currently connected",
		},
	)

	EventsDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "syncstream_events_dropped_total",
			Help: "Events dropped because a client send buffer was full or closed",
		},
	)

	DeliveryFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "syncstream_delivery_failures_total",
			Help: "Per-recipient delivery failures that demoted a member to offline",
		},
	)
)
