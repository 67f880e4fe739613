package hub

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	connectionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "chat_connections_active",
		Help: "Currently admitted websocket connections.",
	})
	messagesPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chat_messages_published_total",
		Help: "Messages durably stored and fanned out, per channel.",
	}, []string{"channel"})
	eventsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chat_events_dropped_total",
		Help: "Events dropped because a member's send queue was full.",
	})
)
