// Package metrics holds the Prometheus collectors shared across the
// service. All collectors are registered via promauto at init time.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ActiveRooms is the number of list rooms with at least one member.
	ActiveRooms = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "room_active_rooms",
		Help: "Number of list rooms with at least one connected session",
	})

	// ConnectedClients is the number of live WebSocket connections.
	ConnectedClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "room_connected_clients",
		Help: "Number of connected WebSocket sessions",
	})

	// EventsPublishedTotal counts published change events by kind.
	EventsPublishedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "room_events_published_total",
		Help: "Total change events published to rooms, by event kind",
	}, []string{"event"})

	// SlowClientsEvicted counts clients dropped for a full send buffer.
	SlowClientsEvicted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "room_slow_clients_evicted_total",
		Help: "Clients disconnected because their send buffer was full",
	})

	// WebSocketPingFailures counts failed keepalive pings.
	WebSocketPingFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "websocket_ping_failures_total",
		Help: "Keepalive pings that failed to write",
	})

	// RelayMessagesTotal counts cross-instance relay traffic.
	RelayMessagesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "relay_messages_total",
		Help: "Relay messages by direction (published/received/skipped)",
	}, []string{"direction"})

	// MutationsTotal counts coordinator mutations by operation and outcome.
	MutationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mutations_total",
		Help: "Mutation coordinator operations by name and outcome",
	}, []string{"operation", "outcome"})
)
