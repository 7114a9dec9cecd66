package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SocketEventsTotal counts inbound socket events by name.
	SocketEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chatsync_socket_events_total",
		Help: "Total inbound socket events by name",
	}, []string{"event"})

	// SocketEmitsTotal counts outbound socket emissions by name and result.
	SocketEmitsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chatsync_socket_emits_total",
		Help: "Total outbound socket emissions by name and result",
	}, []string{"event", "result"})

	// SocketConnectionsTotal counts connection attempts by outcome.
	SocketConnectionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chatsync_socket_connections_total",
		Help: "Total socket connection attempts by outcome",
	}, []string{"outcome"})

	// SocketConnected is 1 while the shared connection is up.
	SocketConnected = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "chatsync_socket_connected",
		Help: "Whether the shared socket connection is up",
	})

	// RouterRebindsTotal counts unbind-all/rebind-all passes.
	RouterRebindsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chatsync_router_rebinds_total",
		Help: "Total event router rebind passes",
	})

	// ReconciliationMisses counts acks and errors referencing an unknown temp id.
	ReconciliationMisses = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chatsync_reconciliation_misses_total",
		Help: "Total acknowledgments or errors for unknown temp ids",
	}, []string{"event"})

	// OptimisticRollbacks counts rolled back optimistic mutations by flow.
	OptimisticRollbacks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chatsync_optimistic_rollbacks_total",
		Help: "Total optimistic mutations rolled back after a failed confirmation",
	}, []string{"flow"})

	// SendBackpressureDrops counts outbound frames dropped because the send buffer was full.
	SendBackpressureDrops = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chatsync_send_backpressure_drops_total",
		Help: "Total outbound frames dropped due to a full send buffer",
	})
)
