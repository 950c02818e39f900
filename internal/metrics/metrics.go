// Package metrics exposes the server's Prometheus collectors. Everything
// registers on the default registry and is served by the bridge's /metrics
// route.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	DatagramsReceived = promauto.NewCounter(prometheus.CounterOpts{
		Name: "clubcthulu_datagrams_received_total",
		Help: "Datagrams read off the UDP socket or a bridge peer",
	})

	DatagramsSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "clubcthulu_datagrams_sent_total",
		Help: "Datagrams written to clients, first transmissions and retries",
	})

	Retransmissions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "clubcthulu_retransmissions_total",
		Help: "Pending messages re-sent after the retry interval elapsed",
	})

	Confirms = promauto.NewCounter(prometheus.CounterOpts{
		Name: "clubcthulu_confirms_total",
		Help: "Packet confirmations accepted from clients",
	})

	PendingExpired = promauto.NewCounter(prometheus.CounterOpts{
		Name: "clubcthulu_pending_expired_total",
		Help: "Pending messages dropped after retries were exhausted",
	})

	SessionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "clubcthulu_sessions_active",
		Help: "Clients currently registered",
	})

	SessionsKicked = promauto.NewCounter(prometheus.CounterOpts{
		Name: "clubcthulu_sessions_kicked_total",
		Help: "Sessions removed by kick, including liveness timeouts",
	})

	WorldTicks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "clubcthulu_world_ticks_total",
		Help: "Simulation ticks completed",
	})

	ChatMessages = promauto.NewCounter(prometheus.CounterOpts{
		Name: "clubcthulu_chat_messages_total",
		Help: "Chat messages persisted and broadcast",
	})

	RequestErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "clubcthulu_request_errors_total",
		Help: "Error responses sent, by error code",
	}, []string{"code"})
)
