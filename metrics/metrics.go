package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	OpenConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "rentchat_open_connections",
		Help: "Live websocket connections.",
	})

	OnlineUsers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "rentchat_online_users",
		Help: "Users with at least one live connection.",
	})

	MessagesDelivered = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rentchat_messages_delivered_total",
		Help: "Messages accepted by the delivery pipeline.",
	})

	SlowConsumersDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rentchat_slow_consumers_dropped_total",
		Help: "Connections dropped because their outbound queue overflowed.",
	})

	BroadcastFanout = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "rentchat_broadcast_fanout",
		Help:    "Connections reached per room broadcast.",
		Buckets: []float64{0, 1, 2, 3, 5, 8, 13},
	})
)
