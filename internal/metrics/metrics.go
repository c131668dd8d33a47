package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	OnlineSessions = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "chatwire_online_sessions",
		Help: "Current websocket sessions, bound or not.",
	})

	PresenceBroadcasts = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "chatwire_presence_broadcasts_total",
		Help: "Total full presence-set broadcasts.",
	})

	PushOK = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "chatwire_push_ok_total",
		Help: "Total message events queued to a recipient session.",
	})
	PushOffline = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "chatwire_push_offline_total",
		Help: "Total deliveries skipped because the recipient had no session.",
	})
	PushDropped = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "chatwire_push_dropped_total",
		Help: "Total events dropped because a session's outbound queue was full.",
	})

	MessagesStored = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "chatwire_messages_stored_total",
		Help: "Total messages persisted.",
	})
)

func Register() {
	prometheus.MustRegister(
		OnlineSessions,
		PresenceBroadcasts,
		PushOK, PushOffline, PushDropped,
		MessagesStored,
	)
}
