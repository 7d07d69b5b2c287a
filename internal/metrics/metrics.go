// Package metrics declares the Prometheus collectors of the bot.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Updates counts inbound Telegram updates by kind (message, callback, location).
	Updates = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "academybot_updates_total",
		Help: "Telegram updates handled, by kind.",
	}, []string{"kind"})

	// Denials counts operations refused by the authorization gate.
	Denials = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "academybot_denials_total",
		Help: "Operations refused by the authorization gate, by capability.",
	}, []string{"capability"})

	Notifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "academybot_notifications_total",
		Help: "Notification deliveries, by event and result.",
	}, []string{"event", "result"})

	ReporterRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "academybot_reporter_runs_total",
		Help: "Daily report runs, by result.",
	}, []string{"result"})

	HandlerErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "academybot_handler_errors_total",
		Help: "Unexpected errors shown to users as a generic failure.",
	})
)
