package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Bot-side Prometheus collectors. Label sets are bounded: route and outcome
// names come from fixed tables in the bot package, kind from the poller.
var (
	botUpdates = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_updates_total",
			Help: "Inbound chat events handled, by route and outcome.",
		},
		[]string{"route", "outcome"},
	)

	botHandlerErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_handler_errors_total",
			Help: "Inbound chat events whose handler failed, by route.",
		},
		[]string{"route"},
	)

	botHandlerLat = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bot_handler_duration_seconds",
			Help:    "Time to fully handle one inbound event, sends included.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)

	botSends = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_messages_sent_total",
			Help: "Outbound messages by result (ok|error).",
		},
		[]string{"status"},
	)

	botRestarts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_poll_restarts_total",
			Help: "Receive-loop restarts by failure kind (network|other).",
		},
		[]string{"kind"},
	)

	botBindings = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "bot_bindings_created_total",
			Help: "Binding requests created.",
		},
	)
)

func init() {
	prometheus.MustRegister(botUpdates, botHandlerErrors, botHandlerLat, botSends, botRestarts, botBindings)
}

// ObserveUpdate records one handled event.
func ObserveUpdate(route, outcome string, d time.Duration, failed bool) {
	if route == "" {
		route = "none"
	}
	if outcome == "" {
		outcome = "none"
	}
	botUpdates.WithLabelValues(route, outcome).Inc()
	botHandlerLat.WithLabelValues(route).Observe(d.Seconds())
	if failed {
		botHandlerErrors.WithLabelValues(route).Inc()
	}
}

// ObserveSend records one outbound message attempt.
func ObserveSend(err error) {
	if err != nil {
		botSends.WithLabelValues("error").Inc()
		return
	}
	botSends.WithLabelValues("ok").Inc()
}

// ObserveRestart records one receive-loop restart.
func ObserveRestart(kind string) {
	botRestarts.WithLabelValues(kind).Inc()
}

// ObserveBindingCreated counts a newly created binding request.
func ObserveBindingCreated() {
	botBindings.Inc()
}
