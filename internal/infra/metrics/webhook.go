package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(
		webhookNotificationsTotal,
		webhookDuration,
		outboxPublishedTotal,
	)
}

var (
	// result: applied|duplicate|success_after_close|ignored|unmatched|busy|error|invalid_signature|malformed
	webhookNotificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_notifications_total",
			Help: "Gateway notifications by handling result.",
		},
		[]string{"result"},
	)

	// Latency of the webhook handler grouped by HTTP status class.
	webhookDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gateway_webhook_duration_seconds",
			Help:    "Duration of the gateway webhook handler in seconds.",
			Buckets: []float64{0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
		[]string{"code"},
	)

	outboxPublishedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "outbox_messages_total",
			Help: "Outbox messages handed to the broker, by topic and result.",
		},
		[]string{"topic", "result"},
	)
)

func IncWebhook(result string) {
	webhookNotificationsTotal.WithLabelValues(norm(result)).Inc()
}

func ObserveWebhookDuration(code int, d time.Duration) {
	webhookDuration.WithLabelValues(strconv.Itoa(code/100) + "xx").Observe(d.Seconds())
}

func IncOutbox(topic, result string) {
	outboxPublishedTotal.WithLabelValues(norm(topic), norm(result)).Inc()
}
