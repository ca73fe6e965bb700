package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(
		paymentsTotal,
		paymentsRevenueTotal,
		gatewayLatency,
	)
}

var (
	paymentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payments_total",
			Help: "Payment status transitions by payment type.",
		},
		[]string{"type", "status"},
	)

	paymentsRevenueTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payments_revenue_total",
			Help: "The total monetary value of completed payments, labeled by currency and type.",
		},
		[]string{"currency", "type"},
	)

	gatewayLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "payment_gateway_request_duration_seconds",
			Help:    "Latency of calls to the payment gateway.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
		[]string{"gateway", "op"}, // op: create_intent|retrieve_intent
	)
)

func IncPaymentStatus(typ, status string) {
	paymentsTotal.WithLabelValues(norm(typ), norm(status)).Inc()
}

func AddRevenue(currency, typ string, amount float64) {
	paymentsRevenueTotal.WithLabelValues(norm(currency), norm(typ)).Add(amount)
}

func ObserveGatewayLatency(gateway, op string, d time.Duration) {
	gatewayLatency.WithLabelValues(norm(gateway), norm(op)).Observe(d.Seconds())
}
