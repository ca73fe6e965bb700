package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		refundsTotal,
		refundedAmountTotal,
	)
}

var (
	refundsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "refunds_total",
			Help: "Refund status transitions.",
		},
		[]string{"status"},
	)

	refundedAmountTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "refunds_processed_amount_total",
			Help: "Total value of processed refunds.",
		},
	)
)

func IncRefund(status string) {
	refundsTotal.WithLabelValues(norm(status)).Inc()
}

func AddRefunded(amount float64) {
	refundedAmountTotal.Add(amount)
}
