package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(walletOperationsTotal) }

var walletOperationsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "wallet_operations_total",
		Help: "Wallet credits and debits by result.",
	},
	[]string{"direction", "result"}, // result: ok|rejected
)

func IncWalletOperation(direction, result string) {
	walletOperationsTotal.WithLabelValues(norm(direction), norm(result)).Inc()
}
