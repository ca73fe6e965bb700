package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		httpRequestsTotal,
		authFailuresTotal,
	)
}

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "API requests by route pattern and status code.",
		},
		[]string{"route", "code"},
	)

	authFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_auth_failures_total",
			Help: "Rejected API calls by reason.",
		},
		[]string{"reason"}, // missing_token|invalid_token|forbidden
	)
)

func IncHTTPRequest(route, code string) {
	httpRequestsTotal.WithLabelValues(route, code).Inc()
}

func IncAuthFailure(reason string) {
	authFailuresTotal.WithLabelValues(norm(reason)).Inc()
}
