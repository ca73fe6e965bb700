package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(dbPoolConns) }

var dbPoolConns = prometheus.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "db_pool_connections",
		Help: "Connections in the pgx pool by state.",
	},
	[]string{"state"}, // total|idle|in_use|max
)

func SetDBPoolStats(total, idle, inUse, max int32) {
	dbPoolConns.WithLabelValues("total").Set(float64(total))
	dbPoolConns.WithLabelValues("idle").Set(float64(idle))
	dbPoolConns.WithLabelValues("in_use").Set(float64(inUse))
	dbPoolConns.WithLabelValues("max").Set(float64(max))
}
