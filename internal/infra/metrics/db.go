package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(dbPoolStats, dbTxTotal) }

var (
	dbPoolStats = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "db_pool_stats",
			Help: "Current state of the postgres connection pool.",
		},
		[]string{"state"}, // 'total', 'idle', 'in_use'
	)

	dbTxTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "db_transactions_total",
			Help: "Transactions run by the transaction manager, by driver and result.",
		},
		[]string{"driver", "result"}, // result: 'commit', 'rollback', 'error'
	)
)

func SetDBPoolStats(total, idle, inUse int32) {
	dbPoolStats.WithLabelValues("total").Set(float64(total))
	dbPoolStats.WithLabelValues("idle").Set(float64(idle))
	dbPoolStats.WithLabelValues("in_use").Set(float64(inUse))
}

func IncTx(driver, result string) {
	dbTxTotal.WithLabelValues(norm(driver), norm(result)).Inc()
}
