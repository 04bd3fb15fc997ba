package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(refundsTotal, refundedMinorTotal) }

var (
	refundsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_refunds_total",
			Help: "Refund requests by result (issued, replayed, rejected, error).",
		},
		[]string{"result"},
	)

	refundedMinorTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_refunded_minor_total",
			Help: "Refunded value in minor units, labeled by currency.",
		},
		[]string{"currency"},
	)
)

func IncRefund(result string) {
	refundsTotal.WithLabelValues(norm(result)).Inc()
}

func AddRefunded(currency string, amountMinor int64) {
	refundedMinorTotal.WithLabelValues(norm(currency)).Add(float64(amountMinor))
}
