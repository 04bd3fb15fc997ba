package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		paymentsTotal,
		paymentsRevenueTotal,
		paymentTransitionsTotal,
	)
}

var (
	paymentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payments_total",
			Help: "Payments created, labeled by kind and mode.",
		},
		[]string{"kind", "mode"},
	)

	paymentsRevenueTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payments_revenue_minor_total",
			Help: "The total value of captured payments in minor units, labeled by currency.",
		},
		[]string{"currency"},
	)

	// source: verify|webhook|refund|offline
	paymentTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_status_transitions_total",
			Help: "Status writes that won their conditional update, by target status and source.",
		},
		[]string{"to", "source"},
	)
)

func IncPayment(kind, mode string) {
	paymentsTotal.WithLabelValues(norm(kind), norm(mode)).Inc()
}

func AddPaymentRevenue(currency string, amountMinor int64) {
	paymentsRevenueTotal.WithLabelValues(norm(currency)).Add(float64(amountMinor))
}

func IncTransition(to, source string) {
	paymentTransitionsTotal.WithLabelValues(norm(to), norm(source)).Inc()
}
