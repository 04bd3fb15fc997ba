package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		subscriptionsPastDueTotal,
		fulfillmentsTotal,
	)
}

var (
	subscriptionsPastDueTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "subscriptions_past_due_total",
			Help: "Total number of subscriptions moved to past_due by the expiry sweep.",
		},
	)

	// source: verify|webhook|reconciler
	// outcome: applied|already_processed|error
	fulfillmentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "subscription_fulfillments_total",
			Help: "Subscription fulfillment attempts by source and outcome.",
		},
		[]string{"source", "outcome"},
	)
)

func AddSubscriptionsPastDue(count int64) {
	subscriptionsPastDueTotal.Add(float64(count))
}

func IncFulfillment(source, outcome string) {
	fulfillmentsTotal.WithLabelValues(norm(source), norm(outcome)).Inc()
}
