package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(webhookEventsTotal) }

// outcome: reconciled|ignored|unknown_order|signature_mismatch|conflict|error
var webhookEventsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "payment_webhook_events_total",
		Help: "Gateway webhook deliveries by event type and outcome.",
	},
	[]string{"event", "outcome"},
)

func IncWebhook(event, outcome string) {
	if event == "" {
		event = "unknown"
	}
	webhookEventsTotal.WithLabelValues(norm(event), norm(outcome)).Inc()
}
