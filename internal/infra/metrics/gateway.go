package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func init() { register(gatewayCallsTotal, gatewayCallDuration, gatewayBreakerState) }

var (
	gatewayCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_gateway_calls_total",
			Help: "Outbound gateway calls by operation and result.",
		},
		[]string{"op", "result"},
	)

	gatewayCallDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "payment_gateway_call_duration_seconds",
			Help:    "Outbound gateway call latency.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"op"},
	)

	// 0=closed 1=half-open 2=open
	gatewayBreakerState = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "payment_gateway_breaker_state",
			Help: "Circuit breaker state of the live gateway client.",
		},
	)
)

func ObserveGatewayCall(op, result string, started time.Time) {
	gatewayCallsTotal.WithLabelValues(norm(op), norm(result)).Inc()
	gatewayCallDuration.WithLabelValues(norm(op)).Observe(time.Since(started).Seconds())
}

func SetGatewayBreakerState(state int) {
	gatewayBreakerState.Set(float64(state))
}
