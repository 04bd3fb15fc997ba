package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(buildInfo)
}

var buildInfo = prometheus.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "build_info",
		Help: "A constant metric with labels for version, commit and gateway mode.",
	},
	[]string{"version", "commit", "gateway_mode"},
)

func SetBuildInfo(version, commit, gatewayMode string) {
	buildInfo.WithLabelValues(version, commit, norm(gatewayMode)).Set(1)
}
