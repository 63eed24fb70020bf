package automations

import "github.com/prometheus/client_golang/prometheus"

var (
	metricsRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "breeze",
			Subsystem: "automations",
			Name:      "runs_total",
			Help:      "Terminal automation runs partitioned by status",
		},
		[]string{"status"},
	)
	metricsDevicesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "breeze",
			Subsystem: "automations",
			Name:      "run_devices_total",
			Help:      "Devices processed by automation runs partitioned by outcome",
		},
		[]string{"outcome"},
	)
)

func init() {
	prometheus.MustRegister(metricsRunsTotal)
	prometheus.MustRegister(metricsDevicesTotal)
}
