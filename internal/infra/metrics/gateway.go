package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func init() { register(gatewayCallLatencyMs) }

var gatewayCallLatencyMs = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "music_gateway_call_latency_ms",
		Help:    "Music service call latency in milliseconds, including transport retries.",
		Buckets: []float64{10, 25, 50, 100, 200, 400, 800, 1600, 3000, 5000, 10000},
	},
	[]string{"op", "outcome"},
)

func ObserveGatewayCall(op, outcome string, d time.Duration) {
	gatewayCallLatencyMs.WithLabelValues(norm(op), norm(outcome)).Observe(float64(d.Milliseconds()))
}
