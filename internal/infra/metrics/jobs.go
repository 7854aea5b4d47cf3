package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(sweepRunsTotal) }

var sweepRunsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "sweep_runs_total",
		Help: "Background sweep runs, labeled by job and status.",
	},
	[]string{"job", "status"}, // status: 'ok', 'failed'
)

func IncSweep(job, status string) {
	sweepRunsTotal.WithLabelValues(norm(job), norm(status)).Inc()
}
