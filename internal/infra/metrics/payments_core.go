package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		paymentsTotal,
		paymentsStarsTotal,
	)
}

var (
	paymentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payments_total",
			Help: "Payment intents by status (pending/completed/failed/replayed).",
		},
		[]string{"status"},
	)

	paymentsStarsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payments_stars_total",
			Help: "Stars collected by completed payments, labeled by tier.",
		},
		[]string{"tier"},
	)
)

func IncPayment(status string) {
	paymentsTotal.WithLabelValues(norm(status)).Inc()
}

func AddStars(tier string, amount int64) {
	paymentsStarsTotal.WithLabelValues(norm(tier)).Add(float64(amount))
}
