package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		subscriptionsActivatedTotal,
		subscriptionsExpiredTotal,
		quotaDenialsTotal,
	)
}

var (
	subscriptionsActivatedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "subscriptions_activated_total",
			Help: "Subscriptions created by payment reconciliation, labeled by tier.",
		},
		[]string{"tier"},
	)

	subscriptionsExpiredTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "subscriptions_expired_total",
			Help: "Total number of subscriptions deactivated by the expiry sweep.",
		},
	)

	quotaDenialsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "playlist_quota_denials_total",
			Help: "Playlist creations refused by the quota check.",
		},
	)
)

func IncSubscriptionActivated(tier string) {
	subscriptionsActivatedTotal.WithLabelValues(norm(tier)).Inc()
}

func IncSubscriptionsExpired(count int) {
	subscriptionsExpiredTotal.Add(float64(count))
}

func IncQuotaDenied() { quotaDenialsTotal.Inc() }
