package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		mutationsTotal,
		mutationAttempts,
		revisionConflictsTotal,
	)
}

var (
	mutationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "playlist_mutations_total",
			Help: "Playlist mutations by operation and final outcome.",
		},
		[]string{"op", "outcome"},
	)

	mutationAttempts = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "playlist_mutation_attempts",
			Help:    "Read-modify-write attempts per mutation.",
			Buckets: []float64{1, 2, 3, 4, 5, 8},
		},
	)

	revisionConflictsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "playlist_revision_conflicts_total",
			Help: "Writes rejected by the music service for a stale revision.",
		},
	)
)

func ObserveMutation(op, outcome string, attempts int) {
	mutationsTotal.WithLabelValues(norm(op), norm(outcome)).Inc()
	if attempts > 0 {
		mutationAttempts.Observe(float64(attempts))
	}
}

func IncRevisionConflict() { revisionConflictsTotal.Inc() }
