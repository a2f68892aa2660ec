package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// ViewGenerations counts settled view jobs.
	ViewGenerations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "wrap",
			Subsystem: "render",
			Name:      "view_generations_total",
			Help:      "Settled view generation calls",
		},
		[]string{"mode", "view", "status"},
	)

	// ViewDuration observes remote generation latency per view.
	ViewDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "wrap",
			Subsystem: "render",
			Name:      "view_duration_seconds",
			Help:      "Remote generation call duration in seconds",
			Buckets:   []float64{1, 2, 5, 10, 20, 40, 90},
		},
		[]string{"view"},
	)

	// QualityRegenerations counts quality gate outcomes.
	QualityRegenerations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "wrap",
			Subsystem: "quality",
			Name:      "regenerations_total",
			Help:      "Quality gate regeneration outcomes",
		},
		[]string{"outcome"},
	)

	// QuotaDecisions counts quota guard decisions.
	QuotaDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "wrap",
			Subsystem: "quota",
			Name:      "decisions_total",
			Help:      "Quota guard decisions by outcome",
		},
		[]string{"outcome"},
	)

	// SessionsTotal counts design sessions by terminal state.
	SessionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "wrap",
			Subsystem: "session",
			Name:      "completed_total",
			Help:      "Design sessions by outcome",
		},
		[]string{"mode", "outcome"},
	)
)

// Handler exposes the prometheus registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
