package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	CreatesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "director_match_creates_total",
			Help: "Total match creation attempts",
		},
		[]string{"result"}, // success|failure
	)

	CreateDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "director_match_create_duration_seconds",
			Help:    "Duration of match creation handling",
			Buckets: prometheus.DefBuckets,
		},
	)

	MatchesFinished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "director_matches_finished_total",
			Help: "Matches torn down, by outcome",
		},
		[]string{"outcome"}, // completed|cancelled|no_result
	)

	MatchDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "director_match_duration_seconds",
			Help:    "Wall-clock time from assembly to teardown",
			Buckets: []float64{60, 300, 600, 900, 1200, 1800, 3600},
		},
	)

	WorkersConnected = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "director_workers_connected",
			Help: "Workers currently attached to the bridge",
		},
	)

	WorkersAvailable = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "director_workers_available",
			Help: "Workers connected and not reserved by a match",
		},
	)

	DraftAutoResolves = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "director_draft_auto_resolves_total",
			Help: "Draft actions committed automatically on sub-phase expiry",
		},
	)
)

func init() {
	prometheus.MustRegister(CreatesTotal)
	prometheus.MustRegister(CreateDuration)
	prometheus.MustRegister(MatchesFinished)
	prometheus.MustRegister(MatchDuration)
	prometheus.MustRegister(WorkersConnected)
	prometheus.MustRegister(WorkersAvailable)
	prometheus.MustRegister(DraftAutoResolves)
}

func Register(mux *http.ServeMux) {
	mux.Handle("/metrics", promhttp.Handler())
}
