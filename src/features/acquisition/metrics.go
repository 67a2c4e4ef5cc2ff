package acquisition

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	statusTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "soulfetch_status_transitions_total",
		Help: "Download status writes, by target status.",
	}, []string{"status"})

	trackOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "soulfetch_track_outcomes_total",
		Help: "Processed tracks, by outcome.",
	}, []string{"outcome"})

	downloadPaths = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "soulfetch_downloads_total",
		Help: "Download attempts that produced a file, by path taken.",
	}, []string{"path"})

	trackDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "soulfetch_track_duration_seconds",
		Help:    "Time spent acquiring a single track.",
		Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300, 600},
	})

	tracksInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "soulfetch_tracks_in_flight",
		Help: "Tracks being acquired right now.",
	})
)
