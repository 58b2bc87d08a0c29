package pipeline

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	runsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "finishflow_runs_total",
			Help: "Total number of pipeline runs by outcome.",
		},
		[]string{"status", "error_kind"},
	)
	runDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "finishflow_run_duration_seconds",
			Help:    "Histogram of admitted pipeline run durations.",
			Buckets: []float64{5, 15, 30, 60, 120, 240, 480, 900},
		},
	)
	stageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "finishflow_stage_duration_seconds",
			Help:    "Histogram of pipeline stage durations.",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 13),
		},
		[]string{"stage"},
	)
	musicFallbacksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "finishflow_music_fallbacks_total",
			Help: "Number of runs that continued without background music.",
		},
		[]string{"reason"},
	)
	speechFallbacksTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "finishflow_speech_fallbacks_total",
			Help: "Number of runs narrated with the silent fallback track.",
		},
	)
)

func observeStage(stage string, start time.Time) {
	stageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}
