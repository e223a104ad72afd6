package batch

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	runsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "spreadmap_batch_runs_total",
			Help: "Total number of batch extraction runs by final state",
		},
		[]string{"state"},
	)

	runDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "spreadmap_batch_duration_seconds",
			Help:    "Batch extraction run duration in seconds",
			Buckets: []float64{.1, .5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		},
	)

	tilesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "spreadmap_batch_tiles_total",
			Help: "Tiles handled by batch extraction by outcome",
		},
		[]string{"outcome"}, // outcome: resolved, missing
	)

	missingTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "spreadmap_batch_missing_total",
			Help: "Tiles left missing by failure code",
		},
		[]string{"code"},
	)

	plusFilledTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "spreadmap_batch_plus_filled_total",
			Help: "PLU slots filled by batch extraction",
		},
	)
)
