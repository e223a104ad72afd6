package detector

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	detectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "spreadmap_detections_total",
			Help: "Total number of region detection runs",
		},
		[]string{"engine", "status"},
	)

	detectionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "spreadmap_detection_duration_seconds",
			Help:    "Region detection duration in seconds",
			Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"engine"},
	)

	regionsPerPage = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "spreadmap_detected_regions",
			Help:    "Number of regions accepted per detected page",
			Buckets: []float64{0, 1, 2, 4, 8, 12, 16, 24, 32, 64},
		},
	)
)
