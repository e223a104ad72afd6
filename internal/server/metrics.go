package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "spreadmap_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "code"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "spreadmap_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	extractRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "spreadmap_http_extract_runs_total",
			Help: "Batch runs started over HTTP by outcome",
		},
		[]string{"outcome"},
	)

	pluRequestCodes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "spreadmap_plu_request_codes",
			Help:    "Number of PLU codes found per /plu request",
			Buckets: []float64{0, 1, 2, 4, 8, 16, 32},
		},
	)

	websocketConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "spreadmap_websocket_active_connections",
			Help: "Number of active WebSocket connections",
		},
	)

	websocketMessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "spreadmap_websocket_messages_total",
			Help: "Total number of WebSocket messages",
		},
		[]string{"direction"},
	)
)

func metricsHandler() http.Handler {
	return promhttp.Handler()
}
