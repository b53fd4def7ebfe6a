package client

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	transportRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fetchkit_transport_requests_total",
		Help: "Transport requests by method and outcome (ok, app_error, transport_error)",
	}, []string{"method", "outcome"})

	transportRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "fetchkit_transport_request_duration_seconds",
		Help:    "Transport request duration in seconds by method",
		Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
	}, []string{"method"})

	transportErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fetchkit_transport_errors_total",
		Help: "Transport failures by error class",
	}, []string{"class"})
)
