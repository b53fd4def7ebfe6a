package request

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Fetch outcomes.
const (
	outcomeSuccess = "success"
	outcomeFail    = "fail"
	outcomeError   = "error"
	outcomeStale   = "stale"
)

var (
	fetchTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fetchkit_fetch_total",
		Help: "Executor fetches by outcome (success, fail, error, stale)",
	}, []string{"outcome"})

	fetchInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "fetchkit_fetch_in_flight",
		Help: "Executor fetches awaiting the transport",
	})
)
