package history

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	storeErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fetchkit_history_store_errors_total",
			Help: "Recent-query store failures by operation",
		},
		[]string{"operation"}, // "get", "set", "decode"
	)

	historyLength = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "fetchkit_history_length",
			Help: "Number of recent queries held per key",
		},
		[]string{"key"},
	)
)
