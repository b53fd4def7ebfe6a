package pagination

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	loadAdvanced  = "advanced"
	loadExhausted = "exhausted"
	loadBusy      = "busy"
)

var (
	loadMoreTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fetchkit_pagination_load_more_total",
			Help: "LoadMore calls by result (advanced, exhausted, busy)",
		},
		[]string{"result"},
	)

	refreshTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fetchkit_pagination_refresh_total",
			Help: "Total number of pagination refreshes",
		},
	)

	pagesMerged = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fetchkit_pagination_pages_merged_total",
			Help: "Total number of pages appended to accumulated lists",
		},
	)
)
