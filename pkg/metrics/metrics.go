// Package metrics exposes the Prometheus metrics of fetchkit.
// All metrics are defined in their respective packages (client, request,
// pagination, debounce, history) and registered via promauto on the default
// registry; this package serves them.
package metrics

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the default Prometheus registerer. The fetchkit packages
// register their metrics on it through promauto.
var Registry = prometheus.DefaultRegisterer

// Gatherer is the default Prometheus gatherer that Handler reads from.
var Gatherer = prometheus.DefaultGatherer

// Handler serves the metrics in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Gatherer, promhttp.HandlerOpts{})
}

// NewMux returns a mux with /metrics and a /health liveness check.
func NewMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "OK")
	})
	return mux
}

// Metrics Documentation
//
// Transport (pkg/client):
//   - fetchkit_transport_requests_total{method, outcome} (Counter): ok, app_error, transport_error
//   - fetchkit_transport_request_duration_seconds{method} (Histogram)
//   - fetchkit_transport_errors_total{class} (Counter): client, server, network, timeout, decode
//
// Executor (pkg/request):
//   - fetchkit_fetch_total{outcome} (Counter): success, fail, error, stale
//   - fetchkit_fetch_in_flight (Gauge): fetches awaiting the transport
//
// Pagination (pkg/pagination):
//   - fetchkit_pagination_load_more_total{result} (Counter): advanced, exhausted, busy
//   - fetchkit_pagination_refresh_total (Counter)
//   - fetchkit_pagination_pages_merged_total (Counter)
//
// Debounce (pkg/debounce):
//   - fetchkit_debounce_triggers_total (Counter)
//   - fetchkit_debounce_fired_total (Counter)
//
// Recent queries (pkg/history):
//   - fetchkit_history_store_errors_total{operation} (Counter): get, set, decode
//   - fetchkit_history_length{key} (Gauge)
//
// Example Prometheus Queries:
//
//   # Share of fetches superseded by a newer one
//   rate(fetchkit_fetch_total{outcome="stale"}[5m]) / rate(fetchkit_fetch_total[5m])
//
//   # Debounce coalescing ratio
//   rate(fetchkit_debounce_fired_total[5m]) / rate(fetchkit_debounce_triggers_total[5m])
//
//   # P95 transport latency
//   histogram_quantile(0.95, rate(fetchkit_transport_request_duration_seconds_bucket[5m]))
