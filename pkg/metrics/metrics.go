// Package metrics documents the Prometheus metrics exported by postfeed and
// exposes them over HTTP. Metrics are defined in their owning packages
// (client, cache, pagination) and registered via promauto.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the default Prometheus registry all postfeed metrics live in.
var Registry = prometheus.DefaultRegisterer

// Handler serves the default registry in the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Metrics Documentation
//
// Page Request Metrics (pkg/client):
//   - postfeed_requests_total{status} (Counter): Page requests by HTTP status, "cached" or "network_error"
//   - postfeed_request_duration_seconds (Histogram): Page request duration
//   - postfeed_errors_total{class} (Counter): Fetch errors by class (network, client, server, decode)
//
// Cache Metrics (pkg/cache):
//   - postfeed_cache_hits_total{layer} (Counter): Hits in the memory (derived values) or redis (pages) layer
//   - postfeed_cache_misses_total{layer} (Counter): Misses by layer
//   - postfeed_cache_entries{layer="memory"} (Gauge): Memoized derived values
//   - postfeed_304_responses_total (Counter): Pages revalidated with 304 Not Modified
//   - postfeed_cache_errors_total{operation} (Counter): Redis cache operation errors
//
// Pagination Metrics (pkg/pagination):
//   - postfeed_pages_loaded_total (Counter): Pages merged into a collection
//   - postfeed_page_load_failures_total (Counter): Failed page loads
//   - postfeed_records_loaded (Gauge): Collection size after the latest merge
//   - postfeed_load_requests_deduplicated_total (Counter): Load requests dropped while a fetch was in flight
//
// Example Prometheus Queries:
//
//   # Derived value hit rate
//   sum(rate(postfeed_cache_hits_total{layer="memory"}[5m])) /
//   (sum(rate(postfeed_cache_hits_total{layer="memory"}[5m])) + sum(rate(postfeed_cache_misses_total{layer="memory"}[5m])))
//
//   # Page load failure ratio
//   rate(postfeed_page_load_failures_total[5m]) /
//   (rate(postfeed_pages_loaded_total[5m]) + rate(postfeed_page_load_failures_total[5m]))
//
//   # P95 page latency
//   histogram_quantile(0.95, rate(postfeed_request_duration_seconds_bucket[5m]))
