// Package metrics exposes the Prometheus registry used by the pattern proxy.
// All metrics are defined in their respective packages (proxy, cache, upstream)
// to maintain modularity and avoid circular dependencies.
//
// This package provides the /metrics handler and a reference for all metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the default Prometheus registry used by the proxy.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Gatherer is the source the /metrics handler reads from.
var Gatherer = prometheus.DefaultGatherer

// Handler serves the Prometheus exposition format for Gatherer.
func Handler() http.Handler {
	return promhttp.InstrumentMetricHandler(Registry, promhttp.HandlerFor(Gatherer, promhttp.HandlerOpts{}))
}

// Metrics Documentation
//
// Proxy Metrics (pkg/proxy):
//   - pattern_proxy_requests_total{outcome} (Counter): Requests by outcome
//     (hit, miss, missing_parameter, host_not_allowed, path_not_allowed,
//     upstream_error, proxy_error)
//   - pattern_proxy_detached_tasks_total{task, result} (Counter): Background
//     cache writes by result (ok, error, panic)
//   - pattern_proxy_detached_tasks_pending (Gauge): Background tasks not yet finished
//
// Cache Metrics (pkg/cache):
//   - pattern_proxy_cache_hits_total{backend} (Counter): Cache hits by backend
//   - pattern_proxy_cache_misses_total{backend} (Counter): Cache misses by backend
//   - pattern_proxy_cache_stored_bytes_total{backend} (Counter): Bytes written to the cache
//   - pattern_proxy_cache_errors_total{backend, operation} (Counter): Cache operation errors
//
// Upstream Metrics (pkg/upstream):
//   - pattern_proxy_upstream_requests_total{status} (Counter): BraceletBook requests by HTTP status
//   - pattern_proxy_upstream_duration_seconds (Histogram): BraceletBook request duration
//   - pattern_proxy_upstream_errors_total{class} (Counter): Errors by class (client, server, network)
//
// Example Prometheus Queries:
//
//   # Cache Hit Rate
//   sum(rate(pattern_proxy_cache_hits_total[5m])) /
//   (sum(rate(pattern_proxy_cache_hits_total[5m])) + sum(rate(pattern_proxy_cache_misses_total[5m])))
//
//   # Rejected Targets
//   sum by (outcome) (rate(pattern_proxy_requests_total{outcome=~".*_not_allowed"}[5m]))
//
//   # Failed Cache Writes
//   rate(pattern_proxy_detached_tasks_total{result!="ok"}[5m])
//
//   # P95 Upstream Latency
//   histogram_quantile(0.95, rate(pattern_proxy_upstream_duration_seconds_bucket[5m]))
