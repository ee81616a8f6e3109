package proxy

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for the proxy pipeline.
var (
	proxyRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pattern_proxy_requests_total",
		Help: "Total proxy requests by outcome",
	}, []string{"outcome"}) // "hit", "miss", or the snake_case error kind

	detachedTasksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pattern_proxy_detached_tasks_total",
		Help: "Detached tasks by name and result",
	}, []string{"task", "result"}) // result: "ok", "error", "panic"

	detachedTasksPending = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "pattern_proxy_detached_tasks_pending",
		Help: "Detached tasks started but not yet finished",
	})
)

var outcomeLabels = map[ErrorKind]string{
	KindMissingParameter: "missing_parameter",
	KindHostNotAllowed:   "host_not_allowed",
	KindPathNotAllowed:   "path_not_allowed",
	KindUpstreamError:    "upstream_error",
	KindProxyError:       "proxy_error",
}
