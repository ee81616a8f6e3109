package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheHits tracks cache hits by backend
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pattern_proxy_cache_hits_total",
			Help: "Total number of pattern cache hits",
		},
		[]string{"backend"}, // "redis", "leveldb", "sqlite", "memory"
	)

	// CacheMisses tracks cache misses by backend
	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pattern_proxy_cache_misses_total",
			Help: "Total number of pattern cache misses",
		},
		[]string{"backend"},
	)

	// CacheStoredBytes tracks bytes written to the cache by backend
	CacheStoredBytes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pattern_proxy_cache_stored_bytes_total",
			Help: "Total number of bytes written to the pattern cache",
		},
		[]string{"backend"},
	)

	// CacheErrors tracks cache operation errors
	CacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pattern_proxy_cache_errors_total",
			Help: "Total number of cache operation errors",
		},
		[]string{"backend", "operation"}, // operation: "match", "put", "delete"
	)
)
