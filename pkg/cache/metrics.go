package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Cache layers used as metric label values.
const (
	LayerMemory = "memory"
	LayerRedis  = "redis"
)

var (
	// CacheHits tracks cache hits by layer (memory, redis)
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "postfeed_cache_hits_total",
			Help: "Total number of cache hits",
		},
		[]string{"layer"},
	)

	// CacheMisses tracks cache misses by layer
	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "postfeed_cache_misses_total",
			Help: "Total number of cache misses",
		},
		[]string{"layer"},
	)

	// CacheEntries tracks the number of memoized entries by layer
	CacheEntries = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "postfeed_cache_entries",
			Help: "Current number of entries held in the cache",
		},
		[]string{"layer"},
	)

	// NotModifiedResponses tracks 304 Not Modified responses served from the page cache
	NotModifiedResponses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "postfeed_304_responses_total",
			Help: "Total number of 304 Not Modified page responses",
		},
	)

	// CacheErrors tracks cache operation errors
	CacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "postfeed_cache_errors_total",
			Help: "Total number of cache operation errors",
		},
		[]string{"operation"}, // "get", "set", "delete"
	)
)
