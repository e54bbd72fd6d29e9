// Package metrics holds Prometheus instruments that are used across the
// platform.  All collectors are registered with the global registry, so
// importing this package in main.go is enough to expose them on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	ResolutionCacheEntries = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "resolution_cache_entries",
			Help: "Number of host resolutions currently cached in memory.",
		})

	ResolutionCacheHitsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "resolution_cache_hits_total",
			Help: "Cumulative number of resolution cache hits.",
		})

	ResolutionCacheMissesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "resolution_cache_misses_total",
			Help: "Cumulative number of resolution cache misses (store queries).",
		})

	SiteLoadTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "site_load_total",
			Help: "Request-time site lookups by cascade outcome.",
		}, []string{"outcome"})

	RouteMissLogTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "route_miss_log_total",
			Help: "Cumulative number of deduplicated 404 diagnostics written.",
		})

	PublishTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "publish_operations_total",
			Help: "Snapshot, publish, and restore operations by kind.",
		}, []string{"op"})
)

func init() {
	prometheus.MustRegister(
		ResolutionCacheEntries,
		ResolutionCacheHitsTotal,
		ResolutionCacheMissesTotal,
		SiteLoadTotal,
		RouteMissLogTotal,
		PublishTotal,
	)
}
