// Package metrics holds Prometheus instruments that are used across the
// versioning engine.  All collectors are registered with the global
// registry, so importing this package in main.go is enough to expose them
// on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	DraftCreatedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "minisite_draft_created_total",
			Help: "Cumulative number of draft versions created.",
		})

	PublishTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "minisite_publish_total",
			Help: "Cumulative number of successful publishes.",
		})

	PublishConflictTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "minisite_publish_conflict_total",
			Help: "Cumulative number of publishes rejected by the lock counter.",
		})

	RollbackTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "minisite_rollback_total",
			Help: "Cumulative number of rollback drafts created.",
		})

	HeadCacheEntries = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "minisite_head_cache_entries",
			Help: "Number of published heads currently cached in memory.",
		})

	HeadCacheLoadTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "minisite_head_cache_load_total",
			Help: "Cumulative number of head records loaded into the cache.",
		})

	HeadCacheEvictTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "minisite_head_cache_evict_total",
			Help: "Cumulative number of head records evicted from the cache.",
		})
)

func init() {
	prometheus.MustRegister(
		DraftCreatedTotal,
		PublishTotal,
		PublishConflictTotal,
		RollbackTotal,
		HeadCacheEntries,
		HeadCacheLoadTotal,
		HeadCacheEvictTotal,
	)
}
