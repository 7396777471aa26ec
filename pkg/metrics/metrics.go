package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Sync session metrics
	SyncCyclesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "entsync_sync_cycles_total",
			Help: "Total number of completed sync cycles",
		},
	)

	SyncChangesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "entsync_sync_changes_total",
			Help: "Total number of merged key changes by winning source",
		},
		[]string{"source"},
	)

	SyncDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "entsync_sync_duration_seconds",
			Help:    "Sync cycle duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Push cache metrics
	PushUpdatesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "entsync_push_updates_total",
			Help: "Total number of collection uploads pushed to the server",
		},
		[]string{"collection"},
	)

	PushSkipsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "entsync_push_skips_total",
			Help: "Total number of push checks skipped by reason (unchanged, unregistered, unsupported)",
		},
		[]string{"collection", "reason"},
	)

	PushFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "entsync_push_failures_total",
			Help: "Total number of failed collection uploads",
		},
		[]string{"collection"},
	)

	// Pull cache metrics
	CacheReadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "entsync_cache_reads_total",
			Help: "Total number of pull cache reads by result (memory, remote, stale, miss)",
		},
		[]string{"cache", "result"},
	)

	CacheWriteDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "entsync_cache_write_duration_seconds",
			Help:    "Background cache write duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"cache"},
	)
)

func init() {
	prometheus.MustRegister(SyncCyclesTotal)
	prometheus.MustRegister(SyncChangesTotal)
	prometheus.MustRegister(SyncDuration)
	prometheus.MustRegister(PushUpdatesTotal)
	prometheus.MustRegister(PushSkipsTotal)
	prometheus.MustRegister(PushFailuresTotal)
	prometheus.MustRegister(CacheReadsTotal)
	prometheus.MustRegister(CacheWriteDuration)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}
