/*
Package metrics provides Prometheus metrics for entsync.

All metrics are registered against the default registry at package init and
exposed through Handler() for scraping. The metric set covers the three
moving parts of the agent:

Sync session:

	entsync_sync_cycles_total           counter
	entsync_sync_changes_total{source}  counter, source = local|remote|base
	entsync_sync_duration_seconds       histogram

Push caches:

	entsync_push_updates_total{collection}        counter
	entsync_push_skips_total{collection,reason}   counter
	entsync_push_failures_total{collection}       counter

Pull caches:

	entsync_cache_reads_total{cache,result}        counter,
	    result = memory|remote|stale|miss
	entsync_cache_write_duration_seconds{cache}    histogram

The cache read counter is the one to watch operationally: a rising "stale"
rate means the server is unreachable and the agent is running on its last
persisted snapshots.

Timer is a small helper for histogram observations:

	timer := metrics.NewTimer()
	// ... do work ...
	timer.ObserveDuration(metrics.SyncDuration)

Label cardinality stays bounded: collection and cache names are fixed
strings chosen at construction, never derived from runtime data.
*/
package metrics
