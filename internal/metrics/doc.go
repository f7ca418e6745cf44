// Package metrics provides Prometheus instrumentation for the metadata tracker.
//
// All metrics are prefixed with "metadata_tracker_" and registered with the
// default registry through promauto.
//
// # Metric Categories
//
// ## HTTP Metrics
//
//   - HTTPRequestsTotal: requests by method, path and status
//   - HTTPRequestDuration: request duration by method and path
//   - HTTPRequestsInFlight: requests currently being processed
//
// ## Cache Metrics
//
//   - CacheLookupsTotal: lookups by kind (metadata/preview) and result
//   - CacheGenerationsTotal / CacheGenerationDuration: records computed from disk
//   - PreviewSourceTotal: which artifact a preview was read from
//   - PreviewTranscodesTotal / PreviewTranscodeDuration: sibling preview generation
//
// ## Store Metrics
//
//   - StoreOpensTotal: folder store opens by backend and status
//   - StoreErrorsTotal: failed store operations
//   - StoreSelfHealsTotal: stores torn down after reaching the error threshold
//   - StoresOpen, StoresDisabled, StoreSizeBytes: updated by the Collector
//
// ## Maintenance and Watcher Metrics
//
//   - MassWipeTotal, MassWipeFilesRemoved
//   - WarmFilesTotal, WarmRunning
//   - WatcherEventsTotal, WatcherErrors, WatchedDirectories
//
// ## Filesystem Metrics
//
// Recorded through the filesystem.Observer returned by NewFilesystemObserver:
//
//	filesystem.SetObserver(metrics.NewFilesystemObserver())
//
// # Collector
//
// Collector periodically reads a StatsProvider (the store registry) and sets
// the store gauges:
//
//	collector := metrics.NewCollector(registry, time.Minute)
//	collector.Start()
//	defer collector.Stop()
//
// # Prometheus Queries
//
// Metadata cache hit rate:
//
//	sum(rate(metadata_tracker_cache_lookups_total{kind="metadata",result="hit"}[5m])) /
//	sum(rate(metadata_tracker_cache_lookups_total{kind="metadata"}[5m]))
//
// Self-heal rate:
//
//	rate(metadata_tracker_store_self_heals_total[1h])
package metrics
