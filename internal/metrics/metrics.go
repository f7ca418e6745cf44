package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "metadata_tracker_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "metadata_tracker_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "metadata_tracker_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)
)

// Cache metrics
var (
	CacheLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "metadata_tracker_cache_lookups_total",
			Help: "Total number of cache lookups by record kind and result",
		},
		[]string{"kind", "result"}, // kind: metadata, preview; result: hit, miss, stale, refreshed, not_found, excluded
	)

	CacheGenerationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "metadata_tracker_cache_generations_total",
			Help: "Total number of records computed from disk by kind and status",
		},
		[]string{"kind", "status"},
	)

	CacheGenerationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "metadata_tracker_cache_generation_duration_seconds",
			Help:    "Time spent computing a record from disk",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"kind"},
	)

	PreviewSourceTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "metadata_tracker_preview_source_total",
			Help: "Previews served by the artifact they were read from",
		},
		[]string{"source"}, // animated_sibling, static_sibling, thumbnail
	)

	PreviewTranscodesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "metadata_tracker_preview_transcodes_total",
			Help: "Sibling preview generations by source media and status",
		},
		[]string{"media", "status"}, // media: animation, video
	)

	PreviewTranscodeDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "metadata_tracker_preview_transcode_duration_seconds",
			Help:    "Sibling preview generation duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"media"},
	)
)

// Store metrics
var (
	StoreOpensTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "metadata_tracker_store_opens_total",
			Help: "Total number of folder store opens by backend and status",
		},
		[]string{"backend", "status"}, // status: success, corrupt_rebuilt, error, disabled
	)

	StoreErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "metadata_tracker_store_errors_total",
			Help: "Total number of failed folder store operations",
		},
		[]string{"operation"},
	)

	StoreSelfHealsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "metadata_tracker_store_self_heals_total",
			Help: "Total number of stores torn down after reaching the error threshold",
		},
	)

	StoresOpen = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "metadata_tracker_stores_open",
			Help: "Number of folder stores currently open",
		},
	)

	StoresDisabled = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "metadata_tracker_stores_disabled",
			Help: "Number of folders whose persistence was disabled after repeated rebuilds",
		},
	)

	StoreSizeBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "metadata_tracker_store_size_bytes",
			Help: "Total size of open store files in bytes",
		},
	)
)

// Maintenance metrics
var (
	MassWipeTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "metadata_tracker_mass_wipes_total",
			Help: "Total number of mass cache wipes",
		},
	)

	MassWipeFilesRemoved = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "metadata_tracker_mass_wipe_files_removed_total",
			Help: "Total number of store files deleted by mass wipes",
		},
	)

	WarmFilesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "metadata_tracker_warm_files_total",
			Help: "Files visited by the cache warmer by status",
		},
		[]string{"status"}, // processed, skipped
	)

	WarmRunning = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "metadata_tracker_warm_running",
			Help: "Whether a warm run is in progress (1 = running, 0 = idle)",
		},
	)

	MemoryUsageRatio = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "metadata_tracker_memory_usage_ratio",
			Help: "Heap allocation as a fraction of the memory limit",
		},
	)

	MemoryPaused = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "metadata_tracker_memory_paused",
			Help: "Whether warm workers are paused on memory pressure (1 = paused)",
		},
	)

	MemoryPausesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "metadata_tracker_memory_pauses_total",
			Help: "Times warm workers were paused on memory pressure",
		},
	)
)

// Watcher metrics
var (
	WatcherEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "metadata_tracker_watcher_events_total",
			Help: "Total number of filesystem watcher events",
		},
		[]string{"event_type"},
	)

	WatcherErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "metadata_tracker_watcher_errors_total",
			Help: "Total number of filesystem watcher errors",
		},
	)

	WatchedDirectories = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "metadata_tracker_watched_directories",
			Help: "Number of directories currently being watched",
		},
	)
)

// Filesystem metrics
var (
	FilesystemOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "metadata_tracker_filesystem_operation_duration_seconds",
			Help:    "Filesystem operation duration in seconds by volume",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		},
		[]string{"volume", "operation"},
	)

	FilesystemOperationErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "metadata_tracker_filesystem_operation_errors_total",
			Help: "Total number of failed filesystem operations by volume",
		},
		[]string{"volume", "operation"},
	)

	FilesystemRetryAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "metadata_tracker_filesystem_retry_attempts_total",
			Help: "Total number of filesystem retry attempts",
		},
		[]string{"operation", "volume"},
	)

	FilesystemRetrySuccess = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "metadata_tracker_filesystem_retry_success_total",
			Help: "Total number of filesystem operations that succeeded after a retry",
		},
		[]string{"operation", "volume"},
	)

	FilesystemRetryFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "metadata_tracker_filesystem_retry_failures_total",
			Help: "Total number of filesystem operations that failed after all retries",
		},
		[]string{"operation", "volume"},
	)

	FilesystemRetryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "metadata_tracker_filesystem_retry_duration_seconds",
			Help:    "Total time spent in filesystem operations including retries",
			Buckets: []float64{0.0001, 0.001, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2},
		},
		[]string{"operation", "volume"},
	)

	FilesystemStaleErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "metadata_tracker_filesystem_stale_errors_total",
			Help: "Total number of NFS stale file handle errors",
		},
		[]string{"operation", "volume"},
	)
)

// Application info metric
var (
	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "metadata_tracker_app_info",
			Help: "Application information",
		},
		[]string{"version", "commit", "go_version"},
	)
)

// SetAppInfo sets the application info metric
func SetAppInfo(version, commit, goVersion string) {
	AppInfo.WithLabelValues(version, commit, goVersion).Set(1)
}
