package metrics

// InitializeMetrics pre-populates all expected label combinations so that
// every metric is exported from the first Prometheus scrape.
// Call this once at startup after metric registration.
func InitializeMetrics() {
	for _, kind := range []string{"metadata", "preview"} {
		for _, result := range []string{"hit", "miss", "stale", "refreshed", "not_found", "excluded"} {
			CacheLookupsTotal.WithLabelValues(kind, result)
		}
		CacheGenerationsTotal.WithLabelValues(kind, "success")
		CacheGenerationsTotal.WithLabelValues(kind, "error")
		CacheGenerationDuration.WithLabelValues(kind)
	}

	for _, source := range []string{"animated_sibling", "static_sibling", "thumbnail"} {
		PreviewSourceTotal.WithLabelValues(source)
	}

	for _, media := range []string{"animation", "video"} {
		PreviewTranscodesTotal.WithLabelValues(media, "success")
		PreviewTranscodesTotal.WithLabelValues(media, "error")
		PreviewTranscodeDuration.WithLabelValues(media)
	}

	for _, backend := range []string{"sqlite", "bolt"} {
		for _, status := range []string{"success", "corrupt_rebuilt", "error", "disabled"} {
			StoreOpensTotal.WithLabelValues(backend, status)
		}
	}

	for _, op := range []string{"get_metadata", "put_metadata", "get_preview", "put_preview", "delete"} {
		StoreErrorsTotal.WithLabelValues(op)
	}

	for _, status := range []string{"processed", "skipped"} {
		WarmFilesTotal.WithLabelValues(status)
	}

	for _, ev := range []string{"create", "write", "remove", "rename"} {
		WatcherEventsTotal.WithLabelValues(ev)
	}

	volumes := []string{"output", "data", "unknown"}
	for _, vol := range volumes {
		for _, op := range []string{"stat", "open", "read", "write"} {
			FilesystemOperationDuration.WithLabelValues(vol, op)
			FilesystemOperationErrors.WithLabelValues(vol, op)
			FilesystemRetryAttempts.WithLabelValues(op, vol)
			FilesystemRetrySuccess.WithLabelValues(op, vol)
			FilesystemRetryFailures.WithLabelValues(op, vol)
			FilesystemStaleErrors.WithLabelValues(op, vol)
			FilesystemRetryDuration.WithLabelValues(op, vol)
		}
	}
}
