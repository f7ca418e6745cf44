package handlers

import (
	"net/http"
	"time"

	"metadata-tracker/internal/logging"
)

// ClearCache closes and deletes every store. Records are rebuilt on demand.
func (h *Handlers) ClearCache(w http.ResponseWriter, _ *http.Request) {
	start := time.Now()
	h.tracker.MassRemoveMetadata()
	logging.Info("Cache cleared via API in %v", time.Since(start))
	writeJSONStatus(w, "cleared")
}

// StatsResponse summarizes the store registry.
type StatsResponse struct {
	OpenStores      int   `json:"openStores"`
	DisabledFolders int   `json:"disabledFolders"`
	StoreSizeBytes  int64 `json:"storeSizeBytes"`
}

// GetStats returns the registry counters.
func (h *Handlers) GetStats(w http.ResponseWriter, _ *http.Request) {
	stats := h.tracker.Registry().Stats()
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache")
	writeJSON(w, StatsResponse{
		OpenStores:      stats.OpenStores,
		DisabledFolders: stats.DisabledFolders,
		StoreSizeBytes:  stats.TotalSizeBytes,
	})
}
