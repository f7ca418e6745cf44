package handlers

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"metadata-tracker/internal/logging"
)

// MetadataResponse is the cached metadata of one file.
type MetadataResponse struct {
	Path         string  `json:"path"`
	Key          string  `json:"key"`
	Metadata     *string `json:"metadata"`
	FileTime     int64   `json:"fileTime"`
	LastVerified int64   `json:"lastVerified"`
}

// GetMetadata returns the metadata record for a file under the output
// directory. ?starNoFolders=true looks for a flattened starred mirror.
func (h *Handlers) GetMetadata(w http.ResponseWriter, r *http.Request) {
	rel := mux.Vars(r)["path"]
	full, err := h.resolvePath(rel)
	if err != nil {
		logging.Warn("Metadata: rejected path %q", rel)
		writeJSONError(w, "Invalid path", http.StatusBadRequest)
		return
	}

	starNoFolders, _ := strconv.ParseBool(r.URL.Query().Get("starNoFolders"))
	rec := h.tracker.GetMetadataFor(full, h.outputDir, starNoFolders)
	if rec == nil {
		writeJSONError(w, "File not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache")
	writeJSON(w, MetadataResponse{
		Path:         rel,
		Key:          rec.Key,
		Metadata:     rec.Metadata,
		FileTime:     rec.FileTime,
		LastVerified: rec.LastVerified,
	})
}

// DeleteMetadata drops both cached records of a file.
func (h *Handlers) DeleteMetadata(w http.ResponseWriter, r *http.Request) {
	rel := mux.Vars(r)["path"]
	full, err := h.resolvePath(rel)
	if err != nil {
		writeJSONError(w, "Invalid path", http.StatusBadRequest)
		return
	}

	h.tracker.RemoveMetadataFor(full)
	writeJSONStatus(w, "removed")
}
