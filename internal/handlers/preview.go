package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"metadata-tracker/internal/logging"
)

// GetPreview serves the preview of a file. Animated previews are returned
// unless ?simplified=true asks for the static frame.
func (h *Handlers) GetPreview(w http.ResponseWriter, r *http.Request) {
	rel := mux.Vars(r)["path"]
	full, err := h.resolvePath(rel)
	if err != nil {
		logging.Warn("Preview: rejected path %q", rel)
		writeJSONError(w, "Invalid path", http.StatusBadRequest)
		return
	}

	rec := h.tracker.GetOrCreatePreviewFor(full)
	if rec == nil {
		writeJSONError(w, "No preview available", http.StatusNotFound)
		return
	}

	data, variant := rec.Data, "a"
	if simplified, _ := strconv.ParseBool(r.URL.Query().Get("simplified")); simplified && rec.Animated() {
		data, variant = rec.Simplified, "s"
	}

	etag := fmt.Sprintf(`"%d-%s"`, rec.FileTime, variant)
	if r.Header.Get("If-None-Match") == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	w.Header().Set("Content-Type", http.DetectContentType(data))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("Cache-Control", "private, max-age=3600")
	w.Header().Set("ETag", etag)
	if _, err := w.Write(data); err != nil {
		logging.Debug("Preview: write for %s failed: %v", rel, err)
	}
}
