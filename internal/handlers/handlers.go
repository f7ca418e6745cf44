package handlers

import (
	"errors"
	"net/http"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gorilla/mux"

	"metadata-tracker/internal/startup"
	"metadata-tracker/internal/tracker"
)

var errInvalidPath = errors.New("invalid path")

// Handlers serves the tracker over HTTP.
type Handlers struct {
	tracker   *tracker.Tracker
	outputDir string
	startTime time.Time
	ready     atomic.Bool
}

// New creates the handlers. They report not ready until SetReady(true).
func New(t *tracker.Tracker, config *startup.Config) *Handlers {
	return &Handlers{
		tracker:   t,
		outputDir: filepath.Clean(config.OutputDir),
		startTime: time.Now(),
	}
}

// SetReady flips the readiness probe.
func (h *Handlers) SetReady(ready bool) {
	h.ready.Store(ready)
}

// NewRouter registers every route on a fresh router.
func (h *Handlers) NewRouter() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/health", h.HealthCheck).Methods("GET")
	r.HandleFunc("/healthz", h.HealthCheck).Methods("GET")
	r.HandleFunc("/livez", h.LivenessCheck).Methods("GET", "HEAD")
	r.HandleFunc("/readyz", h.ReadinessCheck).Methods("GET")
	r.HandleFunc("/version", h.GetVersion).Methods("GET")

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/metadata/{path:.+}", h.GetMetadata).Methods("GET")
	api.HandleFunc("/metadata/{path:.+}", h.DeleteMetadata).Methods("DELETE")
	api.HandleFunc("/preview/{path:.+}", h.GetPreview).Methods("GET")
	api.HandleFunc("/admin/clear-cache", h.ClearCache).Methods("POST")
	api.HandleFunc("/stats", h.GetStats).Methods("GET")

	return r
}

// resolvePath maps a request path onto the output directory.
func (h *Handlers) resolvePath(rel string) (string, error) {
	if rel == "" || strings.ContainsRune(rel, 0) {
		return "", errInvalidPath
	}
	full := filepath.Join(h.outputDir, filepath.FromSlash(rel))
	if !isSubPath(h.outputDir, full) {
		return "", errInvalidPath
	}
	return full, nil
}

func isSubPath(parent, child string) bool {
	rel, err := filepath.Rel(parent, child)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) && !filepath.IsAbs(rel)
}
