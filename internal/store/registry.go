package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"metadata-tracker/internal/filesystem"
	"metadata-tracker/internal/logging"
	"metadata-tracker/internal/metrics"
)

// Options configures a Registry.
type Options struct {
	// Kind selects the backend for every store.
	Kind Kind
	// PerFolder keeps one store next to each folder's files. When false a
	// single pooled store lives in DataDir and records are keyed by full
	// path.
	PerFolder bool
	// DataDir holds the pooled store.
	DataDir string
	// ErrorThreshold is the number of reported errors that triggers a
	// rebuild of a store.
	ErrorThreshold int
	// MaxRebuilds is how many rebuilds a folder may go through within
	// RebuildWindow before persistence is disabled for it.
	MaxRebuilds   int
	RebuildWindow time.Duration
	// Now is the clock used for rebuild accounting.
	Now func() time.Time
}

// DefaultOptions returns per-folder SQLite stores with the standard
// self-healing limits.
func DefaultOptions() Options {
	return Options{
		Kind:           KindSQLite,
		PerFolder:      true,
		ErrorThreshold: 10,
		MaxRebuilds:    5,
		RebuildWindow:  time.Hour,
		Now:            time.Now,
	}
}

type slot struct {
	once  sync.Once
	done  atomic.Bool
	store *FolderStore
	err   error
}

func (sl *slot) init(fn func() (*FolderStore, error)) {
	sl.once.Do(func() {
		sl.store, sl.err = fn()
		sl.done.Store(true)
	})
}

// Registry maps folders to their open stores. A folder's store is opened at
// most once, however many goroutines ask for it concurrently.
type Registry struct {
	opts   Options
	stores atomic.Pointer[sync.Map]

	legacyChecked sync.Map

	mu       sync.Mutex
	rebuilds map[string][]time.Time
	disabled map[string]bool
}

// NewRegistry creates an empty registry. Zero option fields take their
// defaults.
func NewRegistry(opts Options) *Registry {
	def := DefaultOptions()
	if opts.Kind == "" {
		opts.Kind = def.Kind
	}
	if opts.ErrorThreshold <= 0 {
		opts.ErrorThreshold = def.ErrorThreshold
	}
	if opts.MaxRebuilds <= 0 {
		opts.MaxRebuilds = def.MaxRebuilds
	}
	if opts.RebuildWindow <= 0 {
		opts.RebuildWindow = def.RebuildWindow
	}
	if opts.Now == nil {
		opts.Now = def.Now
	}

	r := &Registry{
		opts:     opts,
		rebuilds: make(map[string][]time.Time),
		disabled: make(map[string]bool),
	}
	r.stores.Store(&sync.Map{})
	return r
}

// Options returns the effective options.
func (r *Registry) Options() Options {
	return r.opts
}

// canonical maps a folder to the registry key of its store: the data
// directory in pooled mode, the absolute folder path otherwise.
func (r *Registry) canonical(folder string) string {
	if !r.opts.PerFolder {
		folder = r.opts.DataDir
	}
	if abs, err := filepath.Abs(folder); err == nil {
		return abs
	}
	return filepath.Clean(folder)
}

// FolderFor returns the folder whose store holds records for path.
func (r *Registry) FolderFor(path string) string {
	return r.canonical(filepath.Dir(path))
}

// Key returns the record key for path: the bare file name in per-folder
// mode, the absolute path in pooled mode.
func (r *Registry) Key(path string) string {
	if r.opts.PerFolder {
		return filepath.Base(path)
	}
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return filepath.Clean(path)
}

// StoreFor returns the store and record key for a file path.
func (r *Registry) StoreFor(path string) (*FolderStore, string, error) {
	s, err := r.GetStore(r.FolderFor(path))
	if err != nil {
		return nil, "", err
	}
	return s, r.Key(path), nil
}

// GetStore returns the store for folder, opening it on first use. In pooled
// mode every folder maps to the data directory. A corrupt store file is
// deleted and recreated once. Folders that were rebuilt too often return
// ErrStoreDisabled.
func (r *Registry) GetStore(folder string) (*FolderStore, error) {
	folder = r.canonical(folder)
	if r.IsDisabled(folder) {
		return nil, ErrStoreDisabled
	}

	m := r.stores.Load()
	v, _ := m.LoadOrStore(folder, &slot{})
	sl := v.(*slot)
	sl.init(func() (*FolderStore, error) {
		return r.open(folder, sl)
	})

	if sl.err != nil {
		m.CompareAndDelete(folder, sl)
		return nil, sl.err
	}
	if sl.store == nil {
		return nil, ErrClosed
	}
	return sl.store, nil
}

func (r *Registry) open(folder string, sl *slot) (*FolderStore, error) {
	if !r.opts.PerFolder {
		if err := os.MkdirAll(folder, 0o755); err != nil {
			metrics.StoreOpensTotal.WithLabelValues(string(r.opts.Kind), "error").Inc()
			return nil, fmt.Errorf("failed to create store directory: %w", err)
		}
	}
	r.cleanLegacy(folder)

	path := r.opts.Kind.Path(folder)
	status := "success"

	b, err := Open(r.opts.Kind, path)
	if errors.Is(err, ErrCorrupt) {
		logging.Warn("Store %s is corrupt, recreating: %v", path, err)
		if derr := deleteStoreFiles(path); derr != nil {
			logging.Warn("Failed to delete corrupt store %s: %v", path, derr)
		}
		if r.recordRebuild(folder) {
			metrics.StoreOpensTotal.WithLabelValues(string(r.opts.Kind), "disabled").Inc()
			return nil, ErrStoreDisabled
		}
		status = "corrupt_rebuilt"
		b, err = Open(r.opts.Kind, path)
	}
	if err != nil {
		metrics.StoreOpensTotal.WithLabelValues(string(r.opts.Kind), "error").Inc()
		return nil, err
	}

	metrics.StoreOpensTotal.WithLabelValues(string(r.opts.Kind), status).Inc()
	return &FolderStore{
		folder:  folder,
		path:    path,
		reg:     r,
		slot:    sl,
		backend: b,
	}, nil
}

// cleanLegacy deletes store files of older releases, once per folder.
func (r *Registry) cleanLegacy(folder string) {
	if _, loaded := r.legacyChecked.LoadOrStore(folder, struct{}{}); loaded {
		return
	}
	for _, name := range legacyFileNames {
		for _, f := range Files(filepath.Join(folder, name)) {
			if !filesystem.Exists(f) {
				continue
			}
			if err := filesystem.RemoveIfExists(f); err != nil {
				logging.Warn("Failed to remove legacy store file %s: %v", f, err)
				continue
			}
			logging.Info("Removed legacy store file %s", f)
		}
	}
}

// forget drops s from the current map if it is still registered there.
func (r *Registry) forget(s *FolderStore) {
	r.stores.Load().CompareAndDelete(s.folder, s.slot)
}

// recordRebuild notes one rebuild of folder and reports whether the folder
// is now disabled.
func (r *Registry) recordRebuild(folder string) bool {
	now := r.opts.Now()
	cutoff := now.Add(-r.opts.RebuildWindow)

	r.mu.Lock()
	defer r.mu.Unlock()

	recent := r.rebuilds[folder][:0]
	for _, t := range r.rebuilds[folder] {
		if t.After(cutoff) {
			recent = append(recent, t)
		}
	}
	recent = append(recent, now)
	r.rebuilds[folder] = recent

	if len(recent) > r.opts.MaxRebuilds && !r.disabled[folder] {
		r.disabled[folder] = true
		logging.Error("Store for %s rebuilt %d times within %v, disabling persistence for this folder",
			folder, len(recent), r.opts.RebuildWindow)
	}
	return r.disabled[folder]
}

// IsDisabled reports whether persistence is switched off for folder.
func (r *Registry) IsDisabled(folder string) bool {
	folder = r.canonical(folder)
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.disabled[folder]
}

// drain swaps in an empty map and hands every store of the old one to fn.
// Slots still opening are waited for; slots not yet started are sealed.
func (r *Registry) drain(fn func(s *FolderStore)) int {
	old := r.stores.Swap(&sync.Map{})
	n := 0
	old.Range(func(_, v any) bool {
		sl := v.(*slot)
		sl.init(func() (*FolderStore, error) { return nil, ErrClosed })
		if sl.store != nil {
			fn(sl.store)
			n++
		}
		return true
	})
	return n
}

// Shutdown closes every open store and empties the registry. Stores handed
// out earlier return ErrClosed from then on.
func (r *Registry) Shutdown() {
	n := r.drain(func(s *FolderStore) {
		if err := s.close(); err != nil {
			logging.Warn("Failed to close store %s: %v", s.path, err)
		}
	})
	logging.Info("Closed %d folder stores", n)
}

// CloseAndDeleteAll closes every open store, deletes its files and forgets
// all rebuild history. It returns the number of stores removed.
func (r *Registry) CloseAndDeleteAll() int {
	n := r.drain(func(s *FolderStore) {
		s.closeAndDelete()
	})

	r.mu.Lock()
	r.rebuilds = make(map[string][]time.Time)
	r.disabled = make(map[string]bool)
	r.mu.Unlock()

	return n
}

// OpenStores returns the number of stores currently open.
func (r *Registry) OpenStores() int {
	n := 0
	r.stores.Load().Range(func(_, v any) bool {
		if sl := v.(*slot); sl.done.Load() && sl.store != nil {
			n++
		}
		return true
	})
	return n
}

// Stats implements metrics.StatsProvider.
func (r *Registry) Stats() metrics.Stats {
	var st metrics.Stats
	r.stores.Load().Range(func(_, v any) bool {
		sl := v.(*slot)
		if !sl.done.Load() || sl.store == nil {
			return true
		}
		st.OpenStores++
		for _, f := range Files(sl.store.path) {
			if info, err := os.Stat(f); err == nil {
				st.TotalSizeBytes += info.Size()
			}
		}
		return true
	})

	r.mu.Lock()
	st.DisabledFolders = len(r.disabled)
	r.mu.Unlock()
	return st
}
