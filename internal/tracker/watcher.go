package tracker

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	"metadata-tracker/internal/logging"
	"metadata-tracker/internal/metrics"
)

// Watcher drops cached records of media files that change on disk under a
// root directory, so the next lookup recomputes them. Sibling previews of
// changed files are deleted as well.
type Watcher struct {
	tracker *Tracker
	root    string

	watcher  *fsnotify.Watcher
	wg       sync.WaitGroup
	mu       sync.Mutex
	watching int
	stopOnce sync.Once
}

// NewWatcher creates a watcher for root. Call Start to begin watching.
func NewWatcher(t *Tracker, root string) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		metrics.WatcherErrors.Inc()
		return nil, err
	}
	return &Watcher{tracker: t, root: root, watcher: w}, nil
}

// Start adds every directory under root and processes events in the
// background.
func (w *Watcher) Start() error {
	count, err := w.addTree(w.root)
	if err != nil {
		return err
	}
	logging.Info("Watching %d directories under %s", count, w.root)

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.processEvents()
	}()
	return nil
}

// Stop closes the watcher and waits for the event loop to exit. Safe to
// call more than once.
func (w *Watcher) Stop() error {
	var err error
	w.stopOnce.Do(func() {
		err = w.watcher.Close()
		w.wg.Wait()
		metrics.WatchedDirectories.Set(0)
	})
	return err
}

// Watching returns the number of directories being watched.
func (w *Watcher) Watching() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.watching
}

func (w *Watcher) addTree(root string) (int, error) {
	added := 0
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			logging.Warn("Watcher: skipping %s: %v", path, err)
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		if addErr := w.watcher.Add(path); addErr != nil {
			logging.Warn("failed to add path to watcher %s: %v", path, addErr)
			metrics.WatcherErrors.Inc()
			return nil
		}
		added++
		return nil
	})

	w.mu.Lock()
	w.watching += added
	metrics.WatchedDirectories.Set(float64(w.watching))
	w.mu.Unlock()
	return added, err
}

func (w *Watcher) processEvents() {
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logging.Error("Watcher error: %v", err)
			metrics.WatcherErrors.Inc()
		}
	}
}

func eventType(op fsnotify.Op) string {
	switch {
	case op.Has(fsnotify.Create):
		return "create"
	case op.Has(fsnotify.Write):
		return "write"
	case op.Has(fsnotify.Remove):
		return "remove"
	case op.Has(fsnotify.Rename):
		return "rename"
	default:
		return ""
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	name := filepath.Base(event.Name)
	if strings.HasPrefix(name, ".") {
		return
	}

	kind := eventType(event.Op)
	if kind == "" {
		return
	}
	metrics.WatcherEventsTotal.WithLabelValues(kind).Inc()

	if kind == "create" {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if _, err := w.addTree(event.Name); err != nil {
				logging.Warn("failed to watch new directory %s: %v", event.Name, err)
			}
			return
		}
	}

	if !isTrackable(name) {
		return
	}

	logging.Debug("Watcher: %s %s, dropping cached records", kind, event.Name)
	w.tracker.RemoveMetadataFor(event.Name)

	removeSiblings(event.Name)

	// Starring or unstarring changes the metadata of the source file.
	if source, ok := w.starredSource(event.Name); ok {
		logging.Debug("Watcher: starred mirror %s changed, dropping %s", event.Name, source)
		w.tracker.RemoveMetadataFor(source)
	}
}

// starredSource maps a file under <root>/Starred to the file it mirrors.
// Flattened mirrors cannot be mapped back and are left to revalidation.
func (w *Watcher) starredSource(path string) (string, bool) {
	rel, err := filepath.Rel(filepath.Join(w.root, starredDir), path)
	if err != nil || !isSubPath(rel) {
		return "", false
	}
	return filepath.Join(w.root, rel), true
}
