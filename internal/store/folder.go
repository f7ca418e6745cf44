package store

import (
	"errors"
	"math"
	"sync"
	"sync/atomic"

	"metadata-tracker/internal/filesystem"
	"metadata-tracker/internal/logging"
	"metadata-tracker/internal/metrics"
)

// tornDown is stored in the error counter once a store has been torn down so
// that late reports can never reach the threshold again.
const tornDown = math.MinInt32 / 2

// FolderStore is one open store file plus the mutex serializing every call
// into it. Backend errors are counted; when the count reaches the
// registry's threshold the store is closed, its files are deleted and the
// registry forgets it, so the next lookup recreates an empty store.
type FolderStore struct {
	folder string
	path   string
	reg    *Registry
	slot   *slot

	mu      sync.Mutex
	backend Backend
	errors  atomic.Int32
}

// Folder returns the directory this store serves.
func (s *FolderStore) Folder() string {
	return s.folder
}

// Path returns the store file path.
func (s *FolderStore) Path() string {
	return s.path
}

// ErrorCount returns the number of errors reported since the store opened.
func (s *FolderStore) ErrorCount() int {
	n := s.errors.Load()
	if n < 0 {
		return 0
	}
	return int(n)
}

func (s *FolderStore) do(op string, fn func(b Backend) error) error {
	s.mu.Lock()
	if s.backend == nil {
		s.mu.Unlock()
		return ErrClosed
	}
	err := fn(s.backend)
	s.mu.Unlock()

	if err != nil {
		metrics.StoreErrorsTotal.WithLabelValues(op).Inc()
		logging.Warn("Store %s: %s failed: %v", s.path, op, err)
		s.ReportError()
	}
	return err
}

// GetMetadata returns the metadata record for key, or nil if absent.
func (s *FolderStore) GetMetadata(key string) (*MetadataRecord, error) {
	var rec *MetadataRecord
	err := s.do("get_metadata", func(b Backend) error {
		var err error
		rec, err = b.GetMetadata(key)
		return err
	})
	return rec, err
}

// PutMetadata upserts a metadata record.
func (s *FolderStore) PutMetadata(rec *MetadataRecord) error {
	return s.do("put_metadata", func(b Backend) error {
		return b.PutMetadata(rec)
	})
}

// GetPreview returns the preview record for key, or nil if absent.
func (s *FolderStore) GetPreview(key string) (*PreviewRecord, error) {
	var rec *PreviewRecord
	err := s.do("get_preview", func(b Backend) error {
		var err error
		rec, err = b.GetPreview(key)
		return err
	})
	return rec, err
}

// PutPreview upserts a preview record.
func (s *FolderStore) PutPreview(rec *PreviewRecord) error {
	return s.do("put_preview", func(b Backend) error {
		return b.PutPreview(rec)
	})
}

// Delete removes key from both collections.
func (s *FolderStore) Delete(key string) error {
	return s.do("delete", func(b Backend) error {
		return b.Delete(key)
	})
}

// ReportError counts one failure against the store. The call that reaches
// the threshold tears the store down.
func (s *FolderStore) ReportError() {
	threshold := int32(s.reg.opts.ErrorThreshold)
	if s.errors.Add(1) != threshold {
		return
	}
	s.errors.Store(tornDown)

	logging.Warn("Store %s reached %d errors, rebuilding", s.path, threshold)
	metrics.StoreSelfHealsTotal.Inc()
	// The slot stays registered until the files are gone, so concurrent
	// lookups get this closed store instead of reopening the old file.
	s.closeAndDelete()
	s.reg.recordRebuild(s.folder)
	s.reg.forget(s)
}

func (s *FolderStore) close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.backend == nil {
		return nil
	}
	err := s.backend.Close()
	s.backend = nil
	return err
}

func (s *FolderStore) closeAndDelete() {
	if err := s.close(); err != nil {
		logging.Warn("Failed to close store %s: %v", s.path, err)
	}
	if err := deleteStoreFiles(s.path); err != nil {
		logging.Warn("Failed to delete store %s: %v", s.path, err)
	}
}

func deleteStoreFiles(path string) error {
	var errs []error
	for _, f := range Files(path) {
		if err := filesystem.RemoveIfExists(f); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
