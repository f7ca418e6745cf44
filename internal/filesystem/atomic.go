package filesystem

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// WriteFileAtomic writes data to a uniquely named temp file in the target
// directory and renames it over path, so readers never see a partial file.
// Two writers racing on the same path both succeed; the last rename wins.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) (err error) {
	start := time.Now()
	volume := defaultResolver.Resolve(path)
	defer func() {
		if obs := observe(); obs != nil {
			obs.ObserveOperation(volume, "write", time.Since(start).Seconds(), err)
		}
	}()

	dir := filepath.Dir(path)
	tmp := filepath.Join(dir, "."+filepath.Base(path)+"."+uuid.NewString()+".tmp")

	if err = os.WriteFile(tmp, data, perm); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}

	if err = os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	return nil
}

// RemoveIfExists deletes path, treating a missing file as success.
func RemoveIfExists(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
