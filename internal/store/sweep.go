package store

import (
	"io/fs"
	"os"
	"path/filepath"

	"metadata-tracker/internal/filesystem"
	"metadata-tracker/internal/logging"
)

// Sweep deletes every store file, current or legacy, found anywhere under
// root. Unreadable directories are skipped. It returns the number of files
// removed.
func Sweep(root string) (int, error) {
	if _, err := os.Stat(root); os.IsNotExist(err) {
		return 0, nil
	}

	removed := 0
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			logging.Warn("Sweep: skipping %s: %v", path, err)
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() || !IsStoreFile(d.Name()) {
			return nil
		}
		if err := filesystem.RemoveIfExists(path); err != nil {
			logging.Warn("Sweep: failed to remove %s: %v", path, err)
			return nil
		}
		removed++
		return nil
	})
	return removed, err
}
