package store

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// Kind selects the embedded database used for folder stores.
type Kind string

const (
	// KindSQLite stores records in SQLite. This is the default.
	KindSQLite Kind = "sqlite"
	// KindBolt stores records in a bbolt file.
	KindBolt Kind = "bolt"
)

const (
	sqliteFileName = "swarm_metadata.db"
	boltFileName   = "swarm_metadata.bolt"
)

// legacyFileNames are store files written by older releases. They are
// never opened, only deleted.
var legacyFileNames = []string{"image_metadata.ldb", "image_metadata.db"}

// sqliteSidecars are the suffixes SQLite appends to auxiliary files.
var sqliteSidecars = []string{"-wal", "-shm", "-journal"}

var (
	// ErrCorrupt is wrapped by Open when the file exists but cannot be
	// read as a store. The caller may delete it and open again.
	ErrCorrupt = errors.New("store file is corrupt")

	// ErrClosed is returned by operations on a closed store.
	ErrClosed = errors.New("store is closed")

	// ErrStoreDisabled is returned by the registry for folders whose
	// persistence was switched off after repeated rebuilds.
	ErrStoreDisabled = errors.New("store disabled after repeated rebuilds")
)

// Backend is one open embedded database holding the metadata and preview
// collections of a folder. Implementations need not be safe for concurrent
// use; FolderStore serializes every call.
type Backend interface {
	// GetMetadata returns the record for key, or nil if there is none.
	GetMetadata(key string) (*MetadataRecord, error)
	// PutMetadata upserts rec by its key.
	PutMetadata(rec *MetadataRecord) error
	// GetPreview returns the record for key, or nil if there is none.
	GetPreview(key string) (*PreviewRecord, error)
	// PutPreview upserts rec by its key.
	PutPreview(rec *PreviewRecord) error
	// Delete removes key from both collections.
	Delete(key string) error
	// Close releases the underlying file.
	Close() error
}

// ParseKind validates a backend name.
func ParseKind(s string) (Kind, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(s))) {
	case KindSQLite, "":
		return KindSQLite, nil
	case KindBolt:
		return KindBolt, nil
	default:
		return "", fmt.Errorf("unknown store backend %q (want sqlite or bolt)", s)
	}
}

// FileName returns the store file name used by kind.
func (k Kind) FileName() string {
	if k == KindBolt {
		return boltFileName
	}
	return sqliteFileName
}

// Path returns the store file path for folder.
func (k Kind) Path(folder string) string {
	return filepath.Join(folder, k.FileName())
}

// Open opens or creates the store file at path. A file that exists but is
// not a valid store yields an error wrapping ErrCorrupt.
func Open(kind Kind, path string) (Backend, error) {
	switch kind {
	case KindBolt:
		return openBolt(path)
	case KindSQLite, "":
		return openSQLite(path)
	default:
		return nil, fmt.Errorf("unknown store backend %q", kind)
	}
}

// Files lists every file that belongs to the store at path, sidecars
// included. Not all of them need to exist.
func Files(path string) []string {
	files := []string{path}
	if strings.HasSuffix(path, ".db") {
		for _, s := range sqliteSidecars {
			files = append(files, path+s)
		}
	}
	return files
}

// IsStoreFile reports whether a file name belongs to a store of any kind,
// current or legacy, including SQLite sidecars.
func IsStoreFile(name string) bool {
	names := append([]string{sqliteFileName, boltFileName}, legacyFileNames...)
	for _, n := range names {
		if name == n {
			return true
		}
		if strings.HasSuffix(n, ".db") {
			for _, s := range sqliteSidecars {
				if name == n+s {
					return true
				}
			}
		}
	}
	return false
}
