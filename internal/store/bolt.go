package store

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/fxamacker/cbor/v2"
	"go.etcd.io/bbolt"

	"metadata-tracker/internal/logging"
)

var (
	metadataBucket = []byte("metadata")
	previewsBucket = []byte("previews")
)

// boltMetadata and boltPreview are the stored forms of the records. The key
// lives in the bucket key, not in the value.
type boltMetadata struct {
	Metadata     *string `cbor:"1,keyasint,omitempty"`
	FileTime     int64   `cbor:"2,keyasint"`
	LastVerified int64   `cbor:"3,keyasint"`
}

type boltPreview struct {
	Data         []byte `cbor:"1,keyasint,omitempty"`
	Simplified   []byte `cbor:"2,keyasint,omitempty"`
	FileTime     int64  `cbor:"3,keyasint"`
	LastVerified int64  `cbor:"4,keyasint"`
}

type boltBackend struct {
	db *bbolt.DB
}

func openBolt(path string) (Backend, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		if os.IsPermission(err) || errors.Is(err, bbolt.ErrTimeout) || errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to open store: %w", err)
		}
		return nil, fmt.Errorf("%s: %w: %v", path, ErrCorrupt, err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, b := range [][]byte{metadataBucket, previewsBucket} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logging.Error("failed to close store %s after init failure: %v", path, closeErr)
		}
		return nil, fmt.Errorf("%s: %w: %v", path, ErrCorrupt, err)
	}

	logging.Debug("Opened bolt store at %s", path)
	return &boltBackend{db: db}, nil
}

func (b *boltBackend) get(bucket []byte, key string, v any) (bool, error) {
	var found bool
	err := b.db.View(func(tx *bbolt.Tx) error {
		raw := tx.Bucket(bucket).Get([]byte(key))
		if raw == nil {
			return nil
		}
		found = true
		return cbor.Unmarshal(raw, v)
	})
	return found, err
}

func (b *boltBackend) put(bucket []byte, key string, v any) error {
	raw, err := cbor.Marshal(v)
	if err != nil {
		return err
	}
	return b.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucket).Put([]byte(key), raw)
	})
}

func (b *boltBackend) GetMetadata(key string) (*MetadataRecord, error) {
	var v boltMetadata
	found, err := b.get(metadataBucket, key, &v)
	if err != nil {
		return nil, fmt.Errorf("failed to read metadata %q: %w", key, err)
	}
	if !found {
		return nil, nil
	}
	return &MetadataRecord{
		Key:      key,
		Metadata: v.Metadata,
		Stamp:    Stamp{FileTime: v.FileTime, LastVerified: v.LastVerified},
	}, nil
}

func (b *boltBackend) PutMetadata(rec *MetadataRecord) error {
	v := boltMetadata{Metadata: rec.Metadata, FileTime: rec.FileTime, LastVerified: rec.LastVerified}
	if err := b.put(metadataBucket, rec.Key, &v); err != nil {
		return fmt.Errorf("failed to write metadata %q: %w", rec.Key, err)
	}
	return nil
}

func (b *boltBackend) GetPreview(key string) (*PreviewRecord, error) {
	var v boltPreview
	found, err := b.get(previewsBucket, key, &v)
	if err != nil {
		return nil, fmt.Errorf("failed to read preview %q: %w", key, err)
	}
	if !found {
		return nil, nil
	}
	return &PreviewRecord{
		Key:        key,
		Data:       v.Data,
		Simplified: v.Simplified,
		Stamp:      Stamp{FileTime: v.FileTime, LastVerified: v.LastVerified},
	}, nil
}

func (b *boltBackend) PutPreview(rec *PreviewRecord) error {
	v := boltPreview{
		Data:         rec.Data,
		Simplified:   rec.Simplified,
		FileTime:     rec.FileTime,
		LastVerified: rec.LastVerified,
	}
	if err := b.put(previewsBucket, rec.Key, &v); err != nil {
		return fmt.Errorf("failed to write preview %q: %w", rec.Key, err)
	}
	return nil
}

func (b *boltBackend) Delete(key string) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		for _, bucket := range [][]byte{metadataBucket, previewsBucket} {
			if err := tx.Bucket(bucket).Delete([]byte(key)); err != nil {
				return fmt.Errorf("failed to delete %q: %w", key, err)
			}
		}
		return nil
	})
}

func (b *boltBackend) Close() error {
	return b.db.Close()
}
