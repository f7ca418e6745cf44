package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"time"

	"github.com/mattn/go-sqlite3"

	"metadata-tracker/internal/logging"
	"metadata-tracker/internal/store/migrations"
)

// Default timeout for database operations
const defaultTimeout = 5 * time.Second

type sqliteBackend struct {
	db   *sql.DB
	path string
}

func openSQLite(path string) (Backend, error) {
	connStr := sqliteDSN(path)

	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	// FolderStore serializes access, a single connection is enough.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := checkSQLite(db); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logging.Error("failed to close store %s after check failure: %v", path, closeErr)
		}
		return nil, err
	}

	if err := migrations.Up(db); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logging.Error("failed to close store %s after migration failure: %v", path, closeErr)
		}
		if errors.Is(err, migrations.ErrDirty) || isSQLiteCorrupt(err) {
			return nil, fmt.Errorf("%s: %w: %v", path, ErrCorrupt, err)
		}
		return nil, err
	}

	logging.Debug("Opened sqlite store at %s", path)
	return &sqliteBackend{db: db, path: path}, nil
}

// sqliteDSN builds a file: URI for path so folder names containing '?',
// '#' or '%' reach SQLite intact.
func sqliteDSN(path string) string {
	u := url.URL{Path: filepath.ToSlash(path)}
	return "file:" + u.EscapedPath() + "?_journal_mode=WAL&_synchronous=NORMAL&_temp_store=MEMORY&_busy_timeout=5000"
}

func checkSQLite(db *sql.DB) error {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		if isSQLiteCorrupt(err) {
			return fmt.Errorf("%w: %v", ErrCorrupt, err)
		}
		return fmt.Errorf("failed to connect to store: %w", err)
	}

	var result string
	if err := db.QueryRowContext(ctx, "PRAGMA quick_check").Scan(&result); err != nil {
		if isSQLiteCorrupt(err) {
			return fmt.Errorf("%w: %v", ErrCorrupt, err)
		}
		return fmt.Errorf("failed to check store: %w", err)
	}
	if result != "ok" {
		return fmt.Errorf("%w: quick_check: %s", ErrCorrupt, result)
	}
	return nil
}

func isSQLiteCorrupt(err error) bool {
	var se sqlite3.Error
	if !errors.As(err, &se) {
		return false
	}
	return se.Code == sqlite3.ErrCorrupt || se.Code == sqlite3.ErrNotADB
}

func (s *sqliteBackend) GetMetadata(key string) (*MetadataRecord, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	var (
		meta sql.NullString
		rec  = &MetadataRecord{Key: key}
	)
	err := s.db.QueryRowContext(ctx,
		"SELECT metadata, file_time, last_verified FROM metadata WHERE key = ?", key,
	).Scan(&meta, &rec.FileTime, &rec.LastVerified)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read metadata %q: %w", key, err)
	}
	if meta.Valid {
		rec.Metadata = &meta.String
	}
	return rec, nil
}

func (s *sqliteBackend) PutMetadata(rec *MetadataRecord) error {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	var meta sql.NullString
	if rec.Metadata != nil {
		meta = sql.NullString{String: *rec.Metadata, Valid: true}
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO metadata (key, metadata, file_time, last_verified)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			metadata = excluded.metadata,
			file_time = excluded.file_time,
			last_verified = excluded.last_verified`,
		rec.Key, meta, rec.FileTime, rec.LastVerified)
	if err != nil {
		return fmt.Errorf("failed to write metadata %q: %w", rec.Key, err)
	}
	return nil
}

func (s *sqliteBackend) GetPreview(key string) (*PreviewRecord, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	rec := &PreviewRecord{Key: key}
	err := s.db.QueryRowContext(ctx,
		"SELECT data, simplified, file_time, last_verified FROM previews WHERE key = ?", key,
	).Scan(&rec.Data, &rec.Simplified, &rec.FileTime, &rec.LastVerified)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read preview %q: %w", key, err)
	}
	return rec, nil
}

func (s *sqliteBackend) PutPreview(rec *PreviewRecord) error {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO previews (key, data, simplified, file_time, last_verified)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			data = excluded.data,
			simplified = excluded.simplified,
			file_time = excluded.file_time,
			last_verified = excluded.last_verified`,
		rec.Key, rec.Data, rec.Simplified, rec.FileTime, rec.LastVerified)
	if err != nil {
		return fmt.Errorf("failed to write preview %q: %w", rec.Key, err)
	}
	return nil
}

func (s *sqliteBackend) Delete(key string) error {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin delete: %w", err)
	}
	defer func() {
		if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			logging.Warn("failed to rollback delete of %q: %v", key, err)
		}
	}()

	for _, table := range []string{"metadata", "previews"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table+" WHERE key = ?", key); err != nil {
			return fmt.Errorf("failed to delete %q from %s: %w", key, table, err)
		}
	}
	return tx.Commit()
}

func (s *sqliteBackend) Close() error {
	return s.db.Close()
}
