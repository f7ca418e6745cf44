package tracker

import (
	"errors"
	"math/rand/v2"
	"time"

	"metadata-tracker/internal/codec"
	"metadata-tracker/internal/filesystem"
	"metadata-tracker/internal/logging"
	"metadata-tracker/internal/store"
)

// DefaultRevalidateAfter is how long a record is trusted before it becomes
// eligible for revalidation.
const DefaultRevalidateAfter = 24 * time.Hour

// Options configures a Tracker.
type Options struct {
	// OutputDir and DataDir are the roots swept by MassRemoveMetadata.
	OutputDir string
	DataDir   string

	// ValidationChance is the probability that a record older than
	// RevalidateAfter is checked against the file's modification time.
	// 0 never revalidates.
	ValidationChance float64
	RevalidateAfter  time.Duration
	// ForceRevalidate checks the modification time on every hit.
	ForceRevalidate bool

	// AllowAnimatedPreviews enables generating and serving animated
	// sibling previews.
	AllowAnimatedPreviews bool

	// Clock and Rand default to time.Now and rand.Float64.
	Clock func() time.Time
	Rand  func() float64
}

// Tracker serves cached metadata and previews for media files. Its public
// operations never fail: problems are logged and surface as nil results.
type Tracker struct {
	opts  Options
	reg   *store.Registry
	codec codec.Codec
	retry filesystem.RetryConfig
}

// New creates a Tracker over reg, computing missing records with c.
func New(reg *store.Registry, c codec.Codec, opts Options) *Tracker {
	if opts.RevalidateAfter <= 0 {
		opts.RevalidateAfter = DefaultRevalidateAfter
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Rand == nil {
		opts.Rand = rand.Float64
	}
	return &Tracker{
		opts:  opts,
		reg:   reg,
		codec: c,
		retry: filesystem.DefaultRetryConfig(),
	}
}

// Registry returns the store registry backing the tracker.
func (t *Tracker) Registry() *store.Registry {
	return t.reg
}

func (t *Tracker) now() int64 {
	return t.opts.Clock().Unix()
}

// storeFor resolves the store and key for path. A nil store means the
// record is computed without being persisted.
func (t *Tracker) storeFor(path string) (*store.FolderStore, string) {
	s, key, err := t.reg.StoreFor(path)
	if err != nil {
		if errors.Is(err, store.ErrStoreDisabled) {
			logging.Debug("Store disabled for %s, not persisting", path)
		} else {
			logging.Warn("Failed to open store for %s: %v", path, err)
		}
		return nil, t.reg.Key(path)
	}
	return s, key
}

type verdict int

const (
	verdictValid verdict = iota
	verdictRefreshed
	verdictStale
)

// verify applies the revalidation policy to a cached stamp. A refreshed
// stamp has its LastVerified updated in place and should be persisted.
func (t *Tracker) verify(path string, st *store.Stamp) verdict {
	now := t.opts.Clock()
	if !t.opts.ForceRevalidate {
		if now.Sub(time.Unix(st.LastVerified, 0)) <= t.opts.RevalidateAfter {
			return verdictValid
		}
		if t.opts.ValidationChance <= 0 || t.opts.Rand() >= t.opts.ValidationChance {
			return verdictValid
		}
	}

	modTime, err := filesystem.ModTime(path)
	if err != nil || modTime != st.FileTime {
		return verdictStale
	}
	st.LastVerified = now.Unix()
	return verdictRefreshed
}

// RemoveMetadataFor deletes both cached records for path.
func (t *Tracker) RemoveMetadataFor(path string) {
	s, key := t.storeFor(path)
	if s == nil {
		return
	}
	if err := s.Delete(key); err != nil {
		logging.Warn("Failed to remove cached records for %s: %v", path, err)
	}
}

// Shutdown closes every open store. Call once at process exit.
func (t *Tracker) Shutdown() {
	t.reg.Shutdown()
}
