package tracker

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"metadata-tracker/internal/codec"
	"metadata-tracker/internal/filesystem"
	"metadata-tracker/internal/logging"
	"metadata-tracker/internal/mediatypes"
	"metadata-tracker/internal/metrics"
	"metadata-tracker/internal/store"
)

const (
	animatedSiblingSuffix = ".swarmpreview.webp"
	staticSiblingSuffix   = ".swarmpreview.jpg"
)

// SiblingPaths returns the animated and static preview files kept next to
// path.
func SiblingPaths(path string) (animated, static string) {
	base := strings.TrimSuffix(path, filepath.Ext(path))
	return base + animatedSiblingSuffix, base + staticSiblingSuffix
}

// IsSiblingPreview reports whether name is a generated preview file.
func IsSiblingPreview(name string) bool {
	return strings.HasSuffix(name, animatedSiblingSuffix) || strings.HasSuffix(name, staticSiblingSuffix)
}

// GetOrCreatePreviewFor returns the cached preview record for path,
// generating sibling preview files and persisting the record when missing or
// stale. Audio files, missing or empty files and failed generations yield
// nil.
func (t *Tracker) GetOrCreatePreviewFor(path string) *store.PreviewRecord {
	if mediatypes.GetFileType(mediatypes.Ext(path)) == mediatypes.FileTypeAudio {
		metrics.CacheLookupsTotal.WithLabelValues("preview", "excluded").Inc()
		return nil
	}

	s, key := t.storeFor(path)
	stale := false

	if s != nil {
		rec, err := s.GetPreview(key)
		if err != nil {
			logging.Debug("Preview read for %s failed, recomputing: %v", path, err)
		} else if rec != nil {
			switch t.verify(path, &rec.Stamp) {
			case verdictValid:
				metrics.CacheLookupsTotal.WithLabelValues("preview", "hit").Inc()
				return rec
			case verdictRefreshed:
				metrics.CacheLookupsTotal.WithLabelValues("preview", "refreshed").Inc()
				if err := s.PutPreview(rec); err != nil {
					logging.Debug("Failed to persist verification of %s: %v", path, err)
				}
				return rec
			default:
				stale = true
				metrics.CacheLookupsTotal.WithLabelValues("preview", "stale").Inc()
			}
		}
	}

	start := time.Now()
	rec, err := t.computePreview(path, stale)
	if err != nil {
		logging.Warn("Failed to create preview for %s: %v", path, err)
		metrics.CacheGenerationsTotal.WithLabelValues("preview", "error").Inc()
		return nil
	}
	if rec == nil {
		metrics.CacheLookupsTotal.WithLabelValues("preview", "not_found").Inc()
		return nil
	}
	rec.Key = key
	metrics.CacheLookupsTotal.WithLabelValues("preview", "miss").Inc()
	metrics.CacheGenerationsTotal.WithLabelValues("preview", "success").Inc()
	metrics.CacheGenerationDuration.WithLabelValues("preview").Observe(time.Since(start).Seconds())

	if s != nil {
		if err := s.PutPreview(rec); err != nil {
			logging.Debug("Failed to persist preview for %s: %v", path, err)
		}
	}
	return rec
}

// chooseSibling returns the sibling preview to serve, or "" if none exists.
func (t *Tracker) chooseSibling(animated, static string) string {
	if t.opts.AllowAnimatedPreviews && filesystem.Exists(animated) {
		return animated
	}
	if filesystem.Exists(static) {
		return static
	}
	return ""
}

// removeSiblings deletes the sibling previews of path.
func removeSiblings(path string) {
	animated, static := SiblingPaths(path)
	for _, p := range []string{animated, static} {
		if err := filesystem.RemoveIfExists(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			logging.Warn("Failed to remove stale preview %s: %v", p, err)
		}
	}
}

// siblingsOutdated reports whether an existing sibling predates the source.
func siblingsOutdated(source os.FileInfo, siblings ...string) bool {
	for _, p := range siblings {
		if info, err := os.Stat(p); err == nil && info.ModTime().Before(source.ModTime()) {
			return true
		}
	}
	return false
}

// computePreview builds a preview record from disk. A nil record with a nil
// error means there is nothing to preview. When stale is set, generated
// siblings are discarded and rebuilt from the current file.
func (t *Tracker) computePreview(path string, stale bool) (*store.PreviewRecord, error) {
	info, err := filesystem.StatWithRetry(path, t.retry)
	if err != nil || info.IsDir() || info.Size() == 0 {
		return nil, nil
	}

	ext := mediatypes.Ext(path)
	fileType := mediatypes.GetFileType(ext)
	if fileType != mediatypes.FileTypeImage && fileType != mediatypes.FileTypeVideo {
		return nil, nil
	}

	animated, static := SiblingPaths(path)
	if mediatypes.RequiresTranscode(ext) && (stale || siblingsOutdated(info, animated, static)) {
		logging.Debug("Discarding outdated previews of %s", path)
		removeSiblings(path)
	}
	chosen := t.chooseSibling(animated, static)

	if chosen == "" && mediatypes.RequiresTranscode(ext) {
		if err := t.generateSiblings(path, ext, fileType, animated, static); err != nil {
			return nil, err
		}
		chosen = t.chooseSibling(animated, static)
	}

	rec := &store.PreviewRecord{
		Stamp: store.Stamp{FileTime: info.ModTime().Unix(), LastVerified: t.now()},
	}

	switch chosen {
	case "":
		if fileType != mediatypes.FileTypeImage {
			return nil, fmt.Errorf("no preview produced for %s", filepath.Base(path))
		}
		data, err := t.thumbnail(path)
		if err != nil || data == nil {
			return nil, err
		}
		rec.Data = data
		metrics.PreviewSourceTotal.WithLabelValues("thumbnail").Inc()

	case animated:
		data, err := filesystem.ReadFileWithRetry(animated, t.retry)
		if err != nil {
			return nil, fmt.Errorf("failed to read animated preview: %w", err)
		}
		if len(data) == 0 {
			return nil, nil
		}
		rec.Data = data
		if still, err := filesystem.ReadFileWithRetry(static, t.retry); err == nil && len(still) > 0 {
			rec.Simplified = still
		}
		metrics.PreviewSourceTotal.WithLabelValues("animated_sibling").Inc()

	default:
		data, err := filesystem.ReadFileWithRetry(static, t.retry)
		if err != nil {
			return nil, fmt.Errorf("failed to read static preview: %w", err)
		}
		if len(data) == 0 {
			return nil, nil
		}
		rec.Data = data
		metrics.PreviewSourceTotal.WithLabelValues("static_sibling").Inc()
	}

	return rec, nil
}

// thumbnail encodes a scaled JPEG of a still image.
func (t *Tracker) thumbnail(path string) ([]byte, error) {
	data, err := filesystem.ReadFileWithRetry(path, t.retry)
	if err != nil {
		return nil, fmt.Errorf("failed to read source: %w", err)
	}
	if len(data) == 0 {
		return nil, nil
	}
	img, err := t.codec.DecodeImage(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode source: %w", err)
	}
	return t.codec.EncodeJPEG(img, PreviewMaxEdge, thumbnailQuality)
}

// generateSiblings writes sibling preview files for animated images and
// videos.
func (t *Tracker) generateSiblings(path, ext string, fileType mediatypes.FileType, animated, static string) error {
	media := "animation"
	if fileType == mediatypes.FileTypeVideo {
		media = "video"
	}

	start := time.Now()
	var err error
	if media == "video" {
		err = t.generateVideoSiblings(path, animated, static)
	} else {
		err = t.generateAnimationSiblings(path, ext, animated, static)
	}
	metrics.PreviewTranscodeDuration.WithLabelValues(media).Observe(time.Since(start).Seconds())

	if err != nil {
		metrics.PreviewTranscodesTotal.WithLabelValues(media, "error").Inc()
		return err
	}
	metrics.PreviewTranscodesTotal.WithLabelValues(media, "success").Inc()
	logging.Debug("Generated %s preview for %s in %v", media, path, time.Since(start))
	return nil
}

func (t *Tracker) generateAnimationSiblings(path, ext, animated, static string) error {
	data, err := filesystem.ReadFileWithRetry(path, t.retry)
	if err != nil {
		return fmt.Errorf("failed to read source: %w", err)
	}
	anim, err := t.codec.DecodeAnimation(data, ext)
	if err != nil {
		return fmt.Errorf("failed to decode animation: %w", err)
	}
	if len(anim.Frames) == 0 {
		return codec.ErrNoFrames
	}
	logging.Debug("Decoded %d frames (%v) from %s", len(anim.Frames), anim.Duration(), path)

	still, err := t.codec.EncodeJPEG(anim.Frames[0].Image, PreviewMaxEdge, thumbnailQuality)
	if err != nil {
		return fmt.Errorf("failed to encode still preview: %w", err)
	}
	if err := filesystem.WriteFileAtomic(static, still, 0o644); err != nil {
		return fmt.Errorf("failed to write still preview: %w", err)
	}

	if len(anim.Frames) < 2 || !t.opts.AllowAnimatedPreviews {
		return nil
	}

	clip, err := t.codec.EncodeAnimatedWebP(planFrames(anim.Frames), animatedQuality, 0)
	if err != nil {
		// The still preview is already in place.
		if errors.Is(err, codec.ErrVipsUnavailable) {
			logging.Debug("Animated preview for %s skipped: %v", path, err)
		} else {
			logging.Warn("Failed to encode animated preview for %s: %v", path, err)
		}
		return nil
	}
	if err := filesystem.WriteFileAtomic(animated, clip, 0o644); err != nil {
		return fmt.Errorf("failed to write animated preview: %w", err)
	}
	return nil
}

func (t *Tracker) generateVideoSiblings(path, animated, static string) error {
	clip, still, err := t.codec.ExtractVideoPreviews(context.Background(), path, PreviewMaxEdge)
	if err != nil {
		return fmt.Errorf("failed to extract video previews: %w", err)
	}
	if len(still) > 0 {
		if err := filesystem.WriteFileAtomic(static, still, 0o644); err != nil {
			return fmt.Errorf("failed to write still preview: %w", err)
		}
	}
	if len(clip) > 0 && t.opts.AllowAnimatedPreviews {
		if err := filesystem.WriteFileAtomic(animated, clip, 0o644); err != nil {
			return fmt.Errorf("failed to write animated preview: %w", err)
		}
	}
	return nil
}
