package tracker

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	"metadata-tracker/internal/filesystem"
	"metadata-tracker/internal/logging"
	"metadata-tracker/internal/mediatypes"
	"metadata-tracker/internal/metrics"
	"metadata-tracker/internal/store"
)

const (
	sidecarSuffix = ".swarm.json"
	starredDir    = "Starred"
)

// SidecarPath returns the JSON file that may hold metadata for path.
func SidecarPath(path string) string {
	return strings.TrimSuffix(path, filepath.Ext(path)) + sidecarSuffix
}

// GetMetadataFor returns the cached metadata record for path, computing and
// persisting it when missing or stale. root is the directory starred
// status is computed against; starNoFolders flattens the sub-path when
// looking for a starred mirror. It returns nil when the file does not exist
// or is empty.
func (t *Tracker) GetMetadataFor(path, root string, starNoFolders bool) *store.MetadataRecord {
	s, key := t.storeFor(path)

	if s != nil {
		rec, err := s.GetMetadata(key)
		if err != nil {
			logging.Debug("Metadata read for %s failed, recomputing: %v", path, err)
		} else if rec != nil {
			switch t.verify(path, &rec.Stamp) {
			case verdictValid:
				metrics.CacheLookupsTotal.WithLabelValues("metadata", "hit").Inc()
				return rec
			case verdictRefreshed:
				metrics.CacheLookupsTotal.WithLabelValues("metadata", "refreshed").Inc()
				if err := s.PutMetadata(rec); err != nil {
					logging.Debug("Failed to persist verification of %s: %v", path, err)
				}
				return rec
			default:
				metrics.CacheLookupsTotal.WithLabelValues("metadata", "stale").Inc()
			}
		}
	}

	start := time.Now()
	rec := t.computeMetadata(path, root, starNoFolders)
	if rec == nil {
		metrics.CacheLookupsTotal.WithLabelValues("metadata", "not_found").Inc()
		return nil
	}
	rec.Key = key
	metrics.CacheLookupsTotal.WithLabelValues("metadata", "miss").Inc()
	metrics.CacheGenerationsTotal.WithLabelValues("metadata", "success").Inc()
	metrics.CacheGenerationDuration.WithLabelValues("metadata").Observe(time.Since(start).Seconds())

	if s != nil {
		if err := s.PutMetadata(rec); err != nil {
			logging.Debug("Failed to persist metadata for %s: %v", path, err)
		}
	}
	return rec
}

func (t *Tracker) computeMetadata(path, root string, starNoFolders bool) *store.MetadataRecord {
	info, err := filesystem.StatWithRetry(path, t.retry)
	if err != nil || info.IsDir() || info.Size() == 0 {
		return nil
	}

	var meta *string
	ext := mediatypes.Ext(path)
	if mediatypes.HasEmbeddedMetadata(ext) {
		data, err := filesystem.ReadFileWithRetry(path, t.retry)
		if err != nil {
			logging.Warn("Failed to read %s: %v", path, err)
			return nil
		}
		if len(data) == 0 {
			return nil
		}
		text, err := t.codec.ReadTextMetadata(data, ext)
		if err != nil {
			logging.Warn("Failed to read embedded metadata of %s: %v", path, err)
			metrics.CacheGenerationsTotal.WithLabelValues("metadata", "error").Inc()
		} else if text != "" {
			meta = &text
		}
	}

	if meta == nil {
		meta = t.readSidecar(path)
	}

	if isStarred(path, root, starNoFolders) {
		merged := markStarred(meta)
		meta = &merged
	}

	return &store.MetadataRecord{
		Metadata: meta,
		Stamp:    store.Stamp{FileTime: info.ModTime().Unix(), LastVerified: t.now()},
	}
}

func (t *Tracker) readSidecar(path string) *string {
	data, err := filesystem.ReadFileWithRetry(SidecarPath(path), t.retry)
	if err != nil {
		if !os.IsNotExist(err) {
			logging.Warn("Failed to read sidecar for %s: %v", path, err)
		}
		return nil
	}
	text := strings.TrimSpace(string(data))
	if text == "" {
		return nil
	}
	return &text
}

// isStarred reports whether path lives under <root>/Starred or has a mirror
// file there.
func isStarred(path, root string, starNoFolders bool) bool {
	if root == "" {
		return false
	}
	if abs, err := filepath.Abs(root); err == nil {
		root = abs
	}
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	sub, err := filepath.Rel(root, path)
	if err != nil || !isSubPath(sub) {
		return false
	}
	sub = strings.Trim(filepath.ToSlash(sub), "/")

	if strings.HasPrefix(sub, starredDir+"/") {
		return true
	}
	if starNoFolders {
		sub = strings.ReplaceAll(sub, "/", "")
	}
	return filesystem.Exists(filepath.Join(root, starredDir, filepath.FromSlash(sub)))
}

// isSubPath reports whether rel, as returned by filepath.Rel, names an entry
// strictly inside its base directory.
func isSubPath(rel string) bool {
	if rel == "." || rel == ".." {
		return false
	}
	return !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// markStarred merges "is_starred": true into a JSON metadata object. Text
// that is not a JSON object is kept under "parameters".
func markStarred(meta *string) string {
	obj := map[string]json.RawMessage{}
	if meta != nil {
		trimmed := bytes.TrimSpace([]byte(*meta))
		if err := json.Unmarshal(trimmed, &obj); err != nil || obj == nil {
			raw, _ := json.Marshal(*meta)
			obj = map[string]json.RawMessage{"parameters": raw}
		}
	}
	obj["is_starred"] = json.RawMessage("true")

	out, err := json.Marshal(obj)
	if err != nil {
		return `{"is_starred":true}`
	}
	return string(out)
}
