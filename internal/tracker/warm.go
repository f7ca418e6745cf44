package tracker

import (
	"context"
	"io/fs"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"metadata-tracker/internal/logging"
	"metadata-tracker/internal/mediatypes"
	"metadata-tracker/internal/metrics"
	"metadata-tracker/internal/store"
	"metadata-tracker/internal/workers"
)

// WarmConfig configures a warm run.
type WarmConfig struct {
	// NumWorkers is the number of parallel workers (0 = auto based on CPU)
	NumWorkers int
	// ChannelBuffer is the size of the work channel buffer
	ChannelBuffer int
	// SkipHidden skips files and directories starting with "."
	SkipHidden bool
	// Previews also generates previews, not only metadata.
	Previews bool
	// Backpressure, if set, is waited on before each file.
	Backpressure Backpressure
}

// Backpressure throttles warm workers, typically on memory pressure.
type Backpressure interface {
	Wait(ctx context.Context) error
}

// DefaultWarmConfig sizes the pool for preview encoding.
func DefaultWarmConfig() WarmConfig {
	return WarmConfig{
		NumWorkers:    workers.ForCPU(8),
		ChannelBuffer: 256,
		SkipHidden:    true,
		Previews:      true,
	}
}

// WarmStats summarizes a warm run.
type WarmStats struct {
	Processed int64
	Skipped   int64
	Duration  time.Duration
}

// Warm walks dir and populates metadata and preview records for every media
// file found. It stops early when ctx is cancelled and returns ctx.Err().
func (t *Tracker) Warm(ctx context.Context, dir string, cfg WarmConfig) (WarmStats, error) {
	if cfg.NumWorkers <= 0 {
		cfg.NumWorkers = workers.ForCPU(0)
	}

	logging.Info("Warming caches under %s with %d workers", dir, cfg.NumWorkers)
	start := time.Now()
	metrics.WarmRunning.Set(1)
	defer metrics.WarmRunning.Set(0)

	root := t.opts.OutputDir
	if root == "" {
		root = dir
	}

	var (
		processed atomic.Int64
		skipped   atomic.Int64
		wg        sync.WaitGroup
		jobs      = make(chan string, cfg.ChannelBuffer)
	)

	for i := 0; i < cfg.NumWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for path := range jobs {
				if ctx.Err() != nil {
					continue
				}
				if cfg.Backpressure != nil {
					if err := cfg.Backpressure.Wait(ctx); err != nil {
						continue
					}
				}
				t.GetMetadataFor(path, root, false)
				if cfg.Previews {
					t.GetOrCreatePreviewFor(path)
				}
				processed.Add(1)
				metrics.WarmFilesTotal.WithLabelValues("processed").Inc()
			}
		}()
	}

	walkErr := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		select {
		case <-ctx.Done():
			return fs.SkipAll
		default:
		}

		if err != nil {
			logging.Warn("Error accessing path %s: %v", path, err)
			return nil
		}

		name := d.Name()
		if cfg.SkipHidden && strings.HasPrefix(name, ".") && path != dir {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || store.IsStoreFile(name) {
			return nil
		}

		if !isTrackable(name) {
			skipped.Add(1)
			metrics.WarmFilesTotal.WithLabelValues("skipped").Inc()
			return nil
		}

		select {
		case jobs <- path:
		case <-ctx.Done():
			return fs.SkipAll
		}
		return nil
	})

	close(jobs)
	wg.Wait()

	stats := WarmStats{
		Processed: processed.Load(),
		Skipped:   skipped.Load(),
		Duration:  time.Since(start),
	}
	logging.Info("Warm complete: %d files processed, %d skipped in %v",
		stats.Processed, stats.Skipped, stats.Duration)

	if walkErr != nil {
		return stats, walkErr
	}
	return stats, ctx.Err()
}

// isTrackable reports whether name is a media file the caches serve, as
// opposed to a store, sidecar or generated preview.
func isTrackable(name string) bool {
	if store.IsStoreFile(name) || IsSiblingPreview(name) || strings.HasSuffix(name, sidecarSuffix) {
		return false
	}
	return mediatypes.IsMediaFile(mediatypes.Ext(name))
}
