package tracker

import (
	"slices"
	"time"

	"metadata-tracker/internal/logging"
	"metadata-tracker/internal/metrics"
	"metadata-tracker/internal/store"
)

// MassRemoveMetadata closes and deletes every open store, then removes all
// store files, current and legacy, found under the output and data roots.
// Files that cannot be deleted are skipped. A concurrent lookup may
// recreate a store while the sweep runs.
func (t *Tracker) MassRemoveMetadata() {
	start := time.Now()
	metrics.MassWipeTotal.Inc()

	closed := t.reg.CloseAndDeleteAll()
	removed := 0

	for _, root := range t.sweepRoots() {
		n, err := store.Sweep(root)
		if err != nil {
			logging.Warn("Mass wipe of %s stopped early: %v", root, err)
		}
		removed += n
	}

	metrics.MassWipeFilesRemoved.Add(float64(removed))
	logging.Info("Cleared metadata caches: %d open stores closed, %d store files removed in %v",
		closed, removed, time.Since(start))
}

func (t *Tracker) sweepRoots() []string {
	var roots []string
	for _, r := range []string{t.opts.OutputDir, t.opts.DataDir} {
		if r != "" && !slices.Contains(roots, r) {
			roots = append(roots, r)
		}
	}
	return roots
}
