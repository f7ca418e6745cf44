package workers

import (
	"os"
	"runtime"
	"strconv"
)

// EnvOverride names the environment variable that pins the worker count.
const EnvOverride = "WARM_WORKERS"

// Count returns the number of workers for a task type, scaled from
// GOMAXPROCS (which follows container CPU limits).
//
// multiplier is 1.0 for CPU-bound work, 2.0 for I/O-bound and 1.5 for mixed.
// limit caps the result; 0 means no cap. WARM_WORKERS overrides the
// calculation but is still capped by limit.
func Count(multiplier float64, limit int) int {
	if override := os.Getenv(EnvOverride); override != "" {
		if count, err := strconv.Atoi(override); err == nil && count > 0 {
			if limit > 0 && count > limit {
				return limit
			}
			return count
		}
	}

	workers := int(float64(runtime.GOMAXPROCS(0)) * multiplier)

	if workers < 1 {
		workers = 1
	}
	if limit > 0 && workers > limit {
		workers = limit
	}

	return workers
}

// ForCPU returns worker count for CPU-bound tasks such as preview encoding.
func ForCPU(limit int) int {
	return Count(1.0, limit)
}

// ForIO returns worker count for I/O-bound tasks such as metadata reads.
func ForIO(limit int) int {
	return Count(2.0, limit)
}

// ForMixed returns worker count for tasks that both read and transcode.
func ForMixed(limit int) int {
	return Count(1.5, limit)
}
