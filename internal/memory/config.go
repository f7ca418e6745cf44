package memory

import (
	"math"
	"os"
	"runtime/debug"
	"strconv"

	"metadata-tracker/internal/logging"
)

// DefaultMemoryRatio is the share of the container limit given to the Go
// heap. The rest covers libvips, ffmpeg and goroutine stacks.
const DefaultMemoryRatio = 0.80

// Limit describes how GOMEMLIMIT was set.
type Limit struct {
	// Source is "GOMEMLIMIT", "MEMORY_LIMIT" or "none".
	Source         string
	ContainerLimit int64
	GoMemLimit     int64
	Ratio          float64
}

// Configured reports whether a soft limit is in effect.
func (l Limit) Configured() bool {
	return l.GoMemLimit > 0
}

// ConfigureFromEnv applies GOMEMLIMIT from the container limit in
// MEMORY_LIMIT (bytes) scaled by MEMORY_RATIO. An explicit GOMEMLIMIT wins.
// Call early, before large allocations.
func ConfigureFromEnv() Limit {
	if os.Getenv("GOMEMLIMIT") != "" {
		limit := Limit{Source: "GOMEMLIMIT"}
		if current := debug.SetMemoryLimit(-1); current > 0 && current < math.MaxInt64 {
			limit.GoMemLimit = current
		}
		return limit
	}

	raw := os.Getenv("MEMORY_LIMIT")
	if raw == "" {
		return Limit{Source: "none"}
	}
	containerLimit, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || containerLimit <= 0 {
		logging.Warn("Ignoring invalid MEMORY_LIMIT %q", raw)
		return Limit{Source: "none"}
	}

	ratio := parseRatio(os.Getenv("MEMORY_RATIO"))
	goLimit := int64(float64(containerLimit) * ratio)
	debug.SetMemoryLimit(goLimit)

	return Limit{
		Source:         "MEMORY_LIMIT",
		ContainerLimit: containerLimit,
		GoMemLimit:     goLimit,
		Ratio:          ratio,
	}
}

func parseRatio(raw string) float64 {
	if raw == "" {
		return DefaultMemoryRatio
	}
	ratio, err := strconv.ParseFloat(raw, 64)
	if err != nil || ratio <= 0 || ratio > 1 {
		logging.Warn("MEMORY_RATIO %q out of range (0-1], using %.2f", raw, DefaultMemoryRatio)
		return DefaultMemoryRatio
	}
	return ratio
}

// FormatBytes renders b with binary units.
func FormatBytes(b int64) string {
	const unit = 1024
	if b < unit {
		return strconv.FormatInt(b, 10) + " B"
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return strconv.FormatFloat(float64(b)/float64(div), 'f', 1, 64) + " " + string("KMGTPE"[exp]) + "iB"
}
