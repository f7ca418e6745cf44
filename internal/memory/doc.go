// Package memory keeps preview generation inside a container's memory
// budget.
//
// [ConfigureFromEnv] sets GOMEMLIMIT from MEMORY_LIMIT (bytes, usually from
// the Kubernetes Downward API) scaled by MEMORY_RATIO (default 0.80). An
// explicit GOMEMLIMIT takes precedence.
//
// A [Monitor] samples heap usage against that limit. Warm workers call
// [Monitor.Wait] before each file; it blocks while usage is above the
// critical water mark and releases them once usage falls under the high
// water mark.
package memory
