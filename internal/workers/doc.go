/*
Package workers sizes worker pools from GOMAXPROCS rather than runtime.NumCPU,
so pools respect container CPU limits.

# Usage

	// Cache warming decodes and encodes images, so it is CPU bound.
	n := workers.ForCPU(8)

	// Metadata-only passes mostly wait on disk.
	n := workers.ForIO(16)

	// Custom ratio: 3 workers per CPU, at most 24.
	n := workers.Count(3.0, 24)

# Environment Variable Override

WARM_WORKERS pins the worker count for every helper. The per-call limit
still applies.

	env:
	- name: WARM_WORKERS
	  value: "4"

With a CPU limit of 2 and no override, ForCPU(8) returns 2, ForIO(8)
returns 4 and ForMixed(8) returns 3.
*/
package workers
