package memory

import "runtime/debug"

func debugLimit() int64 {
	return debug.SetMemoryLimit(-1)
}

func restoreLimit(limit int64) {
	debug.SetMemoryLimit(limit)
}
