/*
Package filesystem provides resilient filesystem operations with automatic retry logic
for NFS stale file handle errors, plus atomic file replacement for derived artifacts.

# Purpose

Output folders are frequently network mounts. This package wraps os.Stat, os.Open and
os.ReadFile with retry logic for ESTALE (stale file handle) errors, which show up when
NFS-mounted files are accessed during network issues or server-side changes.

# Usage

	info, err := filesystem.StatWithRetry(path, filesystem.DefaultRetryConfig())
	data, err := filesystem.ReadFileWithRetry(path, filesystem.DefaultRetryConfig())

Sibling preview files are written with WriteFileAtomic, which writes to a uniquely named
temp file in the same directory and renames it into place:

	err := filesystem.WriteFileAtomic(dir+"/a.swarmpreview.jpg", jpg, 0o644)

# Retry Behavior

Defaults are 3 retries with exponential backoff from 50ms capped at 500ms. Only ESTALE
triggers a retry; every other error is returned immediately.

# Metrics

Operation and retry metrics are reported through an Observer set with SetObserver.
The metrics package provides the Prometheus implementation. Without an observer,
recording is skipped. Volume labels come from a VolumeResolver configured at startup
with the output and data roots.
*/
package filesystem
