// Package main provides the metadata-tracker command.
//
// metadata-tracker caches generation metadata and preview images for the
// files of an output directory in small embedded databases, so listings do
// not decode every image again.
//
// # Commands
//
//   - serve: HTTP API with health probes, plus a Prometheus listener
//   - metadata <file>: print the cached metadata record of a file
//   - preview <file> [-o out]: write the preview of a file
//   - clear-cache: delete every store under the output and data directories
//   - warm [dir]: populate records for a whole tree in parallel
//   - version: print build information
//
// Every setting can come from a flag, an environment variable or the config
// file named by CONFIG_FILE; see package startup for the list.
//
// MEMORY_LIMIT (bytes) and MEMORY_RATIO set GOMEMLIMIT for serve and warm.
// warm pauses its workers while the heap is near that limit.
//
// # Graceful Shutdown
//
// serve handles SIGINT and SIGTERM: readiness flips to not ready, the HTTP
// and metrics servers drain (30s timeout), the watcher and metrics collector
// stop and every open store is closed.
//
// # Build Requirements
//
// CGO is required for SQLite (mattn/go-sqlite3) and libvips (govips). FFmpeg
// must be on PATH for video previews.
package main
