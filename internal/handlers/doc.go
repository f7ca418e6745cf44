// Package handlers provides the HTTP API over the metadata tracker.
//
// It includes handlers for:
//   - Reading and dropping cached metadata of an output file
//   - Serving animated or simplified previews
//   - Wiping every store (admin)
//   - Health, readiness, version and Prometheus metrics
//
// Every file path is resolved under the output directory; requests that
// escape it are rejected.
package handlers
