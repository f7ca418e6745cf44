// Package middleware provides HTTP middleware for the metadata tracker API.
//
// It includes:
//   - Access logging through the logging package
//   - Prometheus request metrics labelled by route template
//   - gzip compression of JSON responses (klauspost/compress)
package middleware
