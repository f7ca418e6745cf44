// Package logging provides a simple leveled logging interface for the
// metadata tracker.
//
// It supports the following log levels:
//   - DEBUG: Verbose debugging information
//   - INFO: General operational messages
//   - WARN: Warning conditions
//   - ERROR: Error conditions
//   - FATAL: Fatal errors that terminate the application
//
// The log level is configured via the LOG_LEVEL environment variable (or
// DEBUG=true). Messages are written through zap; LOG_FORMAT=json selects
// the production JSON encoder, anything else the console encoder.
package logging
