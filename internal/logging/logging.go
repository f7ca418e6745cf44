package logging

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogLevel represents the severity of a log message
type LogLevel int

const (
	// LevelDebug is the debug log level
	LevelDebug LogLevel = iota
	// LevelInfo is the info log level
	LevelInfo
	// LevelWarn is the warning log level
	LevelWarn
	// LevelError is the error log level
	LevelError
)

var (
	currentLevel LogLevel
	levelOnce    sync.Once

	sinkMu sync.RWMutex
	sink   *zap.SugaredLogger
	base   *zap.Logger
)

// initLevel initializes the log level from environment variables
func initLevel() {
	levelOnce.Do(func() {
		currentLevel = parseLevel(os.Getenv("DEBUG"), os.Getenv("LOG_LEVEL"))
	})
}

// parseLevel resolves the effective level. DEBUG wins over LOG_LEVEL;
// anything unrecognised falls back to info.
func parseLevel(debug, level string) LogLevel {
	switch strings.ToLower(debug) {
	case "1", "true", "yes", "on":
		return LevelDebug
	}

	switch strings.ToLower(level) {
	case "debug":
		return LevelDebug
	case "info":
		return LevelInfo
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// Configure replaces the output sink. format is "json" for the zap
// production encoder, anything else gives the console encoder.
func Configure(format string) error {
	var config zap.Config
	if format == "json" {
		config = zap.NewProductionConfig()
	} else {
		config = zap.NewDevelopmentConfig()
		config.Encoding = "console"
		config.Development = false
	}

	// Level filtering happens in this package, the sink takes everything.
	config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	config.DisableStacktrace = true
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	config.EncoderConfig.CallerKey = ""

	logger, err := config.Build()
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}

	sinkMu.Lock()
	old := base
	base = logger
	sink = logger.Sugar()
	sinkMu.Unlock()

	if old != nil {
		_ = old.Sync()
	}
	return nil
}

func logger() *zap.SugaredLogger {
	sinkMu.RLock()
	s := sink
	sinkMu.RUnlock()
	if s != nil {
		return s
	}

	if err := Configure(os.Getenv("LOG_FORMAT")); err != nil {
		// Building the default console config only fails on a broken
		// stderr; fall back to a no-op sink rather than panic.
		sinkMu.Lock()
		base = zap.NewNop()
		sink = base.Sugar()
		sinkMu.Unlock()
	}

	sinkMu.RLock()
	defer sinkMu.RUnlock()
	return sink
}

// Sync flushes buffered log entries. Call before exit.
func Sync() {
	sinkMu.RLock()
	defer sinkMu.RUnlock()
	if base != nil {
		_ = base.Sync()
	}
}

// SetLevel overrides the level read from the environment.
func SetLevel(level string) {
	initLevel()
	currentLevel = parseLevel("", level)
}

// GetLevel returns the current log level
func GetLevel() LogLevel {
	initLevel()
	return currentLevel
}

// IsDebugEnabled returns true if debug logging is enabled
func IsDebugEnabled() bool {
	return GetLevel() <= LevelDebug
}

// Debug logs a debug message (only if DEBUG=true or LOG_LEVEL=debug)
func Debug(format string, args ...interface{}) {
	if GetLevel() <= LevelDebug {
		logger().Debugf(format, args...)
	}
}

// Info logs an info message
func Info(format string, args ...interface{}) {
	if GetLevel() <= LevelInfo {
		logger().Infof(format, args...)
	}
}

// Warn logs a warning message
func Warn(format string, args ...interface{}) {
	if GetLevel() <= LevelWarn {
		logger().Warnf(format, args...)
	}
}

// Error logs an error message
func Error(format string, args ...interface{}) {
	if GetLevel() <= LevelError {
		logger().Errorf(format, args...)
	}
}

// Fatal logs an error message and exits
func Fatal(format string, args ...interface{}) {
	logger().Fatalf(format, args...)
}

// Printf logs at info level regardless of the configured level.
func Printf(format string, args ...interface{}) {
	logger().Infof(format, args...)
}

// String returns the string representation of a log level
func (l LogLevel) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	default:
		return fmt.Sprintf("unknown(%d)", l)
	}
}
