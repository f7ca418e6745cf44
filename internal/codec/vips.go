package codec

import (
	"sync"

	"metadata-tracker/internal/logging"

	"github.com/davidbyttow/govips/v2/vips"
)

var (
	vipsInitialized bool
	vipsShutdown    bool
	vipsInitMutex   sync.Mutex
	vipsAvailable   bool
)

// vipsLevels maps the application level to the lowest libvips level that
// is forwarded to the application log.
var vipsLevels = map[logging.LogLevel]vips.LogLevel{
	logging.LevelDebug: vips.LogLevelInfo,
	logging.LevelInfo:  vips.LogLevelWarning,
	logging.LevelWarn:  vips.LogLevelError,
	logging.LevelError: vips.LogLevelCritical,
}

func vipsLogHandler(domain string, level vips.LogLevel, msg string) {
	switch level {
	case vips.LogLevelError, vips.LogLevelCritical:
		logging.Error("[%s] %s", domain, msg)
	case vips.LogLevelWarning:
		logging.Warn("[%s] %s", domain, msg)
	default:
		logging.Debug("[%s] %s", domain, msg)
	}
}

// InitVips starts libvips. Call once at startup; later calls are no-ops.
// libvips cannot be restarted after ShutdownVips in the same process.
func InitVips() error {
	vipsInitMutex.Lock()
	defer vipsInitMutex.Unlock()

	if vipsInitialized {
		return nil
	}
	if vipsShutdown {
		return ErrVipsUnavailable
	}

	// Logging must be configured before Startup to take effect.
	level, ok := vipsLevels[logging.GetLevel()]
	if !ok {
		level = vips.LogLevelWarning
	}
	vips.LoggingSettings(vipsLogHandler, level)

	vips.Startup(&vips.Config{
		ConcurrencyLevel: 1,
		MaxCacheMem:      50 * 1024 * 1024,
		MaxCacheSize:     100,
	})

	vipsInitialized = true
	vipsAvailable = true
	logging.Info("libvips initialized successfully (version: %s)", vips.Version)
	return nil
}

// ShutdownVips releases libvips resources.
func ShutdownVips() {
	vipsInitMutex.Lock()
	defer vipsInitMutex.Unlock()

	if vipsInitialized {
		vips.Shutdown()
		vipsInitialized = false
		vipsShutdown = true
		vipsAvailable = false
		logging.Info("libvips shutdown complete")
	}
}

// IsVipsAvailable reports whether libvips is initialized.
func IsVipsAvailable() bool {
	vipsInitMutex.Lock()
	defer vipsInitMutex.Unlock()
	return vipsAvailable
}
