package startup

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/spf13/pflag"

	"metadata-tracker/internal/logging"
	"metadata-tracker/internal/memory"
)

// Build-time variables (injected via -ldflags)
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
	GoVersion = runtime.Version()
)

// BuildInfo contains version and build information
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"buildTime"`
	GoVersion string `json:"goVersion"`
	OS        string `json:"os"`
	Arch      string `json:"arch"`
}

// GetBuildInfo returns the current build information
func GetBuildInfo() BuildInfo {
	return BuildInfo{
		Version:   Version,
		Commit:    Commit,
		BuildTime: BuildTime,
		GoVersion: GoVersion,
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
	}
}

// RouteInfo contains information about a registered route
type RouteInfo struct {
	Method string
	Path   string
	Name   string
}

// LoadConfig reads the configuration, applies the logging settings, prints
// the startup banner and prepares the directories the stores need.
func LoadConfig(fs *pflag.FlagSet) (*Config, error) {
	config, err := ReadConfig(fs)
	if err != nil {
		return nil, err
	}

	logging.SetLevel(config.LogLevel)
	if err := logging.Configure(config.LogFormat); err != nil {
		return nil, err
	}

	printBanner()
	logSystemInfo()
	logConfig(config)

	section("DIRECTORY SETUP")
	if err := ensureDirectory(config.OutputDir, "output"); err != nil {
		logging.Warn("  Output directory issue: %v", err)
	}

	if !config.PerFolder {
		if err := ensureDirectory(config.DataDir, "data"); err != nil {
			return nil, fmt.Errorf("data directory error: %w", err)
		}
		logging.Debug("  Testing data directory write access...")
		if err := testWriteAccess(config.DataDir); err != nil {
			return nil, fmt.Errorf("data directory is not writable (required for the pooled store): %w", err)
		}
		logging.Info("  [OK] Data directory is writable")
	} else if err := testWriteAccess(config.OutputDir); err != nil {
		logging.Warn("  Output directory is not writable: %v", err)
		logging.Warn("  Records will be computed but not persisted")
	} else {
		logging.Info("  [OK] Output directory is writable")
	}

	return config, nil
}

func logConfig(c *Config) {
	section("CONFIGURATION")
	if c.ConfigFile != "" {
		logging.Info("  CONFIG_FILE:                   %s", c.ConfigFile)
	}
	logging.Info("  OUTPUT_DIR:                    %s", c.OutputDir)
	logging.Info("  DATA_DIR:                      %s", c.DataDir)
	logging.Info("  PORT:                          %s", c.Port)
	logging.Info("  METRICS_PORT:                  %s", c.MetricsPort)
	logging.Info("  METRICS_ENABLED:               %v", c.MetricsEnabled)
	logging.Info("  IMAGE_METADATA_PER_FOLDER:     %v", c.PerFolder)
	logging.Info("  IMAGE_DATA_VALIDATION_CHANCE:  %v", c.ValidationChance)
	logging.Info("  ALLOW_ANIMATED_PREVIEWS:       %v", c.AllowAnimatedPreviews)
	logging.Info("  STORE_BACKEND:                 %s", c.StoreBackend)
	logging.Info("  WATCH_OUTPUT:                  %v", c.WatchOutput)
	logging.Info("  LOG_LEVEL:                     %s", logging.GetLevel())
	logging.Info("  LOG_FORMAT:                    %s", c.LogFormat)
}

func section(title string) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("%s", title)
	logging.Info("------------------------------------------------------------")
}

func enabledString(enabled bool) string {
	if enabled {
		return "ENABLED"
	}
	return "DISABLED"
}

// LogStoreInit logs the store layout in use.
func LogStoreInit(c *Config) {
	section("STORE INITIALIZATION")
	logging.Info("  Backend:  %s", c.StoreBackend)
	if c.PerFolder {
		logging.Info("  Layout:   one store per output folder")
	} else {
		logging.Info("  Layout:   pooled store in %s", c.DataDir)
	}
}

// LogCodecInit logs preview codec availability and checks FFmpeg.
func LogCodecInit(vipsErr error, animated bool) {
	section("PREVIEW CODECS")

	if vipsErr != nil {
		logging.Warn("  libvips unavailable: %v", vipsErr)
		logging.Warn("  Animated previews will fall back to static images")
	} else {
		logging.Info("  [OK] libvips is available")
	}

	if err := checkFFmpeg(); err != nil {
		logging.Warn("  FFmpeg check failed: %v", err)
		logging.Warn("  Video previews will not be generated")
	} else {
		logging.Info("  [OK] FFmpeg is available")
	}

	logging.Info("  Animated previews: %s", enabledString(animated))
}

// LogMemoryConfig logs how the Go soft memory limit was set.
func LogMemoryConfig(limit memory.Limit) {
	section("MEMORY")
	switch limit.Source {
	case "GOMEMLIMIT":
		if limit.Configured() {
			logging.Info("  GOMEMLIMIT: %s (from environment)", memory.FormatBytes(limit.GoMemLimit))
		} else {
			logging.Info("  GOMEMLIMIT: set in environment")
		}
	case "MEMORY_LIMIT":
		logging.Info("  Container limit: %s", memory.FormatBytes(limit.ContainerLimit))
		logging.Info("  GOMEMLIMIT:      %s (%.0f%%)", memory.FormatBytes(limit.GoMemLimit), limit.Ratio*100)
	default:
		logging.Info("  No memory limit configured (set MEMORY_LIMIT or GOMEMLIMIT)")
	}
}

// LogWatcherInit logs output watcher startup.
func LogWatcherInit(dirs int, err error) {
	section("OUTPUT WATCHER")
	if err != nil {
		logging.Warn("  Failed to start watcher: %v", err)
		logging.Warn("  Changed files are picked up by revalidation only")
		return
	}
	logging.Info("  [OK] Watching %d directories", dirs)
}

// GetRoutes extracts all registered routes from a mux.Router
func GetRoutes(router *mux.Router) ([]RouteInfo, error) {
	var routes []RouteInfo

	err := router.Walk(func(route *mux.Route, _ *mux.Router, _ []*mux.Route) error {
		pathTemplate, err := route.GetPathTemplate()
		if err != nil {
			return err
		}

		methods, err := route.GetMethods()
		if err != nil {
			methods = []string{"*"}
		}

		for _, method := range methods {
			routes = append(routes, RouteInfo{
				Method: method,
				Path:   pathTemplate,
				Name:   route.GetName(),
			})
		}
		return nil
	})

	return routes, err
}

// LogHTTPRoutes logs all registered HTTP routes at debug level
func LogHTTPRoutes(router *mux.Router, logStaticFiles, logHealthChecks bool) {
	section("HTTP SERVER SETUP")

	if logging.IsDebugEnabled() {
		routes, err := GetRoutes(router)
		if err != nil {
			logging.Warn("error walking routes: %v", err)
		}

		groups := make(map[string][]RouteInfo)
		for _, route := range routes {
			prefix := getRouteGroup(route.Path)
			groups[prefix] = append(groups[prefix], route)
		}

		groupKeys := make([]string, 0, len(groups))
		for k := range groups {
			groupKeys = append(groupKeys, k)
		}
		sort.Strings(groupKeys)

		logging.Debug("  Registered routes (%d total):", len(routes))
		for _, group := range groupKeys {
			label := group
			if label == "" {
				label = "root"
			}
			logging.Debug("  [%s]", label)
			for _, route := range groups[group] {
				logging.Debug("    %-6s %s", route.Method, route.Path)
			}
		}
	}

	if logStaticFiles {
		logging.Info("    Preview request logging: ON")
	} else {
		logging.Info("    Preview request logging: OFF (set LOG_STATIC_FILES=true to enable)")
	}
	if logHealthChecks {
		logging.Info("    Health check logging: ON")
	} else {
		logging.Info("    Health check logging: OFF (set LOG_HEALTH_CHECKS=true to enable)")
	}
}

// getRouteGroup extracts a group name from a route path
func getRouteGroup(path string) string {
	parts := strings.SplitN(strings.TrimPrefix(path, "/"), "/", 3)
	if parts[0] == "api" && len(parts) > 1 {
		return "api/" + parts[1]
	}
	return parts[0]
}

// ServerConfig holds configuration for the server startup log
type ServerConfig struct {
	Port            string
	MetricsPort     string
	MetricsEnabled  bool
	StartupDuration time.Duration
}

// LogServerStarted logs successful server start with all endpoint information
func LogServerStarted(config ServerConfig) {
	section("SERVER STARTED")
	logging.Info("  Startup time:    %v", config.StartupDuration)
	logging.Info("  API:             http://0.0.0.0:%s/api", config.Port)
	if config.MetricsEnabled {
		logging.Info("  Metrics:         http://0.0.0.0:%s/metrics", config.MetricsPort)
	} else {
		logging.Info("  Metrics:         DISABLED")
	}
	logging.Info("  Press Ctrl+C to stop the server")
	logging.Info("------------------------------------------------------------")
}

// LogShutdownInitiated logs shutdown start
func LogShutdownInitiated(signal string) {
	section(fmt.Sprintf("SHUTDOWN INITIATED (received %s)", signal))
}

// LogShutdownStep logs a shutdown step
func LogShutdownStep(step string) {
	logging.Debug("  %s...", step)
}

// LogShutdownStepComplete logs a completed shutdown step
func LogShutdownStepComplete(step string) {
	logging.Info("  [OK] %s", step)
}

// LogShutdownComplete logs shutdown completion
func LogShutdownComplete() {
	logging.Info("  [OK] Shutdown complete")
}

func printBanner() {
	banner := `
------------------------------------------------------------
  metadata-tracker
  output metadata and preview cache
------------------------------------------------------------`
	fmt.Fprintln(os.Stderr, banner)
	logging.Info("  Version:    %s", Version)
	logging.Info("  Commit:     %s", Commit)
	logging.Info("  Build Time: %s", BuildTime)
	logging.Info("  Started:    %s", time.Now().Format(time.RFC1123))
}

func logSystemInfo() {
	section("SYSTEM INFORMATION")
	logging.Info("  Go version:      %s", runtime.Version())
	logging.Info("  OS/Arch:         %s/%s", runtime.GOOS, runtime.GOARCH)
	logging.Info("  CPUs available:  %d", runtime.NumCPU())
	logging.Info("  GOMAXPROCS:      %d", runtime.GOMAXPROCS(0))

	if logging.IsDebugEnabled() {
		if wd, err := os.Getwd(); err == nil {
			logging.Debug("  Working dir:     %s", wd)
		}
		if hostname, err := os.Hostname(); err == nil {
			logging.Debug("  Hostname:        %s", hostname)
		}
	}
}

func ensureDirectory(path, name string) error {
	logging.Debug("  Checking %s directory: %s", name, path)

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		if err := os.MkdirAll(path, 0o755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
		logging.Debug("    [OK] Created directory: %s", path)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to stat directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("path exists but is not a directory")
	}
	return nil
}

func testWriteAccess(dir string) error {
	testFile := filepath.Join(dir, fmt.Sprintf(".write-test-%d", os.Getpid()))
	if err := os.WriteFile(testFile, []byte("test"), 0o644); err != nil {
		return err
	}
	if err := os.Remove(testFile); err != nil {
		logging.Warn("failed to remove write test file %s: %v", testFile, err)
	}
	return nil
}

func checkFFmpeg() error {
	path, err := exec.LookPath("ffmpeg")
	if err != nil {
		return fmt.Errorf("ffmpeg not found in PATH")
	}
	logging.Debug("  FFmpeg path: %s", path)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	output, err := exec.CommandContext(ctx, path, "-version").Output()
	if err != nil {
		return fmt.Errorf("failed to get ffmpeg version: %w", err)
	}
	if first, _, _ := strings.Cut(string(output), "\n"); first != "" {
		logging.Debug("  FFmpeg version: %s", strings.TrimSpace(first))
	}
	return nil
}
