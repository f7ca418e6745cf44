// Package startup handles configuration loading and startup/shutdown logging.
//
// # Configuration
//
// [ReadConfig] resolves every setting with spf13/viper. A value set on the
// command line wins over the environment, which wins over the optional
// config file named by CONFIG_FILE, which wins over the defaults:
//
//   - OUTPUT_DIR: root directory of generated outputs (default: /output)
//   - DATA_DIR: directory of the pooled store (default: /data)
//   - IMAGE_METADATA_PER_FOLDER: one store beside each folder (default: true)
//   - IMAGE_DATA_VALIDATION_CHANCE: revalidation probability, 0 to 1 (default: 0.1)
//   - ALLOW_ANIMATED_PREVIEWS: generate animated previews (default: true)
//   - STORE_BACKEND: sqlite or bolt (default: sqlite)
//   - WATCH_OUTPUT: watch the output tree for changes (default: false)
//   - PORT, METRICS_PORT, METRICS_ENABLED: HTTP listeners
//   - LOG_LEVEL, LOG_FORMAT, LOG_STATIC_FILES, LOG_HEALTH_CHECKS: logging
//
// [RegisterFlags] adds the matching cobra/pflag flags. [LoadConfig] reads the
// configuration, applies the log settings, prints the banner and prepares
// the directories.
//
// # Build Information
//
// Build-time variables are injected via ldflags and exposed via [GetBuildInfo].
package startup
