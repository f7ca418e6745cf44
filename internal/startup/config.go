package startup

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"metadata-tracker/internal/store"
)

// Config holds all application configuration
type Config struct {
	OutputDir  string
	DataDir    string
	ConfigFile string

	Port           string
	MetricsPort    string
	MetricsEnabled bool

	LogLevel        string
	LogFormat       string
	LogStaticFiles  bool
	LogHealthChecks bool

	PerFolder             bool
	ValidationChance      float64
	AllowAnimatedPreviews bool
	StoreBackend          store.Kind
	WatchOutput           bool
}

// setting ties an environment variable to its command line flag.
type setting struct {
	key   string
	flag  string
	def   any
	usage string
}

var settings = []setting{
	{"OUTPUT_DIR", "output-dir", "/output", "root directory of generated outputs"},
	{"DATA_DIR", "data-dir", "/data", "directory for the pooled store when per-folder stores are off"},
	{"CONFIG_FILE", "config", "", "optional config file (yaml, toml or json)"},
	{"PORT", "port", "8080", "HTTP server port"},
	{"METRICS_PORT", "metrics-port", "9090", "Prometheus metrics port"},
	{"METRICS_ENABLED", "metrics", true, "serve Prometheus metrics"},
	{"LOG_LEVEL", "log-level", "info", "log level: debug, info, warn, error"},
	{"LOG_FORMAT", "log-format", "console", "log encoding: console or json"},
	{"LOG_STATIC_FILES", "log-static-files", false, "log preview requests"},
	{"LOG_HEALTH_CHECKS", "log-health-checks", true, "log health check requests"},
	{"IMAGE_METADATA_PER_FOLDER", "per-folder", true, "keep one store beside each output folder"},
	{"IMAGE_DATA_VALIDATION_CHANCE", "validation-chance", 0.1, "probability of revalidating a record older than 24h (0 disables)"},
	{"ALLOW_ANIMATED_PREVIEWS", "animated-previews", true, "generate and serve animated previews"},
	{"STORE_BACKEND", "store-backend", string(store.KindSQLite), "store backend: sqlite or bolt"},
	{"WATCH_OUTPUT", "watch", false, "drop cached records when output files change"},
}

// RegisterFlags adds a flag for every setting to fs.
func RegisterFlags(fs *pflag.FlagSet) {
	for _, s := range settings {
		if fs.Lookup(s.flag) != nil {
			continue
		}
		switch def := s.def.(type) {
		case string:
			fs.String(s.flag, def, s.usage)
		case bool:
			fs.Bool(s.flag, def, s.usage)
		case float64:
			fs.Float64(s.flag, def, s.usage)
		}
	}
}

func newViper(fs *pflag.FlagSet) (*viper.Viper, error) {
	v := viper.New()
	v.AutomaticEnv()

	for _, s := range settings {
		v.SetDefault(s.key, s.def)
		if fs == nil {
			continue
		}
		if f := fs.Lookup(s.flag); f != nil {
			if err := v.BindPFlag(s.key, f); err != nil {
				return nil, fmt.Errorf("failed to bind flag %s: %w", s.flag, err)
			}
		}
	}

	if file := v.GetString("CONFIG_FILE"); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}
	return v, nil
}

// ReadConfig resolves settings from flags, environment, config file and
// defaults, in that order, without logging or touching the filesystem.
func ReadConfig(fs *pflag.FlagSet) (*Config, error) {
	v, err := newViper(fs)
	if err != nil {
		return nil, err
	}

	kind, err := store.ParseKind(v.GetString("STORE_BACKEND"))
	if err != nil {
		return nil, err
	}

	config := &Config{
		OutputDir:             v.GetString("OUTPUT_DIR"),
		DataDir:               v.GetString("DATA_DIR"),
		ConfigFile:            v.ConfigFileUsed(),
		Port:                  v.GetString("PORT"),
		MetricsPort:           v.GetString("METRICS_PORT"),
		MetricsEnabled:        v.GetBool("METRICS_ENABLED"),
		LogLevel:              v.GetString("LOG_LEVEL"),
		LogFormat:             v.GetString("LOG_FORMAT"),
		LogStaticFiles:        v.GetBool("LOG_STATIC_FILES"),
		LogHealthChecks:       v.GetBool("LOG_HEALTH_CHECKS"),
		PerFolder:             v.GetBool("IMAGE_METADATA_PER_FOLDER"),
		ValidationChance:      v.GetFloat64("IMAGE_DATA_VALIDATION_CHANCE"),
		AllowAnimatedPreviews: v.GetBool("ALLOW_ANIMATED_PREVIEWS"),
		StoreBackend:          kind,
		WatchOutput:           v.GetBool("WATCH_OUTPUT"),
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	if config.OutputDir, err = filepath.Abs(config.OutputDir); err != nil {
		return nil, fmt.Errorf("failed to resolve output directory path: %w", err)
	}
	if config.DataDir, err = filepath.Abs(config.DataDir); err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}
	return config, nil
}

// Validate checks value ranges that viper cannot express.
func (c *Config) Validate() error {
	if c.ValidationChance < 0 || c.ValidationChance > 1 {
		return fmt.Errorf("IMAGE_DATA_VALIDATION_CHANCE must be between 0 and 1, got %v", c.ValidationChance)
	}
	if c.OutputDir == "" {
		return errors.New("OUTPUT_DIR is required")
	}
	if !c.PerFolder && c.DataDir == "" {
		return errors.New("DATA_DIR is required when IMAGE_METADATA_PER_FOLDER is off")
	}
	switch c.LogFormat {
	case "console", "json":
	default:
		return fmt.Errorf("invalid LOG_FORMAT: %s", c.LogFormat)
	}
	return nil
}
