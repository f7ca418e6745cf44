package startup

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"

	"metadata-tracker/internal/store"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, s := range settings {
		t.Setenv(s.key, "")
	}
}

func newFlags(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(fs)
	if err := fs.Parse(args); err != nil {
		t.Fatalf("Parse(%v) error = %v", args, err)
	}
	return fs
}

func TestReadConfig_Defaults(t *testing.T) {
	clearEnv(t)

	c, err := ReadConfig(newFlags(t))
	if err != nil {
		t.Fatalf("ReadConfig() error = %v", err)
	}

	if c.OutputDir != "/output" || c.DataDir != "/data" {
		t.Errorf("dirs = %s, %s", c.OutputDir, c.DataDir)
	}
	if c.Port != "8080" || c.MetricsPort != "9090" || !c.MetricsEnabled {
		t.Errorf("ports = %s, %s (metrics %v)", c.Port, c.MetricsPort, c.MetricsEnabled)
	}
	if !c.PerFolder || !c.AllowAnimatedPreviews || c.WatchOutput {
		t.Errorf("feature flags = %+v", c)
	}
	if c.ValidationChance != 0.1 {
		t.Errorf("ValidationChance = %v, want 0.1", c.ValidationChance)
	}
	if c.StoreBackend != store.KindSQLite {
		t.Errorf("StoreBackend = %s, want sqlite", c.StoreBackend)
	}
	if c.LogFormat != "console" || !c.LogHealthChecks || c.LogStaticFiles {
		t.Errorf("logging = %+v", c)
	}
}

func TestReadConfig_NilFlags(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "1234")

	c, err := ReadConfig(nil)
	if err != nil {
		t.Fatalf("ReadConfig(nil) error = %v", err)
	}
	if c.Port != "1234" {
		t.Errorf("Port = %s, want 1234", c.Port)
	}
}

func TestReadConfig_Precedence(t *testing.T) {
	clearEnv(t)

	file := filepath.Join(t.TempDir(), "config.yaml")
	yaml := "port: \"7000\"\nmetrics_port: \"7001\"\nstore_backend: bolt\nimage_data_validation_chance: 0.5\n"
	if err := os.WriteFile(file, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CONFIG_FILE", file)
	t.Setenv("METRICS_PORT", "8001")
	t.Setenv("IMAGE_DATA_VALIDATION_CHANCE", "0.25")

	c, err := ReadConfig(newFlags(t, "--validation-chance=1"))
	if err != nil {
		t.Fatalf("ReadConfig() error = %v", err)
	}

	tests := []struct {
		name string
		got  any
		want any
	}{
		{"file only", c.Port, "7000"},
		{"env over file", c.MetricsPort, "8001"},
		{"flag over env", c.ValidationChance, 1.0},
		{"backend from file", c.StoreBackend, store.KindBolt},
		{"file recorded", c.ConfigFile, file},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s: got %v, want %v", tt.name, tt.got, tt.want)
		}
	}
}

func TestReadConfig_Flags(t *testing.T) {
	clearEnv(t)
	out := t.TempDir()

	c, err := ReadConfig(newFlags(t, "--output-dir", out, "--per-folder=false", "--watch", "--store-backend", "BOLT"))
	if err != nil {
		t.Fatalf("ReadConfig() error = %v", err)
	}
	if c.OutputDir != out {
		t.Errorf("OutputDir = %s, want %s", c.OutputDir, out)
	}
	if c.PerFolder || !c.WatchOutput || c.StoreBackend != store.KindBolt {
		t.Errorf("config = %+v", c)
	}
}

func TestReadConfig_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"chance above one", map[string]string{"IMAGE_DATA_VALIDATION_CHANCE": "1.5"}},
		{"negative chance", map[string]string{"IMAGE_DATA_VALIDATION_CHANCE": "-0.1"}},
		{"unknown backend", map[string]string{"STORE_BACKEND": "leveldb"}},
		{"unknown log format", map[string]string{"LOG_FORMAT": "xml"}},
		{"missing config file", map[string]string{"CONFIG_FILE": "/nonexistent/config.yaml"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			if _, err := ReadConfig(nil); err == nil {
				t.Error("ReadConfig() error = nil, want error")
			}
		})
	}
}

func TestRegisterFlags_Idempotent(t *testing.T) {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(fs)
	RegisterFlags(fs)
	for _, s := range settings {
		if fs.Lookup(s.flag) == nil {
			t.Errorf("flag --%s not registered", s.flag)
		}
	}
}

func TestLoadConfig_PooledCreatesDataDir(t *testing.T) {
	clearEnv(t)
	root := t.TempDir()
	t.Setenv("OUTPUT_DIR", filepath.Join(root, "out"))
	t.Setenv("DATA_DIR", filepath.Join(root, "data"))
	t.Setenv("IMAGE_METADATA_PER_FOLDER", "false")

	c, err := LoadConfig(nil)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	for _, dir := range []string{c.OutputDir, c.DataDir} {
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			t.Errorf("%s not created: %v", dir, err)
		}
	}
}
