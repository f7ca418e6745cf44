package main

import (
	"bytes"
	"encoding/json"
	"image/color"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/disintegration/imaging"
)

type cliEnv struct {
	out  string
	data string
}

func newCLIEnv(t *testing.T) *cliEnv {
	t.Helper()
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("LOG_FORMAT", "")
	t.Setenv("LOG_LEVEL", "error")
	return &cliEnv{out: t.TempDir(), data: t.TempDir()}
}

func (e *cliEnv) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(append(args, "--output-dir", e.out, "--data-dir", e.data))
	err := cmd.Execute()
	return stdout.String(), err
}

func (e *cliEnv) writePNG(t *testing.T, rel string, w, h int) string {
	t.Helper()
	path := filepath.Join(e.out, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := imaging.Save(imaging.New(w, h, color.White), path); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestVersionCommand(t *testing.T) {
	env := newCLIEnv(t)
	out, err := env.run(t, "version")
	if err != nil {
		t.Fatalf("version error = %v", err)
	}
	if !strings.HasPrefix(out, "metadata-tracker ") {
		t.Errorf("output = %q", out)
	}
}

func TestMetadataCommand(t *testing.T) {
	env := newCLIEnv(t)
	path := env.writePNG(t, "2024/a.png", 16, 16)

	out, err := env.run(t, "metadata", path)
	if err != nil {
		t.Fatalf("metadata error = %v", err)
	}

	var rec struct {
		Key      string `json:"key"`
		FileTime int64  `json:"fileTime"`
	}
	if err := json.Unmarshal([]byte(out), &rec); err != nil {
		t.Fatalf("output %q is not JSON: %v", out, err)
	}
	if rec.Key != "a.png" || rec.FileTime == 0 {
		t.Errorf("record = %+v", rec)
	}
	if _, err := os.Stat(filepath.Join(env.out, "2024", "swarm_metadata.db")); err != nil {
		t.Errorf("store not created beside the file: %v", err)
	}
}

func TestMetadataCommand_Missing(t *testing.T) {
	env := newCLIEnv(t)
	if _, err := env.run(t, "metadata", filepath.Join(env.out, "missing.png")); err == nil {
		t.Error("metadata of a missing file should fail")
	}
	if _, err := env.run(t, "metadata"); err == nil {
		t.Error("metadata without an argument should fail")
	}
}

func TestPreviewCommand(t *testing.T) {
	env := newCLIEnv(t)
	path := env.writePNG(t, "big.png", 1024, 512)
	dest := filepath.Join(t.TempDir(), "preview.jpg")

	if _, err := env.run(t, "preview", path, "-o", dest); err != nil {
		t.Fatalf("preview error = %v", err)
	}

	img, err := imaging.Open(dest)
	if err != nil {
		t.Fatalf("preview is not an image: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 256 || b.Dy() != 128 {
		t.Errorf("preview = %dx%d, want 256x128", b.Dx(), b.Dy())
	}
}

func TestClearCacheCommand(t *testing.T) {
	env := newCLIEnv(t)
	path := env.writePNG(t, "a.png", 8, 8)
	if _, err := env.run(t, "metadata", path); err != nil {
		t.Fatal(err)
	}

	out, err := env.run(t, "clear-cache")
	if err != nil {
		t.Fatalf("clear-cache error = %v", err)
	}
	if !strings.Contains(out, "cleared") {
		t.Errorf("output = %q", out)
	}
	if _, err := os.Stat(filepath.Join(env.out, "swarm_metadata.db")); !os.IsNotExist(err) {
		t.Error("store should be deleted")
	}
}

func TestWarmCommand(t *testing.T) {
	env := newCLIEnv(t)
	env.writePNG(t, "a.png", 8, 8)
	env.writePNG(t, "sub/b.png", 8, 8)

	out, err := env.run(t, "warm", "--workers", "2", "--no-previews")
	if err != nil {
		t.Fatalf("warm error = %v", err)
	}
	if !strings.Contains(out, "Processed 2 files") {
		t.Errorf("output = %q", out)
	}
}

func TestInvalidConfig(t *testing.T) {
	env := newCLIEnv(t)
	if _, err := env.run(t, "clear-cache", "--store-backend", "leveldb"); err == nil {
		t.Error("unknown backend should fail")
	}
	if _, err := env.run(t, "clear-cache", "--validation-chance", "2"); err == nil {
		t.Error("chance above one should fail")
	}
}
