package codec

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"time"

	"metadata-tracker/internal/logging"
)

// ExtractVideoPreviews implements Codec. ffmpeg writes both artifacts into a
// private temp directory; the caller decides where they end up.
func (a *Adapter) ExtractVideoPreviews(ctx context.Context, path string, maxEdge int) ([]byte, []byte, error) {
	ffmpegPath := a.FFmpegPath
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	resolved, err := exec.LookPath(ffmpegPath)
	if err != nil {
		return nil, nil, fmt.Errorf("ffmpeg not found: %w", err)
	}

	if a.VideoTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.VideoTimeout)
		defer cancel()
	}

	tmpDir, err := os.MkdirTemp("", "swarmpreview-")
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	scale := fmt.Sprintf("scale=%d:%d:force_original_aspect_ratio=decrease", maxEdge, maxEdge)
	webpOut := filepath.Join(tmpDir, "preview.webp")
	jpgOut := filepath.Join(tmpDir, "preview.jpg")

	fps := a.ClipFPS
	if fps <= 0 {
		fps = 10
	}
	clip := a.ClipLength
	if clip <= 0 {
		clip = 5 * time.Second
	}

	clipArgs := []string{
		"-hide_banner", "-loglevel", "error", "-y",
		"-i", path,
		"-an",
		"-t", strconv.FormatFloat(clip.Seconds(), 'f', 2, 64),
		"-vf", fmt.Sprintf("fps=%d,%s", fps, scale),
		"-c:v", "libwebp",
		"-quality", "50",
		"-loop", "0",
		webpOut,
	}
	if err := runFFmpeg(ctx, resolved, clipArgs); err != nil {
		return nil, nil, fmt.Errorf("animated preview: %w", err)
	}

	stillArgs := []string{
		"-hide_banner", "-loglevel", "error", "-y",
		"-i", path,
		"-vframes", "1",
		"-vf", scale,
		"-q:v", "4",
		jpgOut,
	}
	if err := runFFmpeg(ctx, resolved, stillArgs); err != nil {
		return nil, nil, fmt.Errorf("still preview: %w", err)
	}

	animated, err := os.ReadFile(webpOut)
	if err != nil {
		return nil, nil, err
	}
	still, err := os.ReadFile(jpgOut)
	if err != nil {
		return nil, nil, err
	}
	if len(animated) == 0 || len(still) == 0 {
		return nil, nil, fmt.Errorf("ffmpeg produced no output for %s", path)
	}

	logging.Debug("Extracted video previews for %s: webp=%d bytes, jpg=%d bytes", path, len(animated), len(still))
	return animated, still, nil
}

func runFFmpeg(ctx context.Context, bin string, args []string) error {
	cmd := exec.CommandContext(ctx, bin, args...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("ffmpeg failed: %v, stderr: %s", err, stderr.String())
	}
	return nil
}
