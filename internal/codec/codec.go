package codec

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"time"

	// Image format decoders
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

var (
	// ErrVipsUnavailable is returned by operations that need libvips when it
	// has not been initialized.
	ErrVipsUnavailable = errors.New("libvips not available")

	// ErrNoFrames is returned when an animation decodes to zero frames.
	ErrNoFrames = errors.New("no frames decoded")
)

// Frame is one image of an animation and how long it is shown.
type Frame struct {
	Image image.Image
	Delay time.Duration
}

// Animation is a decoded frame sequence. Every frame has the canvas size.
type Animation struct {
	Width  int
	Height int
	Frames []Frame
}

// Duration returns the summed delay of all frames.
func (a *Animation) Duration() time.Duration {
	var total time.Duration
	for _, f := range a.Frames {
		total += f.Delay
	}
	return total
}

// Codec is the image and video toolkit the caches call into.
type Codec interface {
	// DecodeImage decodes a still image, applying EXIF orientation.
	DecodeImage(data []byte) (image.Image, error)

	// DecodeAnimation decodes every frame of an animated image. Formats that
	// turn out to hold one frame return a single-frame Animation.
	DecodeAnimation(data []byte, ext string) (*Animation, error)

	// EncodeJPEG scales img to fit within maxEdge on its longer side (never
	// upscaling) and encodes it as JPEG.
	EncodeJPEG(img image.Image, maxEdge, quality int) ([]byte, error)

	// EncodeAnimatedWebP encodes same-sized frames as an animated WebP.
	// loop 0 repeats forever.
	EncodeAnimatedWebP(frames []Frame, quality, loop int) ([]byte, error)

	// ReadTextMetadata returns generation parameters embedded in an image,
	// or "" when there are none.
	ReadTextMetadata(data []byte, ext string) (string, error)

	// ExtractVideoPreviews produces an animated WebP clip and a JPEG still
	// for a video file.
	ExtractVideoPreviews(ctx context.Context, path string, maxEdge int) (animated, still []byte, err error)
}

// Adapter is the production Codec: Go decoders and imaging for stills,
// libvips for animated WebP, ffmpeg for video.
type Adapter struct {
	// FFmpegPath overrides the ffmpeg binary looked up on PATH.
	FFmpegPath string
	// ClipLength bounds the animated clip cut from videos.
	ClipLength time.Duration
	// ClipFPS is the frame rate of the animated clip cut from videos.
	ClipFPS int
	// VideoTimeout bounds each ffmpeg invocation.
	VideoTimeout time.Duration
}

// New returns an Adapter with default video settings.
func New() *Adapter {
	return &Adapter{
		FFmpegPath:   "ffmpeg",
		ClipLength:   5 * time.Second,
		ClipFPS:      10,
		VideoTimeout: 2 * time.Minute,
	}
}

// DecodeImage implements Codec.
func (a *Adapter) DecodeImage(data []byte) (image.Image, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	return img, nil
}

// EncodeJPEG implements Codec.
func (a *Adapter) EncodeJPEG(img image.Image, maxEdge, quality int) ([]byte, error) {
	if img == nil {
		return nil, errors.New("nil image")
	}

	b := img.Bounds()
	if maxEdge > 0 && (b.Dx() > maxEdge || b.Dy() > maxEdge) {
		img = imaging.Fit(img, maxEdge, maxEdge, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(quality)); err != nil {
		return nil, fmt.Errorf("failed to encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}
