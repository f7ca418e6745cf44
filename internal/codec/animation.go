package codec

import (
	"bytes"
	"fmt"
	"image"
	"image/gif"
	"time"

	"metadata-tracker/internal/logging"

	"github.com/davidbyttow/govips/v2/vips"
	"github.com/disintegration/imaging"
	"golang.org/x/image/draw"
)

// defaultFrameDelay is used for frames that declare no delay, matching
// what browsers do with 0 and 10ms GIF delays.
const defaultFrameDelay = 100 * time.Millisecond

// DecodeAnimation implements Codec. GIF is decoded natively with frame
// disposal applied; WebP goes through libvips when it is available. Other
// formats (including APNG, which Go decodes as its default image) yield a
// single frame.
func (a *Adapter) DecodeAnimation(data []byte, ext string) (*Animation, error) {
	switch ext {
	case ".gif":
		return decodeGIF(data)
	case ".webp":
		if IsVipsAvailable() {
			anim, err := decodeVipsAnimation(data)
			if err == nil {
				return anim, nil
			}
			logging.Debug("vips animation decode failed, falling back to single frame: %v", err)
		}
	}

	img, err := a.DecodeImage(data)
	if err != nil {
		return nil, err
	}
	b := img.Bounds()
	return &Animation{
		Width:  b.Dx(),
		Height: b.Dy(),
		Frames: []Frame{{Image: img, Delay: defaultFrameDelay}},
	}, nil
}

func frameDelay(d time.Duration) time.Duration {
	if d <= 10*time.Millisecond {
		return defaultFrameDelay
	}
	return d
}

// decodeGIF composites every GIF frame onto a full canvas so each output
// frame is a complete picture.
func decodeGIF(data []byte) (*Animation, error) {
	g, err := gif.DecodeAll(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode gif: %w", err)
	}
	if len(g.Image) == 0 {
		return nil, ErrNoFrames
	}

	width, height := g.Config.Width, g.Config.Height
	if width == 0 || height == 0 {
		b := g.Image[0].Bounds()
		width, height = b.Max.X, b.Max.Y
	}

	canvas := image.NewNRGBA(image.Rect(0, 0, width, height))
	frames := make([]Frame, 0, len(g.Image))

	for i, src := range g.Image {
		var previous *image.NRGBA
		disposal := byte(0)
		if i < len(g.Disposal) {
			disposal = g.Disposal[i]
		}
		if disposal == gif.DisposalPrevious {
			previous = imaging.Clone(canvas)
		}

		draw.Draw(canvas, src.Bounds(), src, src.Bounds().Min, draw.Over)

		delay := defaultFrameDelay
		if i < len(g.Delay) {
			delay = frameDelay(time.Duration(g.Delay[i]) * 10 * time.Millisecond)
		}
		frames = append(frames, Frame{Image: imaging.Clone(canvas), Delay: delay})

		switch disposal {
		case gif.DisposalBackground:
			draw.Draw(canvas, src.Bounds(), image.Transparent, image.Point{}, draw.Src)
		case gif.DisposalPrevious:
			canvas = previous
		}
	}

	return &Animation{Width: width, Height: height, Frames: frames}, nil
}

// decodeVipsAnimation loads all pages of an animated image and splits the
// tall page strip libvips returns into individual frames.
func decodeVipsAnimation(data []byte) (*Animation, error) {
	params := vips.NewImportParams()
	params.NumPages.Set(-1)

	ref, err := vips.LoadImageFromBuffer(data, params)
	if err != nil {
		return nil, fmt.Errorf("vips failed to load animation: %w", err)
	}
	defer ref.Close()

	width := ref.Width()
	pageHeight := ref.PageHeight()
	if pageHeight <= 0 || pageHeight > ref.Height() {
		pageHeight = ref.Height()
	}
	pages := ref.Height() / pageHeight
	if pages == 0 {
		return nil, ErrNoFrames
	}

	delays, err := ref.PageDelay()
	if err != nil {
		delays = nil
	}

	frames := make([]Frame, 0, pages)
	for i := 0; i < pages; i++ {
		img, err := extractPage(ref, i, width, pageHeight)
		if err != nil {
			return nil, fmt.Errorf("frame %d: %w", i, err)
		}
		delay := defaultFrameDelay
		if i < len(delays) {
			delay = frameDelay(time.Duration(delays[i]) * time.Millisecond)
		}
		frames = append(frames, Frame{Image: img, Delay: delay})
	}

	return &Animation{Width: width, Height: pageHeight, Frames: frames}, nil
}

func extractPage(ref *vips.ImageRef, page, width, pageHeight int) (image.Image, error) {
	cp, err := ref.Copy()
	if err != nil {
		return nil, err
	}
	defer cp.Close()

	// Collapse to a single page so ExtractArea crops the strip itself
	// instead of every page.
	if err := cp.SetPageHeight(cp.Height()); err != nil {
		return nil, err
	}
	if err := cp.ExtractArea(0, page*pageHeight, width, pageHeight); err != nil {
		return nil, err
	}

	buf, _, err := cp.ExportPng(vips.NewPngExportParams())
	if err != nil {
		return nil, err
	}
	return imaging.Decode(bytes.NewReader(buf))
}

// EncodeAnimatedWebP implements Codec.
func (a *Adapter) EncodeAnimatedWebP(frames []Frame, quality, loop int) ([]byte, error) {
	if len(frames) == 0 {
		return nil, ErrNoFrames
	}
	if !IsVipsAvailable() {
		return nil, ErrVipsUnavailable
	}

	refs := make([]*vips.ImageRef, 0, len(frames))
	defer func() {
		for _, r := range refs {
			r.Close()
		}
	}()

	bounds := frames[0].Image.Bounds()
	delays := make([]int, 0, len(frames))
	for i, f := range frames {
		if f.Image.Bounds().Dx() != bounds.Dx() || f.Image.Bounds().Dy() != bounds.Dy() {
			return nil, fmt.Errorf("frame %d is %v, want %v", i, f.Image.Bounds().Size(), bounds.Size())
		}

		var buf bytes.Buffer
		if err := imaging.Encode(&buf, f.Image, imaging.PNG); err != nil {
			return nil, fmt.Errorf("frame %d: %w", i, err)
		}
		ref, err := vips.LoadImageFromBuffer(buf.Bytes(), vips.NewImportParams())
		if err != nil {
			return nil, fmt.Errorf("frame %d: %w", i, err)
		}
		refs = append(refs, ref)
		delays = append(delays, int(f.Delay/time.Millisecond))
	}

	strip, err := refs[0].Copy()
	if err != nil {
		return nil, err
	}
	defer strip.Close()

	if len(refs) > 1 {
		if err := strip.ArrayJoin(refs[1:], 1); err != nil {
			return nil, fmt.Errorf("failed to join frames: %w", err)
		}
	}
	if err := strip.SetPageHeight(bounds.Dy()); err != nil {
		return nil, err
	}
	if err := strip.SetPageDelay(delays); err != nil {
		return nil, err
	}
	if err := strip.SetLoop(loop); err != nil {
		return nil, err
	}

	params := vips.NewWebpExportParams()
	params.Quality = quality
	params.StripMetadata = true

	out, _, err := strip.ExportWebp(params)
	if err != nil {
		return nil, fmt.Errorf("failed to encode webp: %w", err)
	}
	return out, nil
}
