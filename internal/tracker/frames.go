package tracker

import (
	"image"
	"time"

	"github.com/disintegration/imaging"

	"metadata-tracker/internal/codec"
)

const (
	// PreviewMaxEdge bounds the longer side of every preview.
	PreviewMaxEdge = 256
	// PreviewMinFrameDelay is the shortest playback time of one animated
	// preview frame; shorter source frames are merged.
	PreviewMinFrameDelay = 100 * time.Millisecond
	// PreviewMaxDuration bounds the playback time of an animated preview.
	PreviewMaxDuration = 5 * time.Second

	animatedQuality  = 50
	thumbnailQuality = 80
)

// planFrames turns source frames into the frame sequence of an animated
// preview: consecutive frames are merged until each output frame covers at
// least PreviewMinFrameDelay, output stops before PreviewMaxDuration is
// exceeded, and every frame is scaled to fit PreviewMaxEdge.
func planFrames(frames []codec.Frame) []codec.Frame {
	if len(frames) == 0 {
		return nil
	}

	var (
		out      []codec.Frame
		total    time.Duration
		acc      time.Duration
		head     image.Image
		finished = true
	)
	for _, f := range frames {
		if acc == 0 {
			head = f.Image
		}
		acc += f.Delay
		if acc < PreviewMinFrameDelay {
			continue
		}
		if total+acc > PreviewMaxDuration {
			finished = false
			break
		}
		out = append(out, codec.Frame{Image: head, Delay: acc})
		total += acc
		acc = 0
	}

	// A short tail is padded to the minimum delay when it still fits.
	if finished && acc > 0 && total+PreviewMinFrameDelay <= PreviewMaxDuration {
		out = append(out, codec.Frame{Image: head, Delay: PreviewMinFrameDelay})
	}

	if len(out) == 0 {
		delay := frames[0].Delay
		if delay < PreviewMinFrameDelay {
			delay = PreviewMinFrameDelay
		}
		if delay > PreviewMaxDuration {
			delay = PreviewMaxDuration
		}
		out = []codec.Frame{{Image: frames[0].Image, Delay: delay}}
	}

	for i := range out {
		out[i].Image = fitPreview(out[i].Image)
	}
	return out
}

// fitPreview scales img down to fit PreviewMaxEdge, never up.
func fitPreview(img image.Image) image.Image {
	b := img.Bounds()
	if b.Dx() <= PreviewMaxEdge && b.Dy() <= PreviewMaxEdge {
		return img
	}
	return imaging.Fit(img, PreviewMaxEdge, PreviewMaxEdge, imaging.Lanczos)
}
