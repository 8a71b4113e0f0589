// Package capture provides frame sources for the teaching session. A
// FrameSource hands out the current frame on demand; normalization to the
// embedding model's input size happens in Normalize so every source can
// return frames at its native resolution.
package capture

import (
	"context"
	"errors"
	"image"

	"github.com/disintegration/imaging"
)

// FrameSize is the square edge length expected by the embedding extractors.
const FrameSize = 224

// ErrNoActiveStream is returned by a source whose underlying stream is gone
// (camera closed, HTTP stream ended, directory exhausted with cycling off).
var ErrNoActiveStream = errors.New("capture: no active video stream")

// FrameSource produces the current frame of a live video source.
type FrameSource interface {
	// CaptureFrame returns the most recent frame. It must not block longer
	// than the context allows.
	CaptureFrame(ctx context.Context) (image.Image, error)

	// Close releases the underlying device or stream. The source is unusable
	// afterwards and CaptureFrame returns ErrNoActiveStream.
	Close() error
}

// Normalize center-crops and scales a frame to FrameSize x FrameSize RGB.
func Normalize(img image.Image) *image.NRGBA {
	return imaging.Fill(img, FrameSize, FrameSize, imaging.Center, imaging.Lanczos)
}
