// Package webcam implements a capture.FrameSource over a local camera using
// pion/mediadevices. Opening the camera acquires the device; a denied
// permission or missing device surfaces as an error from Open.
package webcam

import (
	"context"
	"fmt"
	"image"
	"sync"

	"github.com/pion/mediadevices"
	_ "github.com/pion/mediadevices/pkg/driver/camera" // registers the camera driver
	"github.com/pion/mediadevices/pkg/io/video"
	"github.com/pion/mediadevices/pkg/prop"

	"github.com/kestrelvision/teachcam/capture"
)

// Config selects the camera and the requested capture resolution.
type Config struct {
	// DeviceID selects a specific camera. Empty picks the first available.
	DeviceID string
	// Width and Height are the requested capture resolution. Zero values
	// leave the choice to the driver.
	Width  int
	Height int
}

// Source owns one open camera track.
type Source struct {
	mu     sync.Mutex
	track  *mediadevices.VideoTrack
	reader video.Reader
	closed bool
}

// Open acquires the camera described by conf.
func Open(conf Config) (*Source, error) {
	stream, err := mediadevices.GetUserMedia(mediadevices.MediaStreamConstraints{
		Video: func(constraint *mediadevices.MediaTrackConstraints) {
			if conf.DeviceID != "" {
				constraint.DeviceID = prop.String(conf.DeviceID)
			}
			if conf.Width > 0 {
				constraint.Width = prop.Int(conf.Width)
			}
			if conf.Height > 0 {
				constraint.Height = prop.Int(conf.Height)
			}
		},
	})
	if err != nil {
		return nil, fmt.Errorf("webcam: acquiring camera: %w", err)
	}

	tracks := stream.GetVideoTracks()
	if len(tracks) == 0 {
		return nil, fmt.Errorf("webcam: stream has no video tracks: %w", capture.ErrNoActiveStream)
	}
	track, ok := tracks[0].(*mediadevices.VideoTrack)
	if !ok {
		return nil, fmt.Errorf("webcam: unexpected track type %T", tracks[0])
	}

	return &Source{
		track:  track,
		reader: track.NewReader(false),
	}, nil
}

// CaptureFrame reads the next decoded frame from the camera.
func (s *Source) CaptureFrame(ctx context.Context) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, capture.ErrNoActiveStream
	}

	frame, release, err := s.reader.Read()
	if err != nil {
		return nil, fmt.Errorf("webcam: reading frame (%v): %w", err, capture.ErrNoActiveStream)
	}
	defer release()

	// The frame buffer is recycled after release, so hand back a copy.
	return cloneImage(frame), nil
}

// Close releases the camera device.
func (s *Source) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.track.Close()
}

func cloneImage(src image.Image) *image.RGBA {
	b := src.Bounds()
	dst := image.NewRGBA(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			dst.Set(x, y, src.At(x, y))
		}
	}
	return dst
}
