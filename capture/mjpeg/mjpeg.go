// Package mjpeg implements a capture.FrameSource reading an HTTP MJPEG
// stream (multipart/x-mixed-replace), the format served by most IP webcams.
package mjpeg

import (
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"mime"
	"mime/multipart"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/kestrelvision/teachcam/capture"
)

// DefaultDialTimeout bounds the wait for the stream's response headers. The
// body itself stays open for the lifetime of the source, so the overall
// request must not carry a deadline.
const DefaultDialTimeout = 10 * time.Second

var streamClient = &http.Client{
	Transport: &http.Transport{ResponseHeaderTimeout: DefaultDialTimeout},
}

// Source holds one open MJPEG stream and decodes a frame per CaptureFrame.
type Source struct {
	mu     sync.Mutex
	resp   *http.Response
	parts  *multipart.Reader
	closed bool
}

// Open connects to url and prepares the multipart reader. The connection
// stays open for the lifetime of the source; ctx governs that lifetime, so
// pass one that outlives the capture session.
func Open(ctx context.Context, url string) (*Source, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("mjpeg: building request: %w", err)
	}

	resp, err := streamClient.Do(req) //nolint:bodyclose // closed by Source.Close
	if err != nil {
		return nil, fmt.Errorf("mjpeg: connecting to %s: %w", url, err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("mjpeg: stream returned status %d", resp.StatusCode)
	}

	mediaType, params, err := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if err != nil || !strings.HasPrefix(mediaType, "multipart/") {
		resp.Body.Close()
		return nil, fmt.Errorf("mjpeg: not a multipart stream (content-type %q)", resp.Header.Get("Content-Type"))
	}
	boundary := params["boundary"]
	if boundary == "" {
		resp.Body.Close()
		return nil, fmt.Errorf("mjpeg: multipart stream missing boundary")
	}

	return &Source{
		resp:  resp,
		parts: multipart.NewReader(resp.Body, boundary),
	}, nil
}

// CaptureFrame reads the next multipart section and decodes it as JPEG.
func (s *Source) CaptureFrame(ctx context.Context) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, capture.ErrNoActiveStream
	}

	part, err := s.parts.NextPart()
	if err != nil {
		// A broken multipart stream means the camera went away.
		return nil, fmt.Errorf("mjpeg: reading stream part (%v): %w", err, capture.ErrNoActiveStream)
	}
	defer part.Close()

	img, err := jpeg.Decode(part)
	if err != nil {
		return nil, fmt.Errorf("mjpeg: decoding frame: %w", err)
	}
	return img, nil
}

// Close terminates the HTTP stream.
func (s *Source) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.resp.Body.Close()
}
