// Package imagedir implements a capture.FrameSource backed by still images
// on disk. It exists for demos and tests where no camera is available: each
// CaptureFrame returns the next image in the directory, wrapping around.
package imagedir

import (
	"context"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/disintegration/imaging"

	"github.com/kestrelvision/teachcam/capture"
)

var supportedExts = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".bmp":  true,
	".tiff": true,
}

// Source cycles through the image files of a single directory.
type Source struct {
	mu     sync.Mutex
	paths  []string
	next   int
	closed bool
}

// New lists the supported image files under dir, in lexical order.
func New(dir string) (*Source, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("imagedir: reading %s: %w", dir, err)
	}

	var paths []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if supportedExts[strings.ToLower(filepath.Ext(e.Name()))] {
			paths = append(paths, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(paths)

	if len(paths) == 0 {
		return nil, fmt.Errorf("imagedir: no image files in %s", dir)
	}
	return &Source{paths: paths}, nil
}

// CaptureFrame decodes and returns the next image, wrapping at the end.
func (s *Source) CaptureFrame(ctx context.Context) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, capture.ErrNoActiveStream
	}
	path := s.paths[s.next]
	s.next = (s.next + 1) % len(s.paths)
	s.mu.Unlock()

	img, err := imaging.Open(path)
	if err != nil {
		return nil, fmt.Errorf("imagedir: decoding %s: %w", path, err)
	}
	return img, nil
}

// Close marks the source as closed.
func (s *Source) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
