package capture_test

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kestrelvision/teachcam/capture"
)

func TestNormalizeProducesModelInputSize(t *testing.T) {
	cases := []image.Rectangle{
		image.Rect(0, 0, 640, 480),
		image.Rect(0, 0, 480, 640),
		image.Rect(0, 0, 224, 224),
		image.Rect(0, 0, 17, 31),
	}
	for _, bounds := range cases {
		out := capture.Normalize(image.NewNRGBA(bounds))
		assert.Equal(t, capture.FrameSize, out.Bounds().Dx(), "width for input %v", bounds)
		assert.Equal(t, capture.FrameSize, out.Bounds().Dy(), "height for input %v", bounds)
	}
}
