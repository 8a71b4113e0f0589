package imagedir_test

import (
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kestrelvision/teachcam/capture"
	"github.com/kestrelvision/teachcam/capture/imagedir"
)

func writeTestImage(t *testing.T, path string, c color.Color) {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 8, 8))
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			img.Set(x, y, c)
		}
	}
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
}

func TestSourceCyclesThroughImages(t *testing.T) {
	dir := t.TempDir()
	writeTestImage(t, filepath.Join(dir, "a.png"), color.NRGBA{R: 255, A: 255})
	writeTestImage(t, filepath.Join(dir, "b.png"), color.NRGBA{G: 255, A: 255})

	src, err := imagedir.New(dir)
	require.NoError(t, err)
	defer src.Close()

	// Three captures over two files wrap around to the first.
	var frames []image.Image
	for i := 0; i < 3; i++ {
		frame, err := src.CaptureFrame(context.Background())
		require.NoError(t, err)
		frames = append(frames, frame)
	}

	first := color.NRGBAModel.Convert(frames[0].At(0, 0)).(color.NRGBA)
	second := color.NRGBAModel.Convert(frames[1].At(0, 0)).(color.NRGBA)
	third := color.NRGBAModel.Convert(frames[2].At(0, 0)).(color.NRGBA)
	assert.Equal(t, uint8(255), first.R)
	assert.Equal(t, uint8(255), second.G)
	assert.Equal(t, first, third)
}

func TestNewRejectsEmptyDirectory(t *testing.T) {
	_, err := imagedir.New(t.TempDir())
	assert.Error(t, err)
}

func TestClosedSourceReturnsNoActiveStream(t *testing.T) {
	dir := t.TempDir()
	writeTestImage(t, filepath.Join(dir, "a.png"), color.NRGBA{B: 255, A: 255})

	src, err := imagedir.New(dir)
	require.NoError(t, err)
	require.NoError(t, src.Close())

	_, err = src.CaptureFrame(context.Background())
	assert.ErrorIs(t, err, capture.ErrNoActiveStream)
}

func TestCaptureHonorsContext(t *testing.T) {
	dir := t.TempDir()
	writeTestImage(t, filepath.Join(dir, "a.png"), color.NRGBA{A: 255})

	src, err := imagedir.New(dir)
	require.NoError(t, err)
	defer src.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = src.CaptureFrame(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
