package mjpeg_test

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kestrelvision/teachcam/capture"
	"github.com/kestrelvision/teachcam/capture/mjpeg"
)

const boundary = "frameboundary"

func encodeJPEG(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, image.NewNRGBA(image.Rect(0, 0, w, h)), nil))
	return buf.Bytes()
}

// streamHandler serves count JPEG frames as multipart/x-mixed-replace.
func streamHandler(t *testing.T, count int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary="+boundary)
		w.WriteHeader(http.StatusOK)
		frame := encodeJPEG(t, 32, 24)
		for i := 0; i < count; i++ {
			fmt.Fprintf(w, "--%s\r\nContent-Type: image/jpeg\r\nContent-Length: %d\r\n\r\n", boundary, len(frame))
			w.Write(frame)
			fmt.Fprint(w, "\r\n")
		}
		fmt.Fprintf(w, "--%s--\r\n", boundary)
	}
}

func TestCaptureFrameDecodesStream(t *testing.T) {
	server := httptest.NewServer(streamHandler(t, 3))
	defer server.Close()

	src, err := mjpeg.Open(context.Background(), server.URL)
	require.NoError(t, err)
	defer src.Close()

	for i := 0; i < 3; i++ {
		frame, err := src.CaptureFrame(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 32, frame.Bounds().Dx())
		assert.Equal(t, 24, frame.Bounds().Dy())
	}
}

func TestExhaustedStreamReportsNoActiveStream(t *testing.T) {
	server := httptest.NewServer(streamHandler(t, 1))
	defer server.Close()

	src, err := mjpeg.Open(context.Background(), server.URL)
	require.NoError(t, err)
	defer src.Close()

	_, err = src.CaptureFrame(context.Background())
	require.NoError(t, err)

	_, err = src.CaptureFrame(context.Background())
	assert.ErrorIs(t, err, capture.ErrNoActiveStream)
}

func TestOpenRejectsNonMultipartResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, "<html>not a camera</html>")
	}))
	defer server.Close()

	_, err := mjpeg.Open(context.Background(), server.URL)
	assert.Error(t, err)
}

func TestOpenRejectsErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "stream offline", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	_, err := mjpeg.Open(context.Background(), server.URL)
	assert.Error(t, err)
}

func TestClosedSourceReturnsNoActiveStream(t *testing.T) {
	server := httptest.NewServer(streamHandler(t, 2))
	defer server.Close()

	src, err := mjpeg.Open(context.Background(), server.URL)
	require.NoError(t, err)
	require.NoError(t, src.Close())

	_, err = src.CaptureFrame(context.Background())
	assert.ErrorIs(t, err, capture.ErrNoActiveStream)
}
