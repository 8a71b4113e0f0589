//go:build !no_tflite && !no_cgo

// Package tflite runs a frozen MobileNet-style feature extractor on the
// host CPU through TensorFlow Lite. The model file is resolved once at Load,
// from a local path or a one-time HTTP fetch; inference afterwards is fully
// local and deterministic.
package tflite

import (
	"context"
	"fmt"
	"image"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	tfl "github.com/mattn/go-tflite"

	"github.com/kestrelvision/teachcam/capture"
	"github.com/kestrelvision/teachcam/extractor"
)

const (
	// DefaultVersion and DefaultWidthMultiplier parameterize the pretrained
	// model the same way its published artifacts are named.
	DefaultVersion         = "v1"
	DefaultWidthMultiplier = 0.25
)

// Config locates and parameterizes the frozen model.
type Config struct {
	// ModelPath points at a local .tflite file. Takes precedence over
	// ModelURL.
	ModelPath string

	// ModelURL is fetched once at Load into the user cache directory.
	ModelURL string

	// Version and WidthMultiplier identify the pretrained architecture;
	// they only affect Name reporting, the weights come from the file.
	Version         string
	WidthMultiplier float64

	// NumThreads for the interpreter. Zero means all CPUs.
	NumThreads int
}

func (c *Config) applyDefaults() {
	if c.Version == "" {
		c.Version = DefaultVersion
	}
	if c.WidthMultiplier == 0 {
		c.WidthMultiplier = DefaultWidthMultiplier
	}
	if c.NumThreads <= 0 {
		c.NumThreads = runtime.NumCPU()
	}
}

// Extractor is a local TFLite embedding model. It implements
// extractor.Extractor.
type Extractor struct {
	conf Config

	mu      sync.Mutex
	loaded  bool
	model   *tfl.Model
	options *tfl.InterpreterOptions
	interp  *tfl.Interpreter
	dims    int
}

// New builds an unloaded extractor; Load initializes it.
func New(conf Config) *Extractor {
	conf.applyDefaults()
	return &Extractor{conf: conf}
}

// Name identifies the model with its version parameters, matching the
// published artifact naming.
func (e *Extractor) Name() string {
	return fmt.Sprintf("mobilenet_%s_%.2f_%d", e.conf.Version, e.conf.WidthMultiplier, capture.FrameSize)
}

// Load resolves the model file, builds the interpreter and records the
// output dimensionality. One-time; a failure leaves the extractor unusable.
func (e *Extractor) Load(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.loaded {
		return nil
	}

	path, err := e.resolveModelFile(ctx)
	if err != nil {
		return &extractor.LoadError{Model: e.Name(), Err: err}
	}

	model := tfl.NewModelFromFile(path)
	if model == nil {
		return &extractor.LoadError{Model: e.Name(), Err: fmt.Errorf("failed to load model file %s", path)}
	}

	options := tfl.NewInterpreterOptions()
	if options == nil {
		model.Delete()
		return &extractor.LoadError{Model: e.Name(), Err: fmt.Errorf("failed to create interpreter options")}
	}
	options.SetNumThread(e.conf.NumThreads)

	interp := tfl.NewInterpreter(model, options)
	if interp == nil {
		options.Delete()
		model.Delete()
		return &extractor.LoadError{Model: e.Name(), Err: fmt.Errorf("failed to create interpreter")}
	}
	if status := interp.AllocateTensors(); status != tfl.OK {
		interp.Delete()
		options.Delete()
		model.Delete()
		return &extractor.LoadError{Model: e.Name(), Err: fmt.Errorf("failed to allocate tensors")}
	}

	output := interp.GetOutputTensor(0)
	if output == nil {
		interp.Delete()
		options.Delete()
		model.Delete()
		return &extractor.LoadError{Model: e.Name(), Err: fmt.Errorf("model has no output tensor")}
	}
	dims := 1
	for i := 0; i < output.NumDims(); i++ {
		dims *= output.Dim(i)
	}

	e.model = model
	e.options = options
	e.interp = interp
	e.dims = dims
	e.loaded = true
	return nil
}

// Dimensions reports the feature vector length. Valid after Load.
func (e *Extractor) Dimensions() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.dims
}

// Embed runs one inference over a frame and returns the flattened output
// tensor as the feature vector.
func (e *Extractor) Embed(ctx context.Context, img image.Image) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.loaded {
		return nil, fmt.Errorf("tflite: model not loaded")
	}

	if err := e.fillInput(capture.Normalize(img)); err != nil {
		return nil, err
	}
	if status := e.interp.Invoke(); status != tfl.OK {
		return nil, fmt.Errorf("tflite: inference failed")
	}
	return e.readOutput()
}

// Close releases the interpreter and model.
func (e *Extractor) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.loaded {
		return nil
	}
	e.loaded = false
	e.interp.Delete()
	e.options.Delete()
	e.model.Delete()
	return nil
}

// resolveModelFile returns a local path for the model, downloading it into
// the user cache directory when only a URL is configured.
func (e *Extractor) resolveModelFile(ctx context.Context) (string, error) {
	if e.conf.ModelPath != "" {
		if _, err := os.Stat(e.conf.ModelPath); err != nil {
			return "", fmt.Errorf("model file: %w", err)
		}
		return e.conf.ModelPath, nil
	}
	if e.conf.ModelURL == "" {
		return "", fmt.Errorf("config needs ModelPath or ModelURL")
	}

	cacheDir, err := os.UserCacheDir()
	if err != nil {
		return "", fmt.Errorf("locating cache dir: %w", err)
	}
	dir := filepath.Join(cacheDir, "teachcam")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating cache dir: %w", err)
	}
	dest := filepath.Join(dir, e.Name()+".tflite")
	if _, err := os.Stat(dest); err == nil {
		return dest, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.conf.ModelURL, nil)
	if err != nil {
		return "", fmt.Errorf("building model request: %w", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetching model weights: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetching model weights: status %d", resp.StatusCode)
	}

	tmp, err := os.CreateTemp(dir, "model-*.tflite")
	if err != nil {
		return "", fmt.Errorf("staging model file: %w", err)
	}
	if _, err := io.Copy(tmp, resp.Body); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("writing model file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("writing model file: %w", err)
	}
	if err := os.Rename(tmp.Name(), dest); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("caching model file: %w", err)
	}
	return dest, nil
}

// fillInput writes a normalized RGB frame into the input tensor, handling
// both float and quantized models.
func (e *Extractor) fillInput(img *image.NRGBA) error {
	input := e.interp.GetInputTensor(0)
	if input == nil {
		return fmt.Errorf("tflite: model has no input tensor")
	}

	w, h := capture.FrameSize, capture.FrameSize
	switch input.Type() {
	case tfl.Float32:
		buf := input.Float32s()
		if len(buf) < w*h*3 {
			return fmt.Errorf("tflite: input tensor too small: %d", len(buf))
		}
		i := 0
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				off := img.PixOffset(x, y)
				// MobileNet float input range is [-1, 1].
				buf[i] = float32(img.Pix[off])/127.5 - 1
				buf[i+1] = float32(img.Pix[off+1])/127.5 - 1
				buf[i+2] = float32(img.Pix[off+2])/127.5 - 1
				i += 3
			}
		}
	case tfl.UInt8:
		buf := input.UInt8s()
		if len(buf) < w*h*3 {
			return fmt.Errorf("tflite: input tensor too small: %d", len(buf))
		}
		i := 0
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				off := img.PixOffset(x, y)
				buf[i] = img.Pix[off]
				buf[i+1] = img.Pix[off+1]
				buf[i+2] = img.Pix[off+2]
				i += 3
			}
		}
	default:
		return fmt.Errorf("tflite: unsupported input tensor type %v", input.Type())
	}
	return nil
}

// readOutput flattens the output tensor into a float32 vector, dequantizing
// when needed.
func (e *Extractor) readOutput() ([]float32, error) {
	output := e.interp.GetOutputTensor(0)
	if output == nil {
		return nil, fmt.Errorf("tflite: model has no output tensor")
	}

	switch output.Type() {
	case tfl.Float32:
		data := output.Float32s()
		vec := make([]float32, len(data))
		copy(vec, data)
		return vec, nil
	case tfl.UInt8:
		params := output.QuantizationParams()
		data := output.UInt8s()
		vec := make([]float32, len(data))
		for i, v := range data {
			vec[i] = float32(params.Scale) * float32(int(v)-params.ZeroPoint)
		}
		return vec, nil
	default:
		return nil, fmt.Errorf("tflite: unsupported output tensor type %v", output.Type())
	}
}
