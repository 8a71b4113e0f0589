// Package extractor defines the embedding extractor capability: a frozen
// pretrained model that maps an image to a fixed-length feature vector.
// Concrete implementations live under adapters/.
package extractor

import (
	"context"
	"fmt"
	"image"
)

// Extractor maps images to feature vectors. Implementations are frozen
// models: Embed is deterministic for a fixed model and input.
type Extractor interface {
	// Load initializes the model. It must be called once before Embed and
	// may be slow (network fetch of weights). Failure is fatal to the
	// session; there is no retry.
	Load(ctx context.Context) error

	// Embed returns the feature vector for one frame.
	Embed(ctx context.Context, img image.Image) ([]float32, error)

	// Dimensions reports the output vector length. Valid after Load.
	Dimensions() int

	// Name identifies the model, including version parameters.
	Name() string

	// Close releases model resources.
	Close() error
}

// LoadError reports a failed one-time model initialization.
type LoadError struct {
	Model string
	Err   error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("extractor: loading model %q: %v", e.Model, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}
