// Package adapters bridges concrete embedding vendors to the
// extractor.Extractor capability interface, resolving credentials from the
// environment when not passed explicitly.
package adapters

import (
	"context"
	"fmt"
	"image"
	"os"
	"sync"

	"github.com/kestrelvision/teachcam/capture"
	"github.com/kestrelvision/teachcam/extractor"

	"github.com/kestrelvision/teachcam/adapters/voyage"
)

// VoyageExtractorAdapter adapts the Voyage multimodal service to the
// Extractor interface. Load performs one probe embed, which both validates
// the credentials and discovers the output dimensionality.
type VoyageExtractorAdapter struct {
	client interface {
		EmbedImage(ctx context.Context, img image.Image) ([]float32, error)
		Model() string
	}

	mu     sync.Mutex
	loaded bool
	dims   int
}

// NewVoyageExtractorAdapter creates a new adapter for Voyage AI. A nil
// apiKey falls back to the VOYAGEAI_API_KEY environment variable.
func NewVoyageExtractorAdapter(apiKey *string) (*VoyageExtractorAdapter, error) {
	key, err := loadEnvVar(apiKey, "VOYAGEAI_API_KEY")
	if err != nil {
		return nil, err
	}

	return &VoyageExtractorAdapter{
		client: voyage.NewEmbeddingService(*key),
	}, nil
}

// Load implements Extractor: one probe call against the hosted model.
func (a *VoyageExtractorAdapter) Load(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.loaded {
		return nil
	}

	probe := image.NewNRGBA(image.Rect(0, 0, capture.FrameSize, capture.FrameSize))
	vec, err := a.client.EmbedImage(ctx, probe)
	if err != nil {
		return &extractor.LoadError{Model: a.Name(), Err: err}
	}
	if len(vec) == 0 {
		return &extractor.LoadError{Model: a.Name(), Err: fmt.Errorf("probe embedding was empty")}
	}

	a.dims = len(vec)
	a.loaded = true
	return nil
}

// Embed implements Extractor.
func (a *VoyageExtractorAdapter) Embed(ctx context.Context, img image.Image) ([]float32, error) {
	a.mu.Lock()
	loaded := a.loaded
	a.mu.Unlock()
	if !loaded {
		return nil, fmt.Errorf("voyage extractor not loaded")
	}
	return a.client.EmbedImage(ctx, img)
}

// Dimensions implements Extractor. Valid after Load.
func (a *VoyageExtractorAdapter) Dimensions() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.dims
}

// Name implements Extractor.
func (a *VoyageExtractorAdapter) Name() string {
	return "voyage/" + a.client.Model()
}

// Close implements Extractor. The hosted service holds no local resources.
func (a *VoyageExtractorAdapter) Close() error {
	return nil
}

// loadEnvVar returns value when set, otherwise the named environment
// variable, erroring when both are empty.
func loadEnvVar(value *string, envName string) (*string, error) {
	if value != nil && *value != "" {
		return value, nil
	}
	env := os.Getenv(envName)
	if env == "" {
		return nil, fmt.Errorf("missing %s: pass a key or set the environment variable", envName)
	}
	return &env, nil
}
