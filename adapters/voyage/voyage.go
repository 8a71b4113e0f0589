// Package voyage wraps the Voyage AI multimodal embedding API as an image
// feature extractor. The hosted model is frozen: the same frame always maps
// to the same vector for a fixed model version.
package voyage

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	"image/jpeg"
	"sync"

	"github.com/austinfhunter/voyageai"
)

var client *voyageai.VoyageClient
var once sync.Once

// VOYAGE_MULTIMODAL_MODEL is the hosted image-embedding model version.
const VOYAGE_MULTIMODAL_MODEL = "voyage-multimodal-3"

const jpegQuality = 90

// embeddingService handles generating embeddings for frames
type embeddingService struct {
	model string
}

// NewEmbeddingService creates a new embedding service
func NewEmbeddingService(apiKey string) *embeddingService {
	once.Do(func() {
		client = voyageai.NewClient(&voyageai.VoyageClientOpts{
			Key: apiKey,
		})
	})

	return &embeddingService{
		model: VOYAGE_MULTIMODAL_MODEL,
	}
}

// SetModel sets the model version for the embedding service
func (es *embeddingService) SetModel(model string) {
	es.model = model
}

// Model returns the model version in use
func (es *embeddingService) Model() string {
	return es.model
}

// EmbedImage generates an embedding for a single frame using Voyage AI
func (es *embeddingService) EmbedImage(ctx context.Context, img image.Image) ([]float32, error) {
	dataURL, err := encodeDataURL(img)
	if err != nil {
		return nil, fmt.Errorf("could not encode frame: %w", err)
	}

	embeddings, err := client.MultimodalEmbed(
		[]voyageai.MultimodalContent{
			{
				Content: []voyageai.MultimodalInput{
					{
						Type:        "image_base64",
						ImageBase64: typedString(voyageai.MultimodalInput{}.ImageBase64, dataURL),
					},
				},
			},
		},
		es.model,
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("could not get embedding: %w", err)
	}
	if len(embeddings.Data) == 0 {
		return nil, fmt.Errorf("embedding response contained no data")
	}

	return embeddings.Data[0].Embedding, nil
}

// typedString converts s to T, a string type that cannot be named here
// because the voyageai package does not export it; T is inferred from the
// zero value of the target field.
func typedString[T ~string](_ T, s string) T { return T(s) }

// encodeDataURL encodes a frame as the base64 JPEG data URL the API expects.
func encodeDataURL(img image.Image) (string, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return "", err
	}
	return "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}
