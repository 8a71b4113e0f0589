package adapters_test

import (
	"context"
	"os"
	"testing"

	"github.com/kestrelvision/teachcam/adapters"
)

func TestNewVoyageExtractorAdapter_WithAPIKey(t *testing.T) {
	apiKey := "test-api-key"
	adapter, err := adapters.NewVoyageExtractorAdapter(&apiKey)

	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if adapter == nil {
		t.Fatal("Expected non-nil adapter")
	}

	if adapter.Name() != "voyage/voyage-multimodal-3" {
		t.Errorf("Unexpected model name: %s", adapter.Name())
	}
}

func TestNewVoyageExtractorAdapter_FromEnv(t *testing.T) {
	t.Setenv("VOYAGEAI_API_KEY", "env-api-key")

	adapter, err := adapters.NewVoyageExtractorAdapter(nil)

	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if adapter == nil {
		t.Fatal("Expected non-nil adapter")
	}
}

func TestNewVoyageExtractorAdapter_MissingKey(t *testing.T) {
	// Ensure env var is not set
	os.Unsetenv("VOYAGEAI_API_KEY")

	_, err := adapters.NewVoyageExtractorAdapter(nil)

	if err == nil {
		t.Error("Expected error when API key is missing, got nil")
	}
}

func TestVoyageExtractorEmbedBeforeLoad(t *testing.T) {
	apiKey := "test-api-key"
	adapter, err := adapters.NewVoyageExtractorAdapter(&apiKey)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if _, err := adapter.Embed(context.Background(), nil); err == nil {
		t.Error("Expected error embedding before Load, got nil")
	}

	if dims := adapter.Dimensions(); dims != 0 {
		t.Errorf("Expected zero dimensions before Load, got %d", dims)
	}
}
