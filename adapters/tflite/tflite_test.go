//go:build !no_tflite && !no_cgo

package tflite_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	tfliteadapter "github.com/kestrelvision/teachcam/adapters/tflite"
	"github.com/kestrelvision/teachcam/extractor"
)

func TestNameEncodesModelParameters(t *testing.T) {
	ext := tfliteadapter.New(tfliteadapter.Config{})
	assert.Equal(t, "mobilenet_v1_0.25_224", ext.Name())

	ext = tfliteadapter.New(tfliteadapter.Config{Version: "v2", WidthMultiplier: 1.0})
	assert.Equal(t, "mobilenet_v2_1.00_224", ext.Name())
}

func TestLoadRequiresModelLocation(t *testing.T) {
	ext := tfliteadapter.New(tfliteadapter.Config{})

	err := ext.Load(context.Background())
	require.Error(t, err)
	var loadErr *extractor.LoadError
	assert.ErrorAs(t, err, &loadErr)
}

func TestLoadReportsMissingFile(t *testing.T) {
	ext := tfliteadapter.New(tfliteadapter.Config{ModelPath: "/nonexistent/model.tflite"})

	err := ext.Load(context.Background())
	require.Error(t, err)
	var loadErr *extractor.LoadError
	require.ErrorAs(t, err, &loadErr)
	assert.Equal(t, ext.Name(), loadErr.Model)
}

func TestEmbedRejectedBeforeLoad(t *testing.T) {
	ext := tfliteadapter.New(tfliteadapter.Config{ModelPath: "/nonexistent/model.tflite"})

	_, err := ext.Embed(context.Background(), nil)
	assert.Error(t, err)
}
