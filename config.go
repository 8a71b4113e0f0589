package teachcam

import (
	"image"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/edaniels/golog"

	"github.com/kestrelvision/teachcam/capture"
	"github.com/kestrelvision/teachcam/extractor"
	"github.com/kestrelvision/teachcam/predict"
	"github.com/kestrelvision/teachcam/train"
)

// Config holds the collaborators and tunables for a Session. Source and
// Extractor are required; everything else has defaults.
type Config struct {
	// Source provides live frames.
	Source capture.FrameSource

	// Extractor is the frozen pretrained embedding model.
	Extractor extractor.Extractor

	// Train holds the classifier head hyperparameters. Zero fields use the
	// trainer defaults (128 hidden units, dropout 0.25, 25 epochs, Adam at
	// 1e-4).
	Train train.Config

	// Period is the live prediction cadence. Zero means predict.DefaultPeriod.
	Period time.Duration

	// OnProgress, if set, receives one update per training epoch.
	OnProgress train.EpochFunc

	// OnFrame, if set, receives each live-loop frame before embedding (the
	// preview hook).
	OnFrame func(image.Image)

	// Clock drives the live loop ticker; tests inject a mock.
	Clock clock.Clock

	Logger golog.Logger
}

func (c *Config) applyDefaults() {
	if c.Period == 0 {
		c.Period = predict.DefaultPeriod
	}
	if c.Clock == nil {
		c.Clock = clock.New()
	}
	if c.Logger == nil {
		c.Logger = golog.NewLogger("teachcam")
	}
}
