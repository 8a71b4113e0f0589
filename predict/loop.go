// Package predict runs the live classification loop: on a fixed period it
// captures a frame, embeds it and classifies the embedding, emitting one
// probability pair per cycle.
package predict

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/edaniels/golog"

	"github.com/kestrelvision/teachcam/capture"
)

// DefaultPeriod is the live classification cadence.
const DefaultPeriod = 300 * time.Millisecond

var (
	// ErrAlreadyRunning is returned by Start on a running loop.
	ErrAlreadyRunning = errors.New("predict: loop already running")
	// ErrNotRunning is returned by Stop on an idle loop.
	ErrNotRunning = errors.New("predict: loop not running")
)

// Embedder is the slice of the extractor capability the loop needs.
type Embedder interface {
	Embed(ctx context.Context, img image.Image) ([]float32, error)
}

// Classifier maps a feature vector to a two-way probability distribution.
type Classifier interface {
	Predict(ctx context.Context, vector []float32) ([]float32, error)
}

// Prediction is one per-cycle output: two probabilities summing to 1. It is
// emitted and forgotten, never retained.
type Prediction struct {
	A float32
	B float32
}

// Config wires the loop's collaborators.
type Config struct {
	Source     capture.FrameSource
	Embedder   Embedder
	Classifier Classifier

	// Period between cycle starts. Zero means DefaultPeriod.
	Period time.Duration

	// OnFrame, if set, receives each captured frame before embedding (the
	// preview hook). It runs on the cycle goroutine and should be fast.
	OnFrame func(image.Image)

	// Clock drives the ticker; tests inject a mock. Zero means wall clock.
	Clock clock.Clock

	Logger golog.Logger
}

func (c *Config) applyDefaults() {
	if c.Period == 0 {
		c.Period = DefaultPeriod
	}
	if c.Clock == nil {
		c.Clock = clock.New()
	}
	if c.Logger == nil {
		c.Logger = golog.NewLogger("predict")
	}
}

// Loop is the live predictor state machine: Idle until Start, Running until
// Stop. Cycles are single-flight: the loop goroutine executes one cycle at a
// time, so a tick that fires mid-cycle is dropped instead of overlapping.
type Loop struct {
	conf Config

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewLoop builds an idle loop.
func NewLoop(conf Config) (*Loop, error) {
	if conf.Source == nil {
		return nil, errors.New("predict: config needs a frame source")
	}
	if conf.Embedder == nil {
		return nil, errors.New("predict: config needs an embedder")
	}
	if conf.Classifier == nil {
		return nil, errors.New("predict: config needs a classifier")
	}
	conf.applyDefaults()
	return &Loop{conf: conf}, nil
}

// Start transitions Idle -> Running and returns the predictions channel.
// The channel closes once the loop has fully stopped (after Stop or context
// cancellation), following any in-flight cycle.
func (l *Loop) Start(ctx context.Context) (<-chan Prediction, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.running {
		return nil, ErrAlreadyRunning
	}

	runCtx, cancel := context.WithCancel(ctx)
	out := make(chan Prediction, 1)
	done := make(chan struct{})
	l.running = true
	l.cancel = cancel
	l.done = done

	go l.run(runCtx, out, done)
	return out, nil
}

// Stop transitions Running -> Idle. Future cycles are suppressed; an
// in-flight cycle completes and may still emit one prediction. Stop returns
// after the loop goroutine has exited.
func (l *Loop) Stop() error {
	l.mu.Lock()
	if !l.running {
		l.mu.Unlock()
		return ErrNotRunning
	}
	cancel, done := l.cancel, l.done
	l.mu.Unlock()

	cancel()
	<-done

	l.mu.Lock()
	l.running = false
	l.mu.Unlock()
	return nil
}

// Running reports whether the loop is in the Running state.
func (l *Loop) Running() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.running
}

func (l *Loop) run(ctx context.Context, out chan<- Prediction, done chan struct{}) {
	defer close(done)
	defer close(out)

	ticker := l.conf.Clock.Ticker(l.conf.Period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		// Cancellation is coarse: it only suppresses future firings, so the
		// cycle itself runs detached from the loop context.
		if pred, err := l.cycle(context.WithoutCancel(ctx)); err != nil {
			l.conf.Logger.Debugw("prediction cycle skipped", "error", err)
		} else {
			select {
			case out <- pred:
			default:
				// Consumer is behind; this pair is stale next period anyway.
			}
		}
	}
}

// cycle performs one capture -> preview -> embed -> classify pass.
func (l *Loop) cycle(ctx context.Context) (Prediction, error) {
	frame, err := l.conf.Source.CaptureFrame(ctx)
	if err != nil {
		return Prediction{}, fmt.Errorf("capturing frame: %w", err)
	}
	if l.conf.OnFrame != nil {
		l.conf.OnFrame(frame)
	}

	vector, err := l.conf.Embedder.Embed(ctx, frame)
	if err != nil {
		return Prediction{}, fmt.Errorf("embedding frame: %w", err)
	}

	probs, err := l.conf.Classifier.Predict(ctx, vector)
	if err != nil {
		return Prediction{}, fmt.Errorf("classifying frame: %w", err)
	}
	if len(probs) != 2 {
		return Prediction{}, fmt.Errorf("classifier returned %d probabilities, want 2", len(probs))
	}
	return Prediction{A: probs[0], B: probs[1]}, nil
}
