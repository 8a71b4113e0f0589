// Package teachcam wires a frame source, a frozen embedding extractor, a
// sample store and a trainable classifier head into one interactive teaching
// session: capture labeled snapshots, train, then classify the live feed.
package teachcam

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"

	"github.com/edaniels/golog"

	"github.com/kestrelvision/teachcam/capture"
	"github.com/kestrelvision/teachcam/extractor"
	"github.com/kestrelvision/teachcam/predict"
	"github.com/kestrelvision/teachcam/samples"
	"github.com/kestrelvision/teachcam/train"
)

// Session owns all mutable teaching state: the sample buckets, the trained
// classifier reference and the live loop. Construction and teardown are
// explicit; nothing survives the process.
type Session struct {
	conf    Config
	logger  golog.Logger
	store   *samples.Store
	trainer *train.Trainer

	mu       sync.Mutex
	loaded   bool
	loading  bool
	training bool
	network  *train.Network
	loop     *predict.Loop
	closed   bool

	closeOnce sync.Once
}

// NewSession builds a session from conf. The extractor is not loaded yet;
// call LoadExtractor before capturing or training.
func NewSession(conf Config) (*Session, error) {
	if conf.Source == nil {
		return nil, errors.New("teachcam: config needs a frame source")
	}
	if conf.Extractor == nil {
		return nil, errors.New("teachcam: config needs an embedding extractor")
	}
	conf.applyDefaults()

	return &Session{
		conf:    conf,
		logger:  conf.Logger,
		store:   samples.NewStore(),
		trainer: train.NewTrainer(conf.Train),
	}, nil
}

// LoadExtractor performs the one-time model initialization. It may be slow
// (model weights can come over the network). A failure is fatal to the
// session: there is no retry, the caller starts over. Loading twice is a
// no-op; loading concurrently is rejected.
func (s *Session) LoadExtractor(ctx context.Context) error {
	s.mu.Lock()
	switch {
	case s.closed:
		s.mu.Unlock()
		return ErrSessionClosed
	case s.loaded:
		s.mu.Unlock()
		return nil
	case s.loading:
		s.mu.Unlock()
		return ErrLoadInProgress
	}
	s.loading = true
	s.mu.Unlock()

	err := s.conf.Extractor.Load(ctx)

	s.mu.Lock()
	s.loading = false
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("teachcam: loading extractor: %w", err)
	}
	s.loaded = true
	s.mu.Unlock()

	s.logger.Infow("embedding extractor ready",
		"model", s.conf.Extractor.Name(),
		"dimensions", s.conf.Extractor.Dimensions(),
	)
	return nil
}

// Capture grabs the current frame, embeds it and appends the vector to the
// bucket for class. Rejected until LoadExtractor succeeds.
func (s *Session) Capture(ctx context.Context, class samples.Class) (samples.Sample, error) {
	if err := s.requireLoaded(); err != nil {
		return samples.Sample{}, err
	}

	frame, err := s.conf.Source.CaptureFrame(ctx)
	if err != nil {
		return samples.Sample{}, fmt.Errorf("teachcam: capturing frame: %w", err)
	}

	vector, err := s.conf.Extractor.Embed(ctx, capture.Normalize(frame))
	if err != nil {
		return samples.Sample{}, fmt.Errorf("teachcam: embedding frame: %w", err)
	}

	sample := s.store.Add(class, vector)
	nA, nB := s.store.Counts()
	s.logger.Debugw("captured sample", "class", class.String(), "id", sample.ID, "countA", nA, "countB", nB)
	return sample, nil
}

// Counts returns the per-class sample counts.
func (s *Session) Counts() (nA, nB int) {
	return s.store.Counts()
}

// Train fits a fresh classifier head on the accumulated samples. It fails
// with *train.InsufficientDataError below train.MinTotalSamples, leaving all
// state (including any previously trained classifier) untouched. On success
// the classifier reference is swapped wholesale. One training at a time.
func (s *Session) Train(ctx context.Context) error {
	s.mu.Lock()
	switch {
	case s.closed:
		s.mu.Unlock()
		return ErrSessionClosed
	case !s.loaded:
		s.mu.Unlock()
		return ErrExtractorNotReady
	case s.training:
		s.mu.Unlock()
		return ErrTrainingInProgress
	}
	s.training = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.training = false
		s.mu.Unlock()
	}()

	classA, classB := s.store.Vectors()
	s.logger.Infow("training classifier", "samplesA", len(classA), "samplesB", len(classB))

	network, err := s.trainer.Train(ctx, classA, classB, s.emitProgress)
	if err != nil {
		return fmt.Errorf("teachcam: training: %w", err)
	}

	s.mu.Lock()
	old := s.network
	s.network = network
	s.mu.Unlock()
	if old != nil {
		old.Close()
	}

	s.logger.Infow("classifier trained", "dimensions", network.Dimensions())
	return nil
}

func (s *Session) emitProgress(update train.EpochUpdate) {
	s.logger.Debugw("training epoch",
		"epoch", update.Epoch, "loss", update.Loss, "accuracy", update.Accuracy)
	if s.conf.OnProgress != nil {
		s.conf.OnProgress(update)
	}
}

// StartLive starts the periodic classification loop over the live feed and
// returns its predictions channel. Rejected before a successful Train, and
// while a loop is already running.
func (s *Session) StartLive(ctx context.Context) (<-chan predict.Prediction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case s.closed:
		return nil, ErrSessionClosed
	case s.network == nil:
		return nil, ErrNotTrained
	case s.loop != nil && s.loop.Running():
		return nil, predict.ErrAlreadyRunning
	}

	loop, err := predict.NewLoop(predict.Config{
		Source:     s.conf.Source,
		Embedder:   normalizingEmbedder{s.conf.Extractor},
		Classifier: s.network,
		Period:     s.conf.Period,
		OnFrame:    s.conf.OnFrame,
		Clock:      s.conf.Clock,
		Logger:     s.logger,
	})
	if err != nil {
		return nil, err
	}

	out, err := loop.Start(ctx)
	if err != nil {
		return nil, err
	}
	s.loop = loop
	return out, nil
}

// StopLive halts the live loop. Any in-flight cycle completes first; no new
// cycle begins afterwards.
func (s *Session) StopLive() error {
	s.mu.Lock()
	loop := s.loop
	s.mu.Unlock()

	if loop == nil {
		return predict.ErrNotRunning
	}
	return loop.Stop()
}

// Metrics snapshots the session state.
func (s *Session) Metrics() Metrics {
	nA, nB := s.store.Counts()

	s.mu.Lock()
	defer s.mu.Unlock()
	return Metrics{
		SamplesA:        nA,
		SamplesB:        nB,
		ExtractorLoaded: s.loaded,
		Trained:         s.network != nil,
		LiveRunning:     s.loop != nil && s.loop.Running(),
	}
}

// Close tears the session down: stops the live loop, releases the trained
// network, the extractor and the frame source. Safe to call more than once.
func (s *Session) Close() error {
	var errs []error
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		loop := s.loop
		network := s.network
		s.network = nil
		s.mu.Unlock()

		if loop != nil && loop.Running() {
			if err := loop.Stop(); err != nil && !errors.Is(err, predict.ErrNotRunning) {
				errs = append(errs, err)
			}
		}
		if network != nil {
			if err := network.Close(); err != nil {
				errs = append(errs, err)
			}
		}
		if err := s.conf.Extractor.Close(); err != nil {
			errs = append(errs, err)
		}
		if err := s.conf.Source.Close(); err != nil {
			errs = append(errs, err)
		}
	})
	return errors.Join(errs...)
}

func (s *Session) requireLoaded() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	if !s.loaded {
		return ErrExtractorNotReady
	}
	return nil
}

// normalizingEmbedder scales live frames to the model input size before
// embedding, matching what Capture does for training samples.
type normalizingEmbedder struct {
	inner extractor.Extractor
}

func (n normalizingEmbedder) Embed(ctx context.Context, img image.Image) ([]float32, error) {
	return n.inner.Embed(ctx, capture.Normalize(img))
}
