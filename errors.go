package teachcam

import "errors"

var (
	// ErrExtractorNotReady guards every operation that needs the embedding
	// model: capture and train are rejected until LoadExtractor succeeds.
	ErrExtractorNotReady = errors.New("teachcam: embedding extractor not loaded")

	// ErrLoadInProgress rejects a second LoadExtractor while one is running.
	ErrLoadInProgress = errors.New("teachcam: extractor load already in progress")

	// ErrTrainingInProgress rejects a Train while another is running.
	ErrTrainingInProgress = errors.New("teachcam: training already in progress")

	// ErrNotTrained rejects StartLive before a successful Train.
	ErrNotTrained = errors.New("teachcam: no trained classifier")

	// ErrSessionClosed rejects any operation after Close.
	ErrSessionClosed = errors.New("teachcam: session closed")
)
