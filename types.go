package teachcam

// Metrics is a point-in-time snapshot of the session state, for status
// displays.
type Metrics struct {
	// SamplesA and SamplesB are the per-class capture counts.
	SamplesA int
	SamplesB int

	// ExtractorLoaded reports whether LoadExtractor has completed.
	ExtractorLoaded bool

	// Trained reports whether a usable classifier exists.
	Trained bool

	// LiveRunning reports whether the live prediction loop is running.
	LiveRunning bool
}
