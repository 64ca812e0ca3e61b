package progress

import "time"

// Stage identifies which generation stage is active.
type Stage string

const (
	StageValidate   Stage = "validate"
	StageSynthesize Stage = "synthesize"
	StageEncode     Stage = "encode"
	StageSave       Stage = "save"
	StageComplete   Stage = "complete"
)

// Event carries progress information from the generator to the renderer.
type Event struct {
	Stage   Stage
	Message string
	Percent float64 // 0.0–1.0
	Elapsed time.Duration
	Error   error
	// OutputFile is set on StageComplete when the audio was written to disk.
	OutputFile string
	// Duration is the audio length (e.g. "0:07"), set on StageComplete.
	Duration string
	// SizeKB is the container size, set on StageComplete.
	SizeKB float64
	// Cached is set on StageComplete when the audio came from the cache.
	Cached bool
}

// Callback is the function signature for progress event handlers.
type Callback func(Event)

// NopCallback is a no-op progress callback for tests and silent mode.
func NopCallback(Event) {}

// NewEvent creates an Event with common fields populated.
func NewEvent(stage Stage, msg string, pct float64, start time.Time) Event {
	return Event{
		Stage:   stage,
		Message: msg,
		Percent: pct,
		Elapsed: time.Since(start),
	}
}
