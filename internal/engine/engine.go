// Package engine defines the boundary to the speech recognition engine.
// The core never talks to a recognizer directly; it goes through Engine so
// that native backends (whisper.cpp, ONNX runtimes) and test stubs are
// interchangeable.
package engine

import "context"

// Segment is one recognized span of speech within a chunk
type Segment struct {
	Text  string  `json:"text"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Options tunes a single recognition pass
type Options struct {
	// Language is the transcription language code, e.g. "sv"
	Language string

	// BeamSize controls the decode beam. The dispatcher derives it from the
	// session's VAD level (6 - level, floor 1): higher sensitivity trades
	// accuracy for latency.
	BeamSize int
}

// Engine runs speech recognition over 16 kHz mono float samples.
//
// Implementations are assumed synchronous and one-at-a-time per instance;
// callers serialize concurrent dispatch against the same instance.
type Engine interface {
	// Transcribe recognizes the given samples. A chunk of silence yields an
	// empty slice, not an error.
	Transcribe(ctx context.Context, samples []float32, opts Options) ([]Segment, error)

	// Close releases the underlying model resources
	Close() error
}

// Loader opens an engine over locally present model artifacts. The model
// lifecycle manager calls it once per load operation.
type Loader func(ctx context.Context, modelPath string) (Engine, error)
