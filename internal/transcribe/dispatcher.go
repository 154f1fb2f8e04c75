// Package transcribe routes ready audio chunks to the recognition engine.
package transcribe

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/mickekring/live-subtitles/internal/engine"
	"github.com/mickekring/live-subtitles/internal/model"
	"github.com/mickekring/live-subtitles/internal/subtitle"
)

// ErrModelNotReady is returned when a chunk arrives before the session's
// model is ready. The chunk is dropped, never queued: backlogged audio would
// desynchronize subtitle timing.
var ErrModelNotReady = errors.New("model not ready")

// Dispatcher feeds chunks to the recognition engine behind the model
// lifecycle manager's readiness gate.
type Dispatcher struct {
	models   *model.Manager
	language string
	logger   zerolog.Logger
}

// NewDispatcher creates a transcription dispatcher
func NewDispatcher(models *model.Manager, language string, logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		models:   models,
		language: language,
		logger:   logger.With().Str("component", "transcribe").Logger(),
	}
}

// Dispatch recognizes one chunk with the named model and returns zero or more
// segments of the given kind. A silent chunk yields none. Concurrent dispatch
// against the same loaded model is serialized by the lifecycle manager.
func (d *Dispatcher) Dispatch(ctx context.Context, modelName string, samples []float32, vadLevel int, kind subtitle.Kind) ([]subtitle.Segment, error) {
	eng, release, ok := d.models.Acquire(modelName)
	if !ok {
		return nil, ErrModelNotReady
	}
	defer release()

	opts := engine.Options{
		Language: d.language,
		BeamSize: beamSize(vadLevel),
	}

	raw, err := eng.Transcribe(ctx, samples, opts)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	segments := make([]subtitle.Segment, 0, len(raw))
	for _, s := range raw {
		text := strings.TrimSpace(s.Text)
		if text == "" {
			continue
		}
		segments = append(segments, subtitle.NewSegment(kind, text, s.Start, s.End, now))
	}
	return segments, nil
}

// beamSize couples decode effort to VAD sensitivity: higher sensitivity means
// shorter chunks and a narrower beam for lower latency.
func beamSize(vadLevel int) int {
	beam := 6 - vadLevel
	if beam < 1 {
		beam = 1
	}
	return beam
}
