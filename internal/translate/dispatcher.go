package translate

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/mickekring/live-subtitles/internal/observability"
)

// Job carries one translation request for a confirmed segment
type Job struct {
	SegmentID      string
	Text           string
	TargetLanguage string
	Model          string
}

// Result pairs a translation (or its failure) with the originating segment
type Result struct {
	SegmentID   string
	Translation string
	Err         error
}

// Dispatcher runs translation jobs as fire-and-forget background work. A slow
// or failed translation never blocks new transcription output; a failure
// leaves the result slot empty and is not retried.
type Dispatcher struct {
	client *Client
	logger zerolog.Logger
}

// NewDispatcher creates a translation dispatcher
func NewDispatcher(client *Client, logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		client: client,
		logger: logger.With().Str("component", "translate_dispatcher").Logger(),
	}
}

// Dispatch starts the job in the background and calls deliver with the result
// or failure. deliver runs on the job's goroutine; it must be safe to call
// from there. Cancelling ctx abandons the job.
func (d *Dispatcher) Dispatch(ctx context.Context, job Job, metrics *observability.SessionMetrics, deliver func(Result)) {
	go func() {
		if metrics != nil {
			metrics.RecordTranslateStart()
		}

		translation, err := d.client.Translate(ctx, job.Text, job.TargetLanguage, job.Model)
		if metrics != nil {
			metrics.RecordTranslateEnd(err == nil)
		}

		if ctx.Err() != nil {
			// Session is gone; nobody is listening for the result
			return
		}

		if err != nil {
			d.logger.Warn().Err(err).Str("segment_id", job.SegmentID).Msg("Translation failed")
			if metrics != nil {
				metrics.RecordError("translation_error", "translate")
			}
		}

		deliver(Result{SegmentID: job.SegmentID, Translation: translation, Err: err})
	}()
}
