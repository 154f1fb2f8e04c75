// Package subtitle reconciles provisional and confirmed transcripts into a
// session's bounded output history and suppresses hallucinated repeats.
package subtitle

import (
	"time"

	"github.com/google/uuid"
)

// Kind distinguishes provisional from confirmed transcripts
type Kind string

const (
	KindInstant Kind = "instant"
	KindFinal   Kind = "final"
)

// Segment is one transcript span in a session's output stream
type Segment struct {
	ID    string  `json:"id"`
	Text  string  `json:"text"`
	Start float64 `json:"start"` // Offset within the source chunk, seconds
	End   float64 `json:"end"`

	Kind Kind      `json:"-"`
	At   time.Time `json:"-"` // Arrival time, drives reconciliation
}

// NewSegment creates a segment with a fresh id and the given arrival time
func NewSegment(kind Kind, text string, start, end float64, at time.Time) Segment {
	return Segment{
		ID:    uuid.New().String(),
		Text:  text,
		Start: start,
		End:   end,
		Kind:  kind,
		At:    at,
	}
}
