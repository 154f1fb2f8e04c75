package subtitle

import "time"

// History is a session's bounded, ordered output history (most recent last).
// A final segment supersedes recent instant text: when a final arrives, any
// instant segment that arrived within the reconcile window is removed before
// the final is appended. Instant text older than the window has already aged
// out on screen and is left alone.
//
// Owned by one session goroutine; not safe for concurrent use.
type History struct {
	capacity int
	window   time.Duration
	segments []Segment
}

// NewHistory creates a history with the given capacity and reconcile window
func NewHistory(capacity int, window time.Duration) *History {
	return &History{
		capacity: capacity,
		window:   window,
		segments: make([]Segment, 0, capacity),
	}
}

// AddInstant appends a provisional segment, evicting the oldest entry when
// the history is full.
func (h *History) AddInstant(seg Segment) {
	seg.Kind = KindInstant
	h.append(seg)
}

// AddFinal removes instant segments that arrived within the reconcile window
// of now, then appends the final segment. Returns the ids of the removed
// instant segments so the caller can retract them downstream.
func (h *History) AddFinal(seg Segment, now time.Time) []string {
	var removed []string
	kept := h.segments[:0]
	for _, s := range h.segments {
		if s.Kind == KindInstant && now.Sub(s.At) <= h.window {
			removed = append(removed, s.ID)
			continue
		}
		kept = append(kept, s)
	}
	h.segments = kept

	seg.Kind = KindFinal
	h.append(seg)
	return removed
}

func (h *History) append(seg Segment) {
	h.segments = append(h.segments, seg)
	for len(h.segments) > h.capacity {
		h.segments = h.segments[1:]
	}
}

// Segments returns a copy of the current history, oldest first
func (h *History) Segments() []Segment {
	out := make([]Segment, len(h.segments))
	copy(out, h.segments)
	return out
}

// Len returns the number of segments held
func (h *History) Len() int {
	return len(h.segments)
}

// Capacity returns the configured bound
func (h *History) Capacity() int {
	return h.capacity
}

// Clear discards all history. Called on session teardown.
func (h *History) Clear() {
	h.segments = h.segments[:0]
}
