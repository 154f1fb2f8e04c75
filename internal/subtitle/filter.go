package subtitle

import (
	"strings"
	"time"
)

// DuplicateFilter suppresses a final transcript that repeats the previous one
// within a short window. Recognition engines sometimes re-emit the same text
// for overlapping chunks; the repeat carries no new information.
//
// The filter applies to final segments only. Owned by one session goroutine.
type DuplicateFilter struct {
	window   time.Duration
	lastText string
	lastAt   time.Time
}

// NewDuplicateFilter creates a filter with the given repeat window
func NewDuplicateFilter(window time.Duration) *DuplicateFilter {
	return &DuplicateFilter{window: window}
}

// Accept reports whether the final text should be emitted. Empty text is
// always rejected. A text whose normalized form equals the previous accepted
// final within the window is rejected; otherwise the filter state is updated
// and the text accepted.
func (f *DuplicateFilter) Accept(text string, now time.Time) bool {
	norm := Normalize(text)
	if norm == "" {
		return false
	}
	if norm == f.lastText && now.Sub(f.lastAt) < f.window {
		return false
	}
	f.lastText = norm
	f.lastAt = now
	return true
}

// Reset clears the filter state
func (f *DuplicateFilter) Reset() {
	f.lastText = ""
	f.lastAt = time.Time{}
}

// Normalize lowercases text and collapses runs of whitespace, so that
// comparison ignores case and spacing artifacts.
func Normalize(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}
