package engine

import (
	"context"
	"sync"
)

// Stub is an Engine for tests and development. It returns canned segments,
// or delegates to TranscribeFunc when set.
type Stub struct {
	mu sync.Mutex

	// TranscribeFunc, when non-nil, handles every Transcribe call
	TranscribeFunc func(ctx context.Context, samples []float32, opts Options) ([]Segment, error)

	// Segments is returned for every call when TranscribeFunc is nil
	Segments []Segment

	calls  int
	closed bool
}

var _ Engine = (*Stub)(nil)

// NewStub creates a stub engine returning the given segments on every call
func NewStub(segments ...Segment) *Stub {
	return &Stub{Segments: segments}
}

func (s *Stub) Transcribe(ctx context.Context, samples []float32, opts Options) ([]Segment, error) {
	s.mu.Lock()
	s.calls++
	fn := s.TranscribeFunc
	canned := s.Segments
	s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if fn != nil {
		return fn(ctx, samples, opts)
	}

	out := make([]Segment, len(canned))
	copy(out, canned)
	return out, nil
}

func (s *Stub) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Calls reports how many Transcribe calls were made
func (s *Stub) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// Closed reports whether Close was called
func (s *Stub) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// StubLoader returns a Loader producing fresh stubs. Useful to wire the model
// lifecycle manager in tests and development builds without a native backend.
func StubLoader(segments ...Segment) Loader {
	return func(ctx context.Context, modelPath string) (Engine, error) {
		return NewStub(segments...), nil
	}
}
