package model

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/mickekring/live-subtitles/internal/engine"
	"github.com/mickekring/live-subtitles/internal/observability"
)

// Status is a model's lifecycle state
type Status string

const (
	StatusUnloaded    Status = "unloaded"
	StatusChecking    Status = "checking"
	StatusDownloading Status = "downloading"
	StatusLoading     Status = "loading"
	StatusReady       Status = "ready"
	StatusFailed      Status = "failed"
)

var (
	// ErrUnknownModel is returned for names absent from the catalog
	ErrUnknownModel = errors.New("unknown model")

	// ErrLoadTimeout is returned when a download/load exceeds the wall-clock ceiling
	ErrLoadTimeout = errors.New("model load timed out")
)

// Progress is a download progress snapshot
type Progress struct {
	DownloadedBytes int64 `json:"downloaded_bytes"`
	TotalBytes      int64 `json:"total_bytes"`
	Percentage      int   `json:"percentage"`
}

// Snapshot is a read-only view of one model's state
type Snapshot struct {
	Name     string   `json:"model"`
	Status   Status   `json:"status"`
	Progress Progress `json:"progress"`
	Refs     int      `json:"refs"`
	Error    string   `json:"error,omitempty"`
}

// Manager is the process-wide model registry. It owns every model's lifecycle
// state and guarantees at most one in-flight download/load per model name;
// concurrent requesters share the outcome of the in-flight operation.
type Manager struct {
	catalog     *Catalog
	cacheDir    string
	loader      engine.Loader
	downloader  Downloader
	loadTimeout time.Duration
	logger      zerolog.Logger

	mu      sync.Mutex
	entries map[string]*entry
}

type entry struct {
	name     string
	status   Status
	progress Progress
	refs     int
	err      error
	eng      engine.Engine

	// done is non-nil exactly while an operation is in flight and is closed
	// on completion; waiters block on it.
	done chan struct{}

	// engineMu serializes recognition dispatch against eng, which is assumed
	// one-at-a-time per instance.
	engineMu sync.Mutex
}

// NewManager creates the model lifecycle manager
func NewManager(catalog *Catalog, cacheDir string, loader engine.Loader, downloader Downloader, loadTimeout time.Duration, logger zerolog.Logger) *Manager {
	return &Manager{
		catalog:     catalog,
		cacheDir:    cacheDir,
		loader:      loader,
		downloader:  downloader,
		loadTimeout: loadTimeout,
		logger:      logger.With().Str("component", "model_manager").Logger(),
		entries:     make(map[string]*entry),
	}
}

// CheckExists reports whether the model's artifacts are present locally.
// Pure query; no state change.
func (m *Manager) CheckExists(name string) (bool, Info, error) {
	info, ok := m.catalog.Lookup(name)
	if !ok {
		return false, Info{}, fmt.Errorf("%w: %s", ErrUnknownModel, name)
	}
	st, err := os.Stat(ArtifactPath(m.cacheDir, info))
	exists := err == nil && st.Size() > 0
	return exists, info, nil
}

// RequestLoad starts loading the model if nothing is in flight and returns the
// resulting status immediately. Idempotent: a ready model stays ready, an
// in-flight operation is joined, a failed model is retried.
func (m *Manager) RequestLoad(name string) (Status, error) {
	_, e, err := m.begin(name)
	if err != nil {
		return StatusUnloaded, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	return e.status, nil
}

// AwaitReady starts loading the model if needed and blocks until it is ready,
// the operation fails, or ctx is done. All concurrent callers for the same
// name share a single download/load.
func (m *Manager) AwaitReady(ctx context.Context, name string) error {
	done, e, err := m.begin(name)
	if err != nil {
		return err
	}
	if done == nil {
		// Already ready
		return nil
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	return e.err
}

// begin ensures an operation is in flight (or the model is ready) and returns
// the channel to wait on. A nil channel means the model is already ready.
func (m *Manager) begin(name string) (chan struct{}, *entry, error) {
	info, ok := m.catalog.Lookup(name)
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", ErrUnknownModel, name)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	e := m.entry(name)
	switch {
	case e.status == StatusReady:
		return nil, e, nil
	case e.done != nil:
		// Join the in-flight operation
		return e.done, e, nil
	}

	// unloaded or failed: start a fresh single-flight operation
	e.status = StatusChecking
	e.err = nil
	e.progress = Progress{}
	e.done = make(chan struct{})
	go m.run(e, info)
	return e.done, e, nil
}

// entry returns the lazily-created registry entry for name. Caller holds m.mu.
func (m *Manager) entry(name string) *entry {
	e, ok := m.entries[name]
	if !ok {
		e = &entry{name: name, status: StatusUnloaded}
		m.entries[name] = e
	}
	return e
}

// run drives one download/load operation to a terminal state
func (m *Manager) run(e *entry, info Info) {
	ctx, cancel := context.WithTimeout(context.Background(), m.loadTimeout)
	defer cancel()

	start := time.Now()
	err := m.download(ctx, e, info)
	if err == nil {
		err = m.load(ctx, e, info)
	}

	m.mu.Lock()
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("%w: %s after %s", ErrLoadTimeout, info.Name, m.loadTimeout)
		}
		e.status = StatusFailed
		e.err = err
	} else {
		e.status = StatusReady
		e.err = nil
	}
	close(e.done)
	e.done = nil
	m.mu.Unlock()

	observability.RecordModelLoad(info.Name, err == nil, time.Since(start))
	if err != nil {
		m.logger.Error().Err(err).Str("model", info.Name).Msg("Model load failed")
	} else {
		m.logger.Info().Str("model", info.Name).Dur("elapsed", time.Since(start)).Msg("Model ready")
	}
}

func (m *Manager) download(ctx context.Context, e *entry, info Info) error {
	exists, _, err := m.CheckExists(info.Name)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	m.setStatus(e, StatusDownloading)
	m.logger.Info().Str("model", info.Name).Str("size", info.Size).Msg("Downloading model")

	var lastDone int64
	_, err = m.downloader.Download(ctx, info, m.cacheDir, func(done, total int64) {
		observability.RecordModelDownloadBytes(info.Name, done-lastDone)
		lastDone = done

		pct := 0
		if total > 0 {
			pct = int(done * 100 / total)
			if pct > 100 {
				pct = 100
			}
		}
		m.mu.Lock()
		e.progress = Progress{DownloadedBytes: done, TotalBytes: total, Percentage: pct}
		m.mu.Unlock()
	})
	return err
}

func (m *Manager) load(ctx context.Context, e *entry, info Info) error {
	m.setStatus(e, StatusLoading)

	eng, err := m.loader(ctx, ArtifactPath(m.cacheDir, info))
	if err != nil {
		return fmt.Errorf("load model %s: %w", info.Name, err)
	}

	m.mu.Lock()
	e.eng = eng
	m.mu.Unlock()
	return nil
}

func (m *Manager) setStatus(e *entry, s Status) {
	m.mu.Lock()
	e.status = s
	m.mu.Unlock()
}

// Status returns a read-only snapshot for the model
func (m *Manager) Status(name string) Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[name]
	if !ok {
		return Snapshot{Name: name, Status: StatusUnloaded}
	}

	snap := Snapshot{
		Name:     name,
		Status:   e.status,
		Progress: e.progress,
		Refs:     e.refs,
	}
	if e.err != nil {
		snap.Error = e.err.Error()
	}
	return snap
}

// DownloadProgress returns the snapshot of the model currently downloading,
// if any. Boundary endpoints poll this; core code waits on AwaitReady instead.
func (m *Manager) DownloadProgress() (Snapshot, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for name, e := range m.entries {
		if e.status == StatusDownloading {
			return Snapshot{Name: name, Status: e.status, Progress: e.progress, Refs: e.refs}, true
		}
	}
	return Snapshot{}, false
}

// Acquire returns the ready engine for name, locked for exclusive dispatch.
// The release func must be called when the recognition call returns. ok is
// false when the model is not ready.
func (m *Manager) Acquire(name string) (eng engine.Engine, release func(), ok bool) {
	m.mu.Lock()
	e, found := m.entries[name]
	if !found || e.status != StatusReady || e.eng == nil {
		m.mu.Unlock()
		return nil, nil, false
	}
	eng = e.eng
	m.mu.Unlock()

	e.engineMu.Lock()
	return eng, e.engineMu.Unlock, true
}

// Attach increments the model's session reference count
func (m *Manager) Attach(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entry(name).refs++
}

// Detach decrements the model's session reference count. The entry is kept
// for reuse; eviction at zero refs is a legal extension, not current behavior.
func (m *Manager) Detach(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.entries[name]; ok && e.refs > 0 {
		e.refs--
	}
}

// Catalog exposes the model catalog for boundary endpoints
func (m *Manager) Catalog() *Catalog {
	return m.catalog
}
