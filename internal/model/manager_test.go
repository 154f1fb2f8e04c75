package model

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/mickekring/live-subtitles/internal/engine"
)

// fakeDownloader writes a placeholder artifact into the cache. errs are popped
// per call; a nil entry means success. block, when non-nil, holds the download
// mid-flight until closed.
type fakeDownloader struct {
	mu    sync.Mutex
	calls int
	errs  []error
	block chan struct{}
}

func (f *fakeDownloader) Download(ctx context.Context, info Info, cacheDir string, onProgress ProgressFunc) (string, error) {
	f.mu.Lock()
	f.calls++
	var err error
	if len(f.errs) > 0 {
		err = f.errs[0]
		f.errs = f.errs[1:]
	}
	block := f.block
	f.mu.Unlock()

	if onProgress != nil {
		onProgress(50, 100)
	}
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if err != nil {
		return "", err
	}
	if onProgress != nil {
		onProgress(100, 100)
	}

	dest := ArtifactPath(cacheDir, info)
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return "", err
	}
	if err := os.WriteFile(dest, []byte("model weights"), 0o644); err != nil {
		return "", err
	}
	return dest, nil
}

func (f *fakeDownloader) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func testCatalog() *Catalog {
	return &Catalog{Models: []Info{{
		Name:      "small",
		Repo:      "KBLab/kb-whisper-small",
		Size:      "500 MB",
		SizeBytes: 100,
		URL:       "http://example.invalid/small/model.bin",
	}}}
}

func newTestManager(t *testing.T, d Downloader, loader engine.Loader, timeout time.Duration) *Manager {
	t.Helper()
	return NewManager(testCatalog(), t.TempDir(), loader, d, timeout, zerolog.Nop())
}

func TestManager_AwaitReadySingleFlight(t *testing.T) {
	var loads int32
	loader := func(ctx context.Context, path string) (engine.Engine, error) {
		atomic.AddInt32(&loads, 1)
		time.Sleep(20 * time.Millisecond) // widen the join window
		return engine.NewStub(), nil
	}
	dl := &fakeDownloader{}
	m := newTestManager(t, dl, loader, 5*time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = m.AwaitReady(ctx, "small")
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Errorf("Waiter %d got error: %v", i, err)
		}
	}
	if got := dl.callCount(); got != 1 {
		t.Errorf("Expected exactly 1 download, got %d", got)
	}
	if got := atomic.LoadInt32(&loads); got != 1 {
		t.Errorf("Expected exactly 1 load, got %d", got)
	}
	if snap := m.Status("small"); snap.Status != StatusReady {
		t.Errorf("Expected status ready, got %s", snap.Status)
	}
}

func TestManager_AwaitReadyIdempotentWhenReady(t *testing.T) {
	dl := &fakeDownloader{}
	m := newTestManager(t, dl, engine.StubLoader(), 5*time.Second)

	ctx := context.Background()
	if err := m.AwaitReady(ctx, "small"); err != nil {
		t.Fatalf("First AwaitReady failed: %v", err)
	}
	if err := m.AwaitReady(ctx, "small"); err != nil {
		t.Fatalf("Second AwaitReady failed: %v", err)
	}
	if got := dl.callCount(); got != 1 {
		t.Errorf("Expected 1 download, got %d", got)
	}
}

func TestManager_RequestLoadAcksImmediately(t *testing.T) {
	dl := &fakeDownloader{block: make(chan struct{})}
	m := newTestManager(t, dl, engine.StubLoader(), 5*time.Second)

	start := time.Now()
	status, err := m.RequestLoad("small")
	if err != nil {
		t.Fatalf("RequestLoad failed: %v", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("RequestLoad blocked for %s", elapsed)
	}
	if status != StatusChecking && status != StatusDownloading {
		t.Errorf("Expected checking or downloading, got %s", status)
	}

	close(dl.block)
	if err := m.AwaitReady(context.Background(), "small"); err != nil {
		t.Fatalf("AwaitReady after RequestLoad failed: %v", err)
	}
}

func TestManager_UnknownModel(t *testing.T) {
	m := newTestManager(t, &fakeDownloader{}, engine.StubLoader(), time.Second)

	if _, err := m.RequestLoad("gigantic"); !errors.Is(err, ErrUnknownModel) {
		t.Errorf("RequestLoad: expected ErrUnknownModel, got %v", err)
	}
	if err := m.AwaitReady(context.Background(), "gigantic"); !errors.Is(err, ErrUnknownModel) {
		t.Errorf("AwaitReady: expected ErrUnknownModel, got %v", err)
	}
	if _, _, err := m.CheckExists("gigantic"); !errors.Is(err, ErrUnknownModel) {
		t.Errorf("CheckExists: expected ErrUnknownModel, got %v", err)
	}
}

func TestManager_LoadTimeoutReachesAllWaiters(t *testing.T) {
	blockingLoader := func(ctx context.Context, path string) (engine.Engine, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	m := newTestManager(t, &fakeDownloader{}, blockingLoader, 30*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var wg sync.WaitGroup
	errs := make([]error, 3)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = m.AwaitReady(ctx, "small")
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if !errors.Is(err, ErrLoadTimeout) {
			t.Errorf("Waiter %d: expected ErrLoadTimeout, got %v", i, err)
		}
	}

	snap := m.Status("small")
	if snap.Status != StatusFailed {
		t.Errorf("Expected status failed, got %s", snap.Status)
	}
	if snap.Error == "" {
		t.Error("Expected snapshot to carry the failure message")
	}
}

func TestManager_FailedModelIsRetried(t *testing.T) {
	dl := &fakeDownloader{errs: []error{fmt.Errorf("network unreachable")}}
	m := newTestManager(t, dl, engine.StubLoader(), 5*time.Second)
	ctx := context.Background()

	if err := m.AwaitReady(ctx, "small"); err == nil {
		t.Fatal("Expected first load to fail")
	}
	if snap := m.Status("small"); snap.Status != StatusFailed {
		t.Fatalf("Expected status failed, got %s", snap.Status)
	}

	if err := m.AwaitReady(ctx, "small"); err != nil {
		t.Fatalf("Expected retry to succeed, got %v", err)
	}
	if got := dl.callCount(); got != 2 {
		t.Errorf("Expected 2 download attempts, got %d", got)
	}
	if snap := m.Status("small"); snap.Status != StatusReady {
		t.Errorf("Expected status ready after retry, got %s", snap.Status)
	}
}

func TestManager_SkipsDownloadWhenCached(t *testing.T) {
	catalog := testCatalog()
	cacheDir := t.TempDir()
	info, _ := catalog.Lookup("small")
	dest := ArtifactPath(cacheDir, info)
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(dest, []byte("cached weights"), 0o644); err != nil {
		t.Fatal(err)
	}

	dl := &fakeDownloader{}
	m := NewManager(catalog, cacheDir, engine.StubLoader(), dl, 5*time.Second, zerolog.Nop())

	if err := m.AwaitReady(context.Background(), "small"); err != nil {
		t.Fatalf("AwaitReady failed: %v", err)
	}
	if got := dl.callCount(); got != 0 {
		t.Errorf("Expected no downloads for a cached model, got %d", got)
	}
}

func TestManager_CheckExists(t *testing.T) {
	catalog := testCatalog()
	cacheDir := t.TempDir()
	m := NewManager(catalog, cacheDir, engine.StubLoader(), &fakeDownloader{}, time.Second, zerolog.Nop())

	exists, info, err := m.CheckExists("small")
	if err != nil {
		t.Fatalf("CheckExists failed: %v", err)
	}
	if exists {
		t.Error("Expected model to be absent")
	}
	if info.Size != "500 MB" {
		t.Errorf("Expected catalog info to be returned, got %+v", info)
	}

	// An empty artifact does not count as present
	dest := ArtifactPath(cacheDir, info)
	os.MkdirAll(filepath.Dir(dest), 0o755)
	os.WriteFile(dest, nil, 0o644)
	if exists, _, _ := m.CheckExists("small"); exists {
		t.Error("Expected zero-byte artifact to be treated as absent")
	}

	os.WriteFile(dest, []byte("weights"), 0o644)
	if exists, _, _ := m.CheckExists("small"); !exists {
		t.Error("Expected model to be present")
	}
}

func TestManager_AwaitReadyHonorsCallerContext(t *testing.T) {
	dl := &fakeDownloader{block: make(chan struct{})}
	defer close(dl.block)
	m := newTestManager(t, dl, engine.StubLoader(), 5*time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- m.AwaitReady(ctx, "small") }()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Expected context.Canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("AwaitReady did not return after context cancellation")
	}
}

func TestManager_DownloadProgress(t *testing.T) {
	dl := &fakeDownloader{block: make(chan struct{})}
	m := newTestManager(t, dl, engine.StubLoader(), 5*time.Second)

	errCh := make(chan error, 1)
	go func() { errCh <- m.AwaitReady(context.Background(), "small") }()

	deadline := time.Now().Add(time.Second)
	var snap Snapshot
	var ok bool
	for time.Now().Before(deadline) {
		if snap, ok = m.DownloadProgress(); ok {
			break
		}
		time.Sleep(time.Millisecond)
	}
	if !ok {
		t.Fatal("Expected a download in progress")
	}
	if snap.Name != "small" || snap.Status != StatusDownloading {
		t.Errorf("Unexpected snapshot: %+v", snap)
	}
	if snap.Progress.Percentage != 50 {
		t.Errorf("Expected 50%% progress, got %d", snap.Progress.Percentage)
	}

	close(dl.block)
	if err := <-errCh; err != nil {
		t.Fatalf("AwaitReady failed: %v", err)
	}

	if _, ok := m.DownloadProgress(); ok {
		t.Error("Expected no download in progress after completion")
	}
	if got := m.Status("small").Progress.Percentage; got != 100 {
		t.Errorf("Expected final progress 100%%, got %d", got)
	}
}

func TestManager_Acquire(t *testing.T) {
	m := newTestManager(t, &fakeDownloader{}, engine.StubLoader(), 5*time.Second)

	if _, _, ok := m.Acquire("small"); ok {
		t.Error("Expected Acquire to fail before the model is ready")
	}

	if err := m.AwaitReady(context.Background(), "small"); err != nil {
		t.Fatalf("AwaitReady failed: %v", err)
	}

	eng, release, ok := m.Acquire("small")
	if !ok {
		t.Fatal("Expected Acquire to succeed once ready")
	}
	if eng == nil {
		t.Fatal("Expected a non-nil engine")
	}
	release()

	// Reacquirable after release
	_, release, ok = m.Acquire("small")
	if !ok {
		t.Fatal("Expected Acquire to succeed again after release")
	}
	release()
}

func TestManager_AttachDetach(t *testing.T) {
	m := newTestManager(t, &fakeDownloader{}, engine.StubLoader(), time.Second)

	m.Attach("small")
	m.Attach("small")
	if refs := m.Status("small").Refs; refs != 2 {
		t.Errorf("Expected 2 refs, got %d", refs)
	}

	m.Detach("small")
	if refs := m.Status("small").Refs; refs != 1 {
		t.Errorf("Expected 1 ref, got %d", refs)
	}

	// Detach never goes negative
	m.Detach("small")
	m.Detach("small")
	if refs := m.Status("small").Refs; refs != 0 {
		t.Errorf("Expected 0 refs, got %d", refs)
	}
}

func TestManager_StatusUnknownEntry(t *testing.T) {
	m := newTestManager(t, &fakeDownloader{}, engine.StubLoader(), time.Second)

	snap := m.Status("small")
	if snap.Status != StatusUnloaded {
		t.Errorf("Expected unloaded for untouched model, got %s", snap.Status)
	}
}
