// Package testutil provides shared test helpers for media directories,
// preference stores and fake collaborators.
package testutil

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/starford/photolog/internal/apperr"
	"github.com/starford/photolog/internal/capture"
	"github.com/starford/photolog/internal/prefs"
	"github.com/starford/photolog/internal/share"
	"github.com/starford/photolog/internal/storage"
)

// JPEG is a minimal payload that sniffs as image/jpeg.
var JPEG = []byte("\xff\xd8\xff\xe0\x00\x10JFIF\x00\x01\x01")

// PNG is a minimal payload that sniffs as image/png.
var PNG = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

// TestMedia creates a temporary media directory with a file store.
func TestMedia(t *testing.T) (string, *storage.FS) {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.NewFS(dir)
	if err != nil {
		t.Fatal(err)
	}
	return dir, store
}

// TestPrefs opens a SQLite preference store in a temp dir, closed on cleanup.
func TestPrefs(t *testing.T) prefs.Store {
	t.Helper()
	kv, err := prefs.OpenSQL(prefs.DriverSQLite, filepath.Join(t.TempDir(), "prefs.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { kv.Close() })
	return kv
}

// FakeDevice returns queued results in order. Once the queue is drained it
// keeps returning a JPEG photo.
type FakeDevice struct {
	mu      sync.Mutex
	results []DeviceResult
	Calls   int
}

// DeviceResult is one queued FakeDevice outcome.
type DeviceResult struct {
	Photo capture.Photo
	Err   error
}

var _ capture.Device = (*FakeDevice)(nil)

// NewFakeDevice queues results.
func NewFakeDevice(results ...DeviceResult) *FakeDevice {
	return &FakeDevice{results: results}
}

// Cancelled is a queued result for a user abort.
func Cancelled() DeviceResult {
	return DeviceResult{Err: apperr.ErrCaptureCancelled}
}

// Unavailable is a queued result for a missing camera.
func Unavailable() DeviceResult {
	return DeviceResult{Err: apperr.ErrCaptureUnavailable}
}

func (d *FakeDevice) CapturePhoto(ctx context.Context) (capture.Photo, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Calls++
	if err := ctx.Err(); err != nil {
		return capture.Photo{}, err
	}
	if len(d.results) == 0 {
		return capture.Photo{Data: JPEG, Preview: "blob:preview"}, nil
	}
	r := d.results[0]
	d.results = d.results[1:]
	return r.Photo, r.Err
}

// FakeSharer records every payload and returns Err.
type FakeSharer struct {
	mu       sync.Mutex
	Err      error
	Payloads []share.Payload
}

var _ share.Sharer = (*FakeSharer)(nil)

func (s *FakeSharer) Share(_ context.Context, p share.Payload) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Payloads = append(s.Payloads, p)
	return s.Err
}

// Last returns the most recent payload.
func (s *FakeSharer) Last() (share.Payload, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.Payloads) == 0 {
		return share.Payload{}, false
	}
	return s.Payloads[len(s.Payloads)-1], true
}

// ErrInjected is returned by FlakyPrefs when a failure is armed.
var ErrInjected = errors.New("injected failure")

// FlakyPrefs wraps a Store and fails reads or writes on demand.
type FlakyPrefs struct {
	prefs.Store

	mu       sync.Mutex
	failGet  bool
	failSet  bool
	SetCalls int
}

// NewFlakyPrefs wraps an in-memory store.
func NewFlakyPrefs() *FlakyPrefs {
	return &FlakyPrefs{Store: prefs.NewMemory()}
}

// FailGets arms or disarms read failures.
func (f *FlakyPrefs) FailGets(on bool) {
	f.mu.Lock()
	f.failGet = on
	f.mu.Unlock()
}

// FailSets arms or disarms write failures.
func (f *FlakyPrefs) FailSets(on bool) {
	f.mu.Lock()
	f.failSet = on
	f.mu.Unlock()
}

func (f *FlakyPrefs) Get(ctx context.Context, key string) (string, bool, error) {
	f.mu.Lock()
	fail := f.failGet
	f.mu.Unlock()
	if fail {
		return "", false, ErrInjected
	}
	return f.Store.Get(ctx, key)
}

func (f *FlakyPrefs) Set(ctx context.Context, key, value string) error {
	f.mu.Lock()
	f.SetCalls++
	fail := f.failSet
	f.mu.Unlock()
	if fail {
		return ErrInjected
	}
	return f.Store.Set(ctx, key, value)
}
