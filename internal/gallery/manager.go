// Package gallery owns the photo collection: the in-memory entries, their
// persisted index and the asset files they point to.
package gallery

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"

	"github.com/starford/photolog/internal/apperr"
	"github.com/starford/photolog/internal/capture"
	"github.com/starford/photolog/internal/models"
	"github.com/starford/photolog/internal/prefs"
	"github.com/starford/photolog/internal/share"
	"github.com/starford/photolog/internal/storage"
)

// Defaults.
const (
	DefaultIndexKey  = "user_photos"
	DefaultShareText = "Check out this memory!"

	// defaultTitleLayout renders as e.g. "Mar 7, 14:05".
	defaultTitleLayout = "Jan 2, 15:04"
)

// Event kinds passed to an Observer.
const (
	EventLoaded  = "loaded"
	EventCreated = "created"
	EventUpdated = "updated"
	EventDeleted = "deleted"
	EventShared  = "shared"
)

// Observer is notified after every successful operation. entry is the zero
// value for EventLoaded.
type Observer func(kind string, entry models.PhotoEntry)

// Manager is the photo collection manager. Create one per process and pass
// it to every presentation layer.
//
// Operations are serialized; Entries, Get, Busy and LastError may be called
// at any time, including while an operation waits on a collaborator.
type Manager struct {
	store    storage.Provider
	prefs    prefs.Store
	device   capture.Device
	sharer   share.Sharer
	logger   *slog.Logger
	observer Observer

	now       func() time.Time
	newID     func() string
	indexKey  string
	shareText string

	op sync.Mutex // held for the duration of an operation

	mu       sync.RWMutex
	entries  []models.PhotoEntry
	busy     bool
	lastErr  error
	lastName int64 // last filename timestamp handed out
}

// New creates a manager over the given file store and key-value store.
// Call Load before serving.
func New(store storage.Provider, kv prefs.Store, opts ...Option) *Manager {
	m := &Manager{
		store:     store,
		prefs:     kv,
		logger:    slog.Default(),
		now:       time.Now,
		newID:     func() string { return uuid.New().String() },
		indexKey:  DefaultIndexKey,
		shareText: DefaultShareText,
		entries:   []models.PhotoEntry{},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Entries returns a copy of the collection, newest first.
func (m *Manager) Entries() []models.PhotoEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.PhotoEntry, len(m.entries))
	copy(out, m.entries)
	return out
}

// Get returns the entry with the given id.
func (m *Manager) Get(id string) (models.PhotoEntry, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if i := indexOf(m.entries, id); i >= 0 {
		return m.entries[i], true
	}
	return models.PhotoEntry{}, false
}

// Busy reports whether an operation is in progress.
func (m *Manager) Busy() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.busy
}

// LastError returns the failure of the most recent operation, or nil.
func (m *Manager) LastError() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastErr
}

// Load replaces the collection with the persisted index. An absent index
// yields an empty collection. A corrupt or unreadable index leaves the
// current collection untouched.
func (m *Manager) Load(ctx context.Context) error {
	m.op.Lock()
	defer m.op.Unlock()
	m.begin()

	entries, err := m.readIndex(ctx)
	if err != nil {
		m.finish(err)
		m.logger.Error("gallery: load failed", slog.String("error", err.Error()))
		return err
	}

	m.mu.Lock()
	m.entries = entries
	m.mu.Unlock()
	m.finish(nil)

	m.logger.Debug("gallery: loaded", slog.Int("entries", len(entries)))
	m.notify(EventLoaded, models.PhotoEntry{})
	return nil
}

// Reload re-reads the persisted index. Presentation layers call it on demand.
func (m *Manager) Reload(ctx context.Context) error {
	return m.Load(ctx)
}

// Capture takes a photo with the configured device and adds it to the
// collection. An empty title gets a "Photo <date>" default.
func (m *Manager) Capture(ctx context.Context, title string) (*models.PhotoEntry, error) {
	return m.CaptureWith(ctx, m.device, title)
}

// CaptureWith is Capture with an explicit device.
func (m *Manager) CaptureWith(ctx context.Context, dev capture.Device, title string) (*models.PhotoEntry, error) {
	const op = "capture"

	m.op.Lock()
	defer m.op.Unlock()
	m.begin()

	entry, err := m.capture(ctx, dev, title)
	m.finish(err)
	if err != nil {
		m.logger.Warn("gallery: capture failed", slog.String("error", err.Error()))
		return nil, err
	}

	m.logger.Info("gallery: photo captured",
		slog.String("op", op),
		slog.String("id", entry.ID),
		slog.String("filepath", entry.Filepath))
	m.notify(EventCreated, *entry)
	return entry, nil
}

func (m *Manager) capture(ctx context.Context, dev capture.Device, title string) (*models.PhotoEntry, error) {
	const op = "capture"

	if dev == nil {
		return nil, apperr.New(op, apperr.KindCaptureUnavailable, "", errors.New("no capture device configured"))
	}
	photo, err := dev.CapturePhoto(ctx)
	if err != nil {
		kind := apperr.KindCaptureUnavailable
		switch {
		case errors.Is(err, apperr.ErrCaptureCancelled), errors.Is(err, context.Canceled):
			kind = apperr.KindCaptureCancelled
		case errors.Is(err, apperr.ErrValidation):
			kind = apperr.KindValidation
		}
		return nil, apperr.New(op, kind, "", err)
	}
	if len(photo.Data) == 0 || photo.Preview == "" {
		return nil, apperr.New(op, apperr.KindCaptureUnavailable, "", errors.New("failed to capture photo"))
	}

	now := m.now()
	name := m.nextFileName(now, capture.Extension(photo.Data))
	title = strings.TrimSpace(title)
	if title == "" {
		title = "Photo " + now.Format(defaultTitleLayout)
	}

	locator, err := m.store.Write(name, photo.Data)
	if err != nil {
		return nil, apperr.New(op, apperr.KindStorageWrite, "", err)
	}

	ts := now.UTC()
	entry := models.PhotoEntry{
		ID:          m.newID(),
		Filepath:    locator,
		PreviewPath: photo.Preview,
		Title:       title,
		CreatedAt:   ts,
		UpdatedAt:   ts,
	}

	current := m.Entries()
	if indexOf(current, entry.ID) >= 0 {
		return nil, apperr.New(op, apperr.KindPersist, entry.ID, errors.New("generated id already in use"))
	}
	next := append([]models.PhotoEntry{entry}, current...)
	sortNewestFirst(next)

	// On failure the asset stays on disk without an index entry; Audit
	// reports it as an orphan.
	if err := m.commit(ctx, next); err != nil {
		return nil, apperr.New(op, apperr.KindPersist, entry.ID, err)
	}
	return &entry, nil
}

// DeletePhoto removes an entry from the index and, best-effort, its asset.
func (m *Manager) DeletePhoto(ctx context.Context, id string) error {
	const op = "delete"

	m.op.Lock()
	defer m.op.Unlock()
	m.begin()

	current := m.Entries()
	i := indexOf(current, id)
	if i < 0 {
		err := apperr.New(op, apperr.KindNotFound, id, errors.New("photo not found"))
		m.finish(err)
		return err
	}
	entry := current[i]

	if err := m.store.Delete(entry.Filepath); err != nil {
		m.logger.Warn("gallery: asset delete failed, continuing",
			slog.String("id", id),
			slog.String("filepath", entry.Filepath),
			slog.String("error", err.Error()))
	}

	next := make([]models.PhotoEntry, 0, len(current)-1)
	next = append(next, current[:i]...)
	next = append(next, current[i+1:]...)

	if err := m.commit(ctx, next); err != nil {
		err = apperr.New(op, apperr.KindPersist, id, err)
		m.finish(err)
		m.logger.Error("gallery: delete failed", slog.String("id", id), slog.String("error", err.Error()))
		return err
	}
	m.finish(nil)

	m.logger.Info("gallery: photo deleted", slog.String("id", id))
	m.notify(EventDeleted, entry)
	return nil
}

// UpdateTitle renames an entry. The trimmed title must not be empty.
func (m *Manager) UpdateTitle(ctx context.Context, id, title string) error {
	const op = "update_title"

	m.op.Lock()
	defer m.op.Unlock()
	m.begin()

	trimmed := strings.TrimSpace(title)
	if err := validation.Validate(trimmed, validation.Required.Error("empty title")); err != nil {
		err = apperr.New(op, apperr.KindValidation, id, err)
		m.finish(err)
		return err
	}

	current := m.Entries()
	i := indexOf(current, id)
	if i < 0 {
		err := apperr.New(op, apperr.KindNotFound, id, errors.New("photo not found"))
		m.finish(err)
		return err
	}

	updated := current[i]
	updated.Title = trimmed
	updated.UpdatedAt = m.now().UTC()
	if !updated.UpdatedAt.After(current[i].UpdatedAt) {
		updated.UpdatedAt = current[i].UpdatedAt.Add(time.Nanosecond)
	}

	next := make([]models.PhotoEntry, len(current))
	copy(next, current)
	next[i] = updated

	if err := m.commit(ctx, next); err != nil {
		err = apperr.New(op, apperr.KindPersist, id, err)
		m.finish(err)
		m.logger.Error("gallery: rename failed", slog.String("id", id), slog.String("error", err.Error()))
		return err
	}
	m.finish(nil)

	m.logger.Info("gallery: photo renamed", slog.String("id", id), slog.String("title", trimmed))
	m.notify(EventUpdated, updated)
	return nil
}

// SharePhoto hands an entry to the share target. It returns false with a
// nil error when the user cancels the share.
func (m *Manager) SharePhoto(ctx context.Context, id string) (bool, error) {
	const op = "share"

	m.op.Lock()
	defer m.op.Unlock()
	m.begin()

	entry, ok := m.Get(id)
	if !ok {
		err := apperr.New(op, apperr.KindNotFound, id, errors.New("photo not found"))
		m.finish(err)
		return false, err
	}
	if m.sharer == nil {
		err := apperr.New(op, apperr.KindShare, id, errors.New("no share target configured"))
		m.finish(err)
		return false, err
	}

	err := m.sharer.Share(ctx, share.Payload{
		Title: entry.Title,
		Text:  m.shareText,
		URL:   entry.PreviewPath,
	})
	switch {
	case errors.Is(err, apperr.ErrShareCancelled):
		m.finish(nil)
		m.logger.Debug("gallery: share cancelled", slog.String("id", id))
		return false, nil
	case err != nil:
		err = apperr.New(op, apperr.KindShare, id, err)
		m.finish(err)
		m.logger.Warn("gallery: share failed", slog.String("id", id), slog.String("error", err.Error()))
		return false, err
	}
	m.finish(nil)

	m.notify(EventShared, entry)
	return true, nil
}

// readIndex decodes the persisted collection, sorted newest first.
func (m *Manager) readIndex(ctx context.Context) ([]models.PhotoEntry, error) {
	const op = "load"

	raw, ok, err := m.prefs.Get(ctx, m.indexKey)
	if err != nil {
		return nil, apperr.New(op, apperr.KindPersist, "", err)
	}
	if !ok {
		return []models.PhotoEntry{}, nil
	}

	var entries []models.PhotoEntry
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		return nil, apperr.New(op, apperr.KindCorruptIndex, "", err)
	}
	if entries == nil {
		entries = []models.PhotoEntry{}
	}
	seen := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		if _, dup := seen[e.ID]; dup {
			return nil, apperr.New(op, apperr.KindCorruptIndex, e.ID, errors.New("duplicate id"))
		}
		seen[e.ID] = struct{}{}
	}
	sortNewestFirst(entries)
	return entries, nil
}

// commit persists next and, only on success, makes it the in-memory
// collection. A failed persist therefore leaves memory as it was.
func (m *Manager) commit(ctx context.Context, next []models.PhotoEntry) error {
	blob, err := json.Marshal(next)
	if err != nil {
		return fmt.Errorf("encode index: %w", err)
	}
	if err := m.prefs.Set(ctx, m.indexKey, string(blob)); err != nil {
		return err
	}
	m.mu.Lock()
	m.entries = next
	m.mu.Unlock()
	return nil
}

// nextFileName returns a millisecond-timestamp name that is strictly
// increasing within the process.
func (m *Manager) nextFileName(now time.Time, ext string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := now.UnixMilli()
	if n <= m.lastName {
		n = m.lastName + 1
	}
	m.lastName = n
	return fmt.Sprintf("%d%s", n, ext)
}

func (m *Manager) begin() {
	m.mu.Lock()
	m.busy = true
	m.lastErr = nil
	m.mu.Unlock()
}

func (m *Manager) finish(err error) {
	m.mu.Lock()
	m.busy = false
	m.lastErr = err
	m.mu.Unlock()
}

func (m *Manager) notify(kind string, entry models.PhotoEntry) {
	if m.observer != nil {
		m.observer(kind, entry)
	}
}

func indexOf(entries []models.PhotoEntry, id string) int {
	for i := range entries {
		if entries[i].ID == id {
			return i
		}
	}
	return -1
}

// sortNewestFirst orders by createdAt descending; equal timestamps keep
// their relative order, which is newest-inserted first.
func sortNewestFirst(entries []models.PhotoEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].CreatedAt.After(entries[j].CreatedAt)
	})
}
