package gallery

import (
	"log/slog"
	"time"

	"github.com/starford/photolog/internal/capture"
	"github.com/starford/photolog/internal/share"
)

// Option configures a Manager.
type Option func(*Manager)

// WithDevice sets the default capture device used by Capture.
func WithDevice(d capture.Device) Option {
	return func(m *Manager) { m.device = d }
}

// WithSharer sets the share target used by SharePhoto.
func WithSharer(s share.Sharer) Option {
	return func(m *Manager) { m.sharer = s }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// WithIDGenerator overrides the UUID generator.
func WithIDGenerator(gen func() string) Option {
	return func(m *Manager) {
		if gen != nil {
			m.newID = gen
		}
	}
}

// WithIndexKey sets the key-value key the collection is stored under.
func WithIndexKey(key string) Option {
	return func(m *Manager) {
		if key != "" {
			m.indexKey = key
		}
	}
}

// WithShareText sets the message sent along with every share.
func WithShareText(text string) Option {
	return func(m *Manager) {
		if text != "" {
			m.shareText = text
		}
	}
}

// WithObserver registers a callback for successful operations.
func WithObserver(o Observer) Option {
	return func(m *Manager) { m.observer = o }
}
