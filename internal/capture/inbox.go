package capture

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/photolog/internal/apperr"
)

const settleDelay = 200 * time.Millisecond

// Inbox captures the next image file that appears in a watched directory,
// e.g. one a camera app or scanner drops into a synced folder.
//
// A capture waits until a new image file has been created and left
// untouched for a short settle delay, then returns its bytes. Files that
// already exist when the capture starts are ignored, as are files whose
// content does not sniff as an image.
type Inbox struct {
	Dir    string
	Wait   time.Duration // zero waits until ctx is done
	Logger *slog.Logger
}

// CapturePhoto blocks until a new image arrives, ctx is done, or Wait
// elapses. The last two count as the user cancelling.
func (in *Inbox) CapturePhoto(ctx context.Context) (Photo, error) {
	logger := in.Logger
	if logger == nil {
		logger = slog.Default()
	}

	info, err := os.Stat(in.Dir)
	if err != nil {
		return Photo{}, fmt.Errorf("%w: inbox: %v", apperr.ErrCaptureUnavailable, err)
	}
	if !info.IsDir() {
		return Photo{}, fmt.Errorf("%w: inbox is not a directory: %s", apperr.ErrCaptureUnavailable, in.Dir)
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return Photo{}, fmt.Errorf("%w: inbox watcher: %v", apperr.ErrCaptureUnavailable, err)
	}
	defer w.Close()
	if err := w.Add(in.Dir); err != nil {
		return Photo{}, fmt.Errorf("%w: watch inbox: %v", apperr.ErrCaptureUnavailable, err)
	}

	if in.Wait > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, in.Wait)
		defer cancel()
	}

	logger.Debug("inbox: waiting for photo", slog.String("dir", in.Dir))

	// settle debounces Create/Write bursts for the pending file.
	var (
		pending  string
		settle   *time.Timer
		settleCh <-chan time.Time
	)
	schedule := func(path string) {
		pending = path
		if settle == nil {
			settle = time.NewTimer(settleDelay)
			settleCh = settle.C
		} else {
			settle.Reset(settleDelay)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if settle != nil {
				settle.Stop()
			}
			return Photo{}, fmt.Errorf("%w: %v", apperr.ErrCaptureCancelled, ctx.Err())

		case <-settleCh:
			data, err := os.ReadFile(pending)
			if err != nil {
				logger.Warn("inbox: read failed", slog.String("path", pending), slog.String("error", err.Error()))
				continue
			}
			if len(data) == 0 {
				continue
			}
			if _, ok := sniff(data); !ok {
				logger.Warn("inbox: skipping non-image file", slog.String("path", pending))
				continue
			}
			abs, err := filepath.Abs(pending)
			if err != nil {
				abs = pending
			}
			logger.Debug("inbox: captured", slog.String("path", abs), slog.Int("bytes", len(data)))
			return Photo{Data: data, Preview: fileURI(abs)}, nil

		case ev, ok := <-w.Events:
			if !ok {
				return Photo{}, fmt.Errorf("%w: inbox watcher closed", apperr.ErrCaptureUnavailable)
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write) == 0 || !IsImageName(ev.Name) {
				continue
			}
			schedule(ev.Name)

		case watchErr, ok := <-w.Errors:
			if !ok {
				return Photo{}, fmt.Errorf("%w: inbox watcher closed", apperr.ErrCaptureUnavailable)
			}
			if errors.Is(watchErr, fsnotify.ErrEventOverflow) {
				logger.Warn("inbox: event overflow", slog.String("dir", in.Dir))
				continue
			}
			logger.Error("inbox: watcher error", slog.String("error", watchErr.Error()))
		}
	}
}
