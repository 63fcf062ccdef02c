package sse

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/starford/photolog/internal/apperr"
	"github.com/starford/photolog/internal/models"
	"github.com/starford/photolog/internal/share"
)

func eventually(t *testing.T, timeout, tick time.Duration, fn func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(tick)
	}
	t.Error(msg)
}

func drain(ch chan []byte) []string {
	var out []string
	for {
		select {
		case msg := <-ch:
			out = append(out, string(msg))
		default:
			return out
		}
	}
}

func TestSubscribeUnsubscribe(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()
	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients")
	}
	ch := b.Subscribe()
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client")
	}
	b.Unsubscribe(ch)
	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients after unsub")
	}
}

func TestPublishDelivery(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.Publish(Event{Type: "photo.created", Data: PhotoData{ID: "p1"}})

	select {
	case msg := <-ch:
		s := string(msg)
		if !strings.Contains(s, "event: photo.created") {
			t.Errorf("missing event type in %q", s)
		}
		if !strings.Contains(s, `"id":"p1"`) {
			t.Errorf("missing data in %q", s)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for message")
	}
}

func TestPublishPhotoEvent_GalleryThrottle(t *testing.T) {
	b := NewBroker(500 * time.Millisecond)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.PublishPhotoEvent("created", models.PhotoEntry{ID: "a", Title: "A"})
	b.PublishPhotoEvent("updated", models.PhotoEntry{ID: "b", Title: "B"})

	time.Sleep(50 * time.Millisecond)
	galleryCount, photoCount := 0, 0
	for _, s := range drain(ch) {
		if strings.Contains(s, "gallery.updated") {
			galleryCount++
		} else {
			photoCount++
		}
	}
	if photoCount != 2 {
		t.Errorf("photo events = %d, want 2", photoCount)
	}
	if galleryCount != 1 {
		t.Errorf("gallery events = %d, want 1 (throttled)", galleryCount)
	}
}

func TestPublishPhotoEvent_LoadedOnlyRefreshesGallery(t *testing.T) {
	b := NewBroker(time.Millisecond)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.PublishPhotoEvent("loaded", models.PhotoEntry{})
	time.Sleep(50 * time.Millisecond)

	msgs := drain(ch)
	if len(msgs) != 1 || !strings.Contains(msgs[0], "event: gallery.updated") {
		t.Errorf("messages = %q", msgs)
	}
}

func TestShare(t *testing.T) {
	b := NewBroker(time.Second)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	err := b.Share(context.Background(), share.Payload{Title: "Beach", Text: "hi", URL: "blob:x"})
	if err != nil {
		t.Fatalf("Share: %v", err)
	}
	select {
	case msg := <-ch:
		s := string(msg)
		if !strings.Contains(s, "event: photo.share") || !strings.Contains(s, `"title":"Beach"`) {
			t.Errorf("share event = %q", s)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for share event")
	}
}

func TestShare_NoClients(t *testing.T) {
	b := NewBroker(time.Second)
	defer b.Close()
	if err := b.Share(context.Background(), share.Payload{}); !errors.Is(err, ErrNoClients) {
		t.Fatalf("err = %v", err)
	}
}

func TestShare_CancelledContext(t *testing.T) {
	b := NewBroker(time.Second)
	defer b.Close()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := b.Share(ctx, share.Payload{}); !errors.Is(err, apperr.ErrShareCancelled) {
		t.Fatalf("err = %v", err)
	}
}

func TestSSEHandler(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req := httptest.NewRequest(http.MethodGet, "/api/events", nil)
	req = req.WithContext(ctx)
	w := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		b.ServeHTTP(w, req)
		close(done)
	}()

	eventually(t, time.Second, 10*time.Millisecond,
		func() bool { return b.ClientCount() == 1 }, "handler never subscribed")

	b.Publish(Event{Type: "photo.updated", Data: PhotoData{ID: "x"}})
	time.Sleep(50 * time.Millisecond)

	cancel()
	<-done

	if body := w.Body.String(); !strings.Contains(body, "event: photo.updated") {
		t.Errorf("handler output missing event: %q", body)
	}
	if ct := w.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("content-type = %q", ct)
	}

	eventually(t, time.Second, 10*time.Millisecond,
		func() bool { return b.ClientCount() == 0 }, "client not cleaned up after disconnect")
}

func TestPublishDropsOnFullBuffer(t *testing.T) {
	b := NewBroker(time.Second)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	// Buffer holds 64; the rest must be dropped without blocking.
	for i := 0; i < 70; i++ {
		b.Publish(Event{Type: "test", Data: map[string]int{"i": i}})
	}
}

func TestCloseClosesSubscribersAndStopsOperations(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	ch := b.Subscribe()
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client")
	}

	b.Close()

	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("expected subscriber channel to be closed")
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for channel close")
	}

	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients after close")
	}

	b.Publish(Event{Type: "photo.updated"})
	b.PublishPhotoEvent("updated", models.PhotoEntry{ID: "x"})
	if err := b.Share(context.Background(), share.Payload{}); !errors.Is(err, ErrNoClients) {
		t.Errorf("share after close = %v", err)
	}
}
