// Package sse implements a Server-Sent Events broker that pushes collection
// changes and share requests to connected clients.
package sse

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/starford/photolog/internal/apperr"
	"github.com/starford/photolog/internal/models"
	"github.com/starford/photolog/internal/share"
)

// Event is one SSE message.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// PhotoData is the payload of photo.* events.
type PhotoData struct {
	ID    string `json:"id"`
	Title string `json:"title,omitempty"`
}

// ErrNoClients is returned by Share when nobody is listening.
var ErrNoClients = errors.New("sse: no connected clients")

type photoEventReq struct {
	kind  string
	entry models.PhotoEntry
}

// Broker fans events out to SSE clients.
//
// A single goroutine owns the client set and the gallery.updated throttle.
// Public methods talk to it over channels.
type Broker struct {
	galleryMin time.Duration

	subscribeCh   chan chan []byte
	unsubscribeCh chan chan []byte
	publishCh     chan Event
	photoEventCh  chan photoEventReq
	countReqCh    chan chan int

	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

var _ share.Sharer = (*Broker)(nil)

// NewBroker starts a broker. gallery.updated is emitted at most once per
// throttle interval.
func NewBroker(throttle time.Duration) *Broker {
	if throttle <= 0 {
		throttle = 2 * time.Second
	}

	b := &Broker{
		galleryMin:    throttle,
		subscribeCh:   make(chan chan []byte),
		unsubscribeCh: make(chan chan []byte),
		publishCh:     make(chan Event, 256),
		photoEventCh:  make(chan photoEventReq, 256),
		countReqCh:    make(chan chan int),
		stopCh:        make(chan struct{}),
		stopped:       make(chan struct{}),
	}

	go b.run()
	return b
}

func (b *Broker) run() {
	defer close(b.stopped)

	clients := make(map[chan []byte]struct{})
	var lastGallery time.Time

	broadcast := func(event Event) {
		payload, err := json.Marshal(event.Data)
		if err != nil {
			return
		}
		raw := []byte(fmt.Sprintf("event: %s\ndata: %s\n\n", event.Type, payload))
		for ch := range clients {
			select {
			case ch <- raw:
			default:
				// slow client; drop
			}
		}
	}

	for {
		select {
		case <-b.stopCh:
			for ch := range clients {
				close(ch)
			}
			return

		case ch := <-b.subscribeCh:
			clients[ch] = struct{}{}

		case ch := <-b.unsubscribeCh:
			if _, ok := clients[ch]; ok {
				delete(clients, ch)
				close(ch)
			}

		case event := <-b.publishCh:
			broadcast(event)

		case req := <-b.photoEventCh:
			if req.kind != "loaded" {
				broadcast(Event{
					Type: "photo." + req.kind,
					Data: PhotoData{ID: req.entry.ID, Title: req.entry.Title},
				})
			}
			if req.kind == "shared" {
				continue
			}
			now := time.Now()
			if now.Sub(lastGallery) >= b.galleryMin {
				lastGallery = now
				broadcast(Event{Type: "gallery.updated", Data: map[string]string{}})
			}

		case resp := <-b.countReqCh:
			resp <- len(clients)
		}
	}
}

// Close stops the loop and closes every client channel.
func (b *Broker) Close() {
	if b.closed.CompareAndSwap(false, true) {
		close(b.stopCh)
	}
	<-b.stopped
}

// Subscribe adds a client and returns its channel.
func (b *Broker) Subscribe() chan []byte {
	ch := make(chan []byte, 64)
	if b.closed.Load() {
		close(ch)
		return ch
	}
	select {
	case b.subscribeCh <- ch:
	case <-b.stopped:
		close(ch)
	}
	return ch
}

// Unsubscribe removes a client and closes its channel.
func (b *Broker) Unsubscribe(ch chan []byte) {
	if b.closed.Load() {
		return
	}
	select {
	case b.unsubscribeCh <- ch:
	case <-b.stopped:
	}
}

// ClientCount returns the number of connected clients.
func (b *Broker) ClientCount() int {
	if b.closed.Load() {
		return 0
	}
	resp := make(chan int, 1)
	select {
	case b.countReqCh <- resp:
	case <-b.stopped:
		return 0
	}
	select {
	case n := <-resp:
		return n
	case <-b.stopped:
		return 0
	}
}

// Publish sends an event to all connected clients.
func (b *Broker) Publish(event Event) {
	if b.closed.Load() {
		return
	}
	select {
	case b.publishCh <- event:
	case <-b.stopped:
	}
}

// PublishPhotoEvent emits photo.<kind> plus a throttled gallery.updated.
// Its signature matches gallery.Observer.
func (b *Broker) PublishPhotoEvent(kind string, entry models.PhotoEntry) {
	if b.closed.Load() {
		return
	}
	select {
	case b.photoEventCh <- photoEventReq{kind: kind, entry: entry}:
	case <-b.stopped:
	}
}

// Share hands the payload to connected clients as a photo.share event.
// A done context counts as a cancelled share.
func (b *Broker) Share(ctx context.Context, p share.Payload) error {
	if ctx.Err() != nil {
		return apperr.ErrShareCancelled
	}
	if b.ClientCount() == 0 {
		return ErrNoClients
	}
	b.Publish(Event{Type: "photo.share", Data: p})
	return nil
}

// ServeHTTP is the SSE endpoint handler (GET /api/events).
func (b *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			_, _ = w.Write(msg)
			flusher.Flush()
		}
	}
}
