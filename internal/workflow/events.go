package workflow

import (
	"sync"
	"time"

	"bookforge/internal/store"
)

// EventType classifies a progress event.
type EventType string

const (
	EventStatus  EventType = "status"
	EventOutline EventType = "outline"
	EventChapter EventType = "chapter"
	EventImage   EventType = "image"
	EventFailed  EventType = "failed"
	EventDeleted EventType = "deleted"
)

const subscriberBuffer = 32

// Event is pushed to subscribers whenever a book changes.
type Event struct {
	Type       EventType        `json:"type"`
	BookID     string           `json:"book_id"`
	Chapter    int              `json:"chapter,omitempty"`
	Status     store.Status     `json:"status,omitempty"`
	Generation store.Generation `json:"generation,omitempty"`
	Generated  int              `json:"generated_chapters"`
	Total      int              `json:"total_chapters"`
	Error      string           `json:"error,omitempty"`
	Time       time.Time        `json:"time"`
}

type subscriber struct {
	bookID string
	ch     chan Event
}

// Hub fans events out to subscribers. Slow subscribers lose events rather than
// stall publishers; polling Progress remains the source of truth.
type Hub struct {
	mu     sync.Mutex
	subs   map[*subscriber]struct{}
	closed bool
}

// NewHub returns an empty hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[*subscriber]struct{})}
}

// Subscribe returns a channel of events for bookID (all books when empty) and
// a cancel func that closes it.
func (h *Hub) Subscribe(bookID string) (<-chan Event, func()) {
	sub := &subscriber{bookID: bookID, ch: make(chan Event, subscriberBuffer)}
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		close(sub.ch)
		return sub.ch, func() {}
	}
	h.subs[sub] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return sub.ch, func() {
		once.Do(func() {
			h.mu.Lock()
			if _, ok := h.subs[sub]; ok {
				delete(h.subs, sub)
				close(sub.ch)
			}
			h.mu.Unlock()
		})
	}
}

// Publish delivers evt to matching subscribers without blocking.
func (h *Hub) Publish(evt Event) {
	if evt.Time.IsZero() {
		evt.Time = time.Now().UTC()
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for sub := range h.subs {
		if sub.bookID != "" && sub.bookID != evt.BookID {
			continue
		}
		select {
		case sub.ch <- evt:
		default:
		}
	}
}

// Close ends every subscription.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for sub := range h.subs {
		close(sub.ch)
		delete(h.subs, sub)
	}
}
