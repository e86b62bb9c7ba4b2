// Package events is the in-process broadcast bus for daemon state changes.
// The IPC server and the websocket API both subscribe to it.
package events

import (
	"sync"
	"time"
)

// Type identifies the kind of event being broadcast.
type Type string

const (
	TypeUploadProgress Type = "upload-progress"
	TypeUploadComplete Type = "upload-complete"
	TypeUploadFailed   Type = "upload-failed"
	TypeCaptureResult  Type = "capture-result"
	TypeQueuePaused    Type = "queue-paused"
	TypeQueueResumed   Type = "queue-resumed"
)

// Event is a single broadcast record.
type Event struct {
	Type      Type              `json:"type"`
	AssetID   string            `json:"asset_id,omitempty"`
	Progress  float64           `json:"progress"`
	Message   string            `json:"message,omitempty"`
	ErrorType string            `json:"error_type,omitempty"`
	Fields    map[string]string `json:"fields,omitempty"`
	At        time.Time         `json:"at"`
}

const subscriberBuffer = 64

// Hub fans events out to subscribers. Publishing never blocks; a subscriber
// that falls behind loses events rather than stalling the queue engine.
type Hub struct {
	mu     sync.Mutex
	subs   map[int]chan Event
	nextID int
	closed bool
}

// NewHub returns an empty hub ready for subscribers.
func NewHub() *Hub {
	return &Hub{subs: make(map[int]chan Event)}
}

// Subscribe registers a listener and returns its channel plus a cancel
// function. The channel is closed on cancel or hub close.
func (h *Hub) Subscribe() (<-chan Event, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch := make(chan Event, subscriberBuffer)
	if h.closed {
		close(ch)
		return ch, func() {}
	}

	id := h.nextID
	h.nextID++
	h.subs[id] = ch

	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if sub, ok := h.subs[id]; ok {
			delete(h.subs, id)
			close(sub)
		}
	}
	return ch, cancel
}

// Publish broadcasts an event to all subscribers. A zero At field is stamped
// with the current time.
func (h *Hub) Publish(event Event) {
	if event.At.IsZero() {
		event.At = time.Now().UTC()
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	for _, ch := range h.subs {
		select {
		case ch <- event:
		default:
		}
	}
}

// Close drops all subscribers and closes their channels. Further publishes
// are no-ops.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for id, ch := range h.subs {
		delete(h.subs, id)
		close(ch)
	}
}
