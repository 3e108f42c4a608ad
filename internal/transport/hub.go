package transport

import (
	"sync"

	"github.com/HathorNetwork/hathor-playground-sub001/pkg/models"
)

// Hub fans tool lifecycle events out to websocket subscribers. Publish
// never blocks: a subscriber that stops draining loses events rather
// than stalling the tool pipeline.
type Hub struct {
	mu   sync.Mutex
	subs map[chan models.ToolEvent]struct{}
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[chan models.ToolEvent]struct{})}
}

// Publish delivers an event to all current subscribers.
func (h *Hub) Publish(event models.ToolEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs {
		select {
		case ch <- event:
		default:
		}
	}
}

// Subscribe registers a new subscriber and returns its channel plus a
// cancel function.
func (h *Hub) Subscribe() (<-chan models.ToolEvent, func()) {
	ch := make(chan models.ToolEvent, 64)
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()

	return ch, func() {
		h.mu.Lock()
		delete(h.subs, ch)
		h.mu.Unlock()
	}
}
