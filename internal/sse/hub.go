package sse

import (
	"log/slog"
	"sync"
)

// client is one connected event stream.
type client struct {
	ch     chan RoomEvent
	roomID string // empty = all rooms the hub carries
}

// Hub fans room events out to connected clients. It implements the
// store's Emitter interface, so every persisted change flows through
// here without the store knowing about HTTP.
type Hub struct {
	mu      sync.RWMutex
	clients map[*client]struct{}
	logger  *slog.Logger
	closed  bool
}

// clientBuffer is the per-client event buffer. A slow consumer drops
// events rather than blocking writers; clients recover by re-fetching.
const clientBuffer = 16

// NewHub creates an event hub.
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		clients: make(map[*client]struct{}),
		logger:  logger,
	}
}

// Emit broadcasts an event to all matching clients. Non-RoomEvent
// payloads are ignored.
func (h *Hub) Emit(event any) {
	ev, ok := event.(RoomEvent)
	if !ok {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		if c.roomID != "" && c.roomID != ev.RoomID {
			continue
		}
		select {
		case c.ch <- ev:
		default:
			// Buffer full; drop. The client resyncs on its next fetch.
		}
	}
}

// Subscribe registers a client for events. roomID may be empty to
// receive events for every room. The returned channel is closed on
// Unsubscribe or hub Close.
func (h *Hub) Subscribe(roomID string) (<-chan RoomEvent, func()) {
	c := &client{
		ch:     make(chan RoomEvent, clientBuffer),
		roomID: roomID,
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		close(c.ch)
		return c.ch, func() {}
	}
	h.clients[c] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.ch)
			}
			h.mu.Unlock()
		})
	}
	return c.ch, unsubscribe
}

// Close disconnects all clients and stops accepting new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for c := range h.clients {
		close(c.ch)
		delete(h.clients, c)
	}
	if h.logger != nil {
		h.logger.Info("SSE hub closed")
	}
}
