// Package relay is the connection relay core: the per-instance fan-out hub,
// the WebSocket session state machine, and the bus bridge that feeds the
// hub from the shared pub/sub bus.
package relay

import (
	"sync"

	"github.com/turbochat/relay/internal/observe"
)

// Hub fans every bus-delivered payload out to the private queue of each
// live session on this instance. It carries opaque bytes: authorization
// filtering happens in the session, which keeps the hub ignorant of tenant
// rules and testable on its own.
type Hub struct {
	mu     sync.RWMutex
	subs   map[uint64]chan []byte
	nextID uint64
}

func NewHub() *Hub {
	return &Hub{subs: make(map[uint64]chan []byte)}
}

// Subscribe registers a delivery queue with the given capacity and returns
// its id plus the receive side. The channel is closed by Unsubscribe.
func (h *Hub) Subscribe(buffer int) (uint64, <-chan []byte) {
	if buffer <= 0 {
		buffer = 256
	}
	ch := make(chan []byte, buffer)
	h.mu.Lock()
	h.nextID++
	id := h.nextID
	h.subs[id] = ch
	h.mu.Unlock()
	return id, ch
}

// Unsubscribe removes and closes the queue. Safe to call more than once.
func (h *Hub) Unsubscribe(id uint64) {
	h.mu.Lock()
	if ch, ok := h.subs[id]; ok {
		delete(h.subs, id)
		close(ch)
	}
	h.mu.Unlock()
}

// Broadcast offers payload to every subscriber without blocking. A full
// queue drops this payload for that subscriber alone; per-subscriber FIFO
// order is preserved for whatever is accepted. Sends happen under the read
// lock, so a queue can never be closed mid-send.
func (h *Hub) Broadcast(payload []byte) {
	h.mu.RLock()
	for _, ch := range h.subs {
		select {
		case ch <- payload:
		default:
			observe.IncDropped()
		}
	}
	h.mu.RUnlock()
}

// Len reports the number of live subscribers.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}
