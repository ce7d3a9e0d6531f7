package bus

import (
	"context"
	"strings"
	"sync"
)

// MemoryBus is an in-process Bus for single-node deployments and tests.
// Pattern matching supports the one glob shape the relay uses: a literal
// prefix followed by '*'.
type MemoryBus struct {
	mu     sync.RWMutex
	subs   map[uint64]*memorySubscription
	nextID uint64
	closed bool
}

func NewMemory() *MemoryBus {
	return &MemoryBus{subs: make(map[uint64]*memorySubscription)}
}

func (b *MemoryBus) Publish(_ context.Context, topic string, payload []byte) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrBusClosed
	}
	// Copy once so subscribers never alias the publisher's buffer.
	data := append([]byte(nil), payload...)
	for _, sub := range b.subs {
		if !matchPattern(sub.pattern, topic) {
			continue
		}
		select {
		case sub.ch <- Delivery{Topic: topic, Payload: data}:
		default:
			// Full subscriber loses the message; the bridge's hub applies
			// its own buffering downstream anyway.
		}
	}
	return nil
}

func (b *MemoryBus) SubscribePattern(_ context.Context, pattern string) (Subscription, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, ErrBusClosed
	}
	b.nextID++
	sub := &memorySubscription{
		bus:     b,
		id:      b.nextID,
		pattern: pattern,
		ch:      make(chan Delivery, 256),
	}
	b.subs[sub.id] = sub
	return sub, nil
}

// NumSubscribers reports live subscriptions.
func (b *MemoryBus) NumSubscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

func (b *MemoryBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	for id, sub := range b.subs {
		close(sub.ch)
		delete(b.subs, id)
	}
	return nil
}

type memorySubscription struct {
	bus     *MemoryBus
	id      uint64
	pattern string
	ch      chan Delivery

	closeOnce sync.Once
}

func (s *memorySubscription) C() <-chan Delivery { return s.ch }

func (s *memorySubscription) Close() error {
	s.closeOnce.Do(func() {
		s.bus.mu.Lock()
		if _, ok := s.bus.subs[s.id]; ok {
			delete(s.bus.subs, s.id)
			close(s.ch)
		}
		s.bus.mu.Unlock()
	})
	return nil
}

func matchPattern(pattern, topic string) bool {
	if i := strings.IndexByte(pattern, '*'); i >= 0 {
		return strings.HasPrefix(topic, pattern[:i])
	}
	return pattern == topic
}
