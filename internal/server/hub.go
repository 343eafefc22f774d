// Package server coordinates message fan-out between connection handlers via
// the Hub type.
package server

import (
	"context"
	"sync"
	"sync/atomic"
)

// DefaultQueueSize is the per-subscriber queue capacity used when none is configured.
const DefaultQueueSize = 16

// Hub is the single publish point shared by all connection handlers.
// Every subscription owns an independent bounded queue, so a slow reader
// only ever loses its own oldest messages and never holds up the publisher
// or other subscribers.
type Hub struct {
	mu       sync.Mutex
	subs     map[uint64]*Subscription
	nextID   uint64
	capacity int
	closed   bool
}

// Subscription receives every message published after it was created.
type Subscription struct {
	hub     *Hub
	id      uint64
	ch      chan ChatMessage
	dropped atomic.Uint64
	once    sync.Once
}

// NewHub creates a hub whose subscriptions buffer up to capacity messages.
func NewHub(capacity int) *Hub {
	if capacity <= 0 {
		capacity = DefaultQueueSize
	}
	return &Hub{
		subs:     make(map[uint64]*Subscription),
		capacity: capacity,
	}
}

// Subscribe registers a new receive queue.
func (h *Hub) Subscribe() (*Subscription, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil, ErrHubClosed
	}

	s := &Subscription{
		hub: h,
		id:  h.nextID,
		ch:  make(chan ChatMessage, h.capacity),
	}
	h.nextID++
	h.subs[s.id] = s
	return s, nil
}

// Publish hands msg to every live subscription and returns the number of
// subscriptions it was queued on, including the origin's own, which the
// origin's handler discards.
// A full queue drops its oldest message to make room. Publishing with no
// subscribers is not an error.
//
// Publishes are serialized, so all subscribers observe the same relative order.
func (h *Hub) Publish(msg ChatMessage) (int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return 0, ErrHubClosed
	}

	for _, s := range h.subs {
		s.deliver(msg)
	}
	return len(h.subs), nil
}

// Subscribers returns the number of live subscriptions.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Close closes every subscription queue. Later Publish and Subscribe calls
// fail with ErrHubClosed.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.closed = true
	for id, s := range h.subs {
		delete(h.subs, id)
		close(s.ch)
	}
}

func (h *Hub) remove(s *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.subs[s.id]; ok {
		delete(h.subs, s.id)
		close(s.ch)
	}
}

// deliver must be called with the hub lock held. Only the consumer removes
// items concurrently, so after evicting one there is always room.
func (s *Subscription) deliver(msg ChatMessage) {
	select {
	case s.ch <- msg:
		return
	default:
	}

	select {
	case <-s.ch:
		s.dropped.Add(1)
	default:
	}

	select {
	case s.ch <- msg:
	default:
		s.dropped.Add(1)
	}
}

// C returns the receive queue. It is closed when the subscription or the hub is closed.
func (s *Subscription) C() <-chan ChatMessage {
	return s.ch
}

// Recv waits for the next message. It returns ErrHubClosed once the queue is closed.
func (s *Subscription) Recv(ctx context.Context) (ChatMessage, error) {
	select {
	case msg, ok := <-s.ch:
		if !ok {
			return ChatMessage{}, ErrHubClosed
		}
		return msg, nil
	case <-ctx.Done():
		return ChatMessage{}, ctx.Err()
	}
}

// Dropped returns how many messages were evicted from this queue because it was full.
func (s *Subscription) Dropped() uint64 {
	return s.dropped.Load()
}

// Close unregisters the subscription. It is safe to call more than once.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.hub.remove(s)
	})
}
