package view

import (
	"sync"
)

const subscriberBuffer = 16

// Hub fans state snapshots out to viewers. A slow subscriber loses its oldest
// pending snapshot rather than blocking the publisher.
type Hub struct {
	mu      sync.RWMutex
	latest  State
	version uint64
	subs    map[*subscriber]struct{}
}

type subscriber struct {
	ch chan State
}

func NewHub() *Hub {
	return &Hub{subs: make(map[*subscriber]struct{})}
}

func (h *Hub) Publish(s State) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.version++
	s.Version = h.version
	h.latest = s
	for sub := range h.subs {
		sub.offer(s)
	}
}

func (h *Hub) Latest() State {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.latest
}

// Subscribe returns a channel that first receives the latest snapshot and then
// every later one. The returned func unsubscribes and closes the channel.
func (h *Hub) Subscribe() (<-chan State, func()) {
	sub := &subscriber{ch: make(chan State, subscriberBuffer)}

	h.mu.Lock()
	h.subs[sub] = struct{}{}
	if h.version > 0 {
		sub.ch <- h.latest
	}
	h.mu.Unlock()

	var once sync.Once
	return sub.ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, sub)
			close(sub.ch)
			h.mu.Unlock()
		})
	}
}

func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

func (sub *subscriber) offer(s State) {
	for {
		select {
		case sub.ch <- s:
			return
		default:
		}
		select {
		case <-sub.ch:
		default:
		}
	}
}
