// Package events relays host connectivity and charging signals to the
// client.
//
// A platform layer publishes into a Hub (or any Source). The Forwarder
// subscribes while the client runs and hands each signal to the engine on
// its own goroutine, so a slow engine call never stalls the publisher.
package events

import (
	"sync"
)

// Kind identifies a host signal class.
type Kind int

const (
	Connectivity Kind = iota
	Charging
)

func (k Kind) String() string {
	switch k {
	case Connectivity:
		return "connectivity"
	case Charging:
		return "charging"
	default:
		return "unknown"
	}
}

// Source delivers boolean host signals. Subscribe returns a function that
// cancels the subscription; calling it more than once is safe.
type Source interface {
	Subscribe(kind Kind, handler func(bool)) (cancel func())
}

// Hub is an in-process Source driven by Publish. New subscribers receive
// the last published value of their kind right away, the way sticky host
// broadcasts do.
type Hub struct {
	mu     sync.RWMutex
	subs   map[Kind]map[uint64]func(bool)
	last   map[Kind]bool
	nextID uint64
}

// NewHub creates an empty Hub.
func NewHub() *Hub {
	return &Hub{
		subs: make(map[Kind]map[uint64]func(bool)),
		last: make(map[Kind]bool),
	}
}

func (h *Hub) Subscribe(kind Kind, handler func(bool)) func() {
	h.mu.Lock()
	h.nextID++
	id := h.nextID
	if h.subs[kind] == nil {
		h.subs[kind] = make(map[uint64]func(bool))
	}
	h.subs[kind][id] = handler
	value, known := h.last[kind]
	h.mu.Unlock()

	if known {
		handler(value)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			delete(h.subs[kind], id)
			if len(h.subs[kind]) == 0 {
				delete(h.subs, kind)
			}
		})
	}
}

// Publish records value and calls every subscriber of kind on the calling
// goroutine. Handlers must not block.
func (h *Hub) Publish(kind Kind, value bool) {
	h.mu.Lock()
	h.last[kind] = value
	handlers := make([]func(bool), 0, len(h.subs[kind]))
	for _, handler := range h.subs[kind] {
		handlers = append(handlers, handler)
	}
	h.mu.Unlock()

	for _, handler := range handlers {
		handler(value)
	}
}

// Last returns the last value published for kind.
func (h *Hub) Last(kind Kind) (value, ok bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	value, ok = h.last[kind]
	return value, ok
}

// SubscriberCount returns the number of active subscribers for kind.
func (h *Hub) SubscriberCount(kind Kind) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[kind])
}
