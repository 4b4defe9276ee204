package docstore

import "sync"

// Hub fans out change notifications per topic (an inquiry's message log).
// Each listener has a single-slot channel: a notification that arrives while one
// is already pending is merged into it, so a slow listener never blocks Publish.
type Hub struct {
	mu     sync.RWMutex
	topics map[string]map[chan struct{}]struct{}
}

// NewHub creates an empty hub
func NewHub() *Hub {
	return &Hub{
		topics: make(map[string]map[chan struct{}]struct{}),
	}
}

// Subscribe registers a listener on topic. The returned func removes it and may be
// called more than once.
func (h *Hub) Subscribe(topic string) (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)
	h.mu.Lock()
	listeners, ok := h.topics[topic]
	if !ok {
		listeners = make(map[chan struct{}]struct{})
		h.topics[topic] = listeners
	}
	listeners[ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			delete(h.topics[topic], ch)
			if len(h.topics[topic]) == 0 {
				delete(h.topics, topic)
			}
		})
	}
}

// Publish signals every listener of topic
func (h *Hub) Publish(topic string) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch := range h.topics[topic] {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// PublishAll signals every listener on every topic. Used to resync feeds after
// changes may have been missed.
func (h *Hub) PublishAll() {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, listeners := range h.topics {
		for ch := range listeners {
			select {
			case ch <- struct{}{}:
			default:
			}
		}
	}
}

// Listeners returns the number of listeners on topic
func (h *Hub) Listeners(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.topics[topic])
}
