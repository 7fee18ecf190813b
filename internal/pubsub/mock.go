package pubsub

import (
	"context"
	"sync"
)

// Mock is an in process pubsub client for tests. Published events are
// delivered synchronously to the subscribed callbacks and remembered so
// tests can assert on them.
type Mock struct {
	mu        sync.Mutex
	callbacks map[string][]EventHandler
	published map[string][]Message
}

// NewMock returns a new mock pubsub client
func NewMock() *Mock {
	return &Mock{
		callbacks: make(map[string][]EventHandler),
		published: make(map[string][]Message),
	}
}

// Publish delivers the event synchronously to all subscribed callbacks
func (m *Mock) Publish(ctx context.Context, topic string, payload Event) error {
	msg, err := payload.Marshal()
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.published[topic] = append(m.published[topic], msg)
	cbs := append([]EventHandler(nil), m.callbacks[topic]...)
	m.mu.Unlock()

	for _, cb := range cbs {
		if err := cb(ctx, msg); err != nil {
			return err
		}
	}
	return nil
}

// Subscribe registers a callback for a topic
func (m *Mock) Subscribe(_ context.Context, topic string, callback EventHandler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callbacks[topic] = append(m.callbacks[topic], callback)
}

// Published returns the messages published on a topic
func (m *Mock) Published(topic string) []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Message(nil), m.published[topic]...)
}
