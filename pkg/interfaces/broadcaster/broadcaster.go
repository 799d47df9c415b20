package broadcaster

import (
	"context"
	"sync"
)

// Event carries session signals (toasts, subscription changes, relayed
// payloads) destined for UI or realtime transports.
type Event struct {
	Topic   string
	Payload any
}

// Broadcaster pushes events to websocket/terminal/UI sinks.
type Broadcaster interface {
	Broadcast(ctx context.Context, event Event) error
}

// Nop broadcaster discards events.
type Nop struct{}

var _ Broadcaster = (*Nop)(nil)

func (n *Nop) Broadcast(ctx context.Context, event Event) error { return nil }

// Capture records every event it receives. Useful for tests and for hosts that
// poll alerts instead of subscribing to them.
type Capture struct {
	mu     sync.Mutex
	Events []Event
}

var _ Broadcaster = (*Capture)(nil)

func (c *Capture) Broadcast(ctx context.Context, event Event) error {
	c.mu.Lock()
	c.Events = append(c.Events, event)
	c.mu.Unlock()
	return nil
}

// Snapshot returns a copy of the captured events.
func (c *Capture) Snapshot() []Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Event, len(c.Events))
	copy(out, c.Events)
	return out
}

// Topics lists the captured event topics in order.
func (c *Capture) Topics() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.Events))
	for _, evt := range c.Events {
		out = append(out, evt.Topic)
	}
	return out
}
