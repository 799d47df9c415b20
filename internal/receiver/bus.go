package receiver

import (
	"errors"
	"sync"

	"github.com/goliatone/go-httfy/pkg/domain"
)

// DefaultBusBuffer is the per-subscriber queue depth.
const DefaultBusBuffer = 64

var (
	// ErrBusClosed is returned when publishing to or subscribing on a closed bus.
	ErrBusClosed = errors.New("receiver: bus is closed")
)

// Bus is the session-scoped relay between the background worker and the
// receiver. It must be opened before use and closed on session teardown.
type Bus struct {
	mu      sync.RWMutex
	buffer  int
	open    bool
	nextID  int
	subs    map[int]chan domain.Payload
	dropped int
}

// NewBus returns a closed bus. buffer <= 0 uses DefaultBusBuffer.
func NewBus(buffer int) *Bus {
	if buffer <= 0 {
		buffer = DefaultBusBuffer
	}
	return &Bus{buffer: buffer, subs: map[int]chan domain.Payload{}}
}

// Open makes the bus accept subscribers and payloads. Reopening a closed bus
// starts a fresh session.
func (b *Bus) Open() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.open = true
}

// Close detaches every subscriber and rejects further publishes.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.open {
		return
	}
	b.open = false
	for id, ch := range b.subs {
		close(ch)
		delete(b.subs, id)
	}
}

// IsOpen reports the lifecycle state.
func (b *Bus) IsOpen() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.open
}

// Publish hands p to every subscriber. Subscribers with a full queue miss it.
func (b *Bus) Publish(p domain.Payload) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.open {
		return ErrBusClosed
	}
	for _, ch := range b.subs {
		select {
		case ch <- p:
		default:
			b.dropped++
		}
	}
	return nil
}

// Subscribe registers a subscriber. The channel is closed by cancel or Close.
func (b *Bus) Subscribe() (<-chan domain.Payload, func(), error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.open {
		return nil, func() {}, ErrBusClosed
	}
	id := b.nextID
	b.nextID++
	ch := make(chan domain.Payload, b.buffer)
	b.subs[id] = ch
	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if existing, ok := b.subs[id]; ok {
				close(existing)
				delete(b.subs, id)
			}
		})
	}
	return ch, cancel, nil
}

// Subscribers returns the number of attached subscribers.
func (b *Bus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Dropped counts payloads a subscriber missed because its queue was full.
func (b *Bus) Dropped() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.dropped
}
