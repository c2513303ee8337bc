// Package events carries connection lifecycle notifications from the
// engine to observers such as the HTTP API's websocket stream.
package events

import (
	"sync"
	"time"
)

// Type labels a lifecycle event.
type Type string

const (
	TypeAccepted Type = "accepted"
	TypeEvicted  Type = "evicted"
	TypeClosed   Type = "closed"
	TypeRejected Type = "rejected"
)

// Event is one connection lifecycle record. BytesSent and
// DurationSeconds are only meaningful on closed events.
type Event struct {
	Type            Type      `json:"type"`
	ID              uint64    `json:"id,omitempty"`
	RemoteAddr      string    `json:"remote_addr,omitempty"`
	Time            time.Time `json:"time"`
	BytesSent       int64     `json:"bytes_sent,omitempty"`
	DurationSeconds float64   `json:"duration_seconds,omitempty"`
}

// DefaultBuffer is the per-subscriber channel depth.
const DefaultBuffer = 100

// Broadcaster fans events out to any number of subscribers. Publishing
// never blocks: a subscriber that stops draining its channel misses
// events instead of stalling the engine. A nil *Broadcaster drops
// everything, so producers never need to nil-check.
type Broadcaster struct {
	mu     sync.RWMutex
	subs   map[int]chan Event
	nextID int
	buffer int
	closed bool
}

// NewBroadcaster creates a broadcaster whose subscribers each get a
// channel of the given depth (DefaultBuffer if depth <= 0).
func NewBroadcaster(depth int) *Broadcaster {
	if depth <= 0 {
		depth = DefaultBuffer
	}
	return &Broadcaster{
		subs:   make(map[int]chan Event),
		buffer: depth,
	}
}

// Subscribe registers a new listener. The returned cancel func
// unregisters it and closes the channel; it is safe to call more than
// once. Subscribing to a closed broadcaster returns an already-closed
// channel.
func (b *Broadcaster) Subscribe() (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan Event, b.buffer)
	if b.closed {
		close(ch)
		return ch, func() {}
	}

	id := b.nextID
	b.nextID++
	b.subs[id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if _, ok := b.subs[id]; ok {
				delete(b.subs, id)
				close(ch)
			}
		})
	}
	return ch, cancel
}

// Publish delivers ev to every subscriber that has room buffered.
func (b *Broadcaster) Publish(ev Event) {
	if b == nil {
		return
	}
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, ch := range b.subs {
		select {
		case ch <- ev:
		default: // subscriber is behind, drop
		}
	}
}

// SubscriberCount returns the number of live subscribers.
func (b *Broadcaster) SubscriberCount() int {
	if b == nil {
		return 0
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Close unregisters every subscriber and closes their channels. Further
// publishes are dropped and further subscribes get closed channels.
func (b *Broadcaster) Close() {
	if b == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}
