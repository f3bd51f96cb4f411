// Package event provides the typed notification bus that connects the core
// services to external collaborators such as the TUI. Publishers never block
// on slow subscribers.
package event

import (
	"sync"

	"glance/internal/logging"
)

// StatusMessage is a human-readable progress notification.
type StatusMessage struct {
	Text string
}

// ErrorOccurred reports a contained, non-fatal error.
type ErrorOccurred struct {
	Text string
}

// PathChanged signals that the current workspace path changed.
type PathChanged struct {
	Path string
}

// SelectionChanged signals that the selected file set changed.
type SelectionChanged struct {
	Paths []string
}

// Lagged tells a subscriber that it missed events because its buffer was
// full. Subscribers holding incremental state should re-list rather than
// trust the stream.
type Lagged struct {
	Dropped int
}

const defaultBuffer = 64

type subscriber struct {
	ch      chan any
	dropped int
}

// Bus fan-outs events to subscribers over buffered channels.
type Bus struct {
	mu     sync.Mutex
	subs   map[int]*subscriber
	nextID int
	closed bool
}

// NewBus creates a new event bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[int]*subscriber)}
}

// Subscribe registers a new subscriber. The returned cancel function
// removes the subscription and closes the channel.
func (b *Bus) Subscribe() (<-chan any, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	sub := &subscriber{ch: make(chan any, defaultBuffer)}
	if b.closed {
		close(sub.ch)
		return sub.ch, func() {}
	}
	b.subs[id] = sub

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if s, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(s.ch)
		}
	}
	return sub.ch, cancel
}

// Publish delivers an event to every subscriber. Subscribers with a full
// buffer miss the event and receive a Lagged notification once they drain.
func (b *Bus) Publish(ev any) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}

	for _, sub := range b.subs {
		if sub.dropped > 0 {
			// Try to flush the lag marker first so ordering of the
			// recovery signal is preserved.
			select {
			case sub.ch <- Lagged{Dropped: sub.dropped}:
				sub.dropped = 0
			default:
				sub.dropped++
				continue
			}
		}
		select {
		case sub.ch <- ev:
		default:
			sub.dropped++
			logging.Debug("event bus subscriber lagging", "dropped", sub.dropped)
		}
	}
}

// Close tears down all subscriber channels.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for id, sub := range b.subs {
		close(sub.ch)
		delete(b.subs, id)
	}
}
