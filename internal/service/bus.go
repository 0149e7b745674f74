package service

import "sync"

// Event types.
const (
	EventMap    = "map"    // a map command for the reader's page
	EventSlide  = "slide"  // the active slide changed
	EventError  = "error"  // a render failed
	EventReload = "reload" // the deck file was reloaded
)

// Event is one message for subscribed pages.
type Event struct {
	Type    string
	Map     *MapMessage // EventMap
	Slide   string      // EventSlide
	Index   int         // EventSlide
	Message string      // EventError, EventReload
}

// EventBus is a simple fan-out pub/sub.
type EventBus struct {
	mu     sync.RWMutex
	subs   map[chan Event]struct{}
	buffer int
}

// NewEventBus creates a bus whose subscriber channels hold buffer events.
func NewEventBus(buffer int) *EventBus {
	return &EventBus{subs: make(map[chan Event]struct{}), buffer: buffer}
}

// Publish sends an event to all subscribers (non-blocking).
func (b *EventBus) Publish(e Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.subs {
		select {
		case ch <- e:
		default:
			// subscriber too slow, skip
		}
	}
}

// Subscribe returns a buffered channel that receives events.
func (b *EventBus) Subscribe() chan Event {
	ch := make(chan Event, b.buffer)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (b *EventBus) Unsubscribe(ch chan Event) {
	b.mu.Lock()
	delete(b.subs, ch)
	b.mu.Unlock()
	close(ch)
}

// DefaultBus carries deck-wide events such as reloads.
var DefaultBus = NewEventBus(16)
