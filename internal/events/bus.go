// Package events provides a publish/subscribe bus for in-process
// notifications between the ingestion path and the display side. The
// dispatcher announces connection changes and condition-text updates;
// the snapshot consumer listens so a new weather condition reaches the
// screen without waiting for the next tick.
//
// The bus is nil-safe: calling Publish or Emit on a nil *Bus is a no-op,
// so components do not need guard checks. Delivery is best-effort and
// never blocks the publisher.
package events

import (
	"sync"
	"sync/atomic"
	"time"
)

// Source constants identify which component published an event.
const (
	// SourceIngest identifies events from the MQTT ingestion dispatcher.
	SourceIngest = "ingest"
	// SourceDashboard identifies events from the snapshot consumer.
	SourceDashboard = "dashboard"
)

// Kind constants describe the type of event within a source.
const (
	// KindConnected signals the broker session came up and
	// subscriptions were (re-)issued.
	// Data: subscribed, failed.
	KindConnected = "connected"
	// KindDisconnected signals the broker session was lost.
	// Data: error (optional).
	KindDisconnected = "disconnected"
	// KindConditionChanged signals a condition text slot was written.
	// Data: topic, value.
	KindConditionChanged = "condition_changed"
	// KindRendered signals the consumer pushed a snapshot to its
	// renderers.
	// Data: stale, renderers.
	KindRendered = "rendered"
)

// Event represents a single notification published by a component.
type Event struct {
	// Timestamp is when the event occurred.
	Timestamp time.Time `json:"ts"`
	// Source identifies the component that published the event.
	Source string `json:"source"`
	// Kind describes the type of event within the source.
	Kind string `json:"kind"`
	// Data holds event-specific key/value pairs.
	Data map[string]any `json:"data,omitempty"`
}

// Bus is a non-blocking broadcast event bus. Subscribers receive events
// on buffered channels; slow subscribers miss events rather than
// blocking publishers.
type Bus struct {
	mu   sync.RWMutex
	subs map[chan Event]struct{}
	// recvToSend maps the receive-only channel returned by Subscribe
	// back to the channel stored in subs so Unsubscribe can accept the
	// caller's <-chan view.
	recvToSend map[<-chan Event]chan Event
	dropped    atomic.Int64
}

// New creates a new event bus ready for use.
func New() *Bus {
	return &Bus{
		subs:       make(map[chan Event]struct{}),
		recvToSend: make(map[<-chan Event]chan Event),
	}
}

// Publish sends an event to all subscribers. If a subscriber's channel
// is full the event is dropped for that subscriber and counted. Safe to
// call on a nil receiver.
func (b *Bus) Publish(e Event) {
	if b == nil {
		return
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.subs {
		select {
		case ch <- e:
		default:
			b.dropped.Add(1)
		}
	}
}

// Emit stamps and publishes an event. Safe to call on a nil receiver.
func (b *Bus) Emit(source, kind string, data map[string]any) {
	if b == nil {
		return
	}
	b.Publish(Event{
		Timestamp: time.Now(),
		Source:    source,
		Kind:      kind,
		Data:      data,
	})
}

// Subscribe returns a channel that receives published events. The
// caller must eventually call Unsubscribe. bufSize controls the channel
// buffer.
func (b *Bus) Subscribe(bufSize int) <-chan Event {
	ch := make(chan Event, bufSize)
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs[ch] = struct{}{}
	b.recvToSend[ch] = ch
	return ch
}

// Unsubscribe removes a subscription and closes the channel. Safe to
// call with a channel that is already unsubscribed.
func (b *Bus) Unsubscribe(ch <-chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	sendCh, ok := b.recvToSend[ch]
	if !ok {
		return
	}
	delete(b.subs, sendCh)
	delete(b.recvToSend, ch)
	close(sendCh)
}

// SubscriberCount returns the number of active subscribers.
func (b *Bus) SubscriberCount() int {
	if b == nil {
		return 0
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Dropped returns how many deliveries were skipped because a
// subscriber's buffer was full.
func (b *Bus) Dropped() int64 {
	if b == nil {
		return 0
	}
	return b.dropped.Load()
}
