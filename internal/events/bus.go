// Package events distributes recording lifecycle events to subscribers.
//
// Publish never blocks: if a subscriber's channel is full the event is dropped
// for that subscriber and counted. The control loop publishes from its own
// goroutine, so a slow consumer (MQTT, metrics) can never stall recording.
//
//	bus := events.New()
//	defer bus.Close()
//
//	ch := make(chan events.Event, 16)
//	bus.Subscribe("metrics", ch)
//
//	bus.Publish(events.Event{Type: events.TypeStarted, RunID: id})
package events

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

// Type identifies an event
type Type string

const (
	// TypeTransition is a controller state change
	TypeTransition Type = "transition"
	// TypeStarted is emitted once the pipeline is PLAYING
	TypeStarted Type = "started"
	// TypeFinished is emitted when a session stopped and its file is closed
	TypeFinished Type = "finished"
	// TypeFailed is emitted when a session failed
	TypeFailed Type = "failed"
	// TypeVerified is emitted after the output file was inspected
	TypeVerified Type = "verified"
)

// Event is a lifecycle notification. Fields not relevant to Type are zero.
type Event struct {
	Type      Type      `json:"type"`
	RunID     string    `json:"run_id"`
	Timestamp time.Time `json:"timestamp"`

	From   string `json:"from,omitempty"`
	To     string `json:"to,omitempty"`
	Reason string `json:"reason,omitempty"`

	Path          string  `json:"path,omitempty"`
	Codec         string  `json:"codec,omitempty"`
	Cause         string  `json:"cause,omitempty"`
	BytesWritten  uint64  `json:"bytes_written,omitempty"`
	Warnings      uint64  `json:"warnings,omitempty"`
	DrainSeconds  float64 `json:"drain_seconds,omitempty"`
	DurationMS    int64   `json:"duration_ms,omitempty"`
	Tracks        int     `json:"tracks,omitempty"`
	Error         string  `json:"error,omitempty"`
	ErrorCategory string  `json:"error_category,omitempty"`
}

var (
	// ErrSubscriberExists is returned when Subscribe is called with a duplicate id
	ErrSubscriberExists = errors.New("events: subscriber id already exists")
	// ErrSubscriberNotFound is returned when Unsubscribe is called with unknown id
	ErrSubscriberNotFound = errors.New("events: subscriber id not found")
	// ErrBusClosed is returned when operations are attempted on a closed bus
	ErrBusClosed = errors.New("events: bus is closed")
)

// Stats contains global and per-subscriber counters
type Stats struct {
	Published   uint64
	Sent        uint64
	Dropped     uint64
	Subscribers map[string]SubscriberStats
}

// SubscriberStats tracks delivery for one subscriber
type SubscriberStats struct {
	Sent    uint64
	Dropped uint64
}

type subscriber struct {
	ch      chan<- Event
	sent    atomic.Uint64
	dropped atomic.Uint64
}

// Bus fans events out to subscribers with a drop policy
type Bus struct {
	mu          sync.RWMutex
	subscribers map[string]*subscriber
	closed      bool

	published atomic.Uint64
}

// New creates an empty bus
func New() *Bus {
	return &Bus{subscribers: make(map[string]*subscriber)}
}

// Subscribe registers ch under id
func (b *Bus) Subscribe(id string, ch chan<- Event) error {
	if ch == nil {
		return errors.New("events: subscriber channel cannot be nil")
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrBusClosed
	}
	if _, exists := b.subscribers[id]; exists {
		return ErrSubscriberExists
	}
	b.subscribers[id] = &subscriber{ch: ch}
	return nil
}

// Unsubscribe removes a subscriber
func (b *Bus) Unsubscribe(id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrBusClosed
	}
	if _, exists := b.subscribers[id]; !exists {
		return ErrSubscriberNotFound
	}
	delete(b.subscribers, id)
	return nil
}

// Publish delivers ev to every subscriber without blocking. A zero Timestamp
// is set to now. Publishing on a closed bus is a no-op.
func (b *Bus) Publish(ev Event) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return
	}
	b.published.Add(1)

	for _, s := range b.subscribers {
		select {
		case s.ch <- ev:
			s.sent.Add(1)
		default:
			s.dropped.Add(1)
		}
	}
}

// Stats returns a snapshot of the counters
func (b *Bus) Stats() Stats {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := Stats{
		Published:   b.published.Load(),
		Subscribers: make(map[string]SubscriberStats, len(b.subscribers)),
	}
	for id, s := range b.subscribers {
		sent, dropped := s.sent.Load(), s.dropped.Load()
		out.Sent += sent
		out.Dropped += dropped
		out.Subscribers[id] = SubscriberStats{Sent: sent, Dropped: dropped}
	}
	return out
}

// Close stops the bus. Subscriber channels are not closed: each subscriber
// owns its channel. Idempotent.
func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}
