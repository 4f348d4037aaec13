// Package events defines the run event stream and a bounded, non-blocking
// bus for delivering it from worker goroutines to a single consumer.
//
// The engine never touches consumer state directly: producers publish,
// exactly one consumer drains. Publish never blocks longer than a bounded
// enqueue, even when the consumer is slow.
package events

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/komyaka/wordstat/internal/models"
)

// Type tags an event.
type Type string

const (
	// TypeProgress reports per-phrase progress while a run is active.
	TypeProgress Type = "progress"
	// TypeWarning reports a recoverable condition (quota exhausted, filter noise).
	TypeWarning Type = "warning"
	// TypeError reports a per-phrase failure that did not stop the run.
	TypeError Type = "error"
	// TypeCompleted ends a run that drained its frontier.
	TypeCompleted Type = "completed"
	// TypeCancelled ends a run stopped by the user.
	TypeCancelled Type = "cancelled"
	// TypeFailed ends a run stopped by a fatal resource error.
	TypeFailed Type = "failed"
)

// Terminal reports whether t ends a run's event stream.
func (t Type) Terminal() bool {
	return t == TypeCompleted || t == TypeCancelled || t == TypeFailed
}

// Event is one message on a run's stream. Terminal events carry the run's
// accumulated results in first-seen order.
type Event struct {
	Type      Type                   `json:"type"`
	RunID     string                 `json:"run_id,omitempty"`
	Phrase    string                 `json:"phrase,omitempty"`
	Message   string                 `json:"message,omitempty"`
	Processed int                    `json:"processed,omitempty"`
	Remaining int                    `json:"remaining,omitempty"`
	Results   []models.KeywordRecord `json:"results,omitempty"`
	Time      time.Time              `json:"time"`
}

// Sink is the delivery point the engine pushes events into. Emit must be
// safe for concurrent callers and must not block on consumer processing.
type Sink interface {
	Emit(Event)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(Event)

// Emit calls f(e).
func (f SinkFunc) Emit(e Event) { f(e) }

// Bus is a bounded multi-producer, single-consumer event queue. When the
// buffer is full, Emit evicts the oldest buffered event to make room rather
// than blocking the producer; evictions are counted.
type Bus struct {
	ch        chan Event
	dropped   atomic.Int64
	closeOnce sync.Once
}

// DefaultBusCapacity buffers enough progress events that eviction only
// happens under a persistently absent consumer.
const DefaultBusCapacity = 1024

// NewBus creates a bus with the given capacity; capacity < 1 uses the default.
func NewBus(capacity int) *Bus {
	if capacity < 1 {
		capacity = DefaultBusCapacity
	}
	return &Bus{ch: make(chan Event, capacity)}
}

// Emit enqueues e without blocking. If the buffer is full, the oldest event
// is discarded; if another producer wins that race, e itself is dropped and
// counted.
func (b *Bus) Emit(e Event) {
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	select {
	case b.ch <- e:
		return
	default:
	}
	// Full: evict one, then retry once.
	select {
	case <-b.ch:
		b.dropped.Add(1)
	default:
	}
	select {
	case b.ch <- e:
	default:
		b.dropped.Add(1)
	}
}

// Events returns the consumer side of the bus. Exactly one goroutine should
// range over it.
func (b *Bus) Events() <-chan Event { return b.ch }

// Dropped returns how many events were discarded because the consumer fell
// behind the buffer.
func (b *Bus) Dropped() int64 { return b.dropped.Load() }

// Close closes the consumer channel. Producers must not Emit after Close.
func (b *Bus) Close() {
	b.closeOnce.Do(func() { close(b.ch) })
}
