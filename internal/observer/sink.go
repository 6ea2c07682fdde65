// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package observer

import (
	"context"
	"sync"

	"github.com/ManuGH/varbridge/internal/metrics"
	"github.com/ManuGH/varbridge/internal/store"
)

// DefaultSinkCapacity bounds each observer's outbound buffer.
const DefaultSinkCapacity = 64

// Event is one delivery to an observer: the store update plus delivery
// bookkeeping.
type Event struct {
	Update store.Update
	// Initial marks a snapshot event sent for include_initial watches.
	Initial bool
	// Dropped counts events dropped from this sink before this delivery.
	// Surfaced to clients in event metadata.
	Dropped uint64
}

// Sink is a bounded single-consumer outbound queue. Producers never
// block: on overflow the oldest event is dropped and the drop is
// surfaced in the next delivered event. This favors freshness over
// completeness, and guarantees a stalled consumer cannot block store
// mutations.
type Sink struct {
	mu       sync.Mutex
	buf      []Event
	capacity int
	dropped  uint64
	closed   bool
	ready    chan struct{}
}

// NewSink creates a sink with the given capacity (0 = default).
func NewSink(capacity int) *Sink {
	if capacity <= 0 {
		capacity = DefaultSinkCapacity
	}
	return &Sink{
		capacity: capacity,
		ready:    make(chan struct{}, 1),
	}
}

// Enqueue appends an event, dropping the oldest on overflow.
func (s *Sink) Enqueue(e Event) {
	s.enqueue(e, true)
}

// enqueueUnbounded appends without the capacity check. Used for initial
// snapshot events queued during watch registration, which must never be
// dropped.
func (s *Sink) enqueueUnbounded(e Event) {
	s.enqueue(e, false)
}

func (s *Sink) enqueue(e Event, bounded bool) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	if bounded && len(s.buf) >= s.capacity {
		// drop_oldest: overwrite-from-front keeps the freshest events.
		n := copy(s.buf, s.buf[1:])
		s.buf = s.buf[:n]
		s.dropped++
		metrics.IncEventDrop("overflow")
	}
	s.buf = append(s.buf, e)
	s.mu.Unlock()
	s.wake()
}

func (s *Sink) wake() {
	select {
	case s.ready <- struct{}{}:
	default:
	}
}

// Next blocks until an event is available or ctx ends. The returned
// event carries the number of drops since the previous delivery.
func (s *Sink) Next(ctx context.Context) (Event, bool) {
	for {
		s.mu.Lock()
		if len(s.buf) > 0 {
			e := s.buf[0]
			s.buf = s.buf[1:]
			e.Dropped = s.dropped
			s.dropped = 0
			s.mu.Unlock()
			return e, true
		}
		closed := s.closed
		s.mu.Unlock()
		if closed {
			return Event{}, false
		}
		select {
		case <-ctx.Done():
			return Event{}, false
		case <-s.ready:
		}
	}
}

// Close wakes the consumer and rejects further events. Idempotent.
func (s *Sink) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.wake()
}
