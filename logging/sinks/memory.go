package sinks

import (
	"context"
	"sync"

	"arena-bots/server/logging"
)

// MemorySink keeps the most recent events in a ring and counts every event
// it has seen by type. The debug surface serves it at /events; tests use it
// to assert on what a run published.
type MemorySink struct {
	mu       sync.RWMutex
	ring     []logging.Event
	next     int
	full     bool
	capacity int
	counts   map[logging.EventType]uint64
}

// NewMemorySink keeps up to capacity events. Zero or less keeps everything.
func NewMemorySink(capacity int) *MemorySink {
	if capacity < 0 {
		capacity = 0
	}
	return &MemorySink{capacity: capacity, counts: make(map[logging.EventType]uint64)}
}

func (s *MemorySink) Write(event logging.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counts[event.Type]++
	event = cloneForMemory(event)
	if s.capacity == 0 || len(s.ring) < s.capacity {
		s.ring = append(s.ring, event)
		return nil
	}
	s.ring[s.next] = event
	s.next = (s.next + 1) % s.capacity
	s.full = true
	return nil
}

// Events returns the retained events, oldest first.
func (s *MemorySink) Events() []logging.Event {
	return s.Select(nil)
}

// Select returns the retained events accepted by match, oldest first. A nil
// match accepts everything.
func (s *MemorySink) Select(match func(logging.Event) bool) []logging.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]logging.Event, 0, len(s.ring))
	visit := func(events []logging.Event) {
		for _, e := range events {
			if match == nil || match(e) {
				out = append(out, e)
			}
		}
	}
	if s.full {
		visit(s.ring[s.next:])
		visit(s.ring[:s.next])
	} else {
		visit(s.ring)
	}
	return out
}

// OfType returns retained events of any of the given types.
func (s *MemorySink) OfType(types ...logging.EventType) []logging.Event {
	return s.Select(func(e logging.Event) bool {
		for _, t := range types {
			if e.Type == t {
				return true
			}
		}
		return false
	})
}

// OfCategory returns retained events of one category, e.g.
// logging.CategoryNavigation.
func (s *MemorySink) OfCategory(category string) []logging.Event {
	return s.Select(func(e logging.Event) bool { return e.Category == category })
}

// ForActor returns retained events whose actor is ref.
func (s *MemorySink) ForActor(ref logging.EntityRef) []logging.Event {
	return s.Select(func(e logging.Event) bool { return e.Actor == ref })
}

// Warnings returns retained events at warn severity or above. Degraded
// navigation queries (stack overflow, link pool exhaustion) land here.
func (s *MemorySink) Warnings() []logging.Event {
	return s.Select(func(e logging.Event) bool { return e.Severity >= logging.SeverityWarn })
}

// Last returns the most recent retained event of type t.
func (s *MemorySink) Last(t logging.EventType) (logging.Event, bool) {
	events := s.OfType(t)
	if len(events) == 0 {
		return logging.Event{}, false
	}
	return events[len(events)-1], true
}

// Counts returns how many events of each type were written, including those
// that have since left the ring.
func (s *MemorySink) Counts() map[logging.EventType]uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	counts := make(map[logging.EventType]uint64, len(s.counts))
	for k, v := range s.counts {
		counts[k] = v
	}
	return counts
}

func (s *MemorySink) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ring = s.ring[:0]
	s.next = 0
	s.full = false
	s.counts = make(map[logging.EventType]uint64)
}

func (s *MemorySink) Close(context.Context) error {
	return nil
}

func cloneForMemory(event logging.Event) logging.Event {
	cloned := event
	if len(event.Targets) > 0 {
		cloned.Targets = append([]logging.EntityRef(nil), event.Targets...)
	}
	if event.Extra != nil {
		copied := make(map[string]any, len(event.Extra))
		for k, v := range event.Extra {
			copied[k] = v
		}
		cloned.Extra = copied
	}
	return cloned
}
