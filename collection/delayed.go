package collection

import (
	"slices"
	"sync"
)

// State tells whether a buffered set has changes waiting for the next flush.
type State int

const (
	// Idle means there is nothing to flush.
	Idle State = iota
	// PendingChanges means adds or removes were scheduled since the last flush.
	PendingChanges
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case PendingChanges:
		return "pending"
	default:
		return "unknown"
	}
}

type op[T comparable] struct {
	item T
	add  bool
}

// DelayedSet is a counted set whose changes are buffered: ScheduleAdd and
// ScheduleRemove only record the request, Flush applies them in order.
//
// Membership is counted. Each applied add increments the item's count, each
// applied remove decrements it, and an item is present while its count is
// positive. A remove without a matching add is ignored; counts never go
// negative. It is safe for concurrent use.
type DelayedSet[T comparable] struct {
	mu      sync.Mutex
	counts  map[T]int
	items   []T // present items, in the order they became present
	pending []op[T]
}

// ScheduleAdd records an add for the next Flush.
func (s *DelayedSet[T]) ScheduleAdd(item T) {
	s.mu.Lock()
	s.pending = append(s.pending, op[T]{item: item, add: true})
	s.mu.Unlock()
}

// ScheduleRemove records a remove for the next Flush.
func (s *DelayedSet[T]) ScheduleRemove(item T) {
	s.mu.Lock()
	s.pending = append(s.pending, op[T]{item: item})
	s.mu.Unlock()
}

// ClearScheduled drops every change recorded since the last Flush.
func (s *DelayedSet[T]) ClearScheduled() {
	s.mu.Lock()
	s.pending = nil
	s.mu.Unlock()
}

// Flush applies the scheduled changes. added lists the items that were absent
// before and are present now; removed lists the items that were present
// before and are absent now. An item added and removed within one window
// appears in neither.
func (s *DelayedSet[T]) Flush() (added, removed []T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.pending) == 0 {
		return nil, nil
	}
	if s.counts == nil {
		s.counts = make(map[T]int)
	}

	// Presence before the flush, for every item touched, in first-touch order.
	var touched []T
	before := make(map[T]bool)
	for _, o := range s.pending {
		if _, seen := before[o.item]; !seen {
			before[o.item] = s.counts[o.item] > 0
			touched = append(touched, o.item)
		}
		n := s.counts[o.item]
		switch {
		case o.add:
			s.counts[o.item] = n + 1
		case n > 1:
			s.counts[o.item] = n - 1
		case n == 1:
			delete(s.counts, o.item)
		}
	}
	s.pending = nil

	for _, item := range touched {
		now := s.counts[item] > 0
		switch {
		case now && !before[item]:
			added = append(added, item)
			s.items = append(s.items, item)
		case !now && before[item]:
			removed = append(removed, item)
		}
	}
	if len(removed) > 0 {
		s.items = slices.DeleteFunc(s.items, func(item T) bool { return s.counts[item] <= 0 })
	}
	return added, removed
}

// Contains reports whether item is present as of the last Flush.
func (s *DelayedSet[T]) Contains(item T) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counts[item] > 0
}

// Count returns how many applied adds of item are not yet matched by removes.
func (s *DelayedSet[T]) Count(item T) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counts[item]
}

// Len returns the number of present items as of the last Flush.
func (s *DelayedSet[T]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// Items returns a copy of the present items in the order they were added.
func (s *DelayedSet[T]) Items() []T {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.items)
}

// Pending returns the number of scheduled, not yet flushed changes.
func (s *DelayedSet[T]) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// State reports whether changes are waiting for Flush.
func (s *DelayedSet[T]) State() State {
	if s.Pending() > 0 {
		return PendingChanges
	}
	return Idle
}

// empty reports whether there is nothing present and nothing scheduled.
func (s *DelayedSet[T]) empty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items) == 0 && len(s.pending) == 0
}
