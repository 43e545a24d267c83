// Package event implements a small typed signal: receivers subscribe a
// function, the sender emits a value to every receiver in subscription order.
package event

import (
	"slices"
	"sync"
)

// Handler receives the value passed to Emit.
type Handler[A any] func(A)

// ID identifies one subscription; it is only meaningful to the Event that
// returned it.
type ID uint64

// Event holds the subscriptions of one signal. The zero value is ready to
// use. Subscribe, Unsubscribe and Emit are safe for concurrent use, and a
// handler may subscribe or unsubscribe (itself included) while being called:
// Emit works on a snapshot taken when it starts.
type Event[A any] struct {
	mu   sync.RWMutex
	next ID
	subs []sub[A]
}

type sub[A any] struct {
	id ID
	fn Handler[A]
}

// Subscribe attaches fn and returns the ID to detach it with.
func (e *Event[A]) Subscribe(fn Handler[A]) ID {
	e.mu.Lock()
	e.next++
	id := e.next
	e.subs = append(e.subs, sub[A]{id: id, fn: fn})
	e.mu.Unlock()
	return id
}

// Unsubscribe detaches the subscription with the given id. It reports whether
// the subscription was still attached.
func (e *Event[A]) Unsubscribe(id ID) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	i := slices.IndexFunc(e.subs, func(s sub[A]) bool { return s.id == id })
	if i < 0 {
		return false
	}
	// Copy-on-write: a running Emit may still be iterating the old slice.
	e.subs = slices.Delete(slices.Clone(e.subs), i, i+1)
	return true
}

// Len returns the number of attached subscriptions.
func (e *Event[A]) Len() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.subs)
}

// Emit calls every handler attached when Emit started, sequentially, in
// subscription order.
func (e *Event[A]) Emit(a A) {
	e.mu.RLock()
	subs := e.subs
	e.mu.RUnlock()
	for _, s := range subs {
		s.fn(a)
	}
}
