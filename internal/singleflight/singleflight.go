// Package singleflight coalesces concurrent calls that share a key.
package singleflight

import "sync"

// Group coalesces concurrent function calls for the same key K so that
// the supplied fn is executed once per flight. Other concurrent callers
// block until the leader publishes its result.
//
// Concurrency notes:
//   - The first caller for a given key becomes the leader and runs fn.
//   - Followers wait on c.done. Publishing val happens-before close(c.done),
//     so reads after <-done observe the final value.
//   - There is no cancellation: object creation is synchronous and bounded
//     by the factory itself.
type Group[K comparable, V any] struct {
	mu sync.Mutex
	m  map[K]*call[V]
}

type call[V any] struct {
	done chan struct{} // closed when val is published
	val  V
	dups int
}

// Do runs fn once for the given key. Concurrent calls with the same key
// wait for the leader and receive its value; shared reports whether the
// value was handed to more than one caller.
func (g *Group[K, V]) Do(key K, fn func() V) (v V, shared bool) {
	g.mu.Lock()
	if g.m == nil {
		g.m = make(map[K]*call[V])
	}
	if c, ok := g.m[key]; ok {
		c.dups++
		g.mu.Unlock()
		<-c.done
		return c.val, true
	}

	c := &call[V]{done: make(chan struct{})}
	g.m[key] = c
	g.mu.Unlock()

	// A panicking fn must not leave followers blocked forever.
	defer func() {
		g.mu.Lock()
		delete(g.m, key)
		shared = c.dups > 0
		g.mu.Unlock()
		close(c.done)
	}()

	c.val = fn()
	return c.val, false
}

// InFlight reports how many keys currently have a running leader.
func (g *Group[K, V]) InFlight() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.m)
}
