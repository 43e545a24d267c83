// Package collection provides scene-wide buffered collections: subsystems
// register and unregister items at any point of a frame, and consumers see a
// stable snapshot that only changes when the owning context flushes.
package collection

import (
	"log/slog"
	"sync"

	"github.com/IvanBrykalov/objcache/cache"
	"github.com/IvanBrykalov/objcache/event"
	"github.com/IvanBrykalov/objcache/registry"
)

// Collection is the per-context set of T. Obtain it with GetInstance; there
// is one per (context, T) while anyone references it.
//
// Add and Remove are buffered in a DelayedSet. When the context's flush event
// fires, pending changes are applied and OnAdded, OnRemoved and OnFlushed are
// emitted in that order; OnAdded and OnRemoved only when non-empty, OnFlushed
// exactly once per flush.
//
// While it has members or pending changes, the collection keeps a reference
// to itself, so registrations survive their registrants dropping the
// collection. The reference is dropped by the first flush that leaves it
// empty.
type Collection[T comparable] struct {
	cache.Stored[registry.Key]

	ctx registry.Context
	sub event.ID
	log *slog.Logger
	set DelayedSet[T]

	flushMu sync.Mutex // serialises flushes
	mu      sync.Mutex // guards held
	held    bool

	onAdded   event.Event[[]T]
	onRemoved event.Event[[]T]
	onFlushed event.Event[struct{}]
}

// GetInstance returns the collection of T for ctx from the default registry.
// The caller owns one reference and must Release it.
func GetInstance[T comparable](ctx registry.Context) (*Collection[T], error) {
	return registry.GetInstance[Collection[T]](ctx)
}

// Get is GetInstance on a specific registry.
func Get[T comparable](r *registry.Registry, ctx registry.Context) (*Collection[T], error) {
	return registry.Get[Collection[T]](r, ctx)
}

// Init attaches the collection to ctx's flush event.
func (c *Collection[T]) Init(ctx registry.Context) error {
	c.ctx = ctx
	c.log = slog.Default()
	if l, ok := ctx.(interface{ Logger() *slog.Logger }); ok {
		c.log = l.Logger()
	}
	c.sub = ctx.OnFlush().Subscribe(func(struct{}) { c.flush() })
	return nil
}

// Destroy detaches the collection from its context.
func (c *Collection[T]) Destroy() {
	c.ctx.OnFlush().Unsubscribe(c.sub)
}

// Context returns the owning context.
func (c *Collection[T]) Context() registry.Context { return c.ctx }

// Add schedules item to be added on the next flush. Adding an item n times
// takes n removes to take it out.
func (c *Collection[T]) Add(item T) {
	c.set.ScheduleAdd(item)
	c.hold()
}

// Remove schedules item to be removed on the next flush. Removing an item
// that is not present is a no-op.
func (c *Collection[T]) Remove(item T) {
	c.set.ScheduleRemove(item)
	c.hold()
}

// Contains reports whether item is present as of the last flush.
func (c *Collection[T]) Contains(item T) bool { return c.set.Contains(item) }

// Len returns the number of items as of the last flush.
func (c *Collection[T]) Len() int { return c.set.Len() }

// Items returns the items as of the last flush.
func (c *Collection[T]) Items() []T { return c.set.Items() }

// GetAll reports every item as of the last flush.
func (c *Collection[T]) GetAll(fn func(T)) {
	for _, item := range c.set.Items() {
		fn(item)
	}
}

// State reports whether changes are waiting for the next flush.
func (c *Collection[T]) State() State { return c.set.State() }

// OnAdded fires on flush with the items that became present.
func (c *Collection[T]) OnAdded() *event.Event[[]T] { return &c.onAdded }

// OnRemoved fires on flush with the items that are no longer present.
func (c *Collection[T]) OnRemoved() *event.Event[[]T] { return &c.onRemoved }

// OnFlushed fires once per flush, after OnAdded and OnRemoved, even when
// nothing changed.
func (c *Collection[T]) OnFlushed() *event.Event[struct{}] { return &c.onFlushed }

// hold takes the context-held reference. The caller holds one already.
func (c *Collection[T]) hold() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.held {
		c.held = true
		c.Retain()
	}
}

func (c *Collection[T]) flush() {
	if c.Destroyed() {
		return
	}
	c.flushMu.Lock()
	added, removed := c.set.Flush()
	if len(added) > 0 {
		c.onAdded.Emit(added)
	}
	if len(removed) > 0 {
		c.onRemoved.Emit(removed)
	}
	c.onFlushed.Emit(struct{}{})

	drop := false
	c.mu.Lock()
	if c.held && c.set.empty() {
		c.held = false
		drop = true
	}
	c.mu.Unlock()
	c.flushMu.Unlock()

	if len(added)+len(removed) > 0 {
		c.log.Debug("collection: flushed", slog.Int("added", len(added)), slog.Int("removed", len(removed)), slog.Int("len", c.set.Len()))
	}
	if drop {
		c.Release()
	}
}
