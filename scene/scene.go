// Package scene provides the context that per-scene services and collections
// attach to. A Context has a name, a logger and a flush event that the owner
// fires once per frame or synchronisation point.
package scene

import (
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/IvanBrykalov/objcache/event"
	"github.com/IvanBrykalov/objcache/registry"
)

// Context is a scene-wide owner. Use it through a pointer; registry keys
// compare contexts by identity.
type Context struct {
	name string
	log  *slog.Logger

	flushMu sync.Mutex
	onFlush event.Event[struct{}]
	frame   atomic.Uint64
}

var _ registry.Context = (*Context)(nil)

// Option configures a Context.
type Option func(*Context)

// WithLogger sets the logger handed to services of this context.
func WithLogger(l *slog.Logger) Option {
	return func(c *Context) {
		if l != nil {
			c.log = l
		}
	}
}

// New creates a scene context.
func New(name string, opts ...Option) *Context {
	c := &Context{name: name, log: slog.Default()}
	for _, opt := range opts {
		opt(c)
	}
	c.log = c.log.With(slog.String("scene", name))
	return c
}

// Name returns the scene name.
func (c *Context) Name() string { return c.name }

// Logger returns the scene logger.
func (c *Context) Logger() *slog.Logger { return c.log }

// OnFlush returns the event fired by Flush.
func (c *Context) OnFlush() *event.Event[struct{}] { return &c.onFlush }

// Frame returns how many flushes have completed.
func (c *Context) Frame() uint64 { return c.frame.Load() }

// Flush fires the flush event. Flushes are serialised; a handler must not
// call Flush on the same context.
func (c *Context) Flush() {
	c.flushMu.Lock()
	defer c.flushMu.Unlock()
	c.onFlush.Emit(struct{}{})
	c.frame.Add(1)
}
