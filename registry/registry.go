// Package registry keeps one instance of a type per context: "the shared X
// for this scene". Instances live in a process-wide keyed object cache under
// (context, type) and disappear as soon as nobody references them.
package registry

import (
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"sync"

	"github.com/IvanBrykalov/objcache/cache"
	"github.com/IvanBrykalov/objcache/event"
	"github.com/IvanBrykalov/objcache/internal/util"
)

// ErrNilContext is returned when an instance is requested for a nil context.
var ErrNilContext = errors.New("registry: nil context")

// Context is a long-lived owner that per-context instances attach to.
// Implementations are compared by identity, so they should be pointers.
type Context interface {
	// OnFlush fires at the context's synchronisation points (once per frame,
	// once per simulation step). It must return the same event every time.
	OnFlush() *event.Event[struct{}]
}

// Key identifies one instance: the owning context and the concrete type.
// The key references the context, so a context stays reachable while any
// instance derived from it is cached.
type Key struct {
	Context Context
	Type    reflect.Type
}

// Hash64 lets sharded caches place keys without knowing the context type.
func (k Key) Hash64() uint64 {
	return util.MergeHashes(identityHash(k.Context), identityHash(k.Type))
}

func identityHash(v any) uint64 {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.UnsafePointer, reflect.Chan, reflect.Map, reflect.Func:
		return util.HashUint64(uint64(rv.Pointer()))
	case reflect.Invalid:
		return 0
	}
	return util.HashKey(fmt.Sprintf("%T:%v", v, v))
}

func (k Key) String() string { return fmt.Sprintf("%v@%p", k.Type, k.Context) }

// Instance is what the registry stores: any pointer embedding
// cache.Stored[Key].
type Instance interface {
	cache.Storable[Key]
}

// Singleton is the constraint on per-context types: P is *E, embeds
// cache.Stored[Key] and initialises itself from its context.
//
// Init runs once, outside any registry lock, before the instance is shared.
// If Init subscribes to context events, Destroy must undo it: an instance
// that loses a creation race is destroyed without ever being used.
type Singleton[E any] interface {
	*E
	cache.Storable[Key]
	Init(ctx Context) error
}

// Options configures a Registry. Zero values are safe.
type Options struct {
	// Shards partitions the instance cache (see cache.Options.Shards).
	Shards int
	// Coalesce makes concurrent first requests share one Init.
	Coalesce bool
	Metrics  cache.Metrics
	Logger   *slog.Logger
}

// Registry maps (context, type) pairs to live instances.
type Registry struct {
	instances *cache.Cache[Key, Instance]
	log       *slog.Logger
}

// New returns an empty registry.
func New(opt Options) *Registry {
	if opt.Logger == nil {
		opt.Logger = slog.Default()
	}
	return &Registry{
		instances: cache.New[Key, Instance](cache.Options[Key, Instance]{
			Shards:   opt.Shards,
			Coalesce: opt.Coalesce,
			Metrics:  opt.Metrics,
			Logger:   opt.Logger,
		}),
		log: opt.Logger,
	}
}

// Default returns the process-wide registry, created on first use and never
// torn down.
var Default = sync.OnceValue(func() *Registry { return New(Options{}) })

// Len returns the number of live instances.
func (r *Registry) Len() int { return r.instances.Len() }

// Get returns the instance of P for ctx, creating it with new(E) and Init on
// first request. The caller owns one reference and must Release it.
// Requests for the same (ctx, P) made while a reference is held return the
// identical pointer.
func Get[E any, P Singleton[E]](r *Registry, ctx Context) (P, error) {
	if isNil(ctx) {
		return nil, ErrNilContext
	}
	key := Key{Context: ctx, Type: reflect.TypeFor[P]()}
	inst, err := r.instances.GetOrCreate(key, func() (Instance, error) {
		p := P(new(E))
		if err := p.Init(ctx); err != nil {
			return nil, err
		}
		return p, nil
	})
	if err != nil {
		r.log.Warn("registry: instance unavailable", slog.String("key", key.String()), slog.Any("err", err))
		return nil, fmt.Errorf("registry: create %v: %w", key.Type, err)
	}
	return inst.(P), nil
}

// GetInstance is Get on the Default registry.
func GetInstance[E any, P Singleton[E]](ctx Context) (P, error) {
	return Get[E, P](Default(), ctx)
}

func isNil(ctx Context) bool {
	if ctx == nil {
		return true
	}
	rv := reflect.ValueOf(ctx)
	return rv.Kind() == reflect.Pointer && rv.IsNil()
}
