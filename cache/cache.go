package cache

import (
	"log/slog"
	"reflect"
	"sync/atomic"

	"github.com/IvanBrykalov/objcache/internal/singleflight"
	"github.com/IvanBrykalov/objcache/internal/util"
	"github.com/IvanBrykalov/objcache/policy/lru"
)

// Cache maps keys to lazily created, reference-counted objects. There is at
// most one live object per key; the entry disappears when the object's last
// reference is released (unless retention or permanence keeps it).
// All methods are safe for concurrent use by multiple goroutines.
type Cache[K comparable, V Storable[K]] struct {
	shards []*shard[K, V]
	hash   func(K) uint64
	closed atomic.Bool

	opt Options[K, V]

	// coalesces concurrent misses when Options.Coalesce is set.
	sf singleflight.Group[K, created[V]]
}

type created[V any] struct {
	v   V
	err error
}

// New constructs a cache with the provided Options.
// Defaults:
//   - Shards == 0  -> 1
//   - nil Policy   -> LRU
//   - nil Metrics  -> NoopMetrics
//   - nil Logger   -> slog.Default()
func New[K comparable, V Storable[K]](opt Options[K, V]) *Cache[K, V] {
	if opt.Metrics == nil {
		opt.Metrics = NoopMetrics{}
	}
	if opt.Policy == nil {
		opt.Policy = lru.New[K, V]()
	}
	if opt.Logger == nil {
		opt.Logger = slog.Default()
	}
	if opt.Retain < 0 {
		opt.Retain = 0
	}
	if opt.Hash == nil {
		opt.Hash = util.HashKey[K]
	}

	c := &Cache[K, V]{
		hash: opt.Hash,
		opt:  opt,
	}
	n := util.ShardCount(opt.Shards)
	c.shards = make([]*shard[K, V], n)
	for i := range c.shards {
		c.shards[i] = newShard(&c.opt)
	}
	return c
}

// GetOrCreate returns the object stored under key, creating it with factory
// on a miss. The result carries one reference owned by the caller.
//
// The factory runs without the shard lock. Concurrent misses for the same key
// may each run their factory; the first to insert wins, the others destroy
// their object and return the winner. A factory error, or a nil object, is
// returned as-is and nothing is inserted.
func (c *Cache[K, V]) GetOrCreate(key K, factory Factory[V]) (V, error) {
	return c.getOrCreate(key, false, factory)
}

// GetOrCreatePermanent is GetOrCreate for objects that must stay cached with
// zero references until Close. Permanence sticks to an existing entry too.
func (c *Cache[K, V]) GetOrCreatePermanent(key K, factory Factory[V]) (V, error) {
	return c.getOrCreate(key, true, factory)
}

// Get returns the object stored under key with one new reference, if any.
func (c *Cache[K, V]) Get(key K) (V, bool) {
	if c.closed.Load() {
		var zero V
		return zero, false
	}
	return c.getShard(key).get(key, false)
}

// Len returns the number of cached objects, referenced or idle.
func (c *Cache[K, V]) Len() int {
	total := 0
	for _, s := range c.shards {
		total += s.Len()
	}
	return total
}

// Stats is a point-in-time snapshot of cache counters.
type Stats struct {
	Entries   int
	Idle      int
	Hits      int64
	Misses    int64
	Evictions uint64
}

// Stats sums the per-shard counters.
func (c *Cache[K, V]) Stats() Stats {
	var st Stats
	for _, s := range c.shards {
		st.Entries += s.Len()
		st.Idle += s.idleLen()
		st.Hits += s.hits.Load()
		st.Misses += s.misses.Load()
		st.Evictions += s.evicts.Load()
	}
	return st
}

// Trim destroys every idle, non-permanent object and returns how many.
func (c *Cache[K, V]) Trim() int {
	n := 0
	for _, s := range c.shards {
		n += s.trim(false)
	}
	return n
}

// Expire destroys idle objects whose IdleTTL has passed and returns how many.
func (c *Cache[K, V]) Expire() int {
	n := 0
	for _, s := range c.shards {
		n += s.trim(true)
	}
	return n
}

// Close stops the cache: idle and permanent-idle objects are destroyed,
// permanence is cleared, and objects still referenced are evicted on their
// last Release. Later lookups fail with ErrClosed.
func (c *Cache[K, V]) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	for _, s := range c.shards {
		s.close()
	}
	return nil
}

// ---- helpers ----

func (c *Cache[K, V]) getOrCreate(key K, permanent bool, factory Factory[V]) (V, error) {
	var zero V
	if factory == nil {
		return zero, ErrNoFactory
	}
	if c.closed.Load() {
		return zero, ErrClosed
	}

	s := c.getShard(key)
	if v, ok := s.get(key, permanent); ok {
		return v, nil
	}
	if !c.opt.Coalesce {
		return c.create(s, key, permanent, factory)
	}

	for {
		leader := false
		res, _ := c.sf.Do(key, func() created[V] {
			leader = true
			v, err := c.create(s, key, permanent, factory)
			return created[V]{v: v, err: err}
		})
		if leader || res.err != nil {
			return res.v, res.err
		}
		// The leader's reference belongs to the leader; take our own. If the
		// object is already gone, start over.
		if v, ok := s.get(key, permanent); ok {
			return v, nil
		}
	}
}

// create runs the factory outside the lock and installs the result.
func (c *Cache[K, V]) create(s *shard[K, V], key K, permanent bool, factory Factory[V]) (V, error) {
	var zero V
	v, err := factory()
	if err == nil && isNil(v) {
		err = ErrNilObject
	}
	c.opt.Metrics.Create(err == nil)
	if err != nil {
		c.opt.Logger.Debug("cache: create failed", slog.Any("key", key), slog.Any("err", err))
		return zero, err
	}

	o := v.stored()
	o.bind(v)
	winner, installed, err := s.install(key, v, permanent)
	if !installed {
		// Never published: no one else can hold a reference to it.
		o.destroy()
		if err != nil {
			return zero, err
		}
		c.opt.Metrics.Discard()
		c.opt.Logger.Debug("cache: discarded object that lost the creation race", slog.Any("key", key))
	}
	return winner, nil
}

// getShard picks a shard by hashing the key; a single shard skips hashing.
func (c *Cache[K, V]) getShard(k K) *shard[K, V] {
	if len(c.shards) == 1 {
		return c.shards[0]
	}
	return c.shards[util.ShardIndex(c.hash(k), len(c.shards))]
}

// isNil reports whether v is a nil interface or a typed nil pointer.
func isNil[V any](v V) bool {
	rv := reflect.ValueOf(any(v))
	if !rv.IsValid() {
		return true
	}
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		return rv.IsNil()
	}
	return false
}
