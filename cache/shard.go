package cache

import (
	"sync"
	"time"

	"github.com/IvanBrykalov/objcache/internal/util"
	"github.com/IvanBrykalov/objcache/policy"
)

// shard is an independent partition of the cache with its own lock, map and
// intrusive list (head=MRU, tail=LRU). Its mutex is the lock shared with every
// object it stores.
type shard[K comparable, V Storable[K]] struct {
	// ---- guarded by mu ----
	mu      sync.Mutex
	m       map[K]*entry[K, V]
	head    *entry[K, V]
	tail    *entry[K, V]
	len     int   // resident entries
	idle    int   // idle, non-permanent entries
	retain  int   // idle bound (0 = evict on last release)
	idleTTL int64 // nanoseconds, 0 = none
	closed  bool

	link *link[K]
	pol  policy.ShardPolicy[K, V]
	opt  *Options[K, V]

	// ---- hot counters (separate cache lines to avoid false sharing) ----
	_      util.CacheLinePad
	hits   util.PaddedAtomicInt64
	misses util.PaddedAtomicInt64
	evicts util.PaddedAtomicUint64
}

func newShard[K comparable, V Storable[K]](opt *Options[K, V]) *shard[K, V] {
	s := &shard[K, V]{
		m:       make(map[K]*entry[K, V]),
		retain:  opt.Retain,
		idleTTL: int64(opt.IdleTTL),
		opt:     opt,
	}
	s.link = &link[K]{mu: &s.mu, owner: s}
	s.pol = opt.Policy.New(shardHooks[K, V]{s: s})
	return s
}

// get looks k up and takes a reference on a hit.
func (s *shard[K, V]) get(k K, permanent bool) (V, bool) {
	s.mu.Lock()
	v, ok, victims := s.lookupLocked(k)
	if ok && permanent {
		v.stored().permanent = true
	}
	s.mu.Unlock()

	destroyAll(victims)
	return v, ok
}

// install inserts a freshly created object unless another goroutine won the
// race for k, in which case the winner is returned (with a new reference) and
// installed is false.
func (s *shard[K, V]) install(k K, v V, permanent bool) (winner V, installed bool, err error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		var zero V
		return zero, false, ErrClosed
	}
	if w, ok, victims := s.acquireLocked(k, false); ok {
		if permanent {
			w.stored().permanent = true
		}
		s.mu.Unlock()
		destroyAll(victims)
		return w, false, nil
	}
	victims := s.insertLocked(k, v, permanent)
	s.mu.Unlock()

	destroyAll(victims)
	return v, true, nil
}

// trim evicts idle entries; with expiredOnly it keeps the ones still within
// IdleTTL.
func (s *shard[K, V]) trim(expiredOnly bool) int {
	s.mu.Lock()
	var victims []*Stored[K]
	now := s.now()
	for e := s.tail; e != nil; {
		prev := e.prev
		if s.evictable(e) && (!expiredOnly || s.expiredLocked(e, now)) {
			reason := EvictTrim
			if expiredOnly {
				reason = EvictTTL
			}
			victims = append(victims, s.evictLocked(e, reason))
		}
		e = prev
	}
	s.opt.Metrics.Size(s.len, s.idle)
	s.mu.Unlock()

	destroyAll(victims)
	return len(victims)
}

// close drops idle and permanent-idle entries and stops retention, so live
// entries are evicted on their last release.
func (s *shard[K, V]) close() {
	s.mu.Lock()
	s.closed = true
	s.retain = 0
	var victims []*Stored[K]
	for e := s.tail; e != nil; {
		prev := e.prev
		if e.idle {
			victims = append(victims, s.evictLocked(e, EvictClosed))
		} else {
			e.obj().permanent = false
		}
		e = prev
	}
	s.opt.Metrics.Size(s.len, s.idle)
	s.mu.Unlock()

	destroyAll(victims)
}

// Len returns the number of resident entries in this shard.
func (s *shard[K, V]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.len
}

func (s *shard[K, V]) idleLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.idle
}

// -------------------- internals (mu held) --------------------

// lookupLocked returns the live object for k with one new reference.
// An expired idle entry is evicted and reported as a miss.
func (s *shard[K, V]) lookupLocked(k K) (v V, ok bool, victims []*Stored[K]) {
	return s.acquireLocked(k, true)
}

// acquireLocked is lookupLocked; record controls hit/miss accounting, which
// the re-check after creation skips.
func (s *shard[K, V]) acquireLocked(k K, record bool) (v V, ok bool, victims []*Stored[K]) {
	e, found := s.m[k]
	if found && e.idle && s.expiredLocked(e, s.now()) {
		victims = append(victims, s.evictLocked(e, EvictTTL))
		found = false
	}
	if !found {
		if record {
			s.misses.Add(1)
			s.opt.Metrics.Miss()
		}
		return v, false, victims
	}

	// The count may be zero here: the object is idle, or its last holder
	// is between Release and the lock. Either way this revives it.
	e.obj().refs.Add(1)
	if e.idle {
		s.wakeLocked(e)
	}
	s.pol.OnGet(e)
	if record {
		s.hits.Add(1)
		s.opt.Metrics.Hit()
	}
	return e.val, true, victims
}

// insertLocked registers v under k with one reference for the caller.
func (s *shard[K, V]) insertLocked(k K, v V, permanent bool) []*Stored[K] {
	o := v.stored()
	if o.owner.Load() != nil {
		panic("cache: factory returned an object that is already cached")
	}
	o.key = k
	o.permanent = permanent
	o.refs.Add(1)
	o.owner.Store(s.link)

	e := &entry[K, V]{key: k, val: v}
	s.m[k] = e

	var victims []*Stored[K]
	if ev := s.pol.OnAdd(e); ev != nil {
		if c := ev.(*entry[K, V]); c != e && s.evictable(c) {
			victims = append(victims, s.evictLocked(c, EvictPolicy))
		}
	}
	victims = append(victims, s.enforceLimitsLocked()...)
	s.opt.Metrics.Size(s.len, s.idle)
	return victims
}

// releaseLocked implements releaser: the object was seen at zero references
// under the lock.
func (s *shard[K, V]) releaseLocked(o *Stored[K]) []*Stored[K] {
	e, ok := s.m[o.key]
	if !ok || e.obj() != o {
		// The key now belongs to a newer object; leave that entry alone.
		o.owner.Store(nil)
		return []*Stored[K]{o}
	}
	if e.idle {
		// A racing release already parked it.
		return nil
	}

	if o.permanent {
		e.idle = true
		return nil
	}
	if s.retain <= 0 {
		victim := s.evictLocked(e, EvictReleased)
		s.opt.Metrics.Size(s.len, s.idle)
		return []*Stored[K]{victim}
	}

	e.idle = true
	s.idle++
	if s.idleTTL > 0 {
		e.exp = s.now() + s.idleTTL
	}
	s.pol.OnUpdate(e)
	victims := s.enforceLimitsLocked()
	s.opt.Metrics.Size(s.len, s.idle)
	return victims
}

func (s *shard[K, V]) resurrected() { s.opt.Metrics.Resurrect() }

// wakeLocked turns an idle entry back into a live one.
func (s *shard[K, V]) wakeLocked(e *entry[K, V]) {
	e.idle = false
	e.exp = 0
	if !e.obj().permanent {
		s.idle--
	}
}

// evictable reports whether e may be dropped without breaking a holder.
func (s *shard[K, V]) evictable(e *entry[K, V]) bool {
	return e.idle && !e.obj().permanent
}

// evictLocked removes e from the shard and returns its object for
// destruction after the lock is released.
func (s *shard[K, V]) evictLocked(e *entry[K, V], reason EvictReason) *Stored[K] {
	o := e.obj()
	if e.idle && !o.permanent {
		s.idle--
	}
	s.pol.OnRemove(e)
	s.removeNode(e)
	if cur, ok := s.m[e.key]; ok && cur == e {
		delete(s.m, e.key)
	}
	o.owner.Store(nil)
	s.evicts.Add(1)
	s.opt.Metrics.Evict(reason)
	if cb := s.opt.OnEvict; cb != nil {
		cb(e.key, e.val, reason)
	}
	return o
}

// enforceLimitsLocked drops idle entries, oldest first, until at most
// retain of them are left. Referenced and permanent entries are skipped.
func (s *shard[K, V]) enforceLimitsLocked() []*Stored[K] {
	var victims []*Stored[K]
	for e := s.tail; e != nil && s.idle > s.retain; {
		prev := e.prev
		if s.evictable(e) {
			victims = append(victims, s.evictLocked(e, EvictPolicy))
		}
		e = prev
	}
	return victims
}

func (s *shard[K, V]) expiredLocked(e *entry[K, V], now int64) bool {
	return e.exp != 0 && now > e.exp
}

func (s *shard[K, V]) now() int64 {
	if s.opt.Clock != nil {
		return s.opt.Clock.NowUnixNano()
	}
	return time.Now().UnixNano()
}

// insertFront inserts e at MRU in O(1).
func (s *shard[K, V]) insertFront(e *entry[K, V]) {
	e.listed = true
	e.prev = nil
	e.next = s.head
	if s.head != nil {
		s.head.prev = e
	}
	s.head = e
	if s.tail == nil {
		s.tail = e
	}
	s.len++
}

// moveToFront promotes e to MRU in O(1).
func (s *shard[K, V]) moveToFront(e *entry[K, V]) {
	if e == s.head || !e.listed {
		return
	}
	if e.prev != nil {
		e.prev.next = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	}
	if s.tail == e {
		s.tail = e.prev
	}
	e.prev = nil
	e.next = s.head
	if s.head != nil {
		s.head.prev = e
	}
	s.head = e
	if s.tail == nil {
		s.tail = e
	}
}

// removeNode unlinks e in O(1). Unlinking twice is a no-op.
func (s *shard[K, V]) removeNode(e *entry[K, V]) {
	if !e.listed {
		return
	}
	e.listed = false
	if e.prev != nil {
		e.prev.next = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	}
	if s.head == e {
		s.head = e.next
	}
	if s.tail == e {
		s.tail = e.prev
	}
	e.prev, e.next = nil, nil
	s.len--
}

func destroyAll[K comparable](victims []*Stored[K]) {
	for _, o := range victims {
		o.destroy()
	}
}

// -------------------- policy hooks --------------------

// shardHooks adapts the shard's list operations to policy.Hooks.
type shardHooks[K comparable, V Storable[K]] struct{ s *shard[K, V] }

func (h shardHooks[K, V]) MoveToFront(x policy.Node[K, V]) { h.s.moveToFront(x.(*entry[K, V])) }
func (h shardHooks[K, V]) PushFront(x policy.Node[K, V])   { h.s.insertFront(x.(*entry[K, V])) }
func (h shardHooks[K, V]) Remove(x policy.Node[K, V])      { h.s.removeNode(x.(*entry[K, V])) }
func (h shardHooks[K, V]) Back() policy.Node[K, V] {
	if h.s.tail == nil {
		return nil
	}
	return h.s.tail
}
func (h shardHooks[K, V]) Len() int { return h.s.len }
