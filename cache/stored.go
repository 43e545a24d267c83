package cache

import (
	"sync"
	"sync/atomic"
)

// Stored is the mixin every cacheable object embeds. It carries the external
// reference count and the back-reference to the cache shard holding the
// object. The zero value is an unreferenced, uncached object.
//
// Reference protocol: GetOrCreate and Get hand out one reference; each
// additional holder calls Retain; every reference is dropped with exactly one
// Release. When the count reaches zero the object either stays cached as idle
// (permanent entries, or retention enabled) or is removed from its cache and
// destroyed.
type Stored[K comparable] struct {
	refs atomic.Int64
	dead atomic.Bool

	// owner is the link of the shard currently holding the object; it is
	// written under that shard's lock and read lock-free by Release.
	owner atomic.Pointer[link[K]]

	// key and permanent are written under the owner's lock before the object
	// is published and only read under it afterwards.
	key       K
	permanent bool

	// self is the outer object, set before the object is shared, so that the
	// Destroy hook can be found from the mixin.
	self any
}

// link is the handle an object keeps to its owning shard: the shard's mutex
// plus enough of the shard to remove the entry. It is not an owning
// reference to the cache.
type link[K comparable] struct {
	mu    *sync.Mutex
	owner releaser[K]
}

// releaser is implemented by the shard.
type releaser[K comparable] interface {
	// releaseLocked is called with mu held after the object was seen at zero
	// references. It returns the objects that must be destroyed once mu is
	// released (the object itself, retention victims, or nothing).
	releaseLocked(s *Stored[K]) []*Stored[K]
	// resurrected reports an eviction aborted because a lookup took a new
	// reference in the meantime.
	resurrected()
}

func (s *Stored[K]) stored() *Stored[K] { return s }

// Retain adds a reference. The caller must already hold one.
func (s *Stored[K]) Retain() {
	if s.refs.Add(1) < 2 {
		panic("cache: Retain without a held reference")
	}
}

// Release drops a reference. The release that brings the count to zero runs
// the eviction protocol and, if the object is evicted, its Destroy hook.
func (s *Stored[K]) Release() {
	n := s.refs.Add(-1)
	switch {
	case n > 0:
		return
	case n < 0:
		panic("cache: Release without a matching reference")
	}
	s.outOfScope()
}

// RefCount returns the current number of external references.
func (s *Stored[K]) RefCount() int64 { return s.refs.Load() }

// Cached reports whether the object is currently registered in a cache.
func (s *Stored[K]) Cached() bool { return s.owner.Load() != nil }

// CacheKey returns the key the object was stored under. It is meaningful
// only for objects that were inserted by a cache.
func (s *Stored[K]) CacheKey() K { return s.key }

// Destroyed reports whether the Destroy hook has run.
func (s *Stored[K]) Destroyed() bool { return s.dead.Load() }

// outOfScope is the eviction protocol. The count was observed at zero, but a
// cache hit may bump it again before the shard lock is taken; the re-check
// under the lock decides.
func (s *Stored[K]) outOfScope() {
	l := s.owner.Load()
	if l == nil {
		s.destroy()
		return
	}

	l.mu.Lock()
	if s.owner.Load() != l {
		// Another release already evicted the object.
		l.mu.Unlock()
		if s.refs.Load() == 0 {
			s.destroy()
		}
		return
	}
	if s.refs.Load() > 0 {
		l.mu.Unlock()
		l.owner.resurrected()
		return
	}
	victims := l.owner.releaseLocked(s)
	l.mu.Unlock()

	for _, v := range victims {
		v.destroy()
	}
}

// bind records the outer object. First caller wins.
func (s *Stored[K]) bind(self any) {
	if s.self == nil {
		s.self = self
	}
}

// destroy runs the Destroy hook at most once.
func (s *Stored[K]) destroy() {
	if !s.dead.CompareAndSwap(false, true) {
		return
	}
	if d, ok := s.self.(Destroyer); ok {
		d.Destroy()
	}
}

// Detached takes the first reference on an object that is not going to be
// cached, so that its final Release destroys it. Subsystems use it for their
// uncached open path.
func Detached[K comparable, V Storable[K]](v V) V {
	s := v.stored()
	s.bind(v)
	s.refs.Add(1)
	return v
}
