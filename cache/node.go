package cache

// entry is an intrusive doubly linked list element owned by a shard.
// Every cached object has one, referenced or idle; the list order is decided
// by the retention policy.
type entry[K comparable, V Storable[K]] struct {
	key K
	val V

	// Intrusive list links: head is MRU, tail is LRU.
	prev *entry[K, V]
	next *entry[K, V]
	// listed is set while the entry is linked into the shard list.
	listed bool

	// idle is set while the object has no references but stays cached.
	idle bool
	// exp is the idle deadline in UnixNano (0 = none).
	exp int64
}

// Key returns the entry key (part of policy.Node).
func (e *entry[K, V]) Key() K { return e.key }

// Value returns a pointer to the stored object (part of policy.Node).
// Only valid under the shard lock.
func (e *entry[K, V]) Value() *V { return &e.val }

func (e *entry[K, V]) obj() *Stored[K] { return e.val.stored() }
