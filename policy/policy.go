// Package policy defines the ordering contract used by a cache shard to decide
// which unreferenced (idle) objects to drop when retention is enabled.
//
// A cache normally evicts an object the moment its last reference is
// released. With Options.Retain > 0 the shard instead parks up to Retain idle
// objects and asks the policy which one to give up when that bound is
// exceeded. Referenced objects are never evicted, whatever the policy says.
package policy

// Node is the minimal contract a cache entry must satisfy for a policy.
// It provides read-only access to the key and a pointer to the stored object.
type Node[K comparable, V any] interface {
	Key() K
	Value() *V
}

// Hooks expose O(1) list operations that a policy can use to manipulate
// the shard's intrusive MRU/LRU list. Implementations are provided by the shard.
//
// Concurrency: all hook calls happen under the shard lock.
// Hooks manage only the list; the shard owns the key->entry map.
type Hooks[K comparable, V any] interface {
	// MoveToFront promotes the node to MRU.
	MoveToFront(Node[K, V])
	// PushFront inserts the node at MRU (used on admission).
	PushFront(Node[K, V])
	// Remove detaches the node from the list.
	Remove(Node[K, V])
	// Back returns the current LRU node (or nil if empty).
	Back() Node[K, V]
	// Len returns the number of resident nodes in the shard.
	Len() int
}

// ShardPolicy is a per-shard policy instance bound to shard hooks.
// All methods are invoked under the shard lock.
//
// Semantics:
//   - OnAdd is called when an object is inserted. It may return a victim
//     candidate; the shard drops it only if it is idle and not permanent.
//   - OnGet is called on every cache hit.
//   - OnUpdate is called when an entry becomes idle (its last reference
//     was released but the shard keeps it).
//   - OnRemove notifies that the shard is dropping the node.
type ShardPolicy[K comparable, V any] interface {
	OnAdd(Node[K, V]) (evict Node[K, V])
	OnGet(Node[K, V])
	OnUpdate(Node[K, V])
	OnRemove(Node[K, V])
}

// Policy is a factory that creates shard-local policy instances
// bound to a particular shard's hooks.
type Policy[K comparable, V any] interface {
	New(Hooks[K, V]) ShardPolicy[K, V]
}
