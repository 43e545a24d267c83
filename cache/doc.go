// Package cache provides a generic keyed object cache with reference-counted
// eviction: expensive, logically-singleton resources (file mappings, watchers,
// GPU structures, per-context services) are created once per key, shared by
// every requester, and dropped the instant the last reference is released.
//
// Design
//
//   - Objects embed the Stored mixin, which carries an atomic reference count
//     and a back-reference (lock + owner) to the shard that holds them. The
//     cache map itself holds no reference.
//
//   - GetOrCreate is double-checked: look up under the shard lock; on a miss
//     release the lock, run the factory, re-lock and look again. If another
//     goroutine inserted meanwhile, its object wins and ours is destroyed.
//     The factory never runs under a cache lock.
//
//   - Release that brings the count to zero takes the shard lock and checks
//     the count again. A lookup may have revived the object in between (a
//     "resurrection"); the eviction is then abandoned. Otherwise the entry is
//     removed, and Destroy runs after the lock is released, exactly once.
//
//   - Concurrency: one sync.Mutex per shard, one shard by default. Creation
//     and eviction of a given key are serialised by that lock.
//
//   - Retention (opt-in): Options.Retain keeps up to N unreferenced objects
//     cached, ordered by a pluggable policy (LRU by default, 2Q available),
//     optionally bounded by Options.IdleTTL.
//
//   - Coalescing (opt-in): Options.Coalesce makes concurrent misses for a key
//     share one factory call.
//
//   - Metrics: Options.Metrics receives Hit/Miss/Create/Discard/Resurrect/
//     Evict/Size signals; plug metrics/prom to export them.
//
// Basic usage
//
//	type Texture struct {
//	    cache.Stored[string]
//	    pixels []byte
//	}
//
//	func (t *Texture) Destroy() { /* free GPU memory */ }
//
//	textures := cache.New[string, *Texture](cache.Options[string, *Texture]{})
//	tex, err := textures.GetOrCreate("albedo.png", func() (*Texture, error) {
//	    return loadTexture("albedo.png")
//	})
//	if err != nil {
//	    // subsystem unavailable: log and degrade
//	}
//	defer tex.Release()
//
// Every reference obtained from GetOrCreate, Get or Retain must be released
// exactly once.
package cache
