package cache

import (
	"log/slog"
	"time"

	"github.com/IvanBrykalov/objcache/policy"
)

// EvictReason explains why an entry was removed.
type EvictReason int

const (
	// EvictReleased: the last reference was released.
	EvictReleased EvictReason = iota
	// EvictPolicy: an idle entry was dropped to honour Options.Retain.
	EvictPolicy
	// EvictTTL: an idle entry outlived Options.IdleTTL.
	EvictTTL
	// EvictTrim: dropped by Cache.Trim.
	EvictTrim
	// EvictClosed: dropped by Cache.Close.
	EvictClosed
)

func (r EvictReason) String() string {
	switch r {
	case EvictReleased:
		return "released"
	case EvictPolicy:
		return "policy"
	case EvictTTL:
		return "ttl"
	case EvictTrim:
		return "trim"
	case EvictClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Metrics exposes cache-level observability hooks.
// A NoopMetrics implementation is provided and used by default.
type Metrics interface {
	Hit()
	Miss()
	// Create reports the outcome of one factory call.
	Create(ok bool)
	// Discard reports a created object that lost the insertion race.
	Discard()
	// Resurrect reports an eviction aborted by a concurrent lookup.
	Resurrect()
	Evict(reason EvictReason)
	Size(entries, idle int)
}

// Clock provides time in UnixNano; useful for deterministic tests.
type Clock interface{ NowUnixNano() int64 }

// Options configures the cache. Zero values are safe; New applies defaults:
//   - Shards == 0  => one shard, i.e. a single lock for the whole cache
//   - nil Policy   => LRU (only consulted when Retain > 0)
//   - nil Metrics  => NoopMetrics
//   - nil Logger   => slog.Default()
type Options[K comparable, V any] struct {
	// Shards partitions keys across independently locked shards.
	// Negative means auto (≈ 2*GOMAXPROCS); positive values round up to a
	// power of two. All per-key guarantees hold within a shard.
	Shards int

	// Hash maps keys to shards. Nil uses the built-in FNV hash, which
	// supports strings, integers and keys implementing Hash64() uint64.
	Hash func(K) uint64

	// Coalesce makes concurrent misses for the same key share a single
	// factory call instead of racing and discarding the losers.
	Coalesce bool

	// Retain keeps up to Retain unreferenced objects (per shard) cached
	// instead of evicting them on their last Release. 0 disables retention.
	Retain int
	// Policy orders idle entries when Retain is exceeded.
	Policy policy.Policy[K, V]
	// IdleTTL bounds how long a retained idle entry stays usable (0 = forever).
	IdleTTL time.Duration
	// Clock allows overriding the time source (tests). Nil => time.Now().
	Clock Clock

	// OnEvict is called under the shard lock for every removed entry, before
	// the object is destroyed. Keep it lightweight and do not call back
	// into the cache.
	OnEvict func(k K, v V, reason EvictReason)
	Metrics Metrics
	Logger  *slog.Logger
}
