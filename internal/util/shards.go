package util

import (
	"math/bits"
	"runtime"
)

// maxShards bounds the automatic shard count.
const maxShards = 256

// ShardCount resolves a requested shard count:
//   - n == 0 -> 1 (one lock for the whole cache)
//   - n < 0  -> nextPow2(2*GOMAXPROCS), clamped to [1..256]
//   - n > 0  -> rounded up to the next power of two
func ShardCount(n int) int {
	switch {
	case n == 0:
		return 1
	case n < 0:
		return min(nextPow2(max(2*runtime.GOMAXPROCS(0), 1)), maxShards)
	default:
		return nextPow2(n)
	}
}

// ShardIndex maps a 64-bit hash to a shard index. Counts from ShardCount are
// powers of two and take the mask path; other counts fall back to modulo.
func ShardIndex(hash uint64, shards int) int {
	if shards <= 1 {
		return 0
	}
	if shards&(shards-1) == 0 {
		return int(hash & uint64(shards-1))
	}
	return int(hash % uint64(shards))
}

// nextPow2 returns the smallest power of two >= n, and 1 for n <= 1.
func nextPow2(n int) int {
	if n <= 1 {
		return 1
	}
	return 1 << bits.Len(uint(n-1))
}
