// Package util contains internal helpers (hashing, sharding, padding).
//revive:disable:var-naming  // allow 'util' as an internal helpers package name
package util

import (
	"fmt"
)

// Hasher is implemented by composite keys that know how to hash themselves
// (e.g. a (context, type) pair). HashKey prefers it over the built-in cases.
type Hasher interface {
	Hash64() uint64
}

// HashKey hashes common key types using 64-bit FNV-1a.
// Supported: Hasher, string, []byte, [16|32]byte, all int/uint widths, uintptr, fmt.Stringer.
// Any other key type needs Options.Hash when the cache is sharded; a single-shard
// cache never hashes.
func HashKey[K comparable](k K) uint64 {
	switch v := any(k).(type) {
	case Hasher:
		return v.Hash64()
	case string:
		return fnv64aString(v)
	case []byte:
		return fnv64aFromBytes(v)
	case [16]byte:
		return fnv64aFromBytes(v[:])
	case [32]byte:
		return fnv64aFromBytes(v[:])

	case uint8:
		return HashUint64(uint64(v))
	case uint16:
		return HashUint64(uint64(v))
	case uint32:
		return HashUint64(uint64(v))
	case uint64:
		return HashUint64(v)
	case uint:
		return HashUint64(uint64(v))
	case uintptr:
		return HashUint64(uint64(v))
	case int8:
		return HashUint64(uint64(uint8(v)))
	case int16:
		return HashUint64(uint64(uint16(v)))
	case int32:
		return HashUint64(uint64(uint32(v)))
	case int64:
		return HashUint64(uint64(v))
	case int:
		return HashUint64(uint64(v))

	case fmt.Stringer:
		return fnv64aString(v.String())
	default:
		panic(fmt.Sprintf("util.HashKey: unsupported key type %T; implement Hash64 or provide Options.Hash", k))
	}
}

// MergeHashes folds b into a. Order matters: MergeHashes(a, b) != MergeHashes(b, a)
// in general, which is what composite keys want.
func MergeHashes(a, b uint64) uint64 {
	return a ^ (b + 0x9e3779b97f4a7c15 + (a << 6) + (a >> 2))
}

const (
	fnvOffset64 = 1469598103934665603
	fnvPrime64  = 1099511628211
)

func fnv64aFromBytes(b []byte) uint64 {
	h := uint64(fnvOffset64)
	for _, c := range b {
		h ^= uint64(c)
		h *= fnvPrime64
	}
	return h
}

// fnv64aString avoids the []byte conversion.
func fnv64aString(s string) uint64 {
	h := uint64(fnvOffset64)
	for i := 0; i < len(s); i++ {
		h ^= uint64(s[i])
		h *= fnvPrime64
	}
	return h
}

// HashUint64 hashes the 8 little-endian bytes of u without allocating.
func HashUint64(u uint64) uint64 {
	h := uint64(fnvOffset64)
	for i := 0; i < 8; i++ {
		h ^= uint64(byte(u))
		h *= fnvPrime64
		u >>= 8
	}
	return h
}
