package util

import (
	"runtime"
	"testing"
)

func TestShardCount(t *testing.T) {
	tests := []struct{ in, want int }{
		{0, 1},
		{1, 1},
		{2, 2},
		{3, 4},
		{8, 8},
		{9, 16},
		{1000, 1024},
	}
	for _, tc := range tests {
		if got := ShardCount(tc.in); got != tc.want {
			t.Errorf("ShardCount(%d) = %d, want %d", tc.in, got, tc.want)
		}
	}

	auto := ShardCount(-1)
	if auto < 1 || auto > maxShards || auto&(auto-1) != 0 {
		t.Fatalf("auto shard count %d must be a power of two in [1, %d]", auto, maxShards)
	}
	if want := min(nextPow2(2*runtime.GOMAXPROCS(0)), maxShards); auto != want {
		t.Fatalf("auto = %d, want %d", auto, want)
	}
}

func TestShardIndex(t *testing.T) {
	for _, shards := range []int{1, 4, 7, 64} {
		for h := uint64(0); h < 1000; h += 37 {
			i := ShardIndex(h*0x9e3779b97f4a7c15, shards)
			if i < 0 || i >= shards {
				t.Fatalf("ShardIndex(_, %d) = %d out of range", shards, i)
			}
		}
	}
	if got := ShardIndex(13, 8); got != 5 {
		t.Fatalf("mask path: got %d, want 5", got)
	}
	if got := ShardIndex(13, 6); got != 1 {
		t.Fatalf("modulo path: got %d, want 1", got)
	}
}

type pairKey struct{ a, b uint64 }

func (k pairKey) Hash64() uint64 { return MergeHashes(HashUint64(k.a), HashUint64(k.b)) }

func TestHashKey(t *testing.T) {
	if HashKey("albedo.png") != HashKey("albedo.png") {
		t.Fatal("string hash must be stable")
	}
	if HashKey("a") == HashKey("b") {
		t.Fatal("distinct strings should hash apart")
	}
	if HashKey(42) != HashKey(int64(42)) {
		t.Fatal("int widths hash the same value the same way")
	}
	if HashKey(pairKey{1, 2}) != (pairKey{1, 2}).Hash64() {
		t.Fatal("Hasher keys must use their own hash")
	}
	if MergeHashes(1, 2) == MergeHashes(2, 1) {
		t.Fatal("MergeHashes must be order-sensitive")
	}

	defer func() {
		if recover() == nil {
			t.Fatal("unsupported key types must panic")
		}
	}()
	HashKey(struct{ x float64 }{1})
}
