package twoq

import (
	"testing"

	"github.com/IvanBrykalov/objcache/policy"
)

type testNode struct {
	k string
	v int
}

func (n *testNode) Key() string { return n.k }
func (n *testNode) Value() *int { return &n.v }

type mockHooks struct {
	pushFrontCnt   int
	moveToFrontCnt int
	lastMove       policy.Node[string, int]
}

func (h *mockHooks) MoveToFront(n policy.Node[string, int]) { h.moveToFrontCnt++; h.lastMove = n }
func (h *mockHooks) PushFront(policy.Node[string, int])     { h.pushFrontCnt++ }
func (h *mockHooks) Remove(policy.Node[string, int])        {}
func (h *mockHooks) Back() policy.Node[string, int]         { return nil }
func (h *mockHooks) Len() int                               { return 0 }

func newQ(capIn, capGhost int) (*twoQ[string, int], *mockHooks) {
	h := &mockHooks{}
	return New[string, int](capIn, capGhost).New(h).(*twoQ[string, int]), h
}

// A first-time object is admitted into A1in without a victim.
func TestTwoQ_FirstAdmissionGoesToA1in(t *testing.T) {
	t.Parallel()

	q, h := newQ(2, 4)
	n := &testNode{k: "mesh.bin"}
	if ev := q.OnAdd(n); ev != nil {
		t.Fatalf("no victim expected, got %v", ev)
	}
	if _, ok := q.inIdx[n]; !ok || q.inList.Len() != 1 {
		t.Fatal("object must be tracked in A1in")
	}
	if h.pushFrontCnt != 1 {
		t.Fatalf("PushFront calls = %d, want 1", h.pushFrontCnt)
	}
}

// Overflowing A1in proposes its least recently admitted object.
func TestTwoQ_OverflowProposesOldestA1in(t *testing.T) {
	t.Parallel()

	q, _ := newQ(2, 4)
	first := &testNode{k: "a"}
	q.OnAdd(first)
	q.OnAdd(&testNode{k: "b"})
	if ev := q.OnAdd(&testNode{k: "c"}); ev != first {
		t.Fatalf("victim = %v, want %v", ev, first)
	}
}

// Dropping an A1in object leaves a ghost; recreating the key skips A1in.
func TestTwoQ_GhostSkipsA1inOnRecreate(t *testing.T) {
	t.Parallel()

	q, _ := newQ(1, 2)
	old := &testNode{k: "shader.spv"}
	q.OnAdd(old)
	q.OnRemove(old)
	if _, ok := q.ghostIdx["shader.spv"]; !ok {
		t.Fatal("key must be remembered as ghost")
	}

	fresh := &testNode{k: "shader.spv"}
	if ev := q.OnAdd(fresh); ev != nil {
		t.Fatalf("ghost admission must not propose a victim, got %v", ev)
	}
	if _, ok := q.inIdx[fresh]; ok {
		t.Fatal("recreated key must bypass A1in")
	}
	if _, ok := q.ghostIdx["shader.spv"]; ok {
		t.Fatal("ghost must be consumed on readmission")
	}
}

// Ghost list never grows past its capacity.
func TestTwoQ_GhostCapacity(t *testing.T) {
	t.Parallel()

	q, _ := newQ(8, 2)
	for _, k := range []string{"a", "b", "c"} {
		n := &testNode{k: k}
		q.OnAdd(n)
		q.OnRemove(n)
	}
	if q.ghostList.Len() != 2 {
		t.Fatalf("ghosts = %d, want 2", q.ghostList.Len())
	}
	if _, ok := q.ghostIdx["a"]; ok {
		t.Fatal("oldest ghost must be dropped")
	}
}

// A hit promotes the object to Am; going idle does not.
func TestTwoQ_HitPromotesIdleDoesNot(t *testing.T) {
	t.Parallel()

	q, h := newQ(2, 2)
	n := &testNode{k: "a"}
	q.OnAdd(n)

	q.OnUpdate(n)
	if _, ok := q.inIdx[n]; !ok {
		t.Fatal("becoming idle must keep the object in A1in")
	}

	q.OnGet(n)
	if _, ok := q.inIdx[n]; ok {
		t.Fatal("hit must promote out of A1in")
	}
	if h.moveToFrontCnt != 2 || h.lastMove != n {
		t.Fatalf("MoveToFront calls = %d, want 2", h.moveToFrontCnt)
	}
}
