// Package twoq implements 2Q ordering for idle cache entries.
//
// Objects that were requested only once (A1in) are offered for eviction before
// objects that were requested again after creation (Am). A ghost list (A1out)
// remembers keys recently dropped from A1in; if such a key is recreated it goes
// straight to Am. This keeps one-off lookups, such as a directory scan opening
// every file once, from pushing out shared resources that are reused.
package twoq

import (
	"container/list"

	"github.com/IvanBrykalov/objcache/policy"
)

// twoQ is the shard-local state. All methods run under the shard lock.
type twoQ[K comparable, V any] struct {
	h policy.Hooks[K, V]

	capIn    int // A1in capacity (per-shard)
	capGhost int // A1out capacity (per-shard)

	// A1in: MRU at Front() -> LRU at Back(); element.Value is policy.Node.
	inList *list.List
	inIdx  map[policy.Node[K, V]]*list.Element

	// A1out: keys only, MRU at Front(); element.Value is K.
	ghostList *list.List
	ghostIdx  map[K]*list.Element
}

// New constructs a 2Q policy factory. Sizes are per shard; values below one
// are raised to one.
func New[K comparable, V any](capIn, capGhost int) policy.Policy[K, V] {
	if capIn < 1 {
		capIn = 1
	}
	if capGhost < 1 {
		capGhost = 1
	}
	return twoQPolicy[K, V]{capIn: capIn, capGhost: capGhost}
}

type twoQPolicy[K comparable, V any] struct {
	capIn    int
	capGhost int
}

func (p twoQPolicy[K, V]) New(h policy.Hooks[K, V]) policy.ShardPolicy[K, V] {
	return &twoQ[K, V]{
		h:         h,
		capIn:     p.capIn,
		capGhost:  p.capGhost,
		inList:    list.New(),
		inIdx:     make(map[policy.Node[K, V]]*list.Element),
		ghostList: list.New(),
		ghostIdx:  make(map[K]*list.Element),
	}
}

// OnAdd admits a freshly created object. A key found among the ghosts skips
// A1in. Otherwise the object enters A1in, and when A1in overflows its LRU is
// proposed as a victim (the shard ignores it while it is still referenced).
func (q *twoQ[K, V]) OnAdd(n policy.Node[K, V]) (evict policy.Node[K, V]) {
	k := n.Key()
	if ge, ok := q.ghostIdx[k]; ok {
		q.ghostList.Remove(ge)
		delete(q.ghostIdx, k)
		q.h.PushFront(n)
		return nil
	}

	q.h.PushFront(n)
	q.inIdx[n] = q.inList.PushFront(n)

	if q.inList.Len() > q.capIn {
		if lruEl := q.inList.Back(); lruEl != nil {
			return lruEl.Value.(policy.Node[K, V])
		}
	}
	return nil
}

// OnGet promotes a reused object out of A1in into Am.
func (q *twoQ[K, V]) OnGet(n policy.Node[K, V]) {
	if el, ok := q.inIdx[n]; ok {
		q.inList.Remove(el)
		delete(q.inIdx, n)
	}
	q.h.MoveToFront(n)
}

// OnUpdate keeps the object in its queue; becoming idle is not reuse.
func (q *twoQ[K, V]) OnUpdate(n policy.Node[K, V]) {
	if el, ok := q.inIdx[n]; ok {
		q.inList.MoveToFront(el)
	}
	q.h.MoveToFront(n)
}

// OnRemove remembers keys dropped from A1in as ghosts, bounded by capGhost.
func (q *twoQ[K, V]) OnRemove(n policy.Node[K, V]) {
	el, ok := q.inIdx[n]
	if !ok {
		return
	}
	q.inList.Remove(el)
	delete(q.inIdx, n)

	k := n.Key()
	if old := q.ghostIdx[k]; old != nil {
		q.ghostList.Remove(old)
	}
	q.ghostIdx[k] = q.ghostList.PushFront(k)

	for q.ghostList.Len() > q.capGhost {
		tail := q.ghostList.Back()
		if tail == nil {
			break
		}
		delete(q.ghostIdx, tail.Value.(K))
		q.ghostList.Remove(tail)
	}
}
