package cache

import (
	"fmt"
	"math/rand"
	"runtime"
	"strconv"
	"sync"
	"testing"
	"time"

	"golang.org/x/sync/errgroup"
)

// A mixed workload of concurrent GetOrCreate/Get/Retain/Release on a small
// keyspace, so that last releases constantly race with new lookups.
// Should pass under `-race` without detector reports.
func TestRace_AcquireRelease(t *testing.T) {
	for _, tc := range []struct {
		name string
		opt  Options[string, *widget]
	}{
		{"evict", Options[string, *widget]{}},
		{"sharded", Options[string, *widget]{Shards: 8}},
		{"retain", Options[string, *widget]{Retain: 4}},
		{"coalesce", Options[string, *widget]{Coalesce: true, Shards: -1}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			tr := &tracker{}
			c := newWidgetCache(tc.opt)

			workers := 4 * runtime.GOMAXPROCS(0)
			const keyspace = 16
			deadline := time.Now().Add(500 * time.Millisecond)

			var g errgroup.Group
			for w := 0; w < workers; w++ {
				g.Go(func() error {
					r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(w)*9973))
					var held []*widget
					for time.Now().Before(deadline) {
						k := "k:" + strconv.Itoa(r.Intn(keyspace))
						switch r.Intn(10) {
						case 0, 1, 2, 3: // drop something we hold
							if len(held) > 0 {
								i := r.Intn(len(held))
								held[i].Release()
								held = append(held[:i], held[i+1:]...)
							}
						case 4: // plain lookup
							if v, ok := c.Get(k); ok {
								if err := checkLive(v, k); err != nil {
									return err
								}
								v.Release()
							}
						case 5: // extra reference on a held object
							if len(held) > 0 {
								held[0].Retain()
								held[0].Release()
							}
						default:
							v, err := c.GetOrCreate(k, tr.factory(k))
							if err != nil {
								return err
							}
							if err := checkLive(v, k); err != nil {
								return err
							}
							held = append(held, v)
						}
					}
					for _, v := range held {
						v.Release()
					}
					return nil
				})
			}
			if err := g.Wait(); err != nil {
				t.Fatal(err)
			}

			c.Trim()
			if n := c.Len(); n != 0 {
				t.Fatalf("Len = %d after releasing everything", n)
			}
			if live := tr.live.Load(); live != 0 {
				t.Fatalf("%d widgets leaked", live)
			}
		})
	}
}

func checkLive(v *widget, k string) error {
	if v.Destroyed() {
		return fmt.Errorf("got destroyed object for %q", k)
	}
	if v.tag != k || v.CacheKey() != k {
		return fmt.Errorf("got %q for key %q", v.tag, k)
	}
	return nil
}

// At any moment at most one object per key is handed out: everyone who holds
// a reference at the same time holds the same object.
func TestRace_SingleLiveObjectPerKey(t *testing.T) {
	t.Parallel()

	tr := &tracker{}
	c := newWidgetCache(Options[string, *widget]{})

	var (
		mu      sync.Mutex
		current *widget
		holders int
	)
	const goroutines = 32
	start := make(chan struct{})
	var g errgroup.Group
	for i := 0; i < goroutines; i++ {
		g.Go(func() error {
			<-start
			for j := 0; j < 500; j++ {
				w, err := c.GetOrCreate("foo", tr.factory("foo"))
				if err != nil {
					return err
				}
				mu.Lock()
				if holders > 0 && current != w {
					mu.Unlock()
					return fmt.Errorf("two live objects for one key")
				}
				current = w
				holders++
				mu.Unlock()

				runtime.Gosched()

				mu.Lock()
				holders--
				mu.Unlock()
				w.Release()
			}
			return nil
		})
	}
	close(start)
	if err := g.Wait(); err != nil {
		t.Fatal(err)
	}
	if tr.live.Load() != 0 || c.Len() != 0 {
		t.Fatal("object must be gone after all holders released it")
	}
}
