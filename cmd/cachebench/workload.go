package main

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"strconv"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/IvanBrykalov/objcache/cache"
)

// resource stands in for an expensive shared object.
type resource struct {
	cache.Stored[string]
	key  string
	live *atomic.Int64
}

func (r *resource) Destroy() { r.live.Add(-1) }

// result summarises one run.
type result struct {
	Ops      uint64
	Creates  uint64
	Released uint64
	Elapsed  time.Duration
	// Leaked counts objects never destroyed once every reference was released
	// and the cache trimmed. Anything but zero is a bug.
	Leaked int64
}

func run(ctx context.Context, c *cache.Cache[string, *resource], w WorkloadConfig) (result, error) {
	var (
		res     result
		live    atomic.Int64
		ops     atomic.Uint64
		creates atomic.Uint64
	)
	workers := max(w.Workers, 1)
	hold := max(w.Hold, 1)
	cost := time.Duration(w.CreateCost)

	start := time.Now()
	g, ctx := errgroup.WithContext(ctx)
	for id := 0; id < workers; id++ {
		g.Go(func() error {
			// rand.Rand is not goroutine-safe: one per worker.
			r := rand.New(rand.NewSource(w.Seed + int64(id)*9973))
			zipf := rand.NewZipf(r, w.ZipfS, w.ZipfV, uint64(w.Keys-1))
			held := make([]*resource, 0, hold)
			defer func() {
				for _, v := range held {
					v.Release()
				}
			}()

			for ctx.Err() == nil {
				if len(held) == hold || (len(held) > 0 && r.Intn(2) == 0) {
					i := r.Intn(len(held))
					held[i].Release()
					held[i] = held[len(held)-1]
					held = held[:len(held)-1]
					ops.Add(1)
					continue
				}

				key := "k:" + strconv.FormatUint(zipf.Uint64(), 10)
				v, err := c.GetOrCreate(key, func() (*resource, error) {
					creates.Add(1)
					if cost > 0 {
						time.Sleep(cost)
					}
					live.Add(1)
					return &resource{key: key, live: &live}, nil
				})
				if err != nil {
					return err
				}
				if v.key != key || v.Destroyed() {
					return fmt.Errorf("got %q (destroyed=%v) for key %q", v.key, v.Destroyed(), key)
				}
				held = append(held, v)
				ops.Add(1)
			}
			return nil
		})
	}
	err := g.Wait()
	res.Elapsed = time.Since(start)

	c.Trim()
	res.Ops = ops.Load()
	res.Creates = creates.Load()
	res.Leaked = live.Load()
	return res, err
}

func (r result) print(w io.Writer, st cache.Stats) {
	secs := r.Elapsed.Seconds()
	if secs == 0 {
		secs = 1
	}
	lookups := st.Hits + st.Misses
	hitRate := 0.0
	if lookups > 0 {
		hitRate = float64(st.Hits) / float64(lookups) * 100
	}
	fmt.Fprintf(w, "ops=%d (%.0f ops/s) dur=%v\n", r.Ops, float64(r.Ops)/secs, r.Elapsed.Round(time.Millisecond))
	fmt.Fprintf(w, "hits=%d misses=%d hit-rate=%.2f%% creates=%d evictions=%d\n",
		st.Hits, st.Misses, hitRate, r.Creates, st.Evictions)
	fmt.Fprintf(w, "entries=%d idle=%d leaked=%d\n", st.Entries, st.Idle, r.Leaked)
}
