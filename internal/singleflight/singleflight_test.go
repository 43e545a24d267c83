package singleflight

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestDo_Coalesces(t *testing.T) {
	var g Group[string, int]
	var calls atomic.Int32
	release := make(chan struct{})

	const N = 16
	var wg sync.WaitGroup
	results := make([]int, N)
	shared := make([]bool, N)
	for i := 0; i < N; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], shared[i] = g.Do("k", func() int {
				calls.Add(1)
				<-release
				return 7
			})
		}()
	}
	// Let everyone join the flight before it lands.
	deadline := time.Now().Add(5 * time.Second)
	for dups(&g, "k") < N-1 {
		if time.Now().After(deadline) {
			t.Fatal("followers never joined")
		}
		time.Sleep(time.Millisecond)
	}
	close(release)
	wg.Wait()

	if n := calls.Load(); n != 1 {
		t.Fatalf("fn ran %d times, want 1", n)
	}
	for i, v := range results {
		if v != 7 || !shared[i] {
			t.Fatalf("caller %d: v=%d shared=%v", i, v, shared[i])
		}
	}
	if g.InFlight() != 0 {
		t.Fatal("flight must be cleared")
	}
}

func TestDo_PanicReleasesFollowers(t *testing.T) {
	var g Group[int, string]
	started := make(chan struct{})
	done := make(chan string)

	go func() {
		defer func() { _ = recover() }()
		g.Do(1, func() string {
			close(started)
			time.Sleep(10 * time.Millisecond)
			panic("boom")
		})
	}()
	<-started
	go func() {
		v, _ := g.Do(1, func() string { return "mine" })
		done <- v
	}()

	select {
	case v := <-done:
		// Either joined the failed flight (zero value) or led a new one.
		if v != "" && v != "mine" {
			t.Fatalf("unexpected value %q", v)
		}
	case <-time.After(time.Second):
		t.Fatal("follower blocked after leader panic")
	}
}

func dups[K comparable, V any](g *Group[K, V], key K) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	if c, ok := g.m[key]; ok {
		return c.dups
	}
	return 0
}
