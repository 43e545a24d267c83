package collection

import (
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/IvanBrykalov/objcache/registry"
	"github.com/IvanBrykalov/objcache/scene"
)

type lightmapJob struct{ Name string }

// recorder captures collection notifications in order.
type recorder struct {
	mu     sync.Mutex
	events []string
}

func (r *recorder) attach(c *Collection[*lightmapJob]) {
	c.OnAdded().Subscribe(func(jobs []*lightmapJob) { r.add("added", jobs) })
	c.OnRemoved().Subscribe(func(jobs []*lightmapJob) { r.add("removed", jobs) })
	c.OnFlushed().Subscribe(func(struct{}) { r.add("flushed", nil) })
}

func (r *recorder) add(kind string, jobs []*lightmapJob) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, j := range jobs {
		kind += ":" + j.Name
	}
	r.events = append(r.events, kind)
}

func (r *recorder) take() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ev := r.events
	r.events = nil
	return ev
}

func newCollection(t *testing.T, ctx *scene.Context) (*Collection[*lightmapJob], *registry.Registry) {
	t.Helper()
	r := registry.New(registry.Options{})
	c, err := Get[*lightmapJob](r, ctx)
	require.NoError(t, err)
	return c, r
}

func TestCollection_FlushNotifiesInOrder(t *testing.T) {
	ctx := scene.New("bake")
	c, _ := newCollection(t, ctx)
	defer c.Release()
	rec := &recorder{}
	rec.attach(c)

	a, b := &lightmapJob{"a"}, &lightmapJob{"b"}
	c.Add(a)
	c.Add(b)
	assert.Equal(t, PendingChanges, c.State())
	assert.False(t, c.Contains(a), "not visible before flush")

	ctx.Flush()
	assert.Equal(t, Idle, c.State())
	assert.Empty(t, cmp.Diff([]string{"added:a:b", "flushed"}, rec.take()))
	assert.Empty(t, cmp.Diff([]*lightmapJob{a, b}, c.Items()))

	c.Remove(a)
	c.Add(&lightmapJob{"c"})
	ctx.Flush()
	assert.Empty(t, cmp.Diff([]string{"added:c", "removed:a", "flushed"}, rec.take()))

	// Nothing scheduled: only OnFlushed.
	ctx.Flush()
	assert.Equal(t, []string{"flushed"}, rec.take())
}

func TestCollection_AddRemoveSameWindow(t *testing.T) {
	ctx := scene.New("bake")
	c, _ := newCollection(t, ctx)
	defer c.Release()
	rec := &recorder{}
	rec.attach(c)

	x := &lightmapJob{"x"}
	c.Add(x)
	c.Remove(x)
	ctx.Flush()
	assert.Equal(t, []string{"flushed"}, rec.take(), "x must never be reported")

	c.Add(x)
	c.Add(x)
	c.Remove(x)
	ctx.Flush()
	assert.True(t, c.Contains(x), "membership is counted")
	assert.Equal(t, []string{"added:x", "flushed"}, rec.take())
}

func TestCollection_OneInstancePerContextAndType(t *testing.T) {
	r := registry.New(registry.Options{})
	s1, s2 := scene.New("one"), scene.New("two")

	a, err := Get[*lightmapJob](r, s1)
	require.NoError(t, err)
	defer a.Release()
	b, err := Get[*lightmapJob](r, s1)
	require.NoError(t, err)
	defer b.Release()
	other, err := Get[*lightmapJob](r, s2)
	require.NoError(t, err)
	defer other.Release()
	ints, err := Get[int](r, s1)
	require.NoError(t, err)
	defer ints.Release()

	assert.Same(t, a, b)
	assert.NotSame(t, a, other)
	assert.Equal(t, registry.Context(s1), a.Context())
	assert.Equal(t, 3, r.Len())
}

func TestCollection_ContextHoldsMembers(t *testing.T) {
	ctx := scene.New("bake")
	c, r := newCollection(t, ctx)

	j := &lightmapJob{"j"}
	c.Add(j)
	c.Release()
	require.False(t, c.Destroyed(), "pending changes keep the collection alive")

	ctx.Flush()
	again, err := Get[*lightmapJob](r, ctx)
	require.NoError(t, err)
	assert.Same(t, c, again)
	assert.True(t, again.Contains(j))

	again.Remove(j)
	again.Release()
	require.False(t, c.Destroyed())

	// The flush that empties it drops the context-held reference.
	ctx.Flush()
	assert.True(t, c.Destroyed())
	assert.Zero(t, r.Len())
	assert.Zero(t, ctx.OnFlush().Len(), "destroyed collection must unsubscribe")
}

func TestCollection_ConcurrentAdds(t *testing.T) {
	ctx := scene.New("bake")
	c, _ := newCollection(t, ctx)
	defer c.Release()

	const N = 64
	jobs := make([]*lightmapJob, N)
	var wg sync.WaitGroup
	for i := range jobs {
		jobs[i] = &lightmapJob{}
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Add(jobs[i])
		}()
	}
	wg.Wait()

	var added int
	c.OnAdded().Subscribe(func(js []*lightmapJob) { added += len(js) })
	ctx.Flush()
	assert.Equal(t, N, added)
	assert.Equal(t, N, c.Len())

	seen := 0
	c.GetAll(func(*lightmapJob) { seen++ })
	assert.Equal(t, N, seen)
}
