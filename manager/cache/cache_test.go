package cache

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBudgetAdmission(t *testing.T) {
	budget := NewBudget(2, 100)
	m := NewManager[string](budget)

	assert.True(t, m.Put("a", "first", 60))
	assert.False(t, m.Put("b", "too big", 50))
	assert.True(t, m.Put("c", "fits", 40))
	assert.False(t, m.Put("d", "no slot", 0))

	assert.Equal(t, 2, budget.Items())
	assert.Equal(t, int64(100), budget.Memory())
	assert.Equal(t, []string{"a", "c"}, budget.Candidates())

	// cached items are always accepted, even past the budget
	assert.True(t, m.Put("a", "grown", 90))
	assert.Equal(t, int64(130), budget.Memory())

	item, ok := m.Get("a")
	require.True(t, ok)
	assert.Equal(t, "grown", item)

	_, ok = m.Get("b")
	assert.False(t, ok)
}

func TestBudgetIsShared(t *testing.T) {
	budget := NewBudget(10, 100)
	ints := NewManager[int](budget)
	strs := NewManager[string](budget)

	require.True(t, ints.Put("x", 1, 70))
	assert.False(t, strs.Put("y", "y", 31))
	require.True(t, strs.Put("y", "y", 30))

	removed, ok := ints.Remove("x")
	require.True(t, ok)
	assert.Equal(t, 1, removed)
	assert.Equal(t, int64(30), budget.Memory())
	assert.Equal(t, []string{"y"}, budget.Candidates())

	_, ok = ints.Remove("x")
	assert.False(t, ok)
}

func TestLoadOrStoreKeepsCachedItem(t *testing.T) {
	m := NewManager[string](NewBudget(1, 10))

	actual, cached := m.LoadOrStore("p", "disk copy", 5)
	assert.True(t, cached)
	assert.Equal(t, "disk copy", actual)

	require.True(t, m.Put("p", "fresh", 5))
	actual, cached = m.LoadOrStore("p", "stale", 5)
	assert.True(t, cached)
	assert.Equal(t, "fresh", actual)

	actual, cached = m.LoadOrStore("q", "refused", 1)
	assert.False(t, cached)
	assert.Equal(t, "refused", actual)
}

func TestRemoveIfAndStats(t *testing.T) {
	budget := NewBudget(10, 1000)
	m := NewManager[int](budget)
	for i, path := range []string{"t.0.xdb", "t.1.xdb", "u.0.xdb"} {
		require.True(t, m.Put(path, i, 10))
	}
	m.Get("t.0.xdb")
	m.Get("t.0.xdb")

	for _, e := range m.Entries() {
		if e.Path == "t.0.xdb" {
			assert.Equal(t, int64(2), e.Stats.Reads.Load())
			assert.Equal(t, int64(1), e.Stats.Writes.Load())
		}
	}

	dropped := m.RemoveIf(func(path string, _ int) bool { return path[0] == 't' })
	assert.ElementsMatch(t, []int{0, 1}, dropped)
	assert.Equal(t, 1, m.Len())
	assert.True(t, m.Contains("u.0.xdb"))
	assert.Equal(t, int64(10), budget.Memory())
}

func TestConcurrentPutRespectsBudget(t *testing.T) {
	budget := NewBudget(1000, 50)
	m := NewManager[int](budget)

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.Put(string(rune('A'+i%64))+string(rune('a'+i/64)), i, 1)
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, m.Len())
	assert.Equal(t, int64(50), budget.Memory())
}

func TestBufferPool(t *testing.T) {
	p := NewBufferPool(2, 16)

	a, ok := p.TryGet()
	require.True(t, ok)
	b, ok := p.TryGet()
	require.True(t, ok)
	assert.Empty(t, a)
	assert.Equal(t, 16, cap(b))

	_, ok = p.TryGet()
	assert.False(t, ok)

	p.Return(append(a, 1, 2, 3))
	again, ok := p.TryGet()
	require.True(t, ok)
	assert.Empty(t, again)

	p.Return(again)
	p.Return(b)
	p.Return(make([]byte, 4))
	assert.Len(t, p.free, 2)
}

func touch(buf []byte) []byte {
	for i := 0; i < 1024; i++ {
		buf = append(buf, byte(i))
	}
	return buf
}

func BenchmarkBufferPool(b *testing.B) {
	p := NewBufferPool(128, 64*1024)

	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			buf, ok := p.TryGet()
			if !ok {
				continue
			}
			p.Return(touch(buf))
		}
	})
}

func BenchmarkManagerGet(b *testing.B) {
	m := NewManager[int](NewBudget(1, 1))
	m.Put("hot", 1, 1)

	for i := 0; i < b.N; i++ {
		m.Get("hot")
	}
}
