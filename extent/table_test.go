package extent

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dot5enko/extent-store/schema"
)

func TestTableRollover(t *testing.T) {
	table, _ := newTestTable(t, 2)

	insertAll(t, table, row(1, "a"), row(2, "b"), row(3, "c"), row(4, "d"), row(5, "e"))

	require.Equal(t, 3, table.ExtentCount())
	for i, want := range []int64{2, 2, 1} {
		n, err := table.ExtentRecordCount(i)
		require.NoError(t, err)
		assert.Equal(t, want, n, "extent %d", i)

		e, err := table.GetExtent(i)
		require.NoError(t, err)
		assert.Equal(t, int(want), e.Count())
		assert.Equal(t, int64(i), e.Header().ID)
	}
	assert.Equal(t, int64(5), table.RecordCount())
	assert.Len(t, readAll(t, table), 5)
}

func TestWriterReopensPartialExtent(t *testing.T) {
	table, _ := newTestTable(t, 3)

	insertAll(t, table, row(1, "a"))
	insertAll(t, table, row(2, "b"), row(3, "c"), row(4, "d"))

	require.Equal(t, 2, table.ExtentCount())
	first, err := table.ExtentRecordCount(0)
	require.NoError(t, err)
	assert.Equal(t, int64(3), first)
	assert.Equal(t, int64(4), table.RecordCount())
}

func TestConcurrentWriteSplit(t *testing.T) {
	table, _ := newTestTable(t, 3)
	insertAll(t, table, row(1, "a"), row(2, "b"))
	require.Equal(t, 1, table.ExtentCount())
	before := table.RecordCount()

	m, err := NewTableWriteManager(table)
	require.NoError(t, err)
	open := m.Current()
	require.Equal(t, 1, open.Remaining())

	batch := m.GetExtent()
	batch.UnsafeAdd(row(3, "c"))
	batch.UnsafeAdd(row(4, "d"))
	batch.UnsafeAdd(row(5, "e"))
	require.NoError(t, m.AddExtent(batch))

	// the filled extent is written back at rollover, the remainder waits for Collapse
	assert.Equal(t, 3, open.Count())
	require.Equal(t, 1, table.ExtentCount())
	assert.Equal(t, before+1, table.RecordCount())
	staged := m.Current()
	assert.Equal(t, 2, staged.Count())

	require.NoError(t, m.Collapse())
	require.Equal(t, 2, table.ExtentCount())

	fresh, err := table.GetExtent(1)
	require.NoError(t, err)
	assert.Same(t, staged, fresh)
	assert.Equal(t, before+3, table.RecordCount())

	assert.ErrorIs(t, m.Collapse(), ErrClosed)
}

func TestConcurrentProducers(t *testing.T) {
	const (
		producers = 8
		batches   = 10
		batchSize = 3
		perExtent = 4
	)

	table, store := newTestTable(t, perExtent)
	m, err := NewTableWriteManager(table)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		p := p
		wg.Add(1)
		go func() {
			defer wg.Done()
			for b := 0; b < batches; b++ {
				batch := m.GetExtent()
				for i := 0; i < batchSize; i++ {
					batch.UnsafeAdd(row(int64(p*1000+b*10+i), "p"))
				}
				assert.NoError(t, m.AddExtent(batch))
			}
		}()
	}
	wg.Wait()

	_, tableFlushesBefore := store.flushes()
	require.NoError(t, m.Collapse())
	_, tableFlushesAfter := store.flushes()
	assert.Greater(t, tableFlushesAfter, tableFlushesBefore)

	total := int64(producers * batches * batchSize)
	assert.Equal(t, total, table.RecordCount())

	n := table.ExtentCount()
	require.Equal(t, int((total+perExtent-1)/perExtent), n)
	for i := 0; i < n-1; i++ {
		c, err := table.ExtentRecordCount(i)
		require.NoError(t, err)
		assert.Equal(t, int64(perExtent), c)
	}
	assert.Len(t, readAll(t, table), int(total))
}

func TestTableRejectsInconsistentExtents(t *testing.T) {
	table, _ := newTestTable(t, 2)
	h := table.Header()

	empty := table.NewShell()
	assert.ErrorIs(t, table.AddExtent(empty), ErrConsistency)

	other := schema.MustParse("name string.16, id int")
	wrongSchema := New(schema.NewExtentHeader(h.Directory, "x", h.PageSize), other)
	wrongSchema.UnsafeAdd(row(1, "a"))
	assert.ErrorIs(t, table.AddExtent(wrongSchema), ErrConsistency)

	wrongPage := New(schema.NewExtentHeader(h.Directory, "x", h.PageSize*2), table.Columns())
	wrongPage.UnsafeAdd(row(1, "a"))
	assert.ErrorIs(t, table.AddExtent(wrongPage), ErrConsistency)

	stranger := table.NewShell()
	stranger.UnsafeAdd(row(1, "a"))
	assert.ErrorIs(t, table.SetExtent(stranger), ErrConsistency)

	_, err := table.GetExtent(0)
	assert.ErrorIs(t, err, ErrOutOfRange)

	_, err = table.PopFirst()
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSetExtentAdjustsAggregate(t *testing.T) {
	table, _ := newTestTable(t, 4)
	insertAll(t, table, row(1, "a"), row(2, "b"), row(3, "c"))

	e, err := table.PopFirst()
	require.NoError(t, err)
	require.NoError(t, e.Remove(0))
	require.NoError(t, table.SetExtent(e))

	assert.Equal(t, int64(2), table.RecordCount())

	// ids outside the reference rows are refused
	ghost := New(table.Header().ChildHeader(7), table.Columns())
	ghost.UnsafeAdd(row(9, "z"))
	assert.ErrorIs(t, table.SetExtent(ghost), ErrOutOfRange)
}

func TestGrowAndPopOrGrow(t *testing.T) {
	table, store := newTestTable(t, 2)

	e, err := table.PopLastOrGrow()
	require.NoError(t, err)
	assert.Equal(t, 0, e.Count())
	assert.Equal(t, 1, table.ExtentCount())
	assert.Equal(t, int64(0), table.RecordCount())

	_, err = store.RequestBufferExtent(table.ExtentPath(0))
	require.NoError(t, err)

	grown, err := table.Grow()
	require.NoError(t, err)
	assert.Equal(t, int64(1), grown.Header().ID)

	first, err := table.PopFirstOrGrow()
	require.NoError(t, err)
	assert.Same(t, e, first)

	refs := table.RefRecords()
	require.Len(t, refs, 2)
	assert.Equal(t, int64(1), refs[1][0].ValueInt())
}

func TestLoadTableValidatesRefs(t *testing.T) {
	table, store := newTestTable(t, 2)
	insertAll(t, table, row(1, "a"), row(2, "b"), row(3, "c"))

	loaded, err := LoadTable(table.Header(), table.Columns(), nil, table.RefRecords(), store)
	require.NoError(t, err)
	assert.Equal(t, int64(3), loaded.RecordCount())
	assert.Equal(t, 2, loaded.ExtentCount())

	refs := table.RefRecords()
	refs[0], refs[1] = refs[1], refs[0]
	_, err = LoadTable(table.Header(), table.Columns(), nil, refs, store)
	assert.ErrorIs(t, err, ErrConsistency)
}
