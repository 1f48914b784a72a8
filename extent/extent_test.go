package extent

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dot5enko/extent-store/cell"
	"github.com/dot5enko/extent-store/record"
	"github.com/dot5enko/extent-store/schema"
)

func newTestExtent(t *testing.T, capacity int) *Extent {
	t.Helper()
	s := schema.MustParse(testSchema)
	return New(schema.NewExtentHeader(t.TempDir(), "scratch", pageFor(s, capacity)), s)
}

func TestCapacityIsPageOverDiskCost(t *testing.T) {
	s := schema.MustParse(testSchema)
	cost := s.RecordDiskCost()

	for _, tc := range []struct {
		page int64
		want int
	}{
		{page: int64(cost*5 + cost - 1), want: 5},
		{page: int64(cost * 5), want: 5},
		{page: int64(cost - 1), want: 0},
	} {
		e := New(schema.NewExtentHeader(t.TempDir(), "cap", tc.page), s)
		require.Equal(t, tc.want, e.Capacity())

		for i := 0; i < tc.want; i++ {
			require.NoError(t, e.Add(row(int64(i), "x")))
		}
		assert.ErrorIs(t, e.Add(row(99, "overflow")), ErrCapacity)
		assert.Equal(t, tc.want, e.Count())
	}
}

func TestBasicRoundTripSort(t *testing.T) {
	e := newTestExtent(t, 3)

	require.NoError(t, e.Add(row(1, "a")))
	require.NoError(t, e.Add(row(3, "c")))
	require.NoError(t, e.Add(row(2, "b")))
	assert.Equal(t, Full, e.State())

	sm := NewSortMaster()
	require.NoError(t, sm.Sort(e, schema.BuildKey(0)))

	want := []record.Record{row(1, "a"), row(2, "b"), row(3, "c")}
	require.Equal(t, len(want), e.Count())
	for i, w := range want {
		assert.True(t, w.Equal(e.Record(i)), "position %d: %s", i, e.Record(i))
	}
	assert.True(t, e.IsSorted())

	before := sm.Comparisons()
	require.NoError(t, sm.Sort(e, schema.BuildKey(0)))
	assert.Equal(t, before, sm.Comparisons())
}

func TestAddChecksAndCasts(t *testing.T) {
	s := schema.MustParse("id int not null, name string.4")
	e := New(schema.NewExtentHeader(t.TempDir(), "checked", pageFor(s, 4)), s)

	require.NoError(t, e.Add(record.Of(cell.String("12"), cell.String("truncated"))))
	assert.Equal(t, int64(12), e.Record(0)[0].ValueInt())
	assert.Equal(t, "trun", e.Record(0)[1].ValueString())

	assert.ErrorIs(t, e.Add(record.Of(cell.Null(cell.AffinityInt64), cell.String("x"))), schema.ErrSchemaViolation)

	// unchecked adds skip validation but still respect capacity
	require.NoError(t, e.UncheckedAdd(record.Of(cell.String("raw"))))
	e.UnsafeAdd(record.Of(cell.Int(1), cell.String("y")))
	e.UnsafeAdd(record.Of(cell.Int(2), cell.String("z")))
	assert.ErrorIs(t, e.UncheckedAdd(row(3, "w")), ErrCapacity)
}

func TestRemoveSwapSeek(t *testing.T) {
	e := newTestExtent(t, 8)
	for i := int64(0); i < 5; i++ {
		require.NoError(t, e.Add(row(i, string(rune('a'+i)))))
	}

	assert.Equal(t, 0, e.Seek(row(0, "a"), nil))
	assert.Equal(t, 4, e.Seek(row(4, "e"), nil))
	assert.Equal(t, 2, e.Seek(row(2, "ignored"), schema.BuildKey(0)))
	assert.Equal(t, NotFound, e.Seek(row(2, "ignored"), nil))

	require.NoError(t, e.Swap(0, 4))
	assert.Equal(t, int64(4), e.Record(0)[0].ValueInt())

	require.NoError(t, e.Remove(1))
	assert.Equal(t, 4, e.Count())
	assert.Equal(t, NotFound, e.Seek(row(1, "b"), nil))

	assert.ErrorIs(t, e.Remove(10), ErrOutOfRange)
	assert.ErrorIs(t, e.Swap(-1, 0), ErrOutOfRange)
}

func TestStateAndPreSerialize(t *testing.T) {
	e := newTestExtent(t, 2)
	assert.Equal(t, Building, e.State())

	require.NoError(t, e.Add(row(1, "a")))
	e.SetSortBy(schema.BuildKey(0))
	e.PreSerialize()

	h := e.Header()
	assert.Equal(t, int64(1), h.RecordCount)
	assert.Equal(t, int64(2), h.ColumnCount)
	assert.Equal(t, int64(1), h.KeyCount)

	e.MarkPersisted()
	assert.Equal(t, Persisted, e.State())

	require.NoError(t, e.Add(row(2, "b")))
	assert.Equal(t, Full, e.State())
	assert.Greater(t, e.MemCost(), 2*e.Columns().RecordMemCost())
}

func TestExtentWriterRefusesOverflow(t *testing.T) {
	e := newTestExtent(t, 3)
	m := NewExtentWriteManager(e)

	batch := m.GetExtent()
	for i := int64(0); i < 2; i++ {
		batch.UnsafeAdd(row(i, "x"))
	}
	require.NoError(t, m.AddExtent(batch))

	again := m.GetExtent()
	again.UnsafeAdd(row(5, "y"))
	again.UnsafeAdd(row(6, "z"))
	assert.ErrorIs(t, m.AddExtent(again), ErrCapacity)
	assert.Equal(t, 2, e.Count())
}

func TestExtentWriterInsert(t *testing.T) {
	e := newTestExtent(t, 4)
	insertAll(t, e, row(1, "a"), row(2, "b"))

	rows := readAll(t, e)
	require.Len(t, rows, 2)
	assert.True(t, rows[1].Equal(row(2, "b")))

	w, err := e.OpenWriter()
	require.NoError(t, err)
	assert.ErrorIs(t, w.Insert(record.Of(cell.Int(1))), schema.ErrSchemaViolation)
	require.NoError(t, w.Close())
	assert.ErrorIs(t, w.Insert(row(3, "c")), ErrClosed)
}

func TestDump(t *testing.T) {
	e := newTestExtent(t, 2)
	require.NoError(t, e.Add(row(7, "seven")))

	var buf bytes.Buffer
	e.Dump(&buf)
	assert.Contains(t, buf.String(), "scratch")
	assert.Contains(t, buf.String(), "7, seven")
}
