package extent

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dot5enko/extent-store/record"
)

func TestReaderFilter(t *testing.T) {
	table, _ := newTestTable(t, 3)
	insertAll(t, table, shuffledRows(10, 5)...)

	reg := NewRecordRegister()
	even := Where(reg, func(r record.Record) bool { return r[0].ValueInt()%2 == 0 })

	reader := table.CreateVolume().OpenReader(reg, even)
	var seen []int64
	for reader.Advance() {
		seen = append(seen, reader.Record()[0].ValueInt())
	}
	require.NoError(t, reader.Err())
	assert.True(t, reader.EndOfData())
	assert.ElementsMatch(t, []int64{0, 2, 4, 6, 8}, seen)
}

func TestReaderNullRegisterNeverMatches(t *testing.T) {
	e := newTestExtent(t, 2)
	e.UnsafeAdd(row(1, "a"))

	reader := e.CreateVolume().OpenReader(nullRegister{}, FilterFunc(func() bool { return true }))
	assert.False(t, reader.Advance())
	assert.True(t, reader.EndOfData())
}

type nullRegister struct{}

func (nullRegister) SetRecord(record.Record) {}
func (nullRegister) Record() record.Record { return nil }

func TestReaderSkipsEmptyExtents(t *testing.T) {
	table, _ := newTestTable(t, 2)
	insertAll(t, table, row(1, "a"), row(2, "b"))
	_, err := table.Grow()
	require.NoError(t, err)
	insertAll(t, table, row(3, "c"))
	_, err = table.Grow()
	require.NoError(t, err)
	require.Equal(t, 3, table.ExtentCount())

	reader := table.CreateVolume().OpenReader(nil, nil)
	assert.False(t, reader.EndOfData())

	count := 0
	for reader.Advance() {
		count++
	}
	assert.Equal(t, 3, count)
	assert.True(t, reader.EndOfData())
}

func TestPartitionVolumes(t *testing.T) {
	table, _ := newTestTable(t, 1)
	insertAll(t, table, shuffledRows(7, 1)...)

	v, err := NewPartitionVolume(table, 1, 3)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 4}, v.ExtentIDs())
	assert.Equal(t, 2, v.Extents())

	_, err = v.GetExtent(2)
	assert.ErrorIs(t, err, ErrOutOfRange)

	_, err = NewPartitionVolume(table, 3, 3)
	assert.ErrorIs(t, err, ErrOutOfRange)
}

func TestScanParallel(t *testing.T) {
	table, _ := newTestTable(t, 2)
	insertAll(t, table, shuffledRows(21, 9)...)

	var (
		mu      sync.Mutex
		seen    = map[int64]int{}
		threads = map[int]bool{}
	)
	err := ScanParallel(context.Background(), table, 4, nil, func(thread int, r record.Record) error {
		mu.Lock()
		defer mu.Unlock()
		seen[r[0].ValueInt()]++
		threads[thread] = true
		return nil
	})
	require.NoError(t, err)
	assert.Len(t, seen, 21)
	assert.Len(t, threads, 4)

	var matched atomic.Int64
	err = ScanParallel(context.Background(), table, 3, func(r record.Record) bool { return r[0].ValueInt() < 5 },
		func(int, record.Record) error {
			matched.Add(1)
			return nil
		})
	require.NoError(t, err)
	assert.Equal(t, int64(5), matched.Load())
}

func TestScanParallelStopsOnError(t *testing.T) {
	table, _ := newTestTable(t, 2)
	insertAll(t, table, shuffledRows(8, 2)...)

	boom := errors.New("boom")
	err := ScanParallel(context.Background(), table, 2, nil, func(int, record.Record) error { return boom })
	assert.ErrorIs(t, err, boom)
}
