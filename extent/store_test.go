package extent

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dot5enko/extent-store/cell"
	"github.com/dot5enko/extent-store/record"
	"github.com/dot5enko/extent-store/schema"
)

// memStore keeps everything in maps, standing in for the kernel.
type memStore struct {
	mu      sync.Mutex
	extents map[string]*Extent
	tables  map[string]*Table

	extentFlushes int
	tableFlushes  int

	extentErr error
	tableErr  error

	// gate, when set, holds every extent flush until it is closed
	gate    chan struct{}
	entered chan struct{}
}

func newMemStore() *memStore {
	return &memStore{
		extents: map[string]*Extent{},
		tables:  map[string]*Table{},
	}
}

func (s *memStore) RequestFlushExtent(e *Extent) error {
	s.mu.Lock()
	gate, entered, fail := s.gate, s.entered, s.extentErr
	s.mu.Unlock()

	if gate != nil {
		select {
		case entered <- struct{}{}:
		default:
		}
		<-gate
	}
	if fail != nil {
		return fail
	}

	e.PreSerialize()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.extents[e.Header().Path()] = e
	s.extentFlushes++
	e.MarkPersisted()
	return nil
}

func (s *memStore) RequestFlushTable(t *Table) error {
	s.mu.Lock()
	fail := s.tableErr
	s.mu.Unlock()
	if fail != nil {
		return fail
	}

	t.PreSerialize()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.tables[t.Header().Path()] = t
	s.tableFlushes++
	t.MarkPersisted()
	return nil
}

func (s *memStore) RequestBufferExtent(path string) (*Extent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.extents[path]
	if !ok {
		return nil, fmt.Errorf("%s: %w", path, ErrNotFound)
	}
	return e, nil
}

// failWith makes later flushes fail. nil restores them.
func (s *memStore) failWith(extentErr, tableErr error) {
	s.mu.Lock()
	s.extentErr = extentErr
	s.tableErr = tableErr
	s.mu.Unlock()
}

// hold blocks extent flushes. entered fires once a flush is waiting, release
// lets it and every later flush through.
func (s *memStore) hold() (entered <-chan struct{}, release func()) {
	gate := make(chan struct{})
	signal := make(chan struct{}, 1)

	s.mu.Lock()
	s.gate = gate
	s.entered = signal
	s.mu.Unlock()

	return signal, func() {
		s.mu.Lock()
		s.gate = nil
		s.mu.Unlock()
		close(gate)
	}
}

func (s *memStore) flushes() (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.extentFlushes, s.tableFlushes
}

const testSchema = "id int, name string.16"

// pageFor returns the page size that holds exactly n records of s.
func pageFor(s *schema.Schema, n int) int64 {
	return int64(s.RecordDiskCost() * n)
}

func row(id int64, name string) record.Record {
	return record.Of(cell.Int(id), cell.String(name))
}

func newTestTable(t *testing.T, perExtent int) (*Table, *memStore) {
	t.Helper()

	s := schema.MustParse(testSchema)
	store := newMemStore()
	table := NewTable(schema.NewTableHeader(t.TempDir(), "items", pageFor(s, perExtent)), s, store)
	require.NoError(t, table.RequestFlushMe())
	return table, store
}

func insertAll(t *testing.T, data TabularData, rows ...record.Record) {
	t.Helper()

	w, err := data.OpenWriter()
	require.NoError(t, err)
	for _, r := range rows {
		require.NoError(t, w.Insert(r))
	}
	require.NoError(t, w.Close())
}

func readAll(t *testing.T, data TabularData) []record.Record {
	t.Helper()

	reader := data.CreateVolume().OpenReader(nil, nil)
	var out []record.Record
	for reader.Advance() {
		out = append(out, reader.Record())
	}
	require.NoError(t, reader.Err())
	require.True(t, reader.EndOfData())
	return out
}
