package extent

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/dot5enko/extent-store/cell"
	"github.com/dot5enko/extent-store/record"
	"github.com/dot5enko/extent-store/schema"
)

// reference rows: extent id, record count
const (
	refID = iota
	refCount
)

const (
	refPageSize      = math.MaxInt32
	tableMemOverhead = 1024
)

var refSchema = schema.MustParse("ID int not null, COUNT int not null")

// RefSchema is the schema of the reference rows a table stores.
func RefSchema() *schema.Schema {
	return refSchema
}

// Table is an ordered, growing set of extents. It keeps only the reference
// rows (extent id and record count) in memory and pages extents through its
// store on demand.
//
// mu guards the bookkeeping and is never held across a store call. ioMu
// orders store traffic: extent and table flushes hold it exclusively and
// buffer requests share it, so a reader never sees an extent id whose flush
// is still in flight. A reference row is published only after its extent
// was flushed.
type Table struct {
	mu   sync.RWMutex
	ioMu sync.RWMutex

	header schema.Header
	schema *schema.Schema
	key    schema.Key
	refs   *Extent

	store Store

	writerMu sync.Mutex
	writers  int
	manager  *TableWriteManager
}

func NewTable(header schema.Header, s *schema.Schema, store Store) *Table {
	header.Kind = schema.KindTable
	header.ColumnCount = int64(s.Count())
	header.AggregateRecordCount = 0

	return &Table{
		header: header,
		schema: s,
		refs:   New(refHeader(header), refSchema),
		store:  store,
	}
}

// LoadTable rebuilds a table from its decoded header, schema, key and
// reference rows.
func LoadTable(header schema.Header, s *schema.Schema, key schema.Key, refs []record.Record, store Store) (*Table, error) {
	t := NewTable(header, s, store)
	t.key = key

	var total int64
	for i, row := range refs {
		if len(row) != 2 {
			return nil, fmt.Errorf("reference row %d of table `%s` has %d fields: %w", i, header.Name, len(row), ErrConsistency)
		}
		if row[refID].ValueInt() != int64(i) {
			return nil, fmt.Errorf("reference row %d of table `%s` points at extent %d: %w", i, header.Name, row[refID].ValueInt(), ErrConsistency)
		}
		t.refs.UnsafeAdd(row)
		total += row[refCount].ValueInt()
	}

	t.header.AggregateRecordCount = total
	t.refs.MarkPersisted()
	return t, nil
}

func refHeader(table schema.Header) schema.Header {
	h := table.ChildHeader(schema.NoID)
	h.Name = table.Name + "_refs"
	h.PageSize = refPageSize
	return h
}

func (t *Table) Header() schema.Header {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.header
}

func (t *Table) Columns() *schema.Schema {
	return t.schema
}

func (t *Table) SortBy() schema.Key {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.key
}

func (t *Table) SetSortBy(k schema.Key) {
	t.mu.Lock()
	t.key = k
	t.mu.Unlock()
}

func (t *Table) IsSorted() bool {
	return len(t.SortBy()) > 0
}

func (t *Table) Store() Store {
	return t.store
}

func (t *Table) ExtentCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.refs.Count()
}

func (t *Table) RecordCount() int64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.header.AggregateRecordCount
}

// ExtentRecordCount is the count stored in the reference row of extent i.
func (t *Table) ExtentRecordCount(i int) (int64, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if err := t.checkIndex(i); err != nil {
		return 0, err
	}
	return t.refs.Record(i)[refCount].ValueInt(), nil
}

// RefRecords returns a copy of the reference rows.
func (t *Table) RefRecords() []record.Record {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]record.Record, t.refs.Count())
	for i, row := range t.refs.Records() {
		out[i] = row.Clone()
	}
	return out
}

// ExtentPath is the file of extent i.
func (t *Table) ExtentPath(i int) string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.header.ChildHeader(int64(i)).Path()
}

func (t *Table) checkIndex(i int) error {
	if i < 0 || i >= t.refs.Count() {
		return fmt.Errorf("extent %d of table `%s` with %d extents: %w", i, t.header.Name, t.refs.Count(), ErrOutOfRange)
	}
	return nil
}

// setCount rewrites the count of reference row i and keeps the aggregate in
// step. It returns the previous count. Callers hold t.mu.
func (t *Table) setCount(i int, count int64) int64 {
	row := t.refs.Record(i)
	old := row[refCount].ValueInt()
	row[refCount] = cell.Int(count)
	t.header.AggregateRecordCount += count - old
	t.refs.persisted = false
	return old
}

// appendRef publishes reference row id. Callers hold t.mu.
func (t *Table) appendRef(id int64, count int64) {
	t.refs.UnsafeAdd(record.Of(cell.Int(id), cell.Int(0)))
	t.setCount(int(id), count)
}

// dropRef takes back the last reference row. Callers hold t.mu.
func (t *Table) dropRef() {
	last := t.refs.Count() - 1
	t.setCount(last, 0)
	_ = t.refs.Remove(last)
}

// commit flushes e, publishes the bookkeeping change and flushes the table.
// When the table flush fails the change is undone, so the in-memory table
// never runs ahead of its store. Callers hold t.ioMu exclusively.
func (t *Table) commit(e *Extent, publish func() (undo func())) error {
	if err := t.store.RequestFlushExtent(e); err != nil {
		return err
	}

	t.mu.Lock()
	undo := publish()
	t.mu.Unlock()

	if err := t.store.RequestFlushTable(t); err != nil {
		t.mu.Lock()
		undo()
		t.mu.Unlock()
		return err
	}
	return nil
}

// NewShell returns an empty, detached extent with the table's schema and page
// size, suitable for staging records.
func (t *Table) NewShell() *Extent {
	h := t.Header()
	return New(schema.NewTempHeader(h.Directory, h.PageSize), t.schema)
}

func (t *Table) nextChild() schema.Header {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.header.ChildHeader(int64(t.refs.Count()))
}

// Grow appends a new empty extent and persists it.
func (t *Table) Grow() (*Extent, error) {
	t.ioMu.Lock()
	defer t.ioMu.Unlock()

	h := t.nextChild()
	e := New(h, t.schema)

	err := t.commit(e, func() func() {
		t.appendRef(h.ID, 0)
		return t.dropRef
	})
	if err != nil {
		return nil, err
	}
	return e, nil
}

// AddExtent adopts a filled, detached extent as the next child.
func (t *Table) AddExtent(e *Extent) error {
	t.ioMu.Lock()
	defer t.ioMu.Unlock()

	t.mu.RLock()
	err := t.checkCompatible(e)
	if err == nil && e.Count() == 0 {
		err = fmt.Errorf("cannot add an empty extent to table `%s`: %w", t.header.Name, ErrConsistency)
	}
	t.mu.RUnlock()
	if err != nil {
		return err
	}

	staged := e.Header()
	h := t.nextChild()
	e.SetHeader(h)

	err = t.commit(e, func() func() {
		t.appendRef(h.ID, int64(e.Count()))
		return t.dropRef
	})
	if err != nil {
		e.SetHeader(staged)
		return err
	}
	return nil
}

// SetExtent writes back an extent previously read from this table.
func (t *Table) SetExtent(e *Extent) error {
	t.ioMu.Lock()
	defer t.ioMu.Unlock()

	h := e.Header()
	t.mu.RLock()
	err := t.checkCompatible(e)
	if err == nil && !h.IsMemberOf(t.header) {
		err = fmt.Errorf("extent `%s` (id %d) is not a member of table `%s`: %w", h.Name, h.ID, t.header.Name, ErrConsistency)
	}
	if err == nil {
		if rangeErr := t.checkIndex(int(h.ID)); rangeErr != nil {
			err = fmt.Errorf("%w: %w", ErrConsistency, rangeErr)
		}
	}
	t.mu.RUnlock()
	if err != nil {
		return err
	}

	return t.commit(e, func() func() {
		old := t.setCount(int(h.ID), int64(e.Count()))
		return func() { t.setCount(int(h.ID), old) }
	})
}

func (t *Table) checkCompatible(e *Extent) error {
	if !t.schema.Equal(e.Columns()) {
		return fmt.Errorf("schema `%s` does not match table `%s` schema `%s`: %w", e.Columns(), t.header.Name, t.schema, ErrConsistency)
	}
	if e.Header().PageSize != t.header.PageSize {
		return fmt.Errorf("page size %d does not match table `%s` page size %d: %w", e.Header().PageSize, t.header.Name, t.header.PageSize, ErrConsistency)
	}
	return nil
}

// GetExtent fetches extent i through the store. It waits for a flush in
// flight to finish.
func (t *Table) GetExtent(i int) (*Extent, error) {
	t.ioMu.RLock()
	defer t.ioMu.RUnlock()

	t.mu.RLock()
	if err := t.checkIndex(i); err != nil {
		t.mu.RUnlock()
		return nil, err
	}
	path := t.header.ChildHeader(int64(i)).Path()
	t.mu.RUnlock()

	return t.store.RequestBufferExtent(path)
}

func (t *Table) PopFirst() (*Extent, error) {
	if t.ExtentCount() == 0 {
		return nil, fmt.Errorf("table `%s` has no extents: %w", t.Header().Name, ErrNotFound)
	}
	return t.GetExtent(0)
}

func (t *Table) PopLast() (*Extent, error) {
	n := t.ExtentCount()
	if n == 0 {
		return nil, fmt.Errorf("table `%s` has no extents: %w", t.Header().Name, ErrNotFound)
	}
	return t.GetExtent(n - 1)
}

func (t *Table) PopFirstOrGrow() (*Extent, error) {
	if t.ExtentCount() == 0 {
		return t.Grow()
	}
	return t.GetExtent(0)
}

func (t *Table) PopLastOrGrow() (*Extent, error) {
	n := t.ExtentCount()
	if n == 0 {
		return t.Grow()
	}
	return t.GetExtent(n - 1)
}

// RequestFlushMe hands the table (header and reference rows) to the store.
func (t *Table) RequestFlushMe() error {
	t.ioMu.Lock()
	defer t.ioMu.Unlock()

	return t.store.RequestFlushTable(t)
}

// CursorClose is the closing flush once the last writer is gone.
func (t *Table) CursorClose() error {
	return t.RequestFlushMe()
}

func (t *Table) PreSerialize() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.header.RecordCount = int64(t.refs.Count())
	t.header.ColumnCount = int64(t.schema.Count())
	t.header.KeyCount = int64(len(t.key))
	t.header.Timestamp = time.Now().UTC()
}

// MarkPersisted records that the reference rows match the store.
func (t *Table) MarkPersisted() {
	t.mu.Lock()
	t.refs.MarkPersisted()
	t.mu.Unlock()
}

func (t *Table) MemCost() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return tableMemOverhead + t.refs.MemCost()
}

func (t *Table) CreateVolume() *Volume {
	n := t.ExtentCount()
	ids := make([]int, n)
	for i := range ids {
		ids[i] = i
	}
	return newVolume(t, ids)
}

func (t *Table) OpenWriter() (RecordWriter, error) {
	return t.openWriter(true)
}

func (t *Table) OpenUncheckedWriter() (RecordWriter, error) {
	return t.openWriter(false)
}

// openWriter hands out a writer over the table's shared write manager.
func (t *Table) openWriter(checked bool) (RecordWriter, error) {
	m, err := t.acquireWriter()
	if err != nil {
		return nil, err
	}
	return newTableWriter(m, t.schema, checked), nil
}

// acquireWriter returns the table's write manager, opening it for the first
// writer, and counts one more user.
func (t *Table) acquireWriter() (*TableWriteManager, error) {
	t.writerMu.Lock()
	defer t.writerMu.Unlock()

	if t.manager == nil {
		m, err := openTableWriteManager(t)
		if err != nil {
			return nil, err
		}
		t.manager = m
	}
	t.writers++
	return t.manager, nil
}

// releaseWriter drops one user of the write manager and reports whether it was
// the last one. The manager is detached from the table then.
func (t *Table) releaseWriter() bool {
	t.writerMu.Lock()
	defer t.writerMu.Unlock()

	t.writers--
	if t.writers > 0 {
		return false
	}
	t.manager = nil
	return true
}
