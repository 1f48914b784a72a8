package extent

import (
	"fmt"
	"io"
	"time"

	"github.com/davecgh/go-spew/spew"

	"github.com/dot5enko/extent-store/record"
	"github.com/dot5enko/extent-store/schema"
)

type State uint8

const (
	// Building extents live in memory only and accept records.
	Building State = iota
	// Full extents hold exactly Capacity records.
	Full
	// Persisted extents match what the store last wrote or read.
	Persisted
)

func (s State) String() string {
	switch s {
	case Building:
		return "building"
	case Full:
		return "full"
	case Persisted:
		return "persisted"
	default:
		return fmt.Sprintf("state(%d)", uint8(s))
	}
}

// NotFound is the position Seek reports when nothing matches.
const NotFound = -1

// extent bookkeeping outside of the records themselves
const extentMemOverhead = 512

// Extent is a bounded batch of records sharing one schema: the unit of paging.
//
// Content is not locked. A writer owns an extent exclusively through a write
// manager; concurrent readers are safe once nobody mutates it.
type Extent struct {
	header schema.Header
	schema *schema.Schema
	key    schema.Key

	records  []record.Record
	capacity int

	persisted bool
	store     Store
}

// New creates an empty extent whose capacity is the page size divided by the
// worst case disk cost of one record.
func New(header schema.Header, s *schema.Schema) *Extent {
	e := &Extent{
		header: header,
		schema: s,
	}
	e.header.ColumnCount = int64(s.Count())
	e.capacity = capacityOf(header.PageSize, s)
	return e
}

// Load rebuilds an extent from decoded parts. It starts out Persisted.
func Load(header schema.Header, s *schema.Schema, key schema.Key, records []record.Record) *Extent {
	e := New(header, s)
	e.key = key
	e.records = records
	e.persisted = true
	return e
}

func capacityOf(pageSize int64, s *schema.Schema) int {
	cost := int64(s.RecordDiskCost())
	if cost <= 0 || pageSize <= 0 {
		return 0
	}
	return int(pageSize / cost)
}

func (e *Extent) Header() schema.Header {
	return e.header
}

// SetHeader replaces the header, keeping the page size the capacity was
// computed from.
func (e *Extent) SetHeader(h schema.Header) {
	h.PageSize = e.header.PageSize
	e.header = h
}

func (e *Extent) Columns() *schema.Schema {
	return e.schema
}

func (e *Extent) SortBy() schema.Key {
	return e.key
}

func (e *Extent) SetSortBy(k schema.Key) {
	e.key = k
}

func (e *Extent) IsSorted() bool {
	return len(e.key) > 0
}

// Store returns the store this extent was loaded from or registered with.
func (e *Extent) Store() Store {
	return e.store
}

func (e *Extent) SetStore(s Store) {
	e.store = s
}

func (e *Extent) Count() int {
	return len(e.records)
}

func (e *Extent) Capacity() int {
	return e.capacity
}

func (e *Extent) Remaining() int {
	return max(e.capacity-len(e.records), 0)
}

func (e *Extent) IsFull() bool {
	return len(e.records) >= e.capacity
}

func (e *Extent) State() State {
	switch {
	case e.persisted:
		return Persisted
	case e.IsFull():
		return Full
	default:
		return Building
	}
}

// MarkPersisted is called by the store once the extent content is durable or
// retained in its cache.
func (e *Extent) MarkPersisted() {
	e.persisted = true
}

// Add validates rec against the schema, casting mismatched affinities, and
// appends a copy of it.
func (e *Extent) Add(rec record.Record) error {
	if e.IsFull() {
		return fmt.Errorf("extent `%s` holds %d of %d records: %w", e.header.Name, len(e.records), e.capacity, ErrCapacity)
	}

	rec = rec.Clone()
	if err := e.schema.Check(rec, true); err != nil {
		return err
	}

	e.append(rec)
	return nil
}

// UncheckedAdd only enforces capacity.
func (e *Extent) UncheckedAdd(rec record.Record) error {
	if e.IsFull() {
		return fmt.Errorf("extent `%s` holds %d of %d records: %w", e.header.Name, len(e.records), e.capacity, ErrCapacity)
	}
	e.append(rec)
	return nil
}

// UnsafeAdd appends with no checks at all.
func (e *Extent) UnsafeAdd(rec record.Record) {
	e.append(rec)
}

func (e *Extent) append(rec record.Record) {
	e.records = append(e.records, rec)
	e.persisted = false
}

func (e *Extent) Remove(i int) error {
	if err := e.checkIndex(i); err != nil {
		return err
	}
	e.records = append(e.records[:i], e.records[i+1:]...)
	e.persisted = false
	return nil
}

func (e *Extent) Swap(i, j int) error {
	if err := e.checkIndex(i); err != nil {
		return err
	}
	if err := e.checkIndex(j); err != nil {
		return err
	}
	e.records[i], e.records[j] = e.records[j], e.records[i]
	e.persisted = false
	return nil
}

func (e *Extent) checkIndex(i int) error {
	if i < 0 || i >= len(e.records) {
		return fmt.Errorf("record %d of extent `%s` with %d records: %w", i, e.header.Name, len(e.records), ErrOutOfRange)
	}
	return nil
}

// Seek scans from both ends toward the middle and returns the position of the
// first record matching rec, or NotFound. With a key only the key fields are
// compared; without one the whole record must be equal.
func (e *Extent) Seek(rec record.Record, key schema.Key) int {
	match := func(candidate record.Record) bool {
		if len(key) == 0 {
			return candidate.Equal(rec)
		}
		return key.Compare(candidate, rec) == 0
	}

	lo, hi := 0, len(e.records)-1
	for lo <= hi {
		if match(e.records[lo]) {
			return lo
		}
		if match(e.records[hi]) {
			return hi
		}
		lo++
		hi--
	}
	return NotFound
}

func (e *Extent) Record(i int) record.Record {
	return e.records[i]
}

// Records exposes the backing slice. Callers must not keep it across mutations.
func (e *Extent) Records() []record.Record {
	return e.records
}

// SetRecords replaces the whole content.
func (e *Extent) SetRecords(records []record.Record) {
	e.records = records
	e.persisted = false
}

func (e *Extent) ExtentCount() int {
	return 1
}

func (e *Extent) RecordCount() int64 {
	return int64(len(e.records))
}

func (e *Extent) GetExtent(i int) (*Extent, error) {
	if i != 0 {
		return nil, fmt.Errorf("extent %d of a single extent: %w", i, ErrOutOfRange)
	}
	return e, nil
}

// PreSerialize refreshes the header counters ahead of persistence.
func (e *Extent) PreSerialize() {
	e.header.RecordCount = int64(len(e.records))
	e.header.ColumnCount = int64(e.schema.Count())
	e.header.KeyCount = int64(len(e.key))
	e.header.Timestamp = time.Now().UTC()
}

// MemCost is the number of bytes the cache accounts for this extent.
func (e *Extent) MemCost() int {
	return extentMemOverhead + len(e.records)*e.schema.RecordMemCost()
}

func (e *Extent) CreateVolume() *Volume {
	return newVolume(e, []int{0})
}

func (e *Extent) OpenWriter() (RecordWriter, error) {
	return newTableWriter(NewExtentWriteManager(e), e.schema, true), nil
}

func (e *Extent) OpenUncheckedWriter() (RecordWriter, error) {
	return newTableWriter(NewExtentWriteManager(e), e.schema, false), nil
}

// Dump writes a debug rendering of the header and every record.
func (e *Extent) Dump(w io.Writer) {
	spew.Fdump(w, e.header)
	fmt.Fprintf(w, "schema: %s\nkey: %s\nstate: %s, %d/%d records\n", e.schema, e.key, e.State(), len(e.records), e.capacity)
	for i, rec := range e.records {
		fmt.Fprintf(w, "%6d | %s\n", i, rec)
	}
}
