package extent

import (
	"fmt"

	"github.com/dot5enko/extent-store/record"
	"github.com/dot5enko/extent-store/schema"
)

// Filter is a predicate evaluated against the current content of a Register.
type Filter interface {
	Render() bool
}

// Register is the slot a reader writes the current record into before the
// filter runs.
type Register interface {
	SetRecord(rec record.Record)
	Record() record.Record
}

// FilterFunc adapts a plain function to Filter.
type FilterFunc func() bool

func (f FilterFunc) Render() bool {
	return f()
}

// Where builds a filter that tests the record currently held by reg.
func Where(reg Register, pred func(rec record.Record) bool) Filter {
	return FilterFunc(func() bool {
		rec := reg.Record()
		return rec != nil && pred(rec)
	})
}

// RecordRegister is the default Register: it holds one record.
type RecordRegister struct {
	rec record.Record
}

func NewRecordRegister() *RecordRegister {
	return &RecordRegister{}
}

func (r *RecordRegister) SetRecord(rec record.Record) {
	r.rec = rec
}

func (r *RecordRegister) Record() record.Record {
	return r.rec
}

// Volume is the set of extents one operation works on: a single extent, a
// whole table, or one thread's partition of a table.
type Volume struct {
	data TabularData
	ids  []int
}

func newVolume(data TabularData, ids []int) *Volume {
	return &Volume{data: data, ids: ids}
}

// NewPartitionVolume selects the extents whose id modulo threads equals thread.
func NewPartitionVolume(data TabularData, thread, threads int) (*Volume, error) {
	if threads <= 0 || thread < 0 || thread >= threads {
		return nil, fmt.Errorf("partition %d of %d: %w", thread, threads, ErrOutOfRange)
	}

	var ids []int
	for id := thread; id < data.ExtentCount(); id += threads {
		ids = append(ids, id)
	}
	return newVolume(data, ids), nil
}

func (v *Volume) Columns() *schema.Schema {
	return v.data.Columns()
}

func (v *Volume) SortKey() schema.Key {
	return v.data.SortBy()
}

// Extents is the number of extents in the volume.
func (v *Volume) Extents() int {
	return len(v.ids)
}

// ExtentIDs lists the ids of the extents in the volume, in scan order.
func (v *Volume) ExtentIDs() []int {
	out := make([]int, len(v.ids))
	copy(out, v.ids)
	return out
}

// GetExtent returns the i-th extent of the volume.
func (v *Volume) GetExtent(i int) (*Extent, error) {
	if i < 0 || i >= len(v.ids) {
		return nil, fmt.Errorf("extent %d of volume with %d extents: %w", i, len(v.ids), ErrOutOfRange)
	}
	return v.data.GetExtent(v.ids[i])
}

// OpenReader starts a cursor over the volume. A nil filter accepts every record.
func (v *Volume) OpenReader(reg Register, filter Filter) *RecordReader {
	if reg == nil {
		reg = NewRecordRegister()
	}
	return &RecordReader{
		volume:   v,
		register: reg,
		filter:   filter,
	}
}

// Sort orders the underlying data by key. A table is sorted as a whole, a
// single extent in place.
func (v *Volume) Sort(sm *SortMaster, key schema.Key) error {
	switch data := v.data.(type) {
	case *Table:
		return sm.SortTable(data, key)
	case *Extent:
		return sm.Sort(data, key)
	}
	return fmt.Errorf("volume over %T cannot be sorted: %w", v.data, ErrConsistency)
}

// RecordReader is a forward cursor over a Volume.
type RecordReader struct {
	volume   *Volume
	register Register
	filter   Filter

	// next volume position to load
	next    int
	current *Extent
	pos     int

	err error
}

// Advance moves to the next record that passes the filter and loads it into
// the register. It returns false at the end of data or on error.
func (r *RecordReader) Advance() bool {
	if r.filter == nil {
		return r.step()
	}

	for r.step() {
		if r.register.Record() == nil {
			continue
		}
		if r.filter.Render() {
			return true
		}
	}
	return false
}

func (r *RecordReader) step() bool {
	if r.err != nil {
		return false
	}

	for r.current == nil || r.pos >= r.current.Count() {
		if r.next >= r.volume.Extents() {
			r.current = nil
			return false
		}

		e, err := r.volume.GetExtent(r.next)
		if err != nil {
			r.err = err
			return false
		}
		r.next++
		r.current = e
		r.pos = 0
	}

	r.register.SetRecord(r.current.Record(r.pos))
	r.pos++
	return true
}

// EndOfData is true once the current extent and the extent sequence are both
// exhausted.
func (r *RecordReader) EndOfData() bool {
	currentDone := r.current == nil || r.pos >= r.current.Count()
	return currentDone && r.next >= r.volume.Extents()
}

// Record is the record currently held by the register.
func (r *RecordReader) Record() record.Record {
	return r.register.Record()
}

func (r *RecordReader) Err() error {
	return r.err
}
