package extent

import (
	"slices"
	"sync/atomic"

	"github.com/dot5enko/extent-store/record"
	"github.com/dot5enko/extent-store/schema"
)

// Comparator orders two records.
type Comparator func(a, b record.Record) int

// SortMaster sorts extents and tables without loading a whole table in memory.
// Every comparator call is counted.
type SortMaster struct {
	comparisons atomic.Int64
}

func NewSortMaster() *SortMaster {
	return &SortMaster{}
}

// Comparisons is the number of comparator calls made so far.
func (sm *SortMaster) Comparisons() int64 {
	return sm.comparisons.Load()
}

func (sm *SortMaster) counted(key schema.Key) Comparator {
	return func(a, b record.Record) int {
		sm.comparisons.Add(1)
		return key.Compare(a, b)
	}
}

// Sort orders one extent in place, unless its current key already covers key.
func (sm *SortMaster) Sort(e *Extent, key schema.Key) error {
	if e.SortBy().SubsetStrong(key) {
		return nil
	}
	if err := key.Check(e.Columns()); err != nil {
		return err
	}

	records := e.Records()
	slices.SortStableFunc(records, sm.counted(key))
	e.SetRecords(records)
	e.SetSortBy(key)
	return nil
}

// SortMerge redistributes two individually sorted extents so that a holds the
// lowest a.Count() records of both and b the rest. It is one compare-exchange
// step of a sorting network, not a general merge sort. It reports whether
// anything moved.
func (sm *SortMaster) SortMerge(a, b *Extent, cmp Comparator) bool {
	left, right := a.Records(), b.Records()
	if len(left) == 0 || len(right) == 0 {
		return false
	}
	if cmp(left[len(left)-1], right[0]) <= 0 {
		return false
	}

	lower := make([]record.Record, 0, len(left))
	upper := make([]record.Record, 0, len(right))

	i, j := 0, 0
	for i < len(left) || j < len(right) {
		var next record.Record
		switch {
		case j >= len(right):
			next = left[i]
			i++
		case i >= len(left):
			next = right[j]
			j++
		case cmp(left[i], right[j]) <= 0:
			next = left[i]
			i++
		default:
			next = right[j]
			j++
		}

		if len(lower) < cap(lower) {
			lower = append(lower, next)
		} else {
			upper = append(upper, next)
		}
	}

	a.SetRecords(lower)
	b.SetRecords(upper)
	return true
}

// SortEach sorts every extent of t independently and writes back the ones
// that changed.
func (sm *SortMaster) SortEach(t *Table, key schema.Key) error {
	if err := key.Check(t.Columns()); err != nil {
		return err
	}

	for i := 0; i < t.ExtentCount(); i++ {
		e, err := t.GetExtent(i)
		if err != nil {
			return err
		}
		if e.SortBy().SubsetStrong(key) {
			continue
		}
		if err := sm.Sort(e, key); err != nil {
			return err
		}
		if err := t.SetExtent(e); err != nil {
			return err
		}
	}
	return nil
}

// SortTable fully sorts t: every extent is sorted, then SortMerge runs over
// every pair (i, j), i < j. After the pass for i, extent i holds the smallest
// records left. The cost is quadratic in the number of extents.
func (sm *SortMaster) SortTable(t *Table, key schema.Key) error {
	if t.SortBy().SubsetStrong(key) {
		return nil
	}
	if err := sm.SortEach(t, key); err != nil {
		return err
	}

	cmp := sm.counted(key)
	n := t.ExtentCount()
	for i := 0; i < n-1; i++ {
		a, err := t.GetExtent(i)
		if err != nil {
			return err
		}

		for j := i + 1; j < n; j++ {
			b, err := t.GetExtent(j)
			if err != nil {
				return err
			}
			if !sm.SortMerge(a, b, cmp) {
				continue
			}
			if err := t.SetExtent(a); err != nil {
				return err
			}
			if err := t.SetExtent(b); err != nil {
				return err
			}
		}
	}

	t.SetSortBy(key)
	return t.RequestFlushMe()
}
