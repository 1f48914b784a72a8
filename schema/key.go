package schema

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dot5enko/extent-store/cell"
	"github.com/dot5enko/extent-store/record"
)

type KeyField struct {
	Index     int
	Ascending bool
}

// Key is an ordered list of field references with a sort direction. It
// describes both a sort order and a projection.
type Key []KeyField

func Asc(index int) KeyField { return KeyField{Index: index, Ascending: true} }
func Desc(index int) KeyField { return KeyField{Index: index, Ascending: false} }

// BuildKey makes an ascending key over the given field indices.
func BuildKey(indices ...int) Key {
	k := make(Key, len(indices))
	for i, idx := range indices {
		k[i] = Asc(idx)
	}
	return k
}

// ParseKey reads `field [asc|desc], ...`. A field is a column name of s or a
// zero based index.
func ParseKey(text string, s *Schema) (Key, error) {
	var k Key
	for _, part := range strings.Split(text, ",") {
		fields := strings.Fields(part)
		if len(fields) == 0 {
			continue
		}
		if len(fields) > 2 {
			return nil, fmt.Errorf("malformed key field `%s`: %w", part, ErrKey)
		}

		idx := s.IndexOf(fields[0])
		if idx < 0 {
			n, err := strconv.Atoi(fields[0])
			if err != nil || n < 0 || n >= s.Count() {
				return nil, fmt.Errorf("unknown key field `%s`: %w", fields[0], ErrKey)
			}
			idx = n
		}

		ascending := true
		if len(fields) == 2 {
			switch strings.ToLower(fields[1]) {
			case "asc":
			case "desc":
				ascending = false
			default:
				return nil, fmt.Errorf("unknown sort direction `%s`: %w", fields[1], ErrKey)
			}
		}

		k = append(k, KeyField{Index: idx, Ascending: ascending})
	}
	return k, nil
}

func (k Key) Count() int {
	return len(k)
}

func (k Key) Indices() []int {
	out := make([]int, len(k))
	for i, f := range k {
		out[i] = f.Index
	}
	return out
}

// EqualWeak compares indices only.
func (k Key) EqualWeak(other Key) bool {
	if len(k) != len(other) {
		return false
	}
	for i := range k {
		if k[i].Index != other[i].Index {
			return false
		}
	}
	return true
}

// EqualStrong compares indices and directions.
func (k Key) EqualStrong(other Key) bool {
	if len(k) != len(other) {
		return false
	}
	for i := range k {
		if k[i] != other[i] {
			return false
		}
	}
	return true
}

// SubsetWeak compares indices over the overlapping prefix of both keys. An
// empty key is never a subset.
func (k Key) SubsetWeak(other Key) bool {
	n := min(len(k), len(other))
	if n == 0 {
		return false
	}
	for i := 0; i < n; i++ {
		if k[i].Index != other[i].Index {
			return false
		}
	}
	return true
}

// SubsetStrong is SubsetWeak that also requires matching directions.
func (k Key) SubsetStrong(other Key) bool {
	n := min(len(k), len(other))
	if n == 0 {
		return false
	}
	for i := 0; i < n; i++ {
		if k[i] != other[i] {
			return false
		}
	}
	return true
}

// Compare orders two records by the key fields.
func (k Key) Compare(a, b record.Record) int {
	for _, f := range k {
		r := cell.Compare(a[f.Index], b[f.Index])
		if r == 0 {
			continue
		}
		if !f.Ascending {
			return -r
		}
		return r
	}
	return 0
}

// Project returns the key fields of rec in key order.
func (k Key) Project(rec record.Record) record.Record {
	out := make(record.Record, len(k))
	for i, f := range k {
		out[i] = rec[f.Index]
	}
	return out
}

// Check verifies every index is a column of s.
func (k Key) Check(s *Schema) error {
	for _, f := range k {
		if f.Index < 0 || f.Index >= s.Count() {
			return fmt.Errorf("key field %d out of range [0, %d): %w", f.Index, s.Count(), ErrKey)
		}
	}
	return nil
}

func (k Key) Records() []record.Record {
	out := make([]record.Record, len(k))
	for i, f := range k {
		out[i] = record.Of(cell.Int(int64(f.Index)), cell.Bool(f.Ascending))
	}
	return out
}

func KeyFromRecords(rows []record.Record) (Key, error) {
	k := make(Key, len(rows))
	for i, row := range rows {
		if len(row) != 2 {
			return nil, fmt.Errorf("key row %d has %d fields, expected 2: %w", i, len(row), ErrKey)
		}
		k[i] = KeyField{Index: int(row[0].ValueInt()), Ascending: row[1].ValueBool()}
	}
	return k, nil
}

func (k Key) String() string {
	parts := make([]string, len(k))
	for i, f := range k {
		dir := "asc"
		if !f.Ascending {
			dir = "desc"
		}
		parts[i] = strconv.Itoa(f.Index) + " " + dir
	}
	return strings.Join(parts, ", ")
}
