package record

import (
	"fmt"
	"hash/fnv"
	"strings"

	"github.com/dot5enko/extent-store/cell"
)

// Record is a fixed-length positional row of cells. It carries no schema;
// callers check it against one when needed.
type Record []cell.Cell

// New returns a record of n null cells. The affinity of every slot is Bool
// until it is assigned.
func New(n int) Record {
	r := make(Record, n)
	for i := range r {
		r[i] = cell.Null(cell.AffinityBool)
	}
	return r
}

func Of(cells ...cell.Cell) Record {
	r := make(Record, len(cells))
	copy(r, cells)
	return r
}

func (r Record) Count() int {
	return len(r)
}

func (r Record) Clone() Record {
	if r == nil {
		return nil
	}
	out := make(Record, len(r))
	copy(out, r)
	return out
}

// Equal compares two records cell by cell using cell.Equal.
func (r Record) Equal(other Record) bool {
	if len(r) != len(other) {
		return false
	}
	for i := range r {
		if !cell.Equal(r[i], other[i]) {
			return false
		}
	}
	return true
}

// Hash folds the cell hashes (raw bits for scalars) into one value.
func (r Record) Hash() uint64 {
	h := fnv.New64a()
	var buf [8]byte
	for _, c := range r {
		v := c.Hash()
		for i := range buf {
			buf[i] = byte(v >> (8 * i))
		}
		h.Write(buf[:])
	}
	return h.Sum64()
}

// Project builds a new record from the cells at the given positions.
func (r Record) Project(indices []int) (Record, error) {
	out := make(Record, len(indices))
	for i, idx := range indices {
		if idx < 0 || idx >= len(r) {
			return nil, fmt.Errorf("field index %d out of range [0, %d)", idx, len(r))
		}
		out[i] = r[idx]
	}
	return out, nil
}

func (r Record) String() string {
	var sb strings.Builder
	for i, c := range r {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(c.String())
	}
	return sb.String()
}
