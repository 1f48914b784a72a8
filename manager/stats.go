package manager

import (
	"fmt"
	"sync/atomic"

	"github.com/dustin/go-humanize"
)

type counters struct {
	diskReads     atomic.Int64
	diskWrites    atomic.Int64
	virtualReads  atomic.Int64
	virtualWrites atomic.Int64
}

// Stats is a snapshot of the kernel counters. Virtual reads and writes were
// served by the cache without touching disk.
type Stats struct {
	DiskReads     int64
	DiskWrites    int64
	VirtualReads  int64
	VirtualWrites int64

	Memory    int64
	MaxMemory int64
	Items     int
	Tables    int
	Extents   int
}

func (s Stats) String() string {
	return fmt.Sprintf("disk r/w %d/%d, virtual r/w %d/%d, memory %s/%s, %d items (%d tables, %d extents)",
		s.DiskReads, s.DiskWrites, s.VirtualReads, s.VirtualWrites,
		humanize.IBytes(uint64(max(s.Memory, 0))), humanize.IBytes(uint64(max(s.MaxMemory, 0))),
		s.Items, s.Tables, s.Extents)
}
