package extent

import (
	"github.com/dot5enko/extent-store/schema"
)

// Store persists extents and tables. The kernel implements it; tables use it
// to page their extents in and out.
//
// A flush and a buffer request for the same path are only safe when both go
// through the owning Table. Calling a Store directly on a shared path from
// several goroutines is the caller's responsibility.
type Store interface {
	RequestFlushExtent(e *Extent) error
	RequestFlushTable(t *Table) error
	RequestBufferExtent(path string) (*Extent, error)
}

// TabularData is the surface shared by a single Extent and a Table.
type TabularData interface {
	Columns() *schema.Schema
	SortBy() schema.Key
	ExtentCount() int
	RecordCount() int64
	Header() schema.Header

	// GetExtent returns the i-th extent in id order.
	GetExtent(i int) (*Extent, error)

	CreateVolume() *Volume
	OpenWriter() (RecordWriter, error)
	OpenUncheckedWriter() (RecordWriter, error)
	PreSerialize()
}

var (
	_ TabularData = (*Extent)(nil)
	_ TabularData = (*Table)(nil)
)
