package schema

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/dot5enko/extent-store/cell"
	"github.com/dot5enko/extent-store/record"
	"github.com/google/uuid"
)

type Kind int64

const (
	KindExtent Kind = iota
	KindTable
)

func (k Kind) String() string {
	switch k {
	case KindExtent:
		return "extent"
	case KindTable:
		return "table"
	default:
		return "kind(" + strconv.FormatInt(int64(k), 10) + ")"
	}
}

const (
	DefaultExtension = "xdb"

	// NoID marks an extent that does not belong to a table.
	NoID int64 = -1
)

// header field positions inside the metadata record
const (
	headerName = iota
	headerID
	headerDirectory
	headerExtension
	headerColumnCount
	headerRecordCount
	headerTimestamp
	headerKeyCount
	headerPageSize
	headerAggregateRecordCount
	headerKind

	HeaderFieldCount
)

// Header is the positional metadata stored ahead of every extent and table.
type Header struct {
	Name      string
	ID        int64
	Directory string
	Extension string

	ColumnCount int64
	RecordCount int64
	Timestamp   time.Time
	KeyCount    int64
	PageSize    int64

	// running total over every child extent, tables only
	AggregateRecordCount int64

	Kind Kind
}

func NewTableHeader(dir, name string, pageSize int64) Header {
	return Header{
		Name:      name,
		ID:        NoID,
		Directory: dir,
		Extension: DefaultExtension,
		PageSize:  pageSize,
		Timestamp: time.Now().UTC(),
		Kind:      KindTable,
	}
}

func NewExtentHeader(dir, name string, pageSize int64) Header {
	return Header{
		Name:      name,
		ID:        NoID,
		Directory: dir,
		Extension: DefaultExtension,
		PageSize:  pageSize,
		Timestamp: time.Now().UTC(),
		Kind:      KindExtent,
	}
}

// NewTempHeader names a scratch extent that is unique within dir.
func NewTempHeader(dir string, pageSize int64) Header {
	return NewExtentHeader(dir, "tmp_"+strings.ReplaceAll(uuid.NewString(), "-", ""), pageSize)
}

// ChildHeader derives the header of extent id of a table.
func (h Header) ChildHeader(id int64) Header {
	return Header{
		Name:      h.Name,
		ID:        id,
		Directory: h.Directory,
		Extension: h.Extension,
		PageSize:  h.PageSize,
		Timestamp: time.Now().UTC(),
		Kind:      KindExtent,
	}
}

// Path is the file of this header. A table and a standalone extent live at
// dir/name.ext; the extents of a table at dir/name.id.ext.
func (h Header) Path() string {
	file := h.Name + "." + h.Extension
	if h.Kind == KindExtent && h.ID >= 0 {
		file = h.Name + "." + strconv.FormatInt(h.ID, 10) + "." + h.Extension
	}
	return filepath.Join(h.Directory, file)
}

// IsMemberOf reports whether h is a child extent of table.
func (h Header) IsMemberOf(table Header) bool {
	return h.Kind == KindExtent &&
		h.ID >= 0 &&
		filepath.Clean(h.Directory) == filepath.Clean(table.Directory) &&
		strings.EqualFold(h.Name, table.Name) &&
		strings.EqualFold(h.Extension, table.Extension)
}

func (h Header) Record() record.Record {
	r := record.New(HeaderFieldCount)
	r[headerName] = cell.String(h.Name)
	r[headerID] = cell.Int(h.ID)
	r[headerDirectory] = cell.String(h.Directory)
	r[headerExtension] = cell.String(h.Extension)
	r[headerColumnCount] = cell.Int(h.ColumnCount)
	r[headerRecordCount] = cell.Int(h.RecordCount)
	r[headerTimestamp] = cell.DateTime(h.Timestamp)
	r[headerKeyCount] = cell.Int(h.KeyCount)
	r[headerPageSize] = cell.Int(h.PageSize)
	r[headerAggregateRecordCount] = cell.Int(h.AggregateRecordCount)
	r[headerKind] = cell.Int(int64(h.Kind))
	return r
}

func HeaderFromRecord(r record.Record) (Header, error) {
	if len(r) != HeaderFieldCount {
		return Header{}, fmt.Errorf("header record has %d fields, expected %d: %w", len(r), HeaderFieldCount, ErrHeader)
	}

	h := Header{
		Name:                 r[headerName].ValueString(),
		ID:                   r[headerID].ValueInt(),
		Directory:            r[headerDirectory].ValueString(),
		Extension:            r[headerExtension].ValueString(),
		ColumnCount:          r[headerColumnCount].ValueInt(),
		RecordCount:          r[headerRecordCount].ValueInt(),
		Timestamp:            r[headerTimestamp].ValueDateTime(),
		KeyCount:             r[headerKeyCount].ValueInt(),
		PageSize:             r[headerPageSize].ValueInt(),
		AggregateRecordCount: r[headerAggregateRecordCount].ValueInt(),
		Kind:                 Kind(r[headerKind].ValueInt()),
	}

	if h.Kind != KindExtent && h.Kind != KindTable {
		return Header{}, fmt.Errorf("unknown header kind %d: %w", h.Kind, ErrHeader)
	}

	return h, nil
}
