package codec

import (
	"errors"
	"fmt"

	"github.com/dot5enko/extent-store/bits"
	"github.com/dot5enko/extent-store/cell"
	"github.com/dot5enko/extent-store/extent"
	"github.com/dot5enko/extent-store/record"
	"github.com/dot5enko/extent-store/schema"
)

const (
	VersionBasic      byte = 1
	VersionCompressed byte = 2

	DefaultVersion = VersionCompressed
)

var ErrUnknownVersion = errors.New("unknown serialization version")

// Provider is one version of the binary format. Cell encoding differs between
// versions; records, collections, extents and tables are framed the same way.
type Provider interface {
	Version() byte

	WriteCell(w *bits.BitWriter, c cell.Cell)
	WriteRecord(w *bits.BitWriter, r record.Record)
	WriteRecordCollection(w *bits.BitWriter, rows []record.Record)
	WriteExtent(w *bits.BitWriter, e *extent.Extent)
	WriteTable(w *bits.BitWriter, t *extent.Table)

	ReadCell(r *bits.BitsReader) (cell.Cell, error)
	ReadRecord(r *bits.BitsReader) (record.Record, error)
	ReadRecordCollection(r *bits.BitsReader) ([]record.Record, error)
	ReadHeaderCollection(r *bits.BitsReader) (Meta, error)
	ReadExtent(r *bits.BitsReader) (*extent.Extent, error)
	ReadTable(r *bits.BitsReader, store extent.Store) (*extent.Table, error)
}

// Meta is everything stored ahead of the record payload.
type Meta struct {
	Header schema.Header
	Schema *schema.Schema
	Key    schema.Key
}

type cellCodec interface {
	version() byte
	writeCell(w *bits.BitWriter, c cell.Cell)
	readCell(r *bits.BitsReader) (cell.Cell, error)
}

type provider struct {
	cells cellCodec
}

var (
	basic      Provider = provider{cells: basicCells{}}
	compressed Provider = provider{cells: compressedCells{}}
)

// Basic is the v1 format: full cell headers, 8-byte scalars, UTF-16 strings.
func Basic() Provider { return basic }

// Compressed is the v2 format: length-tokened scalars and one byte per string
// code unit. Strings outside Latin-1 do not survive a round trip.
func Compressed() Provider { return compressed }

// ForVersion returns the provider that reads files tagged with version b.
func ForVersion(b byte) (Provider, error) {
	switch b {
	case VersionBasic:
		return basic, nil
	case VersionCompressed:
		return compressed, nil
	}
	return nil, fmt.Errorf("version %d: %w (%w)", b, ErrUnknownVersion, cell.ErrFormat)
}

func (p provider) Version() byte {
	return p.cells.version()
}

func (p provider) WriteCell(w *bits.BitWriter, c cell.Cell) {
	p.cells.writeCell(w, c)
}

func (p provider) ReadCell(r *bits.BitsReader) (cell.Cell, error) {
	return p.cells.readCell(r)
}

func (p provider) WriteRecord(w *bits.BitWriter, rec record.Record) {
	w.PutUint16(uint16(len(rec)))
	for _, c := range rec {
		p.cells.writeCell(w, c)
	}
}

func (p provider) ReadRecord(r *bits.BitsReader) (record.Record, error) {
	count, err := r.ReadU16()
	if err != nil {
		return nil, truncated("record width", err)
	}

	rec := make(record.Record, count)
	for i := range rec {
		rec[i], err = p.cells.readCell(r)
		if err != nil {
			return nil, fmt.Errorf("record field %d: %w", i, err)
		}
	}
	return rec, nil
}

func (p provider) WriteRecordCollection(w *bits.BitWriter, rows []record.Record) {
	w.PutUint32(uint32(len(rows)))
	for _, rec := range rows {
		p.WriteRecord(w, rec)
	}
}

func (p provider) ReadRecordCollection(r *bits.BitsReader) ([]record.Record, error) {
	count, err := r.ReadU32()
	if err != nil {
		return nil, truncated("collection size", err)
	}

	rows := make([]record.Record, 0, min(int(count), 4096))
	for i := 0; i < int(count); i++ {
		rec, err := p.ReadRecord(r)
		if err != nil {
			return nil, fmt.Errorf("row %d of %d: %w", i, count, err)
		}
		rows = append(rows, rec)
	}
	return rows, nil
}

func (p provider) writeMeta(w *bits.BitWriter, h schema.Header, s *schema.Schema, key schema.Key) {
	p.WriteRecord(w, h.Record())
	p.WriteRecordCollection(w, s.Records())
	p.WriteRecordCollection(w, key.Records())
}

// ReadHeaderCollection reads the header record, the schema rows and the key
// rows, in that order.
func (p provider) ReadHeaderCollection(r *bits.BitsReader) (Meta, error) {
	var meta Meta

	headerRow, err := p.ReadRecord(r)
	if err != nil {
		return meta, fmt.Errorf("header: %w", err)
	}
	if meta.Header, err = schema.HeaderFromRecord(headerRow); err != nil {
		return meta, err
	}

	columns, err := p.ReadRecordCollection(r)
	if err != nil {
		return meta, fmt.Errorf("schema: %w", err)
	}
	if meta.Schema, err = schema.FromRecords(columns); err != nil {
		return meta, err
	}

	keyRows, err := p.ReadRecordCollection(r)
	if err != nil {
		return meta, fmt.Errorf("key: %w", err)
	}
	if meta.Key, err = schema.KeyFromRecords(keyRows); err != nil {
		return meta, err
	}
	if len(meta.Key) > 0 {
		if err = meta.Key.Check(meta.Schema); err != nil {
			return meta, err
		}
	}

	return meta, nil
}

func (p provider) WriteExtent(w *bits.BitWriter, e *extent.Extent) {
	e.PreSerialize()
	p.writeMeta(w, e.Header(), e.Columns(), e.SortBy())
	p.WriteRecordCollection(w, e.Records())
}

func (p provider) WriteTable(w *bits.BitWriter, t *extent.Table) {
	t.PreSerialize()
	p.writeMeta(w, t.Header(), t.Columns(), t.SortBy())
	p.WriteRecordCollection(w, t.RefRecords())
}

func (p provider) ReadExtent(r *bits.BitsReader) (*extent.Extent, error) {
	meta, rows, err := p.readBody(r)
	if err != nil {
		return nil, err
	}
	return meta.extent(rows)
}

func (p provider) ReadTable(r *bits.BitsReader, store extent.Store) (*extent.Table, error) {
	meta, rows, err := p.readBody(r)
	if err != nil {
		return nil, err
	}
	return meta.table(rows, store)
}

func (p provider) readBody(r *bits.BitsReader) (Meta, []record.Record, error) {
	meta, err := p.ReadHeaderCollection(r)
	if err != nil {
		return meta, nil, err
	}
	rows, err := p.ReadRecordCollection(r)
	if err != nil {
		return meta, nil, fmt.Errorf("records of %s: %w", meta.Header.Path(), err)
	}
	return meta, rows, nil
}

func (m Meta) extent(rows []record.Record) (*extent.Extent, error) {
	if m.Header.Kind != schema.KindExtent {
		return nil, fmt.Errorf("%s holds a %s, not an extent: %w", m.Header.Path(), m.Header.Kind, cell.ErrFormat)
	}
	if m.Header.RecordCount != int64(len(rows)) {
		return nil, fmt.Errorf("%s declares %d records, found %d: %w",
			m.Header.Path(), m.Header.RecordCount, len(rows), cell.ErrFormat)
	}
	for i, rec := range rows {
		if len(rec) != m.Schema.Count() {
			return nil, fmt.Errorf("%s record %d has %d fields, schema has %d: %w",
				m.Header.Path(), i, len(rec), m.Schema.Count(), cell.ErrFormat)
		}
	}
	return extent.Load(m.Header, m.Schema, m.Key, rows), nil
}

func (m Meta) table(refs []record.Record, store extent.Store) (*extent.Table, error) {
	if m.Header.Kind != schema.KindTable {
		return nil, fmt.Errorf("%s holds a %s, not a table: %w", m.Header.Path(), m.Header.Kind, cell.ErrFormat)
	}
	return extent.LoadTable(m.Header, m.Schema, m.Key, refs, store)
}

func truncated(what string, err error) error {
	return fmt.Errorf("reading %s: %w (%w)", what, err, cell.ErrFormat)
}
