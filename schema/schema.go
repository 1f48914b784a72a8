package schema

import (
	"fmt"
	"strings"

	"github.com/dot5enko/extent-store/cell"
	"github.com/dot5enko/extent-store/record"
)

const MaxColumns = 1024

// column row layout used when a schema is persisted
const (
	columnFieldName = iota
	columnFieldAffinity
	columnFieldNullable
	columnFieldSize
	columnFieldCount
)

// Schema is an ordered list of uniquely named columns.
//
// The signature only folds in each column's affinity and nullability, so two
// schemas with the same shape but different names or size bounds compare
// equal.
type Schema struct {
	columns   []Column
	index     map[string]int
	signature uint64
}

const (
	signatureOffset uint64 = 14695981039346656037
	signaturePrime  uint64 = 1099511628211
)

func New() *Schema {
	return &Schema{
		index:     map[string]int{},
		signature: signatureOffset,
	}
}

// Parse builds a schema from a comma separated column list, e.g.
// `id int, name string.16 not null`.
func Parse(text string) (*Schema, error) {
	s := New()
	for _, part := range strings.Split(text, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		col, err := ParseColumn(part)
		if err != nil {
			return nil, err
		}
		if err := s.Add(col); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func MustParse(text string) *Schema {
	s, err := Parse(text)
	if err != nil {
		panic(err)
	}
	return s
}

func (s *Schema) Add(col Column) error {
	if len(s.columns) >= MaxColumns {
		return fmt.Errorf("cannot add column `%s`, schema already has %d columns: %w", col.Name, MaxColumns, ErrSchemaViolation)
	}
	if strings.TrimSpace(col.Name) == "" {
		return fmt.Errorf("column name is empty: %w", ErrSchemaViolation)
	}
	if !col.Affinity.Valid() {
		return fmt.Errorf("column `%s` has unknown affinity %d: %w", col.Name, col.Affinity, ErrSchemaViolation)
	}

	lowered := strings.ToLower(col.Name)
	if _, exists := s.index[lowered]; exists {
		return fmt.Errorf("duplicate column `%s`: %w", col.Name, ErrSchemaViolation)
	}

	col.normalizeSize()
	s.index[lowered] = len(s.columns)
	s.columns = append(s.columns, col)
	s.signature = foldSignature(s.signature, col)

	return nil
}

func foldSignature(sig uint64, col Column) uint64 {
	v := uint64(col.Affinity) << 1
	if col.Nullable {
		v |= 1
	}
	return (sig ^ v) * signaturePrime
}

func (s *Schema) Count() int {
	return len(s.columns)
}

func (s *Schema) Column(i int) Column {
	return s.columns[i]
}

func (s *Schema) Columns() []Column {
	out := make([]Column, len(s.columns))
	copy(out, s.columns)
	return out
}

// IndexOf finds a column by case-insensitive name, -1 if missing.
func (s *Schema) IndexOf(name string) int {
	idx, ok := s.index[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return -1
	}
	return idx
}

func (s *Schema) Names() []string {
	out := make([]string, len(s.columns))
	for i, col := range s.columns {
		out[i] = col.Name
	}
	return out
}

func (s *Schema) Signature() uint64 {
	return s.signature
}

// Equal is the weak schema equality used everywhere in the engine: same column
// count and same signature.
func (s *Schema) Equal(other *Schema) bool {
	if s == nil || other == nil {
		return s == other
	}
	return len(s.columns) == len(other.columns) && s.signature == other.signature
}

// Check validates rec in place. With fixAffinity set, mismatched cells are cast
// to the column affinity instead of failing. Oversized strings and blobs are
// truncated to the column size.
func (s *Schema) Check(rec record.Record, fixAffinity bool) error {
	if len(rec) != len(s.columns) {
		return fmt.Errorf("record has %d fields, schema has %d: %w", len(rec), len(s.columns), ErrSchemaViolation)
	}

	for i, col := range s.columns {
		c := rec[i]

		if c.Affinity() != col.Affinity {
			if !fixAffinity {
				return fmt.Errorf("field `%s` expects %s, got %s: %w", col.Name, col.Affinity, c.Affinity(), ErrSchemaViolation)
			}
			c = cell.Cast(c, col.Affinity)
		}

		if c.IsNull() && !col.Nullable {
			return fmt.Errorf("field `%s` is not nullable: %w", col.Name, ErrSchemaViolation)
		}

		if col.Affinity.IsVariable() {
			c = c.Truncate(col.Size)
		}

		rec[i] = c
	}

	return nil
}

// RecordDiskCost is the worst case encoded size of one record.
func (s *Schema) RecordDiskCost() int {
	total := 0
	for _, col := range s.columns {
		total += col.DiskCost()
	}
	return total
}

func (s *Schema) RecordMemCost() int {
	total := recordMemCost
	for _, col := range s.columns {
		total += col.MemCost()
	}
	return total
}

// Records renders every column as a metadata row: name, affinity, nullable, size.
func (s *Schema) Records() []record.Record {
	out := make([]record.Record, len(s.columns))
	for i, col := range s.columns {
		row := record.New(columnFieldCount)
		row[columnFieldName] = cell.String(col.Name)
		row[columnFieldAffinity] = cell.Int(int64(col.Affinity))
		row[columnFieldNullable] = cell.Bool(col.Nullable)
		row[columnFieldSize] = cell.Int(int64(col.Size))
		out[i] = row
	}
	return out
}

func FromRecords(rows []record.Record) (*Schema, error) {
	s := New()
	for i, row := range rows {
		if len(row) != columnFieldCount {
			return nil, fmt.Errorf("column row %d has %d fields, expected %d: %w", i, len(row), columnFieldCount, ErrSchemaViolation)
		}
		col := Column{
			Name:     row[columnFieldName].ValueString(),
			Affinity: cell.Affinity(row[columnFieldAffinity].ValueInt()),
			Nullable: row[columnFieldNullable].ValueBool(),
			Size:     int(row[columnFieldSize].ValueInt()),
		}
		if err := s.Add(col); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// NewRecord returns an all-null record typed after the columns.
func (s *Schema) NewRecord() record.Record {
	rec := make(record.Record, len(s.columns))
	for i, col := range s.columns {
		rec[i] = cell.Null(col.Affinity)
	}
	return rec
}

func (s *Schema) Clone() *Schema {
	out := New()
	for _, col := range s.columns {
		out.Add(col)
	}
	return out
}

func (s *Schema) String() string {
	parts := make([]string, len(s.columns))
	for i, col := range s.columns {
		parts[i] = col.String()
	}
	return strings.Join(parts, ", ")
}
