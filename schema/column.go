package schema

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dot5enko/extent-store/cell"
)

const (
	ScalarSize = 8

	// DefaultVariableSize bounds String and Blob columns declared without a size.
	DefaultVariableSize = 64

	// MaxVariableSize is the widest String or Blob column.
	MaxVariableSize = cell.MaxStringLength
)

// per-cell costs: the basic codec writes a two byte affinity/null header and a
// four byte length prefix for variable payloads
const (
	cellHeaderDiskCost = 2
	lengthPrefixCost   = 4

	// in-memory cell struct plus a slice header per record
	cellMemCost   = 72
	recordMemCost = 24
)

type Column struct {
	Name     string
	Affinity cell.Affinity
	Nullable bool

	// Size bounds String (UTF-16 units) and Blob (bytes) payloads; scalars are
	// always ScalarSize.
	Size int
}

func NewColumn(name string, affinity cell.Affinity, nullable bool, size int) Column {
	col := Column{
		Name:     name,
		Affinity: affinity,
		Nullable: nullable,
		Size:     size,
	}
	col.normalizeSize()
	return col
}

func (c *Column) normalizeSize() {
	if !c.Affinity.IsVariable() {
		c.Size = ScalarSize
		return
	}
	if c.Size <= 0 {
		c.Size = DefaultVariableSize
	}
	if c.Size > MaxVariableSize {
		c.Size = MaxVariableSize
	}
}

// DiskCost is the largest number of bytes the basic codec spends on one cell
// of this column.
func (c Column) DiskCost() int {
	switch c.Affinity {
	case cell.AffinityBool:
		return cellHeaderDiskCost + 1
	case cell.AffinityString:
		return cellHeaderDiskCost + lengthPrefixCost + 2*c.Size
	case cell.AffinityBlob:
		return cellHeaderDiskCost + lengthPrefixCost + c.Size
	default:
		return cellHeaderDiskCost + ScalarSize
	}
}

func (c Column) MemCost() int {
	switch c.Affinity {
	case cell.AffinityString:
		return cellMemCost + 2*c.Size
	case cell.AffinityBlob:
		return cellMemCost + c.Size
	default:
		return cellMemCost
	}
}

// String renders the column in the text form accepted by ParseColumn.
func (c Column) String() string {
	var sb strings.Builder
	sb.WriteString(c.Name)
	sb.WriteByte(' ')
	sb.WriteString(strings.ToLower(c.Affinity.String()))
	if c.Affinity.IsVariable() {
		sb.WriteByte('.')
		sb.WriteString(strconv.Itoa(c.Size))
	}
	if !c.Nullable {
		sb.WriteString(" not null")
	}
	return sb.String()
}

// ParseColumn reads `name type[.size] [not null|null]`.
func ParseColumn(text string) (Column, error) {
	fields := strings.Fields(text)
	if len(fields) < 2 {
		return Column{}, fmt.Errorf("malformed column definition `%s`: %w", text, ErrSchemaViolation)
	}

	typeName, sizeText, sized := strings.Cut(fields[1], ".")
	affinity, err := cell.ParseAffinity(typeName)
	if err != nil {
		return Column{}, fmt.Errorf("column `%s`: %w", fields[0], err)
	}

	size := 0
	if sized {
		size, err = strconv.Atoi(sizeText)
		if err != nil || size <= 0 {
			return Column{}, fmt.Errorf("column `%s` has malformed size `%s`: %w", fields[0], sizeText, cell.ErrFormat)
		}
	}

	nullable := true
	switch modifiers := strings.ToLower(strings.Join(fields[2:], " ")); modifiers {
	case "":
	case "null":
	case "not null":
		nullable = false
	default:
		return Column{}, fmt.Errorf("column `%s` has unknown modifier `%s`: %w", fields[0], modifiers, ErrSchemaViolation)
	}

	return NewColumn(fields[0], affinity, nullable, size), nil
}
