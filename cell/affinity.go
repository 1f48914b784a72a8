package cell

import (
	"fmt"
	"strings"
)

// Affinity is the declared scalar type of a cell.
// Numeric order equals arithmetic precedence: the higher value wins when two
// affinities are combined.
type Affinity uint8

const (
	AffinityBool Affinity = iota
	AffinityDateTime
	AffinityInt64
	AffinityDouble
	AffinityBlob
	AffinityString
)

const affinityCount = 6

func (a Affinity) String() string {
	switch a {
	case AffinityBool:
		return "Bool"
	case AffinityDateTime:
		return "DateTime"
	case AffinityInt64:
		return "Int64"
	case AffinityDouble:
		return "Double"
	case AffinityBlob:
		return "Blob"
	case AffinityString:
		return "String"
	default:
		return fmt.Sprintf("Affinity(%d)", uint8(a))
	}
}

// Valid reports whether a is one of the six known affinities.
func (a Affinity) Valid() bool {
	return a < affinityCount
}

// IsScalar reports whether the payload lives in the raw 8-byte pattern.
func (a Affinity) IsScalar() bool {
	return a <= AffinityDouble
}

// IsVariable reports whether the payload has a variable length.
func (a Affinity) IsVariable() bool {
	return a == AffinityString || a == AffinityBlob
}

// ParseAffinity accepts the affinity names used in schema text.
func ParseAffinity(name string) (Affinity, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "bool", "boolean":
		return AffinityBool, nil
	case "date", "datetime", "date_time":
		return AffinityDateTime, nil
	case "int", "int64", "integer", "long":
		return AffinityInt64, nil
	case "double", "float", "float64", "num", "number":
		return AffinityDouble, nil
	case "blob", "bytes", "binary":
		return AffinityBlob, nil
	case "string", "text", "str":
		return AffinityString, nil
	default:
		return 0, fmt.Errorf("unknown affinity `%s`: %w", name, ErrFormat)
	}
}

// Highest returns the affinity with the highest precedence.
func Highest(a, b Affinity) Affinity {
	if a > b {
		return a
	}
	return b
}

// Lowest returns the affinity with the lowest precedence.
func Lowest(a, b Affinity) Affinity {
	if a < b {
		return a
	}
	return b
}

// HighestOf returns the highest precedence affinity among cells, or AffinityBool
// when cells is empty.
func HighestOf(cells ...Cell) Affinity {
	result := AffinityBool
	for _, c := range cells {
		result = Highest(result, c.affinity)
	}
	return result
}

// LowestOf returns the lowest precedence affinity among cells, or AffinityBool
// when cells is empty.
func LowestOf(cells ...Cell) Affinity {
	if len(cells) == 0 {
		return AffinityBool
	}
	result := AffinityString
	for _, c := range cells {
		result = Lowest(result, c.affinity)
	}
	return result
}
