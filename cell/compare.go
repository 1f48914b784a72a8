package cell

import (
	"bytes"
	"math"
	"slices"
	"strings"
	"unicode/utf16"
)

// Equal mirrors the engine's equality: it branches on the left affinity only.
// Scalars compare their raw 8-byte patterns, so a Double and an Int64 holding
// the same bits are equal.
func Equal(a, b Cell) bool {
	if a.null || b.null {
		return a.null && b.null
	}

	switch a.affinity {
	case AffinityString:
		if a.hash != b.hash || a.length != b.length {
			return false
		}
		return a.str == b.str
	case AffinityBlob:
		if a.hash != b.hash || a.length != b.length {
			return false
		}
		return bytes.Equal(a.blob, b.blob)
	default:
		return a.raw == b.raw
	}
}

func NotEqual(a, b Cell) bool { return !Equal(a, b) }

// Compare orders two cells. A null sorts before any value and two nulls are
// equal. Strings compare ordinally, blobs by length first and then bytewise,
// scalars by their value.
func Compare(a, b Cell) int {
	if a.null && b.null {
		return 0
	}
	if a.null {
		return -1
	}
	if b.null {
		return 1
	}

	switch {
	case a.affinity == AffinityString && b.affinity == AffinityString:
		return compareUnits(a.str, b.str)
	case a.affinity == AffinityBlob && b.affinity == AffinityBlob:
		if len(a.blob) != len(b.blob) {
			return cmpInt(int64(len(a.blob)), int64(len(b.blob)))
		}
		return bytes.Compare(a.blob, b.blob)
	case a.affinity == AffinityString || b.affinity == AffinityString:
		return compareUnits(a.ValueString(), b.ValueString())
	case a.affinity == AffinityBlob || b.affinity == AffinityBlob:
		return Compare(Cast(a, AffinityBlob), Cast(b, AffinityBlob))
	case a.affinity == AffinityDouble || b.affinity == AffinityDouble:
		return cmpFloat(a.ValueDouble(), b.ValueDouble())
	default:
		return cmpInt(int64(a.raw), int64(b.raw))
	}
}

// compareUnits orders strings by UTF-16 code units. UTF-8 byte order agrees
// with it unless one side holds a rune from U+E000 up.
func compareUnits(a, b string) int {
	if !hasHighRune(a) && !hasHighRune(b) {
		return strings.Compare(a, b)
	}
	return slices.Compare(utf16.Encode([]rune(a)), utf16.Encode([]rune(b)))
}

func hasHighRune(s string) bool {
	for i := 0; i < len(s); i++ {
		// lead bytes 0xEE and up start runes from U+E000
		if s[i] >= 0xEE {
			return true
		}
	}
	return false
}

func Less(a, b Cell) bool { return Compare(a, b) < 0 }
func LessOrEqual(a, b Cell) bool { return Compare(a, b) <= 0 }
func Greater(a, b Cell) bool { return Compare(a, b) > 0 }
func GreaterOrEqual(a, b Cell) bool { return Compare(a, b) >= 0 }

func cmpInt(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// NaN sorts before every other double so the order stays total.
func cmpFloat(a, b float64) int {
	aNaN, bNaN := math.IsNaN(a), math.IsNaN(b)
	switch {
	case aNaN && bNaN:
		return 0
	case aNaN:
		return -1
	case bNaN:
		return 1
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
