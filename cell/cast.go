package cell

import (
	"encoding/binary"
	"math"
	"strconv"
	"unicode/utf16"
)

// DateTimeLayout is the text form used for DateTime <-> String casts.
const DateTimeLayout = "2006-01-02 15:04:05.9999999"

// Cast converts c to affinity a. The matrix is total: a pair without a
// meaningful conversion yields the null cell of a.
func Cast(c Cell, a Affinity) Cell {
	if c.affinity == a {
		return c
	}
	if c.null {
		return Null(a)
	}

	switch c.affinity {
	case AffinityBool:
		return castBool(c.raw != 0, a)
	case AffinityInt64:
		return castInt(int64(c.raw), a)
	case AffinityDouble:
		return castDouble(c, a)
	case AffinityDateTime:
		return castDateTime(int64(c.raw), a)
	case AffinityString:
		return castString(c.str, a)
	case AffinityBlob:
		return castBlob(c.blob, a)
	}
	return Null(a)
}

func castBool(v bool, a Affinity) Cell {
	var n int64
	if v {
		n = 1
	}
	switch a {
	case AffinityInt64:
		return Int(n)
	case AffinityDouble:
		return Double(float64(n))
	case AffinityString:
		if v {
			return String("True")
		}
		return String("False")
	case AffinityBlob:
		return Blob([]byte{byte(n)})
	}
	return Null(a)
}

func castInt(v int64, a Affinity) Cell {
	switch a {
	case AffinityBool:
		return Bool(v != 0)
	case AffinityDouble:
		return Double(float64(v))
	case AffinityDateTime:
		return Ticks(v)
	case AffinityString:
		return String(strconv.FormatInt(v, 10))
	case AffinityBlob:
		return Blob(rawBytes(uint64(v)))
	}
	return Null(a)
}

func castDouble(c Cell, a Affinity) Cell {
	v := math.Float64frombits(c.raw)
	switch a {
	case AffinityBool:
		return Bool(v != 0)
	case AffinityInt64:
		if math.IsNaN(v) || v >= math.MaxInt64 || v < math.MinInt64 {
			return Null(a)
		}
		return Int(int64(v))
	case AffinityString:
		return String(formatDouble(v))
	case AffinityBlob:
		// written through the integer view of the same bits
		return Blob(rawBytes(uint64(int64(c.raw))))
	}
	return Null(a)
}

func castDateTime(ticks int64, a Affinity) Cell {
	switch a {
	case AffinityInt64:
		return Int(ticks)
	case AffinityString:
		return String(TicksToTime(ticks).Format(DateTimeLayout))
	case AffinityBlob:
		return Blob(rawBytes(uint64(ticks)))
	}
	return Null(a)
}

func castString(v string, a Affinity) Cell {
	if v == emptySentinel {
		v = ""
	}
	switch a {
	case AffinityBlob:
		return Blob(stringToPairs(v))
	default:
		return TryParse(v, a)
	}
}

func castBlob(v []byte, a Affinity) Cell {
	switch a {
	case AffinityBool:
		return Bool(len(v) > 1 && v[1] != 0)
	case AffinityInt64:
		return Int(int64(blobPattern(v)))
	case AffinityDouble:
		return Cell{affinity: AffinityDouble, raw: blobPattern(v)}
	case AffinityDateTime:
		return Ticks(int64(blobPattern(v)))
	case AffinityString:
		if len(v)%2 != 0 {
			return Null(a)
		}
		return String(pairsToString(v))
	}
	return Null(a)
}

func formatDouble(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func rawBytes(raw uint64) []byte {
	out := make([]byte, 8)
	binary.LittleEndian.PutUint64(out, raw)
	return out
}

// blobPattern reads the first 8 bytes as a little-endian pattern, zero padded.
func blobPattern(v []byte) uint64 {
	var buf [8]byte
	copy(buf[:], v)
	return binary.LittleEndian.Uint64(buf[:])
}

// stringToPairs encodes s as UTF-16 code units, high byte first.
func stringToPairs(s string) []byte {
	units := utf16.Encode([]rune(s))
	out := make([]byte, len(units)*2)
	for i, u := range units {
		binary.BigEndian.PutUint16(out[i*2:], u)
	}
	return out
}

func pairsToString(b []byte) string {
	units := make([]uint16, len(b)/2)
	for i := range units {
		units[i] = binary.BigEndian.Uint16(b[i*2:])
	}
	return string(utf16.Decode(units))
}
