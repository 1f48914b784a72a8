package cell

import (
	"hash/fnv"
	"math"
	"time"
	"unicode/utf16"
)

// MaxStringLength is the longest string payload, in UTF-16 code units.
const MaxStringLength = 65536

// DateTime values are ticks: 100ns intervals since 0001-01-01T00:00:00Z.
const (
	MinTicks int64 = 0
	MaxTicks int64 = 3155378975999999999

	ticksPerSecond   int64 = 10_000_000
	unixEpochTicks   int64 = 621355968000000000
	nanosecondsPerTick     = 100
)

// an empty string is stored as a single NUL code unit
const emptySentinel = "\x00"

// Cell is the engine's tagged scalar value.
//
// Bool, Int64, Double and DateTime keep their payload as a raw 8-byte pattern,
// which is what equality and hashing operate on. String and Blob carry a cached
// content hash and length next to the payload.
type Cell struct {
	affinity Affinity
	null     bool

	raw  uint64
	str  string
	blob []byte

	hash   uint64
	length int
}

func Bool(v bool) Cell {
	c := Cell{affinity: AffinityBool}
	if v {
		c.raw = 1
	}
	return c
}

func Int(v int64) Cell {
	return Cell{affinity: AffinityInt64, raw: uint64(v)}
}

func Double(v float64) Cell {
	return Cell{affinity: AffinityDouble, raw: math.Float64bits(v)}
}

// Ticks builds a DateTime cell, null when ticks fall outside [MinTicks, MaxTicks].
func Ticks(ticks int64) Cell {
	if ticks < MinTicks || ticks > MaxTicks {
		return Null(AffinityDateTime)
	}
	return Cell{affinity: AffinityDateTime, raw: uint64(ticks)}
}

// DateTime builds a DateTime cell from a time value (UTC).
func DateTime(t time.Time) Cell {
	return Ticks(TimeToTicks(t))
}

// String builds a String cell, truncating the payload to MaxStringLength units.
func String(v string) Cell {
	c := Cell{affinity: AffinityString}
	c.setString(v)
	return c
}

// Blob builds a Blob cell holding a copy of v.
func Blob(v []byte) Cell {
	c := Cell{affinity: AffinityBlob}
	c.setBlob(append([]byte(nil), v...))
	return c
}

// Null returns the null cell of affinity a.
func Null(a Affinity) Cell {
	c := Cell{affinity: a, null: true}
	if a == AffinityString {
		c.str = emptySentinel
		c.hash = hashString(emptySentinel)
	}
	return c
}

// FromBits rebuilds a scalar cell from its raw 8-byte pattern.
func FromBits(a Affinity, raw uint64) Cell {
	switch a {
	case AffinityBool:
		return Bool(raw != 0)
	case AffinityDateTime:
		return Ticks(int64(raw))
	default:
		return Cell{affinity: a, raw: raw}
	}
}

func (c *Cell) setString(v string) {
	units := utf16Len(v)
	if units > MaxStringLength {
		v = cutUnits(v, MaxStringLength)
		units = utf16Len(v)
	}
	if units == 0 {
		v = emptySentinel
		units = 1
	}
	c.str = v
	c.length = units
	c.hash = hashString(v)
}

func (c *Cell) setBlob(v []byte) {
	if v == nil {
		v = []byte{}
	}
	c.blob = v
	c.length = len(v)
	c.hash = hashBytes(v)
}

func (c Cell) Affinity() Affinity { return c.affinity }

func (c Cell) IsNull() bool { return c.null }

// Bits returns the raw 8-byte pattern of a scalar cell. For String and Blob the
// cached content hash is returned instead.
func (c Cell) Bits() uint64 {
	if c.affinity.IsVariable() {
		return c.hash
	}
	return c.raw
}

// Len is the payload length: UTF-16 units for strings, bytes for blobs, 8 for
// scalars and 0 for any null cell.
func (c Cell) Len() int {
	if c.null {
		return 0
	}
	if c.affinity.IsVariable() {
		return c.length
	}
	if c.affinity == AffinityBool {
		return 1
	}
	return 8
}

// Hash uses the cached content hash for strings and blobs and the raw pattern
// otherwise.
func (c Cell) Hash() uint64 {
	if c.null {
		return uint64(c.affinity) + 1
	}
	return c.Bits()
}

// RawString returns the stored string payload, including the empty sentinel.
func (c Cell) RawString() string { return c.str }

// RawBlob returns the stored blob payload without copying.
func (c Cell) RawBlob() []byte { return c.blob }

// WithNull returns a copy of c with the null flag set, keeping the affinity.
func (c Cell) WithNull() Cell {
	return Null(c.affinity)
}

func (c Cell) ValueBool() bool {
	if c.null {
		return false
	}
	if c.affinity == AffinityBool {
		return c.raw != 0
	}
	v := Cast(c, AffinityBool)
	return !v.null && v.raw != 0
}

func (c Cell) ValueInt() int64 {
	if c.null {
		return 0
	}
	switch c.affinity {
	case AffinityInt64, AffinityDateTime, AffinityBool:
		return int64(c.raw)
	}
	v := Cast(c, AffinityInt64)
	if v.null {
		return 0
	}
	return int64(v.raw)
}

func (c Cell) ValueDouble() float64 {
	if c.null {
		return 0
	}
	if c.affinity == AffinityDouble {
		return math.Float64frombits(c.raw)
	}
	if c.affinity == AffinityDateTime {
		return float64(int64(c.raw))
	}
	v := Cast(c, AffinityDouble)
	if v.null {
		return 0
	}
	return math.Float64frombits(v.raw)
}

// ValueTicks returns the DateTime payload in ticks.
func (c Cell) ValueTicks() int64 {
	if c.null {
		return 0
	}
	if c.affinity == AffinityDateTime {
		return int64(c.raw)
	}
	v := Cast(c, AffinityDateTime)
	if v.null {
		return 0
	}
	return int64(v.raw)
}

func (c Cell) ValueDateTime() time.Time {
	return TicksToTime(c.ValueTicks())
}

func (c Cell) ValueString() string {
	if c.null {
		return ""
	}
	if c.affinity == AffinityString {
		if c.str == emptySentinel {
			return ""
		}
		return c.str
	}
	v := Cast(c, AffinityString)
	if v.null || v.str == emptySentinel {
		return ""
	}
	return v.str
}

func (c Cell) ValueBlob() []byte {
	if c.null {
		return nil
	}
	if c.affinity == AffinityBlob {
		return c.blob
	}
	v := Cast(c, AffinityBlob)
	if v.null {
		return nil
	}
	return v.blob
}

func (c Cell) String() string {
	if c.null {
		return "null"
	}
	return c.ValueString()
}

// TicksToTime converts ticks into a UTC time.
func TicksToTime(ticks int64) time.Time {
	ticks -= unixEpochTicks
	secs := ticks / ticksPerSecond
	rem := ticks % ticksPerSecond
	if rem < 0 {
		secs--
		rem += ticksPerSecond
	}
	return time.Unix(secs, rem*nanosecondsPerTick).UTC()
}

// TimeToTicks converts t into ticks; values before year 1 are negative.
func TimeToTicks(t time.Time) int64 {
	t = t.UTC()
	return (t.Unix()*ticksPerSecond + unixEpochTicks) + int64(t.Nanosecond()/nanosecondsPerTick)
}

func utf16Len(s string) int {
	n := 0
	for _, r := range s {
		if r >= 0x10000 && r <= utf16MaxRune {
			n += 2
		} else {
			n++
		}
	}
	return n
}

const utf16MaxRune = '\U0010FFFF'

// cutUnits keeps at most n UTF-16 units of s. A surrogate pair that would be
// split at the cut is dropped whole.
func cutUnits(s string, n int) string {
	units := utf16.Encode([]rune(s))
	if len(units) <= n {
		return s
	}
	units = units[:n]
	if n > 0 && utf16.IsSurrogate(rune(units[n-1])) && units[n-1] < 0xDC00 {
		units = units[:n-1]
	}
	return string(utf16.Decode(units))
}

func hashString(s string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(s))
	return h.Sum64()
}

func hashBytes(b []byte) uint64 {
	h := fnv.New64a()
	h.Write(b)
	return h.Sum64()
}

// Truncate shortens a String to n UTF-16 units or a Blob to n bytes. Other
// cells, and payloads already within n, are returned unchanged.
func (c Cell) Truncate(n int) Cell {
	if c.null || n < 0 || c.Len() <= n {
		return c
	}
	switch c.affinity {
	case AffinityString:
		return String(cutUnits(c.ValueString(), n))
	case AffinityBlob:
		return Blob(c.blob[:n])
	}
	return c
}
