package cell

import (
	"bytes"
	"math"
	"strings"
	"unicode/utf16"
)

type operator uint8

const (
	opAdd operator = iota
	opSubtract
	opMultiply
	opDivide
	opCheckDivide
	opModulo
	opAnd
	opOr
	opXor
)

func Add(a, b Cell) Cell { return apply(opAdd, a, b) }
func Subtract(a, b Cell) Cell { return apply(opSubtract, a, b) }
func Multiply(a, b Cell) Cell { return apply(opMultiply, a, b) }
func Divide(a, b Cell) Cell { return apply(opDivide, a, b) }
func Modulo(a, b Cell) Cell { return apply(opModulo, a, b) }
func And(a, b Cell) Cell { return apply(opAnd, a, b) }
func Or(a, b Cell) Cell { return apply(opOr, a, b) }
func Xor(a, b Cell) Cell { return apply(opXor, a, b) }

// CheckDivide divides like Divide but yields zero instead of null when the
// divisor is zero.
func CheckDivide(a, b Cell) Cell { return apply(opCheckDivide, a, b) }

func apply(op operator, a, b Cell) Cell {
	if a.null {
		return a
	}
	if b.null {
		return b
	}

	if a.affinity != b.affinity {
		target := Highest(a.affinity, b.affinity)
		return apply(op, promote(a, target), promote(b, target))
	}

	switch a.affinity {
	case AffinityInt64:
		return intOp(op, int64(a.raw), int64(b.raw), Int)
	case AffinityDateTime:
		return intOp(op, int64(a.raw), int64(b.raw), Ticks)
	case AffinityBool:
		return intOp(op, int64(a.raw), int64(b.raw), func(v int64) Cell { return Bool(v != 0) })
	case AffinityDouble:
		return doubleOp(op, a, b)
	case AffinityString:
		return stringOp(op, a.ValueString(), b.ValueString())
	case AffinityBlob:
		return blobOp(op, a.blob, b.blob)
	}
	return Null(a.affinity)
}

// promote converts c into target through the safe accessors.
func promote(c Cell, target Affinity) Cell {
	switch target {
	case AffinityBool:
		return Bool(c.ValueBool())
	case AffinityDateTime:
		return Ticks(c.ValueInt())
	case AffinityInt64:
		return Int(c.ValueInt())
	case AffinityDouble:
		return Double(c.ValueDouble())
	case AffinityBlob:
		return Blob(c.ValueBlob())
	case AffinityString:
		return String(c.ValueString())
	}
	return Null(target)
}

func intOp(op operator, x, y int64, build func(int64) Cell) Cell {
	switch op {
	case opAdd:
		return build(x + y)
	case opSubtract:
		return build(x - y)
	case opMultiply:
		return build(x * y)
	case opDivide, opCheckDivide:
		if y == 0 {
			return zeroDivide(op, build)
		}
		return build(x / y)
	case opModulo:
		if y == 0 {
			return build(0).WithNull()
		}
		return build(x % y)
	case opAnd:
		return build(x & y)
	case opOr:
		return build(x | y)
	case opXor:
		return build(x ^ y)
	}
	return build(0).WithNull()
}

func zeroDivide(op operator, build func(int64) Cell) Cell {
	if op == opCheckDivide {
		return build(0)
	}
	return build(0).WithNull()
}

func doubleOp(op operator, a, b Cell) Cell {
	x := math.Float64frombits(a.raw)
	y := math.Float64frombits(b.raw)

	switch op {
	case opAdd:
		return Double(x + y)
	case opSubtract:
		return Double(x - y)
	case opMultiply:
		return Double(x * y)
	case opDivide, opCheckDivide:
		if y == 0 {
			if op == opCheckDivide {
				return Double(0)
			}
			return Null(AffinityDouble)
		}
		return Double(x / y)
	case opModulo:
		if y == 0 {
			return Null(AffinityDouble)
		}
		return Double(math.Mod(x, y))
	case opAnd:
		return Cell{affinity: AffinityDouble, raw: a.raw & b.raw}
	case opOr:
		return Cell{affinity: AffinityDouble, raw: a.raw | b.raw}
	case opXor:
		return Cell{affinity: AffinityDouble, raw: a.raw ^ b.raw}
	}
	return Null(AffinityDouble)
}

func stringOp(op operator, x, y string) Cell {
	switch op {
	case opAdd:
		return String(x + y)
	case opSubtract:
		if y == "" {
			return String(x)
		}
		return String(strings.ReplaceAll(x, y, ""))
	case opAnd, opOr, opXor:
		left := utf16.Encode([]rune(x))
		right := utf16.Encode([]rune(y))
		if len(left) == 0 || len(right) == 0 {
			return String(x)
		}
		out := make([]uint16, len(left))
		for i, u := range left {
			out[i] = bitwise16(op, u, right[i%len(right)])
		}
		return String(string(utf16.Decode(out)))
	}
	return Null(AffinityString)
}

func blobOp(op operator, x, y []byte) Cell {
	switch op {
	case opAdd:
		out := make([]byte, 0, len(x)+len(y))
		out = append(out, x...)
		return Blob(append(out, y...))
	case opSubtract:
		if len(y) == 0 {
			return Blob(x)
		}
		return Blob(bytes.ReplaceAll(x, y, nil))
	case opAnd, opOr, opXor:
		if len(x) == 0 || len(y) == 0 {
			return Blob(x)
		}
		out := make([]byte, len(x))
		for i, v := range x {
			out[i] = byte(bitwise16(op, uint16(v), uint16(y[i%len(y)])))
		}
		return Blob(out)
	}
	return Null(AffinityBlob)
}

func bitwise16(op operator, x, y uint16) uint16 {
	switch op {
	case opAnd:
		return x & y
	case opOr:
		return x | y
	default:
		return x ^ y
	}
}

// Plus is the unary identity.
func Plus(c Cell) Cell { return c }

// Negate flips the sign of numeric cells. Bool negates logically; String and
// Blob have no negation and yield null.
func Negate(c Cell) Cell {
	if c.null {
		return c
	}
	switch c.affinity {
	case AffinityInt64:
		return Int(-int64(c.raw))
	case AffinityDouble:
		return Double(-math.Float64frombits(c.raw))
	case AffinityDateTime:
		return Ticks(-int64(c.raw))
	case AffinityBool:
		return Bool(c.raw == 0)
	}
	return Null(c.affinity)
}

// Not is the logical not for Bool and the bitwise complement otherwise.
func Not(c Cell) Cell {
	if c.null {
		return c
	}
	switch c.affinity {
	case AffinityBool:
		return Bool(c.raw == 0)
	case AffinityInt64:
		return Int(^int64(c.raw))
	case AffinityDateTime:
		return Ticks(^int64(c.raw))
	case AffinityDouble:
		return Cell{affinity: AffinityDouble, raw: ^c.raw}
	case AffinityString:
		units := utf16.Encode([]rune(c.ValueString()))
		for i := range units {
			units[i] = ^units[i]
		}
		return String(string(utf16.Decode(units)))
	case AffinityBlob:
		out := make([]byte, len(c.blob))
		for i, v := range c.blob {
			out[i] = ^v
		}
		return Blob(out)
	}
	return Null(c.affinity)
}

// Increment adds one unit (one tick for DateTime). Non numeric cells yield null.
func Increment(c Cell) Cell {
	return step(c, 1)
}

// Decrement subtracts one unit (one tick for DateTime).
func Decrement(c Cell) Cell {
	return step(c, -1)
}

func step(c Cell, delta int64) Cell {
	if c.null {
		return c
	}
	switch c.affinity {
	case AffinityInt64:
		return Int(int64(c.raw) + delta)
	case AffinityDouble:
		return Double(math.Float64frombits(c.raw) + float64(delta))
	case AffinityDateTime:
		return Ticks(int64(c.raw) + delta)
	}
	return Null(c.affinity)
}
