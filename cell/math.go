package cell

import (
	"math"

	"golang.org/x/exp/constraints"
)

// unary applies fn to the double view of c. NaN and infinite results become
// null; otherwise the result is cast back to the affinity of c.
func unary(c Cell, fn func(float64) float64) Cell {
	if c.null {
		return c
	}
	return backTo(c.affinity, fn(c.ValueDouble()))
}

func backTo(a Affinity, v float64) Cell {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return Null(a)
	}
	return Cast(Double(v), a)
}

func Log(c Cell) Cell { return unary(c, math.Log) }
func Log2(c Cell) Cell { return unary(c, math.Log2) }
func Log10(c Cell) Cell { return unary(c, math.Log10) }
func Exp(c Cell) Cell { return unary(c, math.Exp) }
func Exp2(c Cell) Cell { return unary(c, math.Exp2) }
func Exp10(c Cell) Cell {
	return unary(c, func(v float64) float64 { return math.Pow(10, v) })
}

func Sin(c Cell) Cell { return unary(c, math.Sin) }
func Cos(c Cell) Cell { return unary(c, math.Cos) }
func Tan(c Cell) Cell { return unary(c, math.Tan) }
func Asin(c Cell) Cell { return unary(c, math.Asin) }
func Acos(c Cell) Cell { return unary(c, math.Acos) }
func Atan(c Cell) Cell { return unary(c, math.Atan) }
func Sinh(c Cell) Cell { return unary(c, math.Sinh) }
func Cosh(c Cell) Cell { return unary(c, math.Cosh) }
func Tanh(c Cell) Cell { return unary(c, math.Tanh) }
func Sqrt(c Cell) Cell { return unary(c, math.Sqrt) }

// Logb is the logarithm of c in the given base.
func Logb(c, base Cell) Cell {
	if c.null {
		return c
	}
	if base.null {
		return Null(c.affinity)
	}
	return backTo(c.affinity, math.Log(c.ValueDouble())/math.Log(base.ValueDouble()))
}

// Power raises c to exponent, keeping the affinity of c.
func Power(c, exponent Cell) Cell {
	if c.null {
		return c
	}
	if exponent.null {
		return Null(c.affinity)
	}
	return backTo(c.affinity, math.Pow(c.ValueDouble(), exponent.ValueDouble()))
}

func Abs(c Cell) Cell {
	if c.null {
		return c
	}
	if c.affinity == AffinityInt64 {
		return Int(abs(int64(c.raw)))
	}
	return unary(c, math.Abs)
}

// Sign returns -1, 0 or 1 in the affinity of c.
func Sign(c Cell) Cell {
	if c.null {
		return c
	}
	if c.affinity == AffinityInt64 {
		return Int(sign(int64(c.raw)))
	}
	return unary(c, func(v float64) float64 {
		if math.IsNaN(v) {
			return v
		}
		return float64(sign(v))
	})
}

func abs[T constraints.Signed | constraints.Float](v T) T {
	if v < 0 {
		return -v
	}
	return v
}

func sign[T constraints.Signed | constraints.Float](v T) int64 {
	switch {
	case v < 0:
		return -1
	case v > 0:
		return 1
	}
	return 0
}
