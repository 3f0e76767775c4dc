package shape

import "math"

// Union keeps the nearer of two surfaces.
func Union(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

// Tagged is a distance that carries which surface produced it.
type Tagged[T any] struct {
	Dist float64
	Tag  T
}

// UnionTagged is Union for tagged distances; the tag of the nearer operand
// survives. Ties keep b.
func UnionTagged[T any](a, b Tagged[T]) Tagged[T] {
	if a.Dist < b.Dist {
		return a
	}
	return b
}

// SmoothUnion merges two surfaces with a rounded fillet of radius r.
// For r <= 0 it is exactly Union.
func SmoothUnion(a, b, r float64) float64 {
	if r <= 0 {
		return Union(a, b)
	}
	u := math.Hypot(math.Max(r-a, 0), math.Max(r-b, 0))
	return math.Max(r, Union(a, b)) - u
}

// Subtraction carves the region of a out of b.
func Subtraction(a, b float64) float64 {
	return math.Max(-a, b)
}

// SmoothSubtraction carves a out of b, rounding the new edge with radius r.
// For r <= 0 it is exactly Subtraction.
func SmoothSubtraction(a, b, r float64) float64 {
	if r <= 0 {
		return Subtraction(a, b)
	}
	u := math.Hypot(math.Max(r+b, 0), math.Max(r-a, 0))
	return math.Min(-r, math.Max(b, -a)) + u
}
