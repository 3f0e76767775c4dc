package shape

import (
	"math"

	"github.com/deadsy/sdfx/sdf"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// rotate2 turns the pair (a, b) by ang, taking a toward b.
func rotate2(a, b, ang float64) (float64, float64) {
	s, c := math.Sincos(ang)
	return c*a + s*b, c*b - s*a
}

// Rotate moves p into the frame of a primitive rotated by the Euler angles
// r (radians). The turns are applied about Y, then Z, then X, which is the
// order model placements were authored in.
func Rotate(p, r v3.Vec) v3.Vec {
	p.X, p.Z = rotate2(p.X, p.Z, r.Y)
	p.Y, p.X = rotate2(p.Y, p.X, r.Z)
	p.Z, p.Y = rotate2(p.Z, p.Y, r.X)
	return p
}

// Elongate stretches a shape along one axis: the coordinate is clamped into
// [-h, h] and the clamped part removed, so the primitive's cross-section is
// swept over a segment of length 2h.
func Elongate(x, h float64) float64 {
	return x - sdf.Clamp(x, -h, h)
}

// PhaseRotate rotates the pair (u, v) by ang using the matrix
// [cos(ang) cos(ang+33); cos(ang+11) cos(ang)]. The phase offsets 11 and 33
// sit a few milliradians from ∓π/2 (mod 2π), so the matrix is a near
// rotation with slight shear. Model placements were tuned against it, so it
// is kept as is.
func PhaseRotate(u, v, ang float64) (float64, float64) {
	c0 := math.Cos(ang)
	c1 := math.Cos(ang + 11)
	c2 := math.Cos(ang + 33)
	return u*c0 + v*c1, u*c2 + v*c0
}
