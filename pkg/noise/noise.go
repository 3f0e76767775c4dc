// Package noise provides the deterministic hash and value-noise helpers
// used to roughen the model surface.
//
// Every function is pure: the same coordinate always yields the same value,
// so the procedural detail does not shimmer between frames.
package noise

import (
	"math"

	"github.com/chewxy/math32"
	v2 "github.com/deadsy/sdfx/vec/v2"
)

// Hash returns a pseudo-random value in [0,1) for a 2D coordinate.
//
// The sine hash is evaluated in float32, the precision a GPU fragment stage
// uses for it. Its output depends on rounding of a large intermediate, so
// float64 arithmetic would produce a different (equally valid) pattern.
func Hash(p v2.Vec) float64 {
	x, y := float32(p.X), float32(p.Y)
	s := math32.Sin(x*12.9898+y*78.233) * 43758.5453
	return float64(s - math32.Floor(s))
}

// ValueNoise bilinearly interpolates Hash at the four lattice corners around
// p, with a 3t²-2t³ blend per axis.
func ValueNoise(p v2.Vec) float64 {
	ix, iy := math.Floor(p.X), math.Floor(p.Y)
	fx, fy := p.X-ix, p.Y-iy

	a := Hash(v2.Vec{X: ix, Y: iy})
	b := Hash(v2.Vec{X: ix + 1, Y: iy})
	c := Hash(v2.Vec{X: ix, Y: iy + 1})
	d := Hash(v2.Vec{X: ix + 1, Y: iy + 1})

	ux := fx * fx * (3 - 2*fx)
	uy := fy * fy * (3 - 2*fy)

	return a + (b-a)*ux + (c-a)*uy*(1-ux) + (d-b)*ux*uy
}

// FractalSum accumulates octaves of ValueNoise. Each octave samples at four
// times the previous frequency with a quarter of the previous amplitude.
// Zero or negative octaves yield 0.
func FractalSum(p v2.Vec, octaves int) float64 {
	sum, amp := 0.0, 1.0
	for i := 0; i < octaves; i++ {
		sum += ValueNoise(p) * amp
		p = p.MulScalar(4)
		amp *= 0.25
	}
	return sum
}

// Smoothstep is the Hermite step between edges e0 and e1.
func Smoothstep(e0, e1, x float64) float64 {
	t := (x - e0) / (e1 - e0)
	if t < 0 {
		t = 0
	} else if t > 1 {
		t = 1
	}
	return t * t * (3 - 2*t)
}
