// Package surface estimates differential properties of a distance field at
// a traced hit: the gradient normal, its projection into a camera basis and
// the screen-space curvature of that projected normal.
package surface

import (
	"math"

	"github.com/chazu/curvshade/pkg/march"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// DefaultEpsilon is the tetrahedron offset used by Normal.
const DefaultEpsilon = 0.0005

// Fallback is returned by Normal when the gradient vanishes.
var Fallback = v3.Vec{Y: 1}

// tetrahedron vertices scaled to unit length: (+,-,-) (-,-,+) (-,+,-) (+,+,+).
var tetrahedron = func() [4]v3.Vec {
	var k [4]v3.Vec
	for i := range k {
		bit := func(b int) float64 { return float64(2*(b&1) - 1) }
		k[i] = v3.Vec{X: bit((i + 3) >> 1), Y: bit(i >> 1), Z: bit(i)}.MulScalar(0.5773)
	}
	return k
}()

// Normal estimates the unit surface normal of f at p from four samples at
// the corners of a tetrahedron of size eps. A zero or non-finite gradient
// yields Fallback.
func Normal(f march.Field, p v3.Vec, eps float64) v3.Vec {
	var g v3.Vec
	for _, k := range tetrahedron {
		g = g.Add(k.MulScalar(f.Evaluate(p.Add(k.MulScalar(eps)))))
	}
	l := g.Length()
	if !(l > 1e-12) || math.IsInf(l, 0) {
		return Fallback
	}
	return g.MulScalar(1 / l)
}

// Basis is an orthonormal camera frame. Side and Up span the image plane
// and Back points from the scene toward the eye.
type Basis struct {
	Side v3.Vec
	Up   v3.Vec
	Back v3.Vec
}

// LocalNormal expresses the world normal n in the camera frame whose view
// direction is dir: x along Side, y along Up, z toward the eye.
func LocalNormal(n v3.Vec, b Basis, dir v3.Vec) v3.Vec {
	return v3.Vec{
		X: n.Dot(b.Back.Cross(b.Up)),
		Y: n.Dot(b.Up),
		Z: -n.Dot(dir),
	}
}

// depthScale converts a hit distance to the normalized depth curvature is
// divided by.
const depthScale = 5

// Curvature estimates surface curvature from the camera-local normal n and
// its forward differences dx, dy to the neighboring pixels on the right
// and above. depth is the hit distance over the marching range. Convex
// silhouettes come out positive, creases negative.
func Curvature(n, dx, dy v3.Vec, depth float64) float64 {
	xdx := n.Sub(dx).Cross(n.Add(dx)).Y
	ydy := n.Sub(dy).Cross(n.Add(dy)).X
	return (xdx - ydy) * 2 / (depth * depthScale)
}
