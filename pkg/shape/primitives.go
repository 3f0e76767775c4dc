// Package shape implements the closed-form signed distance primitives,
// the boolean combinators over their distances, and the point transforms
// used to place primitives in a model.
//
// All distances follow one sign convention: negative inside, zero on the
// surface, positive outside. Every function is pure.
package shape

import (
	"math"

	v2 "github.com/deadsy/sdfx/vec/v2"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// Box2 is the exact distance from p to an origin-centered rectangle with
// half-extents b.
func Box2(p, b v2.Vec) float64 {
	d := p.Abs().Sub(b)
	outside := d.Max(v2.Vec{}).Length()
	inside := math.Min(math.Max(d.X, d.Y), 0)
	return outside + inside
}

// Box3 is the exact distance from p to an origin-centered box with
// half-extents b.
func Box3(p, b v3.Vec) float64 {
	d := p.Abs().Sub(b)
	outside := d.Max(v3.Vec{}).Length()
	inside := math.Min(maxComponent(d), 0)
	return outside + inside
}

// Ellipsoid approximates the distance from p to an origin-centered
// ellipsoid with radii r. The bound is not exact away from the surface;
// callers marching it should damp their steps.
func Ellipsoid(p, r v3.Vec) float64 {
	return (p.Div(r).Length() - 1) * minComponent(r)
}

// CappedTorus is the distance to a torus arc lying in the XZ plane, centered
// on +Z. r.X is the major radius, r.Y the tube radius and aperture the
// half-angle of the arc in radians, so an aperture of π is a full ring.
func CappedTorus(p v3.Vec, r v2.Vec, aperture float64) float64 {
	p.X = math.Abs(p.X)
	sin, cos := math.Sincos(aperture)
	var k float64
	if cos*p.X > sin*p.Z {
		k = p.X*sin + p.Z*cos
	} else {
		k = math.Hypot(p.X, p.Z)
	}
	return math.Sqrt(p.Dot(p)+r.X*r.X-2*r.X*k) - r.Y
}

// Plane is the distance to the plane through the origin with unit normal n,
// shifted by offset along n.
func Plane(p, n v3.Vec, offset float64) float64 {
	return p.Dot(n) - offset
}

func maxComponent(v v3.Vec) float64 {
	return math.Max(math.Max(v.X, v.Y), v.Z)
}

func minComponent(v v3.Vec) float64 {
	return math.Min(math.Min(v.X, v.Y), v.Z)
}
