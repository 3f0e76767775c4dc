// Package camera builds the per-frame view: an eye orbiting the model (or
// placed by the pointer), an orthonormal look-at basis and the primary ray
// through each image coordinate.
package camera

import (
	"math"

	"github.com/chazu/curvshade/pkg/march"
	"github.com/chazu/curvshade/pkg/surface"
	v2 "github.com/deadsy/sdfx/vec/v2"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// Params are the fixed lens and orbit settings.
type Params struct {
	Radius float64 // eye distance from the origin
	Rate   float64 // orbit angular speed in rad/s
	Focus  v3.Vec  // look-at point
	FOV    float64 // half-angle of the pixel cone per unit uv, radians
}

// DefaultParams returns the reference lens.
func DefaultParams() Params {
	return Params{
		Radius: 10,
		Rate:   0.6,
		Focus:  v3.Vec{X: 0, Y: 0.08, Z: -0.137},
		FOV:    0.015,
	}
}

// Input is the per-frame state the eye placement depends on.
type Input struct {
	Time       float64
	Resolution v2.Vec // viewport size in pixels
	Pointer    v2.Vec // pointer position in pixels, y up
	Pressed    bool   // primary button held
}

// Camera is an eye with its look-at basis.
type Camera struct {
	Position v3.Vec
	surface.Basis
	lens v2.Vec // (sin fov, cos fov)
}

var worldUp = v3.Vec{Y: 1}

// New places the eye for in. Without a pressed pointer the eye circles the
// Y axis at Radius; with one, the pointer's fractional position in the
// viewport picks a point on a sphere of that radius.
func New(p Params, in Input) Camera {
	var pos v3.Vec
	if in.Pressed && in.Resolution.X > 0 && in.Resolution.Y > 0 {
		ax := in.Pointer.X / in.Resolution.X * 2 * math.Pi
		ay := in.Pointer.Y / in.Resolution.Y * 2 * math.Pi
		pos = v3.Vec{X: math.Sin(ax), Y: math.Sin(ay), Z: math.Cos(ax)}
	} else {
		s, c := math.Sincos(in.Time * p.Rate)
		pos = v3.Vec{X: s, Z: c}
	}
	pos = pos.MulScalar(p.Radius)

	back := pos.Sub(p.Focus).Normalize()
	side := back.Cross(worldUp).Normalize()
	up := side.Cross(back).Normalize()

	s, c := math.Sincos(p.FOV)
	return Camera{
		Position: pos,
		Basis:    surface.Basis{Side: side, Up: up, Back: back},
		lens:     v2.Vec{X: s, Y: c},
	}
}

// Ray returns the primary ray through the image coordinate uv, where uv
// spans [-aspect, aspect] x [-1, 1] with y up.
func (c Camera) Ray(uv v2.Vec) march.Ray {
	d := c.Side.MulScalar(c.lens.X * uv.X).
		Add(c.Up.MulScalar(c.lens.X * uv.Y)).
		Sub(c.Back.MulScalar(c.lens.Y))
	return march.Ray{Origin: c.Position, Direction: d.Normalize()}
}

// ScreenUV maps a pixel-space coordinate to the uv Ray expects.
func ScreenUV(frag, res v2.Vec) v2.Vec {
	return v2.Vec{
		X: (frag.X/res.X*2 - 1) * res.X / res.Y,
		Y: frag.Y/res.Y*2 - 1,
	}
}
