package model

import (
	"fmt"
	"math"

	"github.com/chazu/curvshade/pkg/noise"
	"github.com/chazu/curvshade/pkg/shape"
	"github.com/deadsy/sdfx/sdf"
	v2 "github.com/deadsy/sdfx/vec/v2"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// Part identifies which group of the model produced a distance.
type Part int

const (
	PartNone Part = iota // outside the bounding sphere
	PartBody
	PartLace
)

func (p Part) String() string {
	switch p {
	case PartNone:
		return "none"
	case PartBody:
		return "body"
	case PartLace:
		return "lace"
	default:
		return fmt.Sprintf("Part(%d)", int(p))
	}
}

// Flap animation: the curl swings with period 2π/gaitRate seconds.
const (
	gaitRate  = 5.0
	gaitSwing = 0.5
	gaitLift  = 0.05
)

// Field is the shoe's signed distance field. The zero Time with Animate off
// gives the still pose; with Animate on the model flaps over Time.
//
// Field implements sdf.SDF3.
type Field struct {
	Table   *Table
	Animate bool
	Time    float64
}

var _ sdf.SDF3 = Field{}

// Evaluate returns the signed distance from p to the model.
func (f Field) Evaluate(p v3.Vec) float64 {
	return f.EvaluateTagged(p).Dist
}

// EvaluateTagged returns the distance together with the part nearest p.
func (f Field) EvaluateTagged(p v3.Vec) shape.Tagged[Part] {
	t := f.Table
	if d := p.Length(); d > 2*t.BoundRadius {
		return shape.Tagged[Part]{Dist: d - t.BoundRadius, Tag: PartNone}
	}

	foot := f.curl(p)
	body := f.bodyFrame(foot)

	return shape.UnionTagged(
		shape.Tagged[Part]{Dist: f.body(foot, body), Tag: PartBody},
		shape.Tagged[Part]{Dist: f.laces(foot), Tag: PartLace},
	)
}

// BoundingBox encloses the region where Evaluate consults the model.
func (f Field) BoundingBox() sdf.Box3 {
	r := 2 * f.Table.BoundRadius
	return sdf.Box3{
		Min: v3.Vec{X: -r, Y: -r, Z: -r},
		Max: v3.Vec{X: r, Y: r, Z: r},
	}
}

// PartDistance returns the distance from p to a single part, ignoring the
// rest of the model. PartNone has no surface and reports +Inf inside the
// bounds.
func (f Field) PartDistance(p v3.Vec, part Part) float64 {
	t := f.Table
	if d := p.Length(); d > 2*t.BoundRadius {
		return d - t.BoundRadius
	}
	foot := f.curl(p)
	switch part {
	case PartBody:
		return f.body(foot, f.bodyFrame(foot))
	case PartLace:
		return f.laces(foot)
	default:
		return math.Inf(1)
	}
}

// Only restricts the field to one part.
func (f Field) Only(part Part) sdf.SDF3 {
	return partField{f: f, part: part}
}

type partField struct {
	f    Field
	part Part
}

func (pf partField) Evaluate(p v3.Vec) float64 { return pf.f.PartDistance(p, pf.part) }
func (pf partField) BoundingBox() sdf.Box3    { return pf.f.BoundingBox() }

// curl bends the whole model about X, more strongly toward the heel.
func (f Field) curl(p v3.Vec) v3.Vec {
	t := f.Table
	flap := t.Flap
	if f.Animate {
		s, c := math.Sincos(f.Time * gaitRate)
		flap = -p.Z*(s*gaitSwing+gaitLift) + c*gaitSwing
	}
	p.Y, p.Z = shape.PhaseRotate(p.Y, p.Z, -p.Z*t.FlapTaper+flap)
	return p
}

// bodyFrame moves a curled point into the body's frame: offset, stretched
// along Y, and pushed along Z by the surface texture.
func (f Field) bodyFrame(foot v3.Vec) v3.Vec {
	t := f.Table
	q := foot.Add(vec3(t.BodyOffset))
	q.Y = shape.Elongate(q.Y, t.Stretch)

	tx := t.Texture
	mask := noise.Smoothstep(tx.Rise[0], tx.Rise[1], q.Y) *
		(1 - noise.Smoothstep(tx.Fade[0], tx.Fade[1], q.Z)) *
		noise.Smoothstep(tx.Onset[0], tx.Onset[1], q.Z)
	if mask == 0 {
		return q
	}

	tiltY, _ := shape.PhaseRotate(q.Y, q.Z, tx.Tilt)
	uv := v2.Vec{X: q.X * tx.Frequency[0], Y: tiltY * tx.Frequency[1]}
	q.Z += noise.FractalSum(uv, tx.Octaves) * tx.Amplitude * mask
	return q
}

// body is the shoe shell: toe and shaft blended, the opening and the sole
// cut away, the tongue slot removed and the collar rim added.
func (f Field) body(foot, q v3.Vec) float64 {
	t := f.Table
	up := v3.Vec{Y: 1}

	d := shape.Ellipsoid(t.Toe.Local(q), vec3(t.Toe.Radii))
	d = shape.SmoothUnion(shape.Ellipsoid(t.Shaft.Local(q), vec3(t.Shaft.Radii)), d, t.ShaftBlend)
	d = shape.SmoothSubtraction(shape.Box3(t.Opening.Local(foot), vec3(t.Opening.HalfExtent)), d, t.OpeningBlend)
	d = shape.SmoothSubtraction(shape.Plane(q, up, t.SoleHeight), d, t.SoleBlend)
	d = shape.Subtraction(shape.Box3(t.Slot.Local(foot), vec3(t.Slot.HalfExtent)), d)
	d = shape.SmoothUnion(shape.CappedTorus(t.Collar.Local(foot), t.Collar.Radii(), t.Collar.Aperture), d, t.CollarBlend)
	return d
}

// laces is the union of the lace loops.
func (f Field) laces(foot v3.Vec) float64 {
	d := math.Inf(1)
	for _, l := range f.Table.Laces {
		d = shape.Union(shape.CappedTorus(l.Local(foot), l.Radii(), l.Aperture), d)
	}
	return d
}
