// Package march implements a sphere tracer over a signed distance field.
//
// Trace never fails: a ray that leaves the marching range reports the
// MaxDist sentinel as a miss, and a ray that runs out of iterations reports
// the distance it reached.
package march

import (
	"math"

	v3 "github.com/deadsy/sdfx/vec/v3"
)

// Field is anything that can report a signed distance. sdf.SDF3 and
// model.Field both satisfy it.
type Field interface {
	Evaluate(p v3.Vec) float64
}

// FieldFunc adapts a plain function to Field.
type FieldFunc func(p v3.Vec) float64

// Evaluate calls fn(p).
func (fn FieldFunc) Evaluate(p v3.Vec) float64 { return fn(p) }

// Ray is a half line. Direction is expected to be unit length.
type Ray struct {
	Origin    v3.Vec
	Direction v3.Vec
}

// At returns the point t units along the ray.
func (r Ray) At(t float64) v3.Vec {
	return r.Origin.Add(r.Direction.MulScalar(t))
}

// Options bound the trace.
type Options struct {
	MinDist    float64 // start distance and convergence threshold
	MaxDist    float64 // miss sentinel
	Iterations int
	// Damping scales every step. Values below 1 keep the tracer from
	// overshooting fields that overestimate distance.
	Damping float64
}

// DefaultOptions returns the reference marching constants.
func DefaultOptions() Options {
	return Options{
		MinDist:    0.001,
		MaxDist:    30,
		Iterations: 100,
		Damping:    0.5,
	}
}

// Hit is the outcome of one trace.
type Hit struct {
	Distance  float64 // distance along the ray, or MaxDist on a miss
	Steps     int     // field evaluations performed
	Miss      bool
	Converged bool // the last step fell below MinDist
}

// Trace marches r through f.
//
// The accumulated distance starts at MinDist. Each step evaluates f, damps
// the result and stops when its magnitude drops below MinDist. Passing
// MaxDist ends the trace immediately with a miss. Exhausting Iterations
// without converging is not a miss unless the distance is out of range.
func Trace(f Field, r Ray, o Options) Hit {
	d := o.MinDist
	h := Hit{}
	for i := 0; i < o.Iterations; i++ {
		step := f.Evaluate(r.At(d)) * o.Damping
		h.Steps++
		if math.Abs(step) < o.MinDist {
			h.Converged = true
			break
		}
		d += step
		if d >= o.MaxDist {
			return Hit{Distance: o.MaxDist, Steps: h.Steps, Miss: true}
		}
	}
	if d > o.MaxDist {
		return Hit{Distance: o.MaxDist, Steps: h.Steps, Miss: true}
	}
	h.Distance = d
	return h
}

// Point returns the world position of h along r.
func (h Hit) Point(r Ray) v3.Vec {
	return r.At(h.Distance)
}
