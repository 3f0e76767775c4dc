// Package frame drives the kernel uniforms from outside: it accumulates
// playback time, tracks pointer state and builds the per-frame uniform
// block handed to every pixel.
package frame

import (
	"math"

	"github.com/chazu/curvshade/pkg/kernel"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// Clock accumulates playback time from per-frame deltas. It never runs
// backwards. The zero value starts at t=0.
type Clock struct {
	t float64
}

// NewClock returns a clock starting at start seconds.
func NewClock(start float64) *Clock {
	c := &Clock{}
	c.Reset(start)
	return c
}

// Advance adds dt seconds and returns the new time. Negative and non-finite
// deltas are ignored.
func (c *Clock) Advance(dt float64) float64 {
	if dt > 0 && !math.IsInf(dt, 1) {
		c.t += dt
	}
	return c.t
}

// Time returns the accumulated time in seconds.
func (c *Clock) Time() float64 { return c.t }

// Reset sets the clock to t, clamped to zero.
func (c *Clock) Reset(t float64) {
	if !(t > 0) {
		t = 0
	}
	c.t = t
}

// Uniforms builds the uniform block for a w×h viewport.
func Uniforms(w, h int, t float64, p kernel.Pointer) kernel.Uniforms {
	return kernel.Uniforms{
		Resolution: v3.Vec{X: float64(w), Y: float64(h), Z: 1},
		Time:       t,
		Pointer:    p,
	}
}

// Driver is the frame loop state shared by the viewer and offline
// renders: a clock, the viewport size and the pointer.
type Driver struct {
	Clock

	width, height int
	pointer       kernel.Pointer
	down          bool
}

// NewDriver returns a driver for a w×h viewport starting at start seconds.
func NewDriver(w, h int, start float64) *Driver {
	d := &Driver{width: w, height: h}
	d.Reset(start)
	return d
}

// Resize changes the viewport size used by later frames.
func (d *Driver) Resize(w, h int) {
	d.width, d.height = w, h
}

// Size returns the viewport size.
func (d *Driver) Size() (w, h int) { return d.width, d.height }

// Pointer records the pointer position in pixels, y up, and the button
// state. W holds whether the button was down on the previous sample.
func (d *Driver) Pointer(x, y float64, down bool) {
	var z, w float64
	if down {
		z = 1
	}
	if d.down {
		w = 1
	}
	d.pointer = kernel.Pointer{X: x, Y: y, Z: z, W: w}
	d.down = down
}

// Update advances the clock by dt and returns the uniforms for the next
// frame.
func (d *Driver) Update(dt float64) kernel.Uniforms {
	t := d.Advance(dt)
	return Uniforms(d.width, d.height, t, d.pointer)
}

// Current returns the uniforms without advancing time.
func (d *Driver) Current() kernel.Uniforms {
	return Uniforms(d.width, d.height, d.Time(), d.pointer)
}

// Sequence returns the times of n frames at fps starting at start. A
// single frame is rendered at start.
func Sequence(n int, fps, start float64) []float64 {
	if n <= 0 {
		return nil
	}
	times := make([]float64, n)
	for i := range times {
		times[i] = start
		if fps > 0 {
			times[i] += float64(i) / fps
		}
	}
	return times
}

// Delay converts fps to a GIF frame delay in hundredths of a second, at
// least 1.
func Delay(fps float64) int {
	if !(fps > 0) {
		return 1
	}
	d := int(math.Round(100 / fps))
	if d < 1 {
		d = 1
	}
	return d
}
