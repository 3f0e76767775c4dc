// Package kernel is the per-pixel rendering entry point. It wires the
// camera, the sphere tracer, the surface estimators and the shading
// modes into a pure function of pixel coordinate and frame uniforms.
//
// A GPU computes curvature from the hardware derivative of the normal
// across neighboring fragments. The kernel emulates it with forward
// differences: the camera-local normal is also evaluated one pixel to the
// right and one pixel up. Frame shares those neighbor evaluations across
// the image, and Fragment recomputes them, with identical results.
package kernel

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"runtime"
	"time"

	"github.com/chazu/curvshade/pkg/camera"
	"github.com/chazu/curvshade/pkg/logging"
	"github.com/chazu/curvshade/pkg/march"
	"github.com/chazu/curvshade/pkg/model"
	"github.com/chazu/curvshade/pkg/shading"
	"github.com/chazu/curvshade/pkg/surface"
	v2 "github.com/deadsy/sdfx/vec/v2"
	v3 "github.com/deadsy/sdfx/vec/v3"
	"github.com/lucasb-eyer/go-colorful"
	"golang.org/x/sync/errgroup"
)

// Config is fixed for the life of a Kernel.
type Config struct {
	Table     *model.Table
	Mode      shading.Mode
	March     march.Options
	NormalEps float64
	Camera    camera.Params
	Animate   bool // flap the model over Uniforms.Time
	Workers   int  // Frame row concurrency; 0 uses GOMAXPROCS
}

// DefaultConfig returns the reference kernel: the ShoeV1 table shaded in
// red wax.
func DefaultConfig() Config {
	return Config{
		Table:     model.ShoeV1(),
		Mode:      shading.DefaultMode,
		March:     march.DefaultOptions(),
		NormalEps: surface.DefaultEpsilon,
		Camera:    camera.DefaultParams(),
	}
}

// Pointer is the pointer uniform: position in pixels with y up, Z is 1
// while the primary button is held, W is reserved.
type Pointer struct {
	X, Y, Z, W float64
}

// Pressed reports whether the button flag is set.
func (p Pointer) Pressed() bool { return p.Z > 0.5 }

// Uniforms are the per-frame inputs shared by every pixel.
type Uniforms struct {
	Resolution v3.Vec // width, height, reserved
	Time       float64
	Pointer    Pointer
}

// Size returns the integer viewport size.
func (u Uniforms) Size() (w, h int) {
	return int(u.Resolution.X), int(u.Resolution.Y)
}

// Result is one shaded pixel with the intermediate values that produced it.
type Result struct {
	Color     colorful.Color
	Alpha     float64
	Miss      bool
	Depth     float64 // hit distance over the marching range
	Curvature float64
	Normal    v3.Vec // camera-local
	Part      model.Part
	Steps     int
}

// RGBA converts the result to an 8-bit color, clamping each channel.
func (r Result) RGBA() color.NRGBA {
	c := r.Color.Clamped()
	R, G, B := c.RGB255()
	return color.NRGBA{R: R, G: G, B: B, A: 255}
}

// Kernel renders pixels for one configuration. It holds no mutable state
// and is safe for concurrent use.
type Kernel struct {
	cfg Config
}

// New validates cfg and returns a kernel for it.
func New(cfg Config) (*Kernel, error) {
	if cfg.Table == nil {
		return nil, fmt.Errorf("kernel: nil model table")
	}
	if errs := model.Errors(model.Validate(cfg.Table)); len(errs) > 0 {
		return nil, fmt.Errorf("kernel: invalid model table: %w", errs[0])
	}
	o := cfg.March
	switch {
	case !(o.MinDist > 0):
		return nil, fmt.Errorf("kernel: min distance must be positive, got %v", o.MinDist)
	case !(o.MaxDist > o.MinDist):
		return nil, fmt.Errorf("kernel: max distance %v must exceed min distance %v", o.MaxDist, o.MinDist)
	case o.Iterations <= 0:
		return nil, fmt.Errorf("kernel: iterations must be positive, got %d", o.Iterations)
	case !(o.Damping > 0 && o.Damping <= 1):
		return nil, fmt.Errorf("kernel: damping must be in (0, 1], got %v", o.Damping)
	case !(cfg.NormalEps > 0):
		return nil, fmt.Errorf("kernel: normal epsilon must be positive, got %v", cfg.NormalEps)
	case !(cfg.Camera.Radius > 0):
		return nil, fmt.Errorf("kernel: camera radius must be positive, got %v", cfg.Camera.Radius)
	case cfg.Workers < 0:
		return nil, fmt.Errorf("kernel: workers must be non-negative, got %d", cfg.Workers)
	}
	if _, err := cfg.Mode.MarshalText(); err != nil {
		return nil, fmt.Errorf("kernel: %w", err)
	}
	return &Kernel{cfg: cfg}, nil
}

// Config returns the kernel's configuration.
func (k *Kernel) Config() Config { return k.cfg }

// scene is everything that is constant across one frame.
type scene struct {
	cam   camera.Camera
	field model.Field
	res   v2.Vec
}

func (k *Kernel) scene(u Uniforms) scene {
	res := v2.Vec{X: u.Resolution.X, Y: u.Resolution.Y}
	cam := camera.New(k.cfg.Camera, camera.Input{
		Time:       u.Time,
		Resolution: res,
		Pointer:    v2.Vec{X: u.Pointer.X, Y: u.Pointer.Y},
		Pressed:    u.Pointer.Pressed(),
	})
	return scene{
		cam:   cam,
		field: model.Field{Table: k.cfg.Table, Animate: k.cfg.Animate, Time: u.Time},
		res:   res,
	}
}

// probe is the neighbor-independent part of a pixel.
type probe struct {
	hit    march.Hit
	normal v3.Vec // camera-local
	part   model.Part
}

func (k *Kernel) probe(s scene, frag v2.Vec) probe {
	ray := s.cam.Ray(camera.ScreenUV(frag, s.res))
	hit := march.Trace(s.field, ray, k.cfg.March)
	p := hit.Point(ray)

	n := surface.Normal(s.field, p, k.cfg.NormalEps)
	pr := probe{
		hit:    hit,
		normal: surface.LocalNormal(n, s.cam.Basis, ray.Direction),
	}
	if !hit.Miss {
		pr.part = s.field.EvaluateTagged(p).Tag
	}
	return pr
}

// resolve shades c using its right and upper neighbors.
func (k *Kernel) resolve(c, right, up probe) Result {
	depth := c.hit.Distance / k.cfg.March.MaxDist
	curv := surface.Curvature(c.normal, right.normal.Sub(c.normal), up.normal.Sub(c.normal), depth)
	lit := shading.Shade(k.cfg.Mode, c.normal, curv)
	return Result{
		Color:     shading.Finish(lit, depth),
		Alpha:     1,
		Miss:      c.hit.Miss,
		Depth:     depth,
		Curvature: curv,
		Normal:    c.normal,
		Part:      c.part,
		Steps:     c.hit.Steps,
	}
}

// Fragment shades the pixel at frag, a pixel-space coordinate with the
// origin at the bottom left. Pixel centers sit at half-integer coordinates.
func (k *Kernel) Fragment(frag v2.Vec, u Uniforms) Result {
	s := k.scene(u)
	return k.resolve(
		k.probe(s, frag),
		k.probe(s, v2.Vec{X: frag.X + 1, Y: frag.Y}),
		k.probe(s, v2.Vec{X: frag.X, Y: frag.Y + 1}),
	)
}

// Pixel shades the normalized coordinate uv in [0,1]², y up. This is the
// kernel entry point: the result is opaque and depends only on uv, u and
// the kernel configuration.
func (k *Kernel) Pixel(uv v2.Vec, u Uniforms) Result {
	return k.Fragment(v2.Vec{X: uv.X * u.Resolution.X, Y: uv.Y * u.Resolution.Y}, u)
}

// Frame renders the whole viewport. Row 0 of the image is the top of the
// view. Each image pixel equals Fragment at its center.
//
// Rendering runs in two passes over rows: the first probes a grid one
// pixel wider and taller than the image, the second shades from it.
// Cancelling ctx stops both passes between rows and Frame returns the
// context error.
func (k *Kernel) Frame(ctx context.Context, u Uniforms) (*image.NRGBA, error) {
	w, h := u.Size()
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("kernel: invalid resolution %vx%v", u.Resolution.X, u.Resolution.Y)
	}
	start := time.Now()
	s := k.scene(u)

	workers := k.cfg.Workers
	if workers == 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	// grid[gy][gx] holds the probe at fragment (gx+0.5, gy+0.5).
	grid := make([][]probe, h+1)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for gy := range grid {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			row := make([]probe, w+1)
			for gx := range row {
				row[gx] = k.probe(s, v2.Vec{X: float64(gx) + 0.5, Y: float64(gy) + 0.5})
			}
			grid[gy] = row
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	g, gctx = errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for gy := 0; gy < h; gy++ {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			iy := h - 1 - gy
			for gx := 0; gx < w; gx++ {
				r := k.resolve(grid[gy][gx], grid[gy][gx+1], grid[gy+1][gx])
				img.SetNRGBA(gx, iy, r.RGBA())
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	logging.Logger().Debug("frame rendered",
		"width", w, "height", h,
		"time", u.Time,
		"mode", k.cfg.Mode,
		"elapsed", time.Since(start))
	return img, nil
}
