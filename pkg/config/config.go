// Package config loads curvshade settings from TOML or YAML files and turns
// them into kernel configurations and frame uniforms.
//
// Settings are layered: Default, then a file, then a settings script, then
// command-line flags. Each layer only overrides what it names.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chazu/curvshade/pkg/camera"
	"github.com/chazu/curvshade/pkg/kernel"
	"github.com/chazu/curvshade/pkg/march"
	"github.com/chazu/curvshade/pkg/model"
	"github.com/chazu/curvshade/pkg/shading"
	"github.com/chazu/curvshade/pkg/surface"
	v3 "github.com/deadsy/sdfx/vec/v3"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Settings is the full set of user-tunable options.
type Settings struct {
	Render   Render   `toml:"render" yaml:"render"`
	Kernel   Kernel   `toml:"kernel" yaml:"kernel"`
	Camera   Camera   `toml:"camera" yaml:"camera"`
	Uniforms Uniforms `toml:"uniforms" yaml:"uniforms"`
	Mesh     Mesh     `toml:"mesh" yaml:"mesh"`
}

// Render controls offline output and the viewer window.
type Render struct {
	Width   int     `toml:"width" yaml:"width"`
	Height  int     `toml:"height" yaml:"height"`
	Frames  int     `toml:"frames" yaml:"frames"`
	FPS     float64 `toml:"fps" yaml:"fps"`
	Output  string  `toml:"output" yaml:"output"`
	Format  string  `toml:"format" yaml:"format"` // empty infers from Output
	Scale   int     `toml:"scale" yaml:"scale"`   // viewer downscale factor
	Workers int     `toml:"workers" yaml:"workers"`
}

// Kernel selects the material and the marching constants.
type Kernel struct {
	Mode       shading.Mode `toml:"mode" yaml:"mode"`
	Iterations int          `toml:"iterations" yaml:"iterations"`
	MinDist    float64      `toml:"min_dist" yaml:"min_dist"`
	MaxDist    float64      `toml:"max_dist" yaml:"max_dist"`
	Damping    float64      `toml:"damping" yaml:"damping"`
	NormalEps  float64      `toml:"normal_eps" yaml:"normal_eps"`
	Animate    bool         `toml:"animate" yaml:"animate"`
	Table      string       `toml:"table" yaml:"table"` // model table file; empty uses the built-in shoe
}

// Camera is the orbit and lens.
type Camera struct {
	Radius float64    `toml:"radius" yaml:"radius"`
	Rate   float64    `toml:"rate" yaml:"rate"`
	Focus  [3]float64 `toml:"focus" yaml:"focus"`
	FOV    float64    `toml:"fov" yaml:"fov"`
}

// Uniforms fix the frame inputs for offline renders.
type Uniforms struct {
	Time    float64    `toml:"time" yaml:"time"`
	Pointer [2]float64 `toml:"pointer" yaml:"pointer"`
	Pressed bool       `toml:"pressed" yaml:"pressed"`
}

// Mesh controls tessellation output.
type Mesh struct {
	Cells  int    `toml:"cells" yaml:"cells"`
	Output string `toml:"output" yaml:"output"`
}

// Default returns the reference settings: an 800x600 red wax still frame.
func Default() *Settings {
	mo := march.DefaultOptions()
	cam := camera.DefaultParams()
	return &Settings{
		Render: Render{
			Width:  800,
			Height: 600,
			Frames: 1,
			FPS:    30,
			Output: "frame.png",
			Scale:  2,
		},
		Kernel: Kernel{
			Mode:       shading.DefaultMode,
			Iterations: mo.Iterations,
			MinDist:    mo.MinDist,
			MaxDist:    mo.MaxDist,
			Damping:    mo.Damping,
			NormalEps:  surface.DefaultEpsilon,
		},
		Camera: Camera{
			Radius: cam.Radius,
			Rate:   cam.Rate,
			Focus:  [3]float64{cam.Focus.X, cam.Focus.Y, cam.Focus.Z},
			FOV:    cam.FOV,
		},
		Mesh: Mesh{
			Cells:  200,
			Output: "shoe.stl",
		},
	}
}

// Load reads settings from a TOML or YAML file layered over Default.
// Unknown keys are rejected.
func Load(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}
	s := Default()
	if err := s.decode(data, filepath.Ext(path)); err != nil {
		return nil, fmt.Errorf("config: decoding %s: %w", filepath.Base(path), err)
	}
	return s, nil
}

func (s *Settings) decode(data []byte, ext string) error {
	switch strings.ToLower(ext) {
	case ".toml":
		return toml.NewDecoder(bytes.NewReader(data)).DisallowUnknownFields().Decode(s)
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(s); err != nil && !errors.Is(err, io.EOF) {
			return err
		}
		return nil
	default:
		return fmt.Errorf("unsupported settings format %q", ext)
	}
}

// Encode writes s as TOML or YAML.
func (s *Settings) Encode(w io.Writer, format string) error {
	switch strings.ToLower(format) {
	case "toml":
		return toml.NewEncoder(w).Encode(s)
	case "yaml", "yml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(s); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("config: unsupported settings format %q", format)
	}
}

// Clone returns a deep copy of s.
func (s *Settings) Clone() *Settings {
	c := *s
	return &c
}

// Validate reports every setting the renderer cannot honour.
func (s *Settings) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}

	r := s.Render
	check(r.Width > 0 && r.Height > 0, "render: resolution must be positive, got %dx%d", r.Width, r.Height)
	check(r.Frames >= 1, "render: frames must be at least 1, got %d", r.Frames)
	check(r.FPS > 0, "render: fps must be positive, got %v", r.FPS)
	check(r.Scale >= 1, "render: scale must be at least 1, got %d", r.Scale)
	check(r.Workers >= 0, "render: workers must be non-negative, got %d", r.Workers)

	k := s.Kernel
	_, modeErr := k.Mode.MarshalText()
	check(modeErr == nil, "kernel: unknown shading mode %d", int(k.Mode))
	check(k.Iterations > 0, "kernel: iterations must be positive, got %d", k.Iterations)
	check(k.MinDist > 0, "kernel: min_dist must be positive, got %v", k.MinDist)
	check(k.MaxDist > k.MinDist, "kernel: max_dist %v must exceed min_dist %v", k.MaxDist, k.MinDist)
	check(k.Damping > 0 && k.Damping <= 1, "kernel: damping must be in (0, 1], got %v", k.Damping)
	check(k.NormalEps > 0, "kernel: normal_eps must be positive, got %v", k.NormalEps)

	c := s.Camera
	check(c.Radius > 0, "camera: radius must be positive, got %v", c.Radius)
	check(c.FOV > 0, "camera: fov must be positive, got %v", c.FOV)

	check(s.Uniforms.Time >= 0, "uniforms: time must be non-negative, got %v", s.Uniforms.Time)
	check(s.Mesh.Cells > 0, "mesh: cells must be positive, got %d", s.Mesh.Cells)

	return errors.Join(errs...)
}

// KernelConfig builds the kernel configuration, loading the model table
// when one is named.
func (s *Settings) KernelConfig() (kernel.Config, error) {
	table := model.ShoeV1()
	if s.Kernel.Table != "" {
		t, err := model.LoadTable(s.Kernel.Table)
		if err != nil {
			return kernel.Config{}, fmt.Errorf("config: %w", err)
		}
		table = t
	}
	k := s.Kernel
	c := s.Camera
	return kernel.Config{
		Table: table,
		Mode:  k.Mode,
		March: march.Options{
			MinDist:    k.MinDist,
			MaxDist:    k.MaxDist,
			Iterations: k.Iterations,
			Damping:    k.Damping,
		},
		NormalEps: k.NormalEps,
		Camera: camera.Params{
			Radius: c.Radius,
			Rate:   c.Rate,
			Focus:  v3.Vec{X: c.Focus[0], Y: c.Focus[1], Z: c.Focus[2]},
			FOV:    c.FOV,
		},
		Animate: k.Animate,
		Workers: s.Render.Workers,
	}, nil
}

// FrameUniforms returns the uniforms for an offline frame at the given
// time.
func (s *Settings) FrameUniforms(t float64) kernel.Uniforms {
	u := s.Uniforms
	var pressed float64
	if u.Pressed {
		pressed = 1
	}
	return kernel.Uniforms{
		Resolution: v3.Vec{X: float64(s.Render.Width), Y: float64(s.Render.Height), Z: 1},
		Time:       t,
		Pointer:    kernel.Pointer{X: u.Pointer[0], Y: u.Pointer[1], Z: pressed},
	}
}
