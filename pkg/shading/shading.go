// Package shading turns a camera-local normal and a curvature estimate into
// a display color.
//
// Colors are linear colorful.Color values and may leave [0,1] while being
// combined; they are only clamped when converted to 8 bits.
package shading

import (
	"fmt"
	"math"
	"strings"

	v3 "github.com/deadsy/sdfx/vec/v3"
	"github.com/lucasb-eyer/go-colorful"
)

// Mode selects a material.
type Mode int

const (
	ModeRedWax    Mode = iota // matte wax, darkened in creases
	ModeMetal                 // brushed metal, corroded in creases and polished on edges
	ModeCurvature             // raw curvature as gray
)

// DefaultMode is the material used when none is configured.
const DefaultMode = ModeRedWax

var modeNames = map[Mode]string{
	ModeRedWax:    "red-wax",
	ModeMetal:     "metal",
	ModeCurvature: "curvature",
}

func (m Mode) String() string {
	if s, ok := modeNames[m]; ok {
		return s
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

// ParseMode resolves a mode name. Matching ignores case, and underscores
// are accepted in place of hyphens.
func ParseMode(s string) (Mode, error) {
	name := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "_", "-")
	for m, n := range modeNames {
		if n == name {
			return m, nil
		}
	}
	return 0, fmt.Errorf("shading: unknown mode %q (want red-wax, metal or curvature)", s)
}

// Modes lists every mode in declaration order.
func Modes() []Mode {
	return []Mode{ModeRedWax, ModeMetal, ModeCurvature}
}

// MarshalText implements encoding.TextMarshaler so modes read and write as
// names in config files.
func (m Mode) MarshalText() ([]byte, error) {
	if _, ok := modeNames[m]; !ok {
		return nil, fmt.Errorf("shading: invalid mode %d", int(m))
	}
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *Mode) UnmarshalText(b []byte) error {
	parsed, err := ParseMode(string(b))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// Material is a Phong material evaluated for one curvature value.
type Material struct {
	Light     v3.Vec // unit direction toward the light, camera-local
	Ambient   colorful.Color
	Diffuse   colorful.Color
	Specular  colorful.Color
	Shininess float64
}

var frontLight = v3.Vec{Y: 1, Z: 10}.Normalize()

// Material returns the material for mode m at the given curvature.
func (m Mode) Material(curvature float64) Material {
	switch m {
	case ModeCurvature:
		g := curvature + 0.5
		return Material{Ambient: colorful.Color{R: g, G: g, B: g}}

	case ModeMetal:
		corrosion := clamp01(-curvature * 3)
		shine := clamp01(curvature * 5)
		ambient := colorful.Color{R: 0.075, G: 0.05, B: 0.05}
		base := colorful.Color{R: 0.3, G: 0.25, B: 0.2}.BlendRgb(colorful.Color{R: 0.45, G: 0.5, B: 0.5}, corrosion)
		diffuse := sub(base.BlendRgb(colorful.Color{R: 0.5, G: 0.4, B: 0.3}, shine), ambient)
		specular := colorful.Color{}.BlendRgb(sub(sub(white, ambient), diffuse), shine)
		return Material{Light: frontLight, Ambient: ambient, Diffuse: diffuse, Specular: specular, Shininess: 128}

	default:
		dirt := clamp01(0.25 - curvature*4)
		ambient := colorful.Color{R: 0.05, G: 0.015, B: 0}
		diffuse := sub(colorful.Color{R: 0.4, G: 0.15, B: 0.1}.BlendRgb(colorful.Color{R: 0.4, G: 0.3, B: 0.3}, dirt), ambient)
		specular := sub(gray(0.15), ambient).BlendRgb(colorful.Color{}, dirt)
		return Material{Light: frontLight, Ambient: ambient, Diffuse: diffuse, Specular: specular, Shininess: 32}
	}
}

// Phong lights the camera-local normal n.
func (mat Material) Phong(n v3.Vec) colorful.Color {
	lambert := math.Max(0, n.Dot(mat.Light))
	spec := math.Pow(lambert, mat.Shininess)
	return colorful.Color{
		R: mat.Ambient.R + mat.Diffuse.R*lambert + mat.Specular.R*spec,
		G: mat.Ambient.G + mat.Diffuse.G*lambert + mat.Specular.G*spec,
		B: mat.Ambient.B + mat.Diffuse.B*lambert + mat.Specular.B*spec,
	}
}

// Shade lights n with mode m's material at the given curvature.
func Shade(m Mode, n v3.Vec, curvature float64) colorful.Color {
	return m.Material(curvature).Phong(n)
}

// FogDepth is the normalized depth beyond which Finish returns Fog.
const FogDepth = 0.9

// Fog is the flat color of far and missed pixels.
var Fog = gray(0.125)

// Finish applies the exposure and gamma curve, then replaces pixels deeper
// than FogDepth with Fog. Negative channels are clamped before the power.
func Finish(c colorful.Color, depth float64) colorful.Color {
	if depth > FogDepth {
		return Fog
	}
	curve := func(v float64) float64 { return math.Pow(math.Max(v*1.5, 0), 0.9) }
	return colorful.Color{R: curve(c.R), G: curve(c.G), B: curve(c.B)}
}

var white = gray(1)

func gray(v float64) colorful.Color { return colorful.Color{R: v, G: v, B: v} }

func sub(a, b colorful.Color) colorful.Color {
	return colorful.Color{R: a.R - b.R, G: a.G - b.G, B: a.B - b.B}
}

func clamp01(v float64) float64 {
	return math.Min(math.Max(v, 0), 1)
}
