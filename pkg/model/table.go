// Package model holds the implicit shoe model: a versioned table of
// primitive placements and the distance field that composes them.
//
// The table is plain data, tuned offline. Field reads it on every
// evaluation and never mutates it, so one table can back any number of
// concurrent evaluations.
package model

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/chazu/curvshade/pkg/shape"
	v2 "github.com/deadsy/sdfx/vec/v2"
	v3 "github.com/deadsy/sdfx/vec/v3"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// TableVersion is the table layout this package evaluates.
const TableVersion = 1

// Placement moves a query point into a primitive's local frame: the point is
// offset, then rotated by Euler angles in radians.
type Placement struct {
	Offset   [3]float64 `toml:"offset" yaml:"offset" json:"offset"`
	Rotation [3]float64 `toml:"rotation" yaml:"rotation" json:"rotation"`
}

// Local returns p expressed in the placement's frame.
func (pl Placement) Local(p v3.Vec) v3.Vec {
	return shape.Rotate(p.Add(vec3(pl.Offset)), vec3(pl.Rotation))
}

// EllipsoidSpec places an ellipsoid.
type EllipsoidSpec struct {
	Placement `yaml:",inline"`
	Radii     [3]float64 `toml:"radii" yaml:"radii" json:"radii"`
}

// BoxSpec places a box.
type BoxSpec struct {
	Placement  `yaml:",inline"`
	HalfExtent [3]float64 `toml:"half_extent" yaml:"half_extent" json:"halfExtent"`
}

// TorusSpec places a capped torus arc.
type TorusSpec struct {
	Placement `yaml:",inline"`
	Major     float64 `toml:"major" yaml:"major" json:"major"`
	Tube      float64 `toml:"tube" yaml:"tube" json:"tube"`
	Aperture  float64 `toml:"aperture" yaml:"aperture" json:"aperture"`
}

// Radii returns the torus (major, tube) radii.
func (t TorusSpec) Radii() v2.Vec {
	return v2.Vec{X: t.Major, Y: t.Tube}
}

// TextureSpec describes the fractal roughening applied to the upper body.
// Noise is sampled on the body's (x, y) after tilting y/z by Tilt, scaled by
// Frequency, and pushes the point along z by Amplitude. Rise is a smoothstep
// over y; Fade a falling and Onset a rising smoothstep over z.
type TextureSpec struct {
	Tilt      float64    `toml:"tilt" yaml:"tilt" json:"tilt"`
	Frequency [2]float64 `toml:"frequency" yaml:"frequency" json:"frequency"`
	Amplitude float64    `toml:"amplitude" yaml:"amplitude" json:"amplitude"`
	Octaves   int        `toml:"octaves" yaml:"octaves" json:"octaves"`
	Rise      [2]float64 `toml:"rise" yaml:"rise" json:"rise"`
	Fade      [2]float64 `toml:"fade" yaml:"fade" json:"fade"`
	Onset     [2]float64 `toml:"onset" yaml:"onset" json:"onset"`
}

// Table is the full set of constants the shoe is built from.
type Table struct {
	Version int    `toml:"version" yaml:"version" json:"version"`
	Name    string `toml:"name" yaml:"name" json:"name"`

	// Points farther than twice BoundRadius from the origin skip the model
	// and report their distance to the bounding sphere.
	BoundRadius float64 `toml:"bound_radius" yaml:"bound_radius" json:"boundRadius"`

	// The whole model is curled about X by Flap + FlapTaper·(-z).
	Flap      float64 `toml:"flap" yaml:"flap" json:"flap"`
	FlapTaper float64 `toml:"flap_taper" yaml:"flap_taper" json:"flapTaper"`

	// BodyOffset shifts the body frame; its y is elongated by Stretch.
	BodyOffset [3]float64  `toml:"body_offset" yaml:"body_offset" json:"bodyOffset"`
	Stretch    float64     `toml:"stretch" yaml:"stretch" json:"stretch"`
	Texture    TextureSpec `toml:"texture" yaml:"texture" json:"texture"`

	Toe        EllipsoidSpec `toml:"toe" yaml:"toe" json:"toe"`
	Shaft      EllipsoidSpec `toml:"shaft" yaml:"shaft" json:"shaft"`
	ShaftBlend float64       `toml:"shaft_blend" yaml:"shaft_blend" json:"shaftBlend"`

	Opening      BoxSpec `toml:"opening" yaml:"opening" json:"opening"`
	OpeningBlend float64 `toml:"opening_blend" yaml:"opening_blend" json:"openingBlend"`

	SoleHeight float64 `toml:"sole_height" yaml:"sole_height" json:"soleHeight"`
	SoleBlend  float64 `toml:"sole_blend" yaml:"sole_blend" json:"soleBlend"`

	Slot BoxSpec `toml:"slot" yaml:"slot" json:"slot"`

	Collar      TorusSpec `toml:"collar" yaml:"collar" json:"collar"`
	CollarBlend float64   `toml:"collar_blend" yaml:"collar_blend" json:"collarBlend"`

	Laces []TorusSpec `toml:"laces" yaml:"laces" json:"laces"`
}

// ShoeV1 returns the reference shoe table.
func ShoeV1() *Table {
	lace := func(offset, rotation [3]float64) TorusSpec {
		return TorusSpec{
			Placement: Placement{Offset: offset, Rotation: rotation},
			Major:     0.0636,
			Tube:      0.0064,
			Aperture:  0.6283,
		}
	}
	return &Table{
		Version:     TableVersion,
		Name:        "shoe",
		BoundRadius: 0.25,
		Flap:        -0.3,
		FlapTaper:   1.25,
		BodyOffset:  [3]float64{0, 0, 0.1273},
		Stretch:     0.0125,
		Texture: TextureSpec{
			Tilt:      0.6,
			Frequency: [2]float64{20.5, 80},
			Amplitude: 0.075,
			Octaves:   1,
			Rise:      [2]float64{0.002, 0.2},
			Fade:      [2]float64{-0.2, 0.5},
			Onset:     [2]float64{-0.2, 0},
		},
		Toe: EllipsoidSpec{
			Placement: Placement{
				Offset:   [3]float64{-0.0005, 0.0274, 0.1042},
				Rotation: [3]float64{0.0818, -0.6861, 0.0566},
			},
			Radii: [3]float64{0.1102, 0.1233, 0.1214},
		},
		Shaft: EllipsoidSpec{
			Placement: Placement{
				Offset:   [3]float64{0.0028, -0.0093, -0.1258},
				Rotation: [3]float64{-0.0291, -0.2744, -0.0364},
			},
			Radii: [3]float64{0.0870, 0.2295, 0.0880},
		},
		ShaftBlend: 0.1438,
		Opening: BoxSpec{
			Placement:  Placement{Offset: [3]float64{0, -0.194, 0.0019}},
			HalfExtent: [3]float64{0.1676, 0.0551, 0.1171},
		},
		OpeningBlend: 0.0100,
		SoleHeight:   0.001,
		SoleBlend:    0.0080,
		Slot: BoxSpec{
			Placement: Placement{
				Offset:   [3]float64{0, 0.0171, 0.1521},
				Rotation: [3]float64{-1.4413, 0, 0},
			},
			HalfExtent: [3]float64{0.1676, 0.0912, 0.0116},
		},
		Collar: TorusSpec{
			Placement: Placement{Offset: [3]float64{0.0028, -0.1578, 0.0014}},
			Major:     0.0519,
			Tube:      0.0264,
			Aperture:  3.1413,
		},
		CollarBlend: 0.0100,
		Laces: []TorusSpec{
			lace([3]float64{0, -0.0579, 0.1827}, [3]float64{1.5708, 0, 0}),
			lace([3]float64{0, -0.1001, 0.0608}, [3]float64{2.2401, -0.3407, 0.2843}),
			lace([3]float64{0, -0.0639, 0.1321}, [3]float64{1.7335, 0.4446, -0.0513}),
			lace([3]float64{0, -0.1001, 0.0608}, [3]float64{2.2463, 0.3180, -0.2669}),
			lace([3]float64{0, -0.0639, 0.1321}, [3]float64{1.7334, -0.4468, 0.0515}),
		},
	}
}

// LoadTable reads a table from a TOML or YAML file, chosen by extension.
// Fields missing from the file keep their ShoeV1 values.
func LoadTable(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("model: reading table: %w", err)
	}
	t := ShoeV1()
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".toml":
		err = toml.NewDecoder(bytes.NewReader(data)).DisallowUnknownFields().Decode(t)
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		err = dec.Decode(t)
	default:
		return nil, fmt.Errorf("model: unsupported table format %q", ext)
	}
	if err != nil {
		return nil, fmt.Errorf("model: decoding %s: %w", filepath.Base(path), err)
	}
	return t, nil
}

func vec3(a [3]float64) v3.Vec {
	return v3.Vec{X: a[0], Y: a[1], Z: a[2]}
}
