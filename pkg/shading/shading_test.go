package shading

import (
	"math"
	"testing"

	v3 "github.com/deadsy/sdfx/vec/v3"
	"github.com/lucasb-eyer/go-colorful"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func assertColorNear(t *testing.T, want, got colorful.Color, delta float64) {
	t.Helper()
	assert.InDelta(t, want.R, got.R, delta, "r")
	assert.InDelta(t, want.G, got.G, delta, "g")
	assert.InDelta(t, want.B, got.B, delta, "b")
}

func TestModeNames(t *testing.T) {
	for _, m := range Modes() {
		parsed, err := ParseMode(m.String())
		require.NoError(t, err)
		assert.Equal(t, m, parsed)
	}
	assert.Equal(t, "Mode(9)", Mode(9).String())
	assert.Equal(t, ModeRedWax, DefaultMode)
	assert.Equal(t, ModeRedWax, Mode(0))
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		in   string
		want Mode
		err  bool
	}{
		{"metal", ModeMetal, false},
		{"  Metal ", ModeMetal, false},
		{"red_wax", ModeRedWax, false},
		{"RED-WAX", ModeRedWax, false},
		{"curvature", ModeCurvature, false},
		{"plastic", 0, true},
		{"", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseMode(tt.in)
			if tt.err {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestModeText(t *testing.T) {
	b, err := ModeMetal.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "metal", string(b))

	_, err = Mode(-1).MarshalText()
	assert.Error(t, err)

	var m Mode
	require.NoError(t, m.UnmarshalText([]byte("curvature")))
	assert.Equal(t, ModeCurvature, m)
	assert.Error(t, m.UnmarshalText([]byte("chrome")))
	assert.Equal(t, ModeCurvature, m, "failed unmarshal leaves the mode unchanged")
}

func TestCurvatureModeIsGray(t *testing.T) {
	facing := v3.Vec{Z: 1}
	for _, c := range []float64{-0.3, 0, 0.2} {
		got := Shade(ModeCurvature, facing, c)
		assertColorNear(t, gray(c+0.5), got, 1e-12)
	}
	// Orientation does not matter without a light.
	assert.Equal(t, Shade(ModeCurvature, v3.Vec{X: 1}, 0.1), Shade(ModeCurvature, v3.Vec{Y: -1}, 0.1))
}

func TestRedWaxMaterial(t *testing.T) {
	// Flat surface: dirt 0.25.
	mat := ModeRedWax.Material(0)
	assertColorNear(t, colorful.Color{R: 0.05, G: 0.015}, mat.Ambient, 1e-12)
	assertColorNear(t, colorful.Color{R: 0.35, G: 0.1725, B: 0.15}, mat.Diffuse, 1e-12)
	assertColorNear(t, colorful.Color{R: 0.075, G: 0.10125, B: 0.1125}, mat.Specular, 1e-12)
	assert.Equal(t, 32.0, mat.Shininess)
	assert.InDelta(t, 1, mat.Light.Length(), 1e-12)

	// Deep crease: fully dirty, no highlight.
	crease := ModeRedWax.Material(-1)
	assertColorNear(t, colorful.Color{}, crease.Specular, 1e-12)
	assertColorNear(t, colorful.Color{R: 0.35, G: 0.285, B: 0.3}, crease.Diffuse, 1e-12)
}

func TestMetalMaterial(t *testing.T) {
	flat := ModeMetal.Material(0)
	assertColorNear(t, colorful.Color{R: 0.225, G: 0.2, B: 0.15}, flat.Diffuse, 1e-12)
	assertColorNear(t, colorful.Color{}, flat.Specular, 1e-12)
	assert.Equal(t, 128.0, flat.Shininess)

	// Full shine: ambient + diffuse + specular reaches white.
	edge := ModeMetal.Material(1)
	sum := colorful.Color{
		R: edge.Ambient.R + edge.Diffuse.R + edge.Specular.R,
		G: edge.Ambient.G + edge.Diffuse.G + edge.Specular.G,
		B: edge.Ambient.B + edge.Diffuse.B + edge.Specular.B,
	}
	assertColorNear(t, white, sum, 1e-12)

	corroded := ModeMetal.Material(-1)
	assertColorNear(t, colorful.Color{R: 0.375, G: 0.45, B: 0.45}, corroded.Diffuse, 1e-12)
}

func TestPhong(t *testing.T) {
	mat := Material{
		Light:     v3.Vec{Z: 1},
		Ambient:   gray(0.1),
		Diffuse:   gray(0.5),
		Specular:  gray(0.2),
		Shininess: 2,
	}
	assertColorNear(t, gray(0.8), mat.Phong(v3.Vec{Z: 1}), 1e-12)
	assertColorNear(t, gray(0.1), mat.Phong(v3.Vec{Z: -1}), 1e-12)
	half := v3.Vec{X: math.Sqrt(0.75), Z: 0.5}
	assertColorNear(t, gray(0.1+0.25+0.05), mat.Phong(half), 1e-12)
}

func TestFinish(t *testing.T) {
	got := Finish(colorful.Color{R: 0.5, G: 0, B: -0.2}, 0.3)
	assert.InDelta(t, math.Pow(0.75, 0.9), got.R, 1e-12)
	assert.Equal(t, 0.0, got.G)
	assert.Equal(t, 0.0, got.B)
	assert.False(t, math.IsNaN(got.B))
}

func TestFinishFog(t *testing.T) {
	assert.Equal(t, Fog, Finish(colorful.Color{R: 1, G: 1, B: 1}, 0.95))
	assert.Equal(t, Fog, Finish(colorful.Color{R: -5}, 1))
	assert.Equal(t, gray(0.125), Fog)
	// The threshold itself is not fogged.
	assert.NotEqual(t, Fog, Finish(gray(0.5), FogDepth))
}
