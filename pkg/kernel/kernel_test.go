package kernel

import (
	"context"
	"image/color"
	"testing"

	"github.com/chazu/curvshade/pkg/model"
	"github.com/chazu/curvshade/pkg/shading"
	v2 "github.com/deadsy/sdfx/vec/v2"
	v3 "github.com/deadsy/sdfx/vec/v3"
	"github.com/lucasb-eyer/go-colorful"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newKernel(t *testing.T, mutate func(*Config)) *Kernel {
	t.Helper()
	cfg := DefaultConfig()
	if mutate != nil {
		mutate(&cfg)
	}
	k, err := New(cfg)
	require.NoError(t, err)
	return k
}

func uniforms(w, h float64) Uniforms {
	return Uniforms{Resolution: v3.Vec{X: w, Y: h, Z: 1}}
}

// --- Configuration ---

func TestNewRejectsBadConfig(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"nil table", func(c *Config) { c.Table = nil }},
		{"invalid table", func(c *Config) { c.Table.Toe.Radii[0] = -1 }},
		{"min dist", func(c *Config) { c.March.MinDist = 0 }},
		{"max dist", func(c *Config) { c.March.MaxDist = 0.0001 }},
		{"iterations", func(c *Config) { c.March.Iterations = 0 }},
		{"damping zero", func(c *Config) { c.March.Damping = 0 }},
		{"damping above one", func(c *Config) { c.March.Damping = 1.5 }},
		{"normal eps", func(c *Config) { c.NormalEps = 0 }},
		{"camera radius", func(c *Config) { c.Camera.Radius = -1 }},
		{"workers", func(c *Config) { c.Workers = -2 }},
		{"mode", func(c *Config) { c.Mode = shading.Mode(42) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			_, err := New(cfg)
			assert.Error(t, err)
		})
	}
}

func TestNewAcceptsWarnings(t *testing.T) {
	k := newKernel(t, func(c *Config) { c.Table.Laces = nil })
	assert.Empty(t, k.Config().Table.Laces)
}

func TestPointerPressed(t *testing.T) {
	assert.False(t, Pointer{}.Pressed())
	assert.False(t, Pointer{Z: 0.5}.Pressed())
	assert.True(t, Pointer{Z: 1}.Pressed())
}

func TestResultRGBA(t *testing.T) {
	r := Result{Color: colorful.Color{R: 1.4, G: 0.5, B: -0.2}, Alpha: 1}
	assert.Equal(t, color.NRGBA{R: 255, G: 128, B: 0, A: 255}, r.RGBA())
}

// --- Entry point ---

func TestCenterPixelHits(t *testing.T) {
	k := newKernel(t, nil)
	r := k.Pixel(v2.Vec{X: 0.5, Y: 0.5}, uniforms(800, 600))

	require.False(t, r.Miss)
	assert.Equal(t, 1.0, r.Alpha)
	assert.InDelta(t, 9.9378/30, r.Depth, 2e-4)
	assert.Equal(t, model.PartBody, r.Part)
	assert.InDelta(t, 1, r.Normal.Length(), 1e-9)
	assert.InDelta(t, 0.019, r.Curvature, 0.01)

	// Red wax under a front light.
	assert.InDelta(t, 0.610, r.Color.R, 0.01)
	assert.InDelta(t, 0.303, r.Color.G, 0.01)
	assert.InDelta(t, 0.243, r.Color.B, 0.01)
}

func TestLookingAwayMisses(t *testing.T) {
	// Eye on +Z at t=0, looking further out along +Z.
	k := newKernel(t, func(c *Config) { c.Camera.Focus = v3.Vec{Z: 20} })
	for _, uv := range []v2.Vec{{X: 0.5, Y: 0.5}, {X: 0.1, Y: 0.9}, {X: 1, Y: 0}} {
		r := k.Pixel(uv, uniforms(800, 600))
		assert.True(t, r.Miss)
		assert.Equal(t, 1.0, r.Depth)
		assert.Equal(t, shading.Fog, r.Color)
		assert.Equal(t, 1.0, r.Alpha)
		assert.Equal(t, model.PartNone, r.Part)
		assert.Equal(t, color.NRGBA{R: 32, G: 32, B: 32, A: 255}, r.RGBA())
	}
}

func TestPixelIdempotent(t *testing.T) {
	k := newKernel(t, nil)
	u := uniforms(800, 600)
	u.Time = 2.25
	uvs := []v2.Vec{{X: 0.5, Y: 0.5}, {X: 0.48, Y: 0.55}, {X: 0.52, Y: 0.45}}

	first := make([]Result, len(uvs))
	for i, uv := range uvs {
		first[i] = k.Pixel(uv, u)
	}
	// Reverse order, fresh kernel.
	other := newKernel(t, nil)
	for i := len(uvs) - 1; i >= 0; i-- {
		assert.Equal(t, first[i], other.Pixel(uvs[i], u))
		assert.Equal(t, first[i], k.Pixel(uvs[i], u))
	}
}

func TestPixelMatchesFragment(t *testing.T) {
	k := newKernel(t, nil)
	u := uniforms(800, 600)
	assert.Equal(t, k.Fragment(v2.Vec{X: 400, Y: 300}, u), k.Pixel(v2.Vec{X: 0.5, Y: 0.5}, u))
}

func TestModesShareGeometry(t *testing.T) {
	u := uniforms(800, 600)
	uv := v2.Vec{X: 0.5, Y: 0.5}
	var results []Result
	for _, m := range shading.Modes() {
		k := newKernel(t, func(c *Config) { c.Mode = m })
		results = append(results, k.Pixel(uv, u))
	}
	for _, r := range results[1:] {
		assert.Equal(t, results[0].Depth, r.Depth)
		assert.Equal(t, results[0].Curvature, r.Curvature)
		assert.NotEqual(t, results[0].Color, r.Color)
	}
	// Curvature mode shows the curvature directly.
	gray := results[2].Color
	assert.InDelta(t, gray.R, gray.G, 1e-12)
	assert.InDelta(t, gray.G, gray.B, 1e-12)
}

func TestPointerMovesCamera(t *testing.T) {
	k := newKernel(t, nil)
	u := uniforms(800, 600)
	free := k.Pixel(v2.Vec{X: 0.5, Y: 0.5}, u)

	// Pointer at a quarter of the width puts the eye on +X.
	u.Pointer = Pointer{X: 200, Y: 0, Z: 1}
	held := k.Pixel(v2.Vec{X: 0.5, Y: 0.5}, u)
	assert.NotEqual(t, free.Color, held.Color)

	// Without the flag the position is ignored.
	u.Pointer.Z = 0
	assert.Equal(t, free, k.Pixel(v2.Vec{X: 0.5, Y: 0.5}, u))
}

func TestAnimateUsesTime(t *testing.T) {
	uv := v2.Vec{X: 0.5, Y: 0.5}
	still := newKernel(t, nil)
	moving := newKernel(t, func(c *Config) { c.Animate = true })

	// The camera orbit period is 2π/0.6; sample the same orbit phase.
	a, b := uniforms(800, 600), uniforms(800, 600)
	b.Time = 2 * 3.141592653589793 / 0.6
	assert.InDelta(t, still.Pixel(uv, a).Depth, still.Pixel(uv, b).Depth, 1e-9)
	assert.NotEqual(t, moving.Pixel(uv, a).Depth, moving.Pixel(uv, b).Depth)
}

// --- Frame ---

func TestFrameMatchesFragment(t *testing.T) {
	k := newKernel(t, func(c *Config) { c.Workers = 3 })
	u := uniforms(16, 12)
	u.Time = 0.7

	img, err := k.Frame(context.Background(), u)
	require.NoError(t, err)
	require.Equal(t, 16, img.Bounds().Dx())
	require.Equal(t, 12, img.Bounds().Dy())

	hits := 0
	for gy := 0; gy < 12; gy++ {
		for gx := 0; gx < 16; gx++ {
			r := k.Fragment(v2.Vec{X: float64(gx) + 0.5, Y: float64(gy) + 0.5}, u)
			if !r.Miss {
				hits++
			}
			got := img.NRGBAAt(gx, 11-gy)
			if got != r.RGBA() {
				t.Fatalf("pixel (%d,%d) = %v, fragment = %v", gx, gy, got, r.RGBA())
			}
		}
	}
	assert.Greater(t, hits, 0)
}

func TestFrameOpaque(t *testing.T) {
	k := newKernel(t, nil)
	img, err := k.Frame(context.Background(), uniforms(8, 6))
	require.NoError(t, err)
	for i := 3; i < len(img.Pix); i += 4 {
		if img.Pix[i] != 255 {
			t.Fatalf("alpha at byte %d = %d, want 255", i, img.Pix[i])
		}
	}
}

func TestFrameInvalidResolution(t *testing.T) {
	k := newKernel(t, nil)
	for _, u := range []Uniforms{uniforms(0, 10), uniforms(10, -1), {}} {
		_, err := k.Frame(context.Background(), u)
		assert.Error(t, err)
	}
}

func TestFrameCancelled(t *testing.T) {
	k := newKernel(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	img, err := k.Frame(ctx, uniforms(32, 24))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, img)
}
