// Package viewer is the interactive frame driver: an ebiten window that
// feeds time and pointer uniforms to the kernel every tick and shows the
// most recent finished frame.
package viewer

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"
	"sync"

	"github.com/chazu/curvshade/pkg/config"
	"github.com/chazu/curvshade/pkg/frame"
	"github.com/chazu/curvshade/pkg/kernel"
	"github.com/chazu/curvshade/pkg/logging"
	"github.com/hajimehoshi/ebiten/v2"
)

// Loader produces the settings to display. It is called once by New and
// again on every Reload.
type Loader func() (*config.Settings, error)

// Viewer implements ebiten.Game. Frames render on a background goroutine;
// Draw shows the latest one, so a slow kernel lowers the frame rate
// without stalling input.
type Viewer struct {
	ctx  context.Context
	load Loader

	mu        sync.Mutex
	settings  *config.Settings
	kernel    *kernel.Kernel
	driver    *frame.Driver
	latest    *image.NRGBA
	rendering bool

	screen *ebiten.Image
}

// New loads the initial settings and returns a viewer. Background renders
// stop when ctx is cancelled.
func New(ctx context.Context, load Loader) (*Viewer, error) {
	s, k, err := build(load)
	if err != nil {
		return nil, err
	}
	w, h := renderSize(s)
	return &Viewer{
		ctx:      ctx,
		load:     load,
		settings: s,
		kernel:   k,
		driver:   frame.NewDriver(w, h, s.Uniforms.Time),
	}, nil
}

func build(load Loader) (*config.Settings, *kernel.Kernel, error) {
	s, err := load()
	if err != nil {
		return nil, nil, fmt.Errorf("viewer: loading settings: %w", err)
	}
	cfg, err := s.KernelConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("viewer: %w", err)
	}
	k, err := kernel.New(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("viewer: %w", err)
	}
	return s, k, nil
}

// renderSize is the window size divided by the downscale factor.
func renderSize(s *config.Settings) (w, h int) {
	scale := max(s.Render.Scale, 1)
	return max(s.Render.Width/scale, 1), max(s.Render.Height/scale, 1)
}

// Reload calls the loader again. On failure the error is logged and
// returned, and the previous settings stay in effect.
func (v *Viewer) Reload() error {
	s, k, err := build(v.load)
	if err != nil {
		logging.Logger().Warn("reload failed, keeping previous settings", "err", err)
		return err
	}
	v.mu.Lock()
	v.settings = s
	v.kernel = k
	v.driver.Resize(renderSize(s))
	v.mu.Unlock()
	logging.Logger().Info("settings reloaded", "mode", s.Kernel.Mode, "width", s.Render.Width, "height", s.Render.Height)
	return nil
}

// Settings returns a copy of the settings in effect.
func (v *Viewer) Settings() *config.Settings {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.settings.Clone()
}

// Latest returns the most recent finished frame, or nil before the first.
func (v *Viewer) Latest() *image.NRGBA {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.latest
}

// step advances the clock by dt and records the cursor, given in screen
// pixels with y down. It returns the uniforms for the next frame.
func (v *Viewer) step(dt float64, cx, cy int, pressed bool) kernel.Uniforms {
	v.mu.Lock()
	defer v.mu.Unlock()
	_, h := v.driver.Size()
	v.driver.Pointer(float64(cx)+0.5, float64(h-cy)-0.5, pressed)
	return v.driver.Update(dt)
}

// RenderFrame renders u with the current kernel and keeps the result as
// the latest frame.
func (v *Viewer) RenderFrame(u kernel.Uniforms) (*image.NRGBA, error) {
	v.mu.Lock()
	k := v.kernel
	v.mu.Unlock()

	img, err := k.Frame(v.ctx, u)
	if err != nil {
		return nil, err
	}
	v.mu.Lock()
	v.latest = img
	v.mu.Unlock()
	return img, nil
}

// renderAsync starts a render unless one is already running.
func (v *Viewer) renderAsync(u kernel.Uniforms) {
	v.mu.Lock()
	if v.rendering {
		v.mu.Unlock()
		return
	}
	v.rendering = true
	v.mu.Unlock()

	go func() {
		defer func() {
			v.mu.Lock()
			v.rendering = false
			v.mu.Unlock()
		}()
		if _, err := v.RenderFrame(u); err != nil && !errors.Is(err, context.Canceled) {
			logging.Logger().Error("frame failed", "err", err)
		}
	}()
}

// Update implements ebiten.Game.
func (v *Viewer) Update() error {
	if v.ctx.Err() != nil {
		return ebiten.Termination
	}
	cx, cy := ebiten.CursorPosition()
	pressed := ebiten.IsMouseButtonPressed(ebiten.MouseButtonLeft)
	u := v.step(1/float64(ebiten.TPS()), cx, cy, pressed)
	v.renderAsync(u)
	return nil
}

var fog = color.NRGBA{R: 32, G: 32, B: 32, A: 255}

// Draw implements ebiten.Game.
func (v *Viewer) Draw(screen *ebiten.Image) {
	img := v.Latest()
	if img == nil {
		screen.Fill(fog)
		return
	}
	size := img.Bounds().Size()
	if v.screen == nil || v.screen.Bounds().Size() != size {
		if v.screen != nil {
			v.screen.Deallocate()
		}
		v.screen = ebiten.NewImage(size.X, size.Y)
	}
	// Frames are opaque, so straight and premultiplied alpha agree.
	v.screen.WritePixels(img.Pix)
	screen.DrawImage(v.screen, nil)
}

// Layout implements ebiten.Game. The logical screen is the render size;
// ebiten scales it to the window.
func (v *Viewer) Layout(outsideWidth, outsideHeight int) (int, int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.driver.Size()
}

// Run opens the window and blocks until it closes or the viewer's context
// is cancelled.
func Run(v *Viewer, title string) error {
	s := v.Settings()
	ebiten.SetWindowTitle(title)
	ebiten.SetWindowSize(s.Render.Width, s.Render.Height)
	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)
	ebiten.SetTPS(int(math.Max(1, math.Round(s.Render.FPS))))
	logging.Logger().Info("viewer started", "width", s.Render.Width, "height", s.Render.Height, "scale", s.Render.Scale)
	return ebiten.RunGame(v)
}
