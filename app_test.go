package main

import (
	"context"
	"image/gif"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/chazu/curvshade/pkg/config"
	"github.com/chazu/curvshade/pkg/model"
	"github.com/chazu/curvshade/pkg/shading"
)

// small returns default settings at a test-sized resolution.
func small(t *testing.T) *config.Settings {
	t.Helper()
	s := config.Default()
	s.Render.Width, s.Render.Height = 16, 12
	s.Mesh.Cells = 16
	return s
}

// TestE2EWalkExample exercises the full pipeline: script source → engine →
// settings → tessellate → meshes.
func TestE2EWalkExample(t *testing.T) {
	app := NewApp()

	source, err := os.ReadFile("examples/walk.zy")
	if err != nil {
		t.Fatalf("failed to read walk.zy: %v", err)
	}

	result := app.Evaluate(string(source))

	if len(result.Errors) > 0 {
		for _, e := range result.Errors {
			t.Errorf("eval error (line %d): %s", e.Line, e.Message)
		}
		t.FailNow()
	}

	if len(result.Meshes) != 2 {
		t.Fatalf("expected 2 meshes, got %d", len(result.Meshes))
	}
	if result.Meshes[0].PartName != "body" || result.Meshes[1].PartName != "lace" {
		t.Errorf("unexpected parts %q, %q", result.Meshes[0].PartName, result.Meshes[1].PartName)
	}
	body := result.Meshes[0]
	if len(body.Vertices) == 0 || len(body.Normals) == 0 || len(body.Indices) == 0 {
		t.Error("body mesh has no geometry")
	}
	if body.Color == "" || body.Color == result.Meshes[1].Color {
		t.Errorf("parts need distinct colors, got %q and %q", body.Color, result.Meshes[1].Color)
	}
}

// TestE2ESyntaxError ensures eval errors are reported, not fatal errors.
func TestE2ESyntaxError(t *testing.T) {
	app := NewApp()
	result := app.Evaluate("(shading :metal")

	if len(result.Errors) == 0 {
		t.Fatal("expected eval errors for syntax error")
	}
	if len(result.Meshes) != 0 {
		t.Errorf("expected 0 meshes on error, got %d", len(result.Meshes))
	}
}

// TestE2EWarnings ensures table warnings reach the result.
func TestE2EWarnings(t *testing.T) {
	dir := t.TempDir()
	table := filepath.Join(dir, "bare.yaml")
	if err := os.WriteFile(table, []byte("laces: []\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	app := NewApp()
	result := app.Evaluate(`(model "` + filepath.ToSlash(table) + `") (mesh :cells 16)`)
	if len(result.Errors) > 0 {
		t.Fatalf("unexpected errors: %v", result.Errors)
	}
	if len(result.Warnings) == 0 {
		t.Error("expected a warning for a table without laces")
	}
	if len(result.Meshes) != 1 {
		t.Errorf("expected only the body mesh, got %d", len(result.Meshes))
	}
}

func TestSettingsLayers(t *testing.T) {
	app := NewApp()

	s, err := app.Settings("", "")
	if err != nil {
		t.Fatal(err)
	}
	if *s != *config.Default() {
		t.Error("no layers should give the defaults")
	}

	s, err = app.Settings("examples/curvshade.toml", "")
	if err != nil {
		t.Fatal(err)
	}
	if s.Kernel.Mode != shading.ModeCurvature || s.Render.Width != 400 {
		t.Errorf("file layer not applied: %+v", s.Render)
	}

	// The script layers over the file.
	s, err = app.Settings("examples/curvshade.toml", "examples/walk.zy")
	if err != nil {
		t.Fatal(err)
	}
	if s.Kernel.Mode != shading.ModeMetal || s.Render.Width != 320 {
		t.Errorf("script layer not applied: mode=%v width=%d", s.Kernel.Mode, s.Render.Width)
	}
	if s.Render.Scale != 2 || s.Render.Output != "walk.gif" {
		t.Errorf("unexpected render settings %+v", s.Render)
	}
}

func TestSettingsScriptError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.zy")
	if err := os.WriteFile(path, []byte("(shading :chrome)"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := NewApp().Settings("", path)
	se, ok := err.(*ScriptError)
	if !ok {
		t.Fatalf("expected *ScriptError, got %T (%v)", err, err)
	}
	if len(se.Errors) == 0 || se.Path != path {
		t.Errorf("unexpected script error %+v", se)
	}
}

func TestPixel(t *testing.T) {
	r, err := NewApp().Pixel(config.Default(), 0.5, 0.5)
	if err != nil {
		t.Fatal(err)
	}
	if r.Miss || r.Part != model.PartBody {
		t.Errorf("center pixel should hit the body: %+v", r)
	}
}

func TestWriteRenderSingle(t *testing.T) {
	s := small(t)
	s.Render.Output = filepath.Join(t.TempDir(), "frame.png")

	paths, err := NewApp().WriteRender(context.Background(), s)
	if err != nil {
		t.Fatal(err)
	}
	if len(paths) != 1 || paths[0] != s.Render.Output {
		t.Fatalf("paths = %v", paths)
	}
	f, err := os.Open(paths[0])
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	img, err := png.Decode(f)
	if err != nil {
		t.Fatal(err)
	}
	if b := img.Bounds(); b.Dx() != 16 || b.Dy() != 12 {
		t.Errorf("image size %v", b)
	}
}

func TestWriteRenderGIF(t *testing.T) {
	s := small(t)
	s.Render.Frames = 3
	s.Render.FPS = 10
	s.Kernel.Animate = true
	s.Render.Output = filepath.Join(t.TempDir(), "walk.gif")

	if _, err := NewApp().WriteRender(context.Background(), s); err != nil {
		t.Fatal(err)
	}
	f, err := os.Open(s.Render.Output)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	g, err := gif.DecodeAll(f)
	if err != nil {
		t.Fatal(err)
	}
	if len(g.Image) != 3 || g.Delay[0] != 10 {
		t.Errorf("got %d frames with delay %v", len(g.Image), g.Delay)
	}
}

func TestWriteRenderPNGSequence(t *testing.T) {
	dir := t.TempDir()
	s := small(t)
	s.Render.Frames = 2
	s.Render.Output = filepath.Join(dir, "seq.png")

	paths, err := NewApp().WriteRender(context.Background(), s)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{filepath.Join(dir, "seq_0.png"), filepath.Join(dir, "seq_1.png")}
	if len(paths) != 2 || paths[0] != want[0] || paths[1] != want[1] {
		t.Fatalf("paths = %v, want %v", paths, want)
	}
}

func TestWriteRenderRejectsMultiFrameBMP(t *testing.T) {
	s := small(t)
	s.Render.Frames = 2
	s.Render.Output = filepath.Join(t.TempDir(), "frames.bmp")
	if _, err := NewApp().WriteRender(context.Background(), s); err == nil {
		t.Fatal("expected an error for a multi-frame bmp")
	}
}

func TestWriteRenderCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s := small(t)
	s.Render.Output = filepath.Join(t.TempDir(), "frame.png")
	if _, err := NewApp().WriteRender(ctx, s); err == nil {
		t.Fatal("expected a cancellation error")
	}
	if _, err := os.Stat(s.Render.Output); !os.IsNotExist(err) {
		t.Error("nothing should be written after cancellation")
	}
}

func TestWriteMesh(t *testing.T) {
	dir := t.TempDir()
	app := NewApp()

	s := small(t)
	s.Mesh.Output = filepath.Join(dir, "shoe.stl")
	if err := app.WriteMesh(s); err != nil {
		t.Fatal(err)
	}
	info, err := os.Stat(s.Mesh.Output)
	if err != nil {
		t.Fatal(err)
	}
	if info.Size() <= 84 || (info.Size()-84)%50 != 0 {
		t.Errorf("unexpected STL size %d", info.Size())
	}

	s.Mesh.Output = filepath.Join(dir, "shoe.json")
	if err := app.WriteMesh(s); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(s.Mesh.Output); err != nil {
		t.Fatal(err)
	}

	s.Mesh.Output = filepath.Join(dir, "shoe.obj")
	if err := app.WriteMesh(s); err == nil {
		t.Error("expected an error for an unsupported mesh format")
	}
}
