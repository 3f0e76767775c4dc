package main

import (
	"context"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"

	"github.com/chazu/curvshade/pkg/config"
	"github.com/chazu/curvshade/pkg/engine"
	"github.com/chazu/curvshade/pkg/frame"
	"github.com/chazu/curvshade/pkg/imageio"
	"github.com/chazu/curvshade/pkg/kernel"
	"github.com/chazu/curvshade/pkg/logging"
	"github.com/chazu/curvshade/pkg/model"
	"github.com/chazu/curvshade/pkg/tessellate"
	v2 "github.com/deadsy/sdfx/vec/v2"
)

// colorPalette assigns distinct display colors to model parts.
var colorPalette = []string{
	"#B3261E", "#F2E8D5", "#2ECC71", "#9B59B6",
	"#E67E22", "#1ABC9C", "#F39C12", "#3498DB",
}

// App ties the settings layers, the script engine and the kernel together
// for the command-line front end.
type App struct {
	engine *engine.Engine
}

// MeshData is the JSON mesh format written by `curvshade mesh -o x.json`.
type MeshData struct {
	Vertices []float32 `json:"vertices"`
	Normals  []float32 `json:"normals"`
	Indices  []uint32  `json:"indices"`
	PartName string    `json:"partName"`
	Color    string    `json:"color"`
}

// EvalErrorData is a JSON-serializable script error.
type EvalErrorData struct {
	Line    int    `json:"line"`
	Col     int    `json:"col"`
	Message string `json:"message"`
}

// EvalResult is a script evaluation followed by tessellation.
type EvalResult struct {
	Meshes   []MeshData      `json:"meshes"`
	Errors   []EvalErrorData `json:"errors"`
	Warnings []EvalErrorData `json:"warnings"`
}

// ScriptError carries the recoverable errors of a settings script.
type ScriptError struct {
	Path   string
	Errors []engine.EvalError
}

func (e *ScriptError) Error() string {
	msgs := make([]string, len(e.Errors))
	for i, err := range e.Errors {
		msgs[i] = err.Error()
	}
	return fmt.Sprintf("script %s: %s", e.Path, strings.Join(msgs, "; "))
}

// NewApp creates a new App with a script engine.
func NewApp() *App {
	return &App{engine: engine.NewEngine()}
}

// Settings layers the defaults, the settings file and the script. Empty
// paths skip their layer.
func (a *App) Settings(configPath, scriptPath string) (*config.Settings, error) {
	s := config.Default()
	if configPath != "" {
		loaded, err := config.Load(configPath)
		if err != nil {
			return nil, err
		}
		s = loaded
	}
	if scriptPath == "" {
		return s, nil
	}
	out, evalErrs, err := a.engine.EvaluateFile(scriptPath, s)
	if err != nil {
		return nil, err
	}
	if len(evalErrs) > 0 {
		return nil, &ScriptError{Path: scriptPath, Errors: evalErrs}
	}
	return out, nil
}

// Kernel builds the kernel for s.
func (a *App) Kernel(s *config.Settings) (*kernel.Kernel, error) {
	cfg, err := s.KernelConfig()
	if err != nil {
		return nil, err
	}
	return kernel.New(cfg)
}

// Render renders every frame s asks for, in order.
func (a *App) Render(ctx context.Context, s *config.Settings) ([]image.Image, error) {
	k, err := a.Kernel(s)
	if err != nil {
		return nil, err
	}
	times := frame.Sequence(s.Render.Frames, s.Render.FPS, s.Uniforms.Time)
	frames := make([]image.Image, 0, len(times))
	for i, t := range times {
		img, err := k.Frame(ctx, s.FrameUniforms(t))
		if err != nil {
			return nil, fmt.Errorf("frame %d: %w", i, err)
		}
		frames = append(frames, img)
	}
	return frames, nil
}

// WriteRender renders s and writes the result: one image for a single
// frame, otherwise a GIF or a numbered PNG sequence. It returns the files
// written.
func (a *App) WriteRender(ctx context.Context, s *config.Settings) ([]string, error) {
	frames, err := a.Render(ctx, s)
	if err != nil {
		return nil, err
	}
	out := s.Render.Output
	format := s.Render.Format
	if format == "" {
		format = filepath.Ext(out)
	}
	f, err := imageio.ParseFormat(format)
	if err != nil {
		return nil, err
	}

	switch {
	case len(frames) == 1:
		if err := imageio.Save(out, frames[0], f.String()); err != nil {
			return nil, err
		}
		logging.Logger().Info("frame written", "path", out, "format", f)
		return []string{out}, nil
	case f == imageio.GIF:
		if err := imageio.WriteGIF(out, frames, frame.Delay(s.Render.FPS)); err != nil {
			return nil, err
		}
		return []string{out}, nil
	case f == imageio.PNG:
		return imageio.WritePNGSequence(strings.TrimSuffix(out, filepath.Ext(out)), frames)
	default:
		return nil, fmt.Errorf("cannot write %d frames as %s, use gif or png", len(frames), f)
	}
}

// Pixel evaluates the kernel at the normalized coordinate (u, v) for the
// frame uniforms in s.
func (a *App) Pixel(s *config.Settings, u, v float64) (kernel.Result, error) {
	k, err := a.Kernel(s)
	if err != nil {
		return kernel.Result{}, err
	}
	return k.Pixel(v2.Vec{X: u, Y: v}, s.FrameUniforms(s.Uniforms.Time)), nil
}

// Meshes tessellates each model part of s.
func (a *App) Meshes(s *config.Settings) ([]MeshData, error) {
	cfg, err := s.KernelConfig()
	if err != nil {
		return nil, err
	}
	f := model.Field{Table: cfg.Table, Animate: cfg.Animate, Time: s.Uniforms.Time}
	meshes, err := tessellate.Parts(f, s.Mesh.Cells)
	if err != nil {
		return nil, err
	}
	out := make([]MeshData, 0, len(meshes))
	for i, m := range meshes {
		out = append(out, MeshData{
			Vertices: m.Vertices,
			Normals:  m.Normals,
			Indices:  m.Indices,
			PartName: m.PartName,
			Color:    colorPalette[i%len(colorPalette)],
		})
	}
	return out, nil
}

// Evaluate takes script source and returns per-part mesh data plus
// errors. Fatal and script errors are both reported in the result.
func (a *App) Evaluate(source string) EvalResult {
	result := EvalResult{
		Meshes:   []MeshData{},
		Errors:   []EvalErrorData{},
		Warnings: []EvalErrorData{},
	}

	// Step 1: evaluate the script into settings.
	s, evalErrs, err := a.engine.Evaluate(source, nil)
	if err != nil {
		logging.Logger().Error("evaluate fatal error", "err", err)
		result.Errors = append(result.Errors, EvalErrorData{Message: err.Error()})
		return result
	}
	if len(evalErrs) > 0 {
		for _, e := range evalErrs {
			result.Errors = append(result.Errors, EvalErrorData{Line: e.Line, Col: e.Col, Message: e.Message})
		}
		return result
	}

	// Step 2: surface table warnings.
	cfg, err := s.KernelConfig()
	if err != nil {
		result.Errors = append(result.Errors, EvalErrorData{Message: err.Error()})
		return result
	}
	for _, v := range model.Validate(cfg.Table) {
		if v.Severity == model.SeverityWarning {
			result.Warnings = append(result.Warnings, EvalErrorData{Message: v.Error()})
		}
	}

	// Step 3: tessellate.
	meshes, err := a.Meshes(s)
	if err != nil {
		logging.Logger().Error("tessellate error", "err", err)
		result.Errors = append(result.Errors, EvalErrorData{Message: "tessellation failed: " + err.Error()})
		return result
	}
	result.Meshes = meshes
	return result
}

// WriteMesh writes the model surface named by s.Mesh.Output: binary STL
// of the whole field, or per-part JSON meshes.
func (a *App) WriteMesh(s *config.Settings) error {
	out := s.Mesh.Output
	switch strings.ToLower(filepath.Ext(out)) {
	case ".stl":
		cfg, err := s.KernelConfig()
		if err != nil {
			return err
		}
		f := model.Field{Table: cfg.Table, Animate: cfg.Animate, Time: s.Uniforms.Time}
		return tessellate.SaveSTL(out, f, s.Mesh.Cells)
	case ".json":
		meshes, err := a.Meshes(s)
		if err != nil {
			return err
		}
		file, err := os.Create(out)
		if err != nil {
			return err
		}
		defer file.Close()
		if err := writeJSON(file, EvalResult{Meshes: meshes, Errors: []EvalErrorData{}, Warnings: []EvalErrorData{}}); err != nil {
			return err
		}
		logging.Logger().Info("mesh written", "path", out, "parts", len(meshes))
		return file.Close()
	default:
		return fmt.Errorf("unsupported mesh output %q, use .stl or .json", out)
	}
}
