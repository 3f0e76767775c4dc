// Command curvshade renders a procedural shoe with a screen-space
// curvature shader: a sphere-traced signed distance field shaded as red
// wax, brushed metal or raw curvature.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/chazu/curvshade/pkg/config"
	"github.com/chazu/curvshade/pkg/logging"
	"github.com/chazu/curvshade/pkg/shading"
	"github.com/chazu/curvshade/pkg/viewer"
	"github.com/spf13/cobra"
)

// flags holds the command-line overrides shared by every command.
type flags struct {
	config  string
	script  string
	verbose bool

	mode    string
	output  string
	width   int
	height  int
	frames  int
	fps     float64
	time    float64
	animate bool
	workers int
	cells   int
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := newRootCmd(NewApp()).ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(app *App) *cobra.Command {
	f := &flags{}
	root := &cobra.Command{
		Use:           "curvshade",
		Short:         "Sphere-traced curvature shading of a procedural shoe",
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logging.SetLogger(logging.NewText(cmd.ErrOrStderr(), f.verbose))
		},
	}
	pf := root.PersistentFlags()
	pf.StringVarP(&f.config, "config", "c", "", "settings file (.toml, .yaml)")
	pf.StringVarP(&f.script, "script", "s", "", "settings script (zygomys)")
	pf.BoolVarP(&f.verbose, "verbose", "v", false, "debug logging")
	pf.StringVarP(&f.mode, "mode", "m", "", "shading mode: red-wax, metal or curvature")
	pf.IntVar(&f.width, "width", 0, "viewport width in pixels")
	pf.IntVar(&f.height, "height", 0, "viewport height in pixels")
	pf.Float64VarP(&f.time, "time", "t", 0, "frame time in seconds")
	pf.BoolVar(&f.animate, "animate", false, "animate the model over time")
	pf.IntVar(&f.workers, "workers", 0, "render concurrency (0 uses all CPUs)")

	root.AddCommand(
		newRenderCmd(app, f),
		newPixelCmd(app, f),
		newMeshCmd(app, f),
		newViewCmd(app, f),
	)
	return root
}

// settings loads the layered settings and applies the flags the user set.
func (f *flags) settings(app *App, cmd *cobra.Command) (*config.Settings, error) {
	s, err := app.Settings(f.config, f.script)
	if err != nil {
		return nil, err
	}
	if err := f.apply(cmd, s); err != nil {
		return nil, err
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (f *flags) apply(cmd *cobra.Command, s *config.Settings) error {
	changed := cmd.Flags().Changed
	if changed("mode") {
		m, err := shading.ParseMode(f.mode)
		if err != nil {
			return err
		}
		s.Kernel.Mode = m
	}
	if changed("width") {
		s.Render.Width = f.width
	}
	if changed("height") {
		s.Render.Height = f.height
	}
	if changed("time") {
		s.Uniforms.Time = f.time
	}
	if changed("animate") {
		s.Kernel.Animate = f.animate
	}
	if changed("workers") {
		s.Render.Workers = f.workers
	}
	if changed("frames") {
		s.Render.Frames = f.frames
	}
	if changed("fps") {
		s.Render.FPS = f.fps
	}
	if changed("cells") {
		s.Mesh.Cells = f.cells
	}
	if changed("output") {
		if cmd.Name() == "mesh" {
			s.Mesh.Output = f.output
		} else {
			s.Render.Output = f.output
		}
	}
	return nil
}

func newRenderCmd(app *App, f *flags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "render",
		Short: "Render a frame or an animation to disk",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := f.settings(app, cmd)
			if err != nil {
				return err
			}
			paths, err := app.WriteRender(cmd.Context(), s)
			if err != nil {
				return err
			}
			for _, p := range paths {
				fmt.Fprintln(cmd.OutOrStdout(), p)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&f.output, "output", "o", "", "output file (.png, .bmp, .tiff, .gif)")
	cmd.Flags().IntVarP(&f.frames, "frames", "n", 1, "number of frames")
	cmd.Flags().Float64Var(&f.fps, "fps", 30, "frames per second for animations")
	return cmd
}

// pixelReport is the output of `curvshade pixel`.
type pixelReport struct {
	U         float64    `json:"u"`
	V         float64    `json:"v"`
	Miss      bool       `json:"miss"`
	Depth     float64    `json:"depth"`
	Curvature float64    `json:"curvature"`
	Normal    [3]float64 `json:"normal"`
	Part      string     `json:"part"`
	Steps     int        `json:"steps"`
	RGBA      [4]uint8   `json:"rgba"`
}

func newPixelCmd(app *App, f *flags) *cobra.Command {
	var u, v float64
	cmd := &cobra.Command{
		Use:   "pixel",
		Short: "Evaluate the kernel at one normalized coordinate",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := f.settings(app, cmd)
			if err != nil {
				return err
			}
			r, err := app.Pixel(s, u, v)
			if err != nil {
				return err
			}
			c := r.RGBA()
			return writeJSON(cmd.OutOrStdout(), pixelReport{
				U:         u,
				V:         v,
				Miss:      r.Miss,
				Depth:     r.Depth,
				Curvature: r.Curvature,
				Normal:    [3]float64{r.Normal.X, r.Normal.Y, r.Normal.Z},
				Part:      r.Part.String(),
				Steps:     r.Steps,
				RGBA:      [4]uint8{c.R, c.G, c.B, c.A},
			})
		},
	}
	cmd.Flags().Float64Var(&u, "u", 0.5, "horizontal coordinate in [0,1]")
	cmd.Flags().Float64Var(&v, "v", 0.5, "vertical coordinate in [0,1], up")
	return cmd
}

func newMeshCmd(app *App, f *flags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mesh",
		Short: "Tessellate the model to STL or JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := f.settings(app, cmd)
			if err != nil {
				return err
			}
			if err := app.WriteMesh(s); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), s.Mesh.Output)
			return nil
		},
	}
	cmd.Flags().StringVarP(&f.output, "output", "o", "", "output file (.stl, .json)")
	cmd.Flags().IntVar(&f.cells, "cells", 200, "marching cubes cells along the longest axis")
	return cmd
}

func newViewCmd(app *App, f *flags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "view",
		Short: "Open an interactive window, reloading settings on change",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			v, err := viewer.New(ctx, func() (*config.Settings, error) {
				return f.settings(app, cmd)
			})
			if err != nil {
				return err
			}
			var watched []string
			for _, p := range []string{f.config, f.script} {
				if p != "" {
					watched = append(watched, p)
				}
			}
			if err := v.Watch(ctx, watched...); err != nil {
				return err
			}
			return viewer.Run(v, "curvshade")
		},
	}
	return cmd
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
