// Package imageio writes rendered frames: single images as PNG, BMP or
// TIFF, and animations as a GIF or a numbered PNG sequence.
package imageio

import (
	"bufio"
	"errors"
	"fmt"
	"image"
	"image/color/palette"
	"image/draw"
	"image/gif"
	"image/png"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/chazu/curvshade/pkg/logging"
	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
)

// Format is an output image encoding.
type Format int

const (
	None Format = iota
	PNG
	BMP
	TIFF
	GIF
)

var formatNames = map[Format]string{
	PNG:  "png",
	BMP:  "bmp",
	TIFF: "tiff",
	GIF:  "gif",
}

func (f Format) String() string {
	if n, ok := formatNames[f]; ok {
		return n
	}
	return fmt.Sprintf("Format(%d)", int(f))
}

// ParseFormat maps a format name or file extension, with or without the
// leading dot, to a Format.
func ParseFormat(name string) (Format, error) {
	name = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(name), "."))
	switch name {
	case "png":
		return PNG, nil
	case "bmp":
		return BMP, nil
	case "tif", "tiff":
		return TIFF, nil
	case "gif":
		return GIF, nil
	case "":
		return None, errors.New("imageio: empty format")
	}
	return None, fmt.Errorf("imageio: unsupported format %q", name)
}

// FormatFromPath infers the format from a file extension.
func FormatFromPath(path string) (Format, error) {
	return ParseFormat(filepath.Ext(path))
}

// Encode writes a single image. GIF output is quantized to the Plan9
// palette.
func Encode(w io.Writer, img image.Image, f Format) error {
	switch f {
	case PNG:
		return png.Encode(w, img)
	case BMP:
		return bmp.Encode(w, img)
	case TIFF:
		return tiff.Encode(w, img, &tiff.Options{Compression: tiff.Deflate})
	case GIF:
		return gif.Encode(w, Paletted(img), nil)
	default:
		return fmt.Errorf("imageio: cannot encode format %v", f)
	}
}

// Save writes img to path. An empty format infers it from the extension.
func Save(path string, img image.Image, format string) error {
	if format == "" {
		format = filepath.Ext(path)
	}
	f, err := ParseFormat(format)
	if err != nil {
		return err
	}
	return create(path, func(w io.Writer) error { return Encode(w, img, f) })
}

// Paletted quantizes img to the Plan9 palette with Floyd-Steinberg
// dithering.
func Paletted(img image.Image) *image.Paletted {
	if p, ok := img.(*image.Paletted); ok {
		return p
	}
	p := image.NewPaletted(img.Bounds(), palette.Plan9)
	draw.FloydSteinberg.Draw(p, p.Bounds(), img, img.Bounds().Min)
	return p
}

// WriteGIF writes frames as a looping animated GIF. delay is in
// hundredths of a second.
func WriteGIF(path string, frames []image.Image, delay int) error {
	if len(frames) == 0 {
		return errors.New("imageio: no frames")
	}
	out := &gif.GIF{
		Image:     make([]*image.Paletted, 0, len(frames)),
		Delay:     make([]int, 0, len(frames)),
		LoopCount: 0,
	}
	for _, img := range frames {
		out.Image = append(out.Image, Paletted(img))
		out.Delay = append(out.Delay, delay)
	}
	if err := create(path, func(w io.Writer) error { return gif.EncodeAll(w, out) }); err != nil {
		return err
	}
	logging.Logger().Info("animation written", "path", path, "frames", len(frames), "delay", delay)
	return nil
}

// SequencePath returns the file name of frame i in an n-frame sequence:
// prefix_007.png, zero-padded to fit n-1.
func SequencePath(prefix string, i, n int) string {
	width := 1
	if n > 1 {
		width = int(math.Log10(float64(n-1))) + 1
	}
	return fmt.Sprintf("%s_%0*d.png", prefix, width, i)
}

// WritePNGSequence writes one PNG per frame and returns the paths written.
func WritePNGSequence(prefix string, frames []image.Image) ([]string, error) {
	paths := make([]string, 0, len(frames))
	for i, img := range frames {
		path := SequencePath(prefix, i, len(frames))
		enc := png.Encoder{CompressionLevel: png.BestCompression}
		if err := create(path, func(w io.Writer) error { return enc.Encode(w, img) }); err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}
	logging.Logger().Info("png sequence written", "prefix", prefix, "frames", len(frames))
	return paths, nil
}

// create writes a file through a buffered writer and reports close errors.
func create(path string, write func(io.Writer) error) (err error) {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("imageio: %w", err)
	}
	defer func() {
		if cerr := file.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("imageio: %w", cerr)
		}
	}()
	bw := bufio.NewWriter(file)
	if err := write(bw); err != nil {
		return fmt.Errorf("imageio: encoding %s: %w", filepath.Base(path), err)
	}
	return bw.Flush()
}
