package engine

import (
	"fmt"
	"strings"

	"github.com/chazu/curvshade/pkg/config"
	"github.com/chazu/curvshade/pkg/shading"
	zygo "github.com/glycerine/zygomys/zygo"
)

// ---------------------------------------------------------------------------
// Source preprocessing
// ---------------------------------------------------------------------------

// preprocessSource rewrites a settings script before passing it to zygomys.
// It performs three transformations:
//
//  1. Keyword conversion: :keyword -> "__kw_keyword" (string literal)
//     This avoids the need to register keyword symbols as globals, which
//     would conflict with user-defined variables of the same name.
//
//  2. Kebab-case to underscore: min-dist -> min_dist
//     zygomys does not allow hyphens in identifiers (it interprets them
//     as the subtraction operator). This converts kebab-case identifiers
//     to underscore form outside of strings and comments.
//
//  3. Line comments: ; and ;; become //, the zygomys comment marker.
//
// All transformations respect string literal boundaries and line comments.
func preprocessSource(source string) string {
	result := make([]byte, 0, len(source)+len(source)/4)
	b := []byte(source)
	i := 0
	for i < len(b) {
		// Skip double-quoted string literals.
		if b[i] == '"' {
			result = append(result, b[i])
			i++
			for i < len(b) && b[i] != '"' {
				if b[i] == '\\' && i+1 < len(b) {
					result = append(result, b[i], b[i+1])
					i += 2
					continue
				}
				result = append(result, b[i])
				i++
			}
			if i < len(b) {
				result = append(result, b[i])
				i++
			}
			continue
		}
		// Skip backtick-quoted string literals.
		if b[i] == '`' {
			result = append(result, b[i])
			i++
			for i < len(b) && b[i] != '`' {
				result = append(result, b[i])
				i++
			}
			if i < len(b) {
				result = append(result, b[i])
				i++
			}
			continue
		}
		// Convert ; line comments to // comments for zygomys.
		// zygomys uses // for line comments, not the traditional Lisp ;.
		if b[i] == ';' {
			result = append(result, '/', '/')
			i++
			// Skip additional ; characters (;; style).
			for i < len(b) && b[i] == ';' {
				i++
			}
			for i < len(b) && b[i] != '\n' {
				result = append(result, b[i])
				i++
			}
			continue
		}
		// Transform :keyword to "__kw_keyword".
		if b[i] == ':' && i+1 < len(b) {
			// Preserve := (assignment operator).
			if b[i+1] == '=' {
				result = append(result, b[i], b[i+1])
				i += 2
				continue
			}
			// Check for keyword: colon followed by a letter.
			if isLetter(b[i+1]) {
				j := i + 1
				for j < len(b) && isKWChar(b[j]) {
					j++
				}
				kwName := string(b[i+1 : j])
				result = append(result, '"')
				result = append(result, []byte(kwPrefix)...)
				result = append(result, []byte(kwName)...)
				result = append(result, '"')
				i = j
				continue
			}
		}
		// Transform kebab-case identifiers: alpha-alpha -> alpha_alpha.
		// Only when hyphen sits between identifier characters (not a minus operator).
		if b[i] == '-' && i > 0 && i+1 < len(b) &&
			isIdentChar(b[i-1]) && isIdentStartChar(b[i+1]) {
			result = append(result, '_')
			i++
			continue
		}
		result = append(result, b[i])
		i++
	}
	return string(result)
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isKWChar(c byte) bool {
	return isLetter(c) || (c >= '0' && c <= '9') || c == '-' || c == '_'
}

func isIdentChar(c byte) bool {
	return isLetter(c) || (c >= '0' && c <= '9') || c == '_'
}

func isIdentStartChar(c byte) bool {
	return isLetter(c)
}

// ---------------------------------------------------------------------------
// Custom Sexp types for passing Go values through the zygomys environment
// ---------------------------------------------------------------------------

// sexpVec3 wraps a point so (vec3 ...) can feed :focus.
type sexpVec3 struct {
	vec [3]float64
}

func (v *sexpVec3) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(vec3 %g %g %g)", v.vec[0], v.vec[1], v.vec[2])
}
func (v *sexpVec3) Type() *zygo.RegisteredType { return nil }

// ---------------------------------------------------------------------------
// Keyword argument parsing
// ---------------------------------------------------------------------------

// kwPrefix is the marker prepended to keyword names by preprocessSource.
const kwPrefix = "__kw_"

// isKW checks if a Sexp is a preprocessed keyword string.
// Returns the keyword name (without prefix) and true if it is.
func isKW(s zygo.Sexp) (string, bool) {
	str, ok := s.(*zygo.SexpStr)
	if !ok {
		return "", false
	}
	if strings.HasPrefix(str.S, kwPrefix) {
		return str.S[len(kwPrefix):], true
	}
	return "", false
}

// kwArgs holds the result of parsing a mixed positional+keyword argument list.
type kwArgs struct {
	kw         map[string]zygo.Sexp
	positional []zygo.Sexp
}

// parseArgs separates args into keyword and positional arguments. A keyword
// followed by another keyword, or by nothing, is a flag with a null value.
func parseArgs(args []zygo.Sexp) kwArgs {
	result := kwArgs{kw: make(map[string]zygo.Sexp)}
	i := 0
	for i < len(args) {
		name, ok := isKW(args[i])
		if !ok {
			result.positional = append(result.positional, args[i])
			i++
			continue
		}
		if i+1 < len(args) {
			if _, next := isKW(args[i+1]); !next {
				result.kw[name] = args[i+1]
				i += 2
				continue
			}
		}
		result.kw[name] = zygo.SexpNull
		i++
	}
	return result
}

// unknownKeys reports keywords a builtin does not accept.
func (pa kwArgs) unknownKeys(fn string, allowed ...string) error {
	for k := range pa.kw {
		found := false
		for _, a := range allowed {
			if k == a {
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("%s: unknown keyword :%s", fn, k)
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// Value extraction helpers
// ---------------------------------------------------------------------------

// toFloat64 extracts a float64 from a Sexp (SexpInt or SexpFloat).
func toFloat64(s zygo.Sexp) (float64, error) {
	switch v := s.(type) {
	case *zygo.SexpInt:
		return float64(v.Val), nil
	case *zygo.SexpFloat:
		return v.Val, nil
	}
	return 0, fmt.Errorf("expected number, got %T (%s)", s, s.SexpString(nil))
}

// toInt extracts a whole number.
func toInt(s zygo.Sexp) (int, error) {
	if v, ok := s.(*zygo.SexpInt); ok {
		return int(v.Val), nil
	}
	return 0, fmt.Errorf("expected integer, got %T (%s)", s, s.SexpString(nil))
}

// toBool accepts true/false and the keywords :on/:off, :down/:up.
func toBool(s zygo.Sexp) (bool, error) {
	if b, ok := s.(*zygo.SexpBool); ok {
		return b.Val, nil
	}
	if name, err := toKeywordString(s); err == nil {
		switch name {
		case "on", "down", "true":
			return true, nil
		case "off", "up", "false":
			return false, nil
		}
	}
	return false, fmt.Errorf("expected boolean, got %T (%s)", s, s.SexpString(nil))
}

// toString extracts a string from a Sexp.
func toString(s zygo.Sexp) (string, error) {
	if str, ok := s.(*zygo.SexpStr); ok {
		return str.S, nil
	}
	return "", fmt.Errorf("expected string, got %T (%s)", s, s.SexpString(nil))
}

// toKeywordString extracts a keyword name or plain string from a Sexp.
// Handles both preprocessed keywords (__kw_metal) and plain strings ("metal").
func toKeywordString(s zygo.Sexp) (string, error) {
	str, ok := s.(*zygo.SexpStr)
	if !ok {
		return "", fmt.Errorf("expected keyword or string, got %T (%s)", s, s.SexpString(nil))
	}
	if strings.HasPrefix(str.S, kwPrefix) {
		return str.S[len(kwPrefix):], nil
	}
	return str.S, nil
}

// toVec3 extracts a point from a sexpVec3.
func toVec3(s zygo.Sexp) ([3]float64, error) {
	if v, ok := s.(*sexpVec3); ok {
		return v.vec, nil
	}
	return [3]float64{}, fmt.Errorf("expected vec3, got %T (%s)", s, s.SexpString(nil))
}

// setFloat assigns a keyword's numeric value to dst when present.
func (pa kwArgs) setFloat(fn, key string, dst *float64) error {
	v, ok := pa.kw[key]
	if !ok {
		return nil
	}
	f, err := toFloat64(v)
	if err != nil {
		return fmt.Errorf("%s: %s: %w", fn, key, err)
	}
	*dst = f
	return nil
}

// setInt assigns a keyword's integer value to dst when present.
func (pa kwArgs) setInt(fn, key string, dst *int) error {
	v, ok := pa.kw[key]
	if !ok {
		return nil
	}
	n, err := toInt(v)
	if err != nil {
		return fmt.Errorf("%s: %s: %w", fn, key, err)
	}
	*dst = n
	return nil
}

// setString assigns a keyword's string value to dst when present.
func (pa kwArgs) setString(fn, key string, dst *string) error {
	v, ok := pa.kw[key]
	if !ok {
		return nil
	}
	str, err := toString(v)
	if err != nil {
		return fmt.Errorf("%s: %s: %w", fn, key, err)
	}
	*dst = str
	return nil
}

// firstErr returns the first non-nil error.
func firstErr(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// Builtin registration
// ---------------------------------------------------------------------------

// registerBuiltins installs the settings builtins into a zygomys
// environment. Every builtin mutates s in place and returns null.
//
// Source code must be preprocessed with preprocessSource() before evaluation so
// that :keyword tokens are converted to recognizable string literals.
func registerBuiltins(env *zygo.Zlisp, s *config.Settings) {

	// -----------------------------------------------------------------------
	// (vec3 0 0.08 -0.137)
	// -----------------------------------------------------------------------
	env.AddFunction("vec3", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 3 {
			return zygo.SexpNull, fmt.Errorf("vec3 requires exactly 3 arguments, got %d", len(args))
		}
		var v [3]float64
		for i, a := range args {
			f, err := toFloat64(a)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("vec3: %c: %w", "xyz"[i], err)
			}
			v[i] = f
		}
		return &sexpVec3{vec: v}, nil
	})

	// -----------------------------------------------------------------------
	// (shading :metal)
	// -----------------------------------------------------------------------
	env.AddFunction("shading", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 1 {
			return zygo.SexpNull, fmt.Errorf("shading requires a mode, got %d arguments", len(args))
		}
		modeName, err := toKeywordString(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("shading: %w", err)
		}
		m, err := shading.ParseMode(modeName)
		if err != nil {
			return zygo.SexpNull, err
		}
		s.Kernel.Mode = m
		return zygo.SexpNull, nil
	})

	// -----------------------------------------------------------------------
	// (resolution 800 600)
	// -----------------------------------------------------------------------
	env.AddFunction("resolution", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 2 {
			return zygo.SexpNull, fmt.Errorf("resolution requires width and height, got %d arguments", len(args))
		}
		w, err := toInt(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("resolution: width: %w", err)
		}
		h, err := toInt(args[1])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("resolution: height: %w", err)
		}
		s.Render.Width, s.Render.Height = w, h
		return zygo.SexpNull, nil
	})

	// -----------------------------------------------------------------------
	// (time 1.5)
	// -----------------------------------------------------------------------
	env.AddFunction("time", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 1 {
			return zygo.SexpNull, fmt.Errorf("time requires one argument, got %d", len(args))
		}
		t, err := toFloat64(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("time: %w", err)
		}
		s.Uniforms.Time = t
		return zygo.SexpNull, nil
	})

	// -----------------------------------------------------------------------
	// (pointer 400 300 :down)
	// -----------------------------------------------------------------------
	env.AddFunction("pointer", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) < 2 || len(args) > 3 {
			return zygo.SexpNull, fmt.Errorf("pointer requires x, y and an optional button state, got %d arguments", len(args))
		}
		x, err := toFloat64(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("pointer: x: %w", err)
		}
		y, err := toFloat64(args[1])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("pointer: y: %w", err)
		}
		pressed := false
		if len(args) == 3 {
			if pressed, err = toBool(args[2]); err != nil {
				return zygo.SexpNull, fmt.Errorf("pointer: button: %w", err)
			}
		}
		s.Uniforms.Pointer = [2]float64{x, y}
		s.Uniforms.Pressed = pressed
		return zygo.SexpNull, nil
	})

	// -----------------------------------------------------------------------
	// (animate true)
	// -----------------------------------------------------------------------
	env.AddFunction("animate", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		on := true
		if len(args) > 1 {
			return zygo.SexpNull, fmt.Errorf("animate takes at most one argument, got %d", len(args))
		}
		if len(args) == 1 {
			b, err := toBool(args[0])
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("animate: %w", err)
			}
			on = b
		}
		s.Kernel.Animate = on
		return zygo.SexpNull, nil
	})

	// -----------------------------------------------------------------------
	// (camera :radius 10 :rate 0.6 :fov 0.015 :focus (vec3 0 0.08 -0.137))
	// -----------------------------------------------------------------------
	env.AddFunction("camera", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		if err := pa.unknownKeys("camera", "radius", "rate", "fov", "focus"); err != nil {
			return zygo.SexpNull, err
		}
		c := &s.Camera
		if err := firstErr(
			pa.setFloat("camera", "radius", &c.Radius),
			pa.setFloat("camera", "rate", &c.Rate),
			pa.setFloat("camera", "fov", &c.FOV),
		); err != nil {
			return zygo.SexpNull, err
		}
		if v, ok := pa.kw["focus"]; ok {
			f, err := toVec3(v)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("camera: focus: %w", err)
			}
			c.Focus = f
		}
		return zygo.SexpNull, nil
	})

	// -----------------------------------------------------------------------
	// (march :iterations 100 :damping 0.5 :min-dist 0.001 :max-dist 30
	//        :normal-eps 0.0005)
	// -----------------------------------------------------------------------
	env.AddFunction("march", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		if err := pa.unknownKeys("march", "iterations", "damping", "min-dist", "max-dist", "normal-eps"); err != nil {
			return zygo.SexpNull, err
		}
		k := &s.Kernel
		return zygo.SexpNull, firstErr(
			pa.setInt("march", "iterations", &k.Iterations),
			pa.setFloat("march", "damping", &k.Damping),
			pa.setFloat("march", "min-dist", &k.MinDist),
			pa.setFloat("march", "max-dist", &k.MaxDist),
			pa.setFloat("march", "normal-eps", &k.NormalEps),
		)
	})

	// -----------------------------------------------------------------------
	// (frames 24 :fps 12 :output "walk.gif")
	// -----------------------------------------------------------------------
	env.AddFunction("frames", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		if err := pa.unknownKeys("frames", "fps", "output"); err != nil {
			return zygo.SexpNull, err
		}
		if len(pa.positional) != 1 {
			return zygo.SexpNull, fmt.Errorf("frames requires a frame count")
		}
		n, err := toInt(pa.positional[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("frames: count: %w", err)
		}
		s.Render.Frames = n
		return zygo.SexpNull, firstErr(
			pa.setFloat("frames", "fps", &s.Render.FPS),
			pa.setString("frames", "output", &s.Render.Output),
		)
	})

	// -----------------------------------------------------------------------
	// (output "shoe.png")
	// -----------------------------------------------------------------------
	env.AddFunction("output", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 1 {
			return zygo.SexpNull, fmt.Errorf("output requires a path, got %d arguments", len(args))
		}
		path, err := toString(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("output: %w", err)
		}
		s.Render.Output = path
		return zygo.SexpNull, nil
	})

	// -----------------------------------------------------------------------
	// (model "boot.toml")
	// -----------------------------------------------------------------------
	env.AddFunction("model", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 1 {
			return zygo.SexpNull, fmt.Errorf("model requires a table path, got %d arguments", len(args))
		}
		path, err := toString(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("model: %w", err)
		}
		s.Kernel.Table = path
		return zygo.SexpNull, nil
	})

	// -----------------------------------------------------------------------
	// (mesh :cells 120 :output "shoe.stl")
	// -----------------------------------------------------------------------
	env.AddFunction("mesh", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		if err := pa.unknownKeys("mesh", "cells", "output"); err != nil {
			return zygo.SexpNull, err
		}
		return zygo.SexpNull, firstErr(
			pa.setInt("mesh", "cells", &s.Mesh.Cells),
			pa.setString("mesh", "output", &s.Mesh.Output),
		)
	})
}
