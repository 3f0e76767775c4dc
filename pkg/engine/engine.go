// Package engine evaluates curvshade settings scripts. A script is a small
// zygomys Lisp program whose builtins adjust a copy of the render settings:
//
//	; orbiting metal shoe, 2 seconds at 12 fps
//	(shading :metal)
//	(resolution 640 480)
//	(frames 24 :fps 12)
//	(camera :radius 9 :fov 0.02)
package engine

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/chazu/curvshade/pkg/config"
	"github.com/chazu/curvshade/pkg/logging"
	zygo "github.com/glycerine/zygomys/zygo"
)

// EvalError represents a non-fatal error encountered during evaluation,
// such as a parse error, a runtime error in user code or settings the
// script left invalid.
type EvalError struct {
	Line    int
	Col     int
	Message string
}

func (e EvalError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("line %d: %s", e.Line, e.Message)
	}
	return e.Message
}

// Engine wraps the zygomys interpreter. It is safe for concurrent use;
// each call to Evaluate creates a fresh sandboxed environment.
type Engine struct {
	mu         sync.Mutex
	generation uint64

	// Timeout bounds a single evaluation. Zero means EvalTimeout.
	Timeout time.Duration
}

// NewEngine creates a new Engine instance.
func NewEngine() *Engine {
	return &Engine{}
}

// Evaluate runs source against a copy of base and returns the adjusted
// settings. base is never modified.
//
// Return semantics:
//   - On success: returns settings + nil errors + nil error
//   - On parse/eval failure or invalid result: returns nil + eval errors + nil error
//   - On fatal failure (timeout, panic, superseded): returns nil + nil + error
func (e *Engine) Evaluate(source string, base *config.Settings) (*config.Settings, []EvalError, error) {
	if base == nil {
		base = config.Default()
	}

	e.mu.Lock()
	e.generation++
	gen := e.generation
	timeout := e.Timeout
	e.mu.Unlock()
	if timeout <= 0 {
		timeout = EvalTimeout
	}

	ch := make(chan evalResult, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- evalResult{err: fmt.Errorf("panic during evaluation: %v", r)}
			}
		}()

		s, evalErrs, err := e.evaluate(source, base.Clone())
		ch <- evalResult{settings: s, errors: evalErrs, err: err}
	}()

	return waitWithTimeout(ch, gen, &e.mu, &e.generation, timeout)
}

// EvaluateFile reads a script from path and evaluates it.
func (e *Engine) EvaluateFile(path string, base *config.Settings) (*config.Settings, []EvalError, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("engine: reading script: %w", err)
	}
	return e.Evaluate(string(src), base)
}

// evaluate performs the actual zygomys evaluation in a fresh sandbox.
func (e *Engine) evaluate(source string, s *config.Settings) (*config.Settings, []EvalError, error) {
	// Empty source is a valid program that changes nothing.
	if strings.TrimSpace(source) == "" {
		return s, nil, nil
	}

	// Sandbox mode prevents user code from accessing the filesystem or syscalls.
	env := zygo.NewZlispSandbox()
	defer env.Stop()

	registerBuiltins(env, s)

	if err := env.LoadString(preprocessSource(source)); err != nil {
		return nil, parseZygomysError(err), nil
	}
	if _, err := env.Run(); err != nil {
		return nil, parseZygomysError(err), nil
	}

	if err := s.Validate(); err != nil {
		return nil, []EvalError{{Message: err.Error()}}, nil
	}

	logging.Logger().Info("settings script evaluated",
		"mode", s.Kernel.Mode,
		"width", s.Render.Width,
		"height", s.Render.Height,
		"frames", s.Render.Frames)
	return s, nil, nil
}

// linePattern matches zygomys error messages that include "Error on line N: ..."
var linePattern = regexp.MustCompile(`(?i)(?:error )?on line (\d+):\s*(.*)`)

// linePatternShort matches simpler "line N: ..." patterns.
var linePatternShort = regexp.MustCompile(`(?i)^line (\d+):\s*(.*)`)

// parseZygomysError converts a zygomys error into one or more EvalError values.
// It attempts to extract line number information from the error message.
func parseZygomysError(err error) []EvalError {
	msg := err.Error()

	for _, re := range []*regexp.Regexp{linePattern, linePatternShort} {
		if m := re.FindStringSubmatch(msg); m != nil {
			line, _ := strconv.Atoi(m[1])
			return []EvalError{{
				Line:    line,
				Message: strings.TrimSpace(m[2]),
			}}
		}
	}

	// Fallback: no line info available.
	return []EvalError{{Message: strings.TrimSpace(msg)}}
}
