package engine

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/chazu/curvshade/pkg/config"
)

func TestEvaluateEmptyString(t *testing.T) {
	eng := NewEngine()

	s, evalErrs, err := eng.Evaluate("", nil)
	if err != nil {
		t.Fatalf("unexpected fatal error: %v", err)
	}
	if len(evalErrs) > 0 {
		t.Fatalf("unexpected eval errors: %v", evalErrs)
	}
	if s == nil {
		t.Fatal("expected non-nil settings")
	}
	if *s != *config.Default() {
		t.Errorf("empty script changed settings: %+v", s)
	}
}

func TestEvaluateWhitespaceOnly(t *testing.T) {
	eng := NewEngine()

	s, evalErrs, err := eng.Evaluate("   \n\t  \n  ", nil)
	if err != nil {
		t.Fatalf("unexpected fatal error: %v", err)
	}
	if len(evalErrs) > 0 {
		t.Fatalf("unexpected eval errors: %v", evalErrs)
	}
	if s == nil {
		t.Fatal("expected non-nil settings")
	}
}

func TestEvaluateValidExpression(t *testing.T) {
	eng := NewEngine()

	// Plain Lisp without builtins leaves the settings alone.
	s, evalErrs, err := eng.Evaluate("(+ 1 2)", nil)
	if err != nil {
		t.Fatalf("unexpected fatal error: %v", err)
	}
	if len(evalErrs) > 0 {
		t.Fatalf("unexpected eval errors: %v", evalErrs)
	}
	if s == nil || *s != *config.Default() {
		t.Errorf("expected default settings, got %+v", s)
	}
}

func TestEvaluateMultipleExpressions(t *testing.T) {
	eng := NewEngine()

	source := `
(def w 320)
(def h (- w 160))
(resolution w h)
`
	s, evalErrs, err := eng.Evaluate(source, nil)
	if err != nil {
		t.Fatalf("unexpected fatal error: %v", err)
	}
	if len(evalErrs) > 0 {
		t.Fatalf("unexpected eval errors: %v", evalErrs)
	}
	if s.Render.Width != 320 || s.Render.Height != 160 {
		t.Errorf("resolution = %dx%d, want 320x160", s.Render.Width, s.Render.Height)
	}
}

func TestEvaluateSyntaxError(t *testing.T) {
	eng := NewEngine()

	// Unmatched paren is a parse error.
	s, evalErrs, err := eng.Evaluate("(+ 1 2", nil)
	if err != nil {
		t.Fatalf("expected non-fatal eval error, got fatal: %v", err)
	}
	if s != nil {
		t.Fatal("expected nil settings on syntax error")
	}
	if len(evalErrs) == 0 {
		t.Fatal("expected at least one eval error for syntax error")
	}
	if evalErrs[0].Message == "" {
		t.Error("eval error message should not be empty")
	}
}

func TestEvaluateUndefinedSymbol(t *testing.T) {
	eng := NewEngine()

	s, evalErrs, err := eng.Evaluate("(+ 1 undefined-symbol)", nil)
	if err != nil {
		t.Fatalf("expected non-fatal eval error, got fatal: %v", err)
	}
	if s != nil {
		t.Fatal("expected nil settings on eval error")
	}
	if len(evalErrs) == 0 {
		t.Fatal("expected at least one eval error for undefined symbol")
	}
}

func TestEvaluateSyntaxErrorHasLineInfo(t *testing.T) {
	eng := NewEngine()

	s, evalErrs, err := eng.Evaluate("(+ 1 2)\n(+ 3", nil)
	if err != nil {
		t.Fatalf("expected non-fatal eval error, got fatal: %v", err)
	}
	if s != nil {
		t.Fatal("expected nil settings on syntax error")
	}
	if len(evalErrs) == 0 {
		t.Fatal("expected at least one eval error")
	}
	// Line info depends on the zygomys error format.
	e := evalErrs[0]
	if e.Message == "" {
		t.Error("eval error message should not be empty")
	}
	if e.Line > 0 {
		t.Logf("extracted line info: line=%d, message=%q", e.Line, e.Message)
	}
}

func TestEvaluateInvalidResult(t *testing.T) {
	eng := NewEngine()

	s, evalErrs, err := eng.Evaluate("(resolution 0 600)", nil)
	if err != nil {
		t.Fatalf("unexpected fatal error: %v", err)
	}
	if s != nil {
		t.Fatal("expected nil settings when the script leaves them invalid")
	}
	if len(evalErrs) != 1 || !strings.Contains(evalErrs[0].Message, "resolution") {
		t.Fatalf("expected a resolution error, got %v", evalErrs)
	}
}

func TestEvaluateDoesNotMutateBase(t *testing.T) {
	eng := NewEngine()
	base := config.Default()
	base.Render.Width = 64
	before := *base

	s, evalErrs, err := eng.Evaluate("(resolution 128 96)\n(camera :focus (vec3 1 2 3))", base)
	if err != nil || len(evalErrs) > 0 {
		t.Fatalf("evaluate: %v %v", err, evalErrs)
	}
	if *base != before {
		t.Errorf("base settings modified: %+v", base)
	}
	if s.Render.Width != 128 || s.Camera.Focus != [3]float64{1, 2, 3} {
		t.Errorf("script not applied: %+v", s)
	}
}

func TestEvaluateLayersOverBase(t *testing.T) {
	eng := NewEngine()
	base := config.Default()
	base.Render.Output = "walk.gif"

	s, _, err := eng.Evaluate("(shading :metal)", base)
	if err != nil {
		t.Fatal(err)
	}
	if s.Render.Output != "walk.gif" {
		t.Errorf("output = %q, want base value kept", s.Render.Output)
	}
}

func TestEvaluateFile(t *testing.T) {
	eng := NewEngine()
	path := filepath.Join(t.TempDir(), "scene.zy")
	if err := os.WriteFile(path, []byte("; metal still\n(shading :metal)\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	s, evalErrs, err := eng.EvaluateFile(path, nil)
	if err != nil || len(evalErrs) > 0 {
		t.Fatalf("evaluate file: %v %v", err, evalErrs)
	}
	if s.Kernel.Mode.String() != "metal" {
		t.Errorf("mode = %v, want metal", s.Kernel.Mode)
	}

	if _, _, err := eng.EvaluateFile(filepath.Join(t.TempDir(), "missing.zy"), nil); err == nil {
		t.Error("expected error for missing script")
	}
}

func TestEvalErrorImplementsError(t *testing.T) {
	e := EvalError{Line: 5, Col: 0, Message: "something went wrong"}
	s := e.Error()
	if !strings.Contains(s, "line 5") {
		t.Errorf("Error() should contain line info, got: %s", s)
	}
	if !strings.Contains(s, "something went wrong") {
		t.Errorf("Error() should contain message, got: %s", s)
	}

	e2 := EvalError{Message: "no location"}
	if strings.Contains(e2.Error(), "line") {
		t.Errorf("Error() with no line should not contain 'line', got: %s", e2.Error())
	}
}

func TestEvaluateDeterministic(t *testing.T) {
	eng := NewEngine()
	src := "(time 1.25)\n(pointer 10 20 :down)"

	first, _, err := eng.Evaluate(src, nil)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 5; i++ {
		s, evalErrs, err := eng.Evaluate(src, nil)
		if err != nil {
			t.Fatalf("iteration %d: unexpected fatal error: %v", i, err)
		}
		if len(evalErrs) > 0 {
			t.Fatalf("iteration %d: unexpected eval errors: %v", i, evalErrs)
		}
		if *s != *first {
			t.Errorf("iteration %d: settings differ", i)
		}
	}
}

func TestEvaluateTimeout(t *testing.T) {
	var mu sync.Mutex
	var gen uint64 = 1
	ch := make(chan evalResult) // never sends

	start := time.Now()
	_, _, err := waitWithTimeout(ch, 1, &mu, &gen, 20*time.Millisecond)
	if err == nil {
		t.Fatal("expected timeout error, got nil")
	}
	if !strings.Contains(err.Error(), "timed out after 20ms") {
		t.Errorf("expected timeout error message, got: %v", err)
	}
	if time.Since(start) > EvalTimeout {
		t.Error("waited for the default timeout instead of the given one")
	}
}

func TestEvaluateGenerationDiscardsStale(t *testing.T) {
	var mu sync.Mutex
	gen := uint64(2)

	ch := make(chan evalResult, 1)
	ch <- evalResult{settings: config.Default()}

	_, _, err := waitWithTimeout(ch, 1, &mu, &gen, time.Second)
	if err == nil {
		t.Fatal("expected error for stale generation")
	}
	if !strings.Contains(err.Error(), "superseded") {
		t.Errorf("expected superseded error, got: %v", err)
	}
}

func TestEvaluateGenerationCurrent(t *testing.T) {
	var mu sync.Mutex
	gen := uint64(3)

	want := config.Default()
	ch := make(chan evalResult, 1)
	ch <- evalResult{settings: want}

	got, _, err := waitWithTimeout(ch, 3, &mu, &gen, time.Second)
	if err != nil {
		t.Fatal(err)
	}
	if got != want {
		t.Error("expected the delivered settings")
	}
}

func TestParseZygomysError(t *testing.T) {
	tests := []struct {
		name     string
		msg      string
		wantLine int
		wantMsg  string
	}{
		{
			name:     "error on line format",
			msg:      "Error on line 5: unexpected token\n",
			wantLine: 5,
			wantMsg:  "unexpected token",
		},
		{
			name:     "no line info",
			msg:      "some generic error",
			wantLine: 0,
			wantMsg:  "some generic error",
		},
		{
			name:     "line format lowercase",
			msg:      "error on line 12: missing paren",
			wantLine: 12,
			wantMsg:  "missing paren",
		},
		{
			name:     "short line format",
			msg:      "line 3: camera: radius: expected number",
			wantLine: 3,
			wantMsg:  "camera: radius",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := parseZygomysError(errString(tt.msg))
			if len(errs) == 0 {
				t.Fatal("expected at least one error")
			}
			e := errs[0]
			if e.Line != tt.wantLine {
				t.Errorf("line = %d, want %d", e.Line, tt.wantLine)
			}
			if !strings.Contains(e.Message, tt.wantMsg) {
				t.Errorf("message = %q, want containing %q", e.Message, tt.wantMsg)
			}
		})
	}
}

// errString is a simple error type for testing.
type errString string

func (e errString) Error() string { return string(e) }
