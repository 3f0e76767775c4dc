package model

import (
	"fmt"
	"math"
)

// ValidationSeverity indicates whether a finding makes the table unusable
// or is merely informational.
type ValidationSeverity int

const (
	SeverityError   ValidationSeverity = iota // table cannot be evaluated
	SeverityWarning                           // informational
)

func (s ValidationSeverity) String() string {
	switch s {
	case SeverityError:
		return "error"
	case SeverityWarning:
		return "warning"
	default:
		return fmt.Sprintf("ValidationSeverity(%d)", int(s))
	}
}

// ValidationError describes a single validation finding.
type ValidationError struct {
	Field    string             // dotted path of the offending table field
	Message  string             // human-readable description
	Severity ValidationSeverity // error or warning
}

func (e ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("[%s] %s", e.Severity, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Severity, e.Field, e.Message)
}

// maxOctaves bounds the texture cost per evaluation before a warning.
const maxOctaves = 8

// Validate checks a table for values the field cannot evaluate sensibly and
// returns every finding. An empty slice means the table is valid. Validate
// never mutates the table.
func Validate(t *Table) []ValidationError {
	if t == nil {
		return []ValidationError{{Message: "table is nil", Severity: SeverityError}}
	}

	var errs []ValidationError
	fail := func(field, format string, args ...any) {
		errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf(format, args...), Severity: SeverityError})
	}
	warn := func(field, format string, args ...any) {
		errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf(format, args...), Severity: SeverityWarning})
	}
	positive := func(field string, v float64) {
		if !(v > 0) || math.IsInf(v, 0) {
			fail(field, "must be positive and finite, got %v", v)
		}
	}
	nonNegative := func(field string, v float64) {
		if !(v >= 0) || math.IsInf(v, 0) {
			fail(field, "must be non-negative and finite, got %v", v)
		}
	}
	finite := func(field string, vs ...float64) {
		for _, v := range vs {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				fail(field, "must be finite, got %v", v)
				return
			}
		}
	}
	placement := func(field string, p Placement) {
		finite(field+".offset", p.Offset[:]...)
		finite(field+".rotation", p.Rotation[:]...)
	}
	ellipsoid := func(field string, e EllipsoidSpec) {
		placement(field, e.Placement)
		for i, r := range e.Radii {
			positive(fmt.Sprintf("%s.radii[%d]", field, i), r)
		}
	}
	box := func(field string, b BoxSpec) {
		placement(field, b.Placement)
		for i, h := range b.HalfExtent {
			positive(fmt.Sprintf("%s.half_extent[%d]", field, i), h)
		}
	}
	torus := func(field string, tr TorusSpec) {
		placement(field, tr.Placement)
		positive(field+".major", tr.Major)
		positive(field+".tube", tr.Tube)
		if !(tr.Aperture > 0 && tr.Aperture <= math.Pi) {
			fail(field+".aperture", "must be in (0, π], got %v", tr.Aperture)
		}
		if tr.Tube > tr.Major {
			warn(field+".tube", "tube radius %v exceeds major radius %v; the ring self-intersects", tr.Tube, tr.Major)
		}
	}

	if t.Version != TableVersion {
		fail("version", "unsupported table version %d, want %d", t.Version, TableVersion)
	}
	positive("bound_radius", t.BoundRadius)
	finite("flap", t.Flap, t.FlapTaper)
	finite("body_offset", t.BodyOffset[:]...)
	nonNegative("stretch", t.Stretch)

	tx := t.Texture
	finite("texture", tx.Tilt, tx.Amplitude, tx.Frequency[0], tx.Frequency[1])
	if tx.Octaves < 0 {
		fail("texture.octaves", "must be non-negative, got %d", tx.Octaves)
	} else if tx.Octaves > maxOctaves {
		warn("texture.octaves", "%d octaves is expensive; detail below the marcher epsilon is invisible", tx.Octaves)
	}
	for _, band := range []struct {
		name  string
		edges [2]float64
	}{{"rise", tx.Rise}, {"fade", tx.Fade}, {"onset", tx.Onset}} {
		if !(band.edges[0] < band.edges[1]) {
			fail("texture."+band.name, "edges must be increasing, got %v", band.edges)
		}
	}

	ellipsoid("toe", t.Toe)
	ellipsoid("shaft", t.Shaft)
	nonNegative("shaft_blend", t.ShaftBlend)
	box("opening", t.Opening)
	nonNegative("opening_blend", t.OpeningBlend)
	finite("sole_height", t.SoleHeight)
	nonNegative("sole_blend", t.SoleBlend)
	box("slot", t.Slot)
	torus("collar", t.Collar)
	nonNegative("collar_blend", t.CollarBlend)

	if len(t.Laces) == 0 {
		warn("laces", "no laces; the lace group is empty")
	}
	for i, l := range t.Laces {
		torus(fmt.Sprintf("laces[%d]", i), l)
	}
	return errs
}

// Errors filters findings down to those with SeverityError.
func Errors(findings []ValidationError) []ValidationError {
	var out []ValidationError
	for _, f := range findings {
		if f.Severity == SeverityError {
			out = append(out, f)
		}
	}
	return out
}
