package engine

import (
	"fmt"
	"math"
	"strings"

	v3 "github.com/deadsy/sdfx/vec/v3"
	zygo "github.com/glycerine/zygomys/zygo"

	"github.com/chazu/xylem/pkg/centerline"
	"github.com/chazu/xylem/pkg/marker"
)

// ---------------------------------------------------------------------------
// Source preprocessing
// ---------------------------------------------------------------------------

// preprocessSource rewrites session script source before zygomys sees it:
//
//   - :keyword becomes the string literal "__kw_keyword", so keywords never
//     collide with user variables.
//   - kebab-case identifiers become snake_case (max-diameter -> max_diameter);
//     zygomys reads a hyphen as subtraction.
//   - ; comments become // comments.
//
// String literals are copied untouched.
func preprocessSource(source string) string {
	var out strings.Builder
	out.Grow(len(source) + len(source)/4)
	b := []byte(source)
	for i := 0; i < len(b); {
		c := b[i]
		switch {
		case c == '"' || c == '`':
			j := skipString(b, i)
			out.Write(b[i:j])
			i = j
		case c == ';':
			out.WriteString("//")
			for i < len(b) && b[i] == ';' {
				i++
			}
			j := i
			for j < len(b) && b[j] != '\n' {
				j++
			}
			out.Write(b[i:j])
			i = j
		case c == ':' && i+1 < len(b) && b[i+1] == '=':
			out.WriteString(":=")
			i += 2
		case c == ':' && i+1 < len(b) && isLetter(b[i+1]):
			j := i + 1
			for j < len(b) && isKWChar(b[j]) {
				j++
			}
			fmt.Fprintf(&out, "%q", kwPrefix+string(b[i+1:j]))
			i = j
		case c == '-' && i > 0 && i+1 < len(b) && isIdentChar(b[i-1]) && isLetter(b[i+1]):
			out.WriteByte('_')
			i++
		default:
			out.WriteByte(c)
			i++
		}
	}
	return out.String()
}

// skipString returns the index just past the string literal starting at i.
// Backslash escapes apply to double-quoted strings only.
func skipString(b []byte, i int) int {
	quote := b[i]
	j := i + 1
	for j < len(b) && b[j] != quote {
		if quote == '"' && b[j] == '\\' && j+1 < len(b) {
			j++
		}
		j++
	}
	if j < len(b) {
		j++
	}
	return j
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

// ---------------------------------------------------------------------------
// Custom Sexp types
// ---------------------------------------------------------------------------

// sexpPoint wraps a world position returned by `point`.
type sexpPoint struct {
	p v3.Vec
}

func (p *sexpPoint) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(point %g %g %g)", p.p.X, p.p.Y, p.p.Z)
}
func (p *sexpPoint) Type() *zygo.RegisteredType { return nil }

// ---------------------------------------------------------------------------
// Keyword argument parsing
// ---------------------------------------------------------------------------

// kwPrefix is the marker prepended to keyword names by preprocessSource.
const kwPrefix = "__kw_"

// isKW reports whether s is a preprocessed keyword and returns its name.
func isKW(s zygo.Sexp) (string, bool) {
	str, ok := s.(*zygo.SexpStr)
	if !ok || !strings.HasPrefix(str.S, kwPrefix) {
		return "", false
	}
	return str.S[len(kwPrefix):], true
}

// kwArgs holds the result of parsing a mixed positional+keyword argument list.
type kwArgs struct {
	kw         map[string]zygo.Sexp
	positional []zygo.Sexp
}

// parseArgs separates args into keyword and positional arguments.
// A trailing keyword without a value is a flag bound to SexpNull.
func parseArgs(args []zygo.Sexp) kwArgs {
	result := kwArgs{kw: make(map[string]zygo.Sexp)}
	for i := 0; i < len(args); i++ {
		name, ok := isKW(args[i])
		if !ok {
			result.positional = append(result.positional, args[i])
			continue
		}
		if i+1 < len(args) {
			result.kw[name] = args[i+1]
			i++
		} else {
			result.kw[name] = zygo.SexpNull
		}
	}
	return result
}

// ---------------------------------------------------------------------------
// Value extraction helpers
// ---------------------------------------------------------------------------

func toFloat64(s zygo.Sexp) (float64, error) {
	switch v := s.(type) {
	case *zygo.SexpInt:
		return float64(v.Val), nil
	case *zygo.SexpFloat:
		return v.Val, nil
	}
	return 0, fmt.Errorf("expected number, got %T (%s)", s, s.SexpString(nil))
}

// toInt accepts integers and integral floats.
func toInt(s zygo.Sexp) (int, error) {
	switch v := s.(type) {
	case *zygo.SexpInt:
		return int(v.Val), nil
	case *zygo.SexpFloat:
		if v.Val == math.Trunc(v.Val) {
			return int(v.Val), nil
		}
	}
	return 0, fmt.Errorf("expected integer, got %T (%s)", s, s.SexpString(nil))
}

func toString(s zygo.Sexp) (string, error) {
	if str, ok := s.(*zygo.SexpStr); ok {
		return str.S, nil
	}
	return "", fmt.Errorf("expected string, got %T (%s)", s, s.SexpString(nil))
}

// toKeywordString accepts a keyword (:stl) or a plain string ("stl").
func toKeywordString(s zygo.Sexp) (string, error) {
	str, ok := s.(*zygo.SexpStr)
	if !ok {
		return "", fmt.Errorf("expected keyword or string, got %T (%s)", s, s.SexpString(nil))
	}
	return strings.TrimPrefix(str.S, kwPrefix), nil
}

// toBool treats a bare flag (SexpNull) as true.
func toBool(s zygo.Sexp) (bool, error) {
	switch v := s.(type) {
	case *zygo.SexpBool:
		return v.Val, nil
	case *zygo.SexpSentinel:
		if v == zygo.SexpNull {
			return true, nil
		}
	}
	return false, fmt.Errorf("expected boolean, got %T (%s)", s, s.SexpString(nil))
}

// toLocation reads either `b i` integers or a single point.
func toLocation(args []zygo.Sexp) (centerline.Location, *v3.Vec, error) {
	switch len(args) {
	case 1:
		if p, ok := args[0].(*sexpPoint); ok {
			at := p.p
			return centerline.Location{}, &at, nil
		}
		return centerline.Location{}, nil, fmt.Errorf("expected (point x y z), got %s", args[0].SexpString(nil))
	case 2:
		b, err := toInt(args[0])
		if err != nil {
			return centerline.Location{}, nil, fmt.Errorf("branch: %w", err)
		}
		i, err := toInt(args[1])
		if err != nil {
			return centerline.Location{}, nil, fmt.Errorf("index: %w", err)
		}
		return centerline.Location{Branch: b, Index: i}, nil, nil
	}
	return centerline.Location{}, nil, fmt.Errorf("expected branch and index or a point, got %d arguments", len(args))
}

// ---------------------------------------------------------------------------
// Builtin registration
// ---------------------------------------------------------------------------

// builtin is the signature zygomys expects for Go functions.
type builtin = func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error)

// markerBuiltin records a placement of role.
func markerBuiltin(s *Session, role marker.Role) builtin {
	return func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		loc, at, err := toLocation(args)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("%s: %w", name, err)
		}
		s.Placements = append(s.Placements, Placement{Role: role, Loc: loc, At: at})
		return zygo.SexpNull, nil
	}
}

// registerBuiltins installs the session builtins into a zygomys environment.
// Each builtin records into s as it runs, so a script can use def, loops and
// arithmetic to compute locations.
//
// Source code must be preprocessed with preprocessSource() before evaluation so
// that :keyword and kebab-case tokens are recognizable.
func registerBuiltins(env *zygo.Zlisp, s *Session) {

	// (patient "p042")
	env.AddFunction("patient", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 1 {
			return zygo.SexpNull, fmt.Errorf("patient: expected 1 argument, got %d", len(args))
		}
		id, err := toString(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("patient: %w", err)
		}
		s.Patient = id
		return &zygo.SexpStr{S: id}, nil
	})

	// (point x y z) names a world position snapped to the nearest sample.
	env.AddFunction("point", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 3 {
			return zygo.SexpNull, fmt.Errorf("point: expected 3 coordinates, got %d", len(args))
		}
		var c [3]float64
		for i, a := range args {
			f, err := toFloat64(a)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("point: %w", err)
			}
			c[i] = f
		}
		return &sexpPoint{p: v3.Vec{X: c[0], Y: c[1], Z: c[2]}}, nil
	})

	// (inlet 0 15) (outlet 1 40) (cut 0 90) (bound 0 20) (exclude 2 10)
	// Each also accepts a single (point x y z).
	for _, role := range []marker.Role{marker.RoleInlet, marker.RoleOutlet, marker.RoleCut, marker.RoleBound, marker.RoleExclude} {
		env.AddFunction(role.String(), markerBuiltin(s, role))
	}

	// (landmark "Aortic arch" 0 120)
	env.AddFunction("landmark", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) < 2 {
			return zygo.SexpNull, fmt.Errorf("landmark: expected a name and a location")
		}
		lm, err := toString(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("landmark: name: %w", err)
		}
		loc, at, err := toLocation(args[1:])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("landmark %q: %w", lm, err)
		}
		s.Landmarks = append(s.Landmarks, LandmarkSpec{Name: lm, Loc: loc, At: at})
		return zygo.SexpNull, nil
	})

	// (height 1.78) in metres
	env.AddFunction("height", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 1 {
			return zygo.SexpNull, fmt.Errorf("height: expected 1 argument, got %d", len(args))
		}
		h, err := toFloat64(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("height: %w", err)
		}
		if h <= 0 {
			return zygo.SexpNull, fmt.Errorf("height: must be positive, got %g", h)
		}
		s.Height = h
		return zygo.SexpNull, nil
	})

	// (suggest)
	env.AddFunction("suggest", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		s.Suggest = true
		return zygo.SexpNull, nil
	})

	// (max-diameter)
	env.AddFunction("max_diameter", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		s.MaxDiameter = true
		return zygo.SexpNull, nil
	})

	// (capping :format :obj :closed true)
	env.AddFunction("capping", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		spec := &CapSpec{Format: "stl"}
		if v, ok := pa.kw["format"]; ok {
			f, err := toKeywordString(v)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("capping: format: %w", err)
			}
			if f != "stl" && f != "obj" {
				return zygo.SexpNull, fmt.Errorf("capping: format %q, expected stl or obj", f)
			}
			spec.Format = f
		}
		if v, ok := pa.kw["closed"]; ok {
			b, err := toBool(v)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("capping: closed: %w", err)
			}
			spec.Closed = b
		}
		s.Cap = spec
		return zygo.SexpNull, nil
	})

	// (measure)
	env.AddFunction("measure", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		s.Measure = true
		return zygo.SexpNull, nil
	})
}
