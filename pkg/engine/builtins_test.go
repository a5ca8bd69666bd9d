package engine

import (
	"errors"
	"testing"

	v3 "github.com/deadsy/sdfx/vec/v3"
	zygo "github.com/glycerine/zygomys/zygo"

	"github.com/chazu/xylem/pkg/centerline"
	"github.com/chazu/xylem/pkg/marker"
	"github.com/chazu/xylem/pkg/metrics"
)

// ---------------------------------------------------------------------------
// Preprocessing tests
// ---------------------------------------------------------------------------

func TestPreprocessKeywords(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		expect string
	}{
		{
			name:   "simple keyword",
			input:  `(capping :format "obj")`,
			expect: `(capping "__kw_format" "obj")`,
		},
		{
			name:   "multiple keywords",
			input:  `(capping :format :stl :closed true)`,
			expect: `(capping "__kw_format" "__kw_stl" "__kw_closed" true)`,
		},
		{
			name:   "keyword in string preserved",
			input:  `"thing with :keyword inside"`,
			expect: `"thing with :keyword inside"`,
		},
		{
			name:   "escaped quote in string",
			input:  `"say \"max-diameter\"" max-diameter`,
			expect: `"say \"max-diameter\"" max_diameter`,
		},
		{
			name:   "backtick string preserved",
			input:  "`:raw-text`",
			expect: "`:raw-text`",
		},
		{
			name:   "assignment operator preserved",
			input:  `(def x := 10)`,
			expect: `(def x := 10)`,
		},
		{
			name:   "kebab-case identifier",
			input:  `(max-diameter)`,
			expect: `(max_diameter)`,
		},
		{
			name:   "minus operator preserved",
			input:  `(- 10 5)`,
			expect: `(- 10 5)`,
		},
		{
			name:   "negative number preserved",
			input:  `(point x -2 3)`,
			expect: `(point x -2 3)`,
		},
		{
			name:   "comment converted to // style",
			input:  `;; comment with :keyword`,
			expect: `// comment with :keyword`,
		},
		{
			name:   "single semicolon comment",
			input:  "; simple comment\n(measure)",
			expect: "// simple comment\n(measure)",
		},
		{
			name:   "hyphen in keyword preserved",
			input:  `:head-dia`,
			expect: `"__kw_head-dia"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := preprocessSource(tt.input)
			if got != tt.expect {
				t.Errorf("preprocessSource(%q) = %q, want %q", tt.input, got, tt.expect)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// Session builtins
// ---------------------------------------------------------------------------

func TestFullSession(t *testing.T) {
	eng := NewEngine()

	source := `
;; measurement session for one patient
(patient "p007")
(def arch 30)
(inlet 0 15)
(outlet 0 (+ 60 20))
(bound 0 20)
(bound 0 80)
(exclude (point 50 1 0))
(landmark "Aortic arch" 0 arch)
(landmark "Mid-descending aorta" (point 70.2 0 0))
(height 1.75)
(max-diameter)
(capping :format :obj :closed)
(measure)
`
	s, evalErrs, err := eng.Evaluate(source)
	if err != nil {
		t.Fatalf("fatal error: %v", err)
	}
	if len(evalErrs) > 0 {
		t.Fatalf("eval errors: %v", evalErrs)
	}

	if s.Patient != "p007" {
		t.Errorf("patient = %q", s.Patient)
	}
	wantRoles := []marker.Role{marker.RoleInlet, marker.RoleOutlet, marker.RoleBound, marker.RoleBound, marker.RoleExclude}
	if len(s.Placements) != len(wantRoles) {
		t.Fatalf("got %d placements, want %d", len(s.Placements), len(wantRoles))
	}
	for i, role := range wantRoles {
		if s.Placements[i].Role != role {
			t.Errorf("placement %d role = %s, want %s", i, s.Placements[i].Role, role)
		}
	}
	if got := s.Placements[1].Loc; got != (centerline.Location{Branch: 0, Index: 80}) {
		t.Errorf("computed outlet = %s", got)
	}
	if at := s.Placements[4].At; at == nil || *at != (v3.Vec{X: 50, Y: 1}) {
		t.Errorf("exclude point = %v", at)
	}

	if len(s.Landmarks) != 2 || s.Landmarks[0].Loc.Index != 30 || s.Landmarks[1].At == nil {
		t.Errorf("landmarks = %+v", s.Landmarks)
	}
	if s.Height != 1.75 || !s.MaxDiameter || !s.Measure {
		t.Errorf("scalars = %+v", s)
	}
	if s.Cap == nil || s.Cap.Format != "obj" || !s.Cap.Closed {
		t.Errorf("cap = %+v", s.Cap)
	}
}

func TestCappingDefaults(t *testing.T) {
	s, evalErrs, err := NewEngine().Evaluate("(capping)")
	if err != nil || len(evalErrs) > 0 {
		t.Fatalf("Evaluate: %v %v", err, evalErrs)
	}
	if s.Cap == nil || s.Cap.Format != "stl" || s.Cap.Closed {
		t.Errorf("cap = %+v", s.Cap)
	}
}

func TestBuiltinErrors(t *testing.T) {
	tests := []struct {
		name   string
		source string
	}{
		{"missing index", `(inlet 0)`},
		{"fractional index", `(outlet 0 1.5)`},
		{"string branch", `(cut "a" 3)`},
		{"short point", `(bound (point 1 2))`},
		{"landmark without location", `(landmark "Aortic arch")`},
		{"landmark without name", `(landmark 0 3)`},
		{"negative height", `(height -1)`},
		{"height as string", `(height "tall")`},
		{"unknown format", `(capping :format :ply)`},
		{"closed not boolean", `(capping :closed 3)`},
		{"patient as number", `(patient 7)`},
	}

	eng := NewEngine()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, evalErrs, err := eng.Evaluate(tt.source)
			if err != nil {
				t.Fatalf("expected non-fatal eval error, got fatal: %v", err)
			}
			if s != nil {
				t.Errorf("expected nil session, got %+v", s)
			}
			if len(evalErrs) == 0 {
				t.Error("expected eval errors")
			}
		})
	}
}

func TestParseArgs(t *testing.T) {
	pa := parseArgs([]zygo.Sexp{
		&zygo.SexpStr{S: kwPrefix + "format"},
		&zygo.SexpStr{S: kwPrefix + "obj"},
		&zygo.SexpInt{Val: 3},
		&zygo.SexpStr{S: kwPrefix + "closed"},
	})
	if len(pa.positional) != 1 {
		t.Errorf("positional = %d, want 1", len(pa.positional))
	}
	if _, ok := pa.kw["format"]; !ok {
		t.Error("format keyword missing")
	}
	if b, err := toBool(pa.kw["closed"]); err != nil || !b {
		t.Errorf("trailing flag = %v, %v", b, err)
	}
}

// ---------------------------------------------------------------------------
// Applying sessions
// ---------------------------------------------------------------------------

func straightLocator(t *testing.T) *centerline.Locator {
	t.Helper()
	opts := centerline.DefaultOptions()
	opts.EndCutoff = 0
	tree, err := centerline.NewBuilder(opts).Build([]centerline.RawPath{centerline.StraightPath(100, 1, 5)})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return centerline.NewLocator(tree)
}

func TestSessionMarkers(t *testing.T) {
	loc := straightLocator(t)
	s, evalErrs, err := NewEngine().Evaluate(`(suggest) (bound 0 60) (bound (point 30.4 2 0)) (exclude 0 45)`)
	if err != nil || len(evalErrs) > 0 {
		t.Fatalf("Evaluate: %v %v", err, evalErrs)
	}

	set, err := s.Markers(marker.NewSet(loc, marker.DefaultOptions()))
	if err != nil {
		t.Fatalf("Markers: %v", err)
	}
	if in, ok := set.Inlet(); !ok || in.Loc.Index != 15 {
		t.Errorf("inlet = %+v, %v", in, ok)
	}
	if outs := set.ByRole(marker.RoleOutlet); len(outs) != 1 || outs[0].Loc.Index != 80 {
		t.Errorf("outlets = %+v", outs)
	}

	x, y, excl, err := Bounds(set)
	if err != nil {
		t.Fatalf("Bounds: %v", err)
	}
	if x.Index != 60 || y.Index != 30 || len(excl) != 1 || excl[0].Index != 45 {
		t.Errorf("bounds = %s %s %v", x, y, excl)
	}
}

func TestSessionMarkersRejected(t *testing.T) {
	loc := straightLocator(t)
	s := &Session{Placements: []Placement{{Role: marker.RoleCut, Loc: centerline.Location{Branch: 0, Index: 2}}}}
	if _, err := s.Markers(marker.NewSet(loc, marker.DefaultOptions())); !errors.Is(err, marker.ErrPlacementRejected) {
		t.Errorf("err = %v, want ErrPlacementRejected", err)
	}
}

func TestBoundsNeedsTwo(t *testing.T) {
	loc := straightLocator(t)
	s := &Session{Placements: []Placement{{Role: marker.RoleBound, Loc: centerline.Location{Branch: 0, Index: 20}}}}
	set, err := s.Markers(marker.NewSet(loc, marker.DefaultOptions()))
	if err != nil {
		t.Fatalf("Markers: %v", err)
	}
	if _, _, _, err := Bounds(set); !errors.Is(err, metrics.ErrNeedTwoBounds) {
		t.Errorf("err = %v, want ErrNeedTwoBounds", err)
	}
}

func TestResolveLandmarks(t *testing.T) {
	loc := straightLocator(t)
	at := v3.Vec{X: 70.2}
	s := &Session{Landmarks: []LandmarkSpec{
		{Name: "Aortic arch", Loc: centerline.Location{Branch: 0, Index: 30}},
		{Name: "custom", At: &at},
	}}
	lms, err := s.ResolveLandmarks(loc)
	if err != nil {
		t.Fatalf("ResolveLandmarks: %v", err)
	}
	if lm, ok := lms.Get("custom"); !ok || lm.Loc.Index != 70 {
		t.Errorf("custom = %+v, %v", lm, ok)
	}

	s.Landmarks = append(s.Landmarks, LandmarkSpec{Name: "Aortic arch", Loc: centerline.Location{Branch: 0, Index: 40}})
	if _, err := s.ResolveLandmarks(loc); !errors.Is(err, metrics.ErrLandmarkExists) {
		t.Errorf("duplicate err = %v", err)
	}
}
