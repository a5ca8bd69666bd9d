package metrics

import (
	"bytes"
	"errors"
	"math"
	"strings"
	"testing"

	v3 "github.com/deadsy/sdfx/vec/v3"

	"github.com/chazu/xylem/pkg/centerline"
	"github.com/chazu/xylem/pkg/clip"
	"github.com/chazu/xylem/pkg/marker"
	"github.com/chazu/xylem/pkg/mesh"
	"github.com/chazu/xylem/pkg/surface"
)

func loc(b, i int) centerline.Location { return centerline.Location{Branch: b, Index: i} }

func straightTree(t *testing.T) *centerline.Tree {
	t.Helper()
	opts := centerline.DefaultOptions()
	opts.EndCutoff = 0
	tree, err := centerline.NewBuilder(opts).Build([]centerline.RawPath{centerline.StraightPath(100, 1, 5)})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return tree
}

// bifurcation has a 109 sample root and a 49 sample child splitting at 60.
func bifurcation(t *testing.T) *centerline.Tree {
	t.Helper()
	tree, err := centerline.NewBuilder(centerline.DefaultOptions()).Build(
		centerline.BifurcationPaths(60, 50, 1, 0.5, 6, 4))
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return tree
}

func near(got, want, relTol float64) bool {
	return math.Abs(got-want) <= relTol*math.Abs(want)
}

func TestMaxDiameter(t *testing.T) {
	at, d := MaxDiameter(straightTree(t))
	if at != loc(0, 0) || d != 10 {
		t.Errorf("straight: MaxDiameter = (%s) %f, want first sample 10", at, d)
	}
	at, d = MaxDiameter(bifurcation(t))
	if at != loc(0, 0) || d != 12 {
		t.Errorf("tapered: MaxDiameter = (%s) %f, want (0, 0) 12", at, d)
	}
}

func TestDiameterAtAndAHI(t *testing.T) {
	tree := straightTree(t)
	if d, err := DiameterAt(tree, loc(0, 40)); err != nil || d != 10 {
		t.Errorf("DiameterAt = %f, %v", d, err)
	}
	if _, err := DiameterAt(tree, loc(3, 0)); !errors.Is(err, centerline.ErrInvalidLocation) {
		t.Errorf("invalid location err = %v", err)
	}
	if _, err := AHI(40, 0); !errors.Is(err, ErrMissingHeight) {
		t.Errorf("AHI without height err = %v", err)
	}
	if v, err := AHI(40, 2); err != nil || v != 20 {
		t.Errorf("AHI(40, 2) = %f, %v", v, err)
	}
}

func TestStepping(t *testing.T) {
	tree := bifurcation(t)
	forward := []struct {
		from, want centerline.Location
		ok         bool
	}{
		{loc(1, 5), loc(1, 4), true},
		{loc(1, 1), loc(0, 60), true},
		{loc(1, 0), loc(0, 60), true},
		{loc(0, 2), loc(0, 1), true},
		{loc(0, 1), loc(0, 1), false},
	}
	for _, tt := range forward {
		got, ok := StepForward(tree, tt.from)
		if got != tt.want || ok != tt.ok {
			t.Errorf("StepForward(%s) = (%s) %v, want (%s) %v", tt.from, got, ok, tt.want, tt.ok)
		}
	}

	backward := []struct {
		from   centerline.Location
		follow int
		want   centerline.Location
		ok     bool
	}{
		{loc(0, 60), 1, loc(1, 0), true},
		{loc(1, 0), centerline.NoParent, loc(1, 1), true},
		{loc(0, 60), centerline.NoParent, loc(0, 61), true},
		{loc(0, 59), 1, loc(0, 60), true},
		{loc(0, 108), centerline.NoParent, loc(0, 108), false},
	}
	for _, tt := range backward {
		got, ok := StepBackward(tree, tt.from, tt.follow)
		if got != tt.want || ok != tt.ok {
			t.Errorf("StepBackward(%s, %d) = (%s) %v, want (%s) %v", tt.from, tt.follow, got, ok, tt.want, tt.ok)
		}
	}
}

func TestLandmarks(t *testing.T) {
	tree := straightTree(t)
	var lms Landmarks
	if err := lms.Set(tree, Predefined[0], loc(0, 10)); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := lms.Set(tree, Predefined[0], loc(0, 12)); !errors.Is(err, ErrLandmarkExists) {
		t.Errorf("second Set err = %v", err)
	}
	if err := lms.Set(tree, "custom", loc(0, 50)); err != nil {
		t.Fatalf("Set custom: %v", err)
	}
	if err := lms.Set(tree, "bad", loc(0, 500)); !errors.Is(err, centerline.ErrInvalidLocation) {
		t.Errorf("invalid Set err = %v", err)
	}
	if n := len(lms.Unset()); n != len(Predefined)-1 {
		t.Errorf("Unset() = %d names", n)
	}

	if _, err := lms.RemoveAt(tree, marker.Miss); !errors.Is(err, marker.ErrPickMiss) {
		t.Errorf("RemoveAt(miss) err = %v", err)
	}
	if _, err := lms.RemoveAt(tree, marker.Hit(v3.Vec{X: 30})); !errors.Is(err, ErrUnknownLandmark) {
		t.Errorf("far RemoveAt err = %v", err)
	}
	name, err := lms.RemoveAt(tree, marker.Hit(v3.Vec{X: 52, Y: 2}))
	if err != nil || name != "custom" {
		t.Errorf("RemoveAt = %q, %v", name, err)
	}
	if err := lms.Remove("custom"); !errors.Is(err, ErrUnknownLandmark) {
		t.Errorf("Remove(removed) err = %v", err)
	}
	if err := lms.Remove(Predefined[0]); err != nil || lms.Len() != 0 {
		t.Errorf("Remove = %v, %d left", err, lms.Len())
	}
}

func TestNeedsBranchDecision(t *testing.T) {
	b := clip.NewBuilder(bifurcation(t), clip.DefaultOptions())
	tests := []struct {
		name string
		x, y centerline.Location
		want bool
	}{
		{"trunk only", loc(0, 20), loc(0, 50), false},
		{"spans the split", loc(0, 80), loc(0, 20), true},
		{"across branches", loc(0, 30), loc(1, 20), true},
		{"past the split", loc(0, 70), loc(0, 100), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NeedsBranchDecision(b, tt.x, tt.y); got != tt.want {
				t.Errorf("NeedsBranchDecision = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMeasureStraightTube(t *testing.T) {
	tree := straightTree(t)
	br := tree.Branch(0)
	tube := mesh.Tube(br.Points, br.Radii, 64)
	b := clip.NewBuilder(tree, clip.DefaultOptions())

	m, err := Measure(b, tube, loc(0, 80), loc(0, 20), nil, surface.DefaultOptions())
	if err != nil {
		t.Fatalf("Measure: %v", err)
	}
	if m.Left != loc(0, 20) || m.Right != loc(0, 80) {
		t.Errorf("bounds = (%s) (%s), want left 20", m.Left, m.Right)
	}
	disc := math.Pi * 25
	if !near(m.Volume, disc*60, 0.01) {
		t.Errorf("Volume = %f, want ~%f", m.Volume, disc*60)
	}
	if len(m.Segment.Patches) != 2 {
		t.Fatalf("got %d cap patches, want 2", len(m.Segment.Patches))
	}
	for i, p := range m.Segment.Patches {
		if p.Anchor != i || !near(p.Area, disc, 0.01) {
			t.Errorf("patch %d: anchor %d area %f, want ~%f", i, p.Anchor, p.Area, disc)
		}
	}
	if m.Surface <= 0 || m.Surface >= tube.Area() {
		t.Errorf("Surface = %f, tube area %f", m.Surface, tube.Area())
	}
	if want := 2 * math.Pi * 5 * 60; !near(m.Surface, want, 0.01) {
		t.Errorf("Surface = %f, want ~%f", m.Surface, want)
	}
}

func TestRecordCSV(t *testing.T) {
	tree := straightTree(t)
	var lms Landmarks
	if err := lms.Set(tree, "Aortic arch", loc(0, 30)); err != nil {
		t.Fatal(err)
	}
	meas := &Measurement{Left: loc(0, 20), Right: loc(0, 80), Exclusions: []centerline.Location{loc(0, 50)}, Volume: 4700.5, Surface: 1880.25}
	rec, err := Compose(tree, lms.List(), 1.75, meas)
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}
	if !near(rec.AHI, 10/1.75, 1e-12) {
		t.Errorf("AHI = %f", rec.AHI)
	}

	var buf bytes.Buffer
	if err := rec.WriteCSV(&buf); err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if !strings.HasPrefix(lines[0], ",Landmark,Position,Centerline Index,Diameter (mm),Patient Height") {
		t.Errorf("header = %q", lines[0])
	}
	if len(lines) != 3 || !strings.Contains(lines[2], MaxDiameterName) {
		t.Errorf("rows = %q", lines)
	}

	got, err := ReadCSV(&buf)
	if err != nil {
		t.Fatalf("ReadCSV: %v", err)
	}
	if got.Height != 1.75 || !got.HasVolume || got.Volume != 4700.5 || got.Surface != 1880.25 {
		t.Errorf("scalars = %+v", got)
	}
	if len(got.Bounds) != 2 || got.Bounds[1] != loc(0, 80) || len(got.Exclusions) != 1 || got.Exclusions[0] != loc(0, 50) {
		t.Errorf("bounds = %v exclusions = %v", got.Bounds, got.Exclusions)
	}
	if len(got.Rows) != 1 || got.Rows[0].Loc != loc(0, 30) || got.MaxDiameter == nil {
		t.Fatalf("rows = %+v max = %v", got.Rows, got.MaxDiameter)
	}

	reloaded, err := Reload(tree, got)
	if err != nil {
		t.Fatalf("Reload: %v", err)
	}
	if reloaded.Rows[0].Diameter != 10 || reloaded.Rows[0].Position != (v3.Vec{X: 30}) {
		t.Errorf("reloaded row = %+v", reloaded.Rows[0])
	}
}

func TestRemeasure(t *testing.T) {
	tree := straightTree(t)
	br := tree.Branch(0)
	tube := mesh.Tube(br.Points, br.Radii, 64)
	b := clip.NewBuilder(tree, clip.DefaultOptions())

	stored := &Record{
		Rows:      []Row{{Name: "Aortic arch", Loc: loc(0, 30)}},
		HasVolume: true,
		Volume:    1,
		Surface:   1,
		Bounds:    []centerline.Location{loc(0, 20), loc(0, 70)},
	}
	rec, err := Remeasure(b, tube, stored, surface.DefaultOptions())
	if err != nil {
		t.Fatalf("Remeasure: %v", err)
	}
	if want := math.Pi * 25 * 50; !near(rec.Volume, want, 0.01) {
		t.Errorf("volume = %f, want ~%f", rec.Volume, want)
	}
	if rec.Surface <= 1 || rec.Rows[0].Diameter != 10 || rec.MaxDiameter != nil {
		t.Errorf("record = %+v", rec)
	}

	stored.Bounds = stored.Bounds[:1]
	if _, err := Remeasure(b, tube, stored, surface.DefaultOptions()); !errors.Is(err, ErrNeedTwoBounds) {
		t.Errorf("one stored bound err = %v", err)
	}

	stored.HasVolume = false
	rec, err = Remeasure(b, nil, stored, surface.DefaultOptions())
	if err != nil || rec.HasVolume || rec.Rows[0].Position != (v3.Vec{X: 30}) {
		t.Errorf("without volume: %+v, %v", rec, err)
	}
}

func TestParseLocations(t *testing.T) {
	got := ParseLocations("[0, 20] [3,7]  junk [1, x]")
	if len(got) != 2 || got[0] != loc(0, 20) || got[1] != loc(3, 7) {
		t.Errorf("ParseLocations = %v", got)
	}
}

func TestWriteHTML(t *testing.T) {
	tree := straightTree(t)
	rec, err := Compose(tree, []Landmark{{Name: "Aortic arch", Loc: loc(0, 30)}}, 0, nil)
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}
	var buf bytes.Buffer
	if err := rec.WriteHTML(&buf, "Patient 7"); err != nil {
		t.Fatalf("WriteHTML: %v", err)
	}
	html := buf.String()
	for _, want := range []string{"<h1>Patient 7</h1>", "<table>", "<td>Aortic arch</td>", MaxDiameterName} {
		if !strings.Contains(html, want) {
			t.Errorf("report lacks %q:\n%s", want, html)
		}
	}
}
