package xylem

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	v3 "github.com/deadsy/sdfx/vec/v3"

	"github.com/chazu/xylem/internal/config"
	"github.com/chazu/xylem/pkg/centerline"
	"github.com/chazu/xylem/pkg/marker"
	"github.com/chazu/xylem/pkg/mesh"
	"github.com/chazu/xylem/pkg/metrics"
)

func near(got, want, rel float64) bool {
	return math.Abs(got-want) <= rel*math.Abs(want)
}

// straightApp loads a 100 mm straight vessel of radius 5 along +X as
// patient p1, with a 64-sided tube as its lumen.
func straightApp(t *testing.T) *App {
	t.Helper()
	opts := centerline.DefaultOptions()
	opts.EndCutoff = 0
	tree, err := centerline.NewBuilder(opts).Build([]centerline.RawPath{centerline.StraightPath(100, 1, 5)})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	br := tree.Branch(0)
	app := NewApp(config.Load())
	app.Use("p1", tree, mesh.Tube(br.Points, br.Radii, 64))
	return app
}

// TestE2EMeasureExample runs examples/measure.xylem end to end: script,
// markers, capping, volume measurement and the written record.
func TestE2EMeasureExample(t *testing.T) {
	app := straightApp(t)
	source, err := os.ReadFile("examples/measure.xylem")
	if err != nil {
		t.Fatalf("failed to read measure.xylem: %v", err)
	}

	dir := t.TempDir()
	res, err := app.Run(context.Background(), string(source), dir)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.ID == "" || res.Patient != "p1" {
		t.Errorf("result id %q patient %q", res.ID, res.Patient)
	}
	if len(res.Markers) != 4 {
		t.Fatalf("got %d markers, want 4", len(res.Markers))
	}

	disc := math.Pi * 25
	if res.Cap == nil || res.Cap.Patches != 2 {
		t.Fatalf("cap = %+v, want 2 patches", res.Cap)
	}
	if !near(res.Cap.Volume, disc*65, 0.01) {
		t.Errorf("capped volume = %f, want ~%f", res.Cap.Volume, disc*65)
	}
	if res.Cap.Files == nil || res.Cap.Files.Closed == "" || len(res.Cap.Files.Caps) != 2 {
		t.Fatalf("cap files = %+v", res.Cap.Files)
	}
	if _, err := mesh.ReadFile(res.Cap.Files.Closed); err != nil {
		t.Errorf("closed lumen unreadable: %v", err)
	}

	rec := res.Record
	if rec == nil || !rec.HasVolume {
		t.Fatalf("record = %+v", rec)
	}
	if !near(rec.Volume, disc*50, 0.01) {
		t.Errorf("volume = %f, want ~%f", rec.Volume, disc*50)
	}
	if len(rec.Rows) != 2 || rec.Rows[1].Loc != (centerline.Location{Branch: 0, Index: 60}) {
		t.Errorf("rows = %+v", rec.Rows)
	}
	if rec.MaxDiameter == nil || !near(rec.AHI, 10/1.75, 1e-9) {
		t.Errorf("max diameter %+v ahi %f", rec.MaxDiameter, rec.AHI)
	}

	if res.MetricsFile != filepath.Join(dir, "p1_metrics.csv") {
		t.Errorf("metrics file = %q", res.MetricsFile)
	}
	f, err := os.Open(res.MetricsFile)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	back, err := metrics.ReadCSV(f)
	if err != nil {
		t.Fatalf("ReadCSV: %v", err)
	}
	if back.Height != 1.75 || len(back.Bounds) != 2 {
		t.Errorf("reloaded record = %+v", back)
	}
	html, err := os.ReadFile(res.ReportFile)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(html), "Aortic arch") {
		t.Error("report is missing the landmark table")
	}
}

// TestE2EReloadRemeasures saves a measured record, swaps the lumen for a
// narrower one and reloads the CSV: diameters come from the unchanged tree
// while volume and surface are measured on the new lumen.
func TestE2EReloadRemeasures(t *testing.T) {
	app := straightApp(t)
	source, err := os.ReadFile("examples/measure.xylem")
	if err != nil {
		t.Fatalf("failed to read measure.xylem: %v", err)
	}
	res, err := app.Run(context.Background(), string(source), t.TempDir())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	pt := app.Patient()
	br := pt.Tree.Branch(0)
	narrow := make([]float64, br.Len())
	for i := range narrow {
		narrow[i] = 4
	}
	app.Use("p1", pt.Tree, mesh.Tube(br.Points, narrow, 64))

	dir := t.TempDir()
	again, err := app.Reload(context.Background(), res.MetricsFile, dir)
	if err != nil {
		t.Fatalf("Reload: %v", err)
	}
	rec := again.Record
	if rec == nil || !rec.HasVolume {
		t.Fatalf("record = %+v", rec)
	}
	if want := math.Pi * 16 * 50; !near(rec.Volume, want, 0.01) {
		t.Errorf("re-measured volume = %f, want ~%f (stored %f)", rec.Volume, want, res.Record.Volume)
	}
	if rec.Surface >= res.Record.Surface {
		t.Errorf("surface %f should shrink from %f", rec.Surface, res.Record.Surface)
	}
	if len(rec.Bounds) != 2 || rec.Bounds[0] != res.Record.Bounds[0] || rec.Bounds[1] != res.Record.Bounds[1] {
		t.Errorf("bounds = %v, want %v", rec.Bounds, res.Record.Bounds)
	}
	if len(rec.Rows) != 2 || rec.Rows[1].Diameter != 10 || !near(rec.AHI, 10/1.75, 1e-9) {
		t.Errorf("rows %+v ahi %f", rec.Rows, rec.AHI)
	}
	if again.MetricsFile != filepath.Join(dir, "p1_metrics.csv") {
		t.Errorf("metrics file = %q", again.MetricsFile)
	}

	app.Use("p1", pt.Tree, nil)
	if _, err := app.Reload(context.Background(), res.MetricsFile, ""); !errors.Is(err, ErrNoLumen) {
		t.Errorf("reload without lumen err = %v, want ErrNoLumen", err)
	}
	if _, err := app.Reload(context.Background(), filepath.Join(dir, "missing.csv"), ""); err == nil {
		t.Error("expected an error for a missing file")
	}
}

func TestE2ESuggestExample(t *testing.T) {
	app := straightApp(t)
	source, err := os.ReadFile("examples/suggest.xylem")
	if err != nil {
		t.Fatalf("failed to read suggest.xylem: %v", err)
	}
	res, err := app.Run(context.Background(), string(source), "")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(res.Markers) != 2 || res.Markers[0].Role != marker.RoleInlet || res.Markers[1].Role != marker.RoleOutlet {
		t.Errorf("markers = %+v", res.Markers)
	}
	if res.Cap != nil || res.Record == nil || res.Record.HasVolume {
		t.Errorf("cap %+v record %+v", res.Cap, res.Record)
	}
	if res.MetricsFile != "" {
		t.Errorf("no output dir, but wrote %q", res.MetricsFile)
	}
}

func TestE2EEmptySource(t *testing.T) {
	app := straightApp(t)
	for _, source := range []string{"", "   \n\t  ", ";; just a comment\n"} {
		res, err := app.Run(context.Background(), source, t.TempDir())
		if err != nil {
			t.Fatalf("Run(%q): %v", source, err)
		}
		if len(res.Markers) != 0 || res.Cap != nil || res.Record != nil || res.MetricsFile != "" {
			t.Errorf("Run(%q) = %+v, want an empty result", source, res)
		}
	}
}

func TestE2ESyntaxError(t *testing.T) {
	app := straightApp(t)
	_, err := app.Run(context.Background(), "(patient \"p1\")\n(inlet 0 15", "")
	var se *ScriptError
	if !errors.As(err, &se) {
		t.Fatalf("err = %v, want *ScriptError", err)
	}
	if len(se.Errors) == 0 || se.Errors[0].Message == "" {
		t.Errorf("script errors = %+v", se.Errors)
	}
	if !strings.HasPrefix(se.Error(), "xylem: script: ") {
		t.Errorf("Error() = %q", se.Error())
	}
}

func TestE2ESessionErrors(t *testing.T) {
	tests := []struct {
		name   string
		source string
		want   error
	}{
		{"other patient", `(patient "p2")`, ErrPatientMismatch},
		{"marker at the end", `(inlet 0 2)`, marker.ErrPlacementRejected},
		{"two inlets", "(inlet 0 15)\n(inlet 0 30)", marker.ErrDuplicateInlet},
		{"one bound", "(bound 0 20)\n(measure)", metrics.ErrNeedTwoBounds},
		{"duplicate landmark", "(landmark \"Aortic arch\" 0 30)\n(landmark \"Aortic arch\" 0 40)", metrics.ErrLandmarkExists},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := straightApp(t)
			if _, err := app.Run(context.Background(), tt.source, ""); !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestE2ENoPatient(t *testing.T) {
	app := NewApp(config.Load())
	if _, err := app.Run(context.Background(), "(max-diameter)", ""); !errors.Is(err, ErrNoPatient) {
		t.Errorf("Run err = %v", err)
	}
	if _, err := app.Locate(v3.Vec{}); !errors.Is(err, ErrNoPatient) {
		t.Errorf("Locate err = %v", err)
	}
	if _, _, err := app.MaxDiameter(); !errors.Is(err, ErrNoPatient) {
		t.Errorf("MaxDiameter err = %v", err)
	}
	if app.Patient() != nil {
		t.Error("Patient() should be nil")
	}
}

func TestE2ENoLumen(t *testing.T) {
	app := straightApp(t)
	p := app.Patient()
	app.Use(p.ID, p.Tree, nil)
	for _, source := range []string{
		"(inlet 0 15)\n(outlet 0 80)\n(capping)",
		"(bound 0 20)\n(bound 0 70)\n(measure)",
	} {
		if _, err := app.Run(context.Background(), source, ""); !errors.Is(err, ErrNoLumen) {
			t.Errorf("Run(%q) err = %v", source, err)
		}
	}
}

func TestE2ECancelled(t *testing.T) {
	app := straightApp(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := app.Run(ctx, "(inlet 0 15)\n(outlet 0 80)\n(capping)", "")
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestE2ELocateAndDiameter(t *testing.T) {
	app := straightApp(t)
	loc, err := app.Locate(v3.Vec{X: 42.3, Y: 1})
	if err != nil {
		t.Fatalf("Locate: %v", err)
	}
	if loc != (centerline.Location{Branch: 0, Index: 42}) {
		t.Errorf("Locate = %s", loc)
	}
	d, err := app.DiameterAt(loc)
	if err != nil || d != 10 {
		t.Errorf("DiameterAt = %f, %v", d, err)
	}
	if _, err := app.DiameterAt(centerline.Location{Branch: 3}); !errors.Is(err, centerline.ErrInvalidLocation) {
		t.Errorf("DiameterAt invalid err = %v", err)
	}
	if _, d, err := app.MaxDiameter(); err != nil || d != 10 {
		t.Errorf("MaxDiameter = %f, %v", d, err)
	}
}

// TestE2ERapidEvaluationAlternating alternates valid and broken scripts on
// one App and checks each run reports its own outcome.
func TestE2ERapidEvaluationAlternating(t *testing.T) {
	app := straightApp(t)
	sources := []struct {
		source string
		ok     bool
	}{
		{"(inlet 0 15)", true},
		{"(inlet 0 15", false},
		{"", true},
		{"(undefined-func 1 2 3)", false},
		{"(suggest)\n(max-diameter)", true},
		{"(height -1)", false},
		{";; comment", true},
		{"(outlet 0 (+ 40 40))", true},
	}
	for i, tt := range sources {
		func() {
			defer func() {
				if r := recover(); r != nil {
					t.Errorf("iteration %d panicked on %q: %v", i, tt.source, r)
				}
			}()
			_, err := app.Run(context.Background(), tt.source, "")
			if (err == nil) != tt.ok {
				t.Errorf("iteration %d (%q): err = %v, want ok %v", i, tt.source, err, tt.ok)
			}
		}()
	}
}

func TestLoadFromFiles(t *testing.T) {
	dir := t.TempDir()
	clPath := filepath.Join(dir, "centerline.json")
	f, err := os.Create(clPath)
	if err != nil {
		t.Fatal(err)
	}
	if err := centerline.WritePathsJSON(f, centerline.BifurcationPaths(60, 40, 1, 0.5, 5, 3)); err != nil {
		t.Fatal(err)
	}
	f.Close()

	app := NewApp(config.Load())
	p, err := app.Load("p9", clPath, "")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if p.Tree.Len() < 2 || p.Lumen != nil || app.Patient() != p {
		t.Errorf("patient = %+v", p)
	}
	if _, err := app.Load("p9", filepath.Join(dir, "missing.vtp"), ""); err == nil {
		t.Error("expected error for a missing centerline")
	}
}
