// Package xylem ties the centerline, marker, capping and metrics packages
// into one patient workflow: load a centerline and a lumen surface, run a
// session script against them, and write the capped surfaces and metrics.
package xylem

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	v3 "github.com/deadsy/sdfx/vec/v3"
	"github.com/google/uuid"

	"github.com/chazu/xylem/internal/config"
	"github.com/chazu/xylem/pkg/centerline"
	"github.com/chazu/xylem/pkg/clip"
	"github.com/chazu/xylem/pkg/engine"
	"github.com/chazu/xylem/pkg/logging"
	"github.com/chazu/xylem/pkg/marker"
	"github.com/chazu/xylem/pkg/mesh"
	"github.com/chazu/xylem/pkg/metrics"
	"github.com/chazu/xylem/pkg/surface"
)

var (
	// ErrNoPatient is returned by operations that need a loaded patient.
	ErrNoPatient = errors.New("xylem: no patient loaded")
	// ErrNoLumen is returned when capping or measuring without a surface.
	ErrNoLumen = errors.New("xylem: patient has no lumen surface")
	// ErrPatientMismatch is returned when a script names another patient.
	ErrPatientMismatch = errors.New("xylem: script is for a different patient")
)

// SetLogger installs the logger used by every xylem package. Passing nil
// restores the silent default.
func SetLogger(l *slog.Logger) { logging.SetLogger(l) }

// ScriptError carries the evaluation errors of a session script.
type ScriptError struct {
	Errors []engine.EvalError
}

func (e *ScriptError) Error() string {
	msgs := make([]string, len(e.Errors))
	for i, ee := range e.Errors {
		msgs[i] = ee.Error()
	}
	return "xylem: script: " + strings.Join(msgs, "; ")
}

// Patient is a loaded centerline tree and its optional lumen surface.
type Patient struct {
	ID      string
	Tree    *centerline.Tree
	Locator *centerline.Locator
	Lumen   *mesh.Mesh
}

// App owns the loaded patient. All methods serialize on one lock, so a
// patient is never rebuilt while a run reads it.
type App struct {
	mu      sync.Mutex
	cfg     config.Config
	engine  *engine.Engine
	patient *Patient
}

// NewApp creates an App with the given configuration.
func NewApp(cfg config.Config) *App {
	eng := engine.NewEngine()
	eng.SetTimeout(cfg.EvalTimeout)
	return &App{cfg: cfg, engine: eng}
}

// Config returns the configuration the App was created with.
func (a *App) Config() config.Config { return a.cfg }

// Load reads a centerline (.vtp or .json) and an optional lumen surface
// (.stl or .obj; empty to skip) and makes them the current patient.
func (a *App) Load(id, centerlinePath, lumenPath string) (*Patient, error) {
	tree, err := centerline.Load(centerlinePath, a.cfg.RadiusArray, a.cfg.CenterlineOptions())
	if err != nil {
		return nil, err
	}
	var lumen *mesh.Mesh
	if lumenPath != "" {
		if lumen, err = mesh.ReadFile(lumenPath); err != nil {
			return nil, err
		}
	}
	return a.Use(id, tree, lumen), nil
}

// Use makes an already built tree and lumen the current patient.
func (a *App) Use(id string, tree *centerline.Tree, lumen *mesh.Mesh) *Patient {
	p := &Patient{ID: id, Tree: tree, Locator: centerline.NewLocator(tree), Lumen: lumen}
	a.mu.Lock()
	a.patient = p
	a.mu.Unlock()
	faces := 0
	if lumen != nil {
		faces = lumen.NumFaces()
	}
	logging.Logger().Info("patient loaded", "id", id, "branches", tree.Len(), "dropped", len(tree.Dropped), "faces", faces)
	return p
}

// Patient returns the current patient, or nil.
func (a *App) Patient() *Patient {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.patient
}

func (a *App) current() (*Patient, error) {
	if a.patient == nil {
		return nil, ErrNoPatient
	}
	return a.patient, nil
}

// Locate returns the centerline sample nearest to p.
func (a *App) Locate(p v3.Vec) (centerline.Location, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	pt, err := a.current()
	if err != nil {
		return centerline.Location{}, err
	}
	loc, ok := pt.Locator.Nearest(p)
	if !ok {
		return centerline.Location{}, marker.ErrPickMiss
	}
	return loc, nil
}

// DiameterAt returns the diameter at loc.
func (a *App) DiameterAt(loc centerline.Location) (float64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	pt, err := a.current()
	if err != nil {
		return 0, err
	}
	return metrics.DiameterAt(pt.Tree, loc)
}

// MaxDiameter returns the location and value of the largest diameter.
func (a *App) MaxDiameter() (centerline.Location, float64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	pt, err := a.current()
	if err != nil {
		return centerline.Location{}, 0, err
	}
	loc, d := metrics.MaxDiameter(pt.Tree)
	return loc, d, nil
}

// CapSummary describes a capping result.
type CapSummary struct {
	Patches int                  `json:"patches"`
	Volume  float64              `json:"volume"`
	Area    float64              `json:"area"`
	Files   *surface.OutputFiles `json:"files,omitempty"`
}

// RunResult is the outcome of one session run.
type RunResult struct {
	ID          string          `json:"id"`
	Patient     string          `json:"patient"`
	Session     *engine.Session `json:"session"`
	Markers     []marker.Marker `json:"markers"`
	Cap         *CapSummary     `json:"cap,omitempty"`
	Record      *metrics.Record `json:"record,omitempty"`
	MetricsFile string          `json:"metrics_file,omitempty"`
	ReportFile  string          `json:"report_file,omitempty"`
}

// Run evaluates a session script and runs it. Script errors are returned
// as *ScriptError.
func (a *App) Run(ctx context.Context, source, outDir string) (*RunResult, error) {
	s, evalErrs, err := a.engine.Evaluate(source)
	if err != nil {
		return nil, fmt.Errorf("xylem: %w", err)
	}
	if len(evalErrs) > 0 {
		return nil, &ScriptError{Errors: evalErrs}
	}
	return a.RunSession(ctx, s, outDir)
}

// RunSession applies a session to the current patient. When outDir is not
// empty, capping outputs, the metrics CSV and the HTML report are written
// there.
func (a *App) RunSession(ctx context.Context, s *engine.Session, outDir string) (*RunResult, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	pt, err := a.current()
	if err != nil {
		return nil, err
	}
	if s.Patient != "" && s.Patient != pt.ID {
		return nil, fmt.Errorf("%w: %q, loaded %q", ErrPatientMismatch, s.Patient, pt.ID)
	}

	res := &RunResult{ID: uuid.NewString(), Patient: pt.ID, Session: s}
	log := logging.Logger().With("run", res.ID, "patient", pt.ID)

	set, err := s.Markers(marker.NewSet(pt.Locator, a.cfg.MarkerOptions()))
	if err != nil {
		return nil, err
	}
	res.Markers = set.Markers()
	lms, err := s.ResolveLandmarks(pt.Locator)
	if err != nil {
		return nil, err
	}

	builder := clip.NewBuilder(pt.Tree, a.cfg.ClipOptions())
	if s.Cap != nil {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if res.Cap, err = a.capping(builder, pt, set, s.Cap, outDir); err != nil {
			return nil, err
		}
	}

	var meas *metrics.Measurement
	if s.Measure {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if pt.Lumen == nil {
			return nil, ErrNoLumen
		}
		x, y, excl, err := engine.Bounds(set)
		if err != nil {
			return nil, err
		}
		if metrics.NeedsBranchDecision(builder, x, y) && len(excl) == 0 {
			log.Warn("side branches leave the measured segment and none are excluded", "x", x.String(), "y", y.String())
		}
		if meas, err = metrics.Measure(builder, pt.Lumen, x, y, excl, a.cfg.SurfaceOptions()); err != nil {
			return nil, err
		}
	}

	if s.MaxDiameter || s.Height > 0 || lms.Len() > 0 || meas != nil {
		rec, err := metrics.Compose(pt.Tree, lms.List(), s.Height, meas)
		if err != nil {
			return nil, err
		}
		if !s.MaxDiameter && s.Height == 0 {
			rec.MaxDiameter = nil
		}
		res.Record = rec
		if outDir != "" {
			if err := a.writeRecord(res, outDir, pt.ID); err != nil {
				return nil, err
			}
		}
	}

	log.Info("session run", "markers", len(res.Markers), "capped", res.Cap != nil, "measured", meas != nil)
	return res, nil
}

// Reload reads a metrics CSV saved for the current patient, recomputes its
// diameters from the tree and, when it holds a volume, measures the segment
// between its bounds on the lumen again. When outDir is not empty the
// refreshed CSV and report are written there.
func (a *App) Reload(ctx context.Context, csvPath, outDir string) (*RunResult, error) {
	f, err := os.Open(csvPath)
	if err != nil {
		return nil, fmt.Errorf("xylem: %w", err)
	}
	stored, err := metrics.ReadCSV(f)
	f.Close()
	if err != nil {
		return nil, err
	}
	return a.ReloadRecord(ctx, stored, outDir)
}

// ReloadRecord is Reload for a record already read from a metrics CSV.
func (a *App) ReloadRecord(ctx context.Context, stored *metrics.Record, outDir string) (*RunResult, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	pt, err := a.current()
	if err != nil {
		return nil, err
	}
	if stored.HasVolume && pt.Lumen == nil {
		return nil, ErrNoLumen
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rec, err := metrics.Remeasure(clip.NewBuilder(pt.Tree, a.cfg.ClipOptions()), pt.Lumen, stored, a.cfg.SurfaceOptions())
	if err != nil {
		return nil, err
	}
	res := &RunResult{ID: uuid.NewString(), Patient: pt.ID, Record: rec}
	if outDir != "" {
		if err := a.writeRecord(res, outDir, pt.ID); err != nil {
			return nil, err
		}
	}
	logging.Logger().Info("metrics reloaded", "run", res.ID, "patient", pt.ID, "measured", rec.HasVolume)
	return res, nil
}

func (a *App) capping(b *clip.Builder, pt *Patient, set marker.Set, spec *engine.CapSpec, outDir string) (*CapSummary, error) {
	if pt.Lumen == nil {
		return nil, ErrNoLumen
	}
	c, err := surface.Cap(b, pt.Lumen, set.Markers(), a.cfg.SurfaceOptions())
	if err != nil {
		return nil, err
	}
	sum := &CapSummary{Patches: len(c.Patches), Volume: c.Closed.Volume(), Area: c.Open.Area()}
	if outDir == "" {
		return sum, nil
	}
	files, err := c.Write(outDir, pt.ID, mesh.Format(spec.Format), spec.Closed)
	if err != nil {
		return nil, err
	}
	sum.Files = &files
	return sum, nil
}

func (a *App) writeRecord(res *RunResult, outDir, id string) error {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("xylem: %w", err)
	}
	csvPath := filepath.Join(outDir, id+"_metrics.csv")
	f, err := os.Create(csvPath)
	if err != nil {
		return fmt.Errorf("xylem: %w", err)
	}
	if err := res.Record.WriteCSV(f); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("xylem: %w", err)
	}

	htmlPath := filepath.Join(outDir, id+"_report.html")
	h, err := os.Create(htmlPath)
	if err != nil {
		return fmt.Errorf("xylem: %w", err)
	}
	if err := res.Record.WriteHTML(h, "Patient "+id); err != nil {
		h.Close()
		return err
	}
	if err := h.Close(); err != nil {
		return fmt.Errorf("xylem: %w", err)
	}
	res.MetricsFile, res.ReportFile = csvPath, htmlPath
	return nil
}
