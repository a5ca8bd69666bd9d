package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/chazu/xylem"
	"github.com/chazu/xylem/pkg/engine"
	"github.com/chazu/xylem/pkg/marker"
	"github.com/chazu/xylem/pkg/mesh"
)

type patientFlags struct {
	id         string
	centerline string
	lumen      string
	out        string
}

func (f *patientFlags) register(cmd *cobra.Command, lumenRequired bool) {
	cmd.Flags().StringVar(&f.id, "id", "", "patient id (default: centerline file name)")
	cmd.Flags().StringVarP(&f.centerline, "centerline", "c", "", "centerline file (.vtp or .json)")
	cmd.Flags().StringVarP(&f.lumen, "lumen", "l", "", "lumen surface (.stl or .obj)")
	cmd.Flags().StringVarP(&f.out, "out", "o", "", "output directory")
	cmd.MarkFlagRequired("centerline")
	if lumenRequired {
		cmd.MarkFlagRequired("lumen")
	}
}

func (f *patientFlags) load() (*xylem.App, error) {
	app, _, err := loadPatient(patientID(f.id, f.centerline), f.centerline, f.lumen)
	return app, err
}

var runFlags patientFlags

var runCmd = &cobra.Command{
	Use:   "run <script.xylem>",
	Short: "Run a session script against a patient",
	Long: `Evaluate a session script that places markers and landmarks, asks for
capping and measurements, and write the results to the output directory.`,
	Args: cobra.ExactArgs(1),
	RunE: runRun,
}

func init() {
	runFlags.register(runCmd, false)
	rootCmd.AddCommand(runCmd)
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func runRun(cmd *cobra.Command, args []string) error {
	src, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}
	app, err := runFlags.load()
	if err != nil {
		return err
	}
	ctx, stop := signalContext()
	defer stop()
	res, err := app.Run(ctx, string(src), runFlags.out)
	var se *xylem.ScriptError
	if errors.As(err, &se) {
		for _, e := range se.Errors {
			fmt.Fprintf(os.Stderr, "%s: %s\n", args[0], e.Error())
		}
		return errors.New("script failed")
	}
	if err != nil {
		return err
	}
	return printResult(res)
}

func printResult(res *xylem.RunResult) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}

var (
	capFlags   patientFlags
	capInlet   string
	capOutlets []string
	capCuts    []string
	capSuggest bool
	capFormat  string
	capClosed  bool
)

var capCmd = &cobra.Command{
	Use:   "cap",
	Short: "Cut and close a lumen at inlet, outlet and cut markers",
	Args:  cobra.NoArgs,
	RunE:  runCap,
}

func init() {
	capFlags.register(capCmd, true)
	capCmd.Flags().StringVar(&capInlet, "inlet", "", "inlet marker as branch,index")
	capCmd.Flags().StringArrayVar(&capOutlets, "outlet", nil, "outlet marker as branch,index (repeatable)")
	capCmd.Flags().StringArrayVar(&capCuts, "cut", nil, "cut marker as branch,index (repeatable)")
	capCmd.Flags().BoolVar(&capSuggest, "suggest", false, "start from the suggested inlet and outlets")
	capCmd.Flags().StringVar(&capFormat, "format", string(mesh.FormatSTL), "output format (stl or obj)")
	capCmd.Flags().BoolVar(&capClosed, "closed", false, "also write the watertight lumen")
	rootCmd.AddCommand(capCmd)
}

func runCap(cmd *cobra.Command, args []string) error {
	format, err := mesh.FormatOf("lumen." + capFormat)
	if err != nil {
		return err
	}
	s := &engine.Session{Suggest: capSuggest, Cap: &engine.CapSpec{Format: string(format), Closed: capClosed}}
	if capInlet != "" {
		loc, err := parseLocation(capInlet)
		if err != nil {
			return err
		}
		s.Placements = append(s.Placements, engine.Placement{Role: marker.RoleInlet, Loc: loc})
	}
	for _, group := range []struct {
		role marker.Role
		vals []string
	}{{marker.RoleOutlet, capOutlets}, {marker.RoleCut, capCuts}} {
		locs, err := parseLocations(group.vals)
		if err != nil {
			return err
		}
		for _, loc := range locs {
			s.Placements = append(s.Placements, engine.Placement{Role: group.role, Loc: loc})
		}
	}
	return runSession(&capFlags, s)
}

var (
	measureFlags    patientFlags
	measureBounds   []string
	measureExcludes []string
	measureHeight   float64
)

var measureCmd = &cobra.Command{
	Use:   "measure",
	Short: "Measure volume and wall area between two bounds",
	Args:  cobra.NoArgs,
	RunE:  runMeasure,
}

func init() {
	measureFlags.register(measureCmd, true)
	measureCmd.Flags().StringArrayVar(&measureBounds, "bound", nil, "bound as branch,index (exactly two)")
	measureCmd.Flags().StringArrayVar(&measureExcludes, "exclude", nil, "excluded side branch location as branch,index (repeatable)")
	measureCmd.Flags().Float64Var(&measureHeight, "height", 0, "patient height in metres, for the aortic height index")
	rootCmd.AddCommand(measureCmd)
}

func runMeasure(cmd *cobra.Command, args []string) error {
	bounds, err := parseLocations(measureBounds)
	if err != nil {
		return err
	}
	excludes, err := parseLocations(measureExcludes)
	if err != nil {
		return err
	}
	if measureHeight < 0 {
		return fmt.Errorf("height must not be negative")
	}
	s := &engine.Session{Measure: true, MaxDiameter: true, Height: measureHeight}
	for _, loc := range bounds {
		s.Placements = append(s.Placements, engine.Placement{Role: marker.RoleBound, Loc: loc})
	}
	for _, loc := range excludes {
		s.Placements = append(s.Placements, engine.Placement{Role: marker.RoleExclude, Loc: loc})
	}
	return runSession(&measureFlags, s)
}

func runSession(f *patientFlags, s *engine.Session) error {
	app, err := f.load()
	if err != nil {
		return err
	}
	ctx, stop := signalContext()
	defer stop()
	res, err := app.RunSession(ctx, s, f.out)
	if err != nil {
		return err
	}
	return printResult(res)
}

var reloadFlags patientFlags

var reloadCmd = &cobra.Command{
	Use:   "reload <metrics.csv>",
	Short: "Recompute a saved metrics CSV against a patient",
	Long: `Read a metrics CSV written by run or measure, recompute its landmark
diameters from the centerline and, when it holds a volume, measure the
segment between its stored bounds on the lumen again.`,
	Args: cobra.ExactArgs(1),
	RunE: runReload,
}

func init() {
	reloadFlags.register(reloadCmd, false)
	rootCmd.AddCommand(reloadCmd)
}

func runReload(cmd *cobra.Command, args []string) error {
	app, err := reloadFlags.load()
	if err != nil {
		return err
	}
	ctx, stop := signalContext()
	defer stop()
	res, err := app.Reload(ctx, args[0], reloadFlags.out)
	if err != nil {
		return err
	}
	return printResult(res)
}
