package main

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/chazu/xylem"
	"github.com/chazu/xylem/internal/config"
	"github.com/chazu/xylem/pkg/centerline"
)

var (
	cfg      config.Config
	logLevel string
)

var rootCmd = &cobra.Command{
	Use:   "xylem",
	Short: "Vessel centerline capping and measurement",
	Long: `xylem reconstructs a branch tree from vessel centerlines, places capping
and measurement markers on it, cuts and closes the lumen surface at those
markers and reports diameters, volumes and surface areas.`,
	Version:       "0.3.0",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg = config.Load()
		if logLevel != "" {
			cfg.LogLevel = logLevel
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("config: %w", err)
		}
		level, _ := cfg.Level()
		xylem.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error); overrides XYLEM_LOG_LEVEL")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadPatient creates an App and loads a centerline and optional lumen.
func loadPatient(id, centerlinePath, lumenPath string) (*xylem.App, *xylem.Patient, error) {
	app := xylem.NewApp(cfg)
	p, err := app.Load(id, centerlinePath, lumenPath)
	if err != nil {
		return nil, nil, err
	}
	return app, p, nil
}

// parseLocation reads "branch,index".
func parseLocation(s string) (centerline.Location, error) {
	b, i, ok := strings.Cut(s, ",")
	if !ok {
		return centerline.Location{}, fmt.Errorf("location %q: want branch,index", s)
	}
	branch, err := strconv.Atoi(strings.TrimSpace(b))
	if err != nil {
		return centerline.Location{}, fmt.Errorf("location %q: %w", s, err)
	}
	index, err := strconv.Atoi(strings.TrimSpace(i))
	if err != nil {
		return centerline.Location{}, fmt.Errorf("location %q: %w", s, err)
	}
	return centerline.Location{Branch: branch, Index: index}, nil
}

func parseLocations(ss []string) ([]centerline.Location, error) {
	locs := make([]centerline.Location, 0, len(ss))
	for _, s := range ss {
		loc, err := parseLocation(s)
		if err != nil {
			return nil, err
		}
		locs = append(locs, loc)
	}
	return locs, nil
}

// patientID defaults to the centerline file name without extension.
func patientID(id, centerlinePath string) string {
	if id != "" {
		return id
	}
	base := centerlinePath[strings.LastIndexAny(centerlinePath, `/\`)+1:]
	if dot := strings.LastIndex(base, "."); dot > 0 {
		base = base[:dot]
	}
	return base
}
