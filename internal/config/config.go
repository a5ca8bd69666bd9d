package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/chazu/xylem/pkg/centerline"
	"github.com/chazu/xylem/pkg/clip"
	"github.com/chazu/xylem/pkg/kernel/sdfx"
	"github.com/chazu/xylem/pkg/marker"
	"github.com/chazu/xylem/pkg/surface"
)

type Config struct {
	// Centerline reconstruction
	MinBranchLength float64
	BranchCutoff    float64
	SplitTolerance  float64
	RadiusArray     string

	// Marker placement
	EndGuard     int
	RehomeWindow int
	PickRadiusSq float64
	NotifyOnce   bool

	// Clip regions and capping
	SphereStep            int
	VolumeBoundMultiplier float64
	HoleSize              float64
	MeshCells             int

	// Script evaluation
	EvalTimeout time.Duration

	// Server and logging
	Port      string
	OutputDir string
	LogLevel  string
}

func Load() Config {
	cfg := Config{
		MinBranchLength: envFloat("XYLEM_MIN_BRANCH_LENGTH", 20),
		BranchCutoff:    envFloat("XYLEM_BRANCH_CUTOFF", 1),
		SplitTolerance:  envFloat("XYLEM_SPLIT_TOLERANCE", 1e-6),
		RadiusArray:     envOr("XYLEM_RADIUS_ARRAY", centerline.DefaultRadiusArray),

		EndGuard:     envInt("XYLEM_END_GUARD", 4),
		RehomeWindow: envInt("XYLEM_REHOME_WINDOW", 30),
		PickRadiusSq: envFloat("XYLEM_PICK_RADIUS_SQ", 30),
		NotifyOnce:   envBool("XYLEM_NOTIFY_ONCE", true),

		SphereStep:            envInt("XYLEM_SPHERE_STEP", 10),
		VolumeBoundMultiplier: envFloat("XYLEM_VOLUME_BOUND_MULTIPLIER", 1.6),
		HoleSize:              envFloat("XYLEM_HOLE_SIZE", surface.DefaultHoleSize),
		MeshCells:             envInt("XYLEM_MESH_CELLS", 96),

		EvalTimeout: envDuration("XYLEM_EVAL_TIMEOUT", 5*time.Second),

		Port:      envOr("XYLEM_PORT", "8095"),
		OutputDir: os.Getenv("XYLEM_OUTPUT_DIR"),
		LogLevel:  envOr("XYLEM_LOG_LEVEL", "info"),
	}

	if cfg.SphereStep <= 0 {
		cfg.SphereStep = 10
	}
	if cfg.MeshCells <= 0 {
		cfg.MeshCells = 96
	}
	if cfg.EvalTimeout <= 0 {
		cfg.EvalTimeout = 5 * time.Second
	}

	return cfg
}

func (c Config) Validate() error {
	if c.MinBranchLength < 0 {
		return fmt.Errorf("XYLEM_MIN_BRANCH_LENGTH must not be negative")
	}
	if c.BranchCutoff < 0 {
		return fmt.Errorf("XYLEM_BRANCH_CUTOFF must not be negative")
	}
	if c.SplitTolerance <= 0 {
		return fmt.Errorf("XYLEM_SPLIT_TOLERANCE must be positive")
	}
	if c.EndGuard < 0 || c.RehomeWindow < 0 {
		return fmt.Errorf("XYLEM_END_GUARD and XYLEM_REHOME_WINDOW must not be negative")
	}
	if c.PickRadiusSq <= 0 {
		return fmt.Errorf("XYLEM_PICK_RADIUS_SQ must be positive")
	}
	if c.VolumeBoundMultiplier <= 0 {
		return fmt.Errorf("XYLEM_VOLUME_BOUND_MULTIPLIER must be positive")
	}
	if c.HoleSize < 0 {
		return fmt.Errorf("XYLEM_HOLE_SIZE must not be negative")
	}
	if c.RadiusArray == "" {
		return fmt.Errorf("XYLEM_RADIUS_ARRAY must not be empty")
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	return nil
}

// Level parses LogLevel.
func (c Config) Level() (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.ToUpper(c.LogLevel))); err != nil {
		return 0, fmt.Errorf("XYLEM_LOG_LEVEL: %w", err)
	}
	return l, nil
}

func (c Config) CenterlineOptions() centerline.Options {
	return centerline.Options{
		MinBranchLength: c.MinBranchLength,
		EndCutoff:       c.BranchCutoff,
		SplitTolerance:  c.SplitTolerance,
	}
}

func (c Config) MarkerOptions() marker.Options {
	return marker.Options{
		EndGuard:     c.EndGuard,
		RehomeWindow: c.RehomeWindow,
		PickRadiusSq: c.PickRadiusSq,
		NotifyOnce:   c.NotifyOnce,
	}
}

func (c Config) ClipOptions() clip.Options {
	o := clip.DefaultOptions()
	o.SphereStep = c.SphereStep
	o.BoundMultiplier = c.VolumeBoundMultiplier
	return o
}

func (c Config) SurfaceOptions() surface.Options {
	o := surface.DefaultOptions()
	o.HoleSize = c.HoleSize
	o.Kernel = sdfx.NewWithCells(c.MeshCells)
	return o
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
