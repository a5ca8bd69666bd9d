package engine

import (
	"fmt"

	v3 "github.com/deadsy/sdfx/vec/v3"

	"github.com/chazu/xylem/pkg/centerline"
	"github.com/chazu/xylem/pkg/marker"
	"github.com/chazu/xylem/pkg/metrics"
)

// Placement is a marker requested by a script, either at a centerline
// location or at a world position snapped to the nearest sample.
type Placement struct {
	Role marker.Role         `json:"role"`
	Loc  centerline.Location `json:"loc"`
	At   *v3.Vec             `json:"at,omitempty"`
}

// LandmarkSpec is a landmark requested by a script.
type LandmarkSpec struct {
	Name string              `json:"name"`
	Loc  centerline.Location `json:"loc"`
	At   *v3.Vec             `json:"at,omitempty"`
}

// CapSpec asks for the capping outputs to be written.
type CapSpec struct {
	Format string `json:"format"`
	Closed bool   `json:"closed"`
}

// Session is everything a script asked for, in evaluation order.
type Session struct {
	Patient     string         `json:"patient,omitempty"`
	Suggest     bool           `json:"suggest,omitzero"`
	Placements  []Placement    `json:"placements,omitempty"`
	Landmarks   []LandmarkSpec `json:"landmarks,omitempty"`
	Height      float64        `json:"height,omitzero"`
	MaxDiameter bool           `json:"max_diameter,omitzero"`
	Cap         *CapSpec       `json:"cap,omitempty"`
	Measure     bool           `json:"measure,omitzero"`
}

// Markers applies the session's suggestion request and placements to set.
// Suggestions come first so explicit placements can add to them.
func (s *Session) Markers(set marker.Set) (marker.Set, error) {
	var err error
	if s.Suggest {
		if set, err = set.Suggest(); err != nil {
			return set, fmt.Errorf("suggest: %w", err)
		}
	}
	for _, p := range s.Placements {
		if p.At != nil {
			set, _, err = set.Place(p.Role, marker.Hit(*p.At))
		} else {
			set, _, err = set.PlaceAt(p.Role, p.Loc)
		}
		if err != nil {
			return set, fmt.Errorf("%s %s: %w", p.Role, p.describe(), err)
		}
	}
	return set, nil
}

func (p Placement) describe() string {
	if p.At != nil {
		return fmt.Sprintf("at [%g, %g, %g]", p.At.X, p.At.Y, p.At.Z)
	}
	return metrics.FormatLocation(p.Loc)
}

// ResolveLandmarks snaps the session's landmarks to the tree behind loc.
func (s *Session) ResolveLandmarks(loc *centerline.Locator) (*metrics.Landmarks, error) {
	var lms metrics.Landmarks
	for _, spec := range s.Landmarks {
		at := spec.Loc
		if spec.At != nil {
			var ok bool
			if at, ok = loc.Nearest(*spec.At); !ok {
				return nil, fmt.Errorf("landmark %q: %w", spec.Name, marker.ErrPickMiss)
			}
		}
		if err := lms.Set(loc.Tree(), spec.Name, at); err != nil {
			return nil, err
		}
	}
	return &lms, nil
}

// Bounds returns the measurement bounds and exclusions of a marker set.
func Bounds(set marker.Set) (x, y centerline.Location, exclusions []centerline.Location, err error) {
	bounds := set.ByRole(marker.RoleBound)
	if len(bounds) != 2 {
		return x, y, nil, fmt.Errorf("%w: have %d", metrics.ErrNeedTwoBounds, len(bounds))
	}
	for _, m := range set.ByRole(marker.RoleExclude) {
		exclusions = append(exclusions, m.Loc)
	}
	return bounds[0].Loc, bounds[1].Loc, exclusions, nil
}
