package metrics

import (
	"fmt"

	v3 "github.com/deadsy/sdfx/vec/v3"
	"github.com/samber/lo"

	"github.com/chazu/xylem/pkg/centerline"
	"github.com/chazu/xylem/pkg/clip"
	"github.com/chazu/xylem/pkg/logging"
	"github.com/chazu/xylem/pkg/mesh"
	"github.com/chazu/xylem/pkg/surface"
)

// Measurement is the volume and wall surface of the vessel segment between
// two bounds.
type Measurement struct {
	Left, Right centerline.Location
	Exclusions  []centerline.Location
	Volume      float64 // mm^3 of the closed segment
	Surface     float64 // mm^2 of vessel wall, cap patches excluded
	CapArea     float64 // summed area of the two bound cap patches
	Segment     *surface.Result
}

// Bounds returns the two bounds, left first.
func (m *Measurement) Bounds() []centerline.Location {
	return []centerline.Location{m.Left, m.Right}
}

// NeedsBranchDecision reports whether side branches leave the segment
// between x and y, so the caller must decide which to exclude: the bounds
// lie on different branches, or a child of the left bound's branch splits
// between them.
func NeedsBranchDecision(b *clip.Builder, x, y centerline.Location) bool {
	left, right := b.OrderBounds(x, y)
	if left.Branch != right.Branch {
		return true
	}
	t := b.Tree()
	return lo.ContainsBy(t.Children(left.Branch), func(c int) bool {
		split := t.Branch(c).Split
		return split >= left.Index && split < right.Index
	})
}

// Measure clips m to the segment between bounds x and y, removing side
// branches past each exclusion, and measures the closed result.
func Measure(b *clip.Builder, m *mesh.Mesh, x, y centerline.Location, exclusions []centerline.Location, opts surface.Options) (*Measurement, error) {
	t := b.Tree()
	left, right := b.OrderBounds(x, y)
	region, err := b.Volume(left, right, exclusions)
	if err != nil {
		return nil, err
	}
	var anchors []v3.Vec
	for _, loc := range append([]centerline.Location{left, right}, exclusions...) {
		p, err := t.Position(loc)
		if err != nil {
			return nil, err
		}
		anchors = append(anchors, p)
	}
	seg, err := surface.Process(m, surface.RegionField(region, opts.Kernel), surface.Closest(anchors[0]), anchors, opts)
	if err != nil {
		return nil, fmt.Errorf("measure (%s)-(%s): %w", left, right, err)
	}
	caps := seg.AnchorArea(0) + seg.AnchorArea(1)
	out := &Measurement{
		Left:       left,
		Right:      right,
		Exclusions: exclusions,
		Volume:     seg.Closed.Volume(),
		Surface:    seg.Closed.Area() - caps,
		CapArea:    caps,
		Segment:    seg,
	}
	logging.Logger().Info("segment measured", "left", left.String(), "right", right.String(),
		"volume", out.Volume, "surface", out.Surface)
	return out, nil
}

// Remeasure reloads r against b's tree and, when r holds a volume, measures
// the segment between its stored bounds on m again, honouring the stored
// exclusions. m must not be nil when r holds a volume.
func Remeasure(b *clip.Builder, m *mesh.Mesh, r *Record, opts surface.Options) (*Record, error) {
	if !r.HasVolume {
		return Reload(b.Tree(), r)
	}
	if len(r.Bounds) != 2 {
		return nil, fmt.Errorf("%w: record stores %d", ErrNeedTwoBounds, len(r.Bounds))
	}
	meas, err := Measure(b, m, r.Bounds[0], r.Bounds[1], r.Exclusions, opts)
	if err != nil {
		return nil, err
	}
	out, err := Compose(b.Tree(), r.Landmarks(), r.Height, meas)
	if err != nil {
		return nil, err
	}
	if r.MaxDiameter == nil {
		out.MaxDiameter = nil
	}
	logging.Logger().Info("record re-measured", "stored_volume", r.Volume, "volume", out.Volume,
		"stored_surface", r.Surface, "surface", out.Surface)
	return out, nil
}
