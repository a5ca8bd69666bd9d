package clip

import (
	"cmp"
	"fmt"

	v3 "github.com/deadsy/sdfx/vec/v3"

	"github.com/chazu/xylem/pkg/centerline"
	"github.com/chazu/xylem/pkg/logging"
	"github.com/chazu/xylem/pkg/marker"
)

// Orientation flags for local regions.
const (
	Inward  = 1.0  // remove material upstream of the marker
	Outward = -1.0 // remove material downstream of the marker
)

// Options configures sphere chains.
type Options struct {
	// SphereStep is the sample spacing between chain spheres.
	SphereStep int
	// InletMultiplier scales the local radius along an inlet chain.
	InletMultiplier float64
	// CutMultiplier scales the local radius along outlet and cut chains.
	CutMultiplier float64
	// EndMultiplier scales the radius of a chain's terminal sphere.
	EndMultiplier float64
	// BoundMultiplier scales the sphere of a volume bound.
	BoundMultiplier float64
}

// DefaultOptions returns the chain defaults.
func DefaultOptions() Options {
	return Options{
		SphereStep:      10,
		InletMultiplier: 3,
		CutMultiplier:   1.5,
		EndMultiplier:   3,
		BoundMultiplier: 1.6,
	}
}

// Builder creates clip regions for markers on one tree.
type Builder struct {
	tree *centerline.Tree
	opts Options
}

// NewBuilder returns a Builder over t.
func NewBuilder(t *centerline.Tree, opts Options) *Builder {
	if opts.SphereStep < 1 {
		opts.SphereStep = 1
	}
	return &Builder{tree: t, opts: opts}
}

// Tree returns the tree regions are built on.
func (b *Builder) Tree() *centerline.Tree { return b.tree }

// Normal returns the plane normal at loc: the difference between the mean
// of the two samples after and the mean of two samples before it, scaled by
// flip. Indices are clamped to the branch.
func (b *Builder) Normal(loc centerline.Location, flip float64) (v3.Vec, error) {
	if !b.tree.Valid(loc) {
		return v3.Vec{}, fmt.Errorf("%w: (%s)", centerline.ErrInvalidLocation, loc)
	}
	pts := b.tree.Branch(loc.Branch).Points
	at := func(i int) v3.Vec { return pts[min(max(i, 0), len(pts)-1)] }
	k := loc.Index
	ahead := at(k + 1).Add(at(k + 2)).MulScalar(0.5)
	behind := at(k - 3).Add(at(k - 2)).MulScalar(0.5)
	n := ahead.Sub(behind).MulScalar(flip)
	if n.Length() == 0 {
		return v3.Vec{}, fmt.Errorf("%w: degenerate tangent at (%s)", ErrInvalidRegion, loc)
	}
	return n, nil
}

// chain returns spheres at samples from, from+step, ... up to but excluding
// to on branch id, each scaled by mult, plus a terminal sphere of radius
// endRadius at sample end.
func (b *Builder) chain(id, from, to int, mult float64, end int, endRadius float64) []Region {
	br := b.tree.Branch(id)
	var out []Region
	for i := from; i < to; i += b.opts.SphereStep {
		out = append(out, Sphere(br.Points[i], mult*br.Radii[i]))
	}
	end = min(max(end, 0), br.Len()-1)
	return append(out, Sphere(br.Points[end], endRadius))
}

// Local returns the region removed by one capping marker. An inlet removes
// the branch upstream of it; any other role removes the branch downstream,
// together with every child branch splitting at or past the marker.
func (b *Builder) Local(m marker.Marker) (Region, error) {
	loc := m.Loc
	if !b.tree.Valid(loc) {
		return Region{}, fmt.Errorf("%w: marker %d at (%s)", centerline.ErrInvalidLocation, m.ID, loc)
	}
	br := b.tree.Branch(loc.Branch)
	k := loc.Index
	endRadius := b.opts.EndMultiplier * br.Radii[k]

	flip := Outward
	var spheres []Region
	if m.Role == marker.RoleInlet {
		flip = Inward
		spheres = b.chain(loc.Branch, 1, k, b.opts.InletMultiplier, k-2, endRadius)
	} else {
		spheres = b.chain(loc.Branch, k+1, br.Len(), b.opts.CutMultiplier, br.Len()-2, endRadius)
		for _, c := range b.tree.Downstream(loc) {
			child := b.tree.Branch(c)
			spheres = append(spheres, b.chain(c, 1, child.Len(), b.opts.CutMultiplier, child.Len()-2,
				b.opts.EndMultiplier*child.Radii[0])...)
		}
	}

	n, err := b.Normal(loc, flip)
	if err != nil {
		return Region{}, err
	}
	logging.Logger().Debug("local clip region", "marker", m.ID, "role", m.Role.String(), "loc", loc.String(), "spheres", len(spheres))
	return Intersection(Union(spheres...), Plane(br.Points[k], n)), nil
}

// Global returns the union of the local regions of all markers.
func (b *Builder) Global(ms []marker.Marker) (Region, error) {
	parts := make([]Region, 0, len(ms))
	for _, m := range ms {
		r, err := b.Local(m)
		if err != nil {
			return Region{}, err
		}
		parts = append(parts, r)
	}
	return Union(parts...), nil
}

// Bound returns the region cut by a volume bound: a sphere of
// BoundMultiplier times the local radius, behind the marker plane.
func (b *Builder) Bound(loc centerline.Location, flip float64) (Region, error) {
	p, err := b.tree.Position(loc)
	if err != nil {
		return Region{}, err
	}
	r, _ := b.tree.Radius(loc)
	n, err := b.Normal(loc, flip)
	if err != nil {
		return Region{}, err
	}
	return Intersection(Sphere(p, b.opts.BoundMultiplier*r), Plane(p, n)), nil
}

// OrderBounds returns the two bounds with the one closer to the root first,
// measured in samples along the parent chain.
func (b *Builder) OrderBounds(x, y centerline.Location) (left, right centerline.Location) {
	if cmp.Compare(b.tree.RootDistance(x), b.tree.RootDistance(y)) <= 0 {
		return x, y
	}
	return y, x
}

// Volume returns the region separating the vessel segment between two
// bounds from the rest of the mesh. The left bound cuts inward, the right
// bound and every exclusion cut outward.
func (b *Builder) Volume(x, y centerline.Location, exclusions []centerline.Location) (Region, error) {
	left, right := b.OrderBounds(x, y)
	l, err := b.Bound(left, Inward)
	if err != nil {
		return Region{}, err
	}
	r, err := b.Bound(right, Outward)
	if err != nil {
		return Region{}, err
	}
	parts := []Region{l, r}
	for _, e := range exclusions {
		x, err := b.Bound(e, Outward)
		if err != nil {
			return Region{}, err
		}
		parts = append(parts, x)
	}
	return Union(parts...), nil
}
