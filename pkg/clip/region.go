// Package clip builds implicit clip regions from centerline markers.
//
// A Region is a boolean tree over spheres and half-spaces. Its field is
// negative inside the material to remove, so a clipper keeps the points
// where the field is non-negative. Union is the minimum of its children and
// Intersection the maximum.
package clip

import (
	"errors"
	"fmt"
	"math"
	"strings"

	v3 "github.com/deadsy/sdfx/vec/v3"

	"github.com/chazu/xylem/pkg/kernel"
)

// ErrInvalidRegion is returned for regions that cannot be evaluated.
var ErrInvalidRegion = errors.New("clip: invalid region")

// Kind tags the variant held by a Region.
type Kind int

const (
	KindSphere Kind = iota
	KindPlane
	KindUnion
	KindIntersection
)

func (k Kind) String() string {
	switch k {
	case KindSphere:
		return "sphere"
	case KindPlane:
		return "plane"
	case KindUnion:
		return "union"
	case KindIntersection:
		return "intersection"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Region is one node of a clip region tree. Only the fields of its Kind are
// meaningful.
type Region struct {
	Kind Kind `json:"kind"`

	Center v3.Vec  `json:"center,omitzero"`
	Radius float64 `json:"radius,omitempty"`

	// Origin and Normal describe a half-space; Normal points away from the
	// material to remove.
	Origin v3.Vec `json:"origin,omitzero"`
	Normal v3.Vec `json:"normal,omitzero"`

	Children []Region `json:"children,omitempty"`
}

// Sphere returns a sphere region.
func Sphere(center v3.Vec, radius float64) Region {
	return Region{Kind: KindSphere, Center: center, Radius: radius}
}

// Plane returns the half-space behind the plane through origin.
func Plane(origin, normal v3.Vec) Region {
	return Region{Kind: KindPlane, Origin: origin, Normal: normal}
}

// Union returns the union of rs.
func Union(rs ...Region) Region {
	return Region{Kind: KindUnion, Children: rs}
}

// Intersection returns the intersection of a and b.
func Intersection(a, b Region) Region {
	return Region{Kind: KindIntersection, Children: []Region{a, b}}
}

// Evaluate returns the field value at p.
func (r Region) Evaluate(p v3.Vec) float64 {
	switch r.Kind {
	case KindSphere:
		return p.Sub(r.Center).Length() - r.Radius
	case KindPlane:
		return r.Normal.Normalize().Dot(p.Sub(r.Origin))
	case KindUnion:
		d := math.Inf(1)
		for _, c := range r.Children {
			d = math.Min(d, c.Evaluate(p))
		}
		return d
	case KindIntersection:
		d := math.Inf(-1)
		for _, c := range r.Children {
			d = math.Max(d, c.Evaluate(p))
		}
		return d
	}
	return math.NaN()
}

// Inside reports whether p lies in the material to remove.
func (r Region) Inside(p v3.Vec) bool { return r.Evaluate(p) < 0 }

// Count returns the number of nodes of kind k in the tree.
func (r Region) Count(k Kind) int {
	n := 0
	if r.Kind == k {
		n++
	}
	for _, c := range r.Children {
		n += c.Count(k)
	}
	return n
}

// Validate checks that every primitive is well formed.
func (r Region) Validate() error {
	switch r.Kind {
	case KindSphere:
		if !(r.Radius > 0) {
			return fmt.Errorf("%w: sphere radius %v", ErrInvalidRegion, r.Radius)
		}
	case KindPlane:
		if r.Normal.Length() == 0 {
			return fmt.Errorf("%w: plane with zero normal at %v", ErrInvalidRegion, r.Origin)
		}
	case KindUnion:
	case KindIntersection:
		if len(r.Children) != 2 {
			return fmt.Errorf("%w: intersection of %d regions", ErrInvalidRegion, len(r.Children))
		}
	default:
		return fmt.Errorf("%w: %v", ErrInvalidRegion, r.Kind)
	}
	for _, c := range r.Children {
		if err := c.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// String renders the region as an s-expression.
func (r Region) String() string {
	var sb strings.Builder
	r.write(&sb)
	return sb.String()
}

func (r Region) write(sb *strings.Builder) {
	switch r.Kind {
	case KindSphere:
		fmt.Fprintf(sb, "(sphere %s %g)", vec(r.Center), r.Radius)
	case KindPlane:
		fmt.Fprintf(sb, "(plane %s %s)", vec(r.Origin), vec(r.Normal))
	default:
		sb.WriteString("(" + r.Kind.String())
		for _, c := range r.Children {
			sb.WriteByte(' ')
			c.write(sb)
		}
		sb.WriteByte(')')
	}
}

func vec(v v3.Vec) string { return fmt.Sprintf("[%g %g %g]", v.X, v.Y, v.Z) }

// Compile builds the region with a geometry kernel.
func Compile(k kernel.Kernel, r Region) (kernel.Solid, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return compile(k, r), nil
}

func compile(k kernel.Kernel, r Region) kernel.Solid {
	switch r.Kind {
	case KindSphere:
		return k.Sphere(r.Center, r.Radius)
	case KindPlane:
		return k.Plane(r.Origin, r.Normal)
	case KindUnion:
		parts := make([]kernel.Solid, len(r.Children))
		for i, c := range r.Children {
			parts[i] = compile(k, c)
		}
		return k.Union(parts...)
	default:
		return k.Intersection(compile(k, r.Children[0]), compile(k, r.Children[1]))
	}
}
