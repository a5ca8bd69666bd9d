// Package kernel defines the implicit geometry kernel used to build clip
// regions and synthetic lumens. Solids are signed distance fields: negative
// inside, positive outside. Union takes the minimum of its operands and
// Intersection the maximum.
package kernel

import v3 "github.com/deadsy/sdfx/vec/v3"

// Solid is an implicit solid.
type Solid interface {
	// Evaluate returns the signed distance (or a bound on it) at p.
	Evaluate(p v3.Vec) float64
	// BoundingBox returns the axis-aligned bounding box. Unbounded solids
	// report a large finite box.
	BoundingBox() (min, max [3]float64)
}

// Kernel builds and combines implicit solids.
type Kernel interface {
	// Primitives
	Sphere(center v3.Vec, radius float64) Solid
	// Plane returns the half-space behind the plane through origin; normal
	// is its outward normal and need not be unit length.
	Plane(origin, normal v3.Vec) Solid
	// Capsule returns a tapered capsule from a (radius ra) to b (radius rb).
	Capsule(a, b v3.Vec, ra, rb float64) Solid

	// Boolean operations
	Union(solids ...Solid) Solid
	Intersection(a, b Solid) Solid

	// Mesh output
	ToMesh(s Solid) (*Mesh, error)
}
