// Package sdfx implements the kernel.Kernel interface using the
// github.com/deadsy/sdfx SDF-based CAD library.
package sdfx

import (
	"fmt"
	"math"

	"github.com/deadsy/sdfx/render"
	"github.com/deadsy/sdfx/sdf"
	v3 "github.com/deadsy/sdfx/vec/v3"

	"github.com/chazu/xylem/pkg/kernel"
)

// Compile-time interface check.
var _ kernel.Kernel = (*SdfxKernel)(nil)

// DefaultMeshCells controls marching cubes tessellation resolution along
// the longest bounding box axis.
const DefaultMeshCells = 96

// farAway bounds the box reported for unbounded solids.
const farAway = 1e6

// sdfxSolid wraps an sdf.SDF3 to implement kernel.Solid.
type sdfxSolid struct {
	s sdf.SDF3
}

// Evaluate returns the signed distance at p.
func (s *sdfxSolid) Evaluate(p v3.Vec) float64 {
	return s.s.Evaluate(p)
}

// BoundingBox returns the axis-aligned bounding box.
func (s *sdfxSolid) BoundingBox() (min, max [3]float64) {
	bb := s.s.BoundingBox()
	min = [3]float64{bb.Min.X, bb.Min.Y, bb.Min.Z}
	max = [3]float64{bb.Max.X, bb.Max.Y, bb.Max.Z}
	return min, max
}

// halfSpace is the set of points behind a plane.
type halfSpace struct {
	origin, normal v3.Vec
}

func (h *halfSpace) Evaluate(p v3.Vec) float64 {
	return h.normal.Dot(p.Sub(h.origin))
}

func (h *halfSpace) BoundingBox() sdf.Box3 {
	return sdf.Box3{
		Min: v3.Vec{X: -farAway, Y: -farAway, Z: -farAway},
		Max: v3.Vec{X: farAway, Y: farAway, Z: farAway},
	}
}

// taperedCapsule is a segment swept by a linearly varying radius. Evaluate
// returns a distance bound, exact for equal radii.
type taperedCapsule struct {
	a, b   v3.Vec
	ra, rb float64
}

func (c *taperedCapsule) Evaluate(p v3.Vec) float64 {
	ab := c.b.Sub(c.a)
	t := 0.0
	if l2 := ab.Dot(ab); l2 > 0 {
		t = math.Max(0, math.Min(1, p.Sub(c.a).Dot(ab)/l2))
	}
	closest := c.a.Add(ab.MulScalar(t))
	return p.Sub(closest).Length() - (c.ra + t*(c.rb-c.ra))
}

func (c *taperedCapsule) BoundingBox() sdf.Box3 {
	r := math.Max(c.ra, c.rb)
	return sdf.Box3{
		Min: v3.Vec{X: math.Min(c.a.X, c.b.X) - r, Y: math.Min(c.a.Y, c.b.Y) - r, Z: math.Min(c.a.Z, c.b.Z) - r},
		Max: v3.Vec{X: math.Max(c.a.X, c.b.X) + r, Y: math.Max(c.a.Y, c.b.Y) + r, Z: math.Max(c.a.Z, c.b.Z) + r},
	}
}

// empty contains no points.
type empty struct{}

func (empty) Evaluate(v3.Vec) float64 { return math.Inf(1) }
func (empty) BoundingBox() sdf.Box3  { return sdf.Box3{} }

// SdfxKernel implements kernel.Kernel using sdfx.
type SdfxKernel struct {
	cells int
}

// New returns a new SdfxKernel tessellating with DefaultMeshCells.
func New() *SdfxKernel {
	return &SdfxKernel{cells: DefaultMeshCells}
}

// NewWithCells returns a kernel tessellating with the given resolution.
func NewWithCells(cells int) *SdfxKernel {
	if cells <= 0 {
		cells = DefaultMeshCells
	}
	return &SdfxKernel{cells: cells}
}

// unwrap extracts the underlying sdf.SDF3 from a kernel.Solid. Solids from
// other kernels are adapted through their Evaluate method.
func unwrap(s kernel.Solid) sdf.SDF3 {
	if w, ok := s.(*sdfxSolid); ok {
		return w.s
	}
	return foreign{s}
}

// wrap creates a kernel.Solid from an sdf.SDF3.
func wrap(s sdf.SDF3) kernel.Solid {
	return &sdfxSolid{s: s}
}

// foreign adapts a kernel.Solid to sdf.SDF3.
type foreign struct{ kernel.Solid }

func (f foreign) BoundingBox() sdf.Box3 {
	min, max := f.Solid.BoundingBox()
	return sdf.Box3{
		Min: v3.Vec{X: min[0], Y: min[1], Z: min[2]},
		Max: v3.Vec{X: max[0], Y: max[1], Z: max[2]},
	}
}

// Sphere creates a sphere. A non-positive radius panics, as sdfx rejects it.
func (k *SdfxKernel) Sphere(center v3.Vec, radius float64) kernel.Solid {
	s, err := sdf.Sphere3D(radius)
	if err != nil {
		panic(fmt.Sprintf("sdfx.Sphere3D: %v", err))
	}
	return wrap(sdf.Transform3D(s, sdf.Translate3d(center)))
}

// Plane creates the half-space behind the plane through origin.
func (k *SdfxKernel) Plane(origin, normal v3.Vec) kernel.Solid {
	return wrap(&halfSpace{origin: origin, normal: normal.Normalize()})
}

// Capsule creates a tapered capsule between a and b.
func (k *SdfxKernel) Capsule(a, b v3.Vec, ra, rb float64) kernel.Solid {
	return wrap(&taperedCapsule{a: a, b: b, ra: ra, rb: rb})
}

// Union returns the union of the solids. The union of nothing is empty.
func (k *SdfxKernel) Union(solids ...kernel.Solid) kernel.Solid {
	switch len(solids) {
	case 0:
		return wrap(empty{})
	case 1:
		return solids[0]
	}
	parts := make([]sdf.SDF3, len(solids))
	for i, s := range solids {
		parts[i] = unwrap(s)
	}
	return wrap(sdf.Union3D(parts...))
}

// Intersection returns the intersection of two solids.
func (k *SdfxKernel) Intersection(a, b kernel.Solid) kernel.Solid {
	return wrap(sdf.Intersect3D(unwrap(a), unwrap(b)))
}

// ToMesh converts a bounded solid to a triangle mesh using marching cubes.
func (k *SdfxKernel) ToMesh(s kernel.Solid) (*kernel.Mesh, error) {
	sdf3 := unwrap(s)
	bb := sdf3.BoundingBox()
	size := bb.Max.Sub(bb.Min)
	if size.X >= farAway || size.Y >= farAway || size.Z >= farAway {
		return nil, fmt.Errorf("sdfx: cannot tessellate an unbounded solid")
	}

	renderer := render.NewMarchingCubesUniform(k.cells)
	triangles := render.ToTriangles(sdf3, renderer)

	numTri := len(triangles)
	numVerts := numTri * 3

	vertices := make([]float32, 0, numVerts*3)
	normals := make([]float32, 0, numVerts*3)
	indices := make([]uint32, 0, numVerts)

	for i, tri := range triangles {
		n := tri.Normal()
		nx := float32(n.X)
		ny := float32(n.Y)
		nz := float32(n.Z)

		for j := 0; j < 3; j++ {
			v := tri[j]
			vertices = append(vertices, float32(v.X), float32(v.Y), float32(v.Z))
			normals = append(normals, nx, ny, nz)
			indices = append(indices, uint32(i*3+j))
		}
	}

	return &kernel.Mesh{
		Vertices: vertices,
		Normals:  normals,
		Indices:  indices,
	}, nil
}
