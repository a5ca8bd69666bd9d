// Package surface clips lumen meshes against implicit regions and repairs the
// result: connectivity extraction, hole filling, orientation, normal
// restoration and identification of the cap patches created at each cut.
package surface

import (
	v3 "github.com/deadsy/sdfx/vec/v3"

	"github.com/chazu/xylem/pkg/logging"
	"github.com/chazu/xylem/pkg/mesh"
)

// Field is a scalar field over space. Clipping keeps the part of a mesh
// where the field is non-negative.
type Field interface {
	Evaluate(p v3.Vec) float64
}

// Boxed is a Field known to be positive outside the box from Min to Max.
// Clip only evaluates it on faces touching the box.
type Boxed struct {
	Field
	Min, Max v3.Vec
}

func (b Boxed) contains(p v3.Vec) bool {
	return p.X >= b.Min.X && p.X <= b.Max.X &&
		p.Y >= b.Min.Y && p.Y <= b.Max.Y &&
		p.Z >= b.Min.Z && p.Z <= b.Max.Z
}

// FieldFunc adapts a function to Field.
type FieldFunc func(p v3.Vec) float64

// Evaluate calls f(p).
func (f FieldFunc) Evaluate(p v3.Vec) float64 { return f(p) }

type edgeKey [2]int

func keyFor(a, b int) edgeKey {
	if a > b {
		a, b = b, a
	}
	return edgeKey{a, b}
}

// clipper accumulates the output of one clip pass. Input vertices and edge
// crossings are each emitted once so neighbouring triangles stay welded.
type clipper struct {
	in      *mesh.Mesh
	vals    []float64
	out     *mesh.Mesh
	kept    map[int]int
	crossed map[edgeKey]int
}

func (c *clipper) vertex(v int) int {
	if i, ok := c.kept[v]; ok {
		return i
	}
	i := len(c.out.Vertices)
	c.kept[v] = i
	c.out.Vertices = append(c.out.Vertices, c.in.Vertices[v])
	if c.in.HasNormals() {
		c.out.Normals = append(c.out.Normals, c.in.Normals[v])
	}
	return i
}

// crossing returns the output vertex where the field vanishes on edge a-b.
// An endpoint with value zero is reused rather than duplicated.
func (c *clipper) crossing(a, b int) int {
	k := keyFor(a, b)
	if i, ok := c.crossed[k]; ok {
		return i
	}
	lo, hi := k[0], k[1]
	t := c.vals[lo] / (c.vals[lo] - c.vals[hi])
	var i int
	switch {
	case t <= 0:
		i = c.vertex(lo)
	case t >= 1:
		i = c.vertex(hi)
	default:
		i = len(c.out.Vertices)
		p, q := c.in.Vertices[lo], c.in.Vertices[hi]
		c.out.Vertices = append(c.out.Vertices, p.Add(q.Sub(p).MulScalar(t)))
		if c.in.HasNormals() {
			n, m := c.in.Normals[lo], c.in.Normals[hi]
			c.out.Normals = append(c.out.Normals, n.Add(m.Sub(n).MulScalar(t)).Normalize())
		}
	}
	c.crossed[k] = i
	return i
}

func (c *clipper) triangle(t [3]int) {
	var poly []int
	for k := range 3 {
		a, b := t[k], t[(k+1)%3]
		ina, inb := c.vals[a] >= 0, c.vals[b] >= 0
		if ina {
			poly = append(poly, c.vertex(a))
		}
		if ina != inb {
			poly = append(poly, c.crossing(a, b))
		}
	}
	// Crossings that landed on a kept endpoint leave adjacent duplicates.
	var clean []int
	for i, v := range poly {
		if v != poly[(i+len(poly)-1)%len(poly)] {
			clean = append(clean, v)
		}
	}
	for k := 1; k+1 < len(clean); k++ {
		c.out.Faces = append(c.out.Faces, [3]int{clean[0], clean[k], clean[k+1]})
	}
}

// evaluate fills vals. For a Boxed field, vertices whose faces all lie
// outside the box are given a positive value without evaluation.
func (c *clipper) evaluate(f Field) {
	box, ok := f.(Boxed)
	if !ok {
		for i, p := range c.in.Vertices {
			c.vals[i] = f.Evaluate(p)
		}
		return
	}
	near := make([]bool, len(c.in.Vertices))
	for i, p := range c.in.Vertices {
		near[i] = box.contains(p)
	}
	done := make([]bool, len(c.in.Vertices))
	evaluated := 0
	for _, t := range c.in.Faces {
		if !near[t[0]] && !near[t[1]] && !near[t[2]] {
			continue
		}
		for _, v := range t {
			if !done[v] {
				c.vals[v] = f.Evaluate(c.in.Vertices[v])
				done[v] = true
				evaluated++
			}
		}
	}
	for i := range c.vals {
		if !done[i] {
			c.vals[i] = 1
		}
	}
	logging.Logger().Debug("clip field evaluated", "vertices", len(c.vals), "evaluated", evaluated)
}

// Clip returns the part of m where f is non-negative. Triangles straddling
// the zero level set are cut along it; face winding is preserved and vertex
// normals are interpolated. ErrEmptyClipResult is returned if nothing
// remains.
func Clip(m *mesh.Mesh, f Field) (*mesh.Mesh, error) {
	c := &clipper{
		in:      m,
		vals:    make([]float64, m.NumVertices()),
		out:     &mesh.Mesh{},
		kept:    make(map[int]int),
		crossed: make(map[edgeKey]int),
	}
	c.evaluate(f)
	for _, t := range m.Faces {
		if c.vals[t[0]] >= 0 && c.vals[t[1]] >= 0 && c.vals[t[2]] >= 0 {
			c.out.Faces = append(c.out.Faces, [3]int{c.vertex(t[0]), c.vertex(t[1]), c.vertex(t[2])})
			continue
		}
		c.triangle(t)
	}
	if c.out.IsEmpty() {
		return nil, ErrEmptyClipResult
	}
	return c.out, nil
}
