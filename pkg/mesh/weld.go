package mesh

import (
	"math"

	v3 "github.com/deadsy/sdfx/vec/v3"

	"github.com/chazu/xylem/pkg/kernel"
)

// WeldTolerance is the grid size used to merge coincident vertices.
const WeldTolerance = 1e-5

type weldKey [3]int64

func keyOf(p v3.Vec, tol float64) weldKey {
	return weldKey{
		int64(math.Round(p.X / tol)),
		int64(math.Round(p.Y / tol)),
		int64(math.Round(p.Z / tol)),
	}
}

// welder merges vertices that fall into the same tolerance cell.
type welder struct {
	tol   float64
	index map[weldKey]int
	m     *Mesh
}

func newWelder(tol float64) *welder {
	return &welder{tol: tol, index: make(map[weldKey]int), m: &Mesh{}}
}

func (w *welder) vertex(p v3.Vec) int {
	k := keyOf(p, w.tol)
	if i, ok := w.index[k]; ok {
		return i
	}
	i := len(w.m.Vertices)
	w.index[k] = i
	w.m.Vertices = append(w.m.Vertices, p)
	return i
}

// add appends a triangle, skipping it if welding collapsed two corners.
func (w *welder) add(a, b, c v3.Vec) {
	t := [3]int{w.vertex(a), w.vertex(b), w.vertex(c)}
	if t[0] == t[1] || t[1] == t[2] || t[0] == t[2] {
		return
	}
	w.m.Faces = append(w.m.Faces, t)
}

// FromSoup builds an indexed mesh from unshared triangles, merging corners
// closer than tol. Triangles that collapse are dropped. Vertex normals are
// computed from the faces.
func FromSoup(tris [][3]v3.Vec, tol float64) *Mesh {
	w := newWelder(tol)
	for _, t := range tris {
		w.add(t[0], t[1], t[2])
	}
	w.m.Normals = w.m.ComputeNormals()
	return w.m
}

// FromKernel welds a kernel triangle soup into an indexed mesh.
func FromKernel(km *kernel.Mesh) *Mesh {
	w := newWelder(WeldTolerance)
	at := func(i uint32) v3.Vec {
		p := km.Vertex(int(i))
		return v3.Vec{X: p[0], Y: p[1], Z: p[2]}
	}
	for i := 0; i+2 < len(km.Indices); i += 3 {
		w.add(at(km.Indices[i]), at(km.Indices[i+1]), at(km.Indices[i+2]))
	}
	w.m.Normals = w.m.ComputeNormals()
	return w.m
}

// Weld merges coincident vertices of m, keeping the first normal seen for
// each merged vertex.
func Weld(m *Mesh, tol float64) *Mesh {
	w := newWelder(tol)
	first := make(map[int]int)
	for _, t := range m.Faces {
		var idx [3]int
		for k, v := range t {
			idx[k] = w.vertex(m.Vertices[v])
			if _, ok := first[idx[k]]; !ok {
				first[idx[k]] = v
			}
		}
		if idx[0] != idx[1] && idx[1] != idx[2] && idx[0] != idx[2] {
			w.m.Faces = append(w.m.Faces, idx)
		}
	}
	if m.HasNormals() {
		w.m.Normals = make([]v3.Vec, len(w.m.Vertices))
		for nv, ov := range first {
			w.m.Normals[nv] = m.Normals[ov]
		}
	}
	return w.m
}
