// Package mesh provides an indexed triangle mesh with the measurements and
// file formats used for vessel lumen surfaces.
package mesh

import (
	"math"
	"slices"

	v3 "github.com/deadsy/sdfx/vec/v3"
)

// Mesh is an indexed triangle mesh. Normals, when present, holds one unit
// normal per vertex.
type Mesh struct {
	Vertices []v3.Vec
	Normals  []v3.Vec
	Faces    [][3]int
}

// NumVertices returns the number of vertices.
func (m *Mesh) NumVertices() int { return len(m.Vertices) }

// NumFaces returns the number of triangles.
func (m *Mesh) NumFaces() int { return len(m.Faces) }

// IsEmpty reports whether the mesh has no triangles.
func (m *Mesh) IsEmpty() bool { return len(m.Faces) == 0 }

// HasNormals reports whether every vertex carries a normal.
func (m *Mesh) HasNormals() bool {
	return len(m.Vertices) > 0 && len(m.Normals) == len(m.Vertices)
}

// Clone returns a deep copy.
func (m *Mesh) Clone() *Mesh {
	return &Mesh{
		Vertices: slices.Clone(m.Vertices),
		Normals:  slices.Clone(m.Normals),
		Faces:    slices.Clone(m.Faces),
	}
}

// Triangle returns the corner positions of face f.
func (m *Mesh) Triangle(f int) (a, b, c v3.Vec) {
	t := m.Faces[f]
	return m.Vertices[t[0]], m.Vertices[t[1]], m.Vertices[t[2]]
}

// cross returns the unnormalized face normal of f, twice its area in length.
func (m *Mesh) cross(f int) v3.Vec {
	a, b, c := m.Triangle(f)
	return b.Sub(a).Cross(c.Sub(a))
}

// FaceArea returns the area of face f.
func (m *Mesh) FaceArea(f int) float64 { return m.cross(f).Length() / 2 }

// FaceNormal returns the unit normal of face f following its winding, or
// the zero vector for a degenerate face.
func (m *Mesh) FaceNormal(f int) v3.Vec {
	n := m.cross(f)
	if l := n.Length(); l > 0 {
		return n.MulScalar(1 / l)
	}
	return v3.Vec{}
}

// Area returns the total surface area.
func (m *Mesh) Area() float64 {
	return m.AreaOf(nil)
}

// AreaOf returns the summed area of the given faces, or of all faces when
// faces is nil.
func (m *Mesh) AreaOf(faces []int) float64 {
	sum := 0.0
	if faces == nil {
		for f := range m.Faces {
			sum += m.FaceArea(f)
		}
		return sum
	}
	for _, f := range faces {
		sum += m.FaceArea(f)
	}
	return sum
}

// SignedVolume returns the volume enclosed by a closed mesh by the
// divergence theorem. It is positive for outward-facing windings.
func (m *Mesh) SignedVolume() float64 {
	vol := 0.0
	for f := range m.Faces {
		a, b, c := m.Triangle(f)
		vol += a.Dot(b.Cross(c))
	}
	return vol / 6
}

// Volume returns the absolute enclosed volume.
func (m *Mesh) Volume() float64 { return math.Abs(m.SignedVolume()) }

// Bounds returns the axis-aligned bounding box of the vertices.
func (m *Mesh) Bounds() (lo, hi v3.Vec) {
	if len(m.Vertices) == 0 {
		return v3.Vec{}, v3.Vec{}
	}
	lo, hi = m.Vertices[0], m.Vertices[0]
	for _, p := range m.Vertices[1:] {
		lo = v3.Vec{X: math.Min(lo.X, p.X), Y: math.Min(lo.Y, p.Y), Z: math.Min(lo.Z, p.Z)}
		hi = v3.Vec{X: math.Max(hi.X, p.X), Y: math.Max(hi.Y, p.Y), Z: math.Max(hi.Z, p.Z)}
	}
	return lo, hi
}

// ComputeNormals returns area-weighted vertex normals for the current
// winding. Vertices not used by any face get the zero vector.
func (m *Mesh) ComputeNormals() []v3.Vec {
	ns := make([]v3.Vec, len(m.Vertices))
	for f, t := range m.Faces {
		n := m.cross(f)
		for _, v := range t {
			ns[v] = ns[v].Add(n)
		}
	}
	for i, n := range ns {
		if l := n.Length(); l > 0 {
			ns[i] = n.MulScalar(1 / l)
		}
	}
	return ns
}

// Subset returns a mesh holding only the given faces, with unused vertices
// dropped. The second result maps new vertex indices to old ones.
func (m *Mesh) Subset(faces []int) (*Mesh, []int) {
	remap := make(map[int]int)
	var old []int
	out := &Mesh{Faces: make([][3]int, 0, len(faces))}
	for _, f := range faces {
		var t [3]int
		for k, v := range m.Faces[f] {
			nv, ok := remap[v]
			if !ok {
				nv = len(old)
				remap[v] = nv
				old = append(old, v)
				out.Vertices = append(out.Vertices, m.Vertices[v])
				if m.HasNormals() {
					out.Normals = append(out.Normals, m.Normals[v])
				}
			}
			t[k] = nv
		}
		out.Faces = append(out.Faces, t)
	}
	return out, old
}

// Merge concatenates meshes without welding. Normals are kept only if every
// input has them.
func Merge(ms ...*Mesh) *Mesh {
	out := &Mesh{}
	keepNormals := true
	for _, m := range ms {
		keepNormals = keepNormals && m.HasNormals()
	}
	for _, m := range ms {
		base := len(out.Vertices)
		out.Vertices = append(out.Vertices, m.Vertices...)
		if keepNormals {
			out.Normals = append(out.Normals, m.Normals...)
		}
		for _, t := range m.Faces {
			out.Faces = append(out.Faces, [3]int{t[0] + base, t[1] + base, t[2] + base})
		}
	}
	return out
}
