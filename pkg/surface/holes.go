package surface

import (
	"math"

	v3 "github.com/deadsy/sdfx/vec/v3"

	"github.com/chazu/xylem/pkg/mesh"
)

// BoundaryLoops returns the closed boundary loops of m. Each loop lists
// vertex indices in the direction its edges run in the adjacent faces, so
// a cap over the loop must wind the other way. Open chains left by
// non-manifold boundaries are discarded.
func BoundaryLoops(m *mesh.Mesh) [][]int {
	uses := make(map[edgeKey]int)
	for _, t := range m.Faces {
		for k := range 3 {
			uses[keyFor(t[k], t[(k+1)%3])]++
		}
	}
	next := make(map[int][]int)
	var starts []int
	for _, t := range m.Faces {
		for k := range 3 {
			a, b := t[k], t[(k+1)%3]
			if uses[keyFor(a, b)] == 1 {
				if len(next[a]) == 0 {
					starts = append(starts, a)
				}
				next[a] = append(next[a], b)
			}
		}
	}

	var loops [][]int
	for _, s := range starts {
		for len(next[s]) > 0 {
			loop := []int{s}
			cur := s
			closed := false
			for {
				nb := next[cur]
				if len(nb) == 0 {
					break
				}
				nxt := nb[0]
				next[cur] = nb[1:]
				if nxt == s {
					closed = true
					break
				}
				loop = append(loop, nxt)
				cur = nxt
			}
			if closed && len(loop) >= 3 {
				loops = append(loops, loop)
			}
		}
	}
	return loops
}

// loopSize returns the centroid of a loop and the largest distance from it
// to a loop vertex.
func loopSize(m *mesh.Mesh, loop []int) (v3.Vec, float64) {
	var c v3.Vec
	for _, v := range loop {
		c = c.Add(m.Vertices[v])
	}
	c = c.MulScalar(1 / float64(len(loop)))
	size := 0.0
	for _, v := range loop {
		size = math.Max(size, m.Vertices[v].Sub(c).Length())
	}
	return c, size
}

// FillHoles closes every boundary loop whose size is at most maxSize with a
// triangle fan around the loop centroid. It returns a new mesh whose
// original vertices and faces keep their indices, followed by the added
// ones, and the indices of the added faces. Added vertices get no normals.
func FillHoles(m *mesh.Mesh, maxSize float64) (*mesh.Mesh, []int) {
	out := &mesh.Mesh{
		Vertices: append([]v3.Vec(nil), m.Vertices...),
		Faces:    append([][3]int(nil), m.Faces...),
	}
	var added []int
	for _, loop := range BoundaryLoops(m) {
		c, size := loopSize(m, loop)
		if size > maxSize {
			continue
		}
		center := len(out.Vertices)
		out.Vertices = append(out.Vertices, c)
		for i, a := range loop {
			b := loop[(i+1)%len(loop)]
			added = append(added, len(out.Faces))
			out.Faces = append(out.Faces, [3]int{center, b, a})
		}
	}
	return out, added
}
