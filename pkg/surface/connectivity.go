package surface

import (
	"cmp"
	"slices"

	v3 "github.com/deadsy/sdfx/vec/v3"
	"github.com/dhconnelly/rtreego"
	"github.com/samber/lo"

	"github.com/chazu/xylem/pkg/mesh"
)

type unionFind []int

func newUnionFind(n int) unionFind {
	u := make(unionFind, n)
	for i := range u {
		u[i] = i
	}
	return u
}

func (u unionFind) find(i int) int {
	for u[i] != i {
		u[i] = u[u[i]]
		i = u[i]
	}
	return i
}

func (u unionFind) union(a, b int) {
	ra, rb := u.find(a), u.find(b)
	if ra != rb {
		u[max(ra, rb)] = min(ra, rb)
	}
}

// Components groups the given faces of m into point-connected regions: two
// faces belong together when a chain of faces sharing vertices joins them.
// A nil faces slice means every face. Regions are ordered by size, largest
// first, with ties broken by their lowest face index.
func Components(m *mesh.Mesh, faces []int) [][]int {
	if faces == nil {
		faces = lo.Range(m.NumFaces())
	}
	u := newUnionFind(m.NumVertices())
	for _, f := range faces {
		t := m.Faces[f]
		u.union(t[0], t[1])
		u.union(t[1], t[2])
	}
	groups := lo.GroupBy(faces, func(f int) int { return u.find(m.Faces[f][0]) })
	out := lo.Values(groups)
	for _, g := range out {
		slices.Sort(g)
	}
	slices.SortFunc(out, func(a, b []int) int {
		if c := cmp.Compare(len(b), len(a)); c != 0 {
			return c
		}
		return cmp.Compare(a[0], b[0])
	})
	return out
}

// ExtractLargest returns the largest connected region of m.
func ExtractLargest(m *mesh.Mesh) (*mesh.Mesh, error) {
	cs := Components(m, nil)
	if len(cs) == 0 {
		return nil, ErrEmptyClipResult
	}
	out, _ := m.Subset(cs[0])
	return out, nil
}

type vertexEntry struct {
	id int
	p  v3.Vec
}

const vertexTol = 1e-9

func (v *vertexEntry) Bounds() rtreego.Rect {
	return rtreego.Point{v.p.X, v.p.Y, v.p.Z}.ToRect(vertexTol)
}

// ClosestVertex returns the index of the vertex of m nearest to p.
func ClosestVertex(m *mesh.Mesh, p v3.Vec) (int, bool) {
	if m.NumVertices() == 0 {
		return 0, false
	}
	objs := make([]rtreego.Spatial, m.NumVertices())
	for i, q := range m.Vertices {
		objs[i] = &vertexEntry{id: i, p: q}
	}
	index := rtreego.NewTree(3, 25, 50, objs...)
	nn, ok := index.NearestNeighbor(rtreego.Point{p.X, p.Y, p.Z}).(*vertexEntry)
	if !ok {
		return 0, false
	}
	return nn.id, true
}

// ExtractClosest returns the connected region of m containing the vertex
// nearest to p.
func ExtractClosest(m *mesh.Mesh, p v3.Vec) (*mesh.Mesh, error) {
	v, ok := ClosestVertex(m, p)
	if !ok {
		return nil, ErrEmptyClipResult
	}
	for _, c := range Components(m, nil) {
		if lo.ContainsBy(c, func(f int) bool { return lo.Contains(m.Faces[f][:], v) }) {
			out, _ := m.Subset(c)
			return out, nil
		}
	}
	return nil, ErrEmptyClipResult
}
