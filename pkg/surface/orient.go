package surface

import (
	"github.com/chazu/xylem/pkg/mesh"
)

// Orient makes face winding consistent across every edge-connected region
// of m, in place, then flips any closed region whose signed volume is
// negative so normals face outward. It returns the number of faces flipped.
func Orient(m *mesh.Mesh) int {
	adj := make(map[edgeKey][]int)
	for f, t := range m.Faces {
		for k := range 3 {
			key := keyFor(t[k], t[(k+1)%3])
			adj[key] = append(adj[key], f)
		}
	}
	// hasEdge reports whether face f runs a->b.
	hasEdge := func(f, a, b int) bool {
		t := m.Faces[f]
		for k := range 3 {
			if t[k] == a && t[(k+1)%3] == b {
				return true
			}
		}
		return false
	}
	flip := func(f int) {
		t := m.Faces[f]
		m.Faces[f] = [3]int{t[0], t[2], t[1]}
	}

	flipped := 0
	seen := make([]bool, m.NumFaces())
	for seed := range m.Faces {
		if seen[seed] {
			continue
		}
		seen[seed] = true
		region := []int{seed}
		for q := 0; q < len(region); q++ {
			f := region[q]
			t := m.Faces[f]
			for k := range 3 {
				a, b := t[k], t[(k+1)%3]
				for _, g := range adj[keyFor(a, b)] {
					if seen[g] {
						continue
					}
					seen[g] = true
					if hasEdge(g, a, b) {
						flip(g)
						flipped++
					}
					region = append(region, g)
				}
			}
		}
		sub := &mesh.Mesh{Vertices: m.Vertices, Faces: make([][3]int, len(region))}
		for i, f := range region {
			sub.Faces[i] = m.Faces[f]
		}
		if len(BoundaryLoops(sub)) == 0 && sub.SignedVolume() < 0 {
			for _, f := range region {
				flip(f)
			}
			flipped += len(region)
		}
	}
	return flipped
}
