package surface

import (
	"math"

	v3 "github.com/deadsy/sdfx/vec/v3"
	"github.com/samber/lo"

	"github.com/chazu/xylem/pkg/logging"
	"github.com/chazu/xylem/pkg/mesh"
)

// RestoreNormals sets the vertex normals of filled, a hole-filled copy of
// original whose first original.NumVertices() vertices are unchanged. Those
// vertices get their original normals back; added vertices get normals
// computed from the faces. Without original normals every normal is
// computed and ErrNormalRestoration is logged as a warning.
func RestoreNormals(filled, original *mesh.Mesh) {
	computed := filled.ComputeNormals()
	if !original.HasNormals() {
		logging.Logger().Warn("falling back to computed normals", "error", ErrNormalRestoration)
		filled.Normals = computed
		return
	}
	n := original.NumVertices()
	filled.Normals = append(append([]v3.Vec(nil), original.Normals...), computed[n:]...)
}

// LabelPatches splits the given faces into connected patches, one per
// filled hole.
func LabelPatches(m *mesh.Mesh, faces []int) [][]int {
	if len(faces) == 0 {
		return nil
	}
	return Components(m, faces)
}

// PointTriangleDistance returns the distance from p to triangle abc.
func PointTriangleDistance(p, a, b, c v3.Vec) float64 {
	return p.Sub(closestOnTriangle(p, a, b, c)).Length()
}

// closestOnTriangle returns the point of triangle abc nearest to p, by
// Voronoi region of the triangle features.
func closestOnTriangle(p, a, b, c v3.Vec) v3.Vec {
	ab, ac, ap := b.Sub(a), c.Sub(a), p.Sub(a)
	d1, d2 := ab.Dot(ap), ac.Dot(ap)
	if d1 <= 0 && d2 <= 0 {
		return a
	}
	bp := p.Sub(b)
	d3, d4 := ab.Dot(bp), ac.Dot(bp)
	if d3 >= 0 && d4 <= d3 {
		return b
	}
	vc := d1*d4 - d3*d2
	if vc <= 0 && d1 >= 0 && d3 <= 0 {
		return a.Add(ab.MulScalar(d1 / (d1 - d3)))
	}
	cp := p.Sub(c)
	d5, d6 := ab.Dot(cp), ac.Dot(cp)
	if d6 >= 0 && d5 <= d6 {
		return c
	}
	vb := d5*d2 - d1*d6
	if vb <= 0 && d2 >= 0 && d6 <= 0 {
		return a.Add(ac.MulScalar(d2 / (d2 - d6)))
	}
	va := d3*d6 - d5*d4
	if va <= 0 && d4-d3 >= 0 && d5-d6 >= 0 {
		return b.Add(c.Sub(b).MulScalar((d4 - d3) / ((d4 - d3) + (d5 - d6))))
	}
	denom := va + vb + vc
	if denom == 0 {
		return a
	}
	v, w := vb/denom, vc/denom
	return a.Add(ab.MulScalar(v)).Add(ac.MulScalar(w))
}

// PatchDistance returns the smallest distance from p to any face of patch.
func PatchDistance(m *mesh.Mesh, patch []int, p v3.Vec) float64 {
	d := math.Inf(1)
	for _, f := range patch {
		a, b, c := m.Triangle(f)
		d = math.Min(d, PointTriangleDistance(p, a, b, c))
	}
	return d
}

// MatchPatches assigns each patch the index of the nearest anchor point,
// or -1 when there are no anchors. Ties go to the lower anchor index.
func MatchPatches(m *mesh.Mesh, patches [][]int, anchors []v3.Vec) []int {
	return lo.Map(patches, func(patch []int, _ int) int {
		best, bestD := -1, math.Inf(1)
		for i, p := range anchors {
			if d := PatchDistance(m, patch, p); d < bestD {
				best, bestD = i, d
			}
		}
		return best
	})
}
