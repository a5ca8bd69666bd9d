package mesh

import (
	"math"

	v3 "github.com/deadsy/sdfx/vec/v3"
)

// Tube returns a closed tube around a polyline: one ring of sides vertices
// per point, joined by quads, with a fan cap at each end. Faces wind
// outward and vertex normals point radially (along the axis on caps).
func Tube(points []v3.Vec, radii []float64, sides int) *Mesh {
	n := len(points)
	m := &Mesh{}
	if n < 2 || sides < 3 {
		return m
	}
	tangent := func(i int) v3.Vec {
		return points[min(i+1, n-1)].Sub(points[max(i-1, 0)]).Normalize()
	}

	// A frame propagated along the curve keeps rings from twisting.
	t0 := tangent(0)
	ref := v3.Vec{Z: 1}
	if math.Abs(t0.Z) > 0.9 {
		ref = v3.Vec{X: 1}
	}
	u := t0.Cross(ref).Normalize()
	for i := range n {
		t := tangent(i)
		u = u.Sub(t.MulScalar(u.Dot(t))).Normalize()
		v := t.Cross(u)
		for j := range sides {
			theta := 2 * math.Pi * float64(j) / float64(sides)
			dir := u.MulScalar(math.Cos(theta)).Add(v.MulScalar(math.Sin(theta)))
			m.Vertices = append(m.Vertices, points[i].Add(dir.MulScalar(radii[i])))
			m.Normals = append(m.Normals, dir)
		}
	}
	ring := func(i, j int) int { return i*sides + (j % sides) }
	for i := 0; i+1 < n; i++ {
		for j := range sides {
			m.Faces = append(m.Faces,
				[3]int{ring(i, j), ring(i, j+1), ring(i+1, j)},
				[3]int{ring(i, j+1), ring(i+1, j+1), ring(i+1, j)},
			)
		}
	}

	start := len(m.Vertices)
	m.Vertices = append(m.Vertices, points[0])
	m.Normals = append(m.Normals, tangent(0).MulScalar(-1))
	end := len(m.Vertices)
	m.Vertices = append(m.Vertices, points[n-1])
	m.Normals = append(m.Normals, tangent(n-1))
	for j := range sides {
		m.Faces = append(m.Faces,
			[3]int{start, ring(0, j+1), ring(0, j)},
			[3]int{end, ring(n-1, j), ring(n-1, j+1)},
		)
	}
	return m
}
