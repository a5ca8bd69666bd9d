package centerline

import (
	"math"

	v3 "github.com/deadsy/sdfx/vec/v3"
)

// StraightPath returns n samples along +X spaced step apart with a constant
// radius.
func StraightPath(n int, step, radius float64) RawPath {
	p := RawPath{Points: make([]v3.Vec, n), Radii: make([]float64, n)}
	for i := range n {
		p.Points[i] = v3.Vec{X: float64(i) * step}
		p.Radii[i] = radius
	}
	return p
}

// BifurcationPaths returns two traced paths sharing a trunk of trunk samples
// along +X. Each then continues for limb samples at ±angle (radians) in the
// XY plane. The radius tapers linearly from rTrunk at the root to rLimb at
// the outlets.
func BifurcationPaths(trunk, limb int, step, angle, rTrunk, rLimb float64) []RawPath {
	dirs := []v3.Vec{
		{X: math.Cos(angle), Y: math.Sin(angle)},
		{X: math.Cos(angle), Y: -math.Sin(angle)},
	}
	n := trunk + limb
	paths := make([]RawPath, len(dirs))
	for d, dir := range dirs {
		p := RawPath{Points: make([]v3.Vec, n), Radii: make([]float64, n)}
		base := v3.Vec{X: float64(trunk-1) * step}
		for i := range n {
			if i < trunk {
				p.Points[i] = v3.Vec{X: float64(i) * step}
			} else {
				p.Points[i] = base.Add(dir.MulScalar(float64(i-trunk+1) * step))
			}
			p.Radii[i] = rTrunk + (rLimb-rTrunk)*float64(i)/float64(n-1)
		}
		paths[d] = p
	}
	return paths
}
