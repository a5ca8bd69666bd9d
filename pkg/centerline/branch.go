// Package centerline reconstructs a branch tree from overlapping traced
// vessel paths and answers location queries against it.
//
// Raw paths are traced from a common source to each outlet, so they share
// prefixes. The Builder detects where paths diverge, trims the duplicated
// prefixes, records parent links, drops degenerate branches and produces an
// immutable Tree. Branches reference their parents by id; the tree owns all
// branch data.
package centerline

import (
	"fmt"
	"math"

	v3 "github.com/deadsy/sdfx/vec/v3"
)

// NoParent marks a root branch.
const NoParent = -1

// Location identifies one sample on one branch.
type Location struct {
	Branch int `json:"branch"`
	Index  int `json:"index"`
}

func (l Location) String() string {
	return fmt.Sprintf("%d, %d", l.Branch, l.Index)
}

// ParentLink records where a branch diverges from its parent. Split is an
// index into the parent's stored samples.
type ParentLink struct {
	Parent int `json:"parent"`
	Split  int `json:"split"`
}

// RawPath is one traced path as read from a centerline file.
type RawPath struct {
	Points []v3.Vec
	Radii  []float64
}

// Branch holds the per-sample arrays of one trimmed branch. Points, Radii and
// Arc have equal length of at least two; Arc starts at 0 and never decreases.
type Branch struct {
	ID     int
	Source int // index of the raw path this branch was built from
	Points []v3.Vec
	Radii  []float64
	Arc    []float64
	Parent int // NoParent for roots
	Split  int
}

// Len returns the number of samples.
func (b *Branch) Len() int { return len(b.Points) }

// Link returns the parent link, or false for a root branch.
func (b *Branch) Link() (ParentLink, bool) {
	if b.Parent == NoParent {
		return ParentLink{}, false
	}
	return ParentLink{Parent: b.Parent, Split: b.Split}, true
}

// Span returns the arc length covered by the branch.
func (b *Branch) Span() float64 {
	if len(b.Arc) == 0 {
		return 0
	}
	return b.Arc[len(b.Arc)-1] - b.Arc[0]
}

// ArcLength returns the cumulative Euclidean distance along pts, starting at 0.
func ArcLength(pts []v3.Vec) []float64 {
	arc := make([]float64, len(pts))
	for i := 1; i < len(pts); i++ {
		arc[i] = arc[i-1] + pts[i].Sub(pts[i-1]).Length()
	}
	return arc
}

// Dist2 returns the squared distance between a and b.
func Dist2(a, b v3.Vec) float64 {
	d := a.Sub(b)
	return d.X*d.X + d.Y*d.Y + d.Z*d.Z
}

// samePoint reports whether a and b agree in every coordinate within tol.
func samePoint(a, b v3.Vec, tol float64) bool {
	return math.Abs(a.X-b.X) <= tol && math.Abs(a.Y-b.Y) <= tol && math.Abs(a.Z-b.Z) <= tol
}

// Divergence returns the first index at which a and b differ, comparing only
// the first min(len(a), len(b)) samples. If the shorter sequence is a prefix
// of the longer, its length is returned.
func Divergence(a, b []v3.Vec, tol float64) int {
	n := min(len(a), len(b))
	for i := 0; i < n; i++ {
		if !samePoint(a[i], b[i], tol) {
			return i
		}
	}
	return n
}
