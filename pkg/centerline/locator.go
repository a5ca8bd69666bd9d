package centerline

import (
	"math"

	v3 "github.com/deadsy/sdfx/vec/v3"
	"github.com/dhconnelly/rtreego"
)

// sampleTol is the half-width of the box each sample occupies in the index.
const sampleTol = 1e-9

// sample is one centerline sample stored in the spatial index.
type sample struct {
	loc Location
	p   v3.Vec
}

func (s *sample) Bounds() rtreego.Rect {
	return toPoint(s.p).ToRect(sampleTol)
}

func toPoint(p v3.Vec) rtreego.Point {
	return rtreego.Point{p.X, p.Y, p.Z}
}

// Locator maps world positions to the nearest centerline sample.
type Locator struct {
	tree  *Tree
	index *rtreego.Rtree
}

// NewLocator indexes every sample of t.
func NewLocator(t *Tree) *Locator {
	var objs []rtreego.Spatial
	for _, b := range t.Branches() {
		for i, p := range b.Points {
			objs = append(objs, &sample{loc: Location{Branch: b.ID, Index: i}, p: p})
		}
	}
	return &Locator{tree: t, index: rtreego.NewTree(3, 25, 50, objs...)}
}

// Tree returns the indexed tree.
func (l *Locator) Tree() *Tree { return l.tree }

// Nearest returns the sample with the smallest squared distance to p. Ties
// go to the lower branch id, then the lower sample index. The result is
// identical to a linear scan over all samples.
func (l *Locator) Nearest(p v3.Vec) (Location, bool) {
	if l.index.Size() == 0 {
		return Location{}, false
	}
	nn, ok := l.index.NearestNeighbor(toPoint(p)).(*sample)
	if !ok {
		return Location{}, false
	}
	// The index answers approximately at tie distances; resolve exactly over
	// every sample inside the bounding box of the candidate sphere.
	r := math.Sqrt(Dist2(nn.p, p)) + 2*sampleTol
	best := nn
	bestD := Dist2(nn.p, p)
	for _, obj := range l.index.SearchIntersect(toPoint(p).ToRect(r)) {
		s := obj.(*sample)
		d := Dist2(s.p, p)
		if d < bestD || (d == bestD && less(s.loc, best.loc)) {
			best, bestD = s, d
		}
	}
	return best.loc, true
}

func less(a, b Location) bool {
	if a.Branch != b.Branch {
		return a.Branch < b.Branch
	}
	return a.Index < b.Index
}
