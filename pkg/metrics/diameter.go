// Package metrics computes diameters, landmarks, segment volumes and surface
// areas over a centerline tree and lumen mesh, and stores them as CSV
// records and HTML reports.
package metrics

import (
	"fmt"

	"github.com/chazu/xylem/pkg/centerline"
)

// MaxDiameter returns the location of the largest radius in the tree and
// twice that radius. Ties go to the first sample in branch scan order.
func MaxDiameter(t *centerline.Tree) (centerline.Location, float64) {
	var best centerline.Location
	bestR := -1.0
	for _, b := range t.Branches() {
		for i, r := range b.Radii {
			if r > bestR {
				best, bestR = centerline.Location{Branch: b.ID, Index: i}, r
			}
		}
	}
	return best, 2 * bestR
}

// DiameterAt returns twice the radius at loc.
func DiameterAt(t *centerline.Tree, loc centerline.Location) (float64, error) {
	r, err := t.Radius(loc)
	if err != nil {
		return 0, err
	}
	return 2 * r, nil
}

// AHI returns the aortic height index, diameter divided by height.
func AHI(diameter, height float64) (float64, error) {
	if height <= 0 {
		return 0, ErrMissingHeight
	}
	return diameter / height, nil
}

// StepForward moves loc one sample towards the root. From the first samples
// of a non-root branch it continues on the parent at the split. It reports
// false when loc is already at the start of a root branch.
func StepForward(t *centerline.Tree, loc centerline.Location) (centerline.Location, bool) {
	if !t.Valid(loc) {
		return loc, false
	}
	if loc.Index > 1 {
		return centerline.Location{Branch: loc.Branch, Index: loc.Index - 1}, true
	}
	link, ok := t.Parent(loc.Branch)
	if !ok {
		return loc, false
	}
	return centerline.Location{Branch: link.Parent, Index: link.Split}, true
}

// StepBackward moves loc one sample away from the root. When loc sits at the
// split of child follow, the step enters that child at its first sample; pass
// centerline.NoParent to stay on the branch. It reports false at the end of
// a branch.
func StepBackward(t *centerline.Tree, loc centerline.Location, follow int) (centerline.Location, bool) {
	if !t.Valid(loc) {
		return loc, false
	}
	if link, ok := t.Parent(follow); ok && link.Parent == loc.Branch && link.Split == loc.Index {
		return centerline.Location{Branch: follow, Index: 0}, true
	}
	if loc.Index+1 >= t.Branch(loc.Branch).Len() {
		return loc, false
	}
	return centerline.Location{Branch: loc.Branch, Index: loc.Index + 1}, true
}

// FormatLocation renders loc as "[branch, index]", the form stored in
// metrics records.
func FormatLocation(loc centerline.Location) string {
	return fmt.Sprintf("[%s]", loc)
}
