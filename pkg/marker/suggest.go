package marker

import (
	"github.com/chazu/xylem/pkg/centerline"
	"github.com/chazu/xylem/pkg/logging"
)

const (
	suggestInletIndex = 15
	suggestOutletBack = 20
)

// Suggestions returns default capping locations: an inlet 15 samples into
// the root and an outlet 20 samples before the end of every branch. Outlets
// that would violate the end guard are skipped.
func Suggestions(t *centerline.Tree, opts Options) (inlet centerline.Location, outlets []centerline.Location) {
	inlet = centerline.Location{Branch: 0, Index: suggestInletIndex}
	for _, b := range t.Branches() {
		loc := centerline.Location{Branch: b.ID, Index: b.Len() - suggestOutletBack}
		if !opts.Allowed(t, loc) {
			logging.Logger().Debug("no outlet suggestion for short branch", "branch", b.ID, "samples", b.Len())
			continue
		}
		outlets = append(outlets, loc)
	}
	return inlet, outlets
}

// Suggest replaces all non-inlet markers with the default capping markers.
// An existing inlet is kept.
func (s Set) Suggest() (Set, error) {
	next := s.RemoveAll()
	inlet, outlets := Suggestions(s.tree(), s.opts)
	var err error
	if _, ok := next.Inlet(); !ok {
		if next, _, err = next.PlaceAt(RoleInlet, inlet); err != nil {
			return s, err
		}
	}
	for _, loc := range outlets {
		if next, _, err = next.PlaceAt(RoleOutlet, loc); err != nil {
			return s, err
		}
	}
	return next, nil
}
