// Package marker manages cut and measurement markers bound to centerline
// samples.
//
// A Set is a value: every operation takes the current set and an event and
// returns the next set, leaving the receiver untouched. Placement snaps to
// the nearest centerline sample; dragging re-snaps on every movement; release
// re-homes markers that sit just past a bifurcation onto the parent branch.
package marker

import (
	"fmt"
	"strings"

	v3 "github.com/deadsy/sdfx/vec/v3"

	"github.com/chazu/xylem/pkg/centerline"
)

// Role is what a marker is used for.
type Role int

const (
	RoleInlet   Role = iota // start of the kept lumen; never removed
	RoleOutlet              // cut at a branch outlet
	RoleBound               // volume measurement bound
	RoleExclude             // side branch excluded from a measurement
	RoleCut                 // free cut
)

var roleNames = [...]string{"inlet", "outlet", "bound", "exclude", "cut"}

func (r Role) String() string {
	if r < 0 || int(r) >= len(roleNames) {
		return fmt.Sprintf("Role(%d)", int(r))
	}
	return roleNames[r]
}

// ParseRole returns the role with the given name.
func ParseRole(s string) (Role, error) {
	for i, n := range roleNames {
		if strings.EqualFold(s, n) {
			return Role(i), nil
		}
	}
	return 0, fmt.Errorf("marker: unknown role %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (r Role) MarshalText() ([]byte, error) { return []byte(r.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (r *Role) UnmarshalText(b []byte) error {
	v, err := ParseRole(string(b))
	if err != nil {
		return err
	}
	*r = v
	return nil
}

// Marker is a role bound to one centerline sample.
type Marker struct {
	ID   int                 `json:"id"`
	Role Role                `json:"role"`
	Loc  centerline.Location `json:"loc"`
}

// Pick is the result of a screen-space pick: a world position, or a miss.
type Pick struct {
	Pos v3.Vec
	Hit bool
}

// Hit returns a pick at p.
func Hit(p v3.Vec) Pick { return Pick{Pos: p, Hit: true} }

// Miss is a pick that hit nothing.
var Miss = Pick{}

// Options configures placement rules.
type Options struct {
	// EndGuard rejects locations within this many samples of either branch end.
	EndGuard int
	// RehomeWindow re-homes released markers at or below this index of a
	// non-root branch onto the parent split.
	RehomeWindow int
	// PickRadiusSq is the squared distance within which a pick selects a marker.
	PickRadiusSq float64
	// NotifyOnce limits re-homing notifications to the first occurrence.
	NotifyOnce bool
}

// DefaultOptions returns the placement defaults.
func DefaultOptions() Options {
	return Options{EndGuard: 4, RehomeWindow: 30, PickRadiusSq: 30, NotifyOnce: true}
}

// Allowed reports whether loc is a valid location for a marker: it must exist
// and lie strictly inside the end guard of its branch.
func (o Options) Allowed(t *centerline.Tree, loc centerline.Location) bool {
	if !t.Valid(loc) {
		return false
	}
	n := t.Branch(loc.Branch).Len()
	return loc.Index > o.EndGuard && loc.Index < n-o.EndGuard
}

// clampGuard moves loc to the nearest index Allowed accepts. A branch too
// short to have one leaves loc unchanged.
func (o Options) clampGuard(t *centerline.Tree, loc centerline.Location) centerline.Location {
	n := t.Branch(loc.Branch).Len()
	first, last := o.EndGuard+1, n-o.EndGuard-1
	if first > last {
		return loc
	}
	loc.Index = min(max(loc.Index, first), last)
	return loc
}
