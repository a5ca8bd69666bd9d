package marker

import (
	"fmt"
	"slices"

	v3 "github.com/deadsy/sdfx/vec/v3"
	"github.com/samber/lo"

	"github.com/chazu/xylem/pkg/centerline"
	"github.com/chazu/xylem/pkg/logging"
)

// noDrag marks a set without a marker being dragged.
const noDrag = -1

// Set is an immutable collection of markers. The zero value is not usable;
// create one with NewSet.
type Set struct {
	loc      *centerline.Locator
	opts     Options
	markers  []Marker
	nextID   int
	dragging int
	notified bool
}

// Release describes what happened when a drag ended.
type Release struct {
	Marker  Marker
	From    centerline.Location
	Rehomed bool
	// Notify is set when the caller should tell the user about the re-homing.
	Notify bool
}

// NewSet returns an empty set resolving picks through loc.
func NewSet(loc *centerline.Locator, opts Options) Set {
	return Set{loc: loc, opts: opts, dragging: noDrag}
}

func (s Set) tree() *centerline.Tree { return s.loc.Tree() }

// clone returns a copy whose marker slice can be modified.
func (s Set) clone() Set {
	s.markers = slices.Clone(s.markers)
	return s
}

// Options returns the placement options of the set.
func (s Set) Options() Options { return s.opts }

// Len returns the number of markers.
func (s Set) Len() int { return len(s.markers) }

// Markers returns a copy of all markers in placement order.
func (s Set) Markers() []Marker { return slices.Clone(s.markers) }

// ByRole returns the markers with the given role in placement order.
func (s Set) ByRole(role Role) []Marker {
	return lo.Filter(s.markers, func(m Marker, _ int) bool { return m.Role == role })
}

// Get returns the marker with the given id.
func (s Set) Get(id int) (Marker, bool) {
	return lo.Find(s.markers, func(m Marker) bool { return m.ID == id })
}

// Inlet returns the inlet marker if one is placed.
func (s Set) Inlet() (Marker, bool) {
	return lo.Find(s.markers, func(m Marker) bool { return m.Role == RoleInlet })
}

// Dragging returns the marker currently being dragged.
func (s Set) Dragging() (Marker, bool) {
	if s.dragging == noDrag {
		return Marker{}, false
	}
	return s.Get(s.dragging)
}

// Position returns the world position of a marker.
func (s Set) Position(m Marker) v3.Vec {
	p, _ := s.tree().Position(m.Loc)
	return p
}

// resolve maps a pick to the nearest sample.
func (s Set) resolve(p Pick) (centerline.Location, error) {
	if !p.Hit {
		return centerline.Location{}, ErrPickMiss
	}
	loc, ok := s.loc.Nearest(p.Pos)
	if !ok {
		return centerline.Location{}, ErrPickMiss
	}
	return loc, nil
}

// Place adds a marker at the sample nearest to the pick.
func (s Set) Place(role Role, p Pick) (Set, Marker, error) {
	loc, err := s.resolve(p)
	if err != nil {
		return s, Marker{}, err
	}
	return s.PlaceAt(role, loc)
}

// PlaceAt adds a marker at loc.
func (s Set) PlaceAt(role Role, loc centerline.Location) (Set, Marker, error) {
	if !s.opts.Allowed(s.tree(), loc) {
		return s, Marker{}, fmt.Errorf("%w: (%s)", ErrPlacementRejected, loc)
	}
	if _, ok := s.Inlet(); ok && role == RoleInlet {
		return s, Marker{}, ErrDuplicateInlet
	}
	next := s.clone()
	m := Marker{ID: next.nextID, Role: role, Loc: loc}
	next.nextID++
	next.markers = append(next.markers, m)
	return next, m, nil
}

// BeginDrag starts dragging the marker with the given id.
func (s Set) BeginDrag(id int) (Set, error) {
	if _, ok := s.Get(id); !ok {
		return s, fmt.Errorf("%w: %d", ErrUnknownMarker, id)
	}
	s.dragging = id
	return s, nil
}

// Drag re-snaps the dragged marker to the sample nearest the pick. A miss or
// a location inside the end guard leaves the marker where it was.
func (s Set) Drag(p Pick) (Set, error) {
	if s.dragging == noDrag {
		return s, ErrNotDragging
	}
	loc, err := s.resolve(p)
	if err != nil {
		return s, err
	}
	if !s.opts.Allowed(s.tree(), loc) {
		return s, fmt.Errorf("%w: (%s)", ErrPlacementRejected, loc)
	}
	next := s.clone()
	i := slices.IndexFunc(next.markers, func(m Marker) bool { return m.ID == s.dragging })
	next.markers[i].Loc = loc
	return next, nil
}

// Release ends the drag. A non-inlet marker within RehomeWindow samples of
// the start of a non-root branch moves to the parent branch's split sample,
// pulled inside the end guard when the split lies within it.
func (s Set) Release() (Set, Release, error) {
	if s.dragging == noDrag {
		return s, Release{}, ErrNotDragging
	}
	next := s.clone()
	next.dragging = noDrag
	i := slices.IndexFunc(next.markers, func(m Marker) bool { return m.ID == s.dragging })
	m := &next.markers[i]
	r := Release{From: m.Loc}

	link, ok := s.tree().Parent(m.Loc.Branch)
	if ok && m.Role != RoleInlet && m.Loc.Index <= s.opts.RehomeWindow {
		m.Loc = s.opts.clampGuard(s.tree(), centerline.Location{Branch: link.Parent, Index: link.Split})
		if m.Loc.Index != link.Split {
			logging.Logger().Debug("re-homed marker clamped clear of the branch end",
				"marker", m.ID, "split", link.Split, "index", m.Loc.Index)
		}
		r.Rehomed = true
		r.Notify = !s.opts.NotifyOnce || !s.notified
		next.notified = true
		if r.Notify {
			logging.Logger().Warn("marker moved to parent branch to stay clear of the bifurcation",
				"marker", m.ID, "from", r.From.String(), "to", m.Loc.String())
		}
	}
	r.Marker = *m
	return next, r, nil
}

// Move is BeginDrag, Drag and Release in one step.
func (s Set) Move(id int, p Pick) (Set, Release, error) {
	next, err := s.BeginDrag(id)
	if err != nil {
		return s, Release{}, err
	}
	if next, err = next.Drag(p); err != nil {
		return s, Release{}, err
	}
	return next.Release()
}

// Remove deletes the marker with the given id. The inlet cannot be removed.
func (s Set) Remove(id int) (Set, error) {
	m, ok := s.Get(id)
	if !ok {
		return s, fmt.Errorf("%w: %d", ErrUnknownMarker, id)
	}
	if m.Role == RoleInlet {
		return s, ErrInletRemoval
	}
	next := s.clone()
	next.markers = slices.DeleteFunc(next.markers, func(m Marker) bool { return m.ID == id })
	if next.dragging == id {
		next.dragging = noDrag
	}
	return next, nil
}

// RemoveAll deletes every marker except the inlet.
func (s Set) RemoveAll() Set {
	next := s.clone()
	next.markers = slices.DeleteFunc(next.markers, func(m Marker) bool { return m.Role != RoleInlet })
	next.dragging = noDrag
	return next
}

// Closest returns the marker picked by p: the marker nearest to the pick's
// centerline sample, if within PickRadiusSq.
func (s Set) Closest(p Pick) (Marker, error) {
	loc, err := s.resolve(p)
	if err != nil {
		return Marker{}, err
	}
	q, _ := s.tree().Position(loc)
	i, ok := ClosestWithin(s.markers, func(m Marker) v3.Vec { return s.Position(m) }, q, s.opts.PickRadiusSq)
	if !ok {
		return Marker{}, ErrUnknownMarker
	}
	return s.markers[i], nil
}

// RemoveAt removes the marker selected by a pick.
func (s Set) RemoveAt(p Pick) (Set, error) {
	m, err := s.Closest(p)
	if err != nil {
		return s, err
	}
	return s.Remove(m.ID)
}

// ClosestWithin returns the index of the item whose position is nearest to q,
// provided its squared distance is at most radiusSq. Ties go to the earlier item.
func ClosestWithin[T any](items []T, pos func(T) v3.Vec, q v3.Vec, radiusSq float64) (int, bool) {
	best, bestD := -1, radiusSq
	for i, it := range items {
		if d := centerline.Dist2(pos(it), q); d <= bestD && (best < 0 || d < bestD) {
			best, bestD = i, d
		}
	}
	return best, best >= 0
}
