package metrics

import (
	"fmt"
	"slices"

	v3 "github.com/deadsy/sdfx/vec/v3"
	"github.com/samber/lo"

	"github.com/chazu/xylem/pkg/centerline"
	"github.com/chazu/xylem/pkg/marker"
)

// Predefined landmark names, in anatomical order.
var Predefined = []string{
	"Sinotubular junction",
	"Mid-ascending aorta",
	"Distal ascending aorta",
	"Aortic arch",
	"Proximal descending aorta",
	"Mid-descending aorta",
}

// LandmarkPickRadiusSq is the squared distance within which a pick selects
// a landmark for removal.
const LandmarkPickRadiusSq = 10.0

// Landmark is a named diameter location.
type Landmark struct {
	Name string              `json:"name"`
	Loc  centerline.Location `json:"loc"`
}

// Landmarks is an ordered set of landmarks with unique names.
type Landmarks struct {
	items []Landmark
}

// List returns the landmarks in insertion order.
func (l *Landmarks) List() []Landmark { return slices.Clone(l.items) }

// Len returns the number of landmarks.
func (l *Landmarks) Len() int { return len(l.items) }

// Get returns the landmark with the given name.
func (l *Landmarks) Get(name string) (Landmark, bool) {
	return lo.Find(l.items, func(m Landmark) bool { return m.Name == name })
}

// Set adds a landmark. Each name can be set once.
func (l *Landmarks) Set(t *centerline.Tree, name string, loc centerline.Location) error {
	if !t.Valid(loc) {
		return fmt.Errorf("%w: (%s)", centerline.ErrInvalidLocation, loc)
	}
	if _, ok := l.Get(name); ok {
		return fmt.Errorf("%w: %q", ErrLandmarkExists, name)
	}
	l.items = append(l.items, Landmark{Name: name, Loc: loc})
	return nil
}

// Remove deletes the landmark with the given name.
func (l *Landmarks) Remove(name string) error {
	i := slices.IndexFunc(l.items, func(m Landmark) bool { return m.Name == name })
	if i < 0 {
		return fmt.Errorf("%w: %q", ErrUnknownLandmark, name)
	}
	l.items = slices.Delete(l.items, i, i+1)
	return nil
}

// RemoveAt deletes the landmark nearest to a pick within
// LandmarkPickRadiusSq and returns its name.
func (l *Landmarks) RemoveAt(t *centerline.Tree, p marker.Pick) (string, error) {
	if !p.Hit {
		return "", marker.ErrPickMiss
	}
	pos := func(m Landmark) v3.Vec {
		q, _ := t.Position(m.Loc)
		return q
	}
	i, ok := marker.ClosestWithin(l.items, pos, p.Pos, LandmarkPickRadiusSq)
	if !ok {
		return "", ErrUnknownLandmark
	}
	name := l.items[i].Name
	l.items = slices.Delete(l.items, i, i+1)
	return name, nil
}

// Unset returns the predefined names not yet set.
func (l *Landmarks) Unset() []string {
	return lo.Filter(Predefined, func(name string, _ int) bool {
		_, ok := l.Get(name)
		return !ok
	})
}
