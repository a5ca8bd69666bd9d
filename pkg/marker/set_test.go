package marker

import (
	"errors"
	"testing"

	v3 "github.com/deadsy/sdfx/vec/v3"

	"github.com/chazu/xylem/pkg/centerline"
)

// newTestSet returns an empty set over a Y bifurcation: a 60-sample trunk
// continuing as branch 0, and branch 1 splitting at 60.
func newTestSet(t *testing.T) Set {
	t.Helper()
	tree, err := centerline.NewBuilder(centerline.DefaultOptions()).Build(
		centerline.BifurcationPaths(60, 50, 1, 0.5, 8, 4))
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if link, _ := tree.Parent(1); link != (centerline.ParentLink{Parent: 0, Split: 60}) {
		t.Fatalf("fixture link = %v", link)
	}
	return NewSet(centerline.NewLocator(tree), DefaultOptions())
}

// at returns a pick on the sample at (b, i).
func at(t *testing.T, s Set, b, i int) Pick {
	t.Helper()
	p, err := s.tree().Position(centerline.Location{Branch: b, Index: i})
	if err != nil {
		t.Fatalf("Position: %v", err)
	}
	return Hit(p)
}

func mustPlace(t *testing.T, s Set, role Role, b, i int) (Set, Marker) {
	t.Helper()
	next, m, err := s.Place(role, at(t, s, b, i))
	if err != nil {
		t.Fatalf("Place(%v, %d, %d): %v", role, b, i, err)
	}
	return next, m
}

func TestPlaceSnapsToNearestSample(t *testing.T) {
	s := newTestSet(t)
	next, m, err := s.Place(RoleOutlet, Hit(v3.Vec{X: 30.2, Y: 0.4, Z: -0.3}))
	if err != nil {
		t.Fatalf("Place: %v", err)
	}
	if m.Loc != (centerline.Location{Branch: 0, Index: 30}) {
		t.Errorf("Loc = %v, want (0, 30)", m.Loc)
	}
	if next.Len() != 1 || s.Len() != 0 {
		t.Errorf("Len: next %d, original %d; want 1, 0", next.Len(), s.Len())
	}
}

func TestPlaceEndGuard(t *testing.T) {
	s := newTestSet(t)
	n := s.tree().Branch(0).Len()
	tests := []struct {
		index int
		ok    bool
	}{
		{0, false},
		{4, false},
		{5, true},
		{n - 5, true},
		{n - 4, false},
		{n - 1, false},
	}
	for _, tt := range tests {
		_, _, err := s.Place(RoleCut, at(t, s, 0, tt.index))
		if tt.ok && err != nil {
			t.Errorf("index %d: unexpected error %v", tt.index, err)
		}
		if !tt.ok && !errors.Is(err, ErrPlacementRejected) {
			t.Errorf("index %d: error = %v, want ErrPlacementRejected", tt.index, err)
		}
	}
}

func TestPlaceMiss(t *testing.T) {
	s := newTestSet(t)
	next, _, err := s.Place(RoleOutlet, Miss)
	if !errors.Is(err, ErrPickMiss) {
		t.Fatalf("error = %v, want ErrPickMiss", err)
	}
	if next.Len() != 0 {
		t.Error("a miss changed the set")
	}
}

func TestPlaceSecondInlet(t *testing.T) {
	s, _ := mustPlace(t, newTestSet(t), RoleInlet, 0, 15)
	if _, _, err := s.Place(RoleInlet, at(t, s, 0, 20)); !errors.Is(err, ErrDuplicateInlet) {
		t.Errorf("error = %v, want ErrDuplicateInlet", err)
	}
}

func TestReleaseRehomesToParentSplit(t *testing.T) {
	s, m := mustPlace(t, newTestSet(t), RoleOutlet, 1, 40)

	next, rel, err := s.Move(m.ID, at(t, s, 1, 10))
	if err != nil {
		t.Fatalf("Move: %v", err)
	}
	want := centerline.Location{Branch: 0, Index: 60}
	if !rel.Rehomed || rel.Marker.Loc != want {
		t.Fatalf("release = %+v, want re-homed to %v", rel, want)
	}
	if rel.From != (centerline.Location{Branch: 1, Index: 10}) {
		t.Errorf("From = %v, want (1, 10)", rel.From)
	}
	if !rel.Notify {
		t.Error("first re-homing must notify")
	}
	if got, _ := next.Get(m.ID); got.Loc != want {
		t.Errorf("stored Loc = %v, want %v", got.Loc, want)
	}

	// A second re-homing is silent with NotifyOnce.
	next, m2 := mustPlace(t, next, RoleOutlet, 1, 40)
	_, rel, err = next.Move(m2.ID, at(t, next, 1, 30))
	if err != nil {
		t.Fatalf("Move: %v", err)
	}
	if !rel.Rehomed || rel.Notify {
		t.Errorf("second release = %+v, want re-homed without notification", rel)
	}
}

func TestReleaseClampsSplitInsideEndGuard(t *testing.T) {
	line := func(n int, origin, dir v3.Vec, parent, split int) centerline.Branch {
		pts := make([]v3.Vec, n)
		radii := make([]float64, n)
		for i := range n {
			pts[i] = origin.Add(dir.MulScalar(float64(i)))
			radii[i] = 1
		}
		return centerline.Branch{Points: pts, Radii: radii, Arc: centerline.ArcLength(pts), Parent: parent, Split: split}
	}
	tree, err := centerline.New([]centerline.Branch{
		line(40, v3.Vec{}, v3.Vec{X: 1}, centerline.NoParent, 0),
		line(30, v3.Vec{X: 2, Y: 1}, v3.Vec{Y: 1}, 0, 2),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	s := NewSet(centerline.NewLocator(tree), DefaultOptions())
	s, m := mustPlace(t, s, RoleOutlet, 1, 20)

	next, rel, err := s.Move(m.ID, at(t, s, 1, 10))
	if err != nil {
		t.Fatalf("Move: %v", err)
	}
	want := centerline.Location{Branch: 0, Index: DefaultOptions().EndGuard + 1}
	if !rel.Rehomed || rel.Marker.Loc != want {
		t.Fatalf("release = %+v, want re-homed to %v", rel, want)
	}
	got, _ := next.Get(m.ID)
	if !next.Options().Allowed(tree, got.Loc) {
		t.Errorf("re-homed marker at %v is inside the end guard", got.Loc)
	}
}

func TestReleaseOutsideWindowStays(t *testing.T) {
	s, m := mustPlace(t, newTestSet(t), RoleOutlet, 1, 40)
	_, rel, err := s.Move(m.ID, at(t, s, 1, 31))
	if err != nil {
		t.Fatalf("Move: %v", err)
	}
	if rel.Rehomed || rel.Marker.Loc != (centerline.Location{Branch: 1, Index: 31}) {
		t.Errorf("release = %+v, want to stay at (1, 31)", rel)
	}
}

func TestInletIsNeverRehomed(t *testing.T) {
	s, m := mustPlace(t, newTestSet(t), RoleInlet, 0, 15)
	_, rel, err := s.Move(m.ID, at(t, s, 1, 10))
	if err != nil {
		t.Fatalf("Move: %v", err)
	}
	if rel.Rehomed || rel.Marker.Loc != (centerline.Location{Branch: 1, Index: 10}) {
		t.Errorf("release = %+v, want inlet to stay at (1, 10)", rel)
	}
}

func TestDragStateMachine(t *testing.T) {
	s, m := mustPlace(t, newTestSet(t), RoleOutlet, 0, 30)

	if _, err := s.Drag(at(t, s, 0, 40)); !errors.Is(err, ErrNotDragging) {
		t.Errorf("Drag without BeginDrag: %v", err)
	}
	if _, _, err := s.Release(); !errors.Is(err, ErrNotDragging) {
		t.Errorf("Release without BeginDrag: %v", err)
	}
	if _, err := s.BeginDrag(99); !errors.Is(err, ErrUnknownMarker) {
		t.Errorf("BeginDrag(99): %v", err)
	}

	d, err := s.BeginDrag(m.ID)
	if err != nil {
		t.Fatalf("BeginDrag: %v", err)
	}
	if got, ok := d.Dragging(); !ok || got.ID != m.ID {
		t.Errorf("Dragging() = %v, %v", got, ok)
	}
	// Re-snapping is idempotent for the same pick.
	for range 3 {
		if d, err = d.Drag(at(t, d, 0, 45)); err != nil {
			t.Fatalf("Drag: %v", err)
		}
	}
	// Rejected moves keep the last valid location.
	if _, err := d.Drag(at(t, d, 0, 2)); !errors.Is(err, ErrPlacementRejected) {
		t.Errorf("Drag into guard: %v", err)
	}
	if _, err := d.Drag(Miss); !errors.Is(err, ErrPickMiss) {
		t.Errorf("Drag miss: %v", err)
	}
	d, rel, err := d.Release()
	if err != nil {
		t.Fatalf("Release: %v", err)
	}
	if rel.Marker.Loc != (centerline.Location{Branch: 0, Index: 45}) {
		t.Errorf("released at %v, want (0, 45)", rel.Marker.Loc)
	}
	if _, ok := d.Dragging(); ok {
		t.Error("still dragging after release")
	}
	if got, _ := s.Get(m.ID); got.Loc.Index != 30 {
		t.Errorf("original set changed to %v", got.Loc)
	}
}

func TestRemove(t *testing.T) {
	s, inlet := mustPlace(t, newTestSet(t), RoleInlet, 0, 15)
	s, out := mustPlace(t, s, RoleOutlet, 0, 90)
	s, _ = mustPlace(t, s, RoleOutlet, 1, 30)

	if _, err := s.Remove(inlet.ID); !errors.Is(err, ErrInletRemoval) {
		t.Errorf("Remove(inlet) = %v, want ErrInletRemoval", err)
	}
	if _, err := s.Remove(42); !errors.Is(err, ErrUnknownMarker) {
		t.Errorf("Remove(42) = %v, want ErrUnknownMarker", err)
	}
	next, err := s.Remove(out.ID)
	if err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if next.Len() != 2 {
		t.Errorf("Len() = %d, want 2", next.Len())
	}

	all := s.RemoveAll()
	if all.Len() != 1 {
		t.Fatalf("RemoveAll left %d markers, want 1", all.Len())
	}
	if _, ok := all.Inlet(); !ok {
		t.Error("RemoveAll removed the inlet")
	}
}

func TestClosest(t *testing.T) {
	s, _ := mustPlace(t, newTestSet(t), RoleBound, 0, 30)
	s, second := mustPlace(t, s, RoleBound, 0, 50)

	m, err := s.Closest(at(t, s, 0, 53))
	if err != nil {
		t.Fatalf("Closest: %v", err)
	}
	if m.ID != second.ID {
		t.Errorf("Closest = %v, want marker %d", m, second.ID)
	}
	if _, err := s.Closest(at(t, s, 0, 40)); !errors.Is(err, ErrUnknownMarker) {
		t.Errorf("Closest far from markers = %v, want ErrUnknownMarker", err)
	}

	next, err := s.RemoveAt(at(t, s, 0, 28))
	if err != nil {
		t.Fatalf("RemoveAt: %v", err)
	}
	if next.Len() != 1 || len(next.ByRole(RoleBound)) != 1 {
		t.Errorf("RemoveAt left %v", next.Markers())
	}
}

func TestSuggest(t *testing.T) {
	s := newTestSet(t)
	next, err := s.Suggest()
	if err != nil {
		t.Fatalf("Suggest: %v", err)
	}
	inlet, ok := next.Inlet()
	if !ok || inlet.Loc != (centerline.Location{Branch: 0, Index: 15}) {
		t.Errorf("inlet = %v, %v", inlet, ok)
	}
	outlets := next.ByRole(RoleOutlet)
	if len(outlets) != 2 {
		t.Fatalf("got %d outlets, want 2", len(outlets))
	}
	for _, o := range outlets {
		n := s.tree().Branch(o.Loc.Branch).Len()
		if o.Loc.Index != n-20 {
			t.Errorf("outlet %v, want index %d", o.Loc, n-20)
		}
	}

	// Suggesting again keeps the inlet and replaces the outlets.
	again, err := next.Suggest()
	if err != nil {
		t.Fatalf("Suggest: %v", err)
	}
	if again.Len() != 3 {
		t.Errorf("Len() = %d, want 3", again.Len())
	}
	if in2, _ := again.Inlet(); in2.ID != inlet.ID {
		t.Errorf("inlet id changed from %d to %d", inlet.ID, in2.ID)
	}
}

func TestRoleText(t *testing.T) {
	for _, r := range []Role{RoleInlet, RoleOutlet, RoleBound, RoleExclude, RoleCut} {
		got, err := ParseRole(r.String())
		if err != nil || got != r {
			t.Errorf("ParseRole(%q) = %v, %v", r, got, err)
		}
	}
	if _, err := ParseRole("bifurcation"); err == nil {
		t.Error("expected an error for an unknown role")
	}
	if got := Role(12).String(); got != "Role(12)" {
		t.Errorf("String() = %q", got)
	}
}
