package tessellate_test

import (
	"errors"
	"math"
	"slices"
	"testing"

	"github.com/chazu/xylem/pkg/centerline"
	"github.com/chazu/xylem/pkg/kernel"
	"github.com/chazu/xylem/pkg/kernel/sdfx"
	"github.com/chazu/xylem/pkg/mesh"
	"github.com/chazu/xylem/pkg/tessellate"
)

// newKernel returns a coarse sdfx kernel for testing.
func newKernel() kernel.Kernel {
	return sdfx.NewWithCells(64)
}

func build(t *testing.T, paths ...centerline.RawPath) *centerline.Tree {
	t.Helper()
	opts := centerline.DefaultOptions()
	opts.EndCutoff = 0
	tree, err := centerline.NewBuilder(opts).Build(paths)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return tree
}

func TestStraightLumen(t *testing.T) {
	tree := build(t, centerline.StraightPath(40, 1, 5))

	m, err := tessellate.Tessellate(tree, newKernel(), tessellate.DefaultOptions())
	if err != nil {
		t.Fatalf("Tessellate: %v", err)
	}
	if m.IsEmpty() {
		t.Fatal("mesh is empty")
	}
	// Cylinder of length 39 plus two hemispherical end caps.
	want := math.Pi*25*39 + 4.0/3*math.Pi*125
	if got := m.Volume(); math.Abs(got-want)/want > 0.08 {
		t.Errorf("volume = %f, want ~%f", got, want)
	}
	lo, hi := m.Bounds()
	if math.Abs(lo.X+5) > 0.5 || math.Abs(hi.X-44) > 0.5 {
		t.Errorf("x extent = [%f, %f], want ~[-5, 44]", lo.X, hi.X)
	}
	if math.Abs(hi.Y-5) > 0.5 || math.Abs(hi.Z-5) > 0.5 {
		t.Errorf("radial extent = %f %f, want ~5", hi.Y, hi.Z)
	}
}

func TestStrideKeepsEnds(t *testing.T) {
	tree := build(t, centerline.StraightPath(40, 1, 5))
	k := newKernel()

	fine, err := tessellate.Solid(tree, k, tessellate.DefaultOptions())
	if err != nil {
		t.Fatalf("Solid: %v", err)
	}
	coarse, err := tessellate.Solid(tree, k, tessellate.Options{Stride: 7})
	if err != nil {
		t.Fatalf("Solid: %v", err)
	}
	for _, x := range []float64{0, 13, 39} {
		p := tree.Branch(0).Points[int(x)]
		if d := fine.Evaluate(p); math.Abs(d+5) > 1e-9 {
			t.Errorf("fine Evaluate(x=%g) = %f, want -5", x, d)
		}
		if d := coarse.Evaluate(p); math.Abs(d+5) > 1e-9 {
			t.Errorf("coarse Evaluate(x=%g) = %f, want -5", x, d)
		}
	}
}

func TestBifurcationBranches(t *testing.T) {
	tree := build(t, centerline.BifurcationPaths(30, 40, 1, 0.5, 4, 3)...)
	if tree.Len() != 2 {
		t.Fatalf("tree has %d branches, want 2", tree.Len())
	}
	k := newKernel()

	parts, err := tessellate.Branches(tree, k, tessellate.DefaultOptions())
	if err != nil {
		t.Fatalf("Branches: %v", err)
	}
	if len(parts) != 2 {
		t.Fatalf("got %d branch meshes, want 2", len(parts))
	}
	var sum float64
	for i, km := range parts {
		if km.IsEmpty() {
			t.Errorf("branch %d mesh is empty", i)
		}
		if want := []string{"branch 0", "branch 1"}[i]; km.Label != want {
			t.Errorf("label = %q, want %q", km.Label, want)
		}
		sum += mesh.FromKernel(km).Volume()
	}

	whole, err := tessellate.Tessellate(tree, k, tessellate.DefaultOptions())
	if err != nil {
		t.Fatalf("Tessellate: %v", err)
	}
	if v := whole.Volume(); v >= sum || v <= 0 {
		t.Errorf("union volume %f should be positive and below the branch sum %f", v, sum)
	}

	// Both limb ends lie inside the lumen bounds.
	lo, hi := whole.Bounds()
	for _, b := range tree.Branches() {
		end := b.Points[b.Len()-1]
		if end.Y < lo.Y || end.Y > hi.Y || end.X > hi.X {
			t.Errorf("branch %d end %v outside bounds %v %v", b.ID, end, lo, hi)
		}
	}
}

func TestEmptyTree(t *testing.T) {
	k := newKernel()
	if _, err := tessellate.Tessellate(nil, k, tessellate.DefaultOptions()); !errors.Is(err, tessellate.ErrEmptyTree) {
		t.Errorf("Tessellate(nil) err = %v", err)
	}
	if _, err := tessellate.Branches(nil, k, tessellate.DefaultOptions()); !errors.Is(err, tessellate.ErrEmptyTree) {
		t.Errorf("Branches(nil) err = %v", err)
	}
}

func TestMinRadius(t *testing.T) {
	p := centerline.StraightPath(30, 1, 0)
	tree := build(t, p)
	s, err := tessellate.Solid(tree, newKernel(), tessellate.Options{Stride: 1, MinRadius: 2})
	if err != nil {
		t.Fatalf("Solid: %v", err)
	}
	if d := s.Evaluate(tree.Branch(0).Points[4]); math.Abs(d+2) > 1e-9 {
		t.Errorf("Evaluate = %f, want -2 from the radius floor", d)
	}
	if !slices.Equal(tree.Branch(0).Radii, p.Radii) {
		t.Error("tessellation must not modify the tree")
	}
}
