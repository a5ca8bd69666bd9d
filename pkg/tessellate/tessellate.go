// Package tessellate walks a centerline tree and produces synthetic lumen
// meshes using a geometry kernel. Each branch becomes a chain of tapered
// capsules through its samples; the lumen is the union of all chains.
package tessellate

import (
	"errors"
	"fmt"

	"github.com/chazu/xylem/pkg/centerline"
	"github.com/chazu/xylem/pkg/kernel"
	"github.com/chazu/xylem/pkg/logging"
	"github.com/chazu/xylem/pkg/mesh"
)

// ErrEmptyTree is returned when there is nothing to tessellate.
var ErrEmptyTree = errors.New("tessellate: tree has no branches")

// Options controls how samples become capsules.
type Options struct {
	// Stride is the number of samples spanned by one capsule. Branch ends
	// are always included.
	Stride int
	// MinRadius replaces smaller or missing sample radii.
	MinRadius float64
}

// DefaultOptions returns one capsule per sample pair with a 0.5 mm floor.
func DefaultOptions() Options {
	return Options{Stride: 1, MinRadius: 0.5}
}

func (o Options) stride() int {
	if o.Stride < 1 {
		return 1
	}
	return o.Stride
}

func (o Options) radius(b *centerline.Branch, i int) float64 {
	if i < len(b.Radii) && b.Radii[i] > o.MinRadius {
		return b.Radii[i]
	}
	return o.MinRadius
}

// stops returns the sample indices a branch's capsule chain passes through.
func (o Options) stops(n int) []int {
	var idx []int
	for i := 0; i < n-1; i += o.stride() {
		idx = append(idx, i)
	}
	return append(idx, n-1)
}

// branchSolid builds the capsule chain of one branch.
func branchSolid(b *centerline.Branch, k kernel.Kernel, opts Options) kernel.Solid {
	stops := opts.stops(b.Len())
	if len(stops) == 1 {
		return k.Sphere(b.Points[0], opts.radius(b, 0))
	}
	parts := make([]kernel.Solid, 0, len(stops)-1)
	for j := 1; j < len(stops); j++ {
		i0, i1 := stops[j-1], stops[j]
		parts = append(parts, k.Capsule(b.Points[i0], b.Points[i1], opts.radius(b, i0), opts.radius(b, i1)))
	}
	return k.Union(parts...)
}

// Solid returns the union of every branch's capsule chain. Children start at
// their parent's split sample, so the chains join without gaps.
func Solid(t *centerline.Tree, k kernel.Kernel, opts Options) (kernel.Solid, error) {
	if t == nil || t.Len() == 0 {
		return nil, ErrEmptyTree
	}
	parts := make([]kernel.Solid, t.Len())
	for id := range t.Len() {
		parts[id] = branchSolid(t.Branch(id), k, opts)
	}
	return k.Union(parts...), nil
}

// Tessellate meshes the whole lumen of t and welds the result.
func Tessellate(t *centerline.Tree, k kernel.Kernel, opts Options) (*mesh.Mesh, error) {
	s, err := Solid(t, k, opts)
	if err != nil {
		return nil, err
	}
	km, err := k.ToMesh(s)
	if err != nil {
		return nil, fmt.Errorf("tessellate: ToMesh failed: %w", err)
	}
	km.Label = "lumen"
	m := mesh.FromKernel(km)
	logging.Logger().Info("lumen tessellated", "branches", t.Len(), "faces", m.NumFaces())
	return m, nil
}

// Branches meshes every branch on its own, in id order. The kernel meshes
// are labeled "branch <id>".
func Branches(t *centerline.Tree, k kernel.Kernel, opts Options) ([]*kernel.Mesh, error) {
	if t == nil || t.Len() == 0 {
		return nil, ErrEmptyTree
	}
	meshes := make([]*kernel.Mesh, 0, t.Len())
	for _, b := range t.Branches() {
		km, err := k.ToMesh(branchSolid(&b, k, opts))
		if err != nil {
			return nil, fmt.Errorf("tessellate: ToMesh failed for branch %d: %w", b.ID, err)
		}
		km.Label = fmt.Sprintf("branch %d", b.ID)
		meshes = append(meshes, km)
	}
	return meshes, nil
}
