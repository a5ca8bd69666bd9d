package surface

import (
	"cmp"
	"slices"

	v3 "github.com/deadsy/sdfx/vec/v3"
	"github.com/samber/lo"

	"github.com/chazu/xylem/pkg/clip"
	"github.com/chazu/xylem/pkg/kernel"
	"github.com/chazu/xylem/pkg/logging"
	"github.com/chazu/xylem/pkg/mesh"
)

// DefaultHoleSize is the largest boundary loop, as centroid-to-vertex
// distance in mm, that FillHoles closes.
const DefaultHoleSize = 1000.0

// Options tunes the clip and repair pipeline.
type Options struct {
	HoleSize float64
	// Kernel, when set, compiles clip regions so Clip can skip the faces
	// outside the bounding box of the removed material.
	Kernel kernel.Kernel
}

// DefaultOptions returns the standard pipeline settings.
func DefaultOptions() Options {
	return Options{HoleSize: DefaultHoleSize}
}

// Extractor selects one connected region of a clipped mesh.
type Extractor func(*mesh.Mesh) (*mesh.Mesh, error)

// Largest extracts the largest region.
func Largest() Extractor { return ExtractLargest }

// Closest extracts the region nearest to p.
func Closest(p v3.Vec) Extractor {
	return func(m *mesh.Mesh) (*mesh.Mesh, error) { return ExtractClosest(m, p) }
}

// Patch is one filled hole of a Result.
type Patch struct {
	Faces  []int   // face indices into Result.Closed
	Anchor int     // index of the matched anchor, -1 if none
	Area   float64 // summed face area
}

// Result is a clipped, extracted and hole-filled surface.
type Result struct {
	Open    *mesh.Mesh // extracted region before filling
	Closed  *mesh.Mesh // Open plus the fill faces, consistently oriented
	Patches []Patch    // ordered by anchor, then by first face
}

// PatchMesh returns patch i as a standalone mesh.
func (r *Result) PatchMesh(i int) *mesh.Mesh {
	m, _ := r.Closed.Subset(r.Patches[i].Faces)
	return m
}

// AnchorArea returns the summed area of the patches matched to anchor.
func (r *Result) AnchorArea(anchor int) float64 {
	return lo.SumBy(r.Patches, func(p Patch) float64 {
		if p.Anchor == anchor {
			return p.Area
		}
		return 0
	})
}

// RegionField returns r as a clip field. With a kernel the field is Boxed by
// the bounding box of the compiled region. A region the kernel rejects, such
// as one holding a zero-radius sphere, is evaluated unboxed.
func RegionField(r clip.Region, k kernel.Kernel) Field {
	if k == nil {
		return r
	}
	s, err := clip.Compile(k, r)
	if err != nil {
		logging.Logger().Warn("clip region not compiled, evaluating every vertex", "error", err)
		return r
	}
	bmin, bmax := s.BoundingBox()
	return Boxed{
		Field: r,
		Min:   v3.Vec{X: bmin[0], Y: bmin[1], Z: bmin[2]},
		Max:   v3.Vec{X: bmax[0], Y: bmax[1], Z: bmax[2]},
	}
}

// Process clips m against f, keeps one region chosen by extract, fills its
// holes, orients it, restores the original normals and matches every fill
// patch to the nearest anchor point.
func Process(m *mesh.Mesh, f Field, extract Extractor, anchors []v3.Vec, opts Options) (*Result, error) {
	clipped, err := Clip(m, f)
	if err != nil {
		return nil, err
	}
	open, err := extract(clipped)
	if err != nil {
		return nil, err
	}
	closed, added := FillHoles(open, opts.HoleSize)
	Orient(closed)
	RestoreNormals(closed, open)

	labels := LabelPatches(closed, added)
	matched := MatchPatches(closed, labels, anchors)
	patches := make([]Patch, len(labels))
	for i, faces := range labels {
		patches[i] = Patch{Faces: faces, Anchor: matched[i], Area: closed.AreaOf(faces)}
	}
	slices.SortStableFunc(patches, func(a, b Patch) int {
		if c := cmp.Compare(a.Anchor, b.Anchor); c != 0 {
			return c
		}
		return cmp.Compare(a.Faces[0], b.Faces[0])
	})
	return &Result{Open: open, Closed: closed, Patches: patches}, nil
}
