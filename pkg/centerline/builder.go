package centerline

import (
	"fmt"
	"slices"
	"sort"

	v3 "github.com/deadsy/sdfx/vec/v3"

	"github.com/chazu/xylem/pkg/logging"
)

// Options configures topology reconstruction.
type Options struct {
	// MinBranchLength is the minimal arc length span (mm) of a kept branch.
	MinBranchLength float64
	// EndCutoff is the arc length (mm) removed from the tail of every branch.
	EndCutoff float64
	// SplitTolerance is the per-coordinate tolerance for shared samples.
	SplitTolerance float64
}

// DefaultOptions returns the reconstruction defaults.
func DefaultOptions() Options {
	return Options{
		MinBranchLength: 20,
		EndCutoff:       1,
		SplitTolerance:  1e-6,
	}
}

// Builder turns raw traced paths into a Tree.
type Builder struct {
	opts Options
}

// NewBuilder returns a Builder using opts.
func NewBuilder(opts Options) *Builder {
	return &Builder{opts: opts}
}

// work is a branch under construction. Arc values stay in raw path
// coordinates until the final rebase.
type work struct {
	source  int
	points  []v3.Vec
	radii   []float64
	arc     []float64
	parent  int
	split   int
	dropped bool
}

func (w *work) span() float64 { return w.arc[len(w.arc)-1] - w.arc[0] }

func (w *work) trimHead(n int) {
	w.points = w.points[n:]
	w.radii = w.radii[n:]
	w.arc = w.arc[n:]
}

// Build reconstructs the branch tree. Builds are deterministic: the same
// input always yields the same tree.
func (b *Builder) Build(paths []RawPath) (*Tree, error) {
	if len(paths) == 0 {
		return nil, ErrNoBranches
	}
	ws := make([]*work, len(paths))
	for i, p := range paths {
		if len(p.Points) < 2 || len(p.Radii) != len(p.Points) {
			return nil, fmt.Errorf("%w: path %d has %d points and %d radii", ErrInvalidPath, i, len(p.Points), len(p.Radii))
		}
		ws[i] = &work{
			source: i,
			points: slices.Clone(p.Points),
			radii:  slices.Clone(p.Radii),
			arc:    ArcLength(p.Points),
			parent: NoParent,
		}
	}

	if err := b.link(ws); err != nil {
		return nil, err
	}
	b.dropDegenerate(ws)

	branches, dropped := compact(ws)
	if len(branches) == 0 {
		return nil, ErrNoBranches
	}
	b.cutTails(branches)

	t, err := New(branches)
	if err != nil {
		return nil, err
	}
	t.Dropped = dropped
	logging.Logger().Debug("centerline built", "paths", len(paths), "branches", t.Len(), "dropped", len(dropped))
	return t, nil
}

// link compares every ordered pair (i, j), i < j, and trims the prefix that
// j shares with i. Comparisons use the already trimmed sequences, so a later
// candidate that shares j's remaining prefix refines the link to a deeper
// branch.
func (b *Builder) link(ws []*work) error {
	log := logging.Logger()
	for i := range ws {
		if ws[i].dropped {
			continue
		}
		for j := i + 1; j < len(ws); j++ {
			if ws[j].dropped {
				continue
			}
			split := Divergence(ws[i].points, ws[j].points, b.opts.SplitTolerance)
			if split == 0 {
				continue
			}
			if split >= len(ws[j].points) {
				ws[j].dropped = true
				log.Debug("dropping path contained in another", "path", j, "container", i)
				continue
			}
			if split > len(ws[i].points)-2 {
				return &TopologyError{Findings: []ValidationError{{
					Branch:   j,
					Message:  fmt.Sprintf("path %d diverges from path %d at index %d, past the end of the parent (%d samples)", j, i, split, len(ws[i].points)),
					Severity: SeverityError,
				}}}
			}
			ws[j].parent = i
			ws[j].split = split
			ws[j].trimHead(split)
			log.Debug("trimmed shared prefix", "path", j, "parent", i, "split", split)
		}
	}
	return nil
}

// dropDegenerate removes branches shorter than MinBranchLength, one at a
// time in id order. Children of a removed branch take over its samples up to
// their split and inherit its parent link.
func (b *Builder) dropDegenerate(ws []*work) {
	log := logging.Logger()
	for {
		idx := slices.IndexFunc(ws, func(w *work) bool {
			return !w.dropped && w.span() < b.opts.MinBranchLength
		})
		if idx < 0 {
			return
		}
		short := ws[idx]
		for _, c := range ws {
			if c.dropped || c.parent != idx {
				continue
			}
			c.points = append(slices.Clone(short.points[:c.split]), c.points...)
			c.radii = append(slices.Clone(short.radii[:c.split]), c.radii...)
			c.arc = append(slices.Clone(short.arc[:c.split]), c.arc...)
			c.parent = short.parent
			c.split = short.split
			log.Debug("spliced child into degenerate parent's place", "path", c.source, "parent", short.parent)
		}
		short.dropped = true
		log.Debug("dropping degenerate branch", "path", short.source, "span", short.span())
	}
}

// compact assigns dense ids to surviving branches, remaps parent links and
// rebases arc length to start at 0.
func compact(ws []*work) ([]Branch, []int) {
	ids := make(map[int]int, len(ws))
	var dropped []int
	for i, w := range ws {
		if w.dropped {
			dropped = append(dropped, i)
			continue
		}
		ids[i] = len(ids)
	}

	branches := make([]Branch, 0, len(ids))
	for i, w := range ws {
		if w.dropped {
			continue
		}
		parent := NoParent
		if w.parent != NoParent {
			parent = ids[w.parent]
		}
		arc := make([]float64, len(w.arc))
		for k, a := range w.arc {
			arc[k] = a - w.arc[0]
		}
		branches = append(branches, Branch{
			ID:     ids[i],
			Source: w.source,
			Points: w.points,
			Radii:  w.radii,
			Arc:    arc,
			Parent: parent,
			Split:  w.split,
		})
	}
	return branches, dropped
}

// cutTails removes EndCutoff of arc length from the end of every branch.
// A branch keeps at least two samples and never loses the sample a child
// splits from.
func (b *Builder) cutTails(branches []Branch) {
	if b.opts.EndCutoff <= 0 {
		return
	}
	keep := make([]int, len(branches))
	for i := range branches {
		keep[i] = 2
	}
	for i := range branches {
		if p := branches[i].Parent; p != NoParent {
			keep[p] = max(keep[p], branches[i].Split+2)
		}
	}
	for i := range branches {
		br := &branches[i]
		end := br.Arc[len(br.Arc)-1] - b.opts.EndCutoff
		stop := sort.Search(br.Len(), func(k int) bool { return br.Arc[k] > end })
		stop = min(max(stop, keep[i]), br.Len())
		br.Points = br.Points[:stop]
		br.Radii = br.Radii[:stop]
		br.Arc = br.Arc[:stop]
	}
}
