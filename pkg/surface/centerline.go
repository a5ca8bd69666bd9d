package surface

import (
	"slices"

	"github.com/chazu/xylem/pkg/centerline"
	"github.com/chazu/xylem/pkg/marker"
	"github.com/chazu/xylem/pkg/mesh"
	"github.com/chazu/xylem/pkg/vtp"
)

// isCut reports whether a marker role truncates a branch when capping.
func isCut(r marker.Role) bool {
	return r == marker.RoleOutlet || r == marker.RoleCut
}

// CappedCenterline returns one polyline per branch surviving the capping
// markers ms, in branch id order. The inlet's branch starts at the inlet
// index; a cut branch ends just before its cut index; branches amputated downstream
// of a cut are omitted. A child of a non-root branch is prefixed with its
// parent's exported samples up to the split, so it runs from the inlet.
func CappedCenterline(t *centerline.Tree, ms []marker.Marker) []centerline.RawPath {
	n := t.Len()
	start := make([]int, n)
	end := make([]int, n)
	removed := make([]bool, n)
	for id := range n {
		end[id] = t.Branch(id).Len()
	}
	for _, m := range ms {
		if !t.Valid(m.Loc) {
			continue
		}
		switch {
		case m.Role == marker.RoleInlet:
			start[m.Loc.Branch] = m.Loc.Index
		case isCut(m.Role):
			end[m.Loc.Branch] = min(end[m.Loc.Branch], m.Loc.Index)
			for _, c := range t.Downstream(m.Loc) {
				removed[c] = true
			}
		}
	}

	// offset[id] is the number of prefix samples joined ahead of branch id.
	offset := make([]int, n)
	exported := make(map[int]centerline.RawPath)
	var export func(id int) (centerline.RawPath, bool)
	export = func(id int) (centerline.RawPath, bool) {
		if p, ok := exported[id]; ok {
			return p, true
		}
		if removed[id] || end[id]-start[id] < 2 {
			return centerline.RawPath{}, false
		}
		br := t.Branch(id)
		var p centerline.RawPath
		if link, ok := t.Parent(id); ok {
			if _, grand := t.Parent(link.Parent); grand {
				if pp, ok := export(link.Parent); ok {
					cut := min(max(offset[link.Parent]+link.Split-start[link.Parent], 0), len(pp.Points))
					p.Points = slices.Clone(pp.Points[:cut])
					p.Radii = slices.Clone(pp.Radii[:cut])
				}
			}
		}
		offset[id] = len(p.Points)
		p.Points = append(p.Points, br.Points[start[id]:end[id]]...)
		p.Radii = append(p.Radii, br.Radii[start[id]:end[id]]...)
		exported[id] = p
		return p, true
	}

	var out []centerline.RawPath
	for id := range n {
		if p, ok := export(id); ok {
			out = append(out, p)
		}
	}
	return out
}

// CenterlinePolyData converts polylines to VTK PolyData with a radius array.
func CenterlinePolyData(paths []centerline.RawPath) *vtp.PolyData {
	pd := &vtp.PolyData{}
	radii := vtp.Array{Name: centerline.DefaultRadiusArray, Components: 1}
	for _, p := range paths {
		ids := make([]int, len(p.Points))
		for k, q := range p.Points {
			ids[k] = len(pd.Points)
			pd.Points = append(pd.Points, q)
			radii.Values = append(radii.Values, p.Radii[k])
		}
		pd.Lines = append(pd.Lines, ids)
	}
	pd.PointData = []vtp.Array{radii}
	return pd
}

// CenterlinePolylines converts polylines to OBJ line records.
func CenterlinePolylines(paths []centerline.RawPath) *mesh.Polylines {
	pd := CenterlinePolyData(paths)
	return &mesh.Polylines{Points: pd.Points, Lines: pd.Lines}
}
