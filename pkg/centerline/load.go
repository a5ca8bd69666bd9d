package centerline

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	v3 "github.com/deadsy/sdfx/vec/v3"

	"github.com/chazu/xylem/pkg/vtp"
)

// DefaultRadiusArray is the point data array holding the inscribed sphere radius.
const DefaultRadiusArray = "MaximumInscribedSphereRadius"

// PathsFromPolyData extracts one raw path per polyline, reading radii from
// the named point data array.
func PathsFromPolyData(pd *vtp.PolyData, radiusArray string) ([]RawPath, error) {
	arr, ok := pd.Array(radiusArray)
	if !ok {
		return nil, fmt.Errorf("%w: point data array %q not found", ErrInvalidPath, radiusArray)
	}
	if len(arr.Values) < len(pd.Points)*arr.Components {
		return nil, fmt.Errorf("%w: array %q has %d values for %d points", ErrInvalidPath, radiusArray, len(arr.Values), len(pd.Points))
	}
	paths := make([]RawPath, len(pd.Lines))
	for i, ids := range pd.Lines {
		p := RawPath{Points: make([]v3.Vec, len(ids)), Radii: make([]float64, len(ids))}
		for k, id := range ids {
			p.Points[k] = pd.Points[id]
			p.Radii[k] = arr.Values[id*arr.Components]
		}
		paths[i] = p
	}
	return paths, nil
}

// jsonPath is the JSON form of one raw path.
type jsonPath struct {
	Points [][3]float64 `json:"points"`
	Radii  []float64    `json:"radii"`
}

// ReadPathsJSON decodes raw paths from {"paths": [{"points": [...], "radii": [...]}]}.
func ReadPathsJSON(r io.Reader) ([]RawPath, error) {
	var doc struct {
		Paths []jsonPath `json:"paths"`
	}
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("centerline: decode paths: %w", err)
	}
	paths := make([]RawPath, len(doc.Paths))
	for i, jp := range doc.Paths {
		paths[i] = RawPath{Points: make([]v3.Vec, len(jp.Points)), Radii: jp.Radii}
		for k, p := range jp.Points {
			paths[i].Points[k] = v3.Vec{X: p[0], Y: p[1], Z: p[2]}
		}
	}
	return paths, nil
}

// WritePathsJSON encodes raw paths in the ReadPathsJSON format.
func WritePathsJSON(w io.Writer, paths []RawPath) error {
	doc := struct {
		Paths []jsonPath `json:"paths"`
	}{Paths: make([]jsonPath, len(paths))}
	for i, p := range paths {
		jp := jsonPath{Points: make([][3]float64, len(p.Points)), Radii: p.Radii}
		for k, q := range p.Points {
			jp.Points[k] = [3]float64{q.X, q.Y, q.Z}
		}
		doc.Paths[i] = jp
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}

// ReadPaths loads raw paths from a .vtp or .json file.
func ReadPaths(path, radiusArray string) ([]RawPath, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".vtp":
		pd, err := vtp.ReadFile(path)
		if err != nil {
			return nil, err
		}
		return PathsFromPolyData(pd, radiusArray)
	case ".json":
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("centerline: %w", err)
		}
		defer f.Close()
		return ReadPathsJSON(f)
	}
	return nil, fmt.Errorf("centerline: unsupported centerline file %q", path)
}

// Load reads raw paths from path and builds a tree with opts.
func Load(path, radiusArray string, opts Options) (*Tree, error) {
	paths, err := ReadPaths(path, radiusArray)
	if err != nil {
		return nil, err
	}
	t, err := NewBuilder(opts).Build(paths)
	if err != nil {
		return nil, fmt.Errorf("centerline: %s: %w", path, err)
	}
	return t, nil
}

// jsonBranch is the JSON form of a branch in an exported tree.
type jsonBranch struct {
	ID     int          `json:"id"`
	Source int          `json:"source"`
	Parent *ParentLink  `json:"parent,omitempty"`
	Points [][3]float64 `json:"points"`
	Radii  []float64    `json:"radii"`
	Arc    []float64    `json:"arc"`
}

// jsonTree is the exported form of a tree.
type jsonTree struct {
	Branches []jsonBranch  `json:"branches"`
	Children map[int][]int `json:"children"`
	Dropped  []int         `json:"dropped,omitempty"`
}

// MarshalJSON exports the tree with its parent links and children index.
func (t *Tree) MarshalJSON() ([]byte, error) {
	doc := jsonTree{Children: t.children, Dropped: t.Dropped}
	for _, b := range t.branches {
		jb := jsonBranch{ID: b.ID, Source: b.Source, Radii: b.Radii, Arc: b.Arc}
		if link, ok := b.Link(); ok {
			jb.Parent = &link
		}
		jb.Points = make([][3]float64, len(b.Points))
		for k, p := range b.Points {
			jb.Points[k] = [3]float64{p.X, p.Y, p.Z}
		}
		doc.Branches = append(doc.Branches, jb)
	}
	return json.Marshal(doc)
}

// DecodeTree reads a tree previously exported with MarshalJSON. Links are
// revalidated: cycles and dangling parents yield ErrTopologyInconsistency.
func DecodeTree(r io.Reader) (*Tree, error) {
	var doc jsonTree
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("centerline: decode tree: %w", err)
	}
	branches := make([]Branch, len(doc.Branches))
	for i, jb := range doc.Branches {
		b := Branch{ID: i, Source: jb.Source, Radii: jb.Radii, Arc: jb.Arc, Parent: NoParent}
		if jb.Parent != nil {
			b.Parent, b.Split = jb.Parent.Parent, jb.Parent.Split
		}
		b.Points = make([]v3.Vec, len(jb.Points))
		for k, p := range jb.Points {
			b.Points[k] = v3.Vec{X: p[0], Y: p[1], Z: p[2]}
		}
		branches[i] = b
	}
	t, err := New(branches)
	if err != nil {
		return nil, err
	}
	t.Dropped = doc.Dropped
	return t, nil
}
