package surface

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	v3 "github.com/deadsy/sdfx/vec/v3"
	"github.com/samber/lo"

	"github.com/chazu/xylem/pkg/centerline"
	"github.com/chazu/xylem/pkg/clip"
	"github.com/chazu/xylem/pkg/logging"
	"github.com/chazu/xylem/pkg/marker"
	"github.com/chazu/xylem/pkg/mesh"
	"github.com/chazu/xylem/pkg/vtp"
)

// Capping is the result of cutting a lumen at its capping markers.
type Capping struct {
	*Result
	Markers    []marker.Marker      // the capping markers, anchors of Result.Patches
	Centerline []centerline.RawPath // capped centerline polylines
}

// Cap removes everything beyond the inlet, outlet and cut markers in ms from
// m, keeps the largest remaining region and closes its holes. Bound and
// exclude markers are ignored.
func Cap(b *clip.Builder, m *mesh.Mesh, ms []marker.Marker, opts Options) (*Capping, error) {
	ms = lo.Filter(ms, func(mk marker.Marker, _ int) bool {
		return mk.Role == marker.RoleInlet || isCut(mk.Role)
	})
	region, err := b.Global(ms)
	if err != nil {
		return nil, err
	}
	anchors := make([]v3.Vec, len(ms))
	for i, mk := range ms {
		if anchors[i], err = b.Tree().Position(mk.Loc); err != nil {
			return nil, err
		}
	}
	res, err := Process(m, RegionField(region, opts.Kernel), Largest(), anchors, opts)
	if err != nil {
		return nil, fmt.Errorf("capping: %w", err)
	}
	logging.Logger().Info("capped lumen", "markers", len(ms), "caps", len(res.Patches),
		"faces", res.Closed.NumFaces())
	return &Capping{Result: res, Markers: ms, Centerline: CappedCenterline(b.Tree(), ms)}, nil
}

// OutputFiles names the files written for capping id in format.
type OutputFiles struct {
	Lumen      string   `json:"lumen"`
	Closed     string   `json:"closed,omitempty"`
	Caps       []string `json:"caps"`
	Centerline string   `json:"centerline"`
}

func cappingPrefixes(id string) []string {
	return []string{id + "_lumen_capped.", id + "_lumen_closed.", id + "_cap", id + "_centerline_capped."}
}

// ClearOutputs removes capping files previously written for id in dir.
func ClearOutputs(dir, id string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("capping: %w", err)
	}
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !lo.ContainsBy(cappingPrefixes(id), func(p string) bool { return strings.HasPrefix(name, p) }) {
			continue
		}
		if err := os.Remove(filepath.Join(dir, name)); err != nil {
			return fmt.Errorf("capping: %w", err)
		}
	}
	return nil
}

// Write stores the capping in dir: the open lumen, one file per cap patch,
// the capped centerline (VTP, or OBJ when format is OBJ) and, with closed
// set, the watertight lumen. Previous capping files for id are removed
// first.
func (c *Capping) Write(dir, id string, format mesh.Format, closed bool) (OutputFiles, error) {
	var out OutputFiles
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return out, fmt.Errorf("capping: %w", err)
	}
	if err := ClearOutputs(dir, id); err != nil {
		return out, err
	}
	path := func(suffix, ext string) string { return filepath.Join(dir, id+suffix+"."+ext) }

	out.Lumen = path("_lumen_capped", string(format))
	if err := mesh.WriteFile(out.Lumen, c.Open); err != nil {
		return out, err
	}
	if closed {
		out.Closed = path("_lumen_closed", string(format))
		if err := mesh.WriteFile(out.Closed, c.Closed); err != nil {
			return out, err
		}
	}
	for i := range c.Patches {
		p := path(fmt.Sprintf("_cap%d", i), string(format))
		if err := mesh.WriteFile(p, c.PatchMesh(i)); err != nil {
			return out, err
		}
		out.Caps = append(out.Caps, p)
	}

	if format == mesh.FormatOBJ {
		out.Centerline = path("_centerline_capped", "obj")
		f, err := os.Create(out.Centerline)
		if err != nil {
			return out, fmt.Errorf("capping: %w", err)
		}
		if err := mesh.WritePolylinesOBJ(f, CenterlinePolylines(c.Centerline)); err != nil {
			f.Close()
			return out, err
		}
		if err := f.Close(); err != nil {
			return out, fmt.Errorf("capping: %w", err)
		}
	} else {
		out.Centerline = path("_centerline_capped", "vtp")
		if err := vtp.WriteFile(out.Centerline, CenterlinePolyData(c.Centerline)); err != nil {
			return out, err
		}
	}
	logging.Logger().Info("capping written", "dir", dir, "id", id, "caps", len(out.Caps))
	return out, nil
}
