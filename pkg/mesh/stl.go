package mesh

import (
	"fmt"

	"github.com/deadsy/sdfx/render"
	"github.com/deadsy/sdfx/sdf"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// ReadSTL loads an ASCII or binary STL file and welds its triangles into an
// indexed mesh.
func ReadSTL(path string) (m *Mesh, err error) {
	// render.LoadSTL indexes past the end of an ASCII file whose vertex count
	// is not a multiple of three.
	defer func() {
		if r := recover(); r != nil {
			m, err = nil, fmt.Errorf("stl: malformed ASCII facets: %v", r)
		}
	}()
	tris, err := render.LoadSTL(path)
	if err != nil {
		return nil, fmt.Errorf("stl: %w", err)
	}
	if len(tris) == 0 {
		return nil, ErrNoTriangles
	}
	soup := make([][3]v3.Vec, len(tris))
	for i, t := range tris {
		soup[i] = [3]v3.Vec(*t)
	}
	return FromSoup(soup, WeldTolerance), nil
}

// WriteSTL saves m as binary STL.
func WriteSTL(path string, m *Mesh) error {
	tris := make([]*sdf.Triangle3, len(m.Faces))
	for f := range m.Faces {
		a, b, c := m.Triangle(f)
		tris[f] = &sdf.Triangle3{a, b, c}
	}
	if err := render.SaveSTL(path, tris); err != nil {
		return fmt.Errorf("stl: %w", err)
	}
	return nil
}
