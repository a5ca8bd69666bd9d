package mesh

import "errors"

// ErrNoTriangles is returned when a surface file holds no triangles.
var ErrNoTriangles = errors.New("mesh: no triangles")
