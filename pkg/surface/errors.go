package surface

import "errors"

var (
	// ErrEmptyClipResult is returned when clipping or extraction leaves no
	// triangles. Nothing is written in that case.
	ErrEmptyClipResult = errors.New("surface: clip produced an empty mesh")

	// ErrNormalRestoration reports that the input mesh carried no normals to
	// restore after hole filling. It is logged, never returned.
	ErrNormalRestoration = errors.New("surface: no original normals to restore")
)
