package marker

import "errors"

// Sentinel errors returned by marker operations. None of them change state.
var (
	// ErrPlacementRejected is returned when a location lies within the end
	// guard of its branch, too close to a bifurcation for a stable tangent.
	ErrPlacementRejected = errors.New("marker: placement too close to a branch end")

	// ErrPickMiss is returned when the pick did not hit the surface.
	ErrPickMiss = errors.New("marker: pick missed the surface")

	// ErrInletRemoval is returned when removing the inlet marker.
	ErrInletRemoval = errors.New("marker: the inlet marker cannot be removed")

	// ErrDuplicateInlet is returned when placing a second inlet.
	ErrDuplicateInlet = errors.New("marker: an inlet marker already exists")

	// ErrUnknownMarker is returned for ids not in the set.
	ErrUnknownMarker = errors.New("marker: unknown marker")

	// ErrNotDragging is returned by Drag and Release without a BeginDrag.
	ErrNotDragging = errors.New("marker: no marker is being dragged")
)
