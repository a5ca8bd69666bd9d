package centerline

import "errors"

// Sentinel errors returned by the centerline package.
var (
	// ErrTopologyInconsistency is returned when parent links form a cycle or
	// cannot be resolved. It is fatal to a patient load: no tree is built.
	ErrTopologyInconsistency = errors.New("centerline: topology inconsistency")

	// ErrNoBranches is returned when no branch survives reconstruction.
	ErrNoBranches = errors.New("centerline: no branches")

	// ErrInvalidPath is returned for raw paths with mismatched or too few samples.
	ErrInvalidPath = errors.New("centerline: invalid path")

	// ErrInvalidLocation is returned when a (branch, index) pair is outside the tree.
	ErrInvalidLocation = errors.New("centerline: invalid location")
)
