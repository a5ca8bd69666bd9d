package metrics

import "errors"

var (
	// ErrMissingHeight is returned when the aortic height index is requested
	// without a positive patient height.
	ErrMissingHeight = errors.New("metrics: patient height is not set")

	// ErrNeedTwoBounds is returned when a volume measurement does not have
	// exactly two bound markers.
	ErrNeedTwoBounds = errors.New("metrics: volume measurement needs two bounds")

	// ErrLandmarkExists is returned when setting a landmark name twice.
	ErrLandmarkExists = errors.New("metrics: landmark already set")

	// ErrUnknownLandmark is returned when removing a landmark that is not set.
	ErrUnknownLandmark = errors.New("metrics: unknown landmark")
)
