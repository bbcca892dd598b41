package landmark

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingLandmark means the face has fewer points than the highest index we read.
	ErrMissingLandmark = errors.New("missing landmark")
	// ErrInvalidDimensions means the frame width or height is not a positive finite number.
	ErrInvalidDimensions = errors.New("invalid frame dimensions")
	// ErrDegenerateGeometry means a ratio denominator collapsed to (near) zero.
	ErrDegenerateGeometry = errors.New("degenerate landmark geometry")
)

// MissingLandmarkError reports which index could not be read.
type MissingLandmarkError struct {
	Index int
	Have  int
}

func (e *MissingLandmarkError) Error() string {
	return fmt.Sprintf("missing landmark %d: face has %d points", e.Index, e.Have)
}

func (e *MissingLandmarkError) Is(target error) bool {
	return target == ErrMissingLandmark
}

// DegenerateGeometryError names the ratio whose denominator was too small.
type DegenerateGeometryError struct {
	Ratio       string
	Denominator float64
}

func (e *DegenerateGeometryError) Error() string {
	return fmt.Sprintf("degenerate landmark geometry: %s denominator %g", e.Ratio, e.Denominator)
}

func (e *DegenerateGeometryError) Is(target error) bool {
	return target == ErrDegenerateGeometry
}
