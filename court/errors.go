package court

import (
	"errors"
	"fmt"
)

// Detection failures. Errors from a detection run and the pose estimator wrap one of
// these; a SegmentDetector's own errors are passed through as they are.
var (
	// ErrDegenerateGeometry is returned when a line fit has a singular normal-equations
	// matrix or when two lines expected to intersect are parallel.
	ErrDegenerateGeometry = errors.New("degenerate geometry")

	// ErrLabelingAmbiguity is returned when a line category cannot be identified uniquely.
	ErrLabelingAmbiguity = errors.New("labeling ambiguity")

	// ErrInsufficientData is returned when too few correspondences are available.
	ErrInsufficientData = errors.New("insufficient data")
)

// StageError records which pipeline stage aborted a detection.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}
