package model

import (
	"errors"
	"fmt"
)

// Sentinel kinds for model errors. These allow errors.Is/As from callers.
var (
	ErrDimensionMismatch = errors.New("dimension mismatch")
	ErrInvalidDimension  = errors.New("invalid dimension")
	ErrNonFinite         = errors.New("non-finite value")
	ErrEmptyRegion       = errors.New("empty region label")
	ErrDuplicateRegion   = errors.New("duplicate region")
	ErrInvalidProfile    = errors.New("invalid region profile")
)

// DimensionMismatchError reports a vector whose length differs from the
// expected dimension. Index is the offending sample index, or -1 when the
// vector is not part of a sample collection (e.g. a query).
type DimensionMismatchError struct {
	Index    int
	Region   string
	Expected int
	Got      int
}

func (e *DimensionMismatchError) Error() string {
	switch {
	case e.Index >= 0:
		return fmt.Sprintf("dimension mismatch: sample %d has length %d, expected %d", e.Index, e.Got, e.Expected)
	case e.Region != "":
		return fmt.Sprintf("dimension mismatch: region %q has dimension %d, expected %d", e.Region, e.Got, e.Expected)
	default:
		return fmt.Sprintf("dimension mismatch: got length %d, expected %d", e.Got, e.Expected)
	}
}

// Is matches ErrDimensionMismatch.
func (e *DimensionMismatchError) Is(target error) bool {
	return target == ErrDimensionMismatch
}
