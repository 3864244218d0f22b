package linalg

import "errors"

// Sentinel kinds for numeric failures.
var (
	ErrTooFewObservations = errors.New("too few observations")
	ErrSingular           = errors.New("matrix is singular")
	ErrOutOfRange         = errors.New("vector outside covariance range")
	ErrShape              = errors.New("shape mismatch")
)
