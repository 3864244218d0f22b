package selector

import (
	"errors"
	"fmt"

	"github.com/okian/regionsel/internal/domain/model"
)

// Sentinel kinds for selection errors. These allow errors.Is/As from callers.
var (
	ErrSingularCovariance = errors.New("singular covariance")
	ErrEmptyProfileSet    = errors.New("empty profile set")
	ErrNoUsableProfile    = errors.New("no usable profile")
)

// SingularCovarianceError is the per-region, recoverable failure recorded in
// a Skip. Persistent is true when the region cannot be used for any query.
type SingularCovarianceError struct {
	Region     string
	Persistent bool
	Err        error
}

func (e *SingularCovarianceError) Error() string {
	scope := "for this query"
	if e.Persistent {
		scope = "for every query"
	}
	return fmt.Sprintf("region %q: singular covariance %s: %v", e.Region, scope, e.Err)
}

// Is matches ErrSingularCovariance.
func (e *SingularCovarianceError) Is(target error) bool { return target == ErrSingularCovariance }

// Unwrap returns the numeric cause.
func (e *SingularCovarianceError) Unwrap() error { return e.Err }

// EmptyProfileSetError is returned when there is nothing to compare against.
type EmptyProfileSetError struct{}

func (e *EmptyProfileSetError) Error() string { return "empty profile set: no regions to compare" }

// Is matches ErrEmptyProfileSet.
func (e *EmptyProfileSetError) Is(target error) bool { return target == ErrEmptyProfileSet }

// NoUsableProfileError is returned when every region was skipped.
type NoUsableProfileError struct {
	Regions int
	Skipped []model.Skip
}

func (e *NoUsableProfileError) Error() string {
	return fmt.Sprintf("no usable profile: all %d regions are numerically degenerate", e.Regions)
}

// Is matches ErrNoUsableProfile.
func (e *NoUsableProfileError) Is(target error) bool { return target == ErrNoUsableProfile }
