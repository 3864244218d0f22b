package profile

import (
	"errors"
	"fmt"
)

// Sentinel kinds for profile building.
var (
	ErrNoSamples     = errors.New("no samples")
	ErrUnknownPolicy = errors.New("unknown degenerate policy")
)

// UnknownPolicyError reports an unrecognized policy name.
type UnknownPolicyError struct {
	Value string
}

func (e *UnknownPolicyError) Error() string {
	return fmt.Sprintf("unknown degenerate policy %q (want regularize or exclude)", e.Value)
}

// Is matches ErrUnknownPolicy.
func (e *UnknownPolicyError) Is(target error) bool { return target == ErrUnknownPolicy }
