package api

import (
	"errors"

	"github.com/okian/regionsel/internal/adapters/mq/queue"
)

// Sentinel kinds for API errors.
var (
	ErrBadRequest   = errors.New("bad request")
	ErrBackpressure = queue.ErrFull
)
