package service

import (
	"errors"

	jobqueue "github.com/okian/regionsel/internal/adapters/mq/queue"
)

// Sentinel errors for the service layer.
var (
	ErrNotStarted   = errors.New("service not started")
	ErrBackpressure = jobqueue.ErrFull
	ErrNoBlobStore  = errors.New("no blob store configured")
)
