package queue

import "errors"

// ErrFull reports that a queue rejected work because it is at capacity or
// closed.
var ErrFull = errors.New("queue is full")
