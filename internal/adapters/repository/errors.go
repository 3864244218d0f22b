package repository

import "errors"

// Sentinel kinds for repository errors.
var (
	ErrNoSnapshot  = errors.New("no profile set published")
	ErrNoBlobStore = errors.New("repository has no blob store")
)
