package embeddings

import "errors"

// Sentinel kinds for embedding ingestion errors.
var (
	ErrNotNPY           = errors.New("not an npy file")
	ErrUnsupportedNPY   = errors.New("unsupported npy layout")
	ErrScalar           = errors.New("scalar embedding")
	ErrShape            = errors.New("embedding shape mismatch")
	ErrInvalidRegionMap = errors.New("invalid region map")
)
