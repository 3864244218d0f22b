package repository

import (
	"time"

	"github.com/okian/regionsel/internal/adapters/blobstore"
	"github.com/okian/regionsel/internal/domain/selector"
	"github.com/okian/regionsel/pkg/logger"
)

// Option applies a configuration option to the ProfileRepository.
type Option func(*ProfileRepository)

// WithBlobStore sets the store and object key profile sets are persisted under.
func WithBlobStore(store blobstore.Store, key string) Option {
	return func(r *ProfileRepository) {
		r.store = store
		if key != "" {
			r.key = key
		}
	}
}

// WithSelector sets the selector used to prepare published sets.
func WithSelector(sel *selector.Selector) Option {
	return func(r *ProfileRepository) {
		if sel != nil {
			r.selector = sel
		}
	}
}

// WithReloadInterval enables periodic reloads from the blob store.
func WithReloadInterval(interval time.Duration) Option {
	return func(r *ProfileRepository) {
		if interval > 0 {
			r.reloadInterval = interval
		}
	}
}

// WithLogger sets the logger.
func WithLogger(log logger.Logger) Option {
	return func(r *ProfileRepository) {
		if log != nil {
			r.log = log
		}
	}
}
