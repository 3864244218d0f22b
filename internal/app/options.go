package service

import (
	"time"

	"github.com/okian/regionsel/internal/adapters/blobstore"
	"github.com/okian/regionsel/internal/domain/profile"
	"github.com/okian/regionsel/internal/domain/selector"
	"github.com/okian/regionsel/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithWorkerCount sets the number of batch selection workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the maximum number of queued batch queries.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(logger logger.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithBlobStore sets the store holding embeddings and persisted profiles.
func WithBlobStore(store blobstore.Store) Option {
	return func(s *Service) {
		s.store = store
	}
}

// WithProfileKey sets the object key of the persisted profile set. The key
// suffix selects the codec.
func WithProfileKey(key string) Option {
	return func(s *Service) {
		if key != "" {
			s.profileKey = key
		}
	}
}

// WithRegionMapKey sets the object key of the filename,region CSV.
func WithRegionMapKey(key string) Option {
	return func(s *Service) {
		if key != "" {
			s.regionMapKey = key
		}
	}
}

// WithEmbeddingsPrefix sets the prefix embedding filenames resolve under.
func WithEmbeddingsPrefix(prefix string) Option {
	return func(s *Service) {
		s.embeddingsPrefix = prefix
	}
}

// WithExpectedDim sets the embedding dimension used when loading samples.
func WithExpectedDim(dim int) Option {
	return func(s *Service) {
		if dim > 0 {
			s.expectedDim = dim
		}
	}
}

// WithLoadConcurrency bounds parallel embedding fetches during Rebuild.
func WithLoadConcurrency(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.loadConcurrency = n
		}
	}
}

// WithBuilder sets the profile builder used by Rebuild.
func WithBuilder(b *profile.Builder) Option {
	return func(s *Service) {
		if b != nil {
			s.builder = b
		}
	}
}

// WithSelector sets the selector used to prepare published profile sets.
func WithSelector(sel *selector.Selector) Option {
	return func(s *Service) {
		if sel != nil {
			s.selector = sel
		}
	}
}

// WithModelNameTemplate sets the fmt template turning a region label into
// the downstream classifier name.
func WithModelNameTemplate(tmpl string) Option {
	return func(s *Service) {
		if tmpl != "" {
			s.modelTemplate = tmpl
		}
	}
}

// WithReloadInterval enables periodic reloads of the persisted profile set.
func WithReloadInterval(interval time.Duration) Option {
	return func(s *Service) {
		s.reloadInterval = interval
	}
}

// WithStatsInterval sets how often runtime gauges are refreshed.
func WithStatsInterval(interval time.Duration) Option {
	return func(s *Service) {
		if interval > 0 {
			s.statsInterval = interval
		}
	}
}
