package service

import (
	"context"

	"github.com/okian/regionsel/internal/adapters/blobstore/provider"
	"github.com/okian/regionsel/internal/config"
	"github.com/okian/regionsel/internal/domain/profile"
	"github.com/okian/regionsel/internal/domain/selector"
	"github.com/okian/regionsel/pkg/logger"
)

// FromConfig opens the configured blob store and builds a Service with the
// configured tolerances. The returned Service is not started.
func FromConfig(ctx context.Context, cfg *config.Config, log logger.Logger, opts ...Option) (*Service, error) {
	store, err := provider.Open(ctx, cfg.StoreProvider())
	if err != nil {
		return nil, err
	}
	base := []Option{
		WithLogger(log),
		WithWorkerCount(cfg.WorkerCount),
		WithQueueSize(cfg.QueueSize),
		WithExpectedDim(cfg.ExpectedDim),
		WithBlobStore(store),
		WithProfileKey(cfg.ProfileKey),
		WithRegionMapKey(cfg.RegionMapKey),
		WithEmbeddingsPrefix(cfg.EmbeddingsPrefix),
		WithLoadConcurrency(cfg.TransferConcurrency),
		WithModelNameTemplate(cfg.ModelNameTemplate),
		WithReloadInterval(cfg.ReloadInterval),
		WithBuilder(profile.NewBuilder(cfg.BuilderOptions()...)),
		WithSelector(selector.New(cfg.SelectorOptions()...)),
	}
	return New(append(base, opts...)...), nil
}
