// Package service provides the core business service that implements
// the dependencies required by the HTTP API and the CLI.
package service

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strconv"
	"sync"
	"time"

	"github.com/okian/regionsel/internal/adapters/blobstore"
	"github.com/okian/regionsel/internal/adapters/embeddings"
	jobqueue "github.com/okian/regionsel/internal/adapters/mq/queue"
	workerpool "github.com/okian/regionsel/internal/adapters/mq/worker"
	"github.com/okian/regionsel/internal/adapters/repository"
	"github.com/okian/regionsel/internal/domain/model"
	"github.com/okian/regionsel/internal/domain/profile"
	"github.com/okian/regionsel/internal/domain/selector"
	"github.com/okian/regionsel/internal/domain/types"
	"github.com/okian/regionsel/pkg/logger"
	"github.com/okian/regionsel/pkg/metrics"
)

// Default service configuration constants.
const (
	DefaultModelNameTemplate = "redrhd-%s-model"
	DefaultRegionMapKey      = "embedding_region_map.csv"
	DefaultEmbeddingsPrefix  = "embeddings/"
	defaultQueueSize         = 10000
	defaultExpectedDim       = 512
	defaultStatsInterval     = 15 * time.Second
)

// RebuildReport describes one rebuild of the published profile set.
type RebuildReport struct {
	Load     embeddings.Report
	Build    profile.Report
	Snapshot *repository.Snapshot
}

// Service selects regions against the currently published profile set.
type Service struct {
	mu sync.RWMutex

	// Core components
	store    blobstore.Store
	repo     *repository.ProfileRepository
	builder  *profile.Builder
	selector *selector.Selector
	loader   *embeddings.Loader
	queue    *jobqueue.InMemoryQueue
	pool     *workerpool.Pool

	// Configuration
	workerCount      int
	queueSize        int
	expectedDim      int
	loadConcurrency  int
	profileKey       string
	regionMapKey     string
	embeddingsPrefix string
	modelTemplate    string
	reloadInterval   time.Duration
	statsInterval    time.Duration

	// State
	started bool
	stopCh  chan struct{}
	wg      sync.WaitGroup

	// Logging
	logger logger.Logger
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		workerCount:      runtime.NumCPU(),
		queueSize:        defaultQueueSize,
		expectedDim:      defaultExpectedDim,
		profileKey:       repository.DefaultKey,
		regionMapKey:     DefaultRegionMapKey,
		embeddingsPrefix: DefaultEmbeddingsPrefix,
		modelTemplate:    DefaultModelNameTemplate,
		statsInterval:    defaultStatsInterval,
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}
	if s.builder == nil {
		s.builder = profile.NewBuilder(profile.WithDimension(s.expectedDim))
	}
	if s.selector == nil {
		s.selector = selector.New()
	}
	if s.store != nil {
		s.loader = embeddings.NewLoader(s.store,
			embeddings.WithPrefix(s.embeddingsPrefix),
			embeddings.WithDimension(s.expectedDim),
			embeddings.WithConcurrency(s.loadConcurrency),
		)
	}

	return s
}

// Start initializes the profile repository and the batch workers. A
// persisted profile set is loaded when one exists; a missing one leaves the
// service running with no profiles until Rebuild or Publish.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	s.logger.Info(ctx, "starting region selection service...")

	repoOpts := []repository.Option{
		repository.WithSelector(s.selector),
		repository.WithLogger(s.logger.Named("repository")),
	}
	if s.store != nil {
		repoOpts = append(repoOpts,
			repository.WithBlobStore(s.store, s.profileKey),
			repository.WithReloadInterval(s.reloadInterval),
		)
	}
	s.repo = repository.NewProfileRepository(ctx, repoOpts...)

	if s.store != nil {
		if _, err := s.repo.Load(ctx); err != nil {
			if !errors.Is(err, blobstore.ErrNotFound) {
				_ = s.repo.Close()
				return fmt.Errorf("load profiles: %w", err)
			}
			s.logger.Warn(ctx, "no persisted profile set, starting empty", logger.String("key", s.profileKey))
		}
	}

	s.queue = jobqueue.NewInMemoryQueue(
		jobqueue.WithCapacity(s.queueSize),
		jobqueue.WithBufferSize(s.queueSize),
	)
	s.pool = workerpool.NewPool(s.workerCount, s.queue, s, workerpool.WithLogger(s.logger.Named("worker")))
	s.pool.Start(ctx)

	s.stopCh = make(chan struct{})
	s.startStatsLoop(ctx)

	s.started = true
	s.logger.Info(ctx, "region selection service started",
		logger.Int("workers", s.pool.Size()),
		logger.Int("queueSize", s.queueSize),
		logger.String("profileKey", s.profileKey),
	)

	return nil
}

// Stop gracefully shuts down the service, draining queued batch queries.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	pool := s.pool
	s.mu.Unlock()

	ctx := context.Background()
	s.logger.Info(ctx, "stopping region selection service...")

	// workers take the read lock while draining
	if err := pool.Shutdown(ctx); err != nil {
		s.logger.Warn(ctx, "worker pool shutdown incomplete", logger.Error(err))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return
	}
	_ = s.repo.Close()
	close(s.stopCh)
	s.wg.Wait()

	s.started = false
	s.logger.Info(ctx, "region selection service stopped")
}

func (s *Service) activeRepo() (*repository.ProfileRepository, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return nil, ErrNotStarted
	}
	return s.repo, nil
}

// ModelName returns the downstream classifier name for region.
func (s *Service) ModelName(region string) string {
	return fmt.Sprintf(s.modelTemplate, region)
}

// Select returns the region nearest to x in the current profile set.
// Skipped regions are logged and counted but never fail the call.
func (s *Service) Select(ctx context.Context, x model.FeatureVector) (model.Selection, error) {
	start := time.Now()
	sel, err := s.selectOne(ctx, x)
	metrics.RecordSelectionLatency(float64(time.Since(start).Microseconds()) / 1000)
	metrics.RecordSelection(outcomeOf(sel, err))
	return sel, err
}

func (s *Service) selectOne(ctx context.Context, x model.FeatureVector) (model.Selection, error) {
	repo, err := s.activeRepo()
	if err != nil {
		return model.Selection{}, err
	}
	snap, err := repo.Current()
	if err != nil {
		return model.Selection{}, &selector.EmptyProfileSetError{}
	}

	res, err := snap.Prepared.Select(x)
	if err != nil {
		var noUsable *selector.NoUsableProfileError
		if errors.As(err, &noUsable) {
			s.recordSkips(ctx, noUsable.Skipped)
		}
		return model.Selection{}, err
	}
	s.recordSkips(ctx, res.Skipped)

	return model.Selection{
		SelectionResult: res,
		Model:           s.ModelName(res.Region),
		ProfileVersion:  snap.Version,
	}, nil
}

func (s *Service) recordSkips(ctx context.Context, skips []model.Skip) {
	for _, sk := range skips {
		metrics.RecordSkippedRegion(sk.Region, sk.Kind.String())
		s.logger.Warn(ctx, "region skipped during selection",
			logger.String("region", sk.Region),
			logger.String("kind", sk.Kind.String()),
			logger.Error(sk.Err),
		)
	}
}

func outcomeOf(sel model.Selection, err error) string {
	switch {
	case err == nil && sel.PseudoInverse:
		return metrics.OutcomePseudoInverse
	case err == nil:
		return metrics.OutcomeSelected
	case errors.Is(err, model.ErrDimensionMismatch):
		return metrics.OutcomeDimensionMismatch
	case errors.Is(err, selector.ErrEmptyProfileSet):
		return metrics.OutcomeEmptyProfileSet
	case errors.Is(err, selector.ErrNoUsableProfile):
		return metrics.OutcomeNoUsableProfile
	default:
		return metrics.OutcomeError
	}
}

// BatchItem is one query of a batch.
type BatchItem struct {
	ID     string
	Vector model.FeatureVector
}

// BatchOutcome is the result of one batch query, in request order.
type BatchOutcome struct {
	ID        string
	Selection model.Selection
	Err       error
}

// SelectBatch runs items through the worker pool and returns their outcomes
// in request order. When the queue cannot take every item the call fails
// with ErrBackpressure; items already queued are still processed but their
// outcomes are discarded.
func (s *Service) SelectBatch(ctx context.Context, items []BatchItem) ([]BatchOutcome, error) {
	if _, err := s.activeRepo(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	q := s.queue
	s.mu.RUnlock()

	out := make([]BatchOutcome, len(items))
	reply := make(chan jobqueue.Outcome, len(items))
	for i, it := range items {
		out[i].ID = it.ID
		job := jobqueue.Job{ID: strconv.Itoa(i), Vector: it.Vector, Reply: reply}
		if !q.Enqueue(ctx, job) {
			s.logger.Warn(ctx, "batch rejected, queue is full",
				logger.Int("batch", len(items)),
				logger.Int("queued", i),
			)
			return nil, fmt.Errorf("%w: %d of %d queries queued", ErrBackpressure, i, len(items))
		}
	}

	for range items {
		select {
		case o := <-reply:
			i, err := strconv.Atoi(o.ID)
			if err != nil || i < 0 || i >= len(out) {
				continue
			}
			out[i].Selection = o.Selection
			out[i].Err = o.Err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return out, nil
}

// SelectQueries is SelectBatch over raw query vectors. Vectors that are not
// valid embeddings fail individually without being queued.
func (s *Service) SelectQueries(ctx context.Context, queries []types.BatchQuery) ([]types.BatchResult, error) {
	out := make([]types.BatchResult, len(queries))
	items := make([]BatchItem, 0, len(queries))
	index := make([]int, 0, len(queries))
	for i, q := range queries {
		x, err := model.VectorOf(q.Vector...)
		if err != nil {
			out[i] = types.BatchResultOf(q.ID, model.Selection{}, err)
			continue
		}
		items = append(items, BatchItem{ID: q.ID, Vector: x})
		index = append(index, i)
	}

	outcomes, err := s.SelectBatch(ctx, items)
	if err != nil {
		return nil, err
	}
	for j, o := range outcomes {
		out[index[j]] = types.BatchResultOf(o.ID, o.Selection, o.Err)
	}
	return out, nil
}

// Publish makes set the current profile set without persisting it.
func (s *Service) Publish(ctx context.Context, set *model.ProfileSet, source string) (*repository.Snapshot, error) {
	repo, err := s.activeRepo()
	if err != nil {
		return nil, err
	}
	return repo.Publish(ctx, set, source), nil
}

// Reload reads the persisted profile set and publishes it when it changed.
func (s *Service) Reload(ctx context.Context) (*repository.Snapshot, error) {
	repo, err := s.activeRepo()
	if err != nil {
		return nil, err
	}
	if s.store == nil {
		return nil, ErrNoBlobStore
	}
	snap, err := repo.Load(ctx)
	if err != nil {
		metrics.RecordProfileReloadFailure()
		return nil, err
	}
	return snap, nil
}

// Rebuild loads the labeled embeddings named by the region map, builds a
// new profile set, persists it and publishes it.
func (s *Service) Rebuild(ctx context.Context) (RebuildReport, error) {
	var report RebuildReport

	repo, err := s.activeRepo()
	if err != nil {
		return report, err
	}
	if s.loader == nil {
		return report, ErrNoBlobStore
	}

	entries, err := s.loader.LoadRegionMap(ctx, s.regionMapKey)
	if err != nil {
		return report, err
	}
	samples, loadReport, err := s.loader.LoadLabeled(ctx, entries)
	report.Load = loadReport
	if err != nil {
		return report, err
	}

	start := time.Now()
	set, buildReport, err := s.builder.Build(samples)
	report.Build = buildReport
	if err != nil {
		return report, fmt.Errorf("build profiles: %w", err)
	}
	metrics.RecordBuild(buildReport.Samples, len(buildReport.Regularized), len(buildReport.Excluded),
		float64(time.Since(start).Microseconds())/1000)

	if err := repo.Save(ctx, set); err != nil {
		return report, err
	}
	snap, err := repo.Load(ctx)
	if err != nil {
		return report, err
	}
	report.Snapshot = snap

	s.logger.Info(ctx, "profile set rebuilt",
		logger.String("version", snap.Version),
		logger.Int("samples", buildReport.Samples),
		logger.Int("regions", buildReport.Regions),
		logger.Strings("regularized", buildReport.Regularized),
		logger.Strings("excluded", buildReport.Excluded),
		logger.Int("skipped", len(loadReport.Skipped)),
	)
	return report, nil
}

// Profiles summarizes the current profile set.
func (s *Service) Profiles(ctx context.Context) (types.ProfileSummary, error) {
	repo, err := s.activeRepo()
	if err != nil {
		return types.ProfileSummary{}, err
	}
	snap, err := repo.Current()
	if err != nil {
		return types.ProfileSummary{}, &selector.EmptyProfileSetError{}
	}
	return Summarize(snap), nil
}

// Summarize describes a snapshot.
func Summarize(snap *repository.Snapshot) types.ProfileSummary {
	out := types.ProfileSummary{
		Version:     snap.Version,
		Source:      snap.Source,
		PublishedAt: snap.PublishedAt,
		Dim:         snap.Set.Dim(),
		Labels:      snap.Set.Labels(),
	}
	for _, info := range snap.Prepared.Regions() {
		r := types.RegionSummary{
			Region:    info.Region,
			Samples:   info.Samples,
			Rank:      info.Rank,
			Condition: info.Condition,
			Usable:    info.Usable,
		}
		if info.Usable {
			r.Method = info.Method.String()
		}
		if info.Err != nil {
			r.Reason = info.Err.Error()
		}
		if p, ok := snap.Set.Get(info.Region); ok {
			r.Regularized = p.Regularized()
		}
		out.Regions = append(out.Regions, r)
	}
	return out
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	stats := map[string]interface{}{
		"started":     s.started,
		"workerCount": s.workerCount,
		"queueSize":   s.queueSize,
		"profileKey":  s.profileKey,
	}

	if s.started {
		queueLen := s.queue.Len(ctx)
		stats["queueLength"] = queueLen
		stats["workers"] = s.pool.Size()
		metrics.UpdateQueueSize(queueLen)

		if snap, err := s.repo.Current(); err == nil {
			stats["profileVersion"] = snap.Version
			stats["regions"] = snap.Set.Len()
			stats["dim"] = snap.Set.Dim()
			stats["unusableRegions"] = len(snap.Prepared.Unusable())
			stats["publishedAt"] = snap.PublishedAt
		} else {
			stats["regions"] = 0
		}
	}

	return stats
}

// startStatsLoop refreshes runtime gauges until Stop is called.
func (s *Service) startStatsLoop(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.statsInterval)
		defer ticker.Stop()

		for {
			updateRuntimeMetrics()
			select {
			case <-ctx.Done():
				return
			case <-s.stopCh:
				return
			case <-ticker.C:
			}
		}
	}()
}

func updateRuntimeMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystemMemoryUsage(m.Alloc)
	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())
}
