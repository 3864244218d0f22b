// Package repository publishes prepared profile sets as immutable snapshots
// and persists them through a blob store.
package repository

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
	"github.com/okian/regionsel/internal/adapters/blobstore"
	"github.com/okian/regionsel/internal/adapters/codec"
	"github.com/okian/regionsel/internal/domain/model"
	"github.com/okian/regionsel/internal/domain/selector"
	"github.com/okian/regionsel/pkg/logger"
	"github.com/okian/regionsel/pkg/metrics"
)

// DefaultKey is the object key of the persisted profile set.
const DefaultKey = "region_profiles.json"

// Snapshot is an immutable published profile set with its prepared selector
// state. Readers hold a snapshot for the duration of a query; rebuilds
// publish a new one.
type Snapshot struct {
	Version     string
	Set         *model.ProfileSet
	Prepared    *selector.Prepared
	PublishedAt time.Time
	Source      string
	Fingerprint uint64
}

// Store provides the current snapshot and publishes new ones.
type Store interface {
	// Current returns the latest snapshot or ErrNoSnapshot.
	Current() (*Snapshot, error)
	// Publish prepares set and makes it current.
	Publish(ctx context.Context, set *model.ProfileSet, source string) *Snapshot
}

// ProfileRepository is the Store implementation backed by an atomic pointer
// and an optional blob store.
type ProfileRepository struct {
	store          blobstore.Store
	key            string
	selector       *selector.Selector
	reloadInterval time.Duration
	log            logger.Logger

	snapshot atomic.Pointer[Snapshot]
	loadMu   sync.Mutex

	wg        sync.WaitGroup
	stopChan  chan struct{}
	closeOnce sync.Once
}

var _ Store = (*ProfileRepository)(nil)

// NewProfileRepository constructs a repository. When a blob store and a
// reload interval are configured, a background goroutine reloads the
// persisted set until ctx is done or Close is called.
func NewProfileRepository(ctx context.Context, opts ...Option) *ProfileRepository {
	r := &ProfileRepository{
		key:      DefaultKey,
		selector: selector.New(),
		stopChan: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.log == nil {
		r.log = logger.Get().Named("repository")
	}
	if r.store != nil && r.reloadInterval > 0 {
		r.startPeriodicReload(ctx)
	}
	return r
}

// Key returns the object key profile sets are persisted under.
func (r *ProfileRepository) Key() string { return r.key }

// Current returns the latest snapshot.
func (r *ProfileRepository) Current() (*Snapshot, error) {
	s := r.snapshot.Load()
	if s == nil {
		return nil, ErrNoSnapshot
	}
	return s, nil
}

// Publish prepares set and atomically replaces the current snapshot.
func (r *ProfileRepository) Publish(ctx context.Context, set *model.ProfileSet, source string) *Snapshot {
	return r.publish(ctx, set, source, 0)
}

func (r *ProfileRepository) publish(ctx context.Context, set *model.ProfileSet, source string, fingerprint uint64) *Snapshot {
	prepared := r.selector.Prepare(set)
	s := &Snapshot{
		Version:     uuid.NewString(),
		Set:         set,
		Prepared:    prepared,
		PublishedAt: time.Now().UTC(),
		Source:      source,
		Fingerprint: fingerprint,
	}
	r.snapshot.Store(s)

	unusable := prepared.Unusable()
	metrics.UpdateProfileSet(set.Len(), set.Dim(), len(unusable))
	metrics.RecordProfilePublish(s.PublishedAt.Unix())
	r.log.Info(ctx, "profile set published",
		logger.String("version", s.Version),
		logger.String("source", source),
		logger.Int("regions", set.Len()),
		logger.Int("dim", set.Dim()),
	)
	for _, info := range prepared.Regions() {
		if !info.Usable {
			r.log.Warn(ctx, "region covariance is singular for every query",
				logger.String("region", info.Region),
				logger.Int("rank", info.Rank),
				logger.Error(info.Err),
			)
		}
	}
	return s
}

// Save encodes set with the codec chosen by the repository key and writes it
// to the blob store.
func (r *ProfileRepository) Save(ctx context.Context, set *model.ProfileSet) error {
	if r.store == nil {
		return ErrNoBlobStore
	}
	data, err := codec.ForName(r.key).Marshal(set)
	if err != nil {
		return err
	}
	if err := r.store.Put(ctx, r.key, data); err != nil {
		return fmt.Errorf("write %q: %w", r.key, err)
	}
	r.log.Info(ctx, "profile set saved", logger.String("key", r.key), logger.Int("bytes", len(data)))
	return nil
}

// Load reads the persisted set and publishes it. An unchanged object keeps
// the current snapshot and its version.
func (r *ProfileRepository) Load(ctx context.Context) (*Snapshot, error) {
	if r.store == nil {
		return nil, ErrNoBlobStore
	}
	r.loadMu.Lock()
	defer r.loadMu.Unlock()

	data, err := r.store.Get(ctx, r.key)
	if err != nil {
		return nil, fmt.Errorf("read %q: %w", r.key, err)
	}
	fp := xxhash.Sum64(data)
	if cur := r.snapshot.Load(); cur != nil && cur.Fingerprint == fp && cur.Source == r.key {
		return cur, nil
	}
	set, err := codec.ForName(r.key).Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("decode %q: %w", r.key, err)
	}
	return r.publish(ctx, set, r.key, fp), nil
}

// startPeriodicReload starts a background goroutine that reloads the
// persisted set at the configured interval.
func (r *ProfileRepository) startPeriodicReload(ctx context.Context) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ticker := time.NewTicker(r.reloadInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-r.stopChan:
				return
			case <-ticker.C:
				if _, err := r.Load(ctx); err != nil {
					metrics.RecordProfileReloadFailure()
					r.log.Warn(ctx, "profile reload failed, keeping current snapshot", logger.Error(err))
				}
			}
		}
	}()
}

// Close stops the reload goroutine.
func (r *ProfileRepository) Close() error {
	r.closeOnce.Do(func() { close(r.stopChan) })
	r.wg.Wait()
	return nil
}
