// Package embeddings loads labeled and unlabeled feature embeddings from a
// blob store. Items that cannot be used are reported rather than failing the
// whole load.
package embeddings

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/okian/regionsel/internal/adapters/blobstore"
	"github.com/okian/regionsel/internal/domain/model"
	"github.com/okian/regionsel/pkg/logger"
	"github.com/okian/regionsel/pkg/metrics"
	"golang.org/x/sync/errgroup"
)

// Skip reasons.
const (
	ReasonMissing   = "missing"
	ReasonRead      = "read"
	ReasonDecode    = "decode"
	ReasonScalar    = "scalar"
	ReasonShape     = "shape"
	ReasonNonFinite = "non_finite"
)

const (
	defaultConcurrency = 8
	npyExt             = ".npy"
)

// Skipped describes one item left out of a load.
type Skipped struct {
	Name   string
	Region string
	Reason string
	Err    error
}

// Report summarizes a load.
type Report struct {
	Items   int
	Rows    int
	Skipped []Skipped
}

// Item is one embedding object with its rows.
type Item struct {
	Name    string
	Vectors []model.FeatureVector
}

// Option configures a Loader.
type Option func(*Loader)

// WithPrefix sets the key prefix embedding filenames are resolved under.
func WithPrefix(prefix string) Option {
	return func(l *Loader) { l.prefix = prefix }
}

// WithDimension sets the expected embedding dimension.
func WithDimension(dim int) Option {
	return func(l *Loader) {
		if dim > 0 {
			l.dim = dim
		}
	}
}

// WithConcurrency bounds parallel fetches.
func WithConcurrency(n int) Option {
	return func(l *Loader) {
		if n > 0 {
			l.concurrency = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(log logger.Logger) Option {
	return func(l *Loader) {
		if log != nil {
			l.log = log
		}
	}
}

// Loader fetches and decodes embeddings.
type Loader struct {
	store       blobstore.Store
	prefix      string
	dim         int
	concurrency int
	log         logger.Logger
}

// NewLoader creates a Loader reading from store.
func NewLoader(store blobstore.Store, opts ...Option) *Loader {
	l := &Loader{
		store:       store,
		dim:         model.DefaultDimension,
		concurrency: defaultConcurrency,
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.log == nil {
		l.log = logger.Get().Named("embeddings")
	}
	return l
}

// LoadRegionMap reads and parses the region map stored under key.
func (l *Loader) LoadRegionMap(ctx context.Context, key string) ([]MapEntry, error) {
	data, err := l.store.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("read region map %q: %w", key, err)
	}
	return ParseRegionMap(bytes.NewReader(data))
}

// LoadLabeled fetches the embedding of every map entry and expands each into
// one labeled sample per row, in map order.
func (l *Loader) LoadLabeled(ctx context.Context, entries []MapEntry) ([]model.LabeledSample, Report, error) {
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Filename
	}
	results, err := l.fetchAll(ctx, names)
	if err != nil {
		return nil, Report{}, err
	}

	report := Report{Items: len(entries)}
	var samples []model.LabeledSample
	for i, r := range results {
		if r.skip != nil {
			r.skip.Region = entries[i].Region
			report.Skipped = append(report.Skipped, *r.skip)
			continue
		}
		for j, v := range r.vectors {
			id := entries[i].Filename
			if len(r.vectors) > 1 {
				id = fmt.Sprintf("%s#%d", id, j)
			}
			samples = append(samples, model.LabeledSample{ID: id, Region: entries[i].Region, Vector: v})
		}
		report.Rows += len(r.vectors)
	}
	l.record(ctx, report)
	return samples, report, nil
}

// LoadAll fetches every ".npy" object under the loader prefix. Folder
// placeholder keys are ignored.
func (l *Loader) LoadAll(ctx context.Context) ([]Item, Report, error) {
	keys, err := l.store.List(ctx, l.prefix)
	if err != nil {
		return nil, Report{}, fmt.Errorf("list embeddings: %w", err)
	}
	var names []string
	for _, k := range keys {
		if blobstore.IsFolderKey(k) || !strings.HasSuffix(strings.ToLower(k), npyExt) {
			continue
		}
		names = append(names, strings.TrimPrefix(k, l.prefix))
	}

	results, err := l.fetchAll(ctx, names)
	if err != nil {
		return nil, Report{}, err
	}
	report := Report{Items: len(names)}
	var items []Item
	for i, r := range results {
		if r.skip != nil {
			report.Skipped = append(report.Skipped, *r.skip)
			continue
		}
		items = append(items, Item{Name: names[i], Vectors: r.vectors})
		report.Rows += len(r.vectors)
	}
	l.record(ctx, report)
	return items, report, nil
}

type fetchResult struct {
	vectors []model.FeatureVector
	skip    *Skipped
}

func (l *Loader) key(name string) string {
	if l.prefix == "" {
		return name
	}
	return path.Join(l.prefix, name)
}

func (l *Loader) fetchAll(ctx context.Context, names []string) ([]fetchResult, error) {
	results := make([]fetchResult, len(names))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.concurrency)
	for i, name := range names {
		i, name := i, name
		g.Go(func() error {
			vectors, skip, err := l.fetch(gctx, name)
			if err != nil {
				return err
			}
			results[i] = fetchResult{vectors: vectors, skip: skip}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// fetch returns the rows of one object, a skip describing why it is
// unusable, or an error when the load itself must stop.
func (l *Loader) fetch(ctx context.Context, name string) ([]model.FeatureVector, *Skipped, error) {
	data, err := l.store.Get(ctx, l.key(name))
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, nil, ctxErr
		}
		reason := ReasonRead
		if errors.Is(err, blobstore.ErrNotFound) {
			reason = ReasonMissing
		}
		return nil, &Skipped{Name: name, Reason: reason, Err: err}, nil
	}

	arr, err := DecodeNPY(data)
	if err != nil {
		return nil, &Skipped{Name: name, Reason: ReasonDecode, Err: err}, nil
	}
	rows, err := arr.Rows(l.dim)
	if err != nil {
		reason := ReasonShape
		if errors.Is(err, ErrScalar) {
			reason = ReasonScalar
		}
		return nil, &Skipped{Name: name, Reason: reason, Err: err}, nil
	}

	vectors := make([]model.FeatureVector, 0, len(rows))
	for _, row := range rows {
		v, err := model.NewFeatureVector(row, l.dim)
		if err != nil {
			return nil, &Skipped{Name: name, Reason: ReasonNonFinite, Err: err}, nil
		}
		vectors = append(vectors, v)
	}
	return vectors, nil, nil
}

func (l *Loader) record(ctx context.Context, report Report) {
	metrics.RecordEmbeddingsLoaded(report.Rows)
	for _, s := range report.Skipped {
		metrics.RecordEmbeddingSkipped(s.Reason)
		l.log.Warn(ctx, "embedding skipped",
			logger.String("name", s.Name),
			logger.String("region", s.Region),
			logger.String("reason", s.Reason),
			logger.Error(s.Err),
		)
	}
	l.log.Info(ctx, "embeddings loaded",
		logger.Int("items", report.Items),
		logger.Int("rows", report.Rows),
		logger.Int("skipped", len(report.Skipped)),
	)
}
