// Package transfer mirrors objects under a prefix from one blob store to
// another.
package transfer

import (
	"context"
	"errors"
	"strings"

	"github.com/okian/regionsel/internal/adapters/blobstore"
	"github.com/okian/regionsel/pkg/logger"
	"github.com/okian/regionsel/pkg/metrics"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// Object outcomes.
const (
	OutcomeCopied  = "copied"
	OutcomeFolder  = "folder"
	OutcomeFailed  = "failed"
	OutcomeSkipped = "skipped"
)

const defaultConcurrency = 4

// ErrSameStore is returned when source and destination are the same store
// and prefix mapping would overwrite objects in place.
var ErrSameStore = errors.New("source and destination are the same")

// Result describes one mirrored object.
type Result struct {
	Source      string
	Destination string
	Outcome     string
	Bytes       int
	Err         error
}

// Report summarizes a mirror run.
type Report struct {
	Results []Result
}

// Count returns the number of results with outcome.
func (r Report) Count(outcome string) int {
	n := 0
	for _, res := range r.Results {
		if res.Outcome == outcome {
			n++
		}
	}
	return n
}

// Failed returns the failed results.
func (r Report) Failed() []Result {
	var out []Result
	for _, res := range r.Results {
		if res.Outcome == OutcomeFailed {
			out = append(out, res)
		}
	}
	return out
}

// Option configures a Mirror.
type Option func(*Mirror)

// WithConcurrency bounds parallel copies.
func WithConcurrency(n int) Option {
	return func(m *Mirror) {
		if n > 0 {
			m.concurrency = n
		}
	}
}

// WithRate limits copies to perSecond objects per second; zero disables.
func WithRate(perSecond float64) Option {
	return func(m *Mirror) {
		if perSecond > 0 {
			burst := int(perSecond)
			if burst < 1 {
				burst = 1
			}
			m.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
		}
	}
}

// WithFilter keeps only source keys for which keep returns true.
func WithFilter(keep func(key string) bool) Option {
	return func(m *Mirror) { m.filter = keep }
}

// WithLogger sets the logger.
func WithLogger(log logger.Logger) Option {
	return func(m *Mirror) {
		if log != nil {
			m.log = log
		}
	}
}

// Mirror copies objects between stores.
type Mirror struct {
	src, dst    blobstore.Store
	concurrency int
	limiter     *rate.Limiter
	filter      func(string) bool
	log         logger.Logger
}

// New creates a Mirror from src to dst.
func New(src, dst blobstore.Store, opts ...Option) *Mirror {
	m := &Mirror{src: src, dst: dst, concurrency: defaultConcurrency}
	for _, opt := range opts {
		opt(m)
	}
	if m.log == nil {
		m.log = logger.Get().Named("transfer")
	}
	return m
}

// Copy mirrors every object under srcPrefix to the same relative name under
// dstPrefix. Folder placeholder keys are recorded but not copied. Per-object
// failures are reported; only listing failures and cancellation return an
// error.
func (m *Mirror) Copy(ctx context.Context, srcPrefix, dstPrefix string) (Report, error) {
	if m.src == m.dst && srcPrefix == dstPrefix {
		return Report{}, ErrSameStore
	}
	keys, err := m.src.List(ctx, srcPrefix)
	if err != nil {
		return Report{}, err
	}

	results := make([]Result, len(keys))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.concurrency)
	for i, key := range keys {
		i, key := i, key
		dst := dstPrefix + strings.TrimPrefix(key, srcPrefix)
		results[i] = Result{Source: key, Destination: dst}

		switch {
		case blobstore.IsFolderKey(key):
			results[i].Outcome = OutcomeFolder
			continue
		case m.filter != nil && !m.filter(key):
			results[i].Outcome = OutcomeSkipped
			continue
		}

		g.Go(func() error {
			if m.limiter != nil {
				if err := m.limiter.Wait(gctx); err != nil {
					return err
				}
			}
			n, err := m.copyOne(gctx, key, dst)
			if err != nil {
				if ctxErr := gctx.Err(); ctxErr != nil {
					return ctxErr
				}
				results[i].Outcome = OutcomeFailed
				results[i].Err = err
				return nil
			}
			results[i].Outcome = OutcomeCopied
			results[i].Bytes = n
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Report{Results: results}, err
	}

	report := Report{Results: results}
	for _, r := range results {
		metrics.RecordTransferObject(r.Outcome, r.Bytes)
		if r.Outcome == OutcomeFailed {
			m.log.Warn(ctx, "object copy failed",
				logger.String("source", r.Source),
				logger.String("destination", r.Destination),
				logger.Error(r.Err),
			)
		}
	}
	m.log.Info(ctx, "mirror complete",
		logger.String("source_prefix", srcPrefix),
		logger.String("destination_prefix", dstPrefix),
		logger.Int("copied", report.Count(OutcomeCopied)),
		logger.Int("failed", report.Count(OutcomeFailed)),
		logger.Int("folders", report.Count(OutcomeFolder)),
	)
	return report, nil
}

func (m *Mirror) copyOne(ctx context.Context, src, dst string) (int, error) {
	data, err := m.src.Get(ctx, src)
	if err != nil {
		return 0, err
	}
	if err := m.dst.Put(ctx, dst, data); err != nil {
		return 0, err
	}
	return len(data), nil
}
