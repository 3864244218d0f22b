// Package profile builds per-region mean/covariance profiles from labeled
// embeddings.
package profile

import (
	"fmt"
	"sort"

	"github.com/okian/regionsel/internal/domain/linalg"
	"github.com/okian/regionsel/internal/domain/model"
	"gonum.org/v1/gonum/mat"
)

// Default builder configuration constants.
const (
	defaultRidge = 1e-6
)

// Report describes how the samples were turned into profiles.
type Report struct {
	Samples     int
	Regions     int
	Excluded    []string // single-sample regions dropped by PolicyExclude
	Regularized []string // regions whose covariance received the ridge term
}

// Builder aggregates labeled samples into a ProfileSet. It holds no state
// between calls and is safe for concurrent use.
type Builder struct {
	policy       Policy
	ridge        float64
	dim          int
	maxCondition float64
}

// NewBuilder creates a builder with configuration options.
func NewBuilder(opts ...Option) *Builder {
	b := &Builder{
		policy:       PolicyRegularize,
		ridge:        defaultRidge,
		maxCondition: linalg.DefaultMaxCondition,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Policy returns the configured degenerate covariance policy.
func (b *Builder) Policy() Policy { return b.policy }

// Build groups samples by region and computes one profile per region.
func (b *Builder) Build(samples []model.LabeledSample) (*model.ProfileSet, Report, error) {
	if len(samples) == 0 {
		return nil, Report{}, ErrNoSamples
	}

	dim := b.dim
	if dim == 0 {
		dim = samples[0].Vector.Dim()
	}
	if dim < 1 {
		return nil, Report{}, fmt.Errorf("sample 0: %w: %d", model.ErrInvalidDimension, dim)
	}

	groups := make(map[string][]int)
	for i, s := range samples {
		if s.Region == "" {
			return nil, Report{}, fmt.Errorf("sample %d: %w", i, model.ErrEmptyRegion)
		}
		if got := s.Vector.Dim(); got != dim {
			return nil, Report{}, &model.DimensionMismatchError{Index: i, Expected: dim, Got: got}
		}
		groups[s.Region] = append(groups[s.Region], i)
	}

	labels := make([]string, 0, len(groups))
	for label := range groups {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	report := Report{Samples: len(samples)}
	profiles := make([]*model.RegionProfile, 0, len(labels))
	for _, label := range labels {
		idx := groups[label]
		if len(idx) < 2 && b.policy == PolicyExclude {
			report.Excluded = append(report.Excluded, label)
			continue
		}

		p, regularized, err := b.buildRegion(label, samples, idx, dim)
		if err != nil {
			return nil, Report{}, fmt.Errorf("region %q: %w", label, err)
		}
		if regularized {
			report.Regularized = append(report.Regularized, label)
		}
		profiles = append(profiles, p)
	}

	set, err := model.NewProfileSet(profiles...)
	if err != nil {
		return nil, Report{}, err
	}
	report.Regions = set.Len()
	return set, report, nil
}

func (b *Builder) buildRegion(label string, samples []model.LabeledSample, idx []int, dim int) (*model.RegionProfile, bool, error) {
	x := mat.NewDense(len(idx), dim, nil)
	for r, i := range idx {
		x.SetRow(r, samples[i].Vector.Values())
	}

	mean, err := model.NewFeatureVector(linalg.ColumnMeans(x), dim)
	if err != nil {
		return nil, false, err
	}

	var cov *mat.SymDense
	regularized := false
	if len(idx) < 2 {
		cov = linalg.ScaledIdentity(dim, b.ridge)
		regularized = true
	} else {
		cov, err = linalg.Covariance(x)
		if err != nil {
			return nil, false, err
		}
		if b.policy == PolicyRegularize && !linalg.WellConditioned(cov, b.maxCondition) {
			cov = linalg.Ridge(cov, b.ridge)
			regularized = true
		}
	}

	p, err := model.NewRegionProfile(label, mean, cov,
		model.WithSamples(len(idx)),
		model.WithRegularized(regularized),
	)
	return p, regularized, err
}
