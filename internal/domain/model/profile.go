package model

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
)

// symmetryTolerance bounds |a_ij - a_ji| relative to the entry magnitude when
// a covariance is read from rows.
const symmetryTolerance = 1e-9

// ProfileOption applies optional metadata to a RegionProfile.
type ProfileOption func(*RegionProfile)

// WithSamples records how many samples the profile was built from.
func WithSamples(n int) ProfileOption {
	return func(p *RegionProfile) {
		if n > 0 {
			p.samples = n
		}
	}
}

// WithRegularized marks the covariance as ridge-regularized.
func WithRegularized(regularized bool) ProfileOption {
	return func(p *RegionProfile) {
		p.regularized = regularized
	}
}

// RegionProfile is the mean and covariance of one region's embeddings.
// It is immutable once constructed.
type RegionProfile struct {
	region      string
	mean        FeatureVector
	cov         *mat.SymDense
	samples     int
	regularized bool
}

// NewRegionProfile validates and copies mean and cov into a RegionProfile.
func NewRegionProfile(region string, mean FeatureVector, cov mat.Symmetric, opts ...ProfileOption) (*RegionProfile, error) {
	if region == "" {
		return nil, ErrEmptyRegion
	}
	if mean.Dim() == 0 {
		return nil, fmt.Errorf("%w: region %q has an empty mean", ErrInvalidProfile, region)
	}
	if cov == nil {
		return nil, fmt.Errorf("%w: region %q has no covariance", ErrInvalidProfile, region)
	}
	if n := cov.SymmetricDim(); n != mean.Dim() {
		return nil, &DimensionMismatchError{Index: -1, Region: region, Expected: mean.Dim(), Got: n}
	}

	n := mean.Dim()
	c := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			v := cov.At(i, j)
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, fmt.Errorf("%w: region %q covariance[%d][%d]", ErrNonFinite, region, i, j)
			}
			c.SetSym(i, j, v)
		}
	}

	p := &RegionProfile{region: region, mean: mean, cov: c}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// CovarianceFromRows converts a square row-major matrix into a symmetric one.
// Off-diagonal pairs may differ by rounding noise; the upper triangle is kept.
func CovarianceFromRows(rows [][]float64) (*mat.SymDense, error) {
	n := len(rows)
	if n == 0 {
		return nil, fmt.Errorf("%w: empty covariance", ErrInvalidProfile)
	}
	for i, row := range rows {
		if len(row) != n {
			return nil, fmt.Errorf("%w: covariance row %d has %d columns, expected %d", ErrInvalidProfile, i, len(row), n)
		}
	}
	c := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			a, b := rows[i][j], rows[j][i]
			if math.Abs(a-b) > symmetryTolerance*math.Max(1, math.Max(math.Abs(a), math.Abs(b))) {
				return nil, fmt.Errorf("%w: covariance is not symmetric at (%d,%d)", ErrInvalidProfile, i, j)
			}
			c.SetSym(i, j, a)
		}
	}
	return c, nil
}

// Region returns the profile label.
func (p *RegionProfile) Region() string { return p.region }

// Dim returns the profile dimension.
func (p *RegionProfile) Dim() int { return p.mean.Dim() }

// Mean returns the region mean.
func (p *RegionProfile) Mean() FeatureVector { return p.mean }

// Covariance returns a read-only view of the covariance matrix.
func (p *RegionProfile) Covariance() mat.Symmetric { return p.cov }

// CovarianceRows returns a row-major copy of the covariance matrix.
func (p *RegionProfile) CovarianceRows() [][]float64 {
	n := p.Dim()
	rows := make([][]float64, n)
	for i := range rows {
		rows[i] = make([]float64, n)
		for j := range rows[i] {
			rows[i][j] = p.cov.At(i, j)
		}
	}
	return rows
}

// Samples returns the number of samples behind the profile, 0 if unknown.
func (p *RegionProfile) Samples() int { return p.samples }

// Regularized reports whether a ridge term was added to the covariance.
func (p *RegionProfile) Regularized() bool { return p.regularized }

// ProfileSet maps region labels to profiles sharing one dimension.
// It is immutable once constructed; rebuild and republish instead of mutating.
type ProfileSet struct {
	profiles map[string]*RegionProfile
	labels   []string
	dim      int
}

// NewProfileSet builds a set from profiles. An empty set is valid.
func NewProfileSet(profiles ...*RegionProfile) (*ProfileSet, error) {
	s := &ProfileSet{profiles: make(map[string]*RegionProfile, len(profiles))}
	for _, p := range profiles {
		if p == nil {
			return nil, fmt.Errorf("%w: nil profile", ErrInvalidProfile)
		}
		if _, dup := s.profiles[p.region]; dup {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateRegion, p.region)
		}
		if s.dim == 0 {
			s.dim = p.Dim()
		} else if p.Dim() != s.dim {
			return nil, &DimensionMismatchError{Index: -1, Region: p.region, Expected: s.dim, Got: p.Dim()}
		}
		s.profiles[p.region] = p
		s.labels = append(s.labels, p.region)
	}
	sort.Strings(s.labels)
	return s, nil
}

// Len returns the number of regions. A nil set has length 0.
func (s *ProfileSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.labels)
}

// Dim returns the shared dimension, 0 for an empty set.
func (s *ProfileSet) Dim() int {
	if s == nil {
		return 0
	}
	return s.dim
}

// Labels returns the region labels in lexical order.
func (s *ProfileSet) Labels() []string {
	if s == nil {
		return nil
	}
	out := make([]string, len(s.labels))
	copy(out, s.labels)
	return out
}

// Get returns the profile for label.
func (s *ProfileSet) Get(label string) (*RegionProfile, bool) {
	if s == nil {
		return nil, false
	}
	p, ok := s.profiles[label]
	return p, ok
}

// Each calls fn for every profile in lexical label order.
func (s *ProfileSet) Each(fn func(p *RegionProfile)) {
	if s == nil {
		return
	}
	for _, label := range s.labels {
		fn(s.profiles[label])
	}
}
