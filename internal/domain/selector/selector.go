// Package selector picks the region whose profile is nearest to a query
// embedding under the Mahalanobis metric.
package selector

import (
	"errors"
	"math"

	"github.com/okian/regionsel/internal/domain/linalg"
	"github.com/okian/regionsel/internal/domain/model"
	"gonum.org/v1/gonum/mat"
)

// Default selection configuration constants.
const (
	defaultTieEpsilon = 1e-9
)

// Selector holds selection tolerances. It is stateless and safe for
// concurrent use.
type Selector struct {
	factor         linalg.FactorOptions
	rangeTolerance float64
	tieEpsilon     float64
}

// New creates a selector with configuration options.
func New(opts ...Option) *Selector {
	s := &Selector{
		factor:         linalg.DefaultFactorOptions(),
		rangeTolerance: linalg.DefaultRangeTolerance,
		tieEpsilon:     defaultTieEpsilon,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RegionInfo describes how a region's covariance was factorized.
type RegionInfo struct {
	Region    string
	Samples   int
	Method    linalg.Method
	Rank      int
	Condition float64
	Usable    bool
	Err       error
}

type preparedRegion struct {
	profile *model.RegionProfile
	mean    *mat.VecDense
	factor  *linalg.Factor
	err     *SingularCovarianceError
}

// Prepared is a profile set with every covariance factorized once. It is
// read-only and may be shared by concurrent queries.
type Prepared struct {
	set            *model.ProfileSet
	regions        []preparedRegion
	rangeTolerance float64
	tieEpsilon     float64
}

// Prepare factorizes every covariance of set. A nil or empty set yields a
// Prepared whose Select reports EmptyProfileSetError.
func (s *Selector) Prepare(set *model.ProfileSet) *Prepared {
	p := &Prepared{
		set:            set,
		rangeTolerance: s.rangeTolerance,
		tieEpsilon:     s.tieEpsilon,
	}
	set.Each(func(rp *model.RegionProfile) {
		r := preparedRegion{profile: rp, mean: rp.Mean().Vec()}
		f, err := linalg.Factorize(rp.Covariance(), s.factor)
		if err != nil {
			r.err = &SingularCovarianceError{Region: rp.Region(), Persistent: true, Err: err}
		} else {
			r.factor = f
		}
		p.regions = append(p.regions, r)
	})
	return p
}

// Select prepares set and selects the nearest region for x. Callers scoring
// many queries against one set should Prepare once instead.
func (s *Selector) Select(set *model.ProfileSet, x model.FeatureVector) (model.SelectionResult, error) {
	return s.Prepare(set).Select(x)
}

// Set returns the underlying profile set.
func (p *Prepared) Set() *model.ProfileSet { return p.set }

// Regions returns factorization details in lexical label order.
func (p *Prepared) Regions() []RegionInfo {
	out := make([]RegionInfo, 0, len(p.regions))
	for _, r := range p.regions {
		info := RegionInfo{Region: r.profile.Region(), Samples: r.profile.Samples()}
		if r.factor != nil {
			info.Method = r.factor.Method()
			info.Rank = r.factor.Rank()
			info.Condition = r.factor.Condition()
			info.Usable = true
		} else {
			info.Err = r.err
		}
		out = append(out, info)
	}
	return out
}

// Unusable returns the regions that are singular for every query.
func (p *Prepared) Unusable() []string {
	var out []string
	for _, r := range p.regions {
		if r.factor == nil {
			out = append(out, r.profile.Region())
		}
	}
	return out
}

// Select returns the nearest region to x. Regions whose covariance cannot be
// inverted are skipped and reported; ties resolve to the lexically smallest
// label.
func (p *Prepared) Select(x model.FeatureVector) (model.SelectionResult, error) {
	if len(p.regions) == 0 {
		return model.SelectionResult{}, &EmptyProfileSetError{}
	}
	if dim := p.set.Dim(); x.Dim() != dim {
		return model.SelectionResult{}, &model.DimensionMismatchError{Index: -1, Expected: dim, Got: x.Dim()}
	}

	q := x.Vec()
	var (
		res   model.SelectionResult
		found bool
		diff  mat.VecDense
	)
	for _, r := range p.regions {
		label := r.profile.Region()
		if r.err != nil {
			res.Skipped = append(res.Skipped, model.Skip{Region: label, Kind: model.SkipSingularAlways, Err: r.err})
			continue
		}

		diff.SubVec(q, r.mean)
		d, err := r.factor.Distance(&diff, p.rangeTolerance)
		if err != nil {
			kind := model.SkipSingularForQuery
			persistent := false
			if !errors.Is(err, linalg.ErrOutOfRange) {
				kind = model.SkipSingularAlways
				persistent = true
			}
			res.Skipped = append(res.Skipped, model.Skip{
				Region: label,
				Kind:   kind,
				Err:    &SingularCovarianceError{Region: label, Persistent: persistent, Err: err},
			})
			continue
		}

		// regions are visited in lexical order, so a tie keeps the earlier label
		if !found || d < res.Distance-p.tieEpsilon*math.Max(1, res.Distance) {
			res.Region = label
			res.Distance = d
			res.PseudoInverse = r.factor.Method() == linalg.MethodPseudoInverse
			found = true
		}
	}

	if !found {
		return model.SelectionResult{}, &NoUsableProfileError{Regions: len(p.regions), Skipped: res.Skipped}
	}
	return res, nil
}
