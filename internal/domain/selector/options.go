package selector

// Option applies a configuration option to the Selector.
type Option func(*Selector)

// WithMaxCondition sets the Cholesky condition limit beyond which a covariance
// is treated as ill-conditioned.
func WithMaxCondition(c float64) Option {
	return func(s *Selector) {
		if c > 0 {
			s.factor.MaxCondition = c
		}
	}
}

// WithRCond sets the relative eigenvalue cut of the pseudo-inverse fallback.
func WithRCond(r float64) Option {
	return func(s *Selector) {
		if r > 0 && r < 1 {
			s.factor.RCond = r
		}
	}
}

// WithPseudoInverse enables or disables the pseudo-inverse fallback.
func WithPseudoInverse(enabled bool) Option {
	return func(s *Selector) {
		s.factor.PseudoInverse = enabled
	}
}

// WithRangeTolerance sets how far outside a rank-deficient covariance's range
// a query may fall before the region is skipped for that query.
func WithRangeTolerance(tol float64) Option {
	return func(s *Selector) {
		if tol > 0 {
			s.rangeTolerance = tol
		}
	}
}

// WithTieEpsilon sets the relative distance difference under which two
// regions are considered tied.
func WithTieEpsilon(eps float64) Option {
	return func(s *Selector) {
		if eps >= 0 {
			s.tieEpsilon = eps
		}
	}
}
