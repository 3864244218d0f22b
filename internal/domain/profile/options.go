package profile

// Policy decides what happens to regions whose covariance is degenerate.
type Policy int

const (
	// PolicyRegularize substitutes ridge*I for single-sample regions and adds
	// ridge*I to covariances that are not positive definite.
	PolicyRegularize Policy = iota
	// PolicyExclude drops single-sample regions and reports them; other
	// covariances are kept exactly as computed.
	PolicyExclude
)

func (p Policy) String() string {
	switch p {
	case PolicyRegularize:
		return "regularize"
	case PolicyExclude:
		return "exclude"
	default:
		return "unknown"
	}
}

// ParsePolicy maps a configuration string onto a Policy.
func ParsePolicy(s string) (Policy, error) {
	switch s {
	case "", "regularize":
		return PolicyRegularize, nil
	case "exclude":
		return PolicyExclude, nil
	default:
		return 0, &UnknownPolicyError{Value: s}
	}
}

// Option applies a configuration option to the Builder.
type Option func(*Builder)

// WithPolicy sets the degenerate covariance policy.
func WithPolicy(p Policy) Option {
	return func(b *Builder) {
		b.policy = p
	}
}

// WithRidge sets the regularization term.
func WithRidge(eps float64) Option {
	return func(b *Builder) {
		if eps > 0 {
			b.ridge = eps
		}
	}
}

// WithDimension pins the expected embedding width. Without it the first
// sample's length is used.
func WithDimension(dim int) Option {
	return func(b *Builder) {
		if dim > 0 {
			b.dim = dim
		}
	}
}

// WithMaxCondition sets the condition number above which a covariance is
// treated as degenerate under PolicyRegularize.
func WithMaxCondition(c float64) Option {
	return func(b *Builder) {
		if c > 0 {
			b.maxCondition = c
		}
	}
}
