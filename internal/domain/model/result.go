package model

// SkipKind classifies why a region was left out of a comparison.
type SkipKind int

const (
	// SkipSingularAlways marks a region whose covariance cannot be inverted
	// at all; it is skipped for every query.
	SkipSingularAlways SkipKind = iota + 1
	// SkipSingularForQuery marks a rank-deficient region whose pseudo-inverse
	// does not cover this particular query.
	SkipSingularForQuery
)

func (k SkipKind) String() string {
	switch k {
	case SkipSingularAlways:
		return "singular_always"
	case SkipSingularForQuery:
		return "singular_for_query"
	default:
		return "unknown"
	}
}

// Skip records one region excluded from a selection.
type Skip struct {
	Region string
	Kind   SkipKind
	Err    error
}

// SelectionResult is the nearest region for one query.
type SelectionResult struct {
	Region   string
	Distance float64
	// PseudoInverse is set when the winning distance was computed through
	// the pseudo-inverse fallback; its magnitude is not comparable to an
	// exact inverse.
	PseudoInverse bool
	Skipped       []Skip
}

// SkippedRegions returns the labels of skipped regions in report order.
func (r SelectionResult) SkippedRegions() []string {
	out := make([]string, len(r.Skipped))
	for i, s := range r.Skipped {
		out[i] = s.Region
	}
	return out
}

// Selection is a SelectionResult bound to the downstream classifier it routes
// to and the profile set version that produced it.
type Selection struct {
	SelectionResult
	Model          string
	ProfileVersion string
}
