package linalg

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Default factorization tolerances.
const (
	DefaultMaxCondition   = 1e12
	DefaultRCond          = 1e-10
	DefaultRangeTolerance = 1e-6
)

// Method identifies how the inverse covariance is applied.
type Method int

const (
	// MethodCholesky solves through an exact Cholesky factor.
	MethodCholesky Method = iota + 1
	// MethodPseudoInverse projects onto the eigenvectors whose eigenvalues
	// survive the rcond cut.
	MethodPseudoInverse
)

func (m Method) String() string {
	switch m {
	case MethodCholesky:
		return "cholesky"
	case MethodPseudoInverse:
		return "pseudo_inverse"
	default:
		return "none"
	}
}

// FactorOptions tunes Factorize.
type FactorOptions struct {
	// MaxCondition rejects Cholesky factors with a larger condition estimate.
	// Zero disables the check.
	MaxCondition float64
	// RCond drops eigenvalues below RCond*max eigenvalue in the fallback.
	RCond float64
	// PseudoInverse enables the eigen fallback when Cholesky is rejected.
	PseudoInverse bool
}

// DefaultFactorOptions returns the tolerances used when none are configured.
func DefaultFactorOptions() FactorOptions {
	return FactorOptions{
		MaxCondition:  DefaultMaxCondition,
		RCond:         DefaultRCond,
		PseudoInverse: true,
	}
}

// Factor applies the inverse of a covariance matrix. It is read-only after
// Factorize and safe for concurrent use.
type Factor struct {
	method Method
	n      int
	rank   int
	cond   float64

	chol *mat.Cholesky

	// pseudo-inverse: kept eigenvectors (n x rank) and reciprocal eigenvalues
	vecs *mat.Dense
	inv  []float64
}

// Factorize prepares cov for Mahalanobis distance evaluation. It returns an
// error wrapping ErrSingular when cov cannot be inverted under opts.
func Factorize(cov mat.Symmetric, opts FactorOptions) (*Factor, error) {
	n := cov.SymmetricDim()
	if n == 0 {
		return nil, fmt.Errorf("%w: empty matrix", ErrShape)
	}

	var ch mat.Cholesky
	if ch.Factorize(cov) {
		cond := ch.Cond()
		if opts.MaxCondition <= 0 || cond <= opts.MaxCondition {
			return &Factor{method: MethodCholesky, n: n, rank: n, cond: cond, chol: &ch}, nil
		}
		if !opts.PseudoInverse {
			return nil, fmt.Errorf("%w: condition number %.3g exceeds %.3g", ErrSingular, cond, opts.MaxCondition)
		}
	} else if !opts.PseudoInverse {
		return nil, fmt.Errorf("%w: cholesky factorization failed", ErrSingular)
	}

	return pseudoInverse(cov, n, opts.RCond)
}

func pseudoInverse(cov mat.Symmetric, n int, rcond float64) (*Factor, error) {
	var es mat.EigenSym
	if !es.Factorize(cov, true) {
		return nil, fmt.Errorf("%w: eigen decomposition did not converge", ErrSingular)
	}
	values := es.Values(nil)
	var vectors mat.Dense
	es.VectorsTo(&vectors)

	maxVal := 0.0
	for _, v := range values {
		maxVal = math.Max(maxVal, v)
	}
	if maxVal <= 0 {
		return nil, fmt.Errorf("%w: no positive eigenvalues", ErrSingular)
	}
	if rcond <= 0 {
		rcond = DefaultRCond
	}
	cut := rcond * maxVal

	var keep []int
	minKept := maxVal
	for i, v := range values {
		if v > cut {
			keep = append(keep, i)
			minKept = math.Min(minKept, v)
		}
	}
	if len(keep) == 0 {
		return nil, fmt.Errorf("%w: no eigenvalue above cut %.3g", ErrSingular, cut)
	}

	vecs := mat.NewDense(n, len(keep), nil)
	inv := make([]float64, len(keep))
	col := make([]float64, n)
	for k, i := range keep {
		mat.Col(col, i, &vectors)
		vecs.SetCol(k, col)
		inv[k] = 1 / values[i]
	}

	return &Factor{
		method: MethodPseudoInverse,
		n:      n,
		rank:   len(keep),
		cond:   maxVal / minKept,
		vecs:   vecs,
		inv:    inv,
	}, nil
}

// Method reports the inversion strategy.
func (f *Factor) Method() Method { return f.method }

// Rank is the number of directions the factor inverts.
func (f *Factor) Rank() int { return f.rank }

// Condition is the condition estimate of the inverted part.
func (f *Factor) Condition() float64 { return f.cond }

// Distance returns sqrt(dᵀ Σ⁻¹ d) for a residual d = x - mean.
// For pseudo-inverse factors, a residual whose component outside the
// covariance range exceeds rangeTol*max(1, |d|) yields ErrOutOfRange.
func (f *Factor) Distance(d mat.Vector, rangeTol float64) (float64, error) {
	if d.Len() != f.n {
		return 0, fmt.Errorf("%w: residual length %d, expected %d", ErrShape, d.Len(), f.n)
	}

	switch f.method {
	case MethodCholesky:
		var y mat.VecDense
		if err := f.chol.SolveVecTo(&y, d); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrSingular, err)
		}
		return math.Sqrt(math.Max(0, mat.Dot(d, &y))), nil

	case MethodPseudoInverse:
		var c mat.VecDense
		c.MulVec(f.vecs.T(), d)

		var proj, off mat.VecDense
		proj.MulVec(f.vecs, &c)
		off.SubVec(d, &proj)
		if rangeTol <= 0 {
			rangeTol = DefaultRangeTolerance
		}
		if offNorm := mat.Norm(&off, 2); offNorm > rangeTol*math.Max(1, mat.Norm(d, 2)) {
			return 0, fmt.Errorf("%w: off-range norm %.3g", ErrOutOfRange, offNorm)
		}

		q := 0.0
		for k, w := range f.inv {
			ck := c.AtVec(k)
			q += ck * ck * w
		}
		return math.Sqrt(q), nil

	default:
		return 0, ErrSingular
	}
}

// Mahalanobis computes the distance between x and mean under cov using the
// default factorization options.
func Mahalanobis(x, mean mat.Vector, cov mat.Symmetric) (float64, error) {
	if x.Len() != mean.Len() {
		return 0, fmt.Errorf("%w: vector length %d, mean length %d", ErrShape, x.Len(), mean.Len())
	}
	f, err := Factorize(cov, DefaultFactorOptions())
	if err != nil {
		return 0, err
	}
	var d mat.VecDense
	d.SubVec(x, mean)
	return f.Distance(&d, DefaultRangeTolerance)
}
