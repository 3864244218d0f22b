// Package linalg holds the numeric kernels behind region profiles: column
// statistics, regularization and Mahalanobis distance through a Cholesky
// factor or an eigen pseudo-inverse.
package linalg

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// ColumnMeans returns the arithmetic mean of each column of x
// (rows are observations).
func ColumnMeans(x mat.Matrix) []float64 {
	r, c := x.Dims()
	means := make([]float64, c)
	col := make([]float64, r)
	for j := 0; j < c; j++ {
		mat.Col(col, j, x)
		means[j] = stat.Mean(col, nil)
	}
	return means
}

// Covariance returns the unbiased (N-1) sample covariance of x, with columns
// as variables and rows as observations.
func Covariance(x mat.Matrix) (*mat.SymDense, error) {
	r, _ := x.Dims()
	if r < 2 {
		return nil, fmt.Errorf("%w: covariance needs 2 rows, got %d", ErrTooFewObservations, r)
	}
	var cov mat.SymDense
	stat.CovarianceMatrix(&cov, x, nil)
	return &cov, nil
}

// Ridge returns a + eps*I as a new matrix.
func Ridge(a mat.Symmetric, eps float64) *mat.SymDense {
	n := a.SymmetricDim()
	out := mat.NewSymDense(n, nil)
	out.CopySym(a)
	for i := 0; i < n; i++ {
		out.SetSym(i, i, out.At(i, i)+eps)
	}
	return out
}

// ScaledIdentity returns eps*I of size n.
func ScaledIdentity(n int, eps float64) *mat.SymDense {
	out := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		out.SetSym(i, i, eps)
	}
	return out
}

// WellConditioned reports whether a admits a Cholesky factorization whose
// condition number does not exceed maxCond.
func WellConditioned(a mat.Symmetric, maxCond float64) bool {
	var ch mat.Cholesky
	if !ch.Factorize(a) {
		return false
	}
	return maxCond <= 0 || ch.Cond() <= maxCond
}
