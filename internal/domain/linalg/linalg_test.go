package linalg_test

import (
	"errors"
	"math"
	"testing"

	"github.com/okian/regionsel/internal/domain/linalg"
	. "github.com/smartystreets/goconvey/convey"
	"gonum.org/v1/gonum/mat"
)

func TestColumnStatistics(t *testing.T) {
	Convey("Given observations as rows", t, func() {
		x := mat.NewDense(3, 2, []float64{
			1, 2,
			3, 6,
			5, 10,
		})

		Convey("Then column means are per-dimension averages", func() {
			So(linalg.ColumnMeans(x), ShouldResemble, []float64{3, 6})
		})

		Convey("Then the covariance uses N-1 normalization", func() {
			cov, err := linalg.Covariance(x)
			So(err, ShouldBeNil)
			So(cov.At(0, 0), ShouldAlmostEqual, 4.0, 1e-12)
			So(cov.At(1, 1), ShouldAlmostEqual, 16.0, 1e-12)
			So(cov.At(0, 1), ShouldAlmostEqual, 8.0, 1e-12)
			So(cov.At(1, 0), ShouldEqual, cov.At(0, 1))
		})

		Convey("When there is a single observation", func() {
			_, err := linalg.Covariance(mat.NewDense(1, 2, []float64{1, 2}))
			So(errors.Is(err, linalg.ErrTooFewObservations), ShouldBeTrue)
		})
	})
}

func TestRidge(t *testing.T) {
	Convey("Given a singular matrix", t, func() {
		zero := mat.NewSymDense(2, nil)
		So(linalg.WellConditioned(zero, linalg.DefaultMaxCondition), ShouldBeFalse)

		Convey("When a ridge term is added", func() {
			r := linalg.Ridge(zero, 0.5)

			Convey("Then the diagonal is lifted and the input is untouched", func() {
				So(r.At(0, 0), ShouldEqual, 0.5)
				So(r.At(0, 1), ShouldEqual, 0.0)
				So(zero.At(0, 0), ShouldEqual, 0.0)
				So(linalg.WellConditioned(r, linalg.DefaultMaxCondition), ShouldBeTrue)
			})
		})

		Convey("Then a scaled identity is diagonal", func() {
			id := linalg.ScaledIdentity(3, 2)
			So(id.At(2, 2), ShouldEqual, 2.0)
			So(id.At(0, 2), ShouldEqual, 0.0)
		})
	})
}

func TestFactorize(t *testing.T) {
	Convey("Given a well-conditioned covariance", t, func() {
		cov := mat.NewSymDense(2, []float64{4, 0, 0, 1})
		f, err := linalg.Factorize(cov, linalg.DefaultFactorOptions())
		So(err, ShouldBeNil)
		So(f.Method(), ShouldEqual, linalg.MethodCholesky)
		So(f.Rank(), ShouldEqual, 2)

		Convey("Then the distance scales each axis by its deviation", func() {
			d, err := f.Distance(mat.NewVecDense(2, []float64{2, 1}), 0)
			So(err, ShouldBeNil)
			So(d, ShouldAlmostEqual, math.Sqrt(2), 1e-12)
		})

		Convey("Then a zero residual has zero distance", func() {
			d, err := f.Distance(mat.NewVecDense(2, nil), 0)
			So(err, ShouldBeNil)
			So(d, ShouldEqual, 0.0)
		})

		Convey("When the residual has the wrong length", func() {
			_, err := f.Distance(mat.NewVecDense(3, nil), 0)
			So(errors.Is(err, linalg.ErrShape), ShouldBeTrue)
		})
	})

	Convey("Given a rank-deficient covariance", t, func() {
		// variance only along the first axis
		cov := mat.NewSymDense(2, []float64{4, 0, 0, 0})

		Convey("When the pseudo-inverse fallback is enabled", func() {
			f, err := linalg.Factorize(cov, linalg.DefaultFactorOptions())
			So(err, ShouldBeNil)
			So(f.Method(), ShouldEqual, linalg.MethodPseudoInverse)
			So(f.Rank(), ShouldEqual, 1)

			Convey("Then residuals inside the range are measured", func() {
				d, err := f.Distance(mat.NewVecDense(2, []float64{4, 0}), 0)
				So(err, ShouldBeNil)
				So(d, ShouldAlmostEqual, 2.0, 1e-9)
			})

			Convey("Then residuals leaving the range are rejected", func() {
				_, err := f.Distance(mat.NewVecDense(2, []float64{0, 1}), 0)
				So(errors.Is(err, linalg.ErrOutOfRange), ShouldBeTrue)
			})
		})

		Convey("When the fallback is disabled", func() {
			opts := linalg.DefaultFactorOptions()
			opts.PseudoInverse = false
			_, err := linalg.Factorize(cov, opts)
			So(errors.Is(err, linalg.ErrSingular), ShouldBeTrue)
		})
	})

	Convey("Given an all-zero covariance", t, func() {
		_, err := linalg.Factorize(mat.NewSymDense(2, nil), linalg.DefaultFactorOptions())

		Convey("Then no factorization exists", func() {
			So(errors.Is(err, linalg.ErrSingular), ShouldBeTrue)
		})
	})
}

func TestMahalanobis(t *testing.T) {
	Convey("Given a correlated covariance", t, func() {
		cov := mat.NewSymDense(2, []float64{2, 1, 1, 2})
		mean := mat.NewVecDense(2, []float64{1, 1})

		Convey("Then the distance matches the closed form", func() {
			// inverse of [[2,1],[1,2]] is (1/3)[[2,-1],[-1,2]]; for d=(1,0): 2/3
			d, err := linalg.Mahalanobis(mat.NewVecDense(2, []float64{2, 1}), mean, cov)
			So(err, ShouldBeNil)
			So(d, ShouldAlmostEqual, math.Sqrt(2.0/3.0), 1e-12)
		})

		Convey("Then the mean has zero distance to itself", func() {
			d, err := linalg.Mahalanobis(mean, mean, cov)
			So(err, ShouldBeNil)
			So(d, ShouldAlmostEqual, 0.0, 1e-12)
		})
	})
}
