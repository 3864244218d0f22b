package selector_test

import (
	"errors"
	"sync"
	"testing"

	"github.com/okian/regionsel/internal/domain/linalg"
	"github.com/okian/regionsel/internal/domain/model"
	"github.com/okian/regionsel/internal/domain/profile"
	"github.com/okian/regionsel/internal/domain/selector"
	. "github.com/smartystreets/goconvey/convey"
	"gonum.org/v1/gonum/mat"
)

func vec(values ...float64) model.FeatureVector {
	v, err := model.VectorOf(values...)
	if err != nil {
		panic(err)
	}
	return v
}

func region(label string, mean model.FeatureVector, cov []float64) *model.RegionProfile {
	p, err := model.NewRegionProfile(label, mean, mat.NewSymDense(mean.Dim(), cov))
	if err != nil {
		panic(err)
	}
	return p
}

func set(profiles ...*model.RegionProfile) *model.ProfileSet {
	s, err := model.NewProfileSet(profiles...)
	if err != nil {
		panic(err)
	}
	return s
}

func TestSelector_Select(t *testing.T) {
	Convey("Given two well-separated regions", t, func() {
		ps := set(
			region("north", vec(0, 0), []float64{1, 0, 0, 1}),
			region("south", vec(10, 10), []float64{4, 0, 0, 4}),
		)
		sel := selector.New()

		Convey("When querying near the north mean", func() {
			res, err := sel.Select(ps, vec(1, 0))

			Convey("Then north is selected with its Mahalanobis distance", func() {
				So(err, ShouldBeNil)
				So(res.Region, ShouldEqual, "north")
				So(res.Distance, ShouldAlmostEqual, 1.0, 1e-12)
				So(res.PseudoInverse, ShouldBeFalse)
				So(res.Skipped, ShouldBeEmpty)
			})
		})

		Convey("When querying a region's own mean", func() {
			res, err := sel.Select(ps, vec(10, 10))

			Convey("Then the distance is zero", func() {
				So(err, ShouldBeNil)
				So(res.Region, ShouldEqual, "south")
				So(res.Distance, ShouldAlmostEqual, 0.0, 1e-12)
			})
		})

		Convey("When the same query is repeated", func() {
			prepared := sel.Prepare(ps)
			first, err := prepared.Select(vec(3, 4))
			So(err, ShouldBeNil)

			Convey("Then every call returns the identical result", func() {
				for i := 0; i < 50; i++ {
					again, err := prepared.Select(vec(3, 4))
					So(err, ShouldBeNil)
					So(again.Region, ShouldEqual, first.Region)
					So(again.Distance, ShouldEqual, first.Distance)
				}
			})
		})

		Convey("When the query has the wrong dimension", func() {
			_, err := sel.Select(ps, vec(1, 2, 3))

			Convey("Then expected and actual dimensions are reported", func() {
				var dm *model.DimensionMismatchError
				So(errors.As(err, &dm), ShouldBeTrue)
				So(dm.Expected, ShouldEqual, 2)
				So(dm.Got, ShouldEqual, 3)
				So(errors.Is(err, model.ErrDimensionMismatch), ShouldBeTrue)
			})
		})
	})

	Convey("Given regions with identical statistics", t, func() {
		ps := set(
			region("zulu", vec(1, 1), []float64{1, 0, 0, 1}),
			region("alpha", vec(1, 1), []float64{1, 0, 0, 1}),
			region("mike", vec(1, 1), []float64{1, 0, 0, 1}),
		)

		Convey("Then the lexically smallest label wins every time", func() {
			for i := 0; i < 20; i++ {
				res, err := selector.New().Select(ps, vec(1, 1))
				So(err, ShouldBeNil)
				So(res.Region, ShouldEqual, "alpha")
			}
		})
	})

	Convey("Given a singular region next to a usable one", t, func() {
		ps := set(
			region("A", vec(0, 0), []float64{0, 0, 0, 0}),
			region("B", vec(5, 5), []float64{1, 0, 0, 1}),
		)

		Convey("When selecting", func() {
			res, err := selector.New().Select(ps, vec(0, 0))

			Convey("Then B is returned and A is reported as skipped", func() {
				So(err, ShouldBeNil)
				So(res.Region, ShouldEqual, "B")
				So(res.SkippedRegions(), ShouldResemble, []string{"A"})
				So(res.Skipped[0].Kind, ShouldEqual, model.SkipSingularAlways)
				So(errors.Is(res.Skipped[0].Err, selector.ErrSingularCovariance), ShouldBeTrue)
			})
		})

		Convey("Then the prepared set lists A as unusable", func() {
			p := selector.New().Prepare(ps)
			So(p.Unusable(), ShouldResemble, []string{"A"})
			infos := p.Regions()
			So(infos[0].Usable, ShouldBeFalse)
			So(infos[1].Method, ShouldEqual, linalg.MethodCholesky)
		})
	})

	Convey("Given only singular regions", t, func() {
		ps := set(
			region("A", vec(0, 0), []float64{0, 0, 0, 0}),
			region("B", vec(1, 1), []float64{0, 0, 0, 0}),
		)

		Convey("Then selection fails with NoUsableProfileError", func() {
			_, err := selector.New().Select(ps, vec(0, 0))
			So(errors.Is(err, selector.ErrNoUsableProfile), ShouldBeTrue)
			So(errors.Is(err, selector.ErrEmptyProfileSet), ShouldBeFalse)
			var nu *selector.NoUsableProfileError
			So(errors.As(err, &nu), ShouldBeTrue)
			So(nu.Regions, ShouldEqual, 2)
			So(len(nu.Skipped), ShouldEqual, 2)
		})
	})

	Convey("Given an empty profile set", t, func() {
		empty := set()

		Convey("Then selection fails with EmptyProfileSetError", func() {
			_, err := selector.New().Select(empty, vec(0, 0))
			So(errors.Is(err, selector.ErrEmptyProfileSet), ShouldBeTrue)

			_, err = selector.New().Select(nil, vec(0, 0))
			So(errors.Is(err, selector.ErrEmptyProfileSet), ShouldBeTrue)
		})
	})

	Convey("Given a rank-deficient region", t, func() {
		// line region: variance only along the first axis
		ps := set(
			region("line", vec(0, 0), []float64{4, 0, 0, 0}),
			region("round", vec(20, 20), []float64{1, 0, 0, 1}),
		)

		Convey("When the query lies on the line", func() {
			res, err := selector.New().Select(ps, vec(2, 0))

			Convey("Then the pseudo-inverse distance is used and flagged", func() {
				So(err, ShouldBeNil)
				So(res.Region, ShouldEqual, "line")
				So(res.Distance, ShouldAlmostEqual, 1.0, 1e-9)
				So(res.PseudoInverse, ShouldBeTrue)
			})
		})

		Convey("When the query leaves the line", func() {
			res, err := selector.New().Select(ps, vec(2, 1))

			Convey("Then the line region is skipped for this query only", func() {
				So(err, ShouldBeNil)
				So(res.Region, ShouldEqual, "round")
				So(res.Skipped[0].Region, ShouldEqual, "line")
				So(res.Skipped[0].Kind, ShouldEqual, model.SkipSingularForQuery)
			})
		})

		Convey("When the fallback is disabled", func() {
			res, err := selector.New(selector.WithPseudoInverse(false)).Select(ps, vec(2, 0))

			Convey("Then the region is singular for every query", func() {
				So(err, ShouldBeNil)
				So(res.Region, ShouldEqual, "round")
				So(res.Skipped[0].Kind, ShouldEqual, model.SkipSingularAlways)
			})
		})
	})

	Convey("Given concurrent queries against one prepared set", t, func() {
		p := selector.New().Prepare(set(
			region("north", vec(0, 0), []float64{1, 0, 0, 1}),
			region("south", vec(10, 10), []float64{1, 0, 0, 1}),
		))

		Convey("Then every goroutine observes the same answer", func() {
			var wg sync.WaitGroup
			results := make([]string, 16)
			for i := range results {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					res, err := p.Select(vec(9, 9))
					if err == nil {
						results[i] = res.Region
					}
				}(i)
			}
			wg.Wait()
			for _, r := range results {
				So(r, ShouldEqual, "south")
			}
		})
	})
}

func TestBuildThenSelect(t *testing.T) {
	Convey("Given duplicated samples per region", t, func() {
		samples := []model.LabeledSample{
			{Region: "north", Vector: vec(1, 0)},
			{Region: "north", Vector: vec(1, 0)},
			{Region: "south", Vector: vec(5, 5)},
			{Region: "south", Vector: vec(5, 5)},
		}

		Convey("When profiles are built with the regularize policy", func() {
			ps, report, err := profile.NewBuilder().Build(samples)
			So(err, ShouldBeNil)
			So(report.Regularized, ShouldResemble, []string{"north", "south"})

			north, _ := ps.Get("north")
			So(north.Mean().Values(), ShouldResemble, []float64{1, 0})
			So(north.Covariance().At(0, 0), ShouldAlmostEqual, 0.0, 1e-5)

			Convey("Then querying the north mean selects north at zero distance", func() {
				res, err := selector.New().Select(ps, vec(1, 0))
				So(err, ShouldBeNil)
				So(res.Region, ShouldEqual, "north")
				So(res.Distance, ShouldAlmostEqual, 0.0, 1e-9)
			})
		})

		Convey("When profiles are built without regularization", func() {
			ps, _, err := profile.NewBuilder(profile.WithPolicy(profile.PolicyExclude)).Build(samples)
			So(err, ShouldBeNil)

			Convey("Then both zero covariances are unusable", func() {
				_, err := selector.New().Select(ps, vec(1, 0))
				So(errors.Is(err, selector.ErrNoUsableProfile), ShouldBeTrue)
			})
		})
	})

	Convey("Given samples of several widths", t, func() {
		for _, d := range []int{1, 2, 5} {
			good := make([]float64, d)
			bad := make([]float64, d+1)
			gv, _ := model.NewFeatureVector(good, d)
			bv, _ := model.NewFeatureVector(bad, d+1)

			_, _, err := profile.NewBuilder().Build([]model.LabeledSample{
				{Region: "r", Vector: gv},
				{Region: "r", Vector: bv},
			})
			So(errors.Is(err, model.ErrDimensionMismatch), ShouldBeTrue)

			ps, _, err := profile.NewBuilder().Build([]model.LabeledSample{
				{Region: "r", Vector: gv},
				{Region: "r", Vector: gv},
			})
			So(err, ShouldBeNil)
			_, err = selector.New().Select(ps, bv)
			So(errors.Is(err, model.ErrDimensionMismatch), ShouldBeTrue)
		}
	})
}
