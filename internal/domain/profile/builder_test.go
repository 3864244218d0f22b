package profile_test

import (
	"errors"
	"testing"

	"github.com/okian/regionsel/internal/domain/model"
	"github.com/okian/regionsel/internal/domain/profile"
	. "github.com/smartystreets/goconvey/convey"
)

func sample(t *testing.T, region string, values ...float64) model.LabeledSample {
	t.Helper()
	v, err := model.VectorOf(values...)
	if err != nil {
		t.Fatalf("vector: %v", err)
	}
	return model.LabeledSample{Region: region, Vector: v}
}

func TestBuilder_Build(t *testing.T) {
	Convey("Given labeled samples from two regions", t, func() {
		samples := []model.LabeledSample{
			sample(t, "east", 1, 2),
			sample(t, "east", 3, 6),
			sample(t, "east", 5, 10),
			sample(t, "west", 0, 0),
			sample(t, "west", 2, 0),
			sample(t, "west", 0, 2),
		}
		b := profile.NewBuilder()

		Convey("When building profiles", func() {
			set, report, err := b.Build(samples)

			Convey("Then each region gets its mean and unbiased covariance", func() {
				So(err, ShouldBeNil)
				So(set.Labels(), ShouldResemble, []string{"east", "west"})
				So(report.Samples, ShouldEqual, 6)
				So(report.Regions, ShouldEqual, 2)

				east, _ := set.Get("east")
				So(east.Mean().Values(), ShouldResemble, []float64{3, 6})
				So(east.Samples(), ShouldEqual, 3)

				west, _ := set.Get("west")
				So(west.Regularized(), ShouldBeFalse)
				cov := west.Covariance()
				So(cov.At(0, 0), ShouldAlmostEqual, 4.0/3.0, 1e-12)
				So(cov.At(0, 1), ShouldAlmostEqual, -2.0/3.0, 1e-12)
			})

			Convey("And the perfectly correlated region is regularized", func() {
				// east lies on the line y = 2x, so its covariance is singular
				So(report.Regularized, ShouldResemble, []string{"east"})
				east, _ := set.Get("east")
				So(east.Regularized(), ShouldBeTrue)
				So(east.Covariance().At(0, 0), ShouldAlmostEqual, 4.0+1e-6, 1e-12)
			})
		})
	})

	Convey("Given a region with a single sample", t, func() {
		samples := []model.LabeledSample{
			sample(t, "lonely", 1, 1),
			sample(t, "busy", 0, 0),
			sample(t, "busy", 1, 2),
			sample(t, "busy", 2, 1),
		}

		Convey("When the regularize policy is used", func() {
			set, report, err := profile.NewBuilder(profile.WithRidge(0.01)).Build(samples)

			Convey("Then the region keeps a scaled identity covariance", func() {
				So(err, ShouldBeNil)
				So(set.Len(), ShouldEqual, 2)
				lonely, _ := set.Get("lonely")
				So(lonely.Covariance().At(0, 0), ShouldEqual, 0.01)
				So(lonely.Covariance().At(0, 1), ShouldEqual, 0.0)
				So(report.Regularized, ShouldContain, "lonely")
				So(report.Excluded, ShouldBeEmpty)
			})
		})

		Convey("When the exclude policy is used", func() {
			set, report, err := profile.NewBuilder(profile.WithPolicy(profile.PolicyExclude)).Build(samples)

			Convey("Then the region is dropped and reported", func() {
				So(err, ShouldBeNil)
				So(set.Labels(), ShouldResemble, []string{"busy"})
				So(report.Excluded, ShouldResemble, []string{"lonely"})
			})
		})
	})

	Convey("Given samples of inconsistent length", t, func() {
		samples := []model.LabeledSample{
			sample(t, "a", 1, 2, 3),
			sample(t, "a", 1, 2, 3),
			sample(t, "b", 1, 2),
		}

		Convey("Then the offending sample index and length are named", func() {
			_, _, err := profile.NewBuilder().Build(samples)
			var dm *model.DimensionMismatchError
			So(errors.As(err, &dm), ShouldBeTrue)
			So(dm.Index, ShouldEqual, 2)
			So(dm.Got, ShouldEqual, 2)
			So(dm.Expected, ShouldEqual, 3)
		})

		Convey("When a dimension is pinned, the first sample is checked too", func() {
			_, _, err := profile.NewBuilder(profile.WithDimension(2)).Build(samples)
			var dm *model.DimensionMismatchError
			So(errors.As(err, &dm), ShouldBeTrue)
			So(dm.Index, ShouldEqual, 0)
		})
	})

	Convey("Given degenerate input", t, func() {
		Convey("When no samples are provided", func() {
			_, _, err := profile.NewBuilder().Build(nil)
			So(errors.Is(err, profile.ErrNoSamples), ShouldBeTrue)
		})

		Convey("When a label is empty", func() {
			_, _, err := profile.NewBuilder().Build([]model.LabeledSample{sample(t, "", 1)})
			So(errors.Is(err, model.ErrEmptyRegion), ShouldBeTrue)
		})
	})
}

func TestParsePolicy(t *testing.T) {
	Convey("Given policy names", t, func() {
		p, err := profile.ParsePolicy("exclude")
		So(err, ShouldBeNil)
		So(p, ShouldEqual, profile.PolicyExclude)

		p, err = profile.ParsePolicy("")
		So(err, ShouldBeNil)
		So(p, ShouldEqual, profile.PolicyRegularize)

		_, err = profile.ParsePolicy("guess")
		So(errors.Is(err, profile.ErrUnknownPolicy), ShouldBeTrue)
	})
}
