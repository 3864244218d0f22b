package config_test

import (
	"errors"
	"testing"
	"time"

	"github.com/okian/regionsel/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfig_New(t *testing.T) {
	convey.Convey("Given a new config with default options", t, func() {
		cfg := config.New()

		convey.Convey("Then it should have sensible defaults", func() {
			convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
			convey.So(cfg.QueueSize, convey.ShouldEqual, 10_000)
			convey.So(cfg.WorkerCount, convey.ShouldEqual, 0)
			convey.So(cfg.ExpectedDim, convey.ShouldEqual, 512)
			convey.So(cfg.DegeneratePolicy, convey.ShouldEqual, "regularize")
			convey.So(cfg.Ridge, convey.ShouldEqual, 1e-6)
			convey.So(cfg.PinvFallback, convey.ShouldBeTrue)
			convey.So(cfg.ModelNameTemplate, convey.ShouldEqual, "redrhd-%s-model")
			convey.So(cfg.ProfileKey, convey.ShouldEqual, "region_profiles.json")
			convey.So(cfg.Store.Kind, convey.ShouldEqual, "memory")
		})

		convey.Convey("Then it should be valid", func() {
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})

		convey.Convey("Then it should produce component options", func() {
			convey.So(cfg.BuilderOptions(), convey.ShouldHaveLength, 4)
			convey.So(cfg.SelectorOptions(), convey.ShouldHaveLength, 5)
			convey.So(cfg.StoreProvider().Kind, convey.ShouldEqual, "memory")
		})
	})
}

func TestConfig_Validate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(c *config.Config)
	}{
		{"empty addr", func(c *config.Config) { c.Addr = "" }},
		{"negative workers", func(c *config.Config) { c.WorkerCount = -1 }},
		{"zero queue", func(c *config.Config) { c.QueueSize = 0 }},
		{"zero dim", func(c *config.Config) { c.ExpectedDim = 0 }},
		{"zero ridge", func(c *config.Config) { c.Ridge = 0 }},
		{"negative tie epsilon", func(c *config.Config) { c.TieEpsilon = -1 }},
		{"rcond out of range", func(c *config.Config) { c.RCond = 1 }},
		{"zero range tolerance", func(c *config.Config) { c.RangeTolerance = 0 }},
		{"template without verb", func(c *config.Config) { c.ModelNameTemplate = "model" }},
		{"template with two verbs", func(c *config.Config) { c.ModelNameTemplate = "%s-%s" }},
		{"negative reload", func(c *config.Config) { c.ReloadInterval = -time.Second }},
		{"empty profile key", func(c *config.Config) { c.ProfileKey = "" }},
		{"zero transfer concurrency", func(c *config.Config) { c.TransferConcurrency = 0 }},
		{"negative transfer rate", func(c *config.Config) { c.TransferRate = -1 }},
		{"unknown log level", func(c *config.Config) { c.LogLevel = "loud" }},
		{"unknown log format", func(c *config.Config) { c.LogFormat = "xml" }},
		{"unknown policy", func(c *config.Config) { c.DegeneratePolicy = "drop" }},
		{"unknown store", func(c *config.Config) { c.Store.Kind = "ftp" }},
		{"local without root", func(c *config.Config) { c.Store.Kind = "local" }},
		{"s3 without bucket", func(c *config.Config) { c.Store.Kind = "s3" }},
		{"minio without endpoint", func(c *config.Config) {
			c.Store.Kind = "minio"
			c.Store.Bucket = "b"
		}},
	}

	convey.Convey("Given invalid configurations", t, func() {
		for _, tc := range cases {
			cfg := config.New()
			tc.mutate(cfg)
			err := cfg.Validate()
			convey.So(err, convey.ShouldNotBeNil)
			convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
		}
	})

	convey.Convey("Given a complete local store configuration", t, func() {
		cfg := config.New()
		cfg.Store.Kind = "local"
		cfg.Store.Root = "/var/lib/regionsel"
		cfg.DegeneratePolicy = "exclude"

		convey.Convey("Then it should be valid", func() {
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})
	})
}
