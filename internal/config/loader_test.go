package config_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/okian/regionsel/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfigLoader(t *testing.T) {
	convey.Convey("Given a config loader", t, func() {
		ctx := context.Background()
		clearConfigEnvVars()
		defer clearConfigEnvVars()

		convey.Convey("When loading config with defaults only", func() {
			cfg, err := config.Load(ctx, config.WithDotEnv())

			convey.Convey("Then it should load successfully with defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg, convey.ShouldNotBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
				convey.So(cfg.QueueSize, convey.ShouldEqual, 10_000)
				convey.So(cfg.ExpectedDim, convey.ShouldEqual, 512)
				convey.So(cfg.Store.Kind, convey.ShouldEqual, "memory")
			})
		})

		convey.Convey("When loading config with environment variables", func() {
			_ = os.Setenv("REGIONSEL_ADDR", ":8080")
			_ = os.Setenv("REGIONSEL_QUEUE_SIZE", "500")
			_ = os.Setenv("REGIONSEL_WORKER_COUNT", "16")
			_ = os.Setenv("REGIONSEL_EXPECTED_DIM", "128")
			_ = os.Setenv("REGIONSEL_RIDGE", "0.001")
			_ = os.Setenv("REGIONSEL_PINV_FALLBACK", "false")
			_ = os.Setenv("REGIONSEL_RELOAD_INTERVAL", "30s")
			_ = os.Setenv("REGIONSEL_STORE_KIND", "local")
			_ = os.Setenv("REGIONSEL_STORE_ROOT", "/tmp/profiles")
			_ = os.Setenv("REGIONSEL_STORE_USE_SSL", "false")

			cfg, err := config.Load(ctx, config.WithDotEnv())

			convey.Convey("Then it should override defaults with env vars", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.QueueSize, convey.ShouldEqual, 500)
				convey.So(cfg.WorkerCount, convey.ShouldEqual, 16)
				convey.So(cfg.ExpectedDim, convey.ShouldEqual, 128)
				convey.So(cfg.Ridge, convey.ShouldEqual, 0.001)
				convey.So(cfg.PinvFallback, convey.ShouldBeFalse)
				convey.So(cfg.ReloadInterval, convey.ShouldEqual, 30*time.Second)
				convey.So(cfg.Store.Kind, convey.ShouldEqual, "local")
				convey.So(cfg.Store.Root, convey.ShouldEqual, "/tmp/profiles")
				convey.So(cfg.Store.UseSSL, convey.ShouldBeFalse)
			})
		})

		convey.Convey("When loading config with YAML file", func() {
			yamlContent := `
# profile builder
addr: ":9090"
queue_size: 300
expected_dim: 64
degenerate_policy: exclude
model_name_template: "clf-%s"
store:
  kind: s3
  bucket: region-profiles
  prefix: prod
  region: eu-west-1
`
			tmpFile := createTempConfigFile(t, yamlContent)
			_ = os.Setenv("REGIONSEL_CONFIG", tmpFile)

			cfg, err := config.Load(ctx, config.WithDotEnv())

			convey.Convey("Then it should load from YAML file", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9090")
				convey.So(cfg.QueueSize, convey.ShouldEqual, 300)
				convey.So(cfg.ExpectedDim, convey.ShouldEqual, 64)
				convey.So(cfg.DegeneratePolicy, convey.ShouldEqual, "exclude")
				convey.So(cfg.ModelNameTemplate, convey.ShouldEqual, "clf-%s")
				convey.So(cfg.Store.Kind, convey.ShouldEqual, "s3")
				convey.So(cfg.Store.Bucket, convey.ShouldEqual, "region-profiles")
				convey.So(cfg.Store.Region, convey.ShouldEqual, "eu-west-1")
			})

			convey.Convey("Then defaults not in the file should survive", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.ProfileKey, convey.ShouldEqual, "region_profiles.json")
				convey.So(cfg.Store.UseSSL, convey.ShouldBeTrue)
			})
		})

		convey.Convey("When env vars override the YAML file", func() {
			tmpFile := createTempConfigFile(t, "addr: \":9090\"\nworker_count: 24\nstore:\n  kind: s3\n  bucket: from-file\n")
			_ = os.Setenv("REGIONSEL_CONFIG", tmpFile)
			_ = os.Setenv("REGIONSEL_ADDR", ":8080")
			_ = os.Setenv("REGIONSEL_STORE_BUCKET", "from-env")

			cfg, err := config.Load(ctx, config.WithDotEnv())

			convey.Convey("Then env should take precedence", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.WorkerCount, convey.ShouldEqual, 24)
				convey.So(cfg.Store.Bucket, convey.ShouldEqual, "from-env")
			})
		})

		convey.Convey("When a .env file is present", func() {
			path := filepath.Join(t.TempDir(), ".env")
			err := os.WriteFile(path, []byte("REGIONSEL_ADDR=:7070\nREGIONSEL_QUEUE_SIZE=42\n"), 0o600)
			convey.So(err, convey.ShouldBeNil)
			_ = os.Setenv("REGIONSEL_QUEUE_SIZE", "43")

			cfg, err := config.Load(ctx, config.WithDotEnv(path))

			convey.Convey("Then it should fill unset variables only", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":7070")
				convey.So(cfg.QueueSize, convey.ShouldEqual, 43)
			})
		})

		convey.Convey("When the .env file is missing", func() {
			cfg, err := config.Load(ctx, config.WithDotEnv(filepath.Join(t.TempDir(), ".env")))

			convey.Convey("Then it should be ignored", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg, convey.ShouldNotBeNil)
			})
		})

		convey.Convey("When the config file does not exist", func() {
			_ = os.Setenv("REGIONSEL_CONFIG", "/non/existent/file.yaml")

			cfg, err := config.Load(ctx, config.WithDotEnv())

			convey.Convey("Then it should fail to load", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When a file is passed explicitly", func() {
			_ = os.Setenv("REGIONSEL_CONFIG", "/non/existent/file.yaml")
			tmpFile := createTempConfigFile(t, "expected_dim: 3\n")

			cfg, err := config.Load(ctx, config.WithDotEnv(), config.WithFile(tmpFile))

			convey.Convey("Then it should win over REGIONSEL_CONFIG", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.ExpectedDim, convey.ShouldEqual, 3)
			})
		})

		convey.Convey("When an env var cannot be parsed", func() {
			_ = os.Setenv("REGIONSEL_QUEUE_SIZE", "not_a_number")

			cfg, err := config.Load(ctx, config.WithDotEnv())

			convey.Convey("Then it should return an invalid config error", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When the loaded values fail validation", func() {
			_ = os.Setenv("REGIONSEL_ADDR", "")
			_ = os.Setenv("REGIONSEL_STORE_KIND", "local")

			cfg, err := config.Load(ctx, config.WithDotEnv())

			convey.Convey("Then it should report the first problem", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
				convey.So(err.Error(), convey.ShouldContainSubstring, "addr must not be empty")
				convey.So(cfg, convey.ShouldBeNil)
			})
		})
	})
}

// Helper functions.

func clearConfigEnvVars() {
	envVars := []string{
		"REGIONSEL_CONFIG",
		"REGIONSEL_ADDR",
		"REGIONSEL_QUEUE_SIZE",
		"REGIONSEL_WORKER_COUNT",
		"REGIONSEL_EXPECTED_DIM",
		"REGIONSEL_RIDGE",
		"REGIONSEL_PINV_FALLBACK",
		"REGIONSEL_RELOAD_INTERVAL",
		"REGIONSEL_STORE_KIND",
		"REGIONSEL_STORE_ROOT",
		"REGIONSEL_STORE_BUCKET",
		"REGIONSEL_STORE_USE_SSL",
	}
	for _, envVar := range envVars {
		_ = os.Unsetenv(envVar)
	}
}

func createTempConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "regionsel.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}
