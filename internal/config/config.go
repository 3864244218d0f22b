// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New() to build a Config with defaults.
// - Load layers a YAML file and environment variables over the defaults.
// - Validation failures wrap ErrInvalidConfig.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/okian/regionsel/internal/adapters/blobstore/provider"
	"github.com/okian/regionsel/internal/domain/linalg"
	"github.com/okian/regionsel/internal/domain/profile"
	"github.com/okian/regionsel/internal/domain/selector"
)

// StoreConfig describes the blob store holding embeddings and profiles.
type StoreConfig struct {
	Kind      string `koanf:"kind"`
	Bucket    string `koanf:"bucket"`
	Prefix    string `koanf:"prefix"`
	Root      string `koanf:"root"`
	Region    string `koanf:"region"`
	Endpoint  string `koanf:"endpoint"`
	AccessKey string `koanf:"access_key"`
	SecretKey string `koanf:"secret_key"`
	UseSSL    bool   `koanf:"use_ssl"`
}

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the log handler: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// WorkerCount sets the number of batch selection workers. Zero uses one
	// worker per CPU.
	WorkerCount int `koanf:"worker_count"`

	// QueueSize bounds the batch selection queue.
	QueueSize int `koanf:"queue_size"`

	// ExpectedDim is the embedding dimension.
	ExpectedDim int `koanf:"expected_dim"`

	// DegeneratePolicy is "regularize" or "exclude".
	DegeneratePolicy string `koanf:"degenerate_policy"`

	// Ridge is added to the diagonal of degenerate covariances.
	Ridge float64 `koanf:"ridge"`

	// TieEpsilon is the relative margin a later region must win by.
	TieEpsilon float64 `koanf:"tie_epsilon"`

	// MaxCondition rejects Cholesky factors with a larger condition number.
	MaxCondition float64 `koanf:"max_condition"`

	// RCond and RangeTolerance tune the pseudo-inverse fallback.
	RCond          float64 `koanf:"rcond"`
	RangeTolerance float64 `koanf:"range_tolerance"`
	PinvFallback   bool    `koanf:"pinv_fallback"`

	// ModelNameTemplate turns a region label into a classifier name.
	ModelNameTemplate string `koanf:"model_name_template"`

	// ReloadInterval re-reads the persisted profile set; zero disables it.
	ReloadInterval time.Duration `koanf:"reload_interval"`

	// Store selects the blob store.
	Store StoreConfig `koanf:"store"`

	// ProfileKey, EmbeddingsPrefix and RegionMapKey name objects in Store.
	ProfileKey       string `koanf:"profile_key"`
	EmbeddingsPrefix string `koanf:"embeddings_prefix"`
	RegionMapKey     string `koanf:"region_map_key"`

	// TransferConcurrency and TransferRate bound mirror copies; a zero rate
	// is unlimited.
	TransferConcurrency int     `koanf:"transfer_concurrency"`
	TransferRate        float64 `koanf:"transfer_rate"`
}

// New creates a Config with defaults.
func New() *Config {
	c := &Config{
		LogLevel:            "info",
		LogFormat:           "text",
		Addr:                ":9080",
		WorkerCount:         0,
		QueueSize:           10_000,
		ExpectedDim:         512,
		DegeneratePolicy:    profile.PolicyRegularize.String(),
		Ridge:               1e-6,
		TieEpsilon:          1e-9,
		MaxCondition:        linalg.DefaultMaxCondition,
		RCond:               linalg.DefaultRCond,
		RangeTolerance:      linalg.DefaultRangeTolerance,
		PinvFallback:        true,
		ModelNameTemplate:   "redrhd-%s-model",
		ReloadInterval:      0,
		Store:               StoreConfig{Kind: provider.KindMemory, UseSSL: true},
		ProfileKey:          "region_profiles.json",
		EmbeddingsPrefix:    "embeddings/",
		RegionMapKey:        "embedding_region_map.csv",
		TransferConcurrency: 4,
		TransferRate:        0,
	}
	return c
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch {
	case c.Addr == "":
		return invalid("addr must not be empty")
	case c.WorkerCount < 0:
		return invalid("worker_count must not be negative, got %d", c.WorkerCount)
	case c.QueueSize < 1:
		return invalid("queue_size must be positive, got %d", c.QueueSize)
	case c.ExpectedDim < 1:
		return invalid("expected_dim must be positive, got %d", c.ExpectedDim)
	case c.Ridge <= 0:
		return invalid("ridge must be positive, got %g", c.Ridge)
	case c.TieEpsilon < 0:
		return invalid("tie_epsilon must not be negative, got %g", c.TieEpsilon)
	case c.MaxCondition < 0:
		return invalid("max_condition must not be negative, got %g", c.MaxCondition)
	case c.RCond <= 0 || c.RCond >= 1:
		return invalid("rcond must be in (0, 1), got %g", c.RCond)
	case c.RangeTolerance <= 0:
		return invalid("range_tolerance must be positive, got %g", c.RangeTolerance)
	case strings.Count(c.ModelNameTemplate, "%s") != 1:
		return invalid("model_name_template must contain exactly one %%s, got %q", c.ModelNameTemplate)
	case c.ReloadInterval < 0:
		return invalid("reload_interval must not be negative, got %s", c.ReloadInterval)
	case c.ProfileKey == "":
		return invalid("profile_key must not be empty")
	case c.TransferConcurrency < 1:
		return invalid("transfer_concurrency must be positive, got %d", c.TransferConcurrency)
	case c.TransferRate < 0:
		return invalid("transfer_rate must not be negative, got %g", c.TransferRate)
	}

	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return invalid("unknown log_level %q", c.LogLevel)
	}
	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		return invalid("unknown log_format %q", c.LogFormat)
	}
	if _, err := profile.ParsePolicy(c.DegeneratePolicy); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	switch strings.ToLower(c.Store.Kind) {
	case provider.KindMemory:
	case provider.KindLocal:
		if c.Store.Root == "" {
			return invalid("store.root is required for a local store")
		}
	case provider.KindS3, provider.KindMinio:
		if c.Store.Bucket == "" {
			return invalid("store.bucket is required for a %s store", c.Store.Kind)
		}
		if strings.EqualFold(c.Store.Kind, provider.KindMinio) && c.Store.Endpoint == "" {
			return invalid("store.endpoint is required for a minio store")
		}
	default:
		return invalid("unknown store.kind %q", c.Store.Kind)
	}
	return nil
}

// BuilderOptions returns the profile builder settings. The config must be
// valid.
func (c *Config) BuilderOptions() []profile.Option {
	policy, _ := profile.ParsePolicy(c.DegeneratePolicy)
	return []profile.Option{
		profile.WithPolicy(policy),
		profile.WithRidge(c.Ridge),
		profile.WithDimension(c.ExpectedDim),
		profile.WithMaxCondition(c.MaxCondition),
	}
}

// SelectorOptions returns the selector tolerances.
func (c *Config) SelectorOptions() []selector.Option {
	return []selector.Option{
		selector.WithMaxCondition(c.MaxCondition),
		selector.WithRCond(c.RCond),
		selector.WithPseudoInverse(c.PinvFallback),
		selector.WithRangeTolerance(c.RangeTolerance),
		selector.WithTieEpsilon(c.TieEpsilon),
	}
}

// StoreProvider returns the blob store description.
func (c *Config) StoreProvider() provider.Config {
	return provider.Config{
		Kind:      c.Store.Kind,
		Bucket:    c.Store.Bucket,
		Prefix:    c.Store.Prefix,
		Root:      c.Store.Root,
		Region:    c.Store.Region,
		Endpoint:  c.Store.Endpoint,
		AccessKey: c.Store.AccessKey,
		SecretKey: c.Store.SecretKey,
		UseSSL:    c.Store.UseSSL,
	}
}
