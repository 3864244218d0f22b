package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Environment variables read by Load.
const (
	EnvPrefix     = "REGIONSEL_"
	EnvConfigFile = "REGIONSEL_CONFIG"
	defaultDotEnv = ".env"
)

// LoadOption tunes Load.
type LoadOption func(*loadOptions)

type loadOptions struct {
	dotenv []string
	file   string
}

// WithDotEnv replaces the .env files read before the environment layer.
// Missing files are ignored; variables already set are not overridden.
func WithDotEnv(paths ...string) LoadOption {
	return func(o *loadOptions) { o.dotenv = paths }
}

// WithFile reads path as the YAML layer instead of REGIONSEL_CONFIG.
func WithFile(path string) LoadOption {
	return func(o *loadOptions) { o.file = path }
}

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New())
//  2. file (YAML) from WithFile, or REGIONSEL_CONFIG if set
//  3. env (prefix REGIONSEL_), after .env files are applied
func Load(_ context.Context, opts ...LoadOption) (*Config, error) {
	o := loadOptions{dotenv: []string{defaultDotEnv}}
	for _, opt := range opts {
		opt(&o)
	}

	for _, p := range o.dotenv {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: dotenv %q: %w", ErrLoadConfig, p, err)
		}
	}

	// Start with defaults
	base := New()

	k := koanf.New(".")

	// Load from file if provided
	path := o.file
	if path == "" {
		path = os.Getenv(EnvConfigFile)
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %q: %w", ErrLoadConfig, path, err)
		}
	}

	// Environment variables: REGIONSEL_ADDR, REGIONSEL_QUEUE_SIZE, ...
	// Top-level keys keep their underscores; REGIONSEL_STORE_KIND maps to
	// store.kind.
	envProvider := env.Provider(EnvPrefix, ".", envKey)
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: env: %w", ErrLoadConfig, err)
	}

	// Unmarshal into a copy
	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	if rest, ok := strings.CutPrefix(s, "store_"); ok {
		return "store." + rest
	}
	return s
}
