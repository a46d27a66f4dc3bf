package config

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Environment conventions.
const (
	EnvPrefix     = "SPENDSEG_"
	ConfigFileEnv = EnvPrefix + "CONFIG"
)

// Load builds a Config by layering defaults, an optional YAML file and
// environment variables, then validates it.
// Order of precedence (low -> high):
//  1. defaults (New())
//  2. file (YAML) if SPENDSEG_CONFIG is set
//  3. env (prefix SPENDSEG_), including a .env file in the working directory
func Load(ctx context.Context) (*Config, error) {
	// A missing .env is the normal case outside local development.
	_ = godotenv.Load()

	k := koanf.New(".")

	if path := os.Getenv(ConfigFileEnv); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: read %s: %w", ErrLoadConfig, path, err)
		}
	}

	// SPENDSEG_QUEUE_SIZE -> queue_size; underscores are kept to match the
	// koanf tags.
	envProvider := env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.TrimPrefix(strings.ToLower(s), strings.ToLower(EnvPrefix))
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: env: %w", ErrLoadConfig, err)
	}

	cfg := New()
	// The decoder overwrites slices element by element, so a shorter
	// configured list would keep the tail of the default.
	cfg.Features = nil
	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	if !k.Exists("features") {
		cfg.Features = DefaultFeatures()
	}

	if err := cfg.Validate(ctx); err != nil {
		return nil, err
	}
	return cfg, nil
}
