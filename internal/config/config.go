// Package config loads runtime configuration from the environment.
package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
	"go.uber.org/zap/zapcore"

	"github.com/kittclouds/lorecards/pkg/episode"
)

// Config is the process configuration. CLI flags override these values.
type Config struct {
	DataDir             string        `env:"LORECARDS_DATA_DIR" envDefault:"data"`
	DBPath              string        `env:"LORECARDS_DB_PATH" envDefault:"lorecards.db"`
	LogLevel            zapcore.Level `env:"LORECARDS_LOG_LEVEL" envDefault:"info"`
	SettingsPath        string        `env:"LORECARDS_SETTINGS_PATH" envDefault:"settings.json"`
	IndexDir            string        `env:"LORECARDS_INDEX_DIR"`
	DefaultSeasonLength int           `env:"LORECARDS_DEFAULT_SEASON_LENGTH" envDefault:"7"`
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Load parses Config from the environment.
func Load() (Config, error) {
	var cfg Config
	if err := ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	if cfg.DefaultSeasonLength <= 0 {
		return Config{}, fmt.Errorf("LORECARDS_DEFAULT_SEASON_LENGTH must be positive, got %d", cfg.DefaultSeasonLength)
	}
	return cfg, nil
}

// Layout returns the season layout implied by DefaultSeasonLength.
func (c Config) Layout() episode.Layout {
	return episode.Layout{Default: c.DefaultSeasonLength}
}
