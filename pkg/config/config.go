// Copyright © 2026 Teradata Corporation - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

// Package config loads the village runtime configuration from
// hamlet.yaml with HAMLET_* environment overrides.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Defaults.
const (
	DefaultVillageRoot      = "./village"
	DefaultLogLevel         = "info"
	DefaultStartTime        = "2026-03-14T08:00:00Z"
	DefaultAutosaveSchedule = "@every 5m"
)

// Config is the full runtime configuration.
type Config struct {
	// VillageRoot is the on-disk village directory.
	VillageRoot string `mapstructure:"village_root"`
	// LogLevel is debug, info, warn, or error.
	LogLevel string `mapstructure:"log_level"`
	// StartTime is the simulated founding time (RFC 3339), used only
	// when initializing a fresh village.
	StartTime string `mapstructure:"start_time"`
	// MaxTicks bounds a run; zero means run until stopped.
	MaxTicks int `mapstructure:"max_ticks"`
	// AutosaveSchedule is a cron spec for wall-clock snapshot saves.
	AutosaveSchedule string `mapstructure:"autosave_schedule"`

	Anthropic   AnthropicConfig   `mapstructure:"anthropic"`
	Interpreter InterpreterConfig `mapstructure:"interpreter"`
	RateLimit   RateLimitConfig   `mapstructure:"rate_limit"`
}

// AnthropicConfig configures the agent session provider.
type AnthropicConfig struct {
	// APIKey falls back to ANTHROPIC_API_KEY when empty.
	APIKey string `mapstructure:"api_key"`
	// Model is the default for agents that do not name one.
	Model string `mapstructure:"model"`
	// MaxTokens per response; zero uses the provider default.
	MaxTokens int `mapstructure:"max_tokens"`
	// Mock swaps in the scripted provider for dry runs without an API
	// key.
	Mock bool `mapstructure:"mock"`
}

// InterpreterConfig configures the narrative interpreter.
type InterpreterConfig struct {
	Enabled bool `mapstructure:"enabled"`
	// Model defaults to the interpreter package's default when empty.
	Model string `mapstructure:"model"`
}

// RateLimitConfig paces provider API requests.
type RateLimitConfig struct {
	Enabled           bool    `mapstructure:"enabled"`
	RequestsPerMinute float64 `mapstructure:"requests_per_minute"`
	Burst             int     `mapstructure:"burst"`
}

// Load reads configuration. With an explicit path the file must exist;
// otherwise hamlet.yaml is searched for in the working directory and a
// missing file just yields defaults. Environment variables override
// file values (HAMLET_VILLAGE_ROOT, HAMLET_ANTHROPIC_API_KEY, ...).
func Load(path string) (Config, error) {
	v := viper.New()

	v.SetDefault("village_root", DefaultVillageRoot)
	v.SetDefault("log_level", DefaultLogLevel)
	v.SetDefault("start_time", DefaultStartTime)
	v.SetDefault("max_ticks", 0)
	v.SetDefault("autosave_schedule", DefaultAutosaveSchedule)
	v.SetDefault("anthropic.api_key", "")
	v.SetDefault("anthropic.model", "")
	v.SetDefault("anthropic.max_tokens", 0)
	v.SetDefault("anthropic.mock", false)
	v.SetDefault("interpreter.enabled", true)
	v.SetDefault("interpreter.model", "")
	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.requests_per_minute", 30)
	v.SetDefault("rate_limit.burst", 5)

	v.SetEnvPrefix("HAMLET")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("reading config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("hamlet")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, fmt.Errorf("reading config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks field constraints.
func (c Config) Validate() error {
	if c.VillageRoot == "" {
		return fmt.Errorf("village_root must not be empty")
	}
	if c.MaxTicks < 0 {
		return fmt.Errorf("max_ticks must not be negative, got %d", c.MaxTicks)
	}
	if _, err := c.StartDate(); err != nil {
		return err
	}
	return nil
}

// StartDate parses StartTime.
func (c Config) StartDate() (time.Time, error) {
	t, err := time.Parse(time.RFC3339, c.StartTime)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing start_time %q: %w", c.StartTime, err)
	}
	return t, nil
}
