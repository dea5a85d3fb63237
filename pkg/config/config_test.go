// Copyright © 2026 Teradata Corporation - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	// No config file anywhere near a temp dir.
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, DefaultVillageRoot, cfg.VillageRoot)
	assert.Equal(t, DefaultLogLevel, cfg.LogLevel)
	assert.Equal(t, DefaultAutosaveSchedule, cfg.AutosaveSchedule)
	assert.Equal(t, 0, cfg.MaxTicks)
	assert.True(t, cfg.Interpreter.Enabled)
	assert.True(t, cfg.RateLimit.Enabled)
	assert.Equal(t, float64(30), cfg.RateLimit.RequestsPerMinute)
	assert.Equal(t, 5, cfg.RateLimit.Burst)

	start, err := cfg.StartDate()
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 14, 8, 0, 0, 0, time.UTC), start)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hamlet.yaml")
	yaml := `
village_root: /srv/village
log_level: debug
start_time: "2026-06-01T12:00:00Z"
max_ticks: 50
autosave_schedule: "@every 10m"
anthropic:
  model: claude-sonnet-4-5-20250929
  max_tokens: 4096
  mock: true
interpreter:
  enabled: false
rate_limit:
  requests_per_minute: 12
  burst: 2
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/srv/village", cfg.VillageRoot)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 50, cfg.MaxTicks)
	assert.Equal(t, "@every 10m", cfg.AutosaveSchedule)
	assert.Equal(t, "claude-sonnet-4-5-20250929", cfg.Anthropic.Model)
	assert.Equal(t, 4096, cfg.Anthropic.MaxTokens)
	assert.True(t, cfg.Anthropic.Mock)
	assert.False(t, cfg.Interpreter.Enabled)
	assert.Equal(t, float64(12), cfg.RateLimit.RequestsPerMinute)
	assert.Equal(t, 2, cfg.RateLimit.Burst)

	start, err := cfg.StartDate()
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC), start)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("HAMLET_VILLAGE_ROOT", "/tmp/env-village")
	t.Setenv("HAMLET_ANTHROPIC_API_KEY", "sk-test")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "/tmp/env-village", cfg.VillageRoot)
	assert.Equal(t, "sk-test", cfg.Anthropic.APIKey)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestLoadRejectsBadStartTime(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hamlet.yaml")
	require.NoError(t, os.WriteFile(path, []byte("start_time: tomorrow\n"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "start_time")
}

func TestValidateRejectsNegativeMaxTicks(t *testing.T) {
	cfg := Config{
		VillageRoot: "./village",
		StartTime:   DefaultStartTime,
		MaxTicks:    -1,
	}
	require.Error(t, cfg.Validate())
}
