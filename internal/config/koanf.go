// Clickmirror - Advertising Tracker Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/clickmirror

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in order
// of priority. The first file found wins.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/clickmirror/config.yaml",
	"/etc/clickmirror/config.yml",
}

// ConfigPathEnvVar overrides the config file path when set.
const ConfigPathEnvVar = "CONFIG_PATH"

// defaultConfig returns a Config with all default values. Defaults are applied
// first, then overridden by the config file and environment variables.
func defaultConfig() *Config {
	return &Config{
		Voluum: VoluumConfig{
			AccessID:  "",
			AccessKey: "",
			BaseURL:   "https://api.voluum.com",
			Timeout:   60 * time.Second,
			Timezone:  "UTC",
		},
		Database: DatabaseConfig{
			Path:          "/data/clickmirror.duckdb",
			MaxMemory:     "1GB",
			Threads:       0, // 0 = use runtime.NumCPU()
			RetentionDays: 90,
		},
		Sync: SyncConfig{
			Interval:           2 * time.Minute,
			Lookback:           24 * time.Hour,
			PageSize:           1000,
			LivePageSize:       100,
			CampaignFilter:     "",
			ConversionDedupKey: "click_id_postback",
			OnCampaignError:    "skip",
			PaceEvery:          10,
			PaceDelay:          1 * time.Second,
		},
		Backfill: BackfillConfig{
			ChunkDays:  7,
			ChunkDelay: 2 * time.Second,
		},
		Server: ServerConfig{
			Enabled:         true,
			Host:            "0.0.0.0",
			Port:            8480,
			Timeout:         30 * time.Second,
			RateLimitReqs:   100,
			RateLimitWindow: 1 * time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// Load loads configuration using Koanf v2 with layered sources:
// defaults, then an optional YAML config file, then environment variables.
// The loaded configuration is validated before being returned.
func Load() (*Config, error) {
	k := koanf.New(".")

	// Layer 1: defaults from struct
	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// Layer 2: optional config file
	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// Layer 3: environment variables (highest priority)
	// VOLUUM_ACCESS_ID -> voluum.access_id, SYNC_PAGE_SIZE -> sync.page_size
	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile returns the first config file that exists, or "".
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// configSections are the top-level koanf keys an environment variable may
// address. The first underscore-delimited token selecting a known section is
// split off; the remainder becomes the nested key.
var configSections = []string{
	"voluum", "database", "sync", "backfill", "server", "logging",
}

// envTransformFunc maps environment variable names to koanf config paths.
//
// Examples:
//   - VOLUUM_ACCESS_ID      -> voluum.access_id
//   - DATABASE_PATH         -> database.path
//   - SYNC_CAMPAIGN_FILTER  -> sync.campaign_filter
//   - SERVER_PORT           -> server.port
//
// Variables not matching a known section are ignored (returning "" tells
// koanf's env provider to skip the key).
func envTransformFunc(key string) string {
	key = strings.ToLower(key)
	for _, section := range configSections {
		prefix := section + "_"
		if strings.HasPrefix(key, prefix) {
			return section + "." + strings.TrimPrefix(key, prefix)
		}
	}
	return ""
}
