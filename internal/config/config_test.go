// Clickmirror - Advertising Tracker Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/clickmirror

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// validBase returns a config that passes validation, for mutation tests.
func validBase() *Config {
	cfg := defaultConfig()
	cfg.Voluum.AccessID = "id"
	cfg.Voluum.AccessKey = "key"
	return cfg
}

func TestDefaultsAreValidWithCredentials(t *testing.T) {
	cfg := validBase()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults with credentials should validate, got: %v", err)
	}
	if cfg.Sync.ConversionDedupKey != DedupKeyClickIDPostback {
		t.Errorf("default dedup key = %q, want %q", cfg.Sync.ConversionDedupKey, DedupKeyClickIDPostback)
	}
	if cfg.Sync.OnCampaignError != CampaignErrorSkip {
		t.Errorf("default campaign error mode = %q, want %q", cfg.Sync.OnCampaignError, CampaignErrorSkip)
	}
	if cfg.Sync.Lookback != 24*time.Hour {
		t.Errorf("default lookback = %v, want 24h", cfg.Sync.Lookback)
	}
}

func TestValidateRejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing credentials", func(c *Config) { c.Voluum.AccessID = "" }},
		{"missing access key", func(c *Config) { c.Voluum.AccessKey = "" }},
		{"empty base url", func(c *Config) { c.Voluum.BaseURL = "" }},
		{"malformed base url", func(c *Config) { c.Voluum.BaseURL = "not a url" }},
		{"zero timeout", func(c *Config) { c.Voluum.Timeout = 0 }},
		{"empty db path", func(c *Config) { c.Database.Path = "" }},
		{"negative retention", func(c *Config) { c.Database.RetentionDays = -1 }},
		{"zero interval", func(c *Config) { c.Sync.Interval = 0 }},
		{"zero page size", func(c *Config) { c.Sync.PageSize = 0 }},
		{"bad dedup key", func(c *Config) { c.Sync.ConversionDedupKey = "transaction_id" }},
		{"bad campaign error mode", func(c *Config) { c.Sync.OnCampaignError = "retry" }},
		{"zero chunk days", func(c *Config) { c.Backfill.ChunkDays = 0 }},
		{"port out of range", func(c *Config) { c.Server.Port = 70000 }},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validBase()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Errorf("expected validation error for %s", tt.name)
			}
		})
	}
}

func TestEnvTransformFunc(t *testing.T) {
	tests := []struct {
		env      string
		expected string
	}{
		{"VOLUUM_ACCESS_ID", "voluum.access_id"},
		{"VOLUUM_ACCESS_KEY", "voluum.access_key"},
		{"VOLUUM_BASE_URL", "voluum.base_url"},
		{"DATABASE_PATH", "database.path"},
		{"DATABASE_RETENTION_DAYS", "database.retention_days"},
		{"SYNC_CAMPAIGN_FILTER", "sync.campaign_filter"},
		{"SYNC_CONVERSION_DEDUP_KEY", "sync.conversion_dedup_key"},
		{"BACKFILL_CHUNK_DAYS", "backfill.chunk_days"},
		{"SERVER_PORT", "server.port"},
		{"LOGGING_LEVEL", "logging.level"},
		{"PATH", ""},     // unrelated var is skipped
		{"HOSTNAME", ""}, // unrelated var is skipped
	}

	for _, tt := range tests {
		if got := envTransformFunc(tt.env); got != tt.expected {
			t.Errorf("envTransformFunc(%q) = %q, want %q", tt.env, got, tt.expected)
		}
	}
}

func TestLoadLayering(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	yaml := `
voluum:
  access_id: file-id
  access_key: file-key
sync:
  page_size: 250
  campaign_filter: "Voluum MB"
`
	if err := os.WriteFile(configPath, []byte(yaml), 0o600); err != nil {
		t.Fatal(err)
	}

	t.Setenv(ConfigPathEnvVar, configPath)
	t.Setenv("SYNC_PAGE_SIZE", "500") // env overrides file

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Voluum.AccessID != "file-id" {
		t.Errorf("access_id = %q, want file-id", cfg.Voluum.AccessID)
	}
	if cfg.Sync.PageSize != 500 {
		t.Errorf("page_size = %d, want env override 500", cfg.Sync.PageSize)
	}
	if cfg.Sync.CampaignFilter != "Voluum MB" {
		t.Errorf("campaign_filter = %q, want from file", cfg.Sync.CampaignFilter)
	}
	// Untouched defaults survive layering
	if cfg.Backfill.ChunkDays != 7 {
		t.Errorf("chunk_days = %d, want default 7", cfg.Backfill.ChunkDays)
	}
}

func TestLoadMissingCredentials(t *testing.T) {
	t.Setenv(ConfigPathEnvVar, filepath.Join(t.TempDir(), "nonexistent.yaml"))
	if _, err := Load(); err == nil {
		t.Fatal("Load() without credentials should fail validation")
	}
}
