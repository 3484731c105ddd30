// Clickmirror - Advertising Tracker Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/clickmirror

// Package config provides layered configuration for Clickmirror.
//
// Configuration loading order (Koanf v2):
//  1. Defaults: built-in sensible defaults for all optional settings
//  2. Config file: optional YAML file (config.yaml) for persistent settings
//  3. Environment variables: override any setting
//
// Config is immutable after Load() and safe for concurrent read access.
package config

import "time"

// Config holds all application configuration.
type Config struct {
	Voluum   VoluumConfig   `koanf:"voluum"`
	Database DatabaseConfig `koanf:"database"`
	Sync     SyncConfig     `koanf:"sync"`
	Backfill BackfillConfig `koanf:"backfill"`
	Server   ServerConfig   `koanf:"server"`
	Logging  LoggingConfig  `koanf:"logging"`
}

// VoluumConfig holds upstream Voluum API connection settings.
//
// Environment Variables:
//   - VOLUUM_ACCESS_ID: API access ID from Voluum Settings > Security
//   - VOLUUM_ACCESS_KEY: API access key (pairs with the access ID)
//   - VOLUUM_BASE_URL: API base URL (default: https://api.voluum.com)
type VoluumConfig struct {
	AccessID  string        `koanf:"access_id"`
	AccessKey string        `koanf:"access_key"`
	BaseURL   string        `koanf:"base_url"`
	Timeout   time.Duration `koanf:"timeout"`
	Timezone  string        `koanf:"timezone"` // Report timezone (default: UTC)
}

// DatabaseConfig holds DuckDB settings for the local mirror store.
type DatabaseConfig struct {
	Path          string `koanf:"path"`
	MaxMemory     string `koanf:"max_memory"`
	Threads       int    `koanf:"threads"`        // 0 = use runtime.NumCPU()
	RetentionDays int    `koanf:"retention_days"` // Rows older than this are purged after each cycle
}

// SyncConfig holds incremental synchronization settings.
//
// CampaignFilter restricts the tracked campaign set (and conversion rows) to
// campaign names containing the substring. Empty means all campaigns with
// recent traffic.
//
// ConversionDedupKey selects the conversion natural key:
//   - "click_id_postback" (default): (click_id, postback_timestamp)
//   - "click_id": click_id alone
//
// OnCampaignError selects the campaign-scoped loop failure mode:
//   - "skip" (default): log the campaign error and continue with the rest
//   - "abort": fail the entity sync on the first campaign error
type SyncConfig struct {
	Interval           time.Duration `koanf:"interval"`
	Lookback           time.Duration `koanf:"lookback"`
	PageSize           int           `koanf:"page_size"`      // Paginated report/conversion fetches
	LivePageSize       int           `koanf:"live_page_size"` // Per-campaign live feed fetches
	CampaignFilter     string        `koanf:"campaign_filter"`
	ConversionDedupKey string        `koanf:"conversion_dedup_key"`
	OnCampaignError    string        `koanf:"on_campaign_error"`
	PaceEvery          int           `koanf:"pace_every"` // Pause after this many sequential campaign calls
	PaceDelay          time.Duration `koanf:"pace_delay"` // Fixed pause duration
}

// BackfillConfig holds historical backfill settings.
type BackfillConfig struct {
	ChunkDays  int           `koanf:"chunk_days"`
	ChunkDelay time.Duration `koanf:"chunk_delay"`
}

// ServerConfig holds the admin/observability HTTP server settings.
type ServerConfig struct {
	Enabled         bool          `koanf:"enabled"`
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	Timeout         time.Duration `koanf:"timeout"`
	RateLimitReqs   int           `koanf:"rate_limit_reqs"`
	RateLimitWindow time.Duration `koanf:"rate_limit_window"`
}

// LoggingConfig holds log output settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}
