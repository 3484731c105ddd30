// Clickmirror - Advertising Tracker Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/clickmirror

package config

import (
	"fmt"
	"net/url"
	"strings"
)

// Conversion dedup key policies. See SyncConfig.ConversionDedupKey.
const (
	DedupKeyClickIDPostback = "click_id_postback"
	DedupKeyClickID         = "click_id"
)

// Campaign-scoped loop failure modes. See SyncConfig.OnCampaignError.
const (
	CampaignErrorSkip  = "skip"
	CampaignErrorAbort = "abort"
)

// Validate checks the configuration for missing or malformed values.
// Credentials are required: the engine cannot authenticate without them.
func (c *Config) Validate() error {
	if c.Voluum.AccessID == "" || c.Voluum.AccessKey == "" {
		return fmt.Errorf("voluum.access_id and voluum.access_key are required")
	}
	if c.Voluum.BaseURL == "" {
		return fmt.Errorf("voluum.base_url is required")
	}
	if u, err := url.Parse(c.Voluum.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("voluum.base_url %q is not a valid URL", c.Voluum.BaseURL)
	}
	if c.Voluum.Timeout <= 0 {
		return fmt.Errorf("voluum.timeout must be positive")
	}

	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.Database.RetentionDays < 0 {
		return fmt.Errorf("database.retention_days must not be negative")
	}

	if c.Sync.Interval <= 0 {
		return fmt.Errorf("sync.interval must be positive")
	}
	if c.Sync.Lookback <= 0 {
		return fmt.Errorf("sync.lookback must be positive")
	}
	if c.Sync.PageSize <= 0 || c.Sync.LivePageSize <= 0 {
		return fmt.Errorf("sync.page_size and sync.live_page_size must be positive")
	}
	if c.Sync.PaceEvery < 0 || c.Sync.PaceDelay < 0 {
		return fmt.Errorf("sync.pace_every and sync.pace_delay must not be negative")
	}

	switch c.Sync.ConversionDedupKey {
	case DedupKeyClickIDPostback, DedupKeyClickID:
	default:
		return fmt.Errorf("sync.conversion_dedup_key must be %q or %q, got %q",
			DedupKeyClickIDPostback, DedupKeyClickID, c.Sync.ConversionDedupKey)
	}

	switch c.Sync.OnCampaignError {
	case CampaignErrorSkip, CampaignErrorAbort:
	default:
		return fmt.Errorf("sync.on_campaign_error must be %q or %q, got %q",
			CampaignErrorSkip, CampaignErrorAbort, c.Sync.OnCampaignError)
	}

	if c.Backfill.ChunkDays <= 0 {
		return fmt.Errorf("backfill.chunk_days must be positive")
	}

	if c.Server.Enabled {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			return fmt.Errorf("server.port %d out of range", c.Server.Port)
		}
	}

	switch strings.ToLower(c.Logging.Format) {
	case "", "json", "console":
	default:
		return fmt.Errorf("logging.format must be json or console, got %q", c.Logging.Format)
	}

	return nil
}
