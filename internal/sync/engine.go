// Clickmirror - Advertising Tracker Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/clickmirror

package sync

import (
	"context"
	"fmt"
	"time"

	"github.com/tomtom215/clickmirror/internal/config"
	"github.com/tomtom215/clickmirror/internal/logging"
	"github.com/tomtom215/clickmirror/internal/metrics"
	"github.com/tomtom215/clickmirror/internal/models"
	"github.com/tomtom215/clickmirror/internal/models/voluum"
)

// pageFetcher fetches one page of a paginated report.
type pageFetcher func(ctx context.Context, limit, offset int) (*voluum.ReportResponse, error)

// pageApplier transforms and persists one fetched page, returning the number
// of records written.
type pageApplier func(ctx context.Context, rows []voluum.RawRecord) (int, error)

// forEachPage drains a paginated report, applying each page before the next
// one is requested. Pages are fetched with a fixed limit and an offset
// advanced by the limit; a page with fewer rows than the limit (including an
// empty page) is the last one. A failure mid-pagination leaves every
// previously applied page persisted, and the running total is returned
// alongside the error.
func forEachPage(ctx context.Context, limit int, fetch pageFetcher, apply pageApplier) (int, error) {
	total := 0
	offset := 0
	for {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		page, err := fetch(ctx, limit, offset)
		if err != nil {
			return total, err
		}
		if len(page.Rows) > 0 {
			n, err := apply(ctx, page.Rows)
			total += n
			if err != nil {
				return total, err
			}
		}
		if len(page.Rows) < limit {
			return total, nil
		}
		offset += limit
	}
}

// FailureMode controls how a campaign-scoped loop reacts to a failing
// campaign.
type FailureMode int

const (
	// FailureSkip logs the failing campaign and continues with the rest.
	FailureSkip FailureMode = iota
	// FailureAbort stops the loop at the first failing campaign.
	FailureAbort
)

// failureModeFromConfig maps the config enum to a FailureMode. Validation
// has already rejected unknown values.
func failureModeFromConfig(mode string) FailureMode {
	if mode == config.CampaignErrorAbort {
		return FailureAbort
	}
	return FailureSkip
}

// pacer inserts a fixed delay after every N-th upstream call, keeping burst
// pressure off the upstream API. This is advisory pacing, not a rate
// limiter. sleep is swappable for tests.
type pacer struct {
	every int
	delay time.Duration
	count int
	sleep func(time.Duration)
}

func newPacer(every int, delay time.Duration) *pacer {
	return &pacer{every: every, delay: delay, sleep: time.Sleep}
}

// tick records one upstream call and pauses when the boundary is hit.
func (p *pacer) tick() {
	p.count++
	if p.every > 0 && p.delay > 0 && p.count%p.every == 0 {
		p.sleep(p.delay)
	}
}

// forEachCampaign runs fn for every campaign. Under FailureSkip a failing
// campaign is counted and skipped; under FailureAbort the first failure
// stops the loop. Returns the number of campaigns skipped.
func forEachCampaign(ctx context.Context, campaigns []models.Campaign, mode FailureMode, fn func(models.Campaign) error) (int, error) {
	skipped := 0
	for _, campaign := range campaigns {
		if err := ctx.Err(); err != nil {
			return skipped, err
		}
		if err := fn(campaign); err != nil {
			if mode == FailureAbort {
				return skipped, fmt.Errorf("campaign %s (%s): %w", campaign.Name, campaign.ID, err)
			}
			skipped++
			metrics.CampaignsSkipped.Inc()
			logging.Warn().
				Err(err).
				Str("campaign_id", campaign.ID).
				Str("campaign_name", campaign.Name).
				Msg("Campaign sync failed, skipping")
		}
	}
	return skipped, nil
}
