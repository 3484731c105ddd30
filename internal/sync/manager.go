// Clickmirror - Advertising Tracker Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/clickmirror

package sync

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/clickmirror/internal/config"
	"github.com/tomtom215/clickmirror/internal/logging"
	"github.com/tomtom215/clickmirror/internal/metrics"
	"github.com/tomtom215/clickmirror/internal/models"
	"github.com/tomtom215/clickmirror/internal/models/voluum"
)

// Store is the destination-store surface the orchestrator needs. Implemented
// by *database.DB.
type Store interface {
	UpsertVisits(ctx context.Context, visits []models.Visit) (int, error)
	UpsertClicks(ctx context.Context, clicks []models.Click) (int, error)
	UpsertConversions(ctx context.Context, conversions []models.Conversion) (int, error)
	GetSyncCursor(ctx context.Context, entityType string) (*models.SyncCursor, error)
	UpsertSyncCursor(ctx context.Context, entityType string, ts time.Time, records int) error
	DeleteEventsBefore(ctx context.Context, cutoff time.Time) (int64, error)
	RefreshHourlyStats(ctx context.Context) error
}

// Manager orchestrates sync cycles: campaign discovery, per-campaign live
// feeds, the windowed conversion pull, cursor bookkeeping, and maintenance.
// It also owns the periodic loop between cycles.
type Manager struct {
	cfg    *config.Config
	client VoluumAPI
	store  Store

	// syncMu serializes cycles: the periodic loop, manual triggers, and
	// backfills never run concurrently.
	syncMu sync.Mutex

	mu         sync.RWMutex
	running    bool
	lastResult *models.CycleResult

	stopChan chan struct{}
	wg       sync.WaitGroup

	// now and sleep are swappable for window-calculation and pacing tests.
	now   func() time.Time
	sleep func(time.Duration)
}

// NewManager creates a sync orchestrator.
func NewManager(cfg *config.Config, client VoluumAPI, store Store) *Manager {
	return &Manager{
		cfg:      cfg,
		client:   client,
		store:    store,
		stopChan: make(chan struct{}),
		now:      time.Now,
		sleep:    time.Sleep,
	}
}

// Start launches the periodic sync loop. The first cycle runs immediately.
func (m *Manager) Start() {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return
	}
	m.running = true
	m.mu.Unlock()

	m.wg.Add(1)
	go m.loop()
	logging.Info().Dur("interval", m.cfg.Sync.Interval).Msg("Sync loop started")
}

// Stop signals the loop to exit and waits for an in-flight cycle to finish.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	m.mu.Unlock()

	close(m.stopChan)
	m.wg.Wait()
	logging.Info().Msg("Sync loop stopped")
}

// Running reports whether the periodic loop is active.
func (m *Manager) Running() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.running
}

// LastResult returns the most recent cycle result, or nil before the first
// cycle completes.
func (m *Manager) LastResult() *models.CycleResult {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.lastResult == nil {
		return nil
	}
	result := *m.lastResult
	return &result
}

func (m *Manager) loop() {
	defer m.wg.Done()

	ticker := time.NewTicker(m.cfg.Sync.Interval)
	defer ticker.Stop()

	m.runAndRecord()

	for {
		select {
		case <-m.stopChan:
			return
		case <-ticker.C:
			m.runAndRecord()
		}
	}
}

func (m *Manager) runAndRecord() {
	ctx := context.Background()
	result, err := m.RunCycle(ctx)
	if err != nil {
		logging.Error().Err(err).Str("cycle_id", result.CycleID).Msg("Sync cycle failed")
		return
	}
	logging.Info().
		Str("cycle_id", result.CycleID).
		Dur("duration", result.Duration).
		Int("visits", result.Visits).
		Int("clicks", result.Clicks).
		Int("conversions", result.Conversions).
		Int("campaigns", result.Campaigns).
		Msg("Sync cycle completed")
}

// TriggerSync runs one cycle outside the periodic schedule. It shares the
// cycle lock with the loop, so a trigger during a running cycle waits its
// turn rather than overlapping.
func (m *Manager) TriggerSync(ctx context.Context) (*models.CycleResult, error) {
	return m.RunCycle(ctx)
}

// RunCycle executes one full sync cycle and records its outcome.
func (m *Manager) RunCycle(ctx context.Context) (*models.CycleResult, error) {
	m.syncMu.Lock()
	defer m.syncMu.Unlock()

	start := m.now()
	result := &models.CycleResult{
		CycleID:   uuid.NewString(),
		StartedAt: start,
	}

	err := m.runCycleLocked(ctx, result)
	result.Duration = time.Since(start)
	if err != nil {
		result.Err = err.Error()
	}
	metrics.RecordCycle(result.Duration, err)

	m.mu.Lock()
	m.lastResult = result
	m.mu.Unlock()

	if err != nil {
		return result, err
	}
	return result, nil
}

func (m *Manager) runCycleLocked(ctx context.Context, result *models.CycleResult) error {
	campaigns, err := m.discoverCampaigns(ctx)
	if err != nil {
		return fmt.Errorf("campaign discovery: %w", err)
	}
	result.Campaigns = len(campaigns)
	logging.Debug().Int("campaigns", len(campaigns)).Msg("Discovered tracked campaigns")

	if err := m.syncLiveFeeds(ctx, campaigns, result); err != nil {
		return err
	}
	if err := m.syncConversions(ctx, result); err != nil {
		return err
	}

	m.runMaintenance(ctx)
	return nil
}

// discoverCampaigns pulls the aggregate campaign report over the lookback
// window and filters it down to tracked campaigns.
func (m *Manager) discoverCampaigns(ctx context.Context) ([]models.Campaign, error) {
	to := m.now().UTC()
	from := to.Add(-m.cfg.Sync.Lookback)

	var campaigns []models.Campaign
	_, err := forEachPage(ctx, m.cfg.Sync.PageSize,
		func(ctx context.Context, limit, offset int) (*voluum.ReportResponse, error) {
			return m.client.GetCampaignReport(ctx, from, to, limit, offset)
		},
		func(_ context.Context, rows []voluum.RawRecord) (int, error) {
			page := TransformCampaigns(rows, m.cfg.Sync.CampaignFilter)
			campaigns = append(campaigns, page...)
			return len(page), nil
		})
	if err != nil {
		return nil, err
	}
	return campaigns, nil
}

// syncLiveFeeds pulls the live visit and click feeds for every tracked
// campaign. Cursors advance only when the whole loop completed, so an
// aborted loop retries the same window next cycle.
func (m *Manager) syncLiveFeeds(ctx context.Context, campaigns []models.Campaign, result *models.CycleResult) error {
	mode := failureModeFromConfig(m.cfg.Sync.OnCampaignError)
	pace := newPacer(m.cfg.Sync.PaceEvery, m.cfg.Sync.PaceDelay)
	pace.sleep = m.sleep

	skipped, err := forEachCampaign(ctx, campaigns, mode, func(campaign models.Campaign) error {
		// The pacer counts individual upstream calls, not campaigns: each
		// campaign costs two requests.
		visits, err := m.fetchCampaignVisits(ctx, campaign)
		pace.tick()
		if err != nil {
			return err
		}
		clicks, err := m.fetchCampaignClicks(ctx, campaign)
		pace.tick()
		if err != nil {
			return err
		}

		n, err := m.store.UpsertVisits(ctx, visits)
		if err != nil {
			metrics.SyncErrors.WithLabelValues("persistence").Inc()
			return &PersistenceError{Table: "live_visits", Err: err}
		}
		result.Visits += n

		n, err = m.store.UpsertClicks(ctx, clicks)
		if err != nil {
			metrics.SyncErrors.WithLabelValues("persistence").Inc()
			return &PersistenceError{Table: "live_clicks", Err: err}
		}
		result.Clicks += n
		return nil
	})
	if err != nil {
		return fmt.Errorf("live feed sync: %w", err)
	}
	if skipped > 0 {
		logging.Warn().Int("skipped", skipped).Msg("Some campaigns were skipped this cycle")
	}

	now := m.now().UTC()
	if err := m.store.UpsertSyncCursor(ctx, models.EntityVisits, now, result.Visits); err != nil {
		return &PersistenceError{Table: "sync_state", Err: err}
	}
	if err := m.store.UpsertSyncCursor(ctx, models.EntityClicks, now, result.Clicks); err != nil {
		return &PersistenceError{Table: "sync_state", Err: err}
	}
	return nil
}

func (m *Manager) fetchCampaignVisits(ctx context.Context, campaign models.Campaign) ([]models.Visit, error) {
	report, err := m.client.GetLiveVisits(ctx, campaign.ID, m.cfg.Sync.LivePageSize)
	if err != nil {
		return nil, err
	}
	visits := make([]models.Visit, 0, len(report.Rows))
	for _, rec := range report.Rows {
		v := TransformVisit(rec)
		if v.CampaignID == "" {
			v.CampaignID = campaign.ID
		}
		if v.CampaignName == "" {
			v.CampaignName = campaign.Name
		}
		visits = append(visits, v)
	}
	return Dedupe(visits, func(v models.Visit) string { return v.ClickID }), nil
}

func (m *Manager) fetchCampaignClicks(ctx context.Context, campaign models.Campaign) ([]models.Click, error) {
	report, err := m.client.GetLiveClicks(ctx, campaign.ID, m.cfg.Sync.LivePageSize)
	if err != nil {
		return nil, err
	}
	clicks := make([]models.Click, 0, len(report.Rows))
	for _, rec := range report.Rows {
		c := TransformClick(rec)
		if c.CampaignID == "" {
			c.CampaignID = campaign.ID
		}
		if c.CampaignName == "" {
			c.CampaignName = campaign.Name
		}
		clicks = append(clicks, c)
	}
	return Dedupe(clicks, func(c models.Click) string { return c.ClickID }), nil
}

// syncConversions pulls the windowed conversions report from the cursor (or
// the lookback window on first run) to now. The cursor advances to the
// window end after a successful pull, including when the window was empty.
func (m *Manager) syncConversions(ctx context.Context, result *models.CycleResult) error {
	to := m.now().UTC()
	from := to.Add(-m.cfg.Sync.Lookback)

	cursor, err := m.store.GetSyncCursor(ctx, models.EntityConversions)
	if err != nil {
		return &PersistenceError{Table: "sync_state", Err: err}
	}
	if cursor != nil && cursor.LastSyncTimestamp.Before(to) && !cursor.LastSyncTimestamp.IsZero() {
		from = cursor.LastSyncTimestamp
	}

	n, err := m.pullConversionWindow(ctx, from, to)
	result.Conversions = n
	if err != nil {
		return fmt.Errorf("conversion sync: %w", err)
	}

	if err := m.store.UpsertSyncCursor(ctx, models.EntityConversions, to, n); err != nil {
		return &PersistenceError{Table: "sync_state", Err: err}
	}
	return nil
}

// pullConversionWindow syncs one conversion window page by page: each page
// is transformed, filtered, deduped against the pages before it, and
// upserted before the next page is fetched. A failure mid-window leaves
// every completed page persisted. Shared by the cycle path and backfill
// chunks.
func (m *Manager) pullConversionWindow(ctx context.Context, from, to time.Time) (int, error) {
	policy := m.cfg.Sync.ConversionDedupKey
	seen := make(map[string]struct{})

	return forEachPage(ctx, m.cfg.Sync.PageSize,
		func(ctx context.Context, limit, offset int) (*voluum.ReportResponse, error) {
			return m.client.GetConversions(ctx, from, to, limit, offset)
		},
		func(ctx context.Context, rows []voluum.RawRecord) (int, error) {
			conversions := make([]models.Conversion, 0, len(rows))
			for _, rec := range rows {
				c := TransformConversion(rec)
				if m.cfg.Sync.CampaignFilter != "" && !strings.Contains(c.CampaignName, m.cfg.Sync.CampaignFilter) {
					continue
				}
				conversions = append(conversions, c)
			}
			conversions = DedupeWith(conversions, func(c models.Conversion) string {
				return ConversionKey(c, policy)
			}, seen)

			n, err := m.store.UpsertConversions(ctx, conversions)
			if err != nil {
				metrics.SyncErrors.WithLabelValues("persistence").Inc()
				return n, &PersistenceError{Table: "conversions", Err: err}
			}
			return n, nil
		})
}

// runMaintenance performs retention cleanup and the hourly rollup refresh.
// Maintenance failures are logged but do not fail the cycle: event data has
// already been persisted.
func (m *Manager) runMaintenance(ctx context.Context) {
	if m.cfg.Database.RetentionDays > 0 {
		cutoff := m.now().UTC().AddDate(0, 0, -m.cfg.Database.RetentionDays)
		if _, err := m.store.DeleteEventsBefore(ctx, cutoff); err != nil {
			logging.Warn().Err(err).Msg("Retention cleanup failed")
		}
	}
	if err := m.store.RefreshHourlyStats(ctx); err != nil {
		logging.Warn().Err(err).Msg("Hourly stats refresh failed")
	}
}
