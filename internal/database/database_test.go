// Clickmirror - Advertising Tracker Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/clickmirror

package database

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/tomtom215/clickmirror/internal/config"
	"github.com/tomtom215/clickmirror/internal/models"
)

// newTestDB opens a throwaway database file under t.TempDir().
func newTestDB(t *testing.T) *DB {
	t.Helper()
	cfg := &config.DatabaseConfig{
		Path:          filepath.Join(t.TempDir(), "test.duckdb"),
		MaxMemory:     "256MB",
		Threads:       2,
		RetentionDays: 90,
	}
	db, err := New(cfg)
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func testVisit(clickID string) models.Visit {
	return models.Visit{
		ClickID:        clickID,
		CampaignID:     "camp-1",
		CampaignName:   "Test Campaign",
		VisitTimestamp: "2026-08-20T10:00:00",
		CountryCode:    "US",
		Cost:           0.05,
		Revenue:        0.10,
		Profit:         0.05,
		RawData:        "{}",
	}
}

func TestUpsertVisitsIdempotent(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	v := testVisit("click-1")
	if _, err := db.UpsertVisits(ctx, []models.Visit{v}); err != nil {
		t.Fatalf("first upsert failed: %v", err)
	}

	// Same key again with changed payload: row is replaced, not duplicated.
	v.Revenue = 0.20
	v.CampaignName = "Renamed Campaign"
	if _, err := db.UpsertVisits(ctx, []models.Visit{v}); err != nil {
		t.Fatalf("second upsert failed: %v", err)
	}

	n, err := db.CountRows(ctx, "live_visits")
	if err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if n != 1 {
		t.Errorf("row count = %d, want 1 after re-upsert", n)
	}

	var revenue float64
	var name string
	err = db.conn.QueryRow("SELECT revenue, campaign_name FROM live_visits WHERE click_id = 'click-1'").
		Scan(&revenue, &name)
	if err != nil {
		t.Fatalf("readback failed: %v", err)
	}
	if revenue != 0.20 {
		t.Errorf("revenue = %v, want replaced value 0.20", revenue)
	}
	if name != "Renamed Campaign" {
		t.Errorf("campaign_name = %q, want replaced value", name)
	}
}

func TestUpsertClicksBatch(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	clicks := []models.Click{
		{ClickID: "a", CampaignID: "c1", ClickTimestamp: "2026-08-20T10:00:00", RawData: "{}"},
		{ClickID: "b", CampaignID: "c1", ClickTimestamp: "2026-08-20T10:01:00", RawData: "{}"},
	}
	written, err := db.UpsertClicks(ctx, clicks)
	if err != nil {
		t.Fatalf("upsert failed: %v", err)
	}
	if written != 2 {
		t.Errorf("written = %d, want 2", written)
	}

	n, _ := db.CountRows(ctx, "live_clicks")
	if n != 2 {
		t.Errorf("row count = %d, want 2", n)
	}
}

func TestUpsertConversionsCompositeKey(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	base := models.Conversion{
		ClickID:           "click-1",
		CampaignID:        "camp-1",
		PostbackTimestamp: "2026-08-20T12:00:00",
		Revenue:           5.0,
		RawData:           "{}",
	}
	second := base
	second.PostbackTimestamp = "2026-08-20T13:00:00"

	// Same click, different postback timestamps: two distinct rows.
	if _, err := db.UpsertConversions(ctx, []models.Conversion{base, second}); err != nil {
		t.Fatalf("upsert failed: %v", err)
	}
	n, _ := db.CountRows(ctx, "conversions")
	if n != 2 {
		t.Errorf("row count = %d, want 2 distinct postbacks", n)
	}

	// Re-delivering the same postback replaces the row.
	base.Revenue = 7.5
	if _, err := db.UpsertConversions(ctx, []models.Conversion{base}); err != nil {
		t.Fatalf("re-upsert failed: %v", err)
	}
	n, _ = db.CountRows(ctx, "conversions")
	if n != 2 {
		t.Errorf("row count = %d, want 2 after re-delivery", n)
	}
}

func TestSyncCursorLifecycle(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	cursor, err := db.GetSyncCursor(ctx, models.EntityVisits)
	if err != nil {
		t.Fatalf("get on empty table failed: %v", err)
	}
	if cursor != nil {
		t.Fatalf("expected nil cursor before first sync, got %+v", cursor)
	}

	ts := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)
	if err := db.UpsertSyncCursor(ctx, models.EntityVisits, ts, 42); err != nil {
		t.Fatalf("upsert cursor failed: %v", err)
	}

	cursor, err = db.GetSyncCursor(ctx, models.EntityVisits)
	if err != nil {
		t.Fatalf("get after upsert failed: %v", err)
	}
	if cursor == nil {
		t.Fatal("expected cursor after upsert")
	}
	if !cursor.LastSyncTimestamp.Equal(ts) {
		t.Errorf("watermark = %v, want %v", cursor.LastSyncTimestamp, ts)
	}
	if cursor.RecordsSynced != 42 {
		t.Errorf("records_synced = %d, want 42", cursor.RecordsSynced)
	}

	// Advancing the watermark replaces the row.
	later := ts.Add(time.Hour)
	if err := db.UpsertSyncCursor(ctx, models.EntityVisits, later, 7); err != nil {
		t.Fatalf("advance cursor failed: %v", err)
	}
	cursor, _ = db.GetSyncCursor(ctx, models.EntityVisits)
	if !cursor.LastSyncTimestamp.Equal(later) {
		t.Errorf("watermark = %v, want advanced %v", cursor.LastSyncTimestamp, later)
	}

	cursors, err := db.ListSyncCursors(ctx)
	if err != nil {
		t.Fatalf("list cursors failed: %v", err)
	}
	if len(cursors) != 1 {
		t.Errorf("cursor count = %d, want 1", len(cursors))
	}
}

func TestDeleteEventsBefore(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	old := testVisit("old")
	old.VisitTimestamp = "2026-01-01T00:00:00"
	recent := testVisit("recent")
	recent.VisitTimestamp = "2026-08-20T10:00:00"
	if _, err := db.UpsertVisits(ctx, []models.Visit{old, recent}); err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	cutoff := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	deleted, err := db.DeleteEventsBefore(ctx, cutoff)
	if err != nil {
		t.Fatalf("retention cleanup failed: %v", err)
	}
	if deleted != 1 {
		t.Errorf("deleted = %d, want 1", deleted)
	}

	n, _ := db.CountRows(ctx, "live_visits")
	if n != 1 {
		t.Errorf("remaining rows = %d, want 1", n)
	}
}

func TestRefreshHourlyStats(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	v1 := testVisit("v1")
	v2 := testVisit("v2")
	v2.VisitTimestamp = "2026-08-20T10:30:00" // same hour as v1
	if _, err := db.UpsertVisits(ctx, []models.Visit{v1, v2}); err != nil {
		t.Fatalf("seed visits failed: %v", err)
	}

	conv := models.Conversion{
		ClickID:           "v1",
		CampaignID:        "camp-1",
		PostbackTimestamp: "2026-08-20T10:45:00",
		Revenue:           2.0,
		RawData:           "{}",
	}
	if _, err := db.UpsertConversions(ctx, []models.Conversion{conv}); err != nil {
		t.Fatalf("seed conversion failed: %v", err)
	}

	if err := db.RefreshHourlyStats(ctx); err != nil {
		t.Fatalf("refresh failed: %v", err)
	}

	var visits, conversions int64
	err := db.conn.QueryRow(
		"SELECT visits, conversions FROM hourly_stats WHERE campaign_id = 'camp-1'").
		Scan(&visits, &conversions)
	if err != nil {
		t.Fatalf("rollup readback failed: %v", err)
	}
	if visits != 2 {
		t.Errorf("rollup visits = %d, want 2", visits)
	}
	if conversions != 1 {
		t.Errorf("rollup conversions = %d, want 1", conversions)
	}

	// Refresh is a full recompute, so running it again does not double count.
	if err := db.RefreshHourlyStats(ctx); err != nil {
		t.Fatalf("second refresh failed: %v", err)
	}
	n, _ := db.CountRows(ctx, "hourly_stats")
	if n != 1 {
		t.Errorf("rollup rows = %d, want 1 after re-refresh", n)
	}
}

func TestCountRowsRejectsUnknownTable(t *testing.T) {
	db := newTestDB(t)
	if _, err := db.CountRows(context.Background(), "users; DROP TABLE live_visits"); err == nil {
		t.Fatal("expected error for unknown table name")
	}
}
