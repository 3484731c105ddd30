// Clickmirror - Advertising Tracker Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/clickmirror

package sync

import (
	"context"
	"testing"
	"time"

	"github.com/tomtom215/clickmirror/internal/models"
	"github.com/tomtom215/clickmirror/internal/models/voluum"
)

func TestChunkWindows(t *testing.T) {
	from := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 8, 21, 0, 0, 0, 0, time.UTC) // 20 days

	windows := chunkWindows(from, to, 7)
	checkIntEqual(t, "window count", len(windows), 3)

	// Most recent chunk first.
	if !windows[0][1].Equal(to) {
		t.Errorf("first window ends at %v, want %v", windows[0][1], to)
	}
	if !windows[0][0].Equal(to.AddDate(0, 0, -7)) {
		t.Errorf("first window starts at %v, want 7 days before end", windows[0][0])
	}

	// Oldest chunk is clamped to the requested start.
	last := windows[len(windows)-1]
	if !last[0].Equal(from) {
		t.Errorf("oldest window starts at %v, want %v", last[0], from)
	}
	if got := last[1].Sub(last[0]); got != 6*24*time.Hour {
		t.Errorf("oldest window spans %v, want clamped 6 days", got)
	}

	// Windows tile the full range with no gaps.
	for i := 0; i < len(windows)-1; i++ {
		if !windows[i][0].Equal(windows[i+1][1]) {
			t.Errorf("gap between window %d and %d", i, i+1)
		}
	}
}

func TestChunkWindowsDegenerate(t *testing.T) {
	now := time.Now()
	if w := chunkWindows(now, now, 7); w != nil {
		t.Errorf("empty range should produce no windows, got %d", len(w))
	}
	if w := chunkWindows(now, now.Add(-time.Hour), 7); w != nil {
		t.Errorf("inverted range should produce no windows, got %d", len(w))
	}
}

func TestBackfillChunkFailureContinues(t *testing.T) {
	store := newMockStore()
	calls := 0
	api := &mockAPI{
		conversions: func(_ context.Context, from, _ time.Time, _, _ int) (*voluum.ReportResponse, error) {
			calls++
			if calls == 2 {
				return nil, &UpstreamError{Endpoint: "/report/conversions", Status: 500, Body: "flaky"}
			}
			return &voluum.ReportResponse{Rows: []voluum.RawRecord{
				{"clickId": from.Format("2006-01-02"), "postbackTimestamp": from.Format("2006-01-02T15:04:05")},
			}}, nil
		},
	}
	m := newTestManager(testConfig(), api, store)

	from := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 8, 22, 0, 0, 0, 0, time.UTC) // 21 days, 3 chunks

	result, err := m.Backfill(context.Background(), from, to, 7)
	checkNoError(t, "Backfill", err)

	checkIntEqual(t, "chunks", result.Chunks, 3)
	checkIntEqual(t, "failed chunks", result.FailedChunks, 1)
	checkIntEqual(t, "conversions", result.Conversions, 2)

	// Backfill uses explicit windows and never touches the sync cursor.
	if _, ok := store.cursors[models.EntityConversions]; ok {
		t.Error("backfill must not advance the conversion cursor")
	}
}

func TestBackfillRejectsEmptyWindow(t *testing.T) {
	m := newTestManager(testConfig(), &mockAPI{}, newMockStore())
	now := time.Now()
	if _, err := m.Backfill(context.Background(), now, now, 7); err == nil {
		t.Fatal("empty window should be rejected")
	}
}

func TestBackfillDefaultsChunkDays(t *testing.T) {
	store := newMockStore()
	m := newTestManager(testConfig(), &mockAPI{}, store)

	from := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 8, 15, 0, 0, 0, 0, time.UTC)

	// chunkDays <= 0 falls back to the configured default of 7.
	result, err := m.Backfill(context.Background(), from, to, 0)
	checkNoError(t, "Backfill", err)
	checkIntEqual(t, "chunks", result.Chunks, 2)
}
