// Clickmirror - Advertising Tracker Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/clickmirror

package sync

import (
	"context"
	"fmt"
	"time"

	"github.com/tomtom215/clickmirror/internal/logging"
)

// BackfillResult summarizes a completed backfill run.
type BackfillResult struct {
	From         time.Time `json:"from"`
	To           time.Time `json:"to"`
	Chunks       int       `json:"chunks"`
	FailedChunks int       `json:"failed_chunks"`
	Conversions  int       `json:"conversions"`
}

// chunkWindows splits [from, to) into consecutive windows of chunkDays,
// ordered most recent first so fresh history lands before old history. The
// oldest window may be shorter than chunkDays.
func chunkWindows(from, to time.Time, chunkDays int) [][2]time.Time {
	if !from.Before(to) || chunkDays <= 0 {
		return nil
	}
	var windows [][2]time.Time
	chunk := time.Duration(chunkDays) * 24 * time.Hour
	end := to
	for end.After(from) {
		start := end.Add(-chunk)
		if start.Before(from) {
			start = from
		}
		windows = append(windows, [2]time.Time{start, end})
		end = start
	}
	return windows
}

// Backfill replays historical conversions over an explicit window, split
// into chunks so one huge report pull cannot exhaust memory or hit upstream
// limits. A failing chunk is logged and skipped; pages applied before the
// failure stay persisted and the remaining chunks still run. The sync cursor
// is not touched: backfill windows are explicit and idempotent upserts make
// overlap with regular cycles harmless.
func (m *Manager) Backfill(ctx context.Context, from, to time.Time, chunkDays int) (*BackfillResult, error) {
	m.syncMu.Lock()
	defer m.syncMu.Unlock()

	if chunkDays <= 0 {
		chunkDays = m.cfg.Backfill.ChunkDays
	}
	from = from.UTC()
	to = to.UTC()
	if !from.Before(to) {
		return nil, fmt.Errorf("backfill window [%s, %s) is empty", from.Format(apiTimeLayout), to.Format(apiTimeLayout))
	}

	windows := chunkWindows(from, to, chunkDays)
	result := &BackfillResult{From: from, To: to, Chunks: len(windows)}

	logging.Info().
		Time("from", from).
		Time("to", to).
		Int("chunks", len(windows)).
		Int("chunk_days", chunkDays).
		Msg("Backfill started")

	for i, w := range windows {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		n, err := m.pullConversionWindow(ctx, w[0], w[1])
		result.Conversions += n
		if err != nil {
			result.FailedChunks++
			logging.Warn().
				Err(err).
				Time("chunk_from", w[0]).
				Time("chunk_to", w[1]).
				Msg("Backfill chunk failed, continuing")
		}

		if i < len(windows)-1 && m.cfg.Backfill.ChunkDelay > 0 {
			select {
			case <-time.After(m.cfg.Backfill.ChunkDelay):
			case <-ctx.Done():
				return result, ctx.Err()
			}
		}
	}

	logging.Info().
		Int("conversions", result.Conversions).
		Int("failed_chunks", result.FailedChunks).
		Msg("Backfill completed")
	return result, nil
}
