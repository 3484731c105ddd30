// Clickmirror - Advertising Tracker Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/clickmirror

package database

import (
	"context"
	"fmt"
	"time"

	"github.com/tomtom215/clickmirror/internal/logging"
	"github.com/tomtom215/clickmirror/internal/metrics"
)

// eventTables maps each event table to the timestamp column retention
// cleanup filters on. Event timestamps are stored as normalized ISO strings,
// which compare correctly lexicographically.
var eventTables = map[string]string{
	"live_visits": "visit_timestamp",
	"live_clicks": "click_timestamp",
	"conversions": "postback_timestamp",
}

// DeleteEventsBefore removes event rows older than the given cutoff from all
// event tables and returns the total rows removed.
func (db *DB) DeleteEventsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	cutoffStr := cutoff.UTC().Format("2006-01-02T15:04:05")

	var total int64
	for table, column := range eventTables {
		qctx, cancel := context.WithTimeout(ctx, queryTimeout)
		res, err := db.conn.ExecContext(qctx,
			fmt.Sprintf("DELETE FROM %s WHERE %s <> '' AND %s < ?", table, column, column),
			cutoffStr)
		cancel()
		if err != nil {
			return total, fmt.Errorf("retention cleanup %s: %w", table, err)
		}
		n, err := res.RowsAffected()
		if err == nil && n > 0 {
			metrics.DBRowsDeleted.WithLabelValues(table).Add(float64(n))
			total += n
		}
	}

	if total > 0 {
		logging.Info().Int64("rows", total).Time("cutoff", cutoff).Msg("Retention cleanup removed rows")
	}
	return total, nil
}

// RefreshHourlyStats rebuilds the hourly rollup from the event tables.
// The rollup is a full recompute rather than an incremental merge: upserted
// late events and retention deletions are both reflected automatically.
func (db *DB) RefreshHourlyStats(ctx context.Context) error {
	qctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	tx, err := db.conn.BeginTx(qctx, nil)
	if err != nil {
		return fmt.Errorf("refresh hourly stats: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(qctx, "DELETE FROM hourly_stats"); err != nil {
		return fmt.Errorf("refresh hourly stats: %w", err)
	}
	if _, err := tx.ExecContext(qctx, refreshHourlyStatsSQL); err != nil {
		return fmt.Errorf("refresh hourly stats: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("refresh hourly stats: %w", err)
	}

	logging.Debug().Msg("Hourly stats refreshed")
	return nil
}

// Event timestamps are normalized ISO strings; try_cast skips the rare row
// whose upstream timestamp could not be normalized.
const refreshHourlyStatsSQL = `
INSERT INTO hourly_stats (hour, campaign_id, visits, clicks, conversions, revenue, cost, profit, refreshed_at)
WITH v AS (
	SELECT date_trunc('hour', try_cast(visit_timestamp AS TIMESTAMP)) AS hour,
	       campaign_id,
	       COUNT(*) AS visits,
	       SUM(revenue) AS revenue,
	       SUM(cost) AS cost,
	       SUM(profit) AS profit
	FROM live_visits
	WHERE try_cast(visit_timestamp AS TIMESTAMP) IS NOT NULL
	GROUP BY 1, 2
), c AS (
	SELECT date_trunc('hour', try_cast(click_timestamp AS TIMESTAMP)) AS hour,
	       campaign_id,
	       COUNT(*) AS clicks
	FROM live_clicks
	WHERE try_cast(click_timestamp AS TIMESTAMP) IS NOT NULL
	GROUP BY 1, 2
), x AS (
	SELECT date_trunc('hour', try_cast(postback_timestamp AS TIMESTAMP)) AS hour,
	       campaign_id,
	       COUNT(*) AS conversions,
	       SUM(revenue) AS conv_revenue,
	       SUM(profit) AS conv_profit
	FROM conversions
	WHERE try_cast(postback_timestamp AS TIMESTAMP) IS NOT NULL
	GROUP BY 1, 2
)
SELECT
	COALESCE(v.hour, c.hour, x.hour) AS hour,
	COALESCE(v.campaign_id, c.campaign_id, x.campaign_id) AS campaign_id,
	COALESCE(v.visits, 0),
	COALESCE(c.clicks, 0),
	COALESCE(x.conversions, 0),
	COALESCE(v.revenue, 0) + COALESCE(x.conv_revenue, 0),
	COALESCE(v.cost, 0),
	COALESCE(v.profit, 0) + COALESCE(x.conv_profit, 0),
	CURRENT_TIMESTAMP
FROM v
FULL OUTER JOIN c ON v.hour = c.hour AND v.campaign_id = c.campaign_id
FULL OUTER JOIN x ON COALESCE(v.hour, c.hour) = x.hour
	AND COALESCE(v.campaign_id, c.campaign_id) = x.campaign_id`
