// Clickmirror - Advertising Tracker Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/clickmirror

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/tomtom215/clickmirror/internal/models"
)

// GetSyncCursor returns the persisted cursor for the given entity type, or
// (nil, nil) when no cursor exists yet. Callers fall back to the configured
// lookback window on a nil cursor.
func (db *DB) GetSyncCursor(ctx context.Context, entityType string) (*models.SyncCursor, error) {
	qctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	cursor := &models.SyncCursor{EntityType: entityType}
	err := db.conn.QueryRowContext(qctx,
		`SELECT last_sync_timestamp, records_synced, updated_at
		 FROM sync_state WHERE sync_type = ?`, entityType,
	).Scan(&cursor.LastSyncTimestamp, &cursor.RecordsSynced, &cursor.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get sync cursor %s: %w", entityType, err)
	}
	return cursor, nil
}

// UpsertSyncCursor persists the cursor for one entity type, advancing the
// watermark and recording the row count of the last completed window.
func (db *DB) UpsertSyncCursor(ctx context.Context, entityType string, ts time.Time, records int) error {
	qctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	_, err := db.conn.ExecContext(qctx, `
		INSERT INTO sync_state (sync_type, last_sync_timestamp, records_synced, updated_at)
		VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT (sync_type) DO UPDATE SET
			last_sync_timestamp = EXCLUDED.last_sync_timestamp,
			records_synced = EXCLUDED.records_synced,
			updated_at = now()`,
		entityType, ts.UTC(), records)
	if err != nil {
		return fmt.Errorf("upsert sync cursor %s: %w", entityType, err)
	}
	return nil
}

// ListSyncCursors returns all persisted cursors, for the status endpoint.
func (db *DB) ListSyncCursors(ctx context.Context) ([]models.SyncCursor, error) {
	qctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	rows, err := db.conn.QueryContext(qctx,
		`SELECT sync_type, last_sync_timestamp, records_synced, updated_at
		 FROM sync_state ORDER BY sync_type`)
	if err != nil {
		return nil, fmt.Errorf("list sync cursors: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var cursors []models.SyncCursor
	for rows.Next() {
		var c models.SyncCursor
		if err := rows.Scan(&c.EntityType, &c.LastSyncTimestamp, &c.RecordsSynced, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan sync cursor: %w", err)
		}
		cursors = append(cursors, c)
	}
	return cursors, rows.Err()
}
