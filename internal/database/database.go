// Clickmirror - Advertising Tracker Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/clickmirror

// Package database provides the DuckDB destination store: event tables with
// natural-key upserts, per-entity sync cursors, retention cleanup, and the
// hourly rollup table.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"

	"github.com/tomtom215/clickmirror/internal/config"
	"github.com/tomtom215/clickmirror/internal/logging"
)

// queryTimeout bounds individual statements so a wedged database file cannot
// hang a sync cycle indefinitely.
const queryTimeout = 30 * time.Second

// DB wraps the DuckDB connection and provides data access methods.
type DB struct {
	conn *sql.DB
	cfg  *config.DatabaseConfig
}

// New opens (creating if needed) the DuckDB database file and initializes
// the schema. The parent directory is created when missing.
func New(cfg *config.DatabaseConfig) (*DB, error) {
	numThreads := cfg.Threads
	if numThreads <= 0 {
		numThreads = runtime.NumCPU()
	}

	// Use 0750 permissions (owner: rwx, group: rx, other: none) per gosec G301
	dbDir := filepath.Dir(cfg.Path)
	if dbDir != "" && dbDir != "." {
		if err := os.MkdirAll(dbDir, 0o750); err != nil {
			return nil, fmt.Errorf("failed to create database directory %s: %w", dbDir, err)
		}
	}

	connStr := fmt.Sprintf("%s?access_mode=read_write&threads=%d&max_memory=%s",
		cfg.Path, numThreads, cfg.MaxMemory)

	conn, err := sql.Open("duckdb", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// DuckDB is an embedded single-writer engine; a single connection avoids
	// write-write transaction conflicts between upsert batches.
	conn.SetMaxOpenConns(1)

	db := &DB{conn: conn, cfg: cfg}

	if err := db.initSchema(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	logging.Info().
		Str("path", cfg.Path).
		Int("threads", numThreads).
		Str("max_memory", cfg.MaxMemory).
		Msg("Database opened")

	return db, nil
}

// initSchema creates all tables if they do not exist. Statements are
// idempotent so reopening an existing database is safe.
func (db *DB) initSchema() error {
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	statements := []string{
		schemaLiveVisits,
		schemaLiveClicks,
		schemaConversions,
		schemaSyncState,
		schemaHourlyStats,
	}
	for _, stmt := range statements {
		if _, err := db.conn.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("schema statement failed: %w", err)
		}
	}
	return nil
}

// Close closes the underlying connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Ping verifies the connection is alive, for readiness probes.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

const schemaLiveVisits = `
CREATE TABLE IF NOT EXISTS live_visits (
	click_id               VARCHAR PRIMARY KEY,
	external_id            VARCHAR,
	campaign_id            VARCHAR,
	campaign_name          VARCHAR,
	traffic_source_id      VARCHAR,
	traffic_source_name    VARCHAR,
	offer_id               VARCHAR,
	offer_name             VARCHAR,
	affiliate_network_id   VARCHAR,
	affiliate_network_name VARCHAR,
	lander_id              VARCHAR,
	lander_name            VARCHAR,
	visit_timestamp        VARCHAR,
	country_code           VARCHAR,
	country_name           VARCHAR,
	region                 VARCHAR,
	city                   VARCHAR,
	device                 VARCHAR,
	device_name            VARCHAR,
	brand                  VARCHAR,
	model                  VARCHAR,
	os                     VARCHAR,
	os_version             VARCHAR,
	browser                VARCHAR,
	browser_version        VARCHAR,
	connection_type        VARCHAR,
	isp                    VARCHAR,
	mobile_carrier         VARCHAR,
	ip                     VARCHAR,
	cost                   DOUBLE,
	revenue                DOUBLE,
	profit                 DOUBLE,
	custom_var_1           VARCHAR,
	custom_var_2           VARCHAR,
	custom_var_3           VARCHAR,
	custom_var_4           VARCHAR,
	custom_var_5           VARCHAR,
	custom_var_6           VARCHAR,
	custom_var_7           VARCHAR,
	custom_var_8           VARCHAR,
	custom_var_9           VARCHAR,
	custom_var_10          VARCHAR,
	referrer               VARCHAR,
	user_agent             VARCHAR,
	raw_data               VARCHAR,
	synced_at              TIMESTAMP DEFAULT CURRENT_TIMESTAMP
)`

const schemaLiveClicks = `
CREATE TABLE IF NOT EXISTS live_clicks (
	click_id        VARCHAR PRIMARY KEY,
	external_id     VARCHAR,
	campaign_id     VARCHAR,
	campaign_name   VARCHAR,
	offer_id        VARCHAR,
	offer_name      VARCHAR,
	lander_id       VARCHAR,
	lander_name     VARCHAR,
	click_timestamp VARCHAR,
	country_code    VARCHAR,
	country_name    VARCHAR,
	device          VARCHAR,
	os              VARCHAR,
	browser         VARCHAR,
	ip              VARCHAR,
	raw_data        VARCHAR,
	synced_at       TIMESTAMP DEFAULT CURRENT_TIMESTAMP
)`

const schemaConversions = `
CREATE TABLE IF NOT EXISTS conversions (
	click_id               VARCHAR,
	external_id            VARCHAR,
	transaction_id         VARCHAR,
	campaign_id            VARCHAR,
	campaign_name          VARCHAR,
	offer_id               VARCHAR,
	offer_name             VARCHAR,
	affiliate_network_id   VARCHAR,
	affiliate_network_name VARCHAR,
	postback_timestamp     VARCHAR,
	visit_timestamp        VARCHAR,
	country_code           VARCHAR,
	country_name           VARCHAR,
	revenue                DOUBLE,
	payout                 DOUBLE,
	cost                   DOUBLE,
	profit                 DOUBLE,
	device                 VARCHAR,
	os                     VARCHAR,
	browser                VARCHAR,
	connection_type        VARCHAR,
	isp                    VARCHAR,
	ip                     VARCHAR,
	custom_var_1           VARCHAR,
	custom_var_2           VARCHAR,
	custom_var_3           VARCHAR,
	custom_var_4           VARCHAR,
	custom_var_5           VARCHAR,
	raw_data               VARCHAR,
	synced_at              TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (click_id, postback_timestamp)
)`

const schemaSyncState = `
CREATE TABLE IF NOT EXISTS sync_state (
	sync_type           VARCHAR PRIMARY KEY,
	last_sync_timestamp TIMESTAMP,
	records_synced      INTEGER,
	updated_at          TIMESTAMP DEFAULT CURRENT_TIMESTAMP
)`

const schemaHourlyStats = `
CREATE TABLE IF NOT EXISTS hourly_stats (
	hour         TIMESTAMP,
	campaign_id  VARCHAR,
	visits       BIGINT,
	clicks       BIGINT,
	conversions  BIGINT,
	revenue      DOUBLE,
	cost         DOUBLE,
	profit       DOUBLE,
	refreshed_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (hour, campaign_id)
)`
