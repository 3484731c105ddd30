// Clickmirror - Advertising Tracker Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/clickmirror

// Package main is the entry point for the Clickmirror sync worker.
//
// Clickmirror mirrors advertising-tracking events (visits, clicks, and
// conversions) from the Voluum reporting API into a local DuckDB store,
// keeping a queryable event-level copy that survives the provider's
// retention limits.
//
// # Application Architecture
//
// The worker initializes components in the following order:
//
//  1. Configuration: layered Koanf v2 sources (defaults, YAML file, env)
//  2. Database: DuckDB with event tables, sync cursors, and hourly rollups
//  3. Voluum client: credential-exchange auth behind a circuit breaker
//  4. Sync manager: periodic cycles with cursor-tracked incremental pulls
//  5. Admin HTTP server: health probes, Prometheus metrics, status, trigger
//  6. Supervisor tree: suture-managed restart-with-backoff for 4 and 5
//
// # Run Modes
//
// Continuous (default): the supervisor runs the sync loop and admin server
// until SIGINT or SIGTERM.
//
//	./worker
//
// One-shot: run a single sync cycle and exit 0 on success, 1 on failure.
//
//	./worker -once
//
// Backfill: replay the last N days of conversions in chunks, then exit.
//
//	./worker -backfill 30
//	./worker -backfill 90 -chunk-days 14
//
// # Configuration
//
// Credentials are required: VOLUUM_ACCESS_ID and VOLUUM_ACCESS_KEY, or the
// corresponding keys in config.yaml. See internal/config for the full key
// set and defaults.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tomtom215/clickmirror/internal/api"
	"github.com/tomtom215/clickmirror/internal/config"
	"github.com/tomtom215/clickmirror/internal/database"
	"github.com/tomtom215/clickmirror/internal/logging"
	"github.com/tomtom215/clickmirror/internal/supervisor"
	"github.com/tomtom215/clickmirror/internal/supervisor/services"
	"github.com/tomtom215/clickmirror/internal/sync"
)

func main() {
	once := flag.Bool("once", false, "run a single sync cycle and exit")
	backfillDays := flag.Int("backfill", 0, "backfill the last N days of conversions and exit")
	chunkDays := flag.Int("chunk-days", 0, "backfill chunk size in days (default from config)")
	flag.Parse()

	if err := run(*once, *backfillDays, *chunkDays); err != nil {
		logging.Error().Err(err).Msg("Worker exited with error")
		os.Exit(1)
	}
}

func run(once bool, backfillDays, chunkDays int) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().
		Str("base_url", cfg.Voluum.BaseURL).
		Str("db_path", cfg.Database.Path).
		Dur("interval", cfg.Sync.Interval).
		Str("campaign_filter", cfg.Sync.CampaignFilter).
		Msg("Configuration loaded")

	db, err := database.New(&cfg.Database)
	if err != nil {
		return fmt.Errorf("initialize database: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing database")
		}
	}()

	client := sync.NewCircuitBreakerClient(&cfg.Voluum)
	manager := sync.NewManager(cfg, client, db)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch {
	case backfillDays > 0:
		return runBackfill(ctx, manager, backfillDays, chunkDays)
	case once:
		return runOnce(ctx, manager)
	default:
		return runSupervised(ctx, cfg, manager, db, client)
	}
}

// runOnce executes a single sync cycle.
func runOnce(ctx context.Context, manager *sync.Manager) error {
	result, err := manager.RunCycle(ctx)
	if err != nil {
		return fmt.Errorf("sync cycle: %w", err)
	}
	logging.Info().
		Str("cycle_id", result.CycleID).
		Int("visits", result.Visits).
		Int("clicks", result.Clicks).
		Int("conversions", result.Conversions).
		Msg("One-shot sync completed")
	return nil
}

// runBackfill replays the last backfillDays of conversions.
func runBackfill(ctx context.Context, manager *sync.Manager, backfillDays, chunkDays int) error {
	to := time.Now().UTC()
	from := to.AddDate(0, 0, -backfillDays)

	result, err := manager.Backfill(ctx, from, to, chunkDays)
	if err != nil {
		return fmt.Errorf("backfill: %w", err)
	}
	if result.FailedChunks > 0 {
		return fmt.Errorf("backfill finished with %d of %d chunks failed", result.FailedChunks, result.Chunks)
	}
	logging.Info().Int("conversions", result.Conversions).Msg("Backfill completed")
	return nil
}

// runSupervised runs the sync loop and the admin server under the
// supervisor tree until the context is canceled by a signal.
func runSupervised(ctx context.Context, cfg *config.Config, manager *sync.Manager, db *database.DB, client *sync.CircuitBreakerClient) error {
	tree := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())

	tree.AddSyncService(services.NewWorkerService(manager))

	if cfg.Server.Enabled {
		handler := api.NewHandler(manager, db, client)
		router := api.NewRouter(&cfg.Server, handler)
		server := &http.Server{
			Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
			Handler:           router.Setup(),
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       cfg.Server.Timeout,
			WriteTimeout:      cfg.Server.Timeout,
		}
		tree.AddAPIService(services.NewHTTPServerService(server, 10*time.Second))
		logging.Info().Str("addr", server.Addr).Msg("Admin server enabled")
	}

	logging.Info().Msg("Starting Clickmirror with supervisor tree")
	err := tree.Serve(ctx)
	if err != nil && ctx.Err() != nil {
		// Signal-driven shutdown is the normal exit path.
		logging.Info().Msg("Shutdown complete")
		return nil
	}
	return err
}
