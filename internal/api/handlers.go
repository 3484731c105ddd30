// Clickmirror - Advertising Tracker Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/clickmirror

package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"

	"github.com/tomtom215/clickmirror/internal/logging"
	"github.com/tomtom215/clickmirror/internal/models"
	"github.com/tomtom215/clickmirror/internal/sync"
)

// SyncController is the orchestrator surface the handlers drive.
// Implemented by *sync.Manager.
type SyncController interface {
	Running() bool
	LastResult() *models.CycleResult
	TriggerSync(ctx context.Context) (*models.CycleResult, error)
	Backfill(ctx context.Context, from, to time.Time, chunkDays int) (*sync.BackfillResult, error)
}

// StatusStore is the read-only store surface for status and readiness.
// Implemented by *database.DB.
type StatusStore interface {
	Ping(ctx context.Context) error
	ListSyncCursors(ctx context.Context) ([]models.SyncCursor, error)
	CountRows(ctx context.Context, table string) (int64, error)
}

// BreakerStatus reports the upstream circuit breaker state.
// Implemented by *sync.CircuitBreakerClient.
type BreakerStatus interface {
	State() string
}

// Handler holds the HTTP handler set.
type Handler struct {
	controller SyncController
	store      StatusStore
	breaker    BreakerStatus
	validate   *validator.Validate
}

// NewHandler creates the handler set. breaker may be nil when the upstream
// client is not breaker-wrapped.
func NewHandler(controller SyncController, store StatusStore, breaker BreakerStatus) *Handler {
	return &Handler{
		controller: controller,
		store:      store,
		breaker:    breaker,
		validate:   validator.New(),
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Error().Err(err).Msg("Failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// HealthLive reports process liveness.
func (h *Handler) HealthLive(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// HealthReady reports readiness: the destination store must answer a ping.
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	if err := h.store.Ping(ctx); err != nil {
		writeError(w, http.StatusServiceUnavailable, "database not ready")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// syncStatusResponse is the GET /api/v1/sync/status payload.
type syncStatusResponse struct {
	Running         bool                `json:"running"`
	UpstreamBreaker string              `json:"upstream_breaker,omitempty"`
	LastCycle       *models.CycleResult `json:"last_cycle,omitempty"`
	LastCycleCounts map[string]int      `json:"last_cycle_counts,omitempty"`
	Cursors         []models.SyncCursor `json:"cursors"`
	TableCount      map[string]int64    `json:"table_counts"`
}

// SyncStatus reports the loop state, the last cycle, cursors, and row
// counts.
func (h *Handler) SyncStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	cursors, err := h.store.ListSyncCursors(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to read sync state")
		return
	}
	if cursors == nil {
		cursors = []models.SyncCursor{}
	}

	counts := make(map[string]int64, 3)
	for _, table := range []string{"live_visits", "live_clicks", "conversions"} {
		n, err := h.store.CountRows(ctx, table)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to count rows")
			return
		}
		counts[table] = n
	}

	resp := syncStatusResponse{
		Running:    h.controller.Running(),
		LastCycle:  h.controller.LastResult(),
		Cursors:    cursors,
		TableCount: counts,
	}
	if h.breaker != nil {
		resp.UpstreamBreaker = h.breaker.State()
	}
	if resp.LastCycle != nil {
		resp.LastCycleCounts = resp.LastCycle.Counts()
	}
	writeJSON(w, http.StatusOK, resp)
}

// SyncTrigger starts one out-of-schedule cycle. The cycle runs in the
// background; it shares the cycle lock with the periodic loop, so a trigger
// during a running cycle queues rather than overlaps.
func (h *Handler) SyncTrigger(w http.ResponseWriter, _ *http.Request) {
	go func() {
		if _, err := h.controller.TriggerSync(context.Background()); err != nil {
			logging.Error().Err(err).Msg("Triggered sync cycle failed")
		}
	}()
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

// backfillRequest is the POST /api/v1/backfill body. Dates are whole days.
type backfillRequest struct {
	From      string `json:"from" validate:"required,datetime=2006-01-02"`
	To        string `json:"to" validate:"required,datetime=2006-01-02"`
	ChunkDays int    `json:"chunk_days" validate:"omitempty,min=1,max=90"`
}

// Backfill starts a historical conversion replay in the background.
func (h *Handler) Backfill(w http.ResponseWriter, r *http.Request) {
	var req backfillRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		writeError(w, http.StatusBadRequest, "validation failed: "+err.Error())
		return
	}

	from, _ := time.Parse("2006-01-02", req.From)
	to, _ := time.Parse("2006-01-02", req.To)
	if !from.Before(to) {
		writeError(w, http.StatusBadRequest, "from must be before to")
		return
	}

	go func() {
		if _, err := h.controller.Backfill(context.Background(), from, to, req.ChunkDays); err != nil {
			logging.Error().Err(err).Msg("Backfill failed")
		}
	}()

	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"status":     "accepted",
		"from":       req.From,
		"to":         req.To,
		"chunk_days": req.ChunkDays,
	})
}
