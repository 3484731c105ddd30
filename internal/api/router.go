// Clickmirror - Advertising Tracker Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/clickmirror

// Package api provides the admin HTTP surface using the Chi router: health
// and readiness probes, Prometheus metrics, sync status, and the manual
// trigger and backfill operations.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/clickmirror/internal/config"
)

// Router wires handlers and middleware into the HTTP mux.
type Router struct {
	cfg     *config.ServerConfig
	handler *Handler
}

// NewRouter creates a router around the given handler set.
func NewRouter(cfg *config.ServerConfig, handler *Handler) *Router {
	return &Router{cfg: cfg, handler: handler}
}

// Setup configures all HTTP routes.
func (router *Router) Setup() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)

	// Probes and metrics stay unthrottled for scrapers and orchestrators.
	r.Get("/healthz", router.handler.HealthLive)
	r.Get("/readyz", router.handler.HealthReady)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(httprate.LimitByIP(router.cfg.RateLimitReqs, router.cfg.RateLimitWindow))

		r.Get("/sync/status", router.handler.SyncStatus)
		r.Post("/sync/trigger", router.handler.SyncTrigger)
		r.Post("/backfill", router.handler.Backfill)
	})

	return r
}
