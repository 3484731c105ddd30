// Clickmirror - Advertising Tracker Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/clickmirror

// Package services adapts the sync loop and the HTTP server to suture's
// Serve pattern.
package services

import "context"

// StartStopWorker matches the sync manager's lifecycle: Start launches the
// periodic loop and returns, Stop blocks until an in-flight cycle finishes.
// Satisfied by *sync.Manager.
type StartStopWorker interface {
	Start()
	Stop()
}

// WorkerService wraps the sync manager as a supervised service: it starts
// the loop, blocks until the context is canceled, then stops the loop. The
// manager owns its goroutines internally, so the wrapper only orchestrates
// the lifecycle transitions.
type WorkerService struct {
	worker StartStopWorker
	name   string
}

// NewWorkerService creates the wrapper.
func NewWorkerService(worker StartStopWorker) *WorkerService {
	return &WorkerService{worker: worker, name: "sync-worker"}
}

// Serve implements suture.Service.
func (s *WorkerService) Serve(ctx context.Context) error {
	s.worker.Start()
	<-ctx.Done()
	s.worker.Stop()
	return ctx.Err()
}

// String implements fmt.Stringer for supervision log messages.
func (s *WorkerService) String() string { return s.name }
