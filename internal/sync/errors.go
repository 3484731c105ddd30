// Clickmirror - Advertising Tracker Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/clickmirror

package sync

import "fmt"

// AuthError indicates the credential exchange was rejected or a token was
// refused. Auth failures abort the whole cycle: nothing downstream can
// proceed without a token.
type AuthError struct {
	Status int
	Reason string
}

func (e *AuthError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("voluum auth failed (status %d): %s", e.Status, e.Reason)
	}
	return fmt.Sprintf("voluum auth failed: %s", e.Reason)
}

// UpstreamError is a non-success response from a Voluum report endpoint.
// Body is truncated to maxErrorBodySize.
type UpstreamError struct {
	Endpoint string
	Status   int
	Body     string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("voluum %s returned status %d: %s", e.Endpoint, e.Status, e.Body)
}

// PersistenceError wraps a destination-store write failure so the
// orchestrator can classify it separately from upstream failures.
type PersistenceError struct {
	Table string
	Err   error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persist to %s: %v", e.Table, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
