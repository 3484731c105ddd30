// Clickmirror - Advertising Tracker Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/clickmirror

package sync

import (
	"context"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/clickmirror/internal/config"
	"github.com/tomtom215/clickmirror/internal/logging"
	"github.com/tomtom215/clickmirror/internal/metrics"
	"github.com/tomtom215/clickmirror/internal/models/voluum"
)

// CircuitBreakerClient wraps a VoluumAPI with the circuit breaker pattern,
// preventing cascading failures when the upstream API is unavailable or slow.
//
// DETERMINISM NOTE: The circuit breaker uses real time (via sony/gobreaker)
// for its interval and timeout calculations. The timing determines when to
// recover from failures, not data integrity. For unit tests, test the
// wrapped client directly or mock VoluumAPI.
type CircuitBreakerClient struct {
	inner VoluumAPI
	cb    *gobreaker.CircuitBreaker[*voluum.ReportResponse]
	name  string
}

// NewCircuitBreakerClient creates a Voluum client with circuit breaker.
// Circuit breaker configuration:
// - Max 3 concurrent requests in half-open state
// - 1 minute measurement window
// - 2 minute timeout before attempting recovery
// - Opens after 60% failure rate with minimum 10 requests
func NewCircuitBreakerClient(cfg *config.VoluumConfig) *CircuitBreakerClient {
	return WrapWithCircuitBreaker(NewVoluumClient(cfg))
}

// WrapWithCircuitBreaker wraps an existing VoluumAPI with the breaker.
func WrapWithCircuitBreaker(inner VoluumAPI) *CircuitBreakerClient {
	cbName := "voluum-api"

	metrics.CircuitBreakerState.WithLabelValues(cbName).Set(0) // 0 = closed

	cb := gobreaker.NewCircuitBreaker[*voluum.ReportResponse](gobreaker.Settings{
		Name:        cbName,
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     2 * time.Minute,

		// Opens when failure rate >= 60% with minimum 10 requests
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 10 {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			shouldTrip := failureRatio >= 0.6
			if shouldTrip {
				logging.Warn().
					Uint32("failures", counts.TotalFailures).
					Float64("failure_rate", failureRatio*100).
					Msg("[CIRCUIT BREAKER] Opening circuit")
			}
			return shouldTrip
		},

		OnStateChange: func(name string, from, to gobreaker.State) {
			fromStr := stateToString(from)
			toStr := stateToString(to)
			logging.Info().Str("from", fromStr).Str("to", toStr).Msg("[CIRCUIT BREAKER] State transition")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, fromStr, toStr).Inc()
		},
	})

	return &CircuitBreakerClient{inner: inner, cb: cb, name: cbName}
}

// GetCampaignReport implements VoluumAPI.
func (c *CircuitBreakerClient) GetCampaignReport(ctx context.Context, from, to time.Time, limit, offset int) (*voluum.ReportResponse, error) {
	return c.cb.Execute(func() (*voluum.ReportResponse, error) {
		return c.inner.GetCampaignReport(ctx, from, to, limit, offset)
	})
}

// GetConversions implements VoluumAPI.
func (c *CircuitBreakerClient) GetConversions(ctx context.Context, from, to time.Time, limit, offset int) (*voluum.ReportResponse, error) {
	return c.cb.Execute(func() (*voluum.ReportResponse, error) {
		return c.inner.GetConversions(ctx, from, to, limit, offset)
	})
}

// GetLiveVisits implements VoluumAPI.
func (c *CircuitBreakerClient) GetLiveVisits(ctx context.Context, campaignID string, limit int) (*voluum.ReportResponse, error) {
	return c.cb.Execute(func() (*voluum.ReportResponse, error) {
		return c.inner.GetLiveVisits(ctx, campaignID, limit)
	})
}

// GetLiveClicks implements VoluumAPI.
func (c *CircuitBreakerClient) GetLiveClicks(ctx context.Context, campaignID string, limit int) (*voluum.ReportResponse, error) {
	return c.cb.Execute(func() (*voluum.ReportResponse, error) {
		return c.inner.GetLiveClicks(ctx, campaignID, limit)
	})
}

// State returns the current breaker state name, for the status endpoint.
func (c *CircuitBreakerClient) State() string {
	return stateToString(c.cb.State())
}

func stateToString(s gobreaker.State) string {
	switch s {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateHalfOpen:
		return "half-open"
	case gobreaker.StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

func stateToFloat(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}
