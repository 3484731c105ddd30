// Clickmirror - Advertising Tracker Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/clickmirror

/*
voluum_client.go - Core Voluum API Client

This file provides the VoluumClient struct and HTTP communication layer for
the Voluum reporting API.

Client Features:
  - Credential exchange (access ID + key -> short-lived cwauth token)
  - Token caching with early expiry so one token serves many requests
  - JSON response parsing of the paginated report envelope
  - Context support for cancellation and timeouts

Authentication:
The API does not accept raw credentials on report requests. The client
exchanges them via POST /auth/access/session and caches the returned token.
The provider keeps tokens valid for about four hours; the cache expires the
token after 3h30m so a request never flies with a token about to lapse. An
HTTP 401 on any request drops the cached token so the next call re-exchanges.

Related Files:
  - transform.go: raw row normalization
  - engine.go: pagination and per-campaign fetch loops
  - circuit_breaker.go: resilience wrapper
*/

//nolint:staticcheck // File documentation, not package doc
package sync

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/clickmirror/internal/config"
	"github.com/tomtom215/clickmirror/internal/logging"
	"github.com/tomtom215/clickmirror/internal/metrics"
	"github.com/tomtom215/clickmirror/internal/models/voluum"
)

// tokenLifetime is how long an exchanged token is trusted locally. The
// provider keeps tokens valid for roughly four hours; expiring half an hour
// early avoids racing the provider-side expiry mid-request.
const tokenLifetime = 3*time.Hour + 30*time.Minute

// apiTimeLayout is the timestamp format the report endpoints expect for the
// from/to window parameters.
const apiTimeLayout = "2006-01-02T15:04:05"

// maxErrorBodySize limits the maximum amount of response body read for error reporting
// This prevents unbounded memory allocation when reading large error responses
const maxErrorBodySize = 64 * 1024 // 64KB

// readBodyForError reads the response body for error reporting (max 64KB)
// Returns the body content or a placeholder message if reading fails
func readBodyForError(r io.Reader) []byte {
	limitedReader := io.LimitReader(r, maxErrorBodySize)
	body, err := io.ReadAll(limitedReader)
	if err != nil {
		return []byte("(failed to read response body)")
	}
	if len(body) == maxErrorBodySize {
		return append(body, []byte("\n... (truncated)")...)
	}
	return body
}

// VoluumAPI defines the upstream operations the sync engine needs.
//
// Implemented by VoluumClient for production use, by CircuitBreakerClient as
// a resilience wrapper, and by mock implementations for testing. All methods
// are safe for concurrent use.
type VoluumAPI interface {
	// GetCampaignReport fetches one page of the campaign-grouped aggregate
	// report for the given time window.
	GetCampaignReport(ctx context.Context, from, to time.Time, limit, offset int) (*voluum.ReportResponse, error)

	// GetConversions fetches one page of the conversions report for the
	// given time window.
	GetConversions(ctx context.Context, from, to time.Time, limit, offset int) (*voluum.ReportResponse, error)

	// GetLiveVisits fetches the most recent visit events for one campaign.
	GetLiveVisits(ctx context.Context, campaignID string, limit int) (*voluum.ReportResponse, error)

	// GetLiveClicks fetches the most recent click events for one campaign.
	GetLiveClicks(ctx context.Context, campaignID string, limit int) (*voluum.ReportResponse, error)
}

// VoluumClient talks to the Voluum reporting API with token-cached
// credential-exchange authentication.
type VoluumClient struct {
	cfg        *config.VoluumConfig
	httpClient *http.Client

	tokenMu     sync.Mutex
	token       string
	tokenExpiry time.Time

	// now is swappable for token-expiry tests.
	now func() time.Time
}

// NewVoluumClient creates a client from configuration. No network calls are
// made until the first request needs a token.
func NewVoluumClient(cfg *config.VoluumConfig) *VoluumClient {
	return &VoluumClient{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		now:        time.Now,
	}
}

// ensureToken returns a valid token, exchanging credentials only when the
// cached token is absent or expired.
func (c *VoluumClient) ensureToken(ctx context.Context) (string, error) {
	c.tokenMu.Lock()
	defer c.tokenMu.Unlock()

	if c.token != "" && c.now().Before(c.tokenExpiry) {
		return c.token, nil
	}

	body, err := json.Marshal(voluum.SessionRequest{
		AccessID:  c.cfg.AccessID,
		AccessKey: c.cfg.AccessKey,
	})
	if err != nil {
		return "", &AuthError{Reason: fmt.Sprintf("marshal session request: %v", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.cfg.BaseURL+"/auth/access/session", bytes.NewReader(body))
	if err != nil {
		return "", &AuthError{Reason: fmt.Sprintf("build session request: %v", err)}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", &AuthError{Reason: fmt.Sprintf("session request failed: %v", err)}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", &AuthError{
			Status: resp.StatusCode,
			Reason: string(readBodyForError(resp.Body)),
		}
	}

	var session voluum.SessionResponse
	if err := json.NewDecoder(resp.Body).Decode(&session); err != nil {
		return "", &AuthError{Reason: fmt.Sprintf("decode session response: %v", err)}
	}
	if session.Token == "" {
		return "", &AuthError{Reason: "session response contained no token"}
	}

	c.token = session.Token
	c.tokenExpiry = c.now().Add(tokenLifetime)
	metrics.AuthTokenRefreshes.Inc()
	logging.Debug().Time("expires", c.tokenExpiry).Msg("Exchanged Voluum credentials for session token")

	return c.token, nil
}

// invalidateToken drops the cached token so the next request re-exchanges.
func (c *VoluumClient) invalidateToken() {
	c.tokenMu.Lock()
	c.token = ""
	c.tokenExpiry = time.Time{}
	c.tokenMu.Unlock()
}

// getReport performs an authenticated GET against a report endpoint and
// decodes the paginated envelope. endpoint is the path below BaseURL.
func (c *VoluumClient) getReport(ctx context.Context, endpoint string, query url.Values) (*voluum.ReportResponse, error) {
	token, err := c.ensureToken(ctx)
	if err != nil {
		metrics.SyncErrors.WithLabelValues("auth").Inc()
		return nil, err
	}

	reqURL := c.cfg.BaseURL + endpoint
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request for %s: %w", endpoint, err)
	}
	req.Header.Set("cwauth-token", token)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	metrics.UpstreamRequestDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.UpstreamRequestsTotal.WithLabelValues(endpoint, "error").Inc()
		return nil, fmt.Errorf("request %s: %w", endpoint, err)
	}
	defer func() { _ = resp.Body.Close() }()

	metrics.UpstreamRequestsTotal.WithLabelValues(endpoint, strconv.Itoa(resp.StatusCode)).Inc()

	if resp.StatusCode == http.StatusUnauthorized {
		c.invalidateToken()
		metrics.SyncErrors.WithLabelValues("auth").Inc()
		return nil, &AuthError{Status: resp.StatusCode, Reason: "token rejected"}
	}
	if resp.StatusCode != http.StatusOK {
		metrics.SyncErrors.WithLabelValues("upstream").Inc()
		return nil, &UpstreamError{
			Endpoint: endpoint,
			Status:   resp.StatusCode,
			Body:     string(readBodyForError(resp.Body)),
		}
	}

	var report voluum.ReportResponse
	if err := json.NewDecoder(resp.Body).Decode(&report); err != nil {
		return nil, fmt.Errorf("decode %s response: %w", endpoint, err)
	}

	metrics.SyncPageSize.Observe(float64(len(report.Rows)))
	return &report, nil
}

// GetCampaignReport implements VoluumAPI.
func (c *VoluumClient) GetCampaignReport(ctx context.Context, from, to time.Time, limit, offset int) (*voluum.ReportResponse, error) {
	q := url.Values{}
	q.Set("groupBy", "campaign")
	q.Set("from", from.Format(apiTimeLayout))
	q.Set("to", to.Format(apiTimeLayout))
	q.Set("tz", c.cfg.Timezone)
	q.Set("limit", strconv.Itoa(limit))
	q.Set("offset", strconv.Itoa(offset))
	return c.getReport(ctx, "/report", q)
}

// GetConversions implements VoluumAPI.
func (c *VoluumClient) GetConversions(ctx context.Context, from, to time.Time, limit, offset int) (*voluum.ReportResponse, error) {
	q := url.Values{}
	q.Set("from", from.Format(apiTimeLayout))
	q.Set("to", to.Format(apiTimeLayout))
	q.Set("tz", c.cfg.Timezone)
	q.Set("limit", strconv.Itoa(limit))
	q.Set("offset", strconv.Itoa(offset))
	return c.getReport(ctx, "/report/conversions", q)
}

// GetLiveVisits implements VoluumAPI.
func (c *VoluumClient) GetLiveVisits(ctx context.Context, campaignID string, limit int) (*voluum.ReportResponse, error) {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	return c.getReport(ctx, "/report/live/visits/"+url.PathEscape(campaignID), q)
}

// GetLiveClicks implements VoluumAPI.
func (c *VoluumClient) GetLiveClicks(ctx context.Context, campaignID string, limit int) (*voluum.ReportResponse, error) {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	return c.getReport(ctx, "/report/live/clicks/"+url.PathEscape(campaignID), q)
}
