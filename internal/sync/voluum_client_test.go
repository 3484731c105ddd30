// Clickmirror - Advertising Tracker Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/clickmirror

package sync

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/clickmirror/internal/config"
	"github.com/tomtom215/clickmirror/internal/models/voluum"
)

// newTestServer returns a server that accepts the credential exchange and
// serves report requests via handler. authCalls counts token exchanges.
func newTestServer(t *testing.T, authCalls *atomic.Int64, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/access/session", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		var req voluum.SessionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.AccessID == "" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		authCalls.Add(1)
		_ = json.NewEncoder(w).Encode(voluum.SessionResponse{Token: "test-token"})
	})
	mux.HandleFunc("/", handler)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestClient(baseURL string) *VoluumClient {
	return NewVoluumClient(&config.VoluumConfig{
		AccessID:  "id",
		AccessKey: "key",
		BaseURL:   baseURL,
		Timeout:   5 * time.Second,
		Timezone:  "UTC",
	})
}

func TestClientTokenCachedAcrossRequests(t *testing.T) {
	var authCalls atomic.Int64
	srv := newTestServer(t, &authCalls, func(w http.ResponseWriter, r *http.Request) {
		checkStringEqual(t, "cwauth-token header", r.Header.Get("cwauth-token"), "test-token")
		_ = json.NewEncoder(w).Encode(voluum.ReportResponse{})
	})

	client := newTestClient(srv.URL)
	ctx := context.Background()
	now := time.Now()

	for i := 0; i < 3; i++ {
		if _, err := client.GetLiveVisits(ctx, "camp-1", 100); err != nil {
			t.Fatalf("request %d failed: %v", i, err)
		}
	}
	checkIntEqual(t, "token exchanges", int(authCalls.Load()), 1)

	// After local expiry the next request re-exchanges.
	client.now = func() time.Time { return now.Add(tokenLifetime + time.Minute) }
	if _, err := client.GetLiveVisits(ctx, "camp-1", 100); err != nil {
		t.Fatalf("post-expiry request failed: %v", err)
	}
	checkIntEqual(t, "token exchanges after expiry", int(authCalls.Load()), 2)
}

func TestClientAuthRejection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	t.Cleanup(srv.Close)

	client := newTestClient(srv.URL)
	_, err := client.GetConversions(context.Background(), time.Now().Add(-time.Hour), time.Now(), 1000, 0)

	var authErr *AuthError
	if !errors.As(err, &authErr) {
		t.Fatalf("expected AuthError, got %v", err)
	}
	checkIntEqual(t, "auth status", authErr.Status, http.StatusForbidden)
}

func TestClientTokenRejectionInvalidatesCache(t *testing.T) {
	var authCalls atomic.Int64
	var reportCalls atomic.Int64
	srv := newTestServer(t, &authCalls, func(w http.ResponseWriter, _ *http.Request) {
		if reportCalls.Add(1) == 1 {
			// Provider expired the token server-side.
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(voluum.ReportResponse{})
	})

	client := newTestClient(srv.URL)
	ctx := context.Background()

	_, err := client.GetLiveClicks(ctx, "camp-1", 100)
	var authErr *AuthError
	if !errors.As(err, &authErr) {
		t.Fatalf("expected AuthError on 401, got %v", err)
	}

	// Next call re-exchanges instead of reusing the rejected token.
	if _, err := client.GetLiveClicks(ctx, "camp-1", 100); err != nil {
		t.Fatalf("retry after invalidation failed: %v", err)
	}
	checkIntEqual(t, "token exchanges", int(authCalls.Load()), 2)
}

func TestClientUpstreamError(t *testing.T) {
	var authCalls atomic.Int64
	srv := newTestServer(t, &authCalls, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("upstream exploded"))
	})

	client := newTestClient(srv.URL)
	_, err := client.GetCampaignReport(context.Background(), time.Now().Add(-time.Hour), time.Now(), 1000, 0)

	var upErr *UpstreamError
	if !errors.As(err, &upErr) {
		t.Fatalf("expected UpstreamError, got %v", err)
	}
	checkIntEqual(t, "status", upErr.Status, http.StatusBadGateway)
	checkStringEqual(t, "body", upErr.Body, "upstream exploded")
	checkStringEqual(t, "endpoint", upErr.Endpoint, "/report")
}

func TestClientReportQueryParameters(t *testing.T) {
	var authCalls atomic.Int64
	var gotQuery map[string][]string
	var gotPath string
	srv := newTestServer(t, &authCalls, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.Query()
		_ = json.NewEncoder(w).Encode(voluum.ReportResponse{})
	})

	client := newTestClient(srv.URL)
	from := time.Date(2026, 8, 19, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC)
	_, err := client.GetCampaignReport(context.Background(), from, to, 1000, 2000)
	checkNoError(t, "campaign report", err)

	checkStringEqual(t, "path", gotPath, "/report")
	checkStringEqual(t, "groupBy", gotQuery["groupBy"][0], "campaign")
	checkStringEqual(t, "from", gotQuery["from"][0], "2026-08-19T00:00:00")
	checkStringEqual(t, "to", gotQuery["to"][0], "2026-08-20T00:00:00")
	checkStringEqual(t, "tz", gotQuery["tz"][0], "UTC")
	checkStringEqual(t, "limit", gotQuery["limit"][0], "1000")
	checkStringEqual(t, "offset", gotQuery["offset"][0], "2000")

	// r.URL.Path is the decoded form of the escaped campaign id.
	_, err = client.GetLiveVisits(context.Background(), "camp id", 100)
	checkNoError(t, "live visits", err)
	checkStringEqual(t, "live path", gotPath, "/report/live/visits/camp id")
}
