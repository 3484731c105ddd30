// Clickmirror - Advertising Tracker Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/clickmirror

// Package voluum defines the wire types of the Voluum reporting API: the
// credential-exchange session payloads, the paginated report envelope, and
// RawRecord, the schemaless row shape every report endpoint returns.
package voluum

import (
	"strconv"

	json "github.com/goccy/go-json"
)

// SessionRequest is the credential-exchange request body for
// POST /auth/access/session.
type SessionRequest struct {
	AccessID  string `json:"accessId"`
	AccessKey string `json:"accessKey"`
}

// SessionResponse carries the short-lived API token returned by the
// credential exchange. The token is sent on subsequent requests in the
// cwauth-token header.
type SessionResponse struct {
	Token     string `json:"token"`
	ExpiresAt string `json:"expirationTimestamp"`
}

// ReportResponse is the paginated envelope returned by the report endpoints.
// Rows is nil for an empty page; TotalRows reflects the full result set, not
// the page.
type ReportResponse struct {
	TotalRows int         `json:"totalRows"`
	Rows      []RawRecord `json:"rows"`
}

// RawRecord is one schemaless report row. Field names vary between report
// endpoints and tracker versions, so values are extracted by trying an
// ordered list of candidate keys rather than by fixed struct tags.
type RawRecord map[string]interface{}

// FirstString returns the first candidate key present with a non-empty
// string value. Numeric values are formatted; absent or empty candidates are
// skipped. Returns "" when no candidate matches.
func (r RawRecord) FirstString(keys ...string) string {
	for _, key := range keys {
		v, ok := r[key]
		if !ok || v == nil {
			continue
		}
		switch s := v.(type) {
		case string:
			if s != "" {
				return s
			}
		case float64:
			return strconv.FormatFloat(s, 'f', -1, 64)
		case bool:
			return strconv.FormatBool(s)
		case json.Number:
			return s.String()
		}
	}
	return ""
}

// FirstFloat returns the first candidate key present with a numeric value.
// String values that parse as numbers count; absent, null, empty, or
// unparsable candidates are skipped. Returns 0 when no candidate matches, so
// monetary fields coerce to zero rather than failing the record.
func (r RawRecord) FirstFloat(keys ...string) float64 {
	for _, key := range keys {
		v, ok := r[key]
		if !ok || v == nil {
			continue
		}
		switch n := v.(type) {
		case float64:
			return n
		case int:
			return float64(n)
		case int64:
			return float64(n)
		case json.Number:
			if f, err := n.Float64(); err == nil {
				return f
			}
		case string:
			if n == "" {
				continue
			}
			if f, err := strconv.ParseFloat(n, 64); err == nil {
				return f
			}
		}
	}
	return 0
}

// Raw serializes the record back to JSON for retention alongside the
// normalized fields. Returns "{}" if the record cannot be marshaled.
func (r RawRecord) Raw() string {
	b, err := json.Marshal(r)
	if err != nil {
		return "{}"
	}
	return string(b)
}
