// Clickmirror - Advertising Tracker Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/clickmirror

package voluum

import (
	"testing"

	json "github.com/goccy/go-json"
)

func TestFirstStringOrderedCandidates(t *testing.T) {
	rec := RawRecord{
		"clickId":      "abc123",
		"campaignName": "",
		"visits":       float64(42),
		"nullField":    nil,
	}

	tests := []struct {
		name     string
		keys     []string
		expected string
	}{
		{"direct hit", []string{"clickId"}, "abc123"},
		{"first candidate wins", []string{"clickId", "visits"}, "abc123"},
		{"empty string skipped", []string{"campaignName", "clickId"}, "abc123"},
		{"null skipped", []string{"nullField", "clickId"}, "abc123"},
		{"numeric formatted", []string{"visits"}, "42"},
		{"no match", []string{"missing", "alsoMissing"}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := rec.FirstString(tt.keys...); got != tt.expected {
				t.Errorf("FirstString(%v) = %q, want %q", tt.keys, got, tt.expected)
			}
		})
	}
}

func TestFirstFloatCoercion(t *testing.T) {
	rec := RawRecord{
		"revenue":  float64(1.25),
		"payout":   "2.50",
		"cost":     "",
		"profit":   nil,
		"garbage":  "not-a-number",
		"conv":     float64(3),
		"fallback": float64(9.9),
	}

	tests := []struct {
		name     string
		keys     []string
		expected float64
	}{
		{"numeric value", []string{"revenue"}, 1.25},
		{"numeric string parsed", []string{"payout"}, 2.50},
		{"empty string falls through", []string{"cost", "fallback"}, 9.9},
		{"null falls through", []string{"profit", "fallback"}, 9.9},
		{"unparsable falls through", []string{"garbage", "fallback"}, 9.9},
		{"integer-valued", []string{"conv"}, 3},
		{"absent coerces to zero", []string{"missing"}, 0},
		{"all bad coerce to zero", []string{"cost", "profit", "garbage"}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := rec.FirstFloat(tt.keys...); got != tt.expected {
				t.Errorf("FirstFloat(%v) = %v, want %v", tt.keys, got, tt.expected)
			}
		})
	}
}

func TestReportResponseDecode(t *testing.T) {
	body := `{"totalRows": 2, "rows": [{"clickId": "a"}, {"clickId": "b"}]}`
	var resp ReportResponse
	if err := json.Unmarshal([]byte(body), &resp); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if resp.TotalRows != 2 {
		t.Errorf("TotalRows = %d, want 2", resp.TotalRows)
	}
	if len(resp.Rows) != 2 {
		t.Fatalf("len(Rows) = %d, want 2", len(resp.Rows))
	}
	if resp.Rows[1].FirstString("clickId") != "b" {
		t.Errorf("second row clickId = %q, want b", resp.Rows[1].FirstString("clickId"))
	}
}

func TestReportResponseEmptyPage(t *testing.T) {
	var resp ReportResponse
	if err := json.Unmarshal([]byte(`{"totalRows": 0, "rows": []}`), &resp); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if len(resp.Rows) != 0 {
		t.Errorf("expected empty page, got %d rows", len(resp.Rows))
	}
}

func TestRawRoundTrip(t *testing.T) {
	rec := RawRecord{"clickId": "x", "visits": float64(1)}
	raw := rec.Raw()
	var back RawRecord
	if err := json.Unmarshal([]byte(raw), &back); err != nil {
		t.Fatalf("Raw() produced invalid JSON: %v", err)
	}
	if back.FirstString("clickId") != "x" {
		t.Errorf("round-tripped clickId = %q, want x", back.FirstString("clickId"))
	}
}
