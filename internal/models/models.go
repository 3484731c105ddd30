// Clickmirror - Advertising Tracker Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/clickmirror

// Package models defines the destination-schema record types mirrored from
// the Voluum tracker, plus the sync cursor and cycle bookkeeping types.
//
// Every record of a given kind always carries the full field set; fields the
// upstream did not provide are empty strings or zero floats, never a partial
// shape. The full raw upstream payload is retained under RawData for
// forward-compatible inspection.
package models

import "time"

// Entity kinds tracked by the engine. Each has its own cursor row.
const (
	EntityVisits      = "visits"
	EntityClicks      = "clicks"
	EntityConversions = "conversions"
)

// SyncCursor is the persisted watermark for one entity type.
// LastSyncTimestamp is monotonically non-decreasing: it advances to the
// requested window end after a sync completes, even when no rows were found.
type SyncCursor struct {
	EntityType        string    `json:"entity_type"`
	LastSyncTimestamp time.Time `json:"last_sync_timestamp"`
	RecordsSynced     int       `json:"records_synced"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// Campaign is one tracked upstream campaign discovered from the aggregate
// campaign report.
type Campaign struct {
	ID     string `json:"campaign_id"`
	Name   string `json:"campaign_name"`
	Visits int    `json:"visits"`
}

// Visit is one normalized visit event, keyed by ClickID.
type Visit struct {
	ClickID              string  `json:"click_id"`
	ExternalID           string  `json:"external_id"`
	CampaignID           string  `json:"campaign_id"`
	CampaignName         string  `json:"campaign_name"`
	TrafficSourceID      string  `json:"traffic_source_id"`
	TrafficSourceName    string  `json:"traffic_source_name"`
	OfferID              string  `json:"offer_id"`
	OfferName            string  `json:"offer_name"`
	AffiliateNetworkID   string  `json:"affiliate_network_id"`
	AffiliateNetworkName string  `json:"affiliate_network_name"`
	LanderID             string  `json:"lander_id"`
	LanderName           string  `json:"lander_name"`
	VisitTimestamp       string  `json:"visit_timestamp"`
	CountryCode          string  `json:"country_code"`
	CountryName          string  `json:"country_name"`
	Region               string  `json:"region"`
	City                 string  `json:"city"`
	Device               string  `json:"device"`
	DeviceName           string  `json:"device_name"`
	Brand                string  `json:"brand"`
	Model                string  `json:"model"`
	OS                   string  `json:"os"`
	OSVersion            string  `json:"os_version"`
	Browser              string  `json:"browser"`
	BrowserVersion       string  `json:"browser_version"`
	ConnectionType       string  `json:"connection_type"`
	ISP                  string  `json:"isp"`
	MobileCarrier        string  `json:"mobile_carrier"`
	IP                   string  `json:"ip"`
	Cost                 float64 `json:"cost"`
	Revenue              float64 `json:"revenue"`
	Profit               float64 `json:"profit"`
	CustomVar1           string  `json:"custom_var_1"`
	CustomVar2           string  `json:"custom_var_2"`
	CustomVar3           string  `json:"custom_var_3"`
	CustomVar4           string  `json:"custom_var_4"`
	CustomVar5           string  `json:"custom_var_5"`
	CustomVar6           string  `json:"custom_var_6"`
	CustomVar7           string  `json:"custom_var_7"`
	CustomVar8           string  `json:"custom_var_8"`
	CustomVar9           string  `json:"custom_var_9"`
	CustomVar10          string  `json:"custom_var_10"`
	Referrer             string  `json:"referrer"`
	UserAgent            string  `json:"user_agent"`
	RawData              string  `json:"raw_data"`
}

// Click is one normalized click event, keyed by ClickID.
type Click struct {
	ClickID        string `json:"click_id"`
	ExternalID     string `json:"external_id"`
	CampaignID     string `json:"campaign_id"`
	CampaignName   string `json:"campaign_name"`
	OfferID        string `json:"offer_id"`
	OfferName      string `json:"offer_name"`
	LanderID       string `json:"lander_id"`
	LanderName     string `json:"lander_name"`
	ClickTimestamp string `json:"click_timestamp"`
	CountryCode    string `json:"country_code"`
	CountryName    string `json:"country_name"`
	Device         string `json:"device"`
	OS             string `json:"os"`
	Browser        string `json:"browser"`
	IP             string `json:"ip"`
	RawData        string `json:"raw_data"`
}

// Conversion is one normalized conversion (postback) event. The natural key
// is (ClickID, PostbackTimestamp) by default, or ClickID alone under the
// alternate dedup policy.
type Conversion struct {
	ClickID              string  `json:"click_id"`
	ExternalID           string  `json:"external_id"`
	TransactionID        string  `json:"transaction_id"`
	CampaignID           string  `json:"campaign_id"`
	CampaignName         string  `json:"campaign_name"`
	OfferID              string  `json:"offer_id"`
	OfferName            string  `json:"offer_name"`
	AffiliateNetworkID   string  `json:"affiliate_network_id"`
	AffiliateNetworkName string  `json:"affiliate_network_name"`
	PostbackTimestamp    string  `json:"postback_timestamp"`
	VisitTimestamp       string  `json:"visit_timestamp"`
	CountryCode          string  `json:"country_code"`
	CountryName          string  `json:"country_name"`
	Revenue              float64 `json:"revenue"`
	Payout               float64 `json:"payout"`
	Cost                 float64 `json:"cost"`
	Profit               float64 `json:"profit"`
	Device               string  `json:"device"`
	OS                   string  `json:"os"`
	Browser              string  `json:"browser"`
	ConnectionType       string  `json:"connection_type"`
	ISP                  string  `json:"isp"`
	IP                   string  `json:"ip"`
	CustomVar1           string  `json:"custom_var_1"`
	CustomVar2           string  `json:"custom_var_2"`
	CustomVar3           string  `json:"custom_var_3"`
	CustomVar4           string  `json:"custom_var_4"`
	CustomVar5           string  `json:"custom_var_5"`
	RawData              string  `json:"raw_data"`
}

// CycleResult summarizes one completed (or failed) sync cycle.
type CycleResult struct {
	CycleID     string        `json:"cycle_id"`
	StartedAt   time.Time     `json:"started_at"`
	Duration    time.Duration `json:"duration"`
	Visits      int           `json:"visits"`
	Clicks      int           `json:"clicks"`
	Conversions int           `json:"conversions"`
	Campaigns   int           `json:"campaigns"`
	Err         string        `json:"error,omitempty"`
}

// Counts returns the per-entity record counts as a map, the shape the admin
// status endpoint reports.
func (r CycleResult) Counts() map[string]int {
	return map[string]int{
		EntityVisits:      r.Visits,
		EntityClicks:      r.Clicks,
		EntityConversions: r.Conversions,
	}
}
