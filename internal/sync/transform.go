// Clickmirror - Advertising Tracker Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/clickmirror

package sync

import (
	"strings"
	"time"

	"github.com/tomtom215/clickmirror/internal/config"
	"github.com/tomtom215/clickmirror/internal/models"
	"github.com/tomtom215/clickmirror/internal/models/voluum"
)

// Timestamp layouts seen in Voluum report rows. The live endpoints emit
// 12-hour clock strings, the windowed reports emit ISO with or without a
// zone suffix.
const (
	layoutTwelveHour     = "2006-01-02 03:04:05 PM"
	layoutTwelveHourTime = "03:04:05 PM"
	layoutISO            = "2006-01-02T15:04:05"
	layoutISOOffset      = "2006-01-02T15:04:05-07:00"
)

// NormalizeTimestamp converts an upstream timestamp string to ISO form.
// 12-hour clock values become 24-hour ISO; values already ISO pass through
// with their offset preserved. An unrecognized value is returned unchanged
// rather than dropped, so an upstream format change degrades to raw strings
// instead of losing records.
func NormalizeTimestamp(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ""
	}
	if t, err := time.Parse(layoutTwelveHour, s); err == nil {
		return t.Format(layoutISO)
	}
	if t, err := time.Parse(layoutTwelveHourTime, s); err == nil {
		return t.Format("15:04:05")
	}
	// "Z" suffix parses under the offset layout via RFC 3339.
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.Format(layoutISOOffset)
	}
	if _, err := time.Parse(layoutISO, s); err == nil {
		return s
	}
	return raw
}

// TransformVisit normalizes one raw visit row. Field names differ between
// tracker versions, so each field is resolved from an ordered candidate
// list. Missing fields become empty strings, monetary fields coerce to zero.
func TransformVisit(rec voluum.RawRecord) models.Visit {
	return models.Visit{
		ClickID:              rec.FirstString("clickId", "click_id", "visitId"),
		ExternalID:           rec.FirstString("externalId", "external_id"),
		CampaignID:           rec.FirstString("campaignId", "campaign_id"),
		CampaignName:         rec.FirstString("campaignName", "campaign_name", "campaign"),
		TrafficSourceID:      rec.FirstString("trafficSourceId", "traffic_source_id"),
		TrafficSourceName:    rec.FirstString("trafficSourceName", "traffic_source_name", "trafficSource"),
		OfferID:              rec.FirstString("offerId", "offer_id"),
		OfferName:            rec.FirstString("offerName", "offer_name", "offer"),
		AffiliateNetworkID:   rec.FirstString("affiliateNetworkId", "affiliate_network_id"),
		AffiliateNetworkName: rec.FirstString("affiliateNetworkName", "affiliate_network_name", "affiliateNetwork"),
		LanderID:             rec.FirstString("landerId", "lander_id"),
		LanderName:           rec.FirstString("landerName", "lander_name", "lander"),
		VisitTimestamp:       NormalizeTimestamp(rec.FirstString("visitTimestamp", "visit_timestamp", "timestamp")),
		CountryCode:          rec.FirstString("countryCode", "country_code"),
		CountryName:          rec.FirstString("countryName", "country_name", "country"),
		Region:               rec.FirstString("region", "regionName"),
		City:                 rec.FirstString("city", "cityName"),
		Device:               rec.FirstString("device", "deviceType"),
		DeviceName:           rec.FirstString("deviceName", "device_name"),
		Brand:                rec.FirstString("brand"),
		Model:                rec.FirstString("model"),
		OS:                   rec.FirstString("os", "operatingSystem"),
		OSVersion:            rec.FirstString("osVersion", "os_version"),
		Browser:              rec.FirstString("browser"),
		BrowserVersion:       rec.FirstString("browserVersion", "browser_version"),
		ConnectionType:       rec.FirstString("connectionType", "connection_type"),
		ISP:                  rec.FirstString("isp", "ispName"),
		MobileCarrier:        rec.FirstString("mobileCarrier", "mobile_carrier"),
		IP:                   rec.FirstString("ip", "ipAddress", "visitorIp"),
		Cost:                 rec.FirstFloat("cost"),
		Revenue:              rec.FirstFloat("revenue"),
		Profit:               rec.FirstFloat("profit"),
		CustomVar1:           rec.FirstString("customVariable1", "custom_variable_1", "cv1"),
		CustomVar2:           rec.FirstString("customVariable2", "custom_variable_2", "cv2"),
		CustomVar3:           rec.FirstString("customVariable3", "custom_variable_3", "cv3"),
		CustomVar4:           rec.FirstString("customVariable4", "custom_variable_4", "cv4"),
		CustomVar5:           rec.FirstString("customVariable5", "custom_variable_5", "cv5"),
		CustomVar6:           rec.FirstString("customVariable6", "custom_variable_6", "cv6"),
		CustomVar7:           rec.FirstString("customVariable7", "custom_variable_7", "cv7"),
		CustomVar8:           rec.FirstString("customVariable8", "custom_variable_8", "cv8"),
		CustomVar9:           rec.FirstString("customVariable9", "custom_variable_9", "cv9"),
		CustomVar10:          rec.FirstString("customVariable10", "custom_variable_10", "cv10"),
		Referrer:             rec.FirstString("referrer", "referrerDomain"),
		UserAgent:            rec.FirstString("userAgent", "user_agent", "ua"),
		RawData:              rec.Raw(),
	}
}

// TransformClick normalizes one raw click row.
func TransformClick(rec voluum.RawRecord) models.Click {
	return models.Click{
		ClickID:        rec.FirstString("clickId", "click_id"),
		ExternalID:     rec.FirstString("externalId", "external_id"),
		CampaignID:     rec.FirstString("campaignId", "campaign_id"),
		CampaignName:   rec.FirstString("campaignName", "campaign_name", "campaign"),
		OfferID:        rec.FirstString("offerId", "offer_id"),
		OfferName:      rec.FirstString("offerName", "offer_name", "offer"),
		LanderID:       rec.FirstString("landerId", "lander_id"),
		LanderName:     rec.FirstString("landerName", "lander_name", "lander"),
		ClickTimestamp: NormalizeTimestamp(rec.FirstString("clickTimestamp", "click_timestamp", "timestamp")),
		CountryCode:    rec.FirstString("countryCode", "country_code"),
		CountryName:    rec.FirstString("countryName", "country_name", "country"),
		Device:         rec.FirstString("device", "deviceType"),
		OS:             rec.FirstString("os", "operatingSystem"),
		Browser:        rec.FirstString("browser"),
		IP:             rec.FirstString("ip", "ipAddress"),
		RawData:        rec.Raw(),
	}
}

// TransformConversion normalizes one raw conversion row.
func TransformConversion(rec voluum.RawRecord) models.Conversion {
	return models.Conversion{
		ClickID:              rec.FirstString("clickId", "click_id", "conversionId"),
		ExternalID:           rec.FirstString("externalId", "external_id"),
		TransactionID:        rec.FirstString("transactionId", "transaction_id", "txid"),
		CampaignID:           rec.FirstString("campaignId", "campaign_id"),
		CampaignName:         rec.FirstString("campaignName", "campaign_name", "campaign"),
		OfferID:              rec.FirstString("offerId", "offer_id"),
		OfferName:            rec.FirstString("offerName", "offer_name", "offer"),
		AffiliateNetworkID:   rec.FirstString("affiliateNetworkId", "affiliate_network_id"),
		AffiliateNetworkName: rec.FirstString("affiliateNetworkName", "affiliate_network_name", "affiliateNetwork"),
		PostbackTimestamp:    NormalizeTimestamp(rec.FirstString("postbackTimestamp", "postback_timestamp", "conversionTimestamp", "timestamp")),
		VisitTimestamp:       NormalizeTimestamp(rec.FirstString("visitTimestamp", "visit_timestamp")),
		CountryCode:          rec.FirstString("countryCode", "country_code"),
		CountryName:          rec.FirstString("countryName", "country_name", "country"),
		Revenue:              rec.FirstFloat("revenue", "conversionRevenue"),
		Payout:               rec.FirstFloat("payout", "conversionPayout"),
		Cost:                 rec.FirstFloat("cost"),
		Profit:               rec.FirstFloat("profit"),
		Device:               rec.FirstString("device", "deviceType"),
		OS:                   rec.FirstString("os", "operatingSystem"),
		Browser:              rec.FirstString("browser"),
		ConnectionType:       rec.FirstString("connectionType", "connection_type"),
		ISP:                  rec.FirstString("isp", "ispName"),
		IP:                   rec.FirstString("ip", "ipAddress"),
		CustomVar1:           rec.FirstString("customVariable1", "custom_variable_1", "cv1"),
		CustomVar2:           rec.FirstString("customVariable2", "custom_variable_2", "cv2"),
		CustomVar3:           rec.FirstString("customVariable3", "custom_variable_3", "cv3"),
		CustomVar4:           rec.FirstString("customVariable4", "custom_variable_4", "cv4"),
		CustomVar5:           rec.FirstString("customVariable5", "custom_variable_5", "cv5"),
		RawData:              rec.Raw(),
	}
}

// TransformCampaigns extracts tracked campaigns from the aggregate campaign
// report. A campaign is tracked when its name contains the filter substring
// (empty filter matches all) and it recorded at least one visit.
func TransformCampaigns(rows []voluum.RawRecord, nameFilter string) []models.Campaign {
	var campaigns []models.Campaign
	for _, rec := range rows {
		name := rec.FirstString("campaignName", "campaign_name", "campaign")
		if nameFilter != "" && !strings.Contains(name, nameFilter) {
			continue
		}
		visits := int(rec.FirstFloat("visits"))
		if visits <= 0 {
			continue
		}
		id := rec.FirstString("campaignId", "campaign_id")
		if id == "" {
			continue
		}
		campaigns = append(campaigns, models.Campaign{ID: id, Name: name, Visits: visits})
	}
	return campaigns
}

// ConversionKey returns the dedup identity of a conversion under the
// configured policy.
func ConversionKey(c models.Conversion, policy string) string {
	if policy == config.DedupKeyClickID {
		return c.ClickID
	}
	return c.ClickID + "_" + c.PostbackTimestamp
}
