// Clickmirror - Advertising Tracker Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/clickmirror

package database

import (
	"context"
	"fmt"
	"time"

	"github.com/tomtom215/clickmirror/internal/logging"
	"github.com/tomtom215/clickmirror/internal/metrics"
	"github.com/tomtom215/clickmirror/internal/models"
)

// UpsertVisits writes a batch of visit records, replacing existing rows with
// the same click_id. Each row is written independently, so a failing row does
// not roll back rows already written. Returns the number of rows written and
// the first error encountered.
func (db *DB) UpsertVisits(ctx context.Context, visits []models.Visit) (int, error) {
	if len(visits) == 0 {
		return 0, nil
	}
	start := time.Now()
	defer func() {
		metrics.DBUpsertDuration.WithLabelValues("live_visits").Observe(time.Since(start).Seconds())
	}()

	written := 0
	for i := range visits {
		v := &visits[i]
		qctx, cancel := context.WithTimeout(ctx, queryTimeout)
		_, err := db.conn.ExecContext(qctx, upsertVisitSQL,
			v.ClickID, v.ExternalID, v.CampaignID, v.CampaignName,
			v.TrafficSourceID, v.TrafficSourceName, v.OfferID, v.OfferName,
			v.AffiliateNetworkID, v.AffiliateNetworkName, v.LanderID, v.LanderName,
			v.VisitTimestamp, v.CountryCode, v.CountryName, v.Region, v.City,
			v.Device, v.DeviceName, v.Brand, v.Model, v.OS, v.OSVersion,
			v.Browser, v.BrowserVersion, v.ConnectionType, v.ISP, v.MobileCarrier,
			v.IP, v.Cost, v.Revenue, v.Profit,
			v.CustomVar1, v.CustomVar2, v.CustomVar3, v.CustomVar4, v.CustomVar5,
			v.CustomVar6, v.CustomVar7, v.CustomVar8, v.CustomVar9, v.CustomVar10,
			v.Referrer, v.UserAgent, v.RawData,
		)
		cancel()
		if err != nil {
			return written, fmt.Errorf("upsert visit %s: %w", v.ClickID, err)
		}
		written++
	}

	metrics.SyncRecordsTotal.WithLabelValues(models.EntityVisits).Add(float64(written))
	logging.Debug().Int("rows", written).Msg("Upserted visits")
	return written, nil
}

// UpsertClicks writes a batch of click records keyed by click_id.
func (db *DB) UpsertClicks(ctx context.Context, clicks []models.Click) (int, error) {
	if len(clicks) == 0 {
		return 0, nil
	}
	start := time.Now()
	defer func() {
		metrics.DBUpsertDuration.WithLabelValues("live_clicks").Observe(time.Since(start).Seconds())
	}()

	written := 0
	for i := range clicks {
		c := &clicks[i]
		qctx, cancel := context.WithTimeout(ctx, queryTimeout)
		_, err := db.conn.ExecContext(qctx, upsertClickSQL,
			c.ClickID, c.ExternalID, c.CampaignID, c.CampaignName,
			c.OfferID, c.OfferName, c.LanderID, c.LanderName,
			c.ClickTimestamp, c.CountryCode, c.CountryName,
			c.Device, c.OS, c.Browser, c.IP, c.RawData,
		)
		cancel()
		if err != nil {
			return written, fmt.Errorf("upsert click %s: %w", c.ClickID, err)
		}
		written++
	}

	metrics.SyncRecordsTotal.WithLabelValues(models.EntityClicks).Add(float64(written))
	logging.Debug().Int("rows", written).Msg("Upserted clicks")
	return written, nil
}

// UpsertConversions writes a batch of conversion records keyed by
// (click_id, postback_timestamp).
func (db *DB) UpsertConversions(ctx context.Context, conversions []models.Conversion) (int, error) {
	if len(conversions) == 0 {
		return 0, nil
	}
	start := time.Now()
	defer func() {
		metrics.DBUpsertDuration.WithLabelValues("conversions").Observe(time.Since(start).Seconds())
	}()

	written := 0
	for i := range conversions {
		c := &conversions[i]
		qctx, cancel := context.WithTimeout(ctx, queryTimeout)
		_, err := db.conn.ExecContext(qctx, upsertConversionSQL,
			c.ClickID, c.ExternalID, c.TransactionID, c.CampaignID, c.CampaignName,
			c.OfferID, c.OfferName, c.AffiliateNetworkID, c.AffiliateNetworkName,
			c.PostbackTimestamp, c.VisitTimestamp, c.CountryCode, c.CountryName,
			c.Revenue, c.Payout, c.Cost, c.Profit,
			c.Device, c.OS, c.Browser, c.ConnectionType, c.ISP, c.IP,
			c.CustomVar1, c.CustomVar2, c.CustomVar3, c.CustomVar4, c.CustomVar5,
			c.RawData,
		)
		cancel()
		if err != nil {
			return written, fmt.Errorf("upsert conversion %s/%s: %w", c.ClickID, c.PostbackTimestamp, err)
		}
		written++
	}

	metrics.SyncRecordsTotal.WithLabelValues(models.EntityConversions).Add(float64(written))
	logging.Debug().Int("rows", written).Msg("Upserted conversions")
	return written, nil
}

// CountRows returns the row count of a known event table, for status
// reporting. Table names are restricted to the fixed schema set.
func (db *DB) CountRows(ctx context.Context, table string) (int64, error) {
	switch table {
	case "live_visits", "live_clicks", "conversions", "hourly_stats":
	default:
		return 0, fmt.Errorf("unknown table %q", table)
	}
	qctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	var n int64
	if err := db.conn.QueryRowContext(qctx, "SELECT COUNT(*) FROM "+table).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", table, err)
	}
	return n, nil
}

const upsertVisitSQL = `
INSERT INTO live_visits (
	click_id, external_id, campaign_id, campaign_name,
	traffic_source_id, traffic_source_name, offer_id, offer_name,
	affiliate_network_id, affiliate_network_name, lander_id, lander_name,
	visit_timestamp, country_code, country_name, region, city,
	device, device_name, brand, model, os, os_version,
	browser, browser_version, connection_type, isp, mobile_carrier,
	ip, cost, revenue, profit,
	custom_var_1, custom_var_2, custom_var_3, custom_var_4, custom_var_5,
	custom_var_6, custom_var_7, custom_var_8, custom_var_9, custom_var_10,
	referrer, user_agent, raw_data, synced_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?,
	?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
ON CONFLICT (click_id) DO UPDATE SET
	external_id = EXCLUDED.external_id,
	campaign_id = EXCLUDED.campaign_id,
	campaign_name = EXCLUDED.campaign_name,
	traffic_source_id = EXCLUDED.traffic_source_id,
	traffic_source_name = EXCLUDED.traffic_source_name,
	offer_id = EXCLUDED.offer_id,
	offer_name = EXCLUDED.offer_name,
	affiliate_network_id = EXCLUDED.affiliate_network_id,
	affiliate_network_name = EXCLUDED.affiliate_network_name,
	lander_id = EXCLUDED.lander_id,
	lander_name = EXCLUDED.lander_name,
	visit_timestamp = EXCLUDED.visit_timestamp,
	country_code = EXCLUDED.country_code,
	country_name = EXCLUDED.country_name,
	region = EXCLUDED.region,
	city = EXCLUDED.city,
	device = EXCLUDED.device,
	device_name = EXCLUDED.device_name,
	brand = EXCLUDED.brand,
	model = EXCLUDED.model,
	os = EXCLUDED.os,
	os_version = EXCLUDED.os_version,
	browser = EXCLUDED.browser,
	browser_version = EXCLUDED.browser_version,
	connection_type = EXCLUDED.connection_type,
	isp = EXCLUDED.isp,
	mobile_carrier = EXCLUDED.mobile_carrier,
	ip = EXCLUDED.ip,
	cost = EXCLUDED.cost,
	revenue = EXCLUDED.revenue,
	profit = EXCLUDED.profit,
	custom_var_1 = EXCLUDED.custom_var_1,
	custom_var_2 = EXCLUDED.custom_var_2,
	custom_var_3 = EXCLUDED.custom_var_3,
	custom_var_4 = EXCLUDED.custom_var_4,
	custom_var_5 = EXCLUDED.custom_var_5,
	custom_var_6 = EXCLUDED.custom_var_6,
	custom_var_7 = EXCLUDED.custom_var_7,
	custom_var_8 = EXCLUDED.custom_var_8,
	custom_var_9 = EXCLUDED.custom_var_9,
	custom_var_10 = EXCLUDED.custom_var_10,
	referrer = EXCLUDED.referrer,
	user_agent = EXCLUDED.user_agent,
	raw_data = EXCLUDED.raw_data,
	synced_at = now()`

const upsertClickSQL = `
INSERT INTO live_clicks (
	click_id, external_id, campaign_id, campaign_name,
	offer_id, offer_name, lander_id, lander_name,
	click_timestamp, country_code, country_name,
	device, os, browser, ip, raw_data, synced_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
ON CONFLICT (click_id) DO UPDATE SET
	external_id = EXCLUDED.external_id,
	campaign_id = EXCLUDED.campaign_id,
	campaign_name = EXCLUDED.campaign_name,
	offer_id = EXCLUDED.offer_id,
	offer_name = EXCLUDED.offer_name,
	lander_id = EXCLUDED.lander_id,
	lander_name = EXCLUDED.lander_name,
	click_timestamp = EXCLUDED.click_timestamp,
	country_code = EXCLUDED.country_code,
	country_name = EXCLUDED.country_name,
	device = EXCLUDED.device,
	os = EXCLUDED.os,
	browser = EXCLUDED.browser,
	ip = EXCLUDED.ip,
	raw_data = EXCLUDED.raw_data,
	synced_at = now()`

const upsertConversionSQL = `
INSERT INTO conversions (
	click_id, external_id, transaction_id, campaign_id, campaign_name,
	offer_id, offer_name, affiliate_network_id, affiliate_network_name,
	postback_timestamp, visit_timestamp, country_code, country_name,
	revenue, payout, cost, profit,
	device, os, browser, connection_type, isp, ip,
	custom_var_1, custom_var_2, custom_var_3, custom_var_4, custom_var_5,
	raw_data, synced_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?,
	?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
ON CONFLICT (click_id, postback_timestamp) DO UPDATE SET
	external_id = EXCLUDED.external_id,
	transaction_id = EXCLUDED.transaction_id,
	campaign_id = EXCLUDED.campaign_id,
	campaign_name = EXCLUDED.campaign_name,
	offer_id = EXCLUDED.offer_id,
	offer_name = EXCLUDED.offer_name,
	affiliate_network_id = EXCLUDED.affiliate_network_id,
	affiliate_network_name = EXCLUDED.affiliate_network_name,
	visit_timestamp = EXCLUDED.visit_timestamp,
	country_code = EXCLUDED.country_code,
	country_name = EXCLUDED.country_name,
	revenue = EXCLUDED.revenue,
	payout = EXCLUDED.payout,
	cost = EXCLUDED.cost,
	profit = EXCLUDED.profit,
	device = EXCLUDED.device,
	os = EXCLUDED.os,
	browser = EXCLUDED.browser,
	connection_type = EXCLUDED.connection_type,
	isp = EXCLUDED.isp,
	ip = EXCLUDED.ip,
	custom_var_1 = EXCLUDED.custom_var_1,
	custom_var_2 = EXCLUDED.custom_var_2,
	custom_var_3 = EXCLUDED.custom_var_3,
	custom_var_4 = EXCLUDED.custom_var_4,
	custom_var_5 = EXCLUDED.custom_var_5,
	raw_data = EXCLUDED.raw_data,
	synced_at = now()`
