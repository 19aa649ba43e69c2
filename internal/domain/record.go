package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

const DayLayout = "2006-01-02"

// RawRecord is an untyped record as delivered by an upstream source.
// Numeric fields may be strings, numbers or absent.
type RawRecord map[string]any

// Clone returns a shallow copy so callers can annotate a record without
// touching the snapshot it came from.
func (r RawRecord) Clone() RawRecord {
	out := make(RawRecord, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

type Platform string

const (
	PlatformFacebook Platform = "facebook"
	PlatformGoogle   Platform = "google"
	PlatformOther    Platform = "other"
)

// Level is one step of the account > campaign > ad set > ad chain.
type Level int

const (
	LevelAccount Level = iota
	LevelCampaign
	LevelAdSet
	LevelAd
)

// Levels lists the hierarchy from the root down.
var Levels = []Level{LevelAccount, LevelCampaign, LevelAdSet, LevelAd}

func (l Level) String() string {
	switch l {
	case LevelAccount:
		return "account"
	case LevelCampaign:
		return "campaign"
	case LevelAdSet:
		return "adset"
	case LevelAd:
		return "ad"
	}
	return "unknown"
}

// Hierarchy is the identifier chain a record belongs to. Payment records
// usually leave it empty.
type Hierarchy struct {
	AccountID  string `json:"account_id,omitempty"`
	CampaignID string `json:"campaign_id,omitempty"`
	AdSetID    string `json:"adset_id,omitempty"`
	AdID       string `json:"ad_id,omitempty"`
}

// ID returns the identifier at the given level.
func (h Hierarchy) ID(level Level) string {
	switch level {
	case LevelAccount:
		return h.AccountID
	case LevelCampaign:
		return h.CampaignID
	case LevelAdSet:
		return h.AdSetID
	case LevelAd:
		return h.AdID
	}
	return ""
}

// CanonicalRecord is the strictly typed form every analytics function
// consumes. Date is midnight UTC of the calendar day, or zero when the
// source date could not be parsed.
type CanonicalRecord struct {
	ID       string    `json:"id,omitempty"`
	Date     time.Time `json:"date"`
	GroupKey string    `json:"group_key"`
	Hierarchy
	Label    string   `json:"label,omitempty"`
	Platform Platform `json:"platform"`
	Status   Status   `json:"status"`

	Impressions int64           `json:"impressions"`
	Clicks      int64           `json:"clicks"`
	Conversions int64           `json:"conversions"`
	Spend       decimal.Decimal `json:"spend"`
	Revenue     decimal.Decimal `json:"revenue"`
	Currency    Currency        `json:"currency"`
}

// HasDate reports whether the record can be placed in a time series.
func (r CanonicalRecord) HasDate() bool {
	return !r.Date.IsZero()
}

// DayKey returns the calendar-day bucket key, or "" for dateless records.
func (r CanonicalRecord) DayKey() string {
	if !r.HasDate() {
		return ""
	}
	return r.Date.Format(DayLayout)
}

// Raw converts the record back into the loose shape the normalizer reads.
func (r CanonicalRecord) Raw() RawRecord {
	raw := RawRecord{
		"id":          r.ID,
		"account_id":  r.AccountID,
		"campaign_id": r.CampaignID,
		"adset_id":    r.AdSetID,
		"ad_id":       r.AdID,
		"label":       r.Label,
		"platform":    string(r.Platform),
		"status":      string(r.Status),
		"impressions": r.Impressions,
		"clicks":      r.Clicks,
		"conversions": r.Conversions,
		"spend":       r.Spend,
		"revenue":     r.Revenue,
		"currency":    string(r.Currency),
	}
	if r.HasDate() {
		raw["date"] = r.DayKey()
	}
	return raw
}

// Day truncates t to its calendar day in its own location and returns that
// day as midnight UTC.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
