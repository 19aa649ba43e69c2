package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// CurrencyTotals holds the money-bearing totals of the records tagged with
// one currency, plus the ratios that need a spend or revenue numerator.
type CurrencyTotals struct {
	Currency    Currency        `json:"currency"`
	Records     int             `json:"records"`
	Impressions int64           `json:"impressions"`
	Clicks      int64           `json:"clicks"`
	Conversions int64           `json:"conversions"`
	Spend       decimal.Decimal `json:"spend"`
	Revenue     decimal.Decimal `json:"revenue"`

	CPC               float64 `json:"cpc"`
	CPM               float64 `json:"cpm"`
	CostPerConversion float64 `json:"cost_per_conversion"`
	ROAS              float64 `json:"roas"`
}

// KPITotals is recomputed from scratch on every aggregation pass.
//
// Spend and Revenue are never summed across currencies. The top-level
// money ratios are those of Currency, the primary currency of the input;
// ByCurrency carries the full breakdown.
type KPITotals struct {
	Records     int                          `json:"records"`
	Impressions int64                        `json:"impressions"`
	Clicks      int64                        `json:"clicks"`
	Conversions int64                        `json:"conversions"`
	Spend       map[Currency]decimal.Decimal `json:"spend"`
	Revenue     map[Currency]decimal.Decimal `json:"revenue"`

	CTR               float64  `json:"ctr"`
	Currency          Currency `json:"currency"`
	CPC               float64  `json:"cpc"`
	CPM               float64  `json:"cpm"`
	CostPerConversion float64  `json:"cost_per_conversion"`
	ROAS              float64  `json:"roas"`

	ByCurrency map[Currency]CurrencyTotals `json:"by_currency"`
}

// Value returns the top-level value of m as a float.
func (k KPITotals) Value(m Metric) float64 {
	return k.ValueIn(m, k.Currency)
}

// ValueIn is Value with money-bearing metrics read from currency cur.
func (k KPITotals) ValueIn(m Metric, cur Currency) float64 {
	switch m {
	case MetricImpressions:
		return float64(k.Impressions)
	case MetricClicks:
		return float64(k.Clicks)
	case MetricConversions:
		return float64(k.Conversions)
	case MetricCTR:
		return k.CTR
	}

	ct := k.ByCurrency[cur]
	switch m {
	case MetricSpend:
		return ct.Spend.InexactFloat64()
	case MetricRevenue:
		return ct.Revenue.InexactFloat64()
	case MetricCPC:
		return ct.CPC
	case MetricCPM:
		return ct.CPM
	case MetricCostPerConversion:
		return ct.CostPerConversion
	case MetricROAS:
		return ct.ROAS
	}
	return 0
}

// Bucket is one calendar day of a time series.
type Bucket struct {
	Date     string          `json:"date"`
	Amount   decimal.Decimal `json:"amount"`
	Count    int             `json:"count"`
	Statuses map[Status]int  `json:"status"`
}

// Slice is one entry of a ranked categorical distribution.
type Slice struct {
	Label    string          `json:"label"`
	Currency Currency        `json:"currency,omitempty"`
	Value    decimal.Decimal `json:"value"`
	Count    int             `json:"count"`
}

// PaymentSummary condenses payment-store records for the payments view.
type PaymentSummary struct {
	Transactions    int                          `json:"transactions"`
	StatusCounts    map[Status]int               `json:"status_counts"`
	CaptureRate     int                          `json:"capture_rate"`
	CapturedRevenue map[Currency]decimal.Decimal `json:"captured_revenue"`
}

// NormalizeReport counts the data-quality fallbacks applied in one pass.
type NormalizeReport struct {
	Records          int `json:"records"`
	Dateless         int `json:"dateless"`
	InvalidNumbers   int `json:"invalid_numbers"`
	NegativeAmounts  int `json:"negative_amounts"`
	CurrencyFallback int `json:"currency_fallback"`
	UnknownStatus    int `json:"unknown_status"`
}

// ExportRow is the per-day row pushed to the export sink and CSV download.
type ExportRow struct {
	Date              string   `json:"date"`
	Currency          Currency `json:"currency"`
	Records           int      `json:"records"`
	Impressions       int64    `json:"impressions"`
	Clicks            int64    `json:"clicks"`
	Conversions       int64    `json:"conversions"`
	Spend             string   `json:"spend"`
	Revenue           string   `json:"revenue"`
	CTR               float64  `json:"ctr"`
	CPC               float64  `json:"cpc"`
	CPM               float64  `json:"cpm"`
	CostPerConversion float64  `json:"cost_per_conversion"`
	ROAS              float64  `json:"roas"`
}

// Snapshot is an immutable merged record collection from one refresh.
type Snapshot struct {
	ID         string      `json:"id"`
	Generation uint64      `json:"generation"`
	FetchedAt  time.Time   `json:"fetched_at"`
	Since      time.Time   `json:"since"`
	Until      time.Time   `json:"until"`
	Records    []RawRecord `json:"-"`
}
