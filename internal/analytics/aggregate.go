package analytics

import (
	"sort"

	"kpidash/internal/domain"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

var (
	hundred  = decimal.NewFromInt(100)
	thousand = decimal.NewFromInt(1000)
)

// Aggregate reduces records to KPI totals. Ratios are computed from the
// totals, never averaged per record, and are 0 whenever their denominator
// is 0. The result does not depend on record order.
func Aggregate(records []domain.CanonicalRecord) domain.KPITotals {
	totals := domain.KPITotals{
		Spend:      make(map[domain.Currency]decimal.Decimal),
		Revenue:    make(map[domain.Currency]decimal.Decimal),
		ByCurrency: make(map[domain.Currency]domain.CurrencyTotals),
		Currency:   domain.DefaultCurrency,
	}

	for _, rec := range records {
		totals.Records++
		totals.Impressions += rec.Impressions
		totals.Clicks += rec.Clicks
		totals.Conversions += rec.Conversions

		ct, ok := totals.ByCurrency[rec.Currency]
		if !ok {
			ct = domain.CurrencyTotals{
				Currency: rec.Currency,
				Spend:    decimal.Zero,
				Revenue:  decimal.Zero,
			}
		}
		ct.Records++
		ct.Impressions += rec.Impressions
		ct.Clicks += rec.Clicks
		ct.Conversions += rec.Conversions
		ct.Spend = ct.Spend.Add(rec.Spend)
		ct.Revenue = ct.Revenue.Add(rec.Revenue)
		totals.ByCurrency[rec.Currency] = ct
	}

	totals.CTR = ctr(totals.Clicks, totals.Impressions)

	for cur, ct := range totals.ByCurrency {
		ct.CPC = perUnit(ct.Spend, ct.Clicks, decimal.NewFromInt(1))
		ct.CPM = perUnit(ct.Spend, ct.Impressions, thousand)
		ct.CostPerConversion = perUnit(ct.Spend, ct.Conversions, decimal.NewFromInt(1))
		ct.ROAS = roas(ct.Revenue, ct.Spend)
		totals.ByCurrency[cur] = ct
		totals.Spend[cur] = ct.Spend
		totals.Revenue[cur] = ct.Revenue
	}

	if primary, ok := primaryCurrency(totals.ByCurrency); ok {
		ct := totals.ByCurrency[primary]
		totals.Currency = primary
		totals.CPC = ct.CPC
		totals.CPM = ct.CPM
		totals.CostPerConversion = ct.CostPerConversion
		totals.ROAS = ct.ROAS
	}

	return totals
}

// primaryCurrency picks the currency carrying the most records; ties go to
// the alphabetically first code so the choice is order independent.
func primaryCurrency(by map[domain.Currency]domain.CurrencyTotals) (domain.Currency, bool) {
	if len(by) == 0 {
		return "", false
	}
	codes := lo.Keys(by)
	sort.Slice(codes, func(i, j int) bool { return codes[i] < codes[j] })
	best := codes[0]
	for _, c := range codes[1:] {
		if by[c].Records > by[best].Records {
			best = c
		}
	}
	return best, true
}

// MetricValue returns the value of m for a single record, with the same
// zero-denominator rules as Aggregate.
func MetricValue(rec domain.CanonicalRecord, m domain.Metric) float64 {
	switch m {
	case domain.MetricImpressions:
		return float64(rec.Impressions)
	case domain.MetricClicks:
		return float64(rec.Clicks)
	case domain.MetricConversions:
		return float64(rec.Conversions)
	case domain.MetricSpend:
		return rec.Spend.InexactFloat64()
	case domain.MetricRevenue:
		return rec.Revenue.InexactFloat64()
	case domain.MetricCTR:
		return ctr(rec.Clicks, rec.Impressions)
	case domain.MetricCPC:
		return perUnit(rec.Spend, rec.Clicks, decimal.NewFromInt(1))
	case domain.MetricCPM:
		return perUnit(rec.Spend, rec.Impressions, thousand)
	case domain.MetricCostPerConversion:
		return perUnit(rec.Spend, rec.Conversions, decimal.NewFromInt(1))
	case domain.MetricROAS:
		return roas(rec.Revenue, rec.Spend)
	}
	return 0
}

// amountOf returns a summable metric of rec as a decimal.
func amountOf(rec domain.CanonicalRecord, m domain.Metric) decimal.Decimal {
	switch m {
	case domain.MetricImpressions:
		return decimal.NewFromInt(rec.Impressions)
	case domain.MetricClicks:
		return decimal.NewFromInt(rec.Clicks)
	case domain.MetricConversions:
		return decimal.NewFromInt(rec.Conversions)
	case domain.MetricSpend:
		return rec.Spend
	case domain.MetricRevenue:
		return rec.Revenue
	}
	return decimal.Zero
}

func ctr(clicks, impressions int64) float64 {
	if impressions == 0 {
		return 0
	}
	return float64(clicks) * 100 / float64(impressions)
}

func perUnit(amount decimal.Decimal, units int64, scale decimal.Decimal) float64 {
	if units == 0 {
		return 0
	}
	return amount.Mul(scale).Div(decimal.NewFromInt(units)).InexactFloat64()
}

// roas is expressed as a percentage: revenue / spend × 100.
func roas(revenue, spend decimal.Decimal) float64 {
	if spend.IsZero() {
		return 0
	}
	return revenue.Mul(hundred).Div(spend).InexactFloat64()
}

// Trend is the percentage change from previous to current; 0 when there is
// no previous value to compare against.
func Trend(current, previous float64) float64 {
	if previous == 0 {
		return 0
	}
	return (current - previous) / previous * 100
}
