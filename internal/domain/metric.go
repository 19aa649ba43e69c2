package domain

import "strings"

// Metric identifies a raw total or derived KPI.
type Metric string

const (
	MetricImpressions       Metric = "impressions"
	MetricClicks            Metric = "clicks"
	MetricConversions       Metric = "conversions"
	MetricSpend             Metric = "spend"
	MetricRevenue           Metric = "revenue"
	MetricCTR               Metric = "ctr"
	MetricCPC               Metric = "cpc"
	MetricCPM               Metric = "cpm"
	MetricCostPerConversion Metric = "cost_per_conversion"
	MetricROAS              Metric = "roas"
)

var Metrics = []Metric{
	MetricImpressions,
	MetricClicks,
	MetricConversions,
	MetricSpend,
	MetricRevenue,
	MetricCTR,
	MetricCPC,
	MetricCPM,
	MetricCostPerConversion,
	MetricROAS,
}

// MetricKind selects a presentation rule.
type MetricKind int

const (
	KindCount MetricKind = iota
	KindCurrency
	KindPercentage
)

func (m Metric) Kind() MetricKind {
	switch m {
	case MetricSpend, MetricRevenue, MetricCPC, MetricCPM, MetricCostPerConversion:
		return KindCurrency
	case MetricCTR, MetricROAS:
		return KindPercentage
	}
	return KindCount
}

// Summable reports whether the metric is a raw field that can be summed
// (as opposed to a ratio).
func (m Metric) Summable() bool {
	switch m {
	case MetricImpressions, MetricClicks, MetricConversions, MetricSpend, MetricRevenue:
		return true
	}
	return false
}

// Monetary reports whether the metric is a currency-tagged raw amount.
func (m Metric) Monetary() bool {
	return m == MetricSpend || m == MetricRevenue
}

func ParseMetric(name string) (Metric, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, m := range Metrics {
		if string(m) == name {
			return m, true
		}
	}
	return "", false
}
