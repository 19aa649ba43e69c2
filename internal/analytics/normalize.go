package analytics

import (
	"strings"

	"kpidash/internal/domain"

	"github.com/shopspring/decimal"
)

// NegativeAmounts decides what happens to spend/revenue values below zero.
type NegativeAmounts int

const (
	// ClampNegative floors negative amounts at zero.
	ClampNegative NegativeAmounts = iota
	// KeepNegative passes negative amounts through, e.g. for refunds.
	KeepNegative
)

func ParseNegativeAmounts(s string) NegativeAmounts {
	if strings.EqualFold(strings.TrimSpace(s), "keep") {
		return KeepNegative
	}
	return ClampNegative
}

// Schema lists, per canonical field, the raw keys to try in order.
type Schema struct {
	ID          []string
	Date        []string
	Account     []string
	Campaign    []string
	AdSet       []string
	Ad          []string
	Label       []string
	Platform    []string
	Status      []string
	Impressions []string
	Clicks      []string
	Conversions []string
	Spend       []string
	Revenue     []string
	Currency    []string
}

// DefaultSchema reads both ad-insight and payment records.
var DefaultSchema = Schema{
	ID:          []string{"id"},
	Date:        []string{"date", "date_start", "created_at", "created"},
	Account:     []string{"account_id"},
	Campaign:    []string{"campaign_id"},
	AdSet:       []string{"adset_id"},
	Ad:          []string{"ad_id"},
	Label:       []string{"label", "description", "campaign_name", "adset_name", "ad_name", "name"},
	Platform:    []string{"platform"},
	Status:      []string{"status", "effective_status"},
	Impressions: []string{"impressions"},
	Clicks:      []string{"clicks", "inline_link_clicks"},
	Conversions: []string{"conversions"},
	Spend:       []string{"spend"},
	Revenue:     []string{"revenue", "amount"},
	Currency:    []string{"currency", "account_currency"},
}

type NormalizerOptions struct {
	DefaultCurrency domain.Currency
	Negative        NegativeAmounts
	Schema          *Schema
}

// Normalizer turns raw records into canonical ones. It never fails: every
// malformed field degrades to a safe default.
type Normalizer struct {
	defaultCurrency domain.Currency
	negative        NegativeAmounts
	schema          Schema
}

func NewNormalizer(opts NormalizerOptions) *Normalizer {
	currency, ok := domain.ParseCurrency(string(opts.DefaultCurrency))
	if !ok {
		currency = domain.DefaultCurrency
	}
	schema := DefaultSchema
	if opts.Schema != nil {
		schema = *opts.Schema
	}
	return &Normalizer{
		defaultCurrency: currency,
		negative:        opts.Negative,
		schema:          schema,
	}
}

var defaultNormalizer = NewNormalizer(NormalizerOptions{})

// Normalize uses the default normalizer (USD fallback, negatives clamped).
func Normalize(raw domain.RawRecord) domain.CanonicalRecord {
	return defaultNormalizer.Normalize(raw)
}

func (n *Normalizer) DefaultCurrency() domain.Currency {
	return n.defaultCurrency
}

func (n *Normalizer) Normalize(raw domain.RawRecord) domain.CanonicalRecord {
	var report domain.NormalizeReport
	return n.normalize(raw, &report)
}

// NormalizeAll normalizes every record and reports how many fallbacks were
// applied. The input is not modified.
func (n *Normalizer) NormalizeAll(raws []domain.RawRecord) ([]domain.CanonicalRecord, domain.NormalizeReport) {
	var report domain.NormalizeReport
	out := make([]domain.CanonicalRecord, 0, len(raws))
	for _, raw := range raws {
		out = append(out, n.normalize(raw, &report))
	}
	return out, report
}

func (n *Normalizer) normalize(raw domain.RawRecord, report *domain.NormalizeReport) domain.CanonicalRecord {
	report.Records++
	s := n.schema

	rec := domain.CanonicalRecord{
		ID: toString(lookup(raw, s.ID)),
		Hierarchy: domain.Hierarchy{
			AccountID:  toString(lookup(raw, s.Account)),
			CampaignID: toString(lookup(raw, s.Campaign)),
			AdSetID:    toString(lookup(raw, s.AdSet)),
			AdID:       toString(lookup(raw, s.Ad)),
		},
		Label:    toString(lookup(raw, s.Label)),
		Platform: NormalizePlatform(toString(lookup(raw, s.Platform))),
	}
	rec.GroupKey = groupKey(rec)

	date, state := toDay(lookup(raw, s.Date))
	if state != fieldOK {
		report.Dateless++
	}
	rec.Date = date

	rawStatus := toString(lookup(raw, s.Status))
	var known bool
	rec.Status, known = classifyStatus(rawStatus)
	if !known && rawStatus != "" {
		report.UnknownStatus++
	}

	rec.Impressions = n.count(lookup(raw, s.Impressions), report)
	rec.Clicks = n.count(lookup(raw, s.Clicks), report)
	rec.Conversions = n.count(lookup(raw, s.Conversions), report)
	rec.Spend = n.amount(lookup(raw, s.Spend), report)
	rec.Revenue = n.amount(lookup(raw, s.Revenue), report)

	rawCurrency := toString(lookup(raw, s.Currency))
	currency, ok := domain.ParseCurrency(rawCurrency)
	if !ok {
		if rawCurrency != "" {
			report.CurrencyFallback++
		}
		currency = n.defaultCurrency
	}
	rec.Currency = currency

	return rec
}

func (n *Normalizer) count(v any, report *domain.NormalizeReport) int64 {
	c, state := toCount(v)
	if state == fieldInvalid {
		report.InvalidNumbers++
	}
	return c
}

func (n *Normalizer) amount(v any, report *domain.NormalizeReport) decimal.Decimal {
	d, state := toDecimal(v)
	if state == fieldInvalid {
		report.InvalidNumbers++
	}
	if d.IsNegative() {
		report.NegativeAmounts++
		if n.negative == ClampNegative {
			return decimal.Zero
		}
	}
	return d
}

// lookup returns the first non-nil value among keys.
func lookup(raw domain.RawRecord, keys []string) any {
	for _, k := range keys {
		if v, ok := raw[k]; ok && v != nil {
			return v
		}
	}
	return nil
}

func groupKey(rec domain.CanonicalRecord) string {
	for i := len(domain.Levels) - 1; i >= 0; i-- {
		if id := rec.Hierarchy.ID(domain.Levels[i]); id != "" {
			return id
		}
	}
	if rec.Label != "" {
		return rec.Label
	}
	return rec.ID
}

type statusRule struct {
	keyword string
	status  domain.Status
}

// statusRules is evaluated top to bottom against the lower-cased, trimmed
// raw status; the first substring hit wins.
var statusRules = []statusRule{
	{"captured", domain.StatusCaptured},
	{"success", domain.StatusCaptured},
	{"fail", domain.StatusFailed},
	{"pend", domain.StatusPending},
	{"inactive", domain.StatusOther},
	{"paus", domain.StatusPaused},
	{"archiv", domain.StatusArchived},
	{"active", domain.StatusActive},
	{"other", domain.StatusOther},
}

// NormalizeStatus maps an upstream status string onto a canonical status.
func NormalizeStatus(raw string) domain.Status {
	s, _ := classifyStatus(raw)
	return s
}

func classifyStatus(raw string) (domain.Status, bool) {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return domain.StatusOther, false
	}
	for _, rule := range statusRules {
		if strings.Contains(s, rule.keyword) {
			return rule.status, true
		}
	}
	return domain.StatusOther, false
}

func NormalizePlatform(raw string) domain.Platform {
	s := strings.ToLower(strings.TrimSpace(raw))
	switch {
	case strings.Contains(s, "facebook"), strings.Contains(s, "instagram"), strings.Contains(s, "meta"):
		return domain.PlatformFacebook
	case strings.Contains(s, "google"):
		return domain.PlatformGoogle
	}
	return domain.PlatformOther
}
