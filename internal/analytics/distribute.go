package analytics

import (
	"sort"
	"strings"

	"kpidash/internal/domain"

	"github.com/shopspring/decimal"
)

const (
	DefaultTopN        = 5
	DefaultLabelMaxLen = 30
	ellipsis           = "..."
)

// KeyFunc extracts the category label of a record. Returning false leaves
// the record out of the distribution.
type KeyFunc func(rec domain.CanonicalRecord) (string, bool)

// DistributionSpec configures DistributeBy.
type DistributionSpec struct {
	// Measure must be summable or empty. Monetary measures are partitioned
	// by currency, so the same label may appear once per currency. An empty
	// Measure ranks by record count.
	Measure domain.Metric
	// Limit truncates to the top N entries; 0 keeps all.
	Limit int
}

// DistributeBy groups records by key and ranks the groups by value,
// descending. Entries with a zero value or zero count are dropped.
func DistributeBy(records []domain.CanonicalRecord, key KeyFunc, spec DistributionSpec) []domain.Slice {
	type groupKey struct {
		label    string
		currency domain.Currency
	}
	groups := make(map[groupKey]*domain.Slice)

	for _, rec := range records {
		label, ok := key(rec)
		if !ok {
			continue
		}
		k := groupKey{label: label}
		if spec.Measure.Monetary() {
			k.currency = rec.Currency
		}
		g, exists := groups[k]
		if !exists {
			g = &domain.Slice{Label: label, Currency: k.currency, Value: decimal.Zero}
			groups[k] = g
		}
		g.Count++
		if spec.Measure == "" {
			g.Value = decimal.NewFromInt(int64(g.Count))
		} else {
			g.Value = g.Value.Add(amountOf(rec, spec.Measure))
		}
	}

	out := make([]domain.Slice, 0, len(groups))
	for _, g := range groups {
		if g.Value.IsZero() || g.Count == 0 {
			continue
		}
		out = append(out, *g)
	}

	sort.Slice(out, func(i, j int) bool {
		if c := out[i].Value.Cmp(out[j].Value); c != 0 {
			return c > 0
		}
		if out[i].Label != out[j].Label {
			return out[i].Label < out[j].Label
		}
		return out[i].Currency < out[j].Currency
	})

	if spec.Limit > 0 && len(out) > spec.Limit {
		out = out[:spec.Limit]
	}
	return out
}

// ByPlatform keys records by platform.
func ByPlatform(rec domain.CanonicalRecord) (string, bool) {
	return string(rec.Platform), true
}

// ByStatus keys records by canonical status.
func ByStatus(rec domain.CanonicalRecord) (string, bool) {
	return string(rec.Status), true
}

// ByCampaign keys records by campaign id, skipping records without one.
func ByCampaign(rec domain.CanonicalRecord) (string, bool) {
	return rec.CampaignID, rec.CampaignID != ""
}

// ByLabel keys records by their free-text label truncated to maxLen runes.
// Empty labels and labels in excluded (case-insensitive) are skipped.
func ByLabel(maxLen int, excluded ...string) KeyFunc {
	if maxLen <= 0 {
		maxLen = DefaultLabelMaxLen
	}
	skip := make(map[string]struct{}, len(excluded))
	for _, e := range excluded {
		skip[strings.ToLower(strings.TrimSpace(e))] = struct{}{}
	}
	return func(rec domain.CanonicalRecord) (string, bool) {
		label := strings.TrimSpace(rec.Label)
		if label == "" {
			return "", false
		}
		if _, ok := skip[strings.ToLower(label)]; ok {
			return "", false
		}
		return TruncateLabel(label, maxLen), true
	}
}

// TruncateLabel cuts s to maxLen runes and appends "..." when it was longer.
func TruncateLabel(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen]) + ellipsis
}
