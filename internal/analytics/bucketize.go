package analytics

import (
	"sort"

	"kpidash/internal/domain"

	"github.com/shopspring/decimal"
)

// BucketSpec says which amount qualifies for summation in a bucketing pass.
type BucketSpec struct {
	// Measure must be summable; ratios contribute nothing.
	Measure domain.Metric
	// Currency restricts monetary measures to one currency. Empty means
	// domain.DefaultCurrency.
	Currency domain.Currency
	// Statuses restricts which records add to Amount. Count and the status
	// breakdown always include every dated record.
	Statuses []domain.Status
}

func (s BucketSpec) qualifies(rec domain.CanonicalRecord) bool {
	if s.Measure.Monetary() {
		cur := s.Currency
		if cur == "" {
			cur = domain.DefaultCurrency
		}
		if rec.Currency != cur {
			return false
		}
	}
	return statusSelected(s.Statuses, rec.Status)
}

// Bucketize groups dated records by calendar day, ascending. Dateless
// records are skipped. Empty input yields an empty, non-nil slice.
func Bucketize(records []domain.CanonicalRecord, spec BucketSpec) []domain.Bucket {
	byDay := make(map[string]*domain.Bucket)
	for _, rec := range records {
		key := rec.DayKey()
		if key == "" {
			continue
		}
		b, ok := byDay[key]
		if !ok {
			b = &domain.Bucket{
				Date:     key,
				Amount:   decimal.Zero,
				Statuses: make(map[domain.Status]int),
			}
			byDay[key] = b
		}
		b.Count++
		b.Statuses[rec.Status]++
		if spec.qualifies(rec) {
			b.Amount = b.Amount.Add(amountOf(rec, spec.Measure))
		}
	}

	out := make([]domain.Bucket, 0, len(byDay))
	for _, b := range byDay {
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out
}

// AveragePerDay divides the bucket amounts by max(len(buckets), 1).
func AveragePerDay(buckets []domain.Bucket) decimal.Decimal {
	total := decimal.Zero
	for _, b := range buckets {
		total = total.Add(b.Amount)
	}
	days := len(buckets)
	if days < 1 {
		days = 1
	}
	return total.Div(decimal.NewFromInt(int64(days)))
}

func statusSelected(selected []domain.Status, s domain.Status) bool {
	if len(selected) == 0 {
		return true
	}
	for _, sel := range selected {
		if sel == domain.StatusAll || sel == s {
			return true
		}
	}
	return false
}
