package analytics

import (
	"math"

	"kpidash/internal/domain"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// SummarizePayments counts payment records by status and sums captured
// revenue per currency. The fallback currency is always present in
// CapturedRevenue so a view can show an explicit zero.
func SummarizePayments(records []domain.CanonicalRecord, fallback domain.Currency) domain.PaymentSummary {
	if fallback == "" {
		fallback = domain.DefaultCurrency
	}
	summary := domain.PaymentSummary{
		StatusCounts:    make(map[domain.Status]int),
		CapturedRevenue: map[domain.Currency]decimal.Decimal{fallback: decimal.Zero},
	}

	for _, rec := range records {
		summary.Transactions++
		summary.StatusCounts[rec.Status]++
		if rec.Status != domain.StatusCaptured {
			continue
		}
		cur, ok := summary.CapturedRevenue[rec.Currency]
		if !ok {
			cur = decimal.Zero
		}
		summary.CapturedRevenue[rec.Currency] = cur.Add(rec.Revenue)
	}

	if summary.Transactions > 0 {
		captured := summary.StatusCounts[domain.StatusCaptured]
		summary.CaptureRate = int(math.Round(float64(captured) / float64(summary.Transactions) * 100))
	}
	return summary
}

// Settled reports whether a record's revenue has actually been received.
// Failed and pending payments carry an amount that was never collected.
func Settled(rec domain.CanonicalRecord) bool {
	return rec.Status != domain.StatusFailed && rec.Status != domain.StatusPending
}

// QualifyingRevenue returns a copy of records in which unsettled payments
// carry no revenue. Every other field, the status included, is kept so the
// records still count towards status and transaction totals.
func QualifyingRevenue(records []domain.CanonicalRecord) []domain.CanonicalRecord {
	return lo.Map(records, func(rec domain.CanonicalRecord, _ int) domain.CanonicalRecord {
		if !Settled(rec) {
			rec.Revenue = decimal.Zero
		}
		return rec
	})
}
