package analytics

import (
	"encoding/json"
	"math"
	"math/big"
	"strings"
	"time"

	"kpidash/internal/domain"

	"github.com/shopspring/decimal"
)

// fieldState tells the normalizer whether a coercion fell back.
type fieldState int

const (
	fieldAbsent fieldState = iota
	fieldOK
	fieldInvalid
)

// toDecimal coerces a loosely typed value. Unparseable, NaN and infinite
// inputs yield zero with fieldInvalid.
func toDecimal(v any) (decimal.Decimal, fieldState) {
	switch n := v.(type) {
	case nil:
		return decimal.Zero, fieldAbsent
	case decimal.Decimal:
		return n, fieldOK
	case float64:
		return fromFloat(n)
	case float32:
		return fromFloat(float64(n))
	case int:
		return decimal.NewFromInt(int64(n)), fieldOK
	case int32:
		return decimal.NewFromInt32(n), fieldOK
	case int64:
		return decimal.NewFromInt(n), fieldOK
	case uint32:
		return decimal.NewFromInt(int64(n)), fieldOK
	case uint64:
		return decimal.NewFromBigInt(new(big.Int).SetUint64(n), 0), fieldOK
	case json.Number:
		return fromString(string(n))
	case string:
		return fromString(n)
	}
	return decimal.Zero, fieldInvalid
}

func fromFloat(f float64) (decimal.Decimal, fieldState) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return decimal.Zero, fieldInvalid
	}
	return decimal.NewFromFloat(f), fieldOK
}

func fromString(s string) (decimal.Decimal, fieldState) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, fieldAbsent
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fieldInvalid
	}
	return d, fieldOK
}

// toCount coerces a count field: fractions truncate and negatives clamp to 0.
func toCount(v any) (int64, fieldState) {
	d, state := toDecimal(v)
	if d.IsNegative() {
		return 0, state
	}
	return d.IntPart(), state
}

func toString(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(s)
	case json.Number:
		return s.String()
	case float64:
		return decimal.NewFromFloat(s).String()
	case int:
		return decimal.NewFromInt(int64(s)).String()
	case int64:
		return decimal.NewFromInt(s).String()
	}
	return ""
}

var dateLayouts = []string{
	domain.DayLayout,
	time.RFC3339,
	time.RFC3339Nano,
	"2006-01-02 15:04:05.000Z",
	"2006-01-02 15:04:05Z",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006/01/02 15:04:05",
	"2006/01/02",
	"01/02/2006",
}

// toDay parses the calendar day a timestamp was written in, ignoring its
// offset. Zero time means dateless.
func toDay(v any) (time.Time, fieldState) {
	var s string
	switch d := v.(type) {
	case nil:
		return time.Time{}, fieldAbsent
	case time.Time:
		if d.IsZero() {
			return time.Time{}, fieldInvalid
		}
		return domain.Day(d), fieldOK
	case string:
		s = strings.TrimSpace(d)
	default:
		return time.Time{}, fieldInvalid
	}
	if s == "" {
		return time.Time{}, fieldAbsent
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return domain.Day(t), fieldOK
		}
	}
	return time.Time{}, fieldInvalid
}
