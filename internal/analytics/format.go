package analytics

import (
	"math"
	"strconv"
	"strings"

	"kpidash/internal/domain"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Formatter renders metric values for display. Counts round to integers
// with grouping, currency values carry a symbol and two decimals, and
// percentages get two decimals and a trailing %.
type Formatter struct {
	printer  *message.Printer
	currency domain.Currency
}

// NewFormatter builds a formatter for a BCP 47 locale such as "en-US".
// Unknown locales fall back to English.
func NewFormatter(locale string, currency domain.Currency) *Formatter {
	tag, err := language.Parse(locale)
	if err != nil {
		tag = language.English
	}
	if _, ok := domain.ParseCurrency(string(currency)); !ok {
		currency = domain.DefaultCurrency
	}
	return &Formatter{
		printer:  message.NewPrinter(tag),
		currency: currency,
	}
}

var defaultFormatter = NewFormatter("en-US", domain.DefaultCurrency)

// FormatMetricValue formats with the default en-US / USD formatter.
func FormatMetricValue(value float64, m domain.Metric) string {
	return defaultFormatter.FormatMetricValue(value, m)
}

func (f *Formatter) FormatMetricValue(value float64, m domain.Metric) string {
	return f.Format(value, m, f.currency)
}

// Format renders value according to the kind of m, using currency for
// monetary metrics.
func (f *Formatter) Format(value float64, m domain.Metric, currency domain.Currency) string {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return "0"
	}
	switch m.Kind() {
	case domain.KindCurrency:
		return f.FormatMoney(value, currency)
	case domain.KindPercentage:
		return f.printer.Sprintf("%.2f%%", value)
	default:
		return f.FormatCount(value)
	}
}

func (f *Formatter) FormatCount(value float64) string {
	return f.printer.Sprintf("%d", int64(math.Round(value)))
}

func (f *Formatter) FormatMoney(value float64, currency domain.Currency) string {
	if currency == "" {
		currency = f.currency
	}
	sign := ""
	if value < 0 {
		sign = "-"
		value = -value
	}
	return sign + currency.Symbol() + f.printer.Sprintf("%.2f", value)
}

// FormatTrend renders a percentage change with an explicit sign, e.g. +1.5%.
func FormatTrend(value float64) string {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return "0%"
	}
	s := strconv.FormatFloat(value, 'f', 1, 64)
	if value >= 0 {
		s = "+" + s
	}
	return s + "%"
}

var compactUnits = []string{"", "K", "M", "B", "T"}

// FormatCompact renders a short form such as 1.5K or 2.3M.
func FormatCompact(value float64) string {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return "0"
	}
	sign := ""
	if value < 0 {
		sign = "-"
		value = -value
	}
	unit := 0
	for unit < len(compactUnits)-1 && math.Round(value*10)/10 >= 1000 {
		value /= 1000
		unit++
	}
	prec := 1
	if unit == 0 {
		prec = 0
	}
	s := strconv.FormatFloat(value, 'f', prec, 64)
	s = strings.TrimSuffix(s, ".0")
	return sign + s + compactUnits[unit]
}
