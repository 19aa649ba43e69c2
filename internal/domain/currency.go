package domain

import "strings"

type Currency string

const (
	CurrencyUSD Currency = "USD"
	CurrencyEUR Currency = "EUR"
	CurrencyGBP Currency = "GBP"
	CurrencyINR Currency = "INR"
	CurrencyAUD Currency = "AUD"
	CurrencyCAD Currency = "CAD"

	DefaultCurrency = CurrencyUSD
)

// SupportedCurrencies is the allow-list raw currency codes are checked against.
var SupportedCurrencies = []Currency{
	CurrencyUSD,
	CurrencyEUR,
	CurrencyGBP,
	CurrencyINR,
	CurrencyAUD,
	CurrencyCAD,
}

// ParseCurrency upper-cases code and reports whether it is supported.
func ParseCurrency(code string) (Currency, bool) {
	c := Currency(strings.ToUpper(strings.TrimSpace(code)))
	for _, s := range SupportedCurrencies {
		if c == s {
			return c, true
		}
	}
	return "", false
}

var currencySymbols = map[Currency]string{
	CurrencyUSD: "$",
	CurrencyEUR: "€",
	CurrencyGBP: "£",
	CurrencyINR: "₹",
	CurrencyAUD: "A$",
	CurrencyCAD: "CA$",
}

// Symbol returns the display symbol, falling back to the code itself.
func (c Currency) Symbol() string {
	if s, ok := currencySymbols[c]; ok {
		return s
	}
	return string(c)
}
