package expense

import (
	"fmt"
	"strings"
)

// Currency is an ISO 4217 code the remote expense system accepts
type Currency string

const (
	GBP Currency = "GBP"
	USD Currency = "USD"
	EUR Currency = "EUR"
	INR Currency = "INR"
	CHF Currency = "CHF"
)

var currencySymbols = map[Currency]string{
	GBP: "£",
	USD: "$",
	EUR: "€",
	INR: "₹",
	CHF: "CHF",
}

// SupportedCurrencies returns the codes accepted by ParseCurrency
func SupportedCurrencies() []string {
	return []string{string(GBP), string(USD), string(EUR), string(INR), string(CHF)}
}

// ParseCurrency upper-cases and validates a currency code
func ParseCurrency(code string) (Currency, error) {
	c := Currency(strings.ToUpper(strings.TrimSpace(code)))
	if _, ok := currencySymbols[c]; !ok {
		return "", fmt.Errorf("unsupported currency %q", code)
	}
	return c, nil
}

// Symbol returns the display symbol, falling back to the code itself
func (c Currency) Symbol() string {
	if s, ok := currencySymbols[c]; ok {
		return s
	}
	return string(c)
}
