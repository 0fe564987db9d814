package enums

import "fmt"

// Currency is the ISO 4217 code orders and wallets settle in.
type Currency string

const (
	CurrencyNGN Currency = "NGN"
)

// String implements fmt.Stringer.
func (c Currency) String() string {
	return string(c)
}

// IsValid reports whether the value is a supported Currency.
func (c Currency) IsValid() bool {
	return c == CurrencyNGN
}

// ParseCurrency converts raw input into a Currency.
func ParseCurrency(value string) (Currency, error) {
	if Currency(value) == CurrencyNGN {
		return CurrencyNGN, nil
	}
	return "", fmt.Errorf("unsupported currency %q", value)
}
