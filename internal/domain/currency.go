package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownCurrency is returned when a currency code is not supported.
var ErrUnknownCurrency = errors.New("unknown currency")

// Currency is the closed set of ISO 4217 codes prices can be quoted in.
// The zero value is not a valid currency.
type Currency uint8

// Supported currencies.
const (
	CurrencyEUR Currency = iota + 1
)

var currencyCodes = map[Currency]string{
	CurrencyEUR: "EUR",
}

// Currencies returns every supported currency.
func Currencies() []Currency {
	out := make([]Currency, 0, len(currencyCodes))
	for c := range currencyCodes {
		out = append(out, c)
	}
	return out
}

// ParseCurrency maps an ISO 4217 code (case-insensitive) to a Currency.
func ParseCurrency(code string) (Currency, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	for c, s := range currencyCodes {
		if s == code {
			return c, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownCurrency, code)
}

// IsValid reports whether c is a supported currency.
func (c Currency) IsValid() bool {
	_, ok := currencyCodes[c]
	return ok
}

func (c Currency) String() string {
	if s, ok := currencyCodes[c]; ok {
		return s
	}
	return fmt.Sprintf("Currency(%d)", uint8(c))
}

// MarshalText implements encoding.TextMarshaler.
func (c Currency) MarshalText() ([]byte, error) {
	if !c.IsValid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownCurrency, uint8(c))
	}
	return []byte(currencyCodes[c]), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *Currency) UnmarshalText(text []byte) error {
	parsed, err := ParseCurrency(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}
