// Package core provides money parsing and handling utilities.
//
// Amounts are arbitrary precision decimals. Rounding to two digits only
// happens when rendering.
package core

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// Money is a decimal amount. The zero value is 0.
type Money struct {
	decimal.Decimal
}

var Zero = Money{decimal.Zero}

// maxAmountDigits bounds the digits of a parsed amount. Exponent notation is
// not accepted, so this also bounds the size of every rendered total.
const maxAmountDigits = 30

var plainAmount = regexp.MustCompile(`^([+-]?)(\d*)(?:[.,](\d+))?$`)

// NewMoney builds Money from a whole number of units.
func NewMoney(units int64) Money {
	return Money{decimal.NewFromInt(units)}
}

// ParseAmount converts a user entered amount to Money.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators, an optional
// sign and surrounding whitespace. Negative and zero amounts are valid.
// Exponents (1e3) and amounts longer than maxAmountDigits digits are rejected.
//
// Examples:
//
//	ParseAmount("12.34")  -> 12.34, nil
//	ParseAmount(" 12,5 ") -> 12.5, nil
//	ParseAmount("abc")    -> 0, ErrInvalidAmount
func ParseAmount(s string) (Money, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Zero, ErrInvalidAmount
	}
	m := plainAmount.FindStringSubmatch(s)
	if m == nil || m[2]+m[3] == "" || len(m[2])+len(m[3]) > maxAmountDigits {
		return Zero, ErrInvalidAmount
	}
	normalized := m[1] + "0" + m[2]
	if m[3] != "" {
		normalized += "." + m[3]
	}
	d, err := decimal.NewFromString(strings.TrimPrefix(normalized, "+"))
	if err != nil {
		return Zero, ErrInvalidAmount
	}
	return Money{d}, nil
}

// AmountOrZero is ParseAmount for aggregation: anything unparsable is 0.
func AmountOrZero(s string) Money {
	m, err := ParseAmount(s)
	if err != nil {
		return Zero
	}
	return m
}

func (m Money) Add(o Money) Money {
	return Money{m.Decimal.Add(o.Decimal)}
}

func (m Money) Equal(o Money) bool {
	return m.Decimal.Equal(o.Decimal)
}

// String renders the amount with two decimal places.
func (m Money) String() string {
	return m.StringFixed(2)
}

// MarshalJSON renders a JSON number rounded to two decimal places.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.StringFixed(2)), nil
}

// UnmarshalJSON accepts a JSON number or string holding a plain amount.
func (m *Money) UnmarshalJSON(b []byte) error {
	parsed, err := ParseAmount(strings.Trim(string(b), `"`))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
