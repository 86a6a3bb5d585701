// Package core provides money parsing and handling utilities.
//
// Amounts are held as integer cents. Conversion to and from decimal text
// happens only at the edges (JSON, sheets) through shopspring/decimal.
package core

import (
	"github.com/shopspring/decimal"
)

// MaxAmountCents bounds a single amount (100,000,000,000.00). Far below int64 so
// per-user totals cannot overflow.
const MaxAmountCents int64 = 10_000_000_000_000

var maxAmount = decimal.New(MaxAmountCents, -2)

const (
	// Exponent window checked before any arithmetic. Values outside it are either
	// far over MaxAmountCents or carry more precision than cents can hold.
	minExponent = -20
	// Integer digits of MaxAmount plus one.
	maxIntegerDigits = 12
)

// MoneyFromDecimal converts d to cents without rounding. Sign is preserved; callers
// enforce positivity through Validate.
func MoneyFromDecimal(d decimal.Decimal) (Money, error) {
	// NumDigits and Exponent read the coefficient as parsed, so this rejects inputs
	// such as 1e40000000 before Truncate or Shift rescale them.
	if d.IsZero() {
		return Money{}, nil
	}
	exp := d.Exponent()
	if int64(d.NumDigits())+int64(exp) > maxIntegerDigits {
		return Money{}, ErrAmountTooLarge
	}
	if exp < minExponent {
		return Money{}, ErrAmountPrecision
	}
	if !d.Equal(d.Truncate(2)) {
		return Money{}, ErrAmountPrecision
	}
	if d.Abs().GreaterThan(maxAmount) {
		return Money{}, ErrAmountTooLarge
	}
	return Money{Cents: d.Shift(2).IntPart()}, nil
}

// Decimal returns the exact decimal value of m.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(m.Cents, -2)
}

// String formats m with exactly two fractional digits, e.g. "30.50".
func (m Money) String() string {
	return m.Decimal().StringFixed(2)
}

// Float64 returns the value as a float64 for display purposes (spreadsheet cells).
// Use cents for calculations.
func (m Money) Float64() float64 {
	return float64(m.Cents) / 100.0
}

// Add sums two amounts. Bounded amounts keep realistic totals far from overflow.
func (m Money) Add(o Money) Money {
	return Money{Cents: m.Cents + o.Cents}
}

// MarshalJSON emits an unquoted number with two fractional digits.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalJSON accepts a JSON number or a numeric string.
func (m *Money) UnmarshalJSON(b []byte) error {
	var d decimal.Decimal
	if err := d.UnmarshalJSON(b); err != nil {
		return NewValidationError("amount", ErrInvalidAmount)
	}
	parsed, err := MoneyFromDecimal(d)
	if err != nil {
		return NewValidationError("amount", err)
	}
	*m = parsed
	return nil
}
