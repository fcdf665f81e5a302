package model

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

// Money is an amount in the currency's minor unit (cents).
type Money int64

// MinorUnits converts a decimal price into minor units, rounding half away
// from zero on price × 100.
func MinorUnits(price decimal.Decimal) int64 {
	return price.Shift(2).Round(0).IntPart()
}

// MoneyFromDecimal converts a decimal amount into Money.
func MoneyFromDecimal(amount decimal.Decimal) Money {
	return Money(MinorUnits(amount))
}

// Times multiplies the amount by a quantity. Callers handling untrusted
// quantities use CheckedTimes.
func (m Money) Times(quantity int) Money {
	return m * Money(quantity)
}

// CheckedTimes multiplies the amount by a quantity, reporting false when the
// product does not fit in Money.
func (m Money) CheckedTimes(quantity int) (Money, bool) {
	if m == 0 || quantity == 0 {
		return 0, true
	}
	q := Money(quantity)
	if (m == -1 && q == math.MinInt64) || (q == -1 && m == math.MinInt64) {
		return 0, false
	}
	product := m * q
	if product/q != m {
		return 0, false
	}
	return product, true
}

// CheckedAdd adds two amounts, reporting false on overflow.
func (m Money) CheckedAdd(n Money) (Money, bool) {
	sum := m + n
	if (n > 0 && sum < m) || (n < 0 && sum > m) {
		return 0, false
	}
	return sum, true
}

// Decimal returns the amount in major units.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(int64(m), -2)
}

func (m Money) String() string {
	return m.Decimal().StringFixed(2)
}

// MarshalJSON renders the amount as a two-decimal JSON number.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalJSON accepts a JSON number or numeric string in major units.
func (m *Money) UnmarshalJSON(data []byte) error {
	var d decimal.Decimal
	if err := d.UnmarshalJSON(data); err != nil {
		return fmt.Errorf("invalid money amount: %w", err)
	}
	*m = MoneyFromDecimal(d)
	return nil
}
