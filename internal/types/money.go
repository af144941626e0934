// README: Common money value object used across modules.
package types

import "math"

// Money holds an amount in minor units (1/100 of the currency unit).
type Money struct {
	Amount   int64
	Currency string
}

const DefaultCurrency = "INR"

// maxMinorUnits is 2^63, the first float64 that no longer fits in int64.
const maxMinorUnits = float64(1 << 63)

// MoneyFromMajor rounds v half-up to two decimals. NaN and negative values
// become zero; +Inf and amounts beyond the int64 range saturate at
// math.MaxInt64.
func MoneyFromMajor(v float64, currency string) Money {
	if math.IsNaN(v) || v < 0 {
		v = 0
	}
	if currency == "" {
		currency = DefaultCurrency
	}
	minor := math.Floor(v*100 + 0.5)
	if minor >= maxMinorUnits {
		return Money{Amount: math.MaxInt64, Currency: currency}
	}
	return Money{Amount: int64(minor), Currency: currency}
}

// Major returns the amount in currency units.
func (m Money) Major() float64 {
	return float64(m.Amount) / 100
}
