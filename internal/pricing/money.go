package pricing

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// Dollars converts cents to the float amount used by the order payload.
func Dollars(cents int64) float64 {
	return decimal.New(cents, -2).InexactFloat64()
}

// Format renders cents as a fixed two-decimal string, e.g. 4536 -> "45.36".
func Format(cents int64) string {
	return decimal.New(cents, -2).StringFixed(2)
}

// FromDollars converts a float amount to cents, rounding half away from zero.
func FromDollars(amount float64) int64 {
	return decimal.NewFromFloat(amount).Mul(hundred).Round(0).IntPart()
}
