// Package money converts between the engine's internal integer-cent amounts
// and the wire formats the payment providers expect. PayPal and Mercado Pago
// take decimal strings rounded to two places; Paystack and Square take
// integer minor units (kobo/cents).
package money

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// ToDecimalString renders cents as a 2-dp decimal string, e.g. 1999 -> "19.99".
func ToDecimalString(cents int64) string {
	return decimal.New(cents, -2).StringFixed(2)
}

// FromDecimalString parses a decimal amount into cents, rounding half-up to
// two places, e.g. "19.999" -> 2000.
func FromDecimalString(s string) (int64, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("invalid decimal amount %q: %w", s, err)
	}
	return d.Round(2).Shift(2).IntPart(), nil
}

// FromDecimal converts a provider-reported float amount into cents with
// half-up rounding. Used where providers report amounts as JSON numbers.
func FromDecimal(amount float64) int64 {
	return decimal.NewFromFloat(amount).Round(2).Shift(2).IntPart()
}

// ToMinorUnits returns the amount in the provider's integer minor units.
// Internal amounts are already cents, so this is the identity; it exists so
// call sites state which convention the payload uses.
func ToMinorUnits(cents int64) int64 {
	return cents
}

// FromMinorUnits converts provider minor units back into cents.
func FromMinorUnits(units int64) int64 {
	return units
}

// MinorUnitsFromDecimal converts a decimal major-unit amount (e.g. naira)
// into minor units with half-up rounding, e.g. 19.999 -> 2000.
func MinorUnitsFromDecimal(amount float64) int64 {
	return decimal.NewFromFloat(amount).Shift(2).Round(0).IntPart()
}

// DecimalFromMinorUnits renders minor units as a major-unit decimal string,
// e.g. 2000 -> "20.00".
func DecimalFromMinorUnits(units int64) string {
	return decimal.New(units, -2).StringFixed(2)
}
