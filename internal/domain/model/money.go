package model

import (
	"github.com/shopspring/decimal"

	"propertyhub-payments/internal/domain"
)

var hundred = decimal.NewFromInt(100)

// MinorFromMajor converts a major-unit amount to gateway minor units.
// Amounts with fractional minor units are rejected.
func MinorFromMajor(major decimal.Decimal) (int64, error) {
	if !major.IsPositive() {
		return 0, domain.ErrInvalidAmount
	}
	minor := major.Mul(hundred)
	if !minor.Equal(minor.Truncate(0)) {
		return 0, domain.Invalid("amount has more than two decimal places")
	}
	return minor.IntPart(), nil
}

// ToMinor converts without validation; used for comparisons.
func ToMinor(major decimal.Decimal) int64 {
	return major.Mul(hundred).Round(0).IntPart()
}

// MajorFromMinor converts minor units back to major units.
func MajorFromMinor(minor int64) decimal.Decimal {
	return decimal.New(minor, -2)
}
