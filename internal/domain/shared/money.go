package shared

import (
	"errors"
	"math"

	"github.com/shopspring/decimal"
)

// MinorUnitExponent is the number of decimal places of the ledger currency
const MinorUnitExponent = 2

var ErrInvalidMoneyAmount = errors.New("amount must be a positive value with at most two decimal places")

var maxMinorUnits = decimal.NewFromInt(math.MaxInt64)

// ToMinorUnits converts a major-unit amount such as 12.50 into minor units (1250).
// Zero, negative, overflowing or over-precise amounts are rejected.
func ToMinorUnits(amount decimal.Decimal) (int64, error) {
	if !amount.IsPositive() {
		return 0, ErrInvalidMoneyAmount
	}
	minor := amount.Shift(MinorUnitExponent)
	if !minor.Equal(minor.Truncate(0)) {
		return 0, ErrInvalidMoneyAmount
	}
	if minor.GreaterThan(maxMinorUnits) {
		return 0, ErrInvalidMoneyAmount
	}
	return minor.IntPart(), nil
}

// FromMinorUnits converts minor units back to a major-unit decimal
func FromMinorUnits(amount int64) decimal.Decimal {
	return decimal.New(amount, -MinorUnitExponent)
}
