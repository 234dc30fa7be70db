package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// FeeSchedule computes the fee charged on an amount:
// fee = clamp(amount * percentage/100 + fixed, min, max).
// All terms are exact decimals in the currency of the amount.
// Read-only during transaction processing.
type FeeSchedule struct {
	Percentage decimal.Decimal `json:"percentage"`
	Fixed      decimal.Decimal `json:"fixed"`
	Min        decimal.Decimal `json:"min"`
	Max        decimal.Decimal `json:"max"`
}

// NewFeeSchedule parses the four decimal strings of a schedule.
func NewFeeSchedule(percentage, fixed, min, max string) (FeeSchedule, error) {
	var f FeeSchedule
	var err error
	if f.Percentage, err = decimal.NewFromString(percentage); err != nil {
		return FeeSchedule{}, fmt.Errorf("parse fee percentage %q: %w", percentage, err)
	}
	if f.Fixed, err = decimal.NewFromString(fixed); err != nil {
		return FeeSchedule{}, fmt.Errorf("parse fixed fee %q: %w", fixed, err)
	}
	if f.Min, err = decimal.NewFromString(min); err != nil {
		return FeeSchedule{}, fmt.Errorf("parse min fee %q: %w", min, err)
	}
	if f.Max, err = decimal.NewFromString(max); err != nil {
		return FeeSchedule{}, fmt.Errorf("parse max fee %q: %w", max, err)
	}
	return f, nil
}

// ComputeFee is a pure function of the amount. Calling it twice with the
// same input yields the same Money, and the result always lies in [Min, Max].
// Negative amounts are rejected upstream and never reach this function.
func (f FeeSchedule) ComputeFee(amount Money) Money {
	fee := amount.Amount().Mul(f.Percentage).Div(hundred).Add(f.Fixed)
	if fee.LessThan(f.Min) {
		fee = f.Min
	}
	if fee.GreaterThan(f.Max) {
		fee = f.Max
	}
	return NewMoney(fee, amount.Currency())
}
