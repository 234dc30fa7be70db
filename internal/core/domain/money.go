package domain

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// MoneyScale is the number of fractional digits carried by every Money value.
// All rounding is half-up to this scale.
const MoneyScale = 2

// Money is an immutable exact-decimal amount tagged with a currency code.
// No operation on it ever goes through binary floating point: repeated float
// arithmetic on currency amounts silently drifts, and this type exists to
// make that impossible.
type Money struct {
	amount   decimal.Decimal
	currency string
}

// NewMoney builds a Money from an exact decimal, rounded half-up to MoneyScale.
func NewMoney(amount decimal.Decimal, currency string) Money {
	return Money{amount: amount.Round(MoneyScale), currency: currency}
}

// MoneyFromString parses a decimal string ("150.00") into a Money.
func MoneyFromString(s, currency string) (Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, fmt.Errorf("parse amount %q: %w", s, err)
	}
	return NewMoney(d, currency), nil
}

// MoneyFromInt builds a Money from a whole number of currency units.
func MoneyFromInt(n int64, currency string) Money {
	return NewMoney(decimal.NewFromInt(n), currency)
}

// ZeroMoney returns the zero amount in the given currency.
func ZeroMoney(currency string) Money {
	return Money{amount: decimal.Zero.Round(MoneyScale), currency: currency}
}

// Amount returns the underlying decimal value.
func (m Money) Amount() decimal.Decimal { return m.amount }

// Currency returns the ISO currency code.
func (m Money) Currency() string { return m.currency }

// Add returns m + o. Fails when currencies differ.
func (m Money) Add(o Money) (Money, error) {
	if m.currency != o.currency {
		return Money{}, fmt.Errorf("%w: %s + %s", ErrCurrencyMismatch, m.currency, o.currency)
	}
	return Money{amount: m.amount.Add(o.amount), currency: m.currency}, nil
}

// Sub returns m - o. Fails when currencies differ.
func (m Money) Sub(o Money) (Money, error) {
	if m.currency != o.currency {
		return Money{}, fmt.Errorf("%w: %s - %s", ErrCurrencyMismatch, m.currency, o.currency)
	}
	return Money{amount: m.amount.Sub(o.amount), currency: m.currency}, nil
}

// MulRate multiplies by a dimensionless decimal rate, rounding half-up back
// to MoneyScale.
func (m Money) MulRate(rate decimal.Decimal) Money {
	return Money{amount: m.amount.Mul(rate).Round(MoneyScale), currency: m.currency}
}

// ConvertTo applies a conversion rate and retags the result with the target
// currency. This is the single conversion step a transaction may carry.
func (m Money) ConvertTo(currency string, rate decimal.Decimal) Money {
	return Money{amount: m.amount.Mul(rate).Round(MoneyScale), currency: currency}
}

// Clamp bounds m into [min, max]. Fails when currencies differ.
func (m Money) Clamp(min, max Money) (Money, error) {
	if m.currency != min.currency || m.currency != max.currency {
		return Money{}, fmt.Errorf("%w: clamp %s into [%s, %s]", ErrCurrencyMismatch, m.currency, min.currency, max.currency)
	}
	if m.amount.LessThan(min.amount) {
		return min, nil
	}
	if m.amount.GreaterThan(max.amount) {
		return max, nil
	}
	return m, nil
}

// Cmp compares two amounts: -1 if m < o, 0 if equal, +1 if m > o.
func (m Money) Cmp(o Money) (int, error) {
	if m.currency != o.currency {
		return 0, fmt.Errorf("%w: compare %s with %s", ErrCurrencyMismatch, m.currency, o.currency)
	}
	return m.amount.Cmp(o.amount), nil
}

// Equal reports whether amount and currency both match.
func (m Money) Equal(o Money) bool {
	return m.currency == o.currency && m.amount.Equal(o.amount)
}

// IsPositive reports whether the amount is strictly greater than zero.
func (m Money) IsPositive() bool { return m.amount.IsPositive() }

// IsZero reports whether the amount is exactly zero.
func (m Money) IsZero() bool { return m.amount.IsZero() }

// String renders "150.00 XOF".
func (m Money) String() string {
	return m.amount.StringFixed(MoneyScale) + " " + m.currency
}

type moneyJSON struct {
	Amount   string `json:"amount"`
	Currency string `json:"currency"`
}

// MarshalJSON renders the amount as a decimal string, never a float.
func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(moneyJSON{
		Amount:   m.amount.StringFixed(MoneyScale),
		Currency: m.currency,
	})
}

// UnmarshalJSON parses the decimal-string form produced by MarshalJSON.
func (m *Money) UnmarshalJSON(data []byte) error {
	var raw moneyJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := MoneyFromString(raw.Amount, raw.Currency)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
