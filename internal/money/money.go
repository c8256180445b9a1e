// Package money provides a currency-tagged decimal amount.
package money

import (
	"errors"
	"strings"

	gomoney "github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// ErrDivisionByZero is returned by Div when the divisor is zero.
var ErrDivisionByZero = errors.New("money: division by zero")

// Money is an amount in the major unit of Currency.
// The gorm tags let it be embedded with a column prefix, e.g.
// `gorm:"embedded;embeddedPrefix:book_value_"`.
type Money struct {
	Amount   decimal.Decimal `gorm:"column:amount;type:numeric(20,6);not null" json:"amount"`
	Currency string          `gorm:"column:currency;type:varchar(3);not null" json:"currency"`
}

// New builds a Money with a normalized currency code.
func New(amount decimal.Decimal, currency string) Money {
	return Money{Amount: amount, Currency: NormalizeCurrency(currency)}
}

// NormalizeCurrency trims and uppercases a currency code.
func NormalizeCurrency(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// IsKnownCurrency reports whether code is an ISO 4217 currency known to go-money.
func IsKnownCurrency(code string) bool {
	return gomoney.GetCurrency(NormalizeCurrency(code)) != nil
}

// Retag returns the same amount tagged with another currency. No conversion
// is applied.
func (m Money) Retag(currency string) Money {
	return New(m.Amount, currency)
}

// IsZero reports whether the amount is zero.
func (m Money) IsZero() bool { return m.Amount.IsZero() }

// IsPositive reports whether the amount is strictly positive.
func (m Money) IsPositive() bool { return m.Amount.IsPositive() }

// IsNegative reports whether the amount is strictly negative.
func (m Money) IsNegative() bool { return m.Amount.IsNegative() }

// Equal compares amount and currency.
func (m Money) Equal(n Money) bool {
	return m.Currency == n.Currency && m.Amount.Equal(n.Amount)
}

// Mul multiplies the amount by a quantity.
func (m Money) Mul(q decimal.Decimal) Money {
	return Money{Amount: m.Amount.Mul(q), Currency: m.Currency}
}

// Div divides the amount by a quantity.
func (m Money) Div(q decimal.Decimal) (Money, error) {
	if q.IsZero() {
		return Money{}, ErrDivisionByZero
	}
	return Money{Amount: m.Amount.Div(q), Currency: m.Currency}, nil
}

// String formats the amount using the currency's display template, rounded
// to its minor unit. Unknown currencies fall back to "<amount> <code>".
func (m Money) String() string {
	cur := gomoney.GetCurrency(m.Currency)
	if cur == nil {
		return m.Amount.String() + " " + m.Currency
	}
	minor := m.Amount.Shift(int32(cur.Fraction)).Round(0)
	return cur.Formatter().Format(minor.IntPart())
}
