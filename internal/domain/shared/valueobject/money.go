package valueobject

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"

	"github.com/subtrack/backend/internal/domain/shared"
)

// Currency represents a currency code (ISO 4217)
type Currency string

const (
	PLN Currency = "PLN" // Polish Zloty (default)
	USD Currency = "USD"
	EUR Currency = "EUR"
	GBP Currency = "GBP"
	CHF Currency = "CHF"
)

// DefaultCurrency is the default base currency for the system
const DefaultCurrency = PLN

// MoneyScale is the number of fractional digits every Money amount carries
const MoneyScale int32 = 2

// ParseCurrency normalizes s and checks it against the ISO 4217 table.
func ParseCurrency(s string) (Currency, error) {
	code := strings.ToUpper(strings.TrimSpace(s))
	if code == "" {
		return "", shared.ErrMissingCurrency
	}
	unit, err := currency.ParseISO(code)
	if err != nil {
		return "", shared.NewDomainError(shared.CodeInvalidCurrency,
			fmt.Sprintf("invalid currency code: %s", s))
	}
	return Currency(unit.String()), nil
}

// String returns the currency code
func (c Currency) String() string {
	return string(c)
}

// Money is a value object representing a non-negative monetary amount.
// It is immutable and every amount is held at two decimal places.
type Money struct {
	amount   decimal.Decimal
	currency Currency
}

// NewMoney creates a new Money, rounding the amount half-up to two places
func NewMoney(amount decimal.Decimal, cur Currency) (Money, error) {
	if cur == "" {
		return Money{}, shared.ErrMissingCurrency
	}
	parsed, err := ParseCurrency(string(cur))
	if err != nil {
		return Money{}, err
	}
	if amount.IsNegative() {
		return Money{}, shared.NewDomainError(shared.CodeInvalidAmount,
			fmt.Sprintf("amount cannot be negative: %s", amount.String()))
	}
	return Money{
		amount:   round(amount),
		currency: parsed,
	}, nil
}

// NewMoneyFromString creates Money from a decimal string such as "29.99"
func NewMoneyFromString(amount string, cur Currency) (Money, error) {
	amount = strings.TrimSpace(amount)
	if amount == "" {
		return Money{}, shared.ErrMissingAmount
	}
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return Money{}, shared.NewDomainError(shared.CodeInvalidAmount,
			fmt.Sprintf("invalid amount: %s", amount))
	}
	return NewMoney(d, cur)
}

// MustNewMoney is NewMoney for literals known to be valid. It panics on error.
func MustNewMoney(amount string, cur Currency) Money {
	m, err := NewMoneyFromString(amount, cur)
	if err != nil {
		panic(err)
	}
	return m
}

// Zero returns a zero-value Money in the specified currency
func Zero(cur Currency) Money {
	return Money{amount: decimal.Zero, currency: cur}
}

// Amount returns the decimal amount
func (m Money) Amount() decimal.Decimal {
	return m.amount
}

// Currency returns the currency code
func (m Money) Currency() Currency {
	return m.currency
}

// IsZero returns true if the amount is zero
func (m Money) IsZero() bool {
	return m.amount.IsZero()
}

// Add returns a new Money with the sum of both amounts.
// Returns CURRENCY_MISMATCH if currencies differ.
func (m Money) Add(other Money) (Money, error) {
	if m.currency != other.currency {
		return Money{}, shared.NewDomainError(shared.CodeCurrencyMismatch,
			fmt.Sprintf("cannot add money with different currencies: %s and %s", m.currency, other.currency))
	}
	return Money{
		amount:   round(m.amount.Add(other.amount)),
		currency: m.currency,
	}, nil
}

// Multiply returns a new Money multiplied by factor and re-rounded to two places.
// A negative factor would break the non-negative invariant and is rejected.
func (m Money) Multiply(factor decimal.Decimal) (Money, error) {
	if factor.IsNegative() {
		return Money{}, shared.NewDomainError(shared.CodeInvalidAmount,
			fmt.Sprintf("cannot multiply money by negative factor %s", factor.String()))
	}
	return Money{
		amount:   round(m.amount.Mul(factor)),
		currency: m.currency,
	}, nil
}

// Equals returns true if both Money values are equal (same amount and currency)
func (m Money) Equals(other Money) bool {
	return m.currency == other.currency && m.amount.Equal(other.amount)
}

// String returns a string representation of the Money
func (m Money) String() string {
	return fmt.Sprintf("%s %s", m.amount.StringFixed(MoneyScale), m.currency)
}

// StringFixed returns the amount with exactly two decimal places
func (m Money) StringFixed() string {
	return m.amount.StringFixed(MoneyScale)
}

// MarshalJSON implements json.Marshaler
func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Amount   string   `json:"amount"`
		Currency Currency `json:"currency"`
	}{
		Amount:   m.StringFixed(),
		Currency: m.currency,
	})
}

// UnmarshalJSON implements json.Unmarshaler. Unlike a plain field assignment it
// runs the payload through NewMoneyFromString, so decoded values obey the same
// invariants as constructed ones.
func (m *Money) UnmarshalJSON(data []byte) error {
	var v struct {
		Amount   string   `json:"amount"`
		Currency Currency `json:"currency"`
	}
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	parsed, err := NewMoneyFromString(v.Amount, v.Currency)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// round applies half-up rounding. decimal.Round rounds half away from zero,
// which is half-up for the non-negative amounts Money admits.
func round(d decimal.Decimal) decimal.Decimal {
	return d.Round(MoneyScale)
}
