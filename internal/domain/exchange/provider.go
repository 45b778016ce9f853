// Package exchange defines how money moves between currencies: a rate lookup
// contract, conversion on top of it, and providers that compose rates.
package exchange

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/subtrack/backend/internal/domain/shared/valueobject"
)

// RateProvider looks up how many units of `to` one unit of `from` buys.
// Implementations never return errors: any failure, including network
// trouble, is reported as a missing rate.
type RateProvider interface {
	Rate(ctx context.Context, from, to valueobject.Currency) (decimal.Decimal, bool)
}

// RateProviderFunc adapts a function to RateProvider
type RateProviderFunc func(ctx context.Context, from, to valueobject.Currency) (decimal.Decimal, bool)

// Rate implements RateProvider
func (f RateProviderFunc) Rate(ctx context.Context, from, to valueobject.Currency) (decimal.Decimal, bool) {
	return f(ctx, from, to)
}

// Convert expresses m in target. Money already in target is returned as is;
// otherwise the amount is scaled by the provider's rate and re-rounded.
// The second result is false when no usable rate exists.
func Convert(ctx context.Context, p RateProvider, m valueobject.Money, target valueobject.Currency) (valueobject.Money, bool) {
	if m.Currency() == target {
		return m, true
	}
	rate, ok := p.Rate(ctx, m.Currency(), target)
	if !ok || !rate.IsPositive() {
		return valueobject.Money{}, false
	}
	converted, err := valueobject.NewMoney(m.Amount().Mul(rate), target)
	if err != nil {
		return valueobject.Money{}, false
	}
	return converted, true
}
