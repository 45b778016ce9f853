package exchange

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/subtrack/backend/internal/domain/shared/valueobject"
)

// PivotProvider decorates a provider with cross rates through a pivot
// currency. When the direct rate is missing it multiplies from→pivot by
// pivot→to. If either leg is missing the pair has no rate.
type PivotProvider struct {
	direct RateProvider
	pivot  valueobject.Currency
}

// NewPivotProvider creates a PivotProvider
func NewPivotProvider(direct RateProvider, pivot valueobject.Currency) *PivotProvider {
	return &PivotProvider{direct: direct, pivot: pivot}
}

// Pivot returns the pivot currency
func (p *PivotProvider) Pivot() valueobject.Currency {
	return p.pivot
}

// Rate implements RateProvider
func (p *PivotProvider) Rate(ctx context.Context, from, to valueobject.Currency) (decimal.Decimal, bool) {
	if from == to {
		return decimal.NewFromInt(1), true
	}
	if r, ok := p.direct.Rate(ctx, from, to); ok {
		return r, true
	}
	if from == p.pivot || to == p.pivot {
		return decimal.Decimal{}, false
	}

	toPivot, ok := p.direct.Rate(ctx, from, p.pivot)
	if !ok {
		return decimal.Decimal{}, false
	}
	fromPivot, ok := p.direct.Rate(ctx, p.pivot, to)
	if !ok {
		return decimal.Decimal{}, false
	}
	return toPivot.Mul(fromPivot), true
}
