package subscription

import (
	"context"
	"fmt"

	"github.com/subtrack/backend/internal/domain/exchange"
	"github.com/subtrack/backend/internal/domain/shared"
	"github.com/subtrack/backend/internal/domain/shared/valueobject"
)

// BillingService sums subscriptions into one monthly figure in a base currency.
// It is stateless and safe to share.
type BillingService struct {
	baseCurrency valueobject.Currency
	rates        exchange.RateProvider
}

// NewBillingService creates a BillingService
func NewBillingService(baseCurrency valueobject.Currency, rates exchange.RateProvider) *BillingService {
	return &BillingService{
		baseCurrency: baseCurrency,
		rates:        rates,
	}
}

// CalculateMonthlyCost returns the monthly cost of the active subscriptions
// in the base currency. Inactive ones are skipped. If any active
// subscription cannot be converted the whole call fails with
// CONVERSION_UNAVAILABLE and no partial total is returned.
func (s *BillingService) CalculateMonthlyCost(ctx context.Context, subs []*Subscription) (valueobject.Money, error) {
	total := valueobject.Zero(s.baseCurrency)

	for _, sub := range subs {
		if !sub.IsActive() {
			continue
		}

		monthly, err := sub.MonthlyCost()
		if err != nil {
			return valueobject.Money{}, err
		}

		converted, ok := exchange.Convert(ctx, s.rates, monthly, s.baseCurrency)
		if !ok {
			return valueobject.Money{}, shared.NewDomainError(shared.CodeConversionUnavailable,
				fmt.Sprintf("no exchange rate from %s to %s for subscription %s",
					monthly.Currency(), s.baseCurrency, sub.ID))
		}

		total, err = total.Add(converted)
		if err != nil {
			return valueobject.Money{}, err
		}
	}

	// Money keeps two places on every step; NewMoney re-applies the final rounding.
	return valueobject.NewMoney(total.Amount(), s.baseCurrency)
}
