package exchange

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/subtrack/backend/internal/domain/shared"
	"github.com/subtrack/backend/internal/domain/shared/valueobject"
)

type pair struct {
	from valueobject.Currency
	to   valueobject.Currency
}

// StaticProvider serves rates from an in-memory table. A pair that is not
// present is answered from its inverse when the inverse is known.
type StaticProvider struct {
	mu    sync.RWMutex
	rates map[pair]decimal.Decimal
}

// NewStaticProvider creates an empty StaticProvider
func NewStaticProvider() *StaticProvider {
	return &StaticProvider{rates: make(map[pair]decimal.Decimal)}
}

// ParseStaticRates builds a StaticProvider from entries such as
// {"USD_PLN": "3.95"}, the format used in configuration files.
func ParseStaticRates(entries map[string]string) (*StaticProvider, error) {
	p := NewStaticProvider()
	for key, value := range entries {
		parts := strings.Split(strings.ToUpper(key), "_")
		if len(parts) != 2 {
			return nil, shared.NewDomainError(shared.CodeInvalidInput,
				fmt.Sprintf("invalid rate key %q, expected FROM_TO", key))
		}
		from, err := valueobject.ParseCurrency(parts[0])
		if err != nil {
			return nil, err
		}
		to, err := valueobject.ParseCurrency(parts[1])
		if err != nil {
			return nil, err
		}
		rate, err := decimal.NewFromString(strings.TrimSpace(value))
		if err != nil {
			return nil, shared.NewDomainError(shared.CodeInvalidInput,
				fmt.Sprintf("invalid rate %q for %s", value, key))
		}
		if err := p.Set(from, to, rate); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// Set records the rate for one unit of from in to
func (p *StaticProvider) Set(from, to valueobject.Currency, rate decimal.Decimal) error {
	if !rate.IsPositive() {
		return shared.NewDomainError(shared.CodeInvalidInput,
			fmt.Sprintf("rate %s_%s must be positive", from, to))
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.rates[pair{from, to}] = rate
	return nil
}

// Rate implements RateProvider
func (p *StaticProvider) Rate(_ context.Context, from, to valueobject.Currency) (decimal.Decimal, bool) {
	if from == to {
		return decimal.NewFromInt(1), true
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	if r, ok := p.rates[pair{from, to}]; ok {
		return r, true
	}
	if inv, ok := p.rates[pair{to, from}]; ok {
		return decimal.NewFromInt(1).Div(inv), true
	}
	return decimal.Decimal{}, false
}
