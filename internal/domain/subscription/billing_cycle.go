package subscription

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/subtrack/backend/internal/domain/shared"
)

// BillingCycle represents how often a subscription is charged
type BillingCycle string

const (
	BillingCycleMonthly BillingCycle = "MONTHLY"
	BillingCycleYearly  BillingCycle = "YEARLY"
	BillingCycleTrial   BillingCycle = "TRIAL"
)

var monthsPerYear = decimal.NewFromInt(12)

// AllBillingCycles returns every supported cycle
func AllBillingCycles() []BillingCycle {
	return []BillingCycle{BillingCycleMonthly, BillingCycleYearly, BillingCycleTrial}
}

// ParseBillingCycle converts a case-insensitive name to a BillingCycle
func ParseBillingCycle(s string) (BillingCycle, error) {
	c := BillingCycle(strings.ToUpper(strings.TrimSpace(s)))
	if !c.IsValid() {
		return "", shared.NewDomainError(shared.CodeInvalidBillingCycle,
			fmt.Sprintf("unknown billing cycle: %q", s))
	}
	return c, nil
}

// String returns the string representation
func (c BillingCycle) String() string {
	return string(c)
}

// IsValid checks if the billing cycle is one of the known values
func (c BillingCycle) IsValid() bool {
	switch c {
	case BillingCycleMonthly, BillingCycleYearly, BillingCycleTrial:
		return true
	}
	return false
}

// MonthlyEquivalent normalizes a per-cycle price to its per-month cost.
// The result is not rounded; callers wrap it in Money.
func (c BillingCycle) MonthlyEquivalent(total decimal.Decimal) decimal.Decimal {
	switch c {
	case BillingCycleTrial:
		return decimal.Zero
	case BillingCycleYearly:
		return total.Div(monthsPerYear)
	case BillingCycleMonthly:
		return total
	}
	panic(fmt.Sprintf("subscription: unhandled billing cycle %q", string(c)))
}
