package subscription

import (
	"time"

	"github.com/google/uuid"

	"github.com/subtrack/backend/internal/domain/subscription"
)

// CreateCommand carries the fields of a new subscription as received from
// the transport layer. Values are parsed and validated by the service.
type CreateCommand struct {
	UserID          uuid.UUID
	Name            string
	Price           string
	Currency        string
	BillingCycle    string
	NextPaymentDate string
	AutoRenewal     bool
}

// UpdateCommand replaces every editable field of a subscription
type UpdateCommand struct {
	Name            string
	Price           string
	Currency        string
	BillingCycle    string
	NextPaymentDate string
	AutoRenewal     bool
}

// SubscriptionDTO is the read model returned to clients
type SubscriptionDTO struct {
	ID              uuid.UUID `json:"id"`
	UserID          uuid.UUID `json:"userId"`
	Name            string    `json:"name"`
	Price           string    `json:"price"`
	Currency        string    `json:"currency"`
	BillingCycle    string    `json:"billingCycle"`
	MonthlyCost     string    `json:"monthlyCost"`
	NextPaymentDate string    `json:"nextPaymentDate"`
	AutoRenewal     bool      `json:"autoRenewal"`
	Status          string    `json:"status"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// MonthlyCostDTO is the aggregated monthly spend of a user
type MonthlyCostDTO struct {
	Amount            string `json:"amount"`
	Currency          string `json:"currency"`
	SubscriptionCount int    `json:"subscriptionCount"`
}

// ToSubscriptionDTO converts a domain subscription to its DTO
func ToSubscriptionDTO(s *subscription.Subscription) SubscriptionDTO {
	dto := SubscriptionDTO{
		ID:              s.ID,
		UserID:          s.UserID,
		Name:            s.Name,
		Price:           s.Price.StringFixed(),
		Currency:        s.Price.Currency().String(),
		BillingCycle:    s.BillingCycle.String(),
		NextPaymentDate: s.NextPaymentDate.Format(subscription.DateLayout),
		AutoRenewal:     s.AutoRenewal,
		Status:          s.Status.String(),
		CreatedAt:       s.CreatedAt,
		UpdatedAt:       s.UpdatedAt,
	}
	if monthly, err := s.MonthlyCost(); err == nil {
		dto.MonthlyCost = monthly.StringFixed()
	}
	return dto
}

// ToSubscriptionDTOs converts a slice of subscriptions
func ToSubscriptionDTOs(subs []*subscription.Subscription) []SubscriptionDTO {
	out := make([]SubscriptionDTO, len(subs))
	for i, s := range subs {
		out[i] = ToSubscriptionDTO(s)
	}
	return out
}
