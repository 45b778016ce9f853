package subscription

import (
	"time"

	"github.com/google/uuid"

	"github.com/subtrack/backend/internal/domain/shared"
)

// AggregateTypeSubscription is the aggregate type name carried by events
const AggregateTypeSubscription = "Subscription"

// Subscription domain event types
const (
	EventTypeSubscriptionCreated   = "SubscriptionCreated"
	EventTypeSubscriptionUpdated   = "SubscriptionUpdated"
	EventTypeSubscriptionCancelled = "SubscriptionCancelled"
)

// SubscriptionCreatedEvent is published when a subscription is created
type SubscriptionCreatedEvent struct {
	shared.BaseDomainEvent
	UserID       uuid.UUID    `json:"user_id"`
	Name         string       `json:"name"`
	Amount       string       `json:"amount"`
	Currency     string       `json:"currency"`
	BillingCycle BillingCycle `json:"billing_cycle"`
}

// NewSubscriptionCreatedEvent creates a new SubscriptionCreatedEvent
func NewSubscriptionCreatedEvent(s *Subscription, at time.Time) *SubscriptionCreatedEvent {
	return &SubscriptionCreatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeSubscriptionCreated, AggregateTypeSubscription, s.ID, at),
		UserID:          s.UserID,
		Name:            s.Name,
		Amount:          s.Price.StringFixed(),
		Currency:        s.Price.Currency().String(),
		BillingCycle:    s.BillingCycle,
	}
}

// SubscriptionUpdatedEvent is published when a subscription's terms change
type SubscriptionUpdatedEvent struct {
	shared.BaseDomainEvent
	UserID          uuid.UUID    `json:"user_id"`
	Name            string       `json:"name"`
	Amount          string       `json:"amount"`
	Currency        string       `json:"currency"`
	BillingCycle    BillingCycle `json:"billing_cycle"`
	NextPaymentDate string       `json:"next_payment_date"`
}

// NewSubscriptionUpdatedEvent creates a new SubscriptionUpdatedEvent
func NewSubscriptionUpdatedEvent(s *Subscription, at time.Time) *SubscriptionUpdatedEvent {
	return &SubscriptionUpdatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeSubscriptionUpdated, AggregateTypeSubscription, s.ID, at),
		UserID:          s.UserID,
		Name:            s.Name,
		Amount:          s.Price.StringFixed(),
		Currency:        s.Price.Currency().String(),
		BillingCycle:    s.BillingCycle,
		NextPaymentDate: s.NextPaymentDate.Format(DateLayout),
	}
}

// SubscriptionCancelledEvent is published when a subscription is cancelled
type SubscriptionCancelledEvent struct {
	shared.BaseDomainEvent
	UserID uuid.UUID `json:"user_id"`
	Name   string    `json:"name"`
}

// NewSubscriptionCancelledEvent creates a new SubscriptionCancelledEvent
func NewSubscriptionCancelledEvent(s *Subscription, at time.Time) *SubscriptionCancelledEvent {
	return &SubscriptionCancelledEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeSubscriptionCancelled, AggregateTypeSubscription, s.ID, at),
		UserID:          s.UserID,
		Name:            s.Name,
	}
}
