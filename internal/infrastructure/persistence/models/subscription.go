package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/subtrack/backend/internal/domain/shared/valueobject"
	"github.com/subtrack/backend/internal/domain/subscription"
)

// SubscriptionModel is the persistence model for the Subscription aggregate.
type SubscriptionModel struct {
	AggregateModel
	UserID          uuid.UUID                 `gorm:"type:uuid;not null;index;index:idx_subscriptions_user_status,priority:1"`
	Name            string                    `gorm:"type:varchar(200);not null"`
	Amount          decimal.Decimal           `gorm:"type:decimal(19,2);not null"`
	Currency        string                    `gorm:"type:char(3);not null"`
	BillingCycle    subscription.BillingCycle `gorm:"type:varchar(20);not null"`
	NextPaymentDate time.Time                 `gorm:"type:date;not null"`
	AutoRenewal     bool                      `gorm:"not null"`
	Status          subscription.Status       `gorm:"type:varchar(20);not null;index:idx_subscriptions_user_status,priority:2"`
	CancelledAt     *time.Time
}

// TableName returns the table name for GORM
func (SubscriptionModel) TableName() string {
	return "subscriptions"
}

// ToDomain rebuilds a Subscription from a stored row. Stored rows may carry a
// next payment date in the past, so the creation-time checks are not repeated.
func (m *SubscriptionModel) ToDomain() (*subscription.Subscription, error) {
	price, err := valueobject.NewMoney(m.Amount, valueobject.Currency(strings.TrimSpace(m.Currency)))
	if err != nil {
		return nil, fmt.Errorf("subscription %s: invalid stored price: %w", m.ID, err)
	}
	if !m.BillingCycle.IsValid() {
		return nil, fmt.Errorf("subscription %s: invalid stored billing cycle %q", m.ID, m.BillingCycle)
	}
	if !m.Status.IsValid() {
		return nil, fmt.Errorf("subscription %s: invalid stored status %q", m.ID, m.Status)
	}

	return &subscription.Subscription{
		BaseAggregateRoot: m.ToDomainAggregateRoot(),
		UserID:            m.UserID,
		Name:              m.Name,
		Price:             price,
		BillingCycle:      m.BillingCycle,
		NextPaymentDate:   subscription.DateOf(m.NextPaymentDate),
		AutoRenewal:       m.AutoRenewal,
		Status:            m.Status,
		CancelledAt:       m.CancelledAt,
	}, nil
}

// FromDomain populates the persistence model from a domain Subscription.
func (m *SubscriptionModel) FromDomain(s *subscription.Subscription) {
	m.FromDomainAggregateRoot(s.BaseAggregateRoot)
	m.UserID = s.UserID
	m.Name = s.Name
	m.Amount = s.Price.Amount()
	m.Currency = s.Price.Currency().String()
	m.BillingCycle = s.BillingCycle
	m.NextPaymentDate = subscription.DateOf(s.NextPaymentDate)
	m.AutoRenewal = s.AutoRenewal
	m.Status = s.Status
	m.CancelledAt = s.CancelledAt
}

// SubscriptionModelFromDomain creates a new persistence model from a domain Subscription.
func SubscriptionModelFromDomain(s *subscription.Subscription) *SubscriptionModel {
	m := &SubscriptionModel{}
	m.FromDomain(s)
	return m
}
