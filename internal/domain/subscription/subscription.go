package subscription

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/subtrack/backend/internal/domain/shared"
	"github.com/subtrack/backend/internal/domain/shared/valueobject"
)

// Status represents the lifecycle state of a subscription
type Status string

const (
	StatusActive    Status = "ACTIVE"
	StatusCancelled Status = "CANCELLED"
)

// IsValid checks if the status is a known value
func (s Status) IsValid() bool {
	return s == StatusActive || s == StatusCancelled
}

// String returns the string representation
func (s Status) String() string {
	return string(s)
}

const maxNameLength = 200

// Terms are the user-editable fields of a subscription. Price is a pointer so
// that an omitted price can be told apart from a zero one.
type Terms struct {
	Name            string
	Price           *valueobject.Money
	BillingCycle    BillingCycle
	NextPaymentDate time.Time
	AutoRenewal     bool
}

// Subscription is a recurring payment owned by a user.
// It is the aggregate root; once cancelled it accepts no further changes.
type Subscription struct {
	shared.BaseAggregateRoot
	UserID          uuid.UUID
	Name            string
	Price           valueobject.Money
	BillingCycle    BillingCycle
	NextPaymentDate time.Time
	AutoRenewal     bool
	Status          Status
	CancelledAt     *time.Time
}

// NewSubscription creates an active subscription after validating terms
func NewSubscription(userID uuid.UUID, terms Terms, clock shared.Clock) (*Subscription, error) {
	if userID == uuid.Nil {
		return nil, shared.NewDomainError(shared.CodeMissingField, "user id is required")
	}
	valid, err := validateTerms(terms, clock.Now())
	if err != nil {
		return nil, err
	}

	s := &Subscription{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(clock.Now()),
		UserID:            userID,
		Status:            StatusActive,
	}
	s.apply(valid)

	s.AddDomainEvent(NewSubscriptionCreatedEvent(s, clock.Now()))
	return s, nil
}

// Update replaces all editable fields. A cancelled subscription is rejected
// before the new terms are looked at; on any error nothing is changed.
func (s *Subscription) Update(terms Terms, clock shared.Clock) error {
	if s.Status == StatusCancelled {
		return shared.NewDomainError(shared.CodeInvalidState, "cannot update a cancelled subscription")
	}
	valid, err := validateTerms(terms, clock.Now())
	if err != nil {
		return err
	}

	s.apply(valid)
	s.Touch(clock.Now())
	s.IncrementVersion()

	s.AddDomainEvent(NewSubscriptionUpdatedEvent(s, clock.Now()))
	return nil
}

// Cancel moves the subscription to CANCELLED. Cancelling twice is an error.
func (s *Subscription) Cancel(clock shared.Clock) error {
	if s.Status == StatusCancelled {
		return shared.NewDomainError(shared.CodeInvalidState, "subscription is already cancelled")
	}

	now := clock.Now()
	s.Status = StatusCancelled
	s.CancelledAt = &now
	s.Touch(now)
	s.IncrementVersion()

	s.AddDomainEvent(NewSubscriptionCancelledEvent(s, now))
	return nil
}

// IsActive reports whether the subscription is ACTIVE
func (s *Subscription) IsActive() bool {
	return s.Status == StatusActive
}

// MonthlyCost returns the per-month cost in the subscription's own currency
func (s *Subscription) MonthlyCost() (valueobject.Money, error) {
	return valueobject.NewMoney(s.BillingCycle.MonthlyEquivalent(s.Price.Amount()), s.Price.Currency())
}

// IsOwnedBy reports whether userID owns the subscription
func (s *Subscription) IsOwnedBy(userID uuid.UUID) bool {
	return s.UserID == userID
}

func (s *Subscription) apply(t Terms) {
	s.Name = t.Name
	s.Price = *t.Price
	s.BillingCycle = t.BillingCycle
	s.NextPaymentDate = t.NextPaymentDate
	s.AutoRenewal = t.AutoRenewal
}

// validateTerms returns a normalized copy of t or the first violation found.
// Checks run in field order: name, price, cycle, date.
func validateTerms(t Terms, now time.Time) (Terms, error) {
	t.Name = strings.TrimSpace(t.Name)
	if t.Name == "" {
		return Terms{}, shared.NewDomainError(shared.CodeInvalidName, "subscription name cannot be empty")
	}
	if len(t.Name) > maxNameLength {
		return Terms{}, shared.NewDomainError(shared.CodeInvalidName,
			fmt.Sprintf("subscription name cannot exceed %d characters", maxNameLength))
	}
	if t.Price == nil {
		return Terms{}, shared.NewDomainError(shared.CodeMissingField, "price is required")
	}
	if t.BillingCycle == "" {
		return Terms{}, shared.NewDomainError(shared.CodeMissingField, "billing cycle is required")
	}
	if !t.BillingCycle.IsValid() {
		return Terms{}, shared.NewDomainError(shared.CodeInvalidBillingCycle,
			fmt.Sprintf("unknown billing cycle: %q", string(t.BillingCycle)))
	}
	if t.NextPaymentDate.IsZero() {
		return Terms{}, shared.NewDomainError(shared.CodeMissingField, "next payment date is required")
	}
	t.NextPaymentDate = DateOf(t.NextPaymentDate)
	if t.NextPaymentDate.Before(DateOf(now)) {
		return Terms{}, shared.NewDomainError(shared.CodeInvalidDate,
			fmt.Sprintf("next payment date %s cannot be in the past", t.NextPaymentDate.Format(DateLayout)))
	}
	return t, nil
}

// DateLayout is the calendar-date format used for payment dates
const DateLayout = "2006-01-02"

// DateOf truncates t to midnight UTC of its calendar date in t's own location
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a YYYY-MM-DD payment date
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, shared.NewDomainError(shared.CodeInvalidDate,
			fmt.Sprintf("invalid date %q, expected YYYY-MM-DD", s))
	}
	return t, nil
}
