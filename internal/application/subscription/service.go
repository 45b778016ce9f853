// Package subscription implements the subscription use cases on top of the
// domain aggregate, the repository and the billing service.
package subscription

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/subtrack/backend/internal/domain/shared"
	"github.com/subtrack/backend/internal/domain/shared/valueobject"
	"github.com/subtrack/backend/internal/domain/subscription"
	"github.com/subtrack/backend/internal/infrastructure/logger"
	"github.com/subtrack/backend/internal/infrastructure/telemetry"
)

const spanService = "subscription"

// Service coordinates subscription use cases
type Service struct {
	repo      subscription.Repository
	billing   *subscription.BillingService
	publisher shared.EventPublisher
	clock     shared.Clock
	logger    *zap.Logger

	meter metric.Meter
	// nil when no meter is configured
	operations  *telemetry.Counter
	unavailable *telemetry.Counter
}

// Option customizes a Service
type Option func(*Service)

// WithClock overrides the wall clock, used by tests
func WithClock(c shared.Clock) Option {
	return func(s *Service) { s.clock = c }
}

// WithMeter counts completed lifecycle operations
// (subtrack_subscription_operations_total) and monthly cost requests that
// failed for lack of a rate (subtrack_conversion_unavailable_total).
func WithMeter(meter metric.Meter) Option {
	return func(s *Service) { s.meter = meter }
}

// NewService creates a Service. publisher may be nil when no one listens
// for subscription events.
func NewService(
	repo subscription.Repository,
	billing *subscription.BillingService,
	publisher shared.EventPublisher,
	logger *zap.Logger,
	opts ...Option,
) *Service {
	s := &Service{
		repo:      repo,
		billing:   billing,
		publisher: publisher,
		clock:     shared.SystemClock(),
		logger:    logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.meter != nil {
		if err := s.registerMetrics(); err != nil {
			s.logger.Warn("Subscription metrics disabled", zap.Error(err))
			s.operations, s.unavailable = nil, nil
		}
	}
	return s
}

func (s *Service) registerMetrics() error {
	var err error
	s.operations, err = telemetry.NewCounter(s.meter, "subtrack_subscription_operations_total",
		"Subscription lifecycle operations by kind", "{operation}")
	if err != nil {
		return err
	}
	s.unavailable, err = telemetry.NewCounter(s.meter, "subtrack_conversion_unavailable_total",
		"Monthly cost requests that failed because a rate was unavailable", "{request}")
	return err
}

func (s *Service) countOperation(ctx context.Context, op string) {
	if s.operations != nil {
		s.operations.Inc(ctx, telemetry.AttrOperation.String(op))
	}
}

// Create registers a new active subscription for cmd.UserID
func (s *Service) Create(ctx context.Context, cmd CreateCommand) (*SubscriptionDTO, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, spanService, "create",
		attribute.String("user.id", cmd.UserID.String()))
	defer span.End()

	terms, err := parseTerms(cmd.Name, cmd.Price, cmd.Currency, cmd.BillingCycle, cmd.NextPaymentDate, cmd.AutoRenewal)
	if err != nil {
		return nil, err
	}

	sub, err := subscription.NewSubscription(cmd.UserID, terms, s.clock)
	if err != nil {
		return nil, err
	}

	if err := s.save(ctx, sub); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	s.countOperation(ctx, "create")
	logger.Enrich(ctx, s.logger).Info("Subscription created",
		zap.String("subscription_id", sub.ID.String()),
		zap.String("price", sub.Price.String()),
		zap.String("billing_cycle", sub.BillingCycle.String()),
	)

	dto := ToSubscriptionDTO(sub)
	return &dto, nil
}

// Update replaces the terms of a subscription owned by userID
func (s *Service) Update(ctx context.Context, userID, id uuid.UUID, cmd UpdateCommand) (*SubscriptionDTO, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, spanService, "update",
		attribute.String("subscription.id", id.String()))
	defer span.End()

	sub, err := s.findOwned(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	terms, err := parseTerms(cmd.Name, cmd.Price, cmd.Currency, cmd.BillingCycle, cmd.NextPaymentDate, cmd.AutoRenewal)
	if err != nil {
		return nil, err
	}
	if err := sub.Update(terms, s.clock); err != nil {
		return nil, err
	}

	if err := s.save(ctx, sub); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	s.countOperation(ctx, "update")
	logger.Enrich(ctx, s.logger).Info("Subscription updated",
		zap.String("subscription_id", sub.ID.String()),
		zap.Int("version", sub.GetVersion()),
	)

	dto := ToSubscriptionDTO(sub)
	return &dto, nil
}

// Cancel cancels a subscription owned by userID
func (s *Service) Cancel(ctx context.Context, userID, id uuid.UUID) (*SubscriptionDTO, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, spanService, "cancel",
		attribute.String("subscription.id", id.String()))
	defer span.End()

	sub, err := s.findOwned(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if err := sub.Cancel(s.clock); err != nil {
		return nil, err
	}

	if err := s.save(ctx, sub); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	s.countOperation(ctx, "cancel")
	logger.Enrich(ctx, s.logger).Info("Subscription cancelled",
		zap.String("subscription_id", sub.ID.String()))

	dto := ToSubscriptionDTO(sub)
	return &dto, nil
}

// Get returns a subscription owned by userID
func (s *Service) Get(ctx context.Context, userID, id uuid.UUID) (*SubscriptionDTO, error) {
	sub, err := s.findOwned(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	dto := ToSubscriptionDTO(sub)
	return &dto, nil
}

// List returns every subscription of userID, newest first
func (s *Service) List(ctx context.Context, userID uuid.UUID) ([]SubscriptionDTO, error) {
	subs, err := s.repo.FindByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return ToSubscriptionDTOs(subs), nil
}

// ListActive returns the active subscriptions of userID, newest first
func (s *Service) ListActive(ctx context.Context, userID uuid.UUID) ([]SubscriptionDTO, error) {
	subs, err := s.repo.FindActiveByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return ToSubscriptionDTOs(subs), nil
}

// MonthlyCost sums the monthly cost of userID's active subscriptions in the
// billing base currency.
func (s *Service) MonthlyCost(ctx context.Context, userID uuid.UUID) (*MonthlyCostDTO, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, spanService, "monthly_cost",
		attribute.String("user.id", userID.String()))
	defer span.End()

	subs, err := s.repo.FindActiveByUserID(ctx, userID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	total, err := s.billing.CalculateMonthlyCost(ctx, subs)
	if err != nil {
		telemetry.RecordError(span, err)
		if errors.Is(err, shared.ErrConversionUnavailable) {
			if s.unavailable != nil {
				s.unavailable.Inc(ctx)
			}
			logger.Enrich(ctx, s.logger).Warn("Monthly cost unavailable", zap.Error(err))
		}
		return nil, err
	}

	return &MonthlyCostDTO{
		Amount:            total.StringFixed(),
		Currency:          total.Currency().String(),
		SubscriptionCount: len(subs),
	}, nil
}

// findOwned loads a subscription and hides it from anyone but its owner
func (s *Service) findOwned(ctx context.Context, userID, id uuid.UUID) (*subscription.Subscription, error) {
	sub, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !sub.IsOwnedBy(userID) {
		return nil, shared.NewDomainError(shared.CodeNotFound, "subscription not found")
	}
	return sub, nil
}

// save persists the aggregate and then publishes its pending events.
// Publish failures are logged; the write has already happened.
func (s *Service) save(ctx context.Context, sub *subscription.Subscription) error {
	if err := s.repo.Save(ctx, sub); err != nil {
		return err
	}

	events := sub.GetDomainEvents()
	sub.ClearDomainEvents()
	if s.publisher == nil || len(events) == 0 {
		return nil
	}
	if err := s.publisher.Publish(ctx, events...); err != nil {
		logger.Enrich(ctx, s.logger).Error("Failed to publish subscription events",
			zap.String("subscription_id", sub.ID.String()),
			zap.Error(err),
		)
	}
	return nil
}

// parseTerms converts raw command fields into domain terms
func parseTerms(name, price, currency, cycle, nextPaymentDate string, autoRenewal bool) (subscription.Terms, error) {
	cur, err := valueobject.ParseCurrency(currency)
	if err != nil {
		return subscription.Terms{}, err
	}
	money, err := valueobject.NewMoneyFromString(price, cur)
	if err != nil {
		return subscription.Terms{}, err
	}

	if strings.TrimSpace(cycle) == "" {
		return subscription.Terms{}, shared.NewDomainError(shared.CodeMissingField, "billing cycle is required")
	}
	bc, err := subscription.ParseBillingCycle(cycle)
	if err != nil {
		return subscription.Terms{}, err
	}

	if strings.TrimSpace(nextPaymentDate) == "" {
		return subscription.Terms{}, shared.NewDomainError(shared.CodeMissingField, "next payment date is required")
	}
	date, err := subscription.ParseDate(nextPaymentDate)
	if err != nil {
		return subscription.Terms{}, err
	}

	return subscription.Terms{
		Name:            name,
		Price:           &money,
		BillingCycle:    bc,
		NextPaymentDate: date,
		AutoRenewal:     autoRenewal,
	}, nil
}
