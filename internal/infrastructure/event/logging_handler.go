package event

import (
	"context"

	"go.uber.org/zap"

	"github.com/subtrack/backend/internal/domain/identity"
	"github.com/subtrack/backend/internal/domain/shared"
	"github.com/subtrack/backend/internal/domain/subscription"
	"github.com/subtrack/backend/internal/infrastructure/logger"
)

// AuditHandler writes one structured log line per user or subscription
// lifecycle event.
type AuditHandler struct {
	logger *zap.Logger
}

// NewAuditHandler creates the handler
func NewAuditHandler(l *zap.Logger) *AuditHandler {
	return &AuditHandler{logger: l.Named("audit")}
}

// EventTypes implements shared.EventHandler
func (h *AuditHandler) EventTypes() []string {
	return []string{
		subscription.EventTypeSubscriptionCreated,
		subscription.EventTypeSubscriptionUpdated,
		subscription.EventTypeSubscriptionCancelled,
		identity.EventTypeUserRegistered,
		identity.EventTypeUserDeactivated,
	}
}

// Handle implements shared.EventHandler
func (h *AuditHandler) Handle(ctx context.Context, ev shared.DomainEvent) error {
	fields := []zap.Field{
		zap.String("event_type", ev.EventType()),
		zap.String("event_id", ev.EventID().String()),
		zap.String("aggregate_type", ev.AggregateType()),
		zap.String("aggregate_id", ev.AggregateID().String()),
		zap.Time("occurred_at", ev.OccurredAt()),
	}

	switch e := ev.(type) {
	case *subscription.SubscriptionCreatedEvent:
		fields = append(fields,
			zap.String("owner_id", e.UserID.String()),
			zap.String("name", e.Name),
			zap.String("price", e.Amount+" "+e.Currency),
			zap.String("billing_cycle", string(e.BillingCycle)),
		)
	case *subscription.SubscriptionUpdatedEvent:
		fields = append(fields,
			zap.String("owner_id", e.UserID.String()),
			zap.String("name", e.Name),
			zap.String("price", e.Amount+" "+e.Currency),
			zap.String("billing_cycle", string(e.BillingCycle)),
			zap.String("next_payment_date", e.NextPaymentDate),
		)
	case *subscription.SubscriptionCancelledEvent:
		fields = append(fields,
			zap.String("owner_id", e.UserID.String()),
			zap.String("name", e.Name),
		)
	case *identity.UserRegisteredEvent:
		fields = append(fields, zap.String("email", e.Email))
	case *identity.UserDeactivatedEvent:
		fields = append(fields, zap.String("email", e.Email))
	}

	logger.Enrich(ctx, h.logger).Info("Domain event", fields...)
	return nil
}

var _ shared.EventHandler = (*AuditHandler)(nil)
