package subscription

import (
	"context"

	"github.com/google/uuid"
)

// Repository defines persistence operations for subscriptions.
// Finders return shared.ErrNotFound when nothing matches.
type Repository interface {
	// FindByID finds a subscription by ID
	FindByID(ctx context.Context, id uuid.UUID) (*Subscription, error)

	// FindByUserID returns all subscriptions of a user, newest first
	FindByUserID(ctx context.Context, userID uuid.UUID) ([]*Subscription, error)

	// FindActiveByUserID returns only ACTIVE subscriptions of a user
	FindActiveByUserID(ctx context.Context, userID uuid.UUID) ([]*Subscription, error)

	// Save inserts or updates the full aggregate. Saving a copy that is
	// older than the stored row fails with shared.ErrConcurrentModification.
	Save(ctx context.Context, s *Subscription) error
}
