package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/subtrack/backend/internal/domain/shared"
	"github.com/subtrack/backend/internal/domain/subscription"
	"github.com/subtrack/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormSubscriptionRepository implements subscription.Repository using GORM
type GormSubscriptionRepository struct {
	db *gorm.DB
}

// NewGormSubscriptionRepository creates a new GormSubscriptionRepository
func NewGormSubscriptionRepository(db *gorm.DB) *GormSubscriptionRepository {
	return &GormSubscriptionRepository{db: db}
}

// FindByID finds a subscription by ID
func (r *GormSubscriptionRepository) FindByID(ctx context.Context, id uuid.UUID) (*subscription.Subscription, error) {
	var model models.SubscriptionModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain()
}

// FindByUserID returns all subscriptions of a user, newest first
func (r *GormSubscriptionRepository) FindByUserID(ctx context.Context, userID uuid.UUID) ([]*subscription.Subscription, error) {
	return r.find(r.db.WithContext(ctx).Where("user_id = ?", userID))
}

// FindActiveByUserID returns the ACTIVE subscriptions of a user, newest first
func (r *GormSubscriptionRepository) FindActiveByUserID(ctx context.Context, userID uuid.UUID) ([]*subscription.Subscription, error) {
	return r.find(r.db.WithContext(ctx).
		Where("user_id = ? AND status = ?", userID, subscription.StatusActive))
}

func (r *GormSubscriptionRepository) find(query *gorm.DB) ([]*subscription.Subscription, error) {
	var rows []models.SubscriptionModel
	if err := query.Order("created_at DESC").Order("id").Find(&rows).Error; err != nil {
		return nil, err
	}

	subs := make([]*subscription.Subscription, 0, len(rows))
	for i := range rows {
		s, err := rows[i].ToDomain()
		if err != nil {
			return nil, err
		}
		subs = append(subs, s)
	}
	return subs, nil
}

// Save persists the aggregate under optimistic locking. New aggregates are
// inserted; existing rows are updated only while their stored version is
// still below s.Version, otherwise another request saved first and
// shared.ErrConcurrentModification is returned.
func (r *GormSubscriptionRepository) Save(ctx context.Context, s *subscription.Subscription) error {
	model := models.SubscriptionModelFromDomain(s)
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var stored []int
		if err := tx.Model(&models.SubscriptionModel{}).
			Where("id = ?", s.ID).
			Pluck("version", &stored).Error; err != nil {
			return err
		}

		if len(stored) == 0 {
			result := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(model)
			if result.Error != nil {
				return result.Error
			}
			if result.RowsAffected == 0 {
				return shared.ErrConcurrentModification
			}
			return nil
		}

		current := stored[0]
		if current >= s.Version {
			return shared.ErrConcurrentModification
		}

		result := tx.Model(&models.SubscriptionModel{}).
			Where("id = ? AND version = ?", s.ID, current).
			Updates(map[string]any{
				"name":              model.Name,
				"amount":            model.Amount,
				"currency":          model.Currency,
				"billing_cycle":     model.BillingCycle,
				"next_payment_date": model.NextPaymentDate,
				"auto_renewal":      model.AutoRenewal,
				"status":            model.Status,
				"cancelled_at":      model.CancelledAt,
				"version":           model.Version,
				"updated_at":        model.UpdatedAt,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return shared.ErrConcurrentModification
		}
		return nil
	})
}

var _ subscription.Repository = (*GormSubscriptionRepository)(nil)
