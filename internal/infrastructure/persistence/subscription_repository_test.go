package persistence

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/subtrack/backend/internal/domain/shared"
	"github.com/subtrack/backend/internal/domain/shared/valueobject"
	"github.com/subtrack/backend/internal/domain/subscription"
	"github.com/subtrack/backend/internal/infrastructure/persistence/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var testNow = time.Date(2026, 5, 10, 15, 30, 0, 0, time.UTC)

func setupSQLite(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&models.UserModel{}, &models.SubscriptionModel{}))
	return db
}

func newTestSubscription(t *testing.T, userID uuid.UUID, name, amount string, cycle subscription.BillingCycle, at time.Time) *subscription.Subscription {
	t.Helper()
	price := valueobject.MustNewMoney(amount, valueobject.PLN)
	s, err := subscription.NewSubscription(userID, subscription.Terms{
		Name:            name,
		Price:           &price,
		BillingCycle:    cycle,
		NextPaymentDate: time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC),
		AutoRenewal:     true,
	}, shared.FixedClock(at))
	require.NoError(t, err)
	return s
}

func TestGormSubscriptionRepository_SaveAndFind(t *testing.T) {
	ctx := context.Background()
	repo := NewGormSubscriptionRepository(setupSQLite(t))
	userID := uuid.New()

	s := newTestSubscription(t, userID, "Netflix", "29.99", subscription.BillingCycleMonthly, testNow)
	require.NoError(t, repo.Save(ctx, s))

	found, err := repo.FindByID(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, s.ID, found.ID)
	assert.Equal(t, userID, found.UserID)
	assert.Equal(t, "Netflix", found.Name)
	assert.True(t, found.Price.Equals(valueobject.MustNewMoney("29.99", valueobject.PLN)), "got %s", found.Price)
	assert.Equal(t, subscription.BillingCycleMonthly, found.BillingCycle)
	assert.Equal(t, "2026-06-01", found.NextPaymentDate.Format(subscription.DateLayout))
	assert.True(t, found.AutoRenewal)
	assert.Equal(t, subscription.StatusActive, found.Status)
	assert.Nil(t, found.CancelledAt)
	assert.Equal(t, 1, found.Version)
	assert.Empty(t, found.GetDomainEvents())
}

func TestGormSubscriptionRepository_SaveUpdatesExisting(t *testing.T) {
	ctx := context.Background()
	repo := NewGormSubscriptionRepository(setupSQLite(t))
	s := newTestSubscription(t, uuid.New(), "Spotify", "19.99", subscription.BillingCycleMonthly, testNow)
	require.NoError(t, repo.Save(ctx, s))

	price := valueobject.MustNewMoney("600", valueobject.EUR)
	require.NoError(t, s.Update(subscription.Terms{
		Name:            "Spotify Family",
		Price:           &price,
		BillingCycle:    subscription.BillingCycleYearly,
		NextPaymentDate: time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC),
	}, shared.FixedClock(testNow.Add(time.Hour))))
	require.NoError(t, repo.Save(ctx, s))

	found, err := repo.FindByID(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, "Spotify Family", found.Name)
	assert.Equal(t, "600.00 EUR", found.Price.String())
	assert.Equal(t, subscription.BillingCycleYearly, found.BillingCycle)
	assert.False(t, found.AutoRenewal)
	assert.Equal(t, 2, found.Version)

	require.NoError(t, found.Cancel(shared.FixedClock(testNow.Add(2*time.Hour))))
	require.NoError(t, repo.Save(ctx, found))

	cancelled, err := repo.FindByID(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, subscription.StatusCancelled, cancelled.Status)
	require.NotNil(t, cancelled.CancelledAt)
}

func TestGormSubscriptionRepository_FindByUserID(t *testing.T) {
	ctx := context.Background()
	repo := NewGormSubscriptionRepository(setupSQLite(t))
	userID := uuid.New()

	older := newTestSubscription(t, userID, "Netflix", "29.99", subscription.BillingCycleMonthly, testNow)
	newer := newTestSubscription(t, userID, "iCloud", "600", subscription.BillingCycleYearly, testNow.Add(time.Minute))
	cancelled := newTestSubscription(t, userID, "Gym", "120", subscription.BillingCycleMonthly, testNow.Add(2*time.Minute))
	require.NoError(t, cancelled.Cancel(shared.FixedClock(testNow.Add(3*time.Minute))))
	other := newTestSubscription(t, uuid.New(), "Other", "10", subscription.BillingCycleMonthly, testNow)

	for _, s := range []*subscription.Subscription{older, newer, cancelled, other} {
		require.NoError(t, repo.Save(ctx, s))
	}

	all, err := repo.FindByUserID(ctx, userID)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []uuid.UUID{cancelled.ID, newer.ID, older.ID}, []uuid.UUID{all[0].ID, all[1].ID, all[2].ID})

	active, err := repo.FindActiveByUserID(ctx, userID)
	require.NoError(t, err)
	require.Len(t, active, 2)
	for _, s := range active {
		assert.True(t, s.IsActive())
	}

	none, err := repo.FindByUserID(ctx, uuid.New())
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestGormSubscriptionRepository_NotFound(t *testing.T) {
	repo := NewGormSubscriptionRepository(setupSQLite(t))

	_, err := repo.FindByID(context.Background(), uuid.New())
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestGormSubscriptionRepository_StaleSaveIsRejected(t *testing.T) {
	ctx := context.Background()
	repo := NewGormSubscriptionRepository(setupSQLite(t))
	s := newTestSubscription(t, uuid.New(), "Netflix", "29.99", subscription.BillingCycleMonthly, testNow)
	require.NoError(t, repo.Save(ctx, s))

	load := func() *subscription.Subscription {
		loaded, err := repo.FindByID(ctx, s.ID)
		require.NoError(t, err)
		return loaded
	}
	first, second, third := load(), load(), load()

	require.NoError(t, first.Cancel(shared.FixedClock(testNow.Add(time.Hour))))
	require.NoError(t, repo.Save(ctx, first))

	t.Run("second cancel", func(t *testing.T) {
		require.NoError(t, second.Cancel(shared.FixedClock(testNow.Add(2*time.Hour))))
		assert.ErrorIs(t, repo.Save(ctx, second), shared.ErrConcurrentModification)
	})

	t.Run("update does not revive a cancelled subscription", func(t *testing.T) {
		price := valueobject.MustNewMoney("39.99", valueobject.PLN)
		require.NoError(t, third.Update(subscription.Terms{
			Name:            "Netflix Premium",
			Price:           &price,
			BillingCycle:    subscription.BillingCycleMonthly,
			NextPaymentDate: time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC),
			AutoRenewal:     true,
		}, shared.FixedClock(testNow.Add(2*time.Hour))))
		assert.ErrorIs(t, repo.Save(ctx, third), shared.ErrConcurrentModification)
	})

	t.Run("unchanged copy", func(t *testing.T) {
		assert.ErrorIs(t, repo.Save(ctx, first), shared.ErrConcurrentModification)
	})

	stored := load()
	assert.Equal(t, subscription.StatusCancelled, stored.Status)
	assert.Equal(t, "Netflix", stored.Name)
	assert.Equal(t, 2, stored.Version)
	require.NotNil(t, stored.CancelledAt)
	assert.True(t, stored.CancelledAt.Equal(testNow.Add(time.Hour)))
}

func TestGormSubscriptionRepository_ConcurrentSaves(t *testing.T) {
	ctx := context.Background()
	repo := NewGormSubscriptionRepository(setupSQLite(t))
	s := newTestSubscription(t, uuid.New(), "Netflix", "29.99", subscription.BillingCycleMonthly, testNow)
	require.NoError(t, repo.Save(ctx, s))

	const writers = 5
	errs := make(chan error, writers)
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		loaded, err := repo.FindByID(ctx, s.ID)
		require.NoError(t, err)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := loaded.Cancel(shared.FixedClock(testNow.Add(time.Hour))); err != nil {
				errs <- err
				return
			}
			errs <- repo.Save(ctx, loaded)
		}()
	}
	wg.Wait()
	close(errs)

	var saved, conflicts int
	for err := range errs {
		switch {
		case err == nil:
			saved++
		case errors.Is(err, shared.ErrConcurrentModification):
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, saved)
	assert.Equal(t, writers-1, conflicts)
}

func TestGormSubscriptionRepository_PastPaymentDateIsLoaded(t *testing.T) {
	ctx := context.Background()
	db := setupSQLite(t)
	repo := NewGormSubscriptionRepository(db)
	s := newTestSubscription(t, uuid.New(), "Netflix", "29.99", subscription.BillingCycleMonthly, testNow)
	require.NoError(t, repo.Save(ctx, s))

	past := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, db.Model(&models.SubscriptionModel{}).
		Where("id = ?", s.ID).
		Update("next_payment_date", past).Error)

	found, err := repo.FindByID(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, "2020-01-01", found.NextPaymentDate.Format(subscription.DateLayout))
}

func TestGormSubscriptionRepository_CorruptRow(t *testing.T) {
	ctx := context.Background()
	db := setupSQLite(t)
	repo := NewGormSubscriptionRepository(db)
	s := newTestSubscription(t, uuid.New(), "Netflix", "29.99", subscription.BillingCycleMonthly, testNow)
	require.NoError(t, repo.Save(ctx, s))

	require.NoError(t, db.Model(&models.SubscriptionModel{}).
		Where("id = ?", s.ID).
		Update("billing_cycle", "WEEKLY").Error)

	_, err := repo.FindByID(ctx, s.ID)
	assert.ErrorContains(t, err, "invalid stored billing cycle")
}

func TestGormSubscriptionRepository_PostgresQueries(t *testing.T) {
	t.Run("FindByID maps record not found", func(t *testing.T) {
		gormDB, mock, mockDB := newMockGorm(t)
		defer mockDB.Close()
		repo := NewGormSubscriptionRepository(gormDB)
		id := uuid.New()

		mock.ExpectQuery(`SELECT \* FROM "subscriptions" WHERE id = \$1 ORDER BY .* LIMIT .*`).
			WithArgs(id, 1).
			WillReturnRows(sqlmock.NewRows([]string{"id"}))

		_, err := repo.FindByID(context.Background(), id)
		assert.ErrorIs(t, err, shared.ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("FindActiveByUserID filters on status", func(t *testing.T) {
		gormDB, mock, mockDB := newMockGorm(t)
		defer mockDB.Close()
		repo := NewGormSubscriptionRepository(gormDB)
		userID := uuid.New()

		mock.ExpectQuery(`SELECT \* FROM "subscriptions" WHERE user_id = \$1 AND status = \$2 ORDER BY created_at DESC,id`).
			WithArgs(userID, subscription.StatusActive).
			WillReturnRows(sqlmock.NewRows([]string{
				"id", "created_at", "updated_at", "version", "user_id", "name", "amount",
				"currency", "billing_cycle", "next_payment_date", "auto_renewal", "status", "cancelled_at",
			}).AddRow(
				uuid.New().String(), testNow, testNow, 1, userID.String(), "Netflix", "29.99",
				"PLN", "MONTHLY", testNow, true, "ACTIVE", nil,
			))

		subs, err := repo.FindActiveByUserID(context.Background(), userID)
		require.NoError(t, err)
		require.Len(t, subs, 1)
		assert.Equal(t, "29.99 PLN", subs[0].Price.String())
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Save inserts a new aggregate", func(t *testing.T) {
		gormDB, mock, mockDB := newMockGorm(t)
		defer mockDB.Close()
		repo := NewGormSubscriptionRepository(gormDB)
		s := newTestSubscription(t, uuid.New(), "Netflix", "29.99", subscription.BillingCycleMonthly, testNow)

		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT "version" FROM "subscriptions" WHERE id = \$1`).
			WithArgs(s.ID).
			WillReturnRows(sqlmock.NewRows([]string{"version"}))
		mock.ExpectExec(`INSERT INTO "subscriptions" .* ON CONFLICT DO NOTHING`).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		require.NoError(t, repo.Save(context.Background(), s))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Save guards the update on the stored version", func(t *testing.T) {
		gormDB, mock, mockDB := newMockGorm(t)
		defer mockDB.Close()
		repo := NewGormSubscriptionRepository(gormDB)
		s := newTestSubscription(t, uuid.New(), "Netflix", "29.99", subscription.BillingCycleMonthly, testNow)
		require.NoError(t, s.Cancel(shared.FixedClock(testNow.Add(time.Hour))))

		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT "version" FROM "subscriptions" WHERE id = \$1`).
			WithArgs(s.ID).
			WillReturnRows(sqlmock.NewRows([]string{"version"}).AddRow(1))
		mock.ExpectExec(`UPDATE "subscriptions" SET .* WHERE id = \$\d+ AND version = \$\d+`).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectRollback()

		err := repo.Save(context.Background(), s)
		assert.ErrorIs(t, err, shared.ErrConcurrentModification)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Save rejects a copy the stored row has caught up with", func(t *testing.T) {
		gormDB, mock, mockDB := newMockGorm(t)
		defer mockDB.Close()
		repo := NewGormSubscriptionRepository(gormDB)
		s := newTestSubscription(t, uuid.New(), "Netflix", "29.99", subscription.BillingCycleMonthly, testNow)
		require.NoError(t, s.Cancel(shared.FixedClock(testNow.Add(time.Hour))))

		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT "version" FROM "subscriptions" WHERE id = \$1`).
			WithArgs(s.ID).
			WillReturnRows(sqlmock.NewRows([]string{"version"}).AddRow(2))
		mock.ExpectRollback()

		err := repo.Save(context.Background(), s)
		assert.ErrorIs(t, err, shared.ErrConcurrentModification)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
