package subscription

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/subtrack/backend/internal/domain/exchange"
	"github.com/subtrack/backend/internal/domain/shared"
	"github.com/subtrack/backend/internal/domain/shared/valueobject"
	"github.com/subtrack/backend/internal/domain/subscription"
	"github.com/subtrack/backend/internal/infrastructure/telemetry"
	"github.com/subtrack/backend/tests/testutil"
)

var testNow = time.Date(2026, 5, 10, 9, 0, 0, 0, time.UTC)

// MockRepository is a mock implementation of subscription.Repository
type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) FindByID(ctx context.Context, id uuid.UUID) (*subscription.Subscription, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*subscription.Subscription), args.Error(1)
}

func (m *MockRepository) FindByUserID(ctx context.Context, userID uuid.UUID) ([]*subscription.Subscription, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).([]*subscription.Subscription), args.Error(1)
}

func (m *MockRepository) FindActiveByUserID(ctx context.Context, userID uuid.UUID) ([]*subscription.Subscription, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).([]*subscription.Subscription), args.Error(1)
}

func (m *MockRepository) Save(ctx context.Context, s *subscription.Subscription) error {
	args := m.Called(ctx, s)
	return args.Error(0)
}

// MockPublisher is a mock implementation of shared.EventPublisher
type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, events ...shared.DomainEvent) error {
	args := m.Called(ctx, events)
	return args.Error(0)
}

func newBilling(t *testing.T) *subscription.BillingService {
	t.Helper()
	rates, err := exchange.ParseStaticRates(map[string]string{"USD_PLN": "4", "EUR_PLN": "4.25"})
	require.NoError(t, err)
	return subscription.NewBillingService(valueobject.PLN, exchange.NewPivotProvider(rates, valueobject.PLN))
}

func newTestService(t *testing.T, opts ...Option) (*Service, *MockRepository, *MockPublisher) {
	repo := new(MockRepository)
	pub := new(MockPublisher)
	opts = append([]Option{WithClock(shared.FixedClock(testNow))}, opts...)
	svc := NewService(repo, newBilling(t), pub, zap.NewNop(), opts...)
	return svc, repo, pub
}

func existing(t *testing.T, userID uuid.UUID, amount string, cur valueobject.Currency, cycle subscription.BillingCycle) *subscription.Subscription {
	t.Helper()
	price := valueobject.MustNewMoney(amount, cur)
	s, err := subscription.NewSubscription(userID, subscription.Terms{
		Name:            "Existing",
		Price:           &price,
		BillingCycle:    cycle,
		NextPaymentDate: testNow.AddDate(0, 1, 0),
		AutoRenewal:     true,
	}, shared.FixedClock(testNow.Add(-24*time.Hour)))
	require.NoError(t, err)
	s.ClearDomainEvents()
	return s
}

func validCreate(userID uuid.UUID) CreateCommand {
	return CreateCommand{
		UserID:          userID,
		Name:            "  Netflix ",
		Price:           "49.5",
		Currency:        "pln",
		BillingCycle:    "monthly",
		NextPaymentDate: "2026-06-01",
		AutoRenewal:     true,
	}
}

func TestService_Create(t *testing.T) {
	svc, repo, pub := newTestService(t)
	userID := uuid.New()

	repo.On("Save", mock.Anything, mock.AnythingOfType("*subscription.Subscription")).Return(nil)
	pub.On("Publish", mock.Anything, mock.MatchedBy(func(events []shared.DomainEvent) bool {
		return len(events) == 1 && events[0].EventType() == subscription.EventTypeSubscriptionCreated
	})).Return(nil)

	dto, err := svc.Create(context.Background(), validCreate(userID))
	require.NoError(t, err)

	assert.NotEqual(t, uuid.Nil, dto.ID)
	assert.Equal(t, userID, dto.UserID)
	assert.Equal(t, "Netflix", dto.Name)
	assert.Equal(t, "49.50", dto.Price)
	assert.Equal(t, "PLN", dto.Currency)
	assert.Equal(t, "MONTHLY", dto.BillingCycle)
	assert.Equal(t, "49.50", dto.MonthlyCost)
	assert.Equal(t, "2026-06-01", dto.NextPaymentDate)
	assert.True(t, dto.AutoRenewal)
	assert.Equal(t, "ACTIVE", dto.Status)
	assert.Equal(t, testNow, dto.CreatedAt)

	repo.AssertExpectations(t)
	pub.AssertExpectations(t)
}

func TestService_Create_YearlyMonthlyCost(t *testing.T) {
	svc, repo, pub := newTestService(t)
	repo.On("Save", mock.Anything, mock.Anything).Return(nil)
	pub.On("Publish", mock.Anything, mock.Anything).Return(nil)

	cmd := validCreate(uuid.New())
	cmd.Price = "100"
	cmd.BillingCycle = "YEARLY"

	dto, err := svc.Create(context.Background(), cmd)
	require.NoError(t, err)
	assert.Equal(t, "8.33", dto.MonthlyCost)
}

func TestService_Create_ValidationErrors(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*CreateCommand)
		wantErr error
	}{
		{"empty name", func(c *CreateCommand) { c.Name = "   " }, shared.ErrInvalidName},
		{"missing price", func(c *CreateCommand) { c.Price = "" }, shared.ErrMissingAmount},
		{"garbage price", func(c *CreateCommand) { c.Price = "abc" }, shared.ErrInvalidAmount},
		{"negative price", func(c *CreateCommand) { c.Price = "-1" }, shared.ErrInvalidAmount},
		{"missing currency", func(c *CreateCommand) { c.Currency = "" }, shared.ErrMissingCurrency},
		{"unknown currency", func(c *CreateCommand) { c.Currency = "XYZ" }, shared.ErrInvalidCurrency},
		{"missing cycle", func(c *CreateCommand) { c.BillingCycle = "" }, shared.ErrMissingField},
		{"unknown cycle", func(c *CreateCommand) { c.BillingCycle = "WEEKLY" }, shared.ErrInvalidBillingCycle},
		{"missing date", func(c *CreateCommand) { c.NextPaymentDate = "" }, shared.ErrMissingField},
		{"malformed date", func(c *CreateCommand) { c.NextPaymentDate = "01/06/2026" }, shared.ErrInvalidDate},
		{"past date", func(c *CreateCommand) { c.NextPaymentDate = "2026-05-09" }, shared.ErrInvalidDate},
		{"missing user", func(c *CreateCommand) { c.UserID = uuid.Nil }, shared.ErrMissingField},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, repo, pub := newTestService(t)
			cmd := validCreate(uuid.New())
			tt.mutate(&cmd)

			_, err := svc.Create(context.Background(), cmd)
			assert.ErrorIs(t, err, tt.wantErr)
			repo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
			pub.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
		})
	}
}

func TestService_Create_SaveErrorSkipsPublish(t *testing.T) {
	svc, repo, pub := newTestService(t)
	repo.On("Save", mock.Anything, mock.Anything).Return(errors.New("db down"))

	_, err := svc.Create(context.Background(), validCreate(uuid.New()))
	assert.EqualError(t, err, "db down")
	pub.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
}

func TestService_Create_PublishErrorIsNotFatal(t *testing.T) {
	svc, repo, pub := newTestService(t)
	repo.On("Save", mock.Anything, mock.Anything).Return(nil)
	pub.On("Publish", mock.Anything, mock.Anything).Return(errors.New("bus closed"))

	dto, err := svc.Create(context.Background(), validCreate(uuid.New()))
	require.NoError(t, err)
	assert.NotNil(t, dto)
}

func TestService_Create_NilPublisher(t *testing.T) {
	repo := new(MockRepository)
	repo.On("Save", mock.Anything, mock.Anything).Return(nil)
	svc := NewService(repo, newBilling(t), nil, zap.NewNop(), WithClock(shared.FixedClock(testNow)))

	_, err := svc.Create(context.Background(), validCreate(uuid.New()))
	assert.NoError(t, err)
}

func TestService_Update(t *testing.T) {
	svc, repo, pub := newTestService(t)
	userID := uuid.New()
	sub := existing(t, userID, "10", valueobject.PLN, subscription.BillingCycleMonthly)

	repo.On("FindByID", mock.Anything, sub.ID).Return(sub, nil)
	repo.On("Save", mock.Anything, sub).Return(nil)
	pub.On("Publish", mock.Anything, mock.MatchedBy(func(events []shared.DomainEvent) bool {
		return len(events) == 1 && events[0].EventType() == subscription.EventTypeSubscriptionUpdated
	})).Return(nil)

	dto, err := svc.Update(context.Background(), userID, sub.ID, UpdateCommand{
		Name:            "Spotify",
		Price:           "12",
		Currency:        "EUR",
		BillingCycle:    "YEARLY",
		NextPaymentDate: "2027-01-01",
	})
	require.NoError(t, err)

	assert.Equal(t, "Spotify", dto.Name)
	assert.Equal(t, "12.00", dto.Price)
	assert.Equal(t, "EUR", dto.Currency)
	assert.Equal(t, "YEARLY", dto.BillingCycle)
	assert.Equal(t, "1.00", dto.MonthlyCost)
	assert.False(t, dto.AutoRenewal)
	assert.Equal(t, testNow, dto.UpdatedAt)
	assert.Empty(t, sub.GetDomainEvents())
	pub.AssertExpectations(t)
}

func TestService_Update_OtherUsersSubscriptionIsNotFound(t *testing.T) {
	svc, repo, _ := newTestService(t)
	sub := existing(t, uuid.New(), "10", valueobject.PLN, subscription.BillingCycleMonthly)
	repo.On("FindByID", mock.Anything, sub.ID).Return(sub, nil)

	_, err := svc.Update(context.Background(), uuid.New(), sub.ID, UpdateCommand{})
	assert.ErrorIs(t, err, shared.ErrNotFound)

	_, err = svc.Cancel(context.Background(), uuid.New(), sub.ID)
	assert.ErrorIs(t, err, shared.ErrNotFound)

	_, err = svc.Get(context.Background(), uuid.New(), sub.ID)
	assert.ErrorIs(t, err, shared.ErrNotFound)

	repo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

func TestService_Update_InvalidTermsLeaveSubscriptionUnchanged(t *testing.T) {
	svc, repo, _ := newTestService(t)
	userID := uuid.New()
	sub := existing(t, userID, "10", valueobject.PLN, subscription.BillingCycleMonthly)
	repo.On("FindByID", mock.Anything, sub.ID).Return(sub, nil)

	_, err := svc.Update(context.Background(), userID, sub.ID, UpdateCommand{
		Name: "", Price: "5", Currency: "PLN", BillingCycle: "MONTHLY", NextPaymentDate: "2026-07-01",
	})
	assert.ErrorIs(t, err, shared.ErrInvalidName)
	assert.Equal(t, "Existing", sub.Name)
	assert.Equal(t, 1, sub.GetVersion())
}

func TestService_Cancel(t *testing.T) {
	metrics := testutil.NewMetricReader(t)
	svc, repo, pub := newTestService(t, WithMeter(metrics.Meter))
	userID := uuid.New()
	sub := existing(t, userID, "10", valueobject.PLN, subscription.BillingCycleMonthly)

	repo.On("FindByID", mock.Anything, sub.ID).Return(sub, nil)
	repo.On("Save", mock.Anything, sub).Return(nil).Once()
	pub.On("Publish", mock.Anything, mock.Anything).Return(nil).Once()

	dto, err := svc.Cancel(context.Background(), userID, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, "CANCELLED", dto.Status)

	_, err = svc.Cancel(context.Background(), userID, sub.ID)
	assert.ErrorIs(t, err, shared.ErrInvalidState)

	_, err = svc.Update(context.Background(), userID, sub.ID, UpdateCommand{
		Name: "X", Price: "1", Currency: "PLN", BillingCycle: "MONTHLY", NextPaymentDate: "2026-07-01",
	})
	assert.ErrorIs(t, err, shared.ErrInvalidState)

	assert.Equal(t, int64(1), metrics.Int64(t, "subtrack_subscription_operations_total", telemetry.AttrOperation.String("cancel")))
	assert.Zero(t, metrics.Int64(t, "subtrack_subscription_operations_total", telemetry.AttrOperation.String("update")))

	repo.AssertExpectations(t)
	pub.AssertExpectations(t)
}

func TestService_Cancel_ConcurrentModification(t *testing.T) {
	svc, repo, pub := newTestService(t)
	userID := uuid.New()
	sub := existing(t, userID, "10", valueobject.PLN, subscription.BillingCycleMonthly)

	repo.On("FindByID", mock.Anything, sub.ID).Return(sub, nil)
	repo.On("Save", mock.Anything, sub).Return(shared.ErrConcurrentModification)

	_, err := svc.Cancel(context.Background(), userID, sub.ID)
	assert.ErrorIs(t, err, shared.ErrConcurrentModification)

	pub.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
	repo.AssertExpectations(t)
}

func TestService_Update_ConcurrentModification(t *testing.T) {
	svc, repo, pub := newTestService(t)
	userID := uuid.New()
	sub := existing(t, userID, "10", valueobject.PLN, subscription.BillingCycleMonthly)

	repo.On("FindByID", mock.Anything, sub.ID).Return(sub, nil)
	repo.On("Save", mock.Anything, sub).Return(shared.ErrConcurrentModification)

	_, err := svc.Update(context.Background(), userID, sub.ID, UpdateCommand{
		Name: "X", Price: "1", Currency: "PLN", BillingCycle: "MONTHLY", NextPaymentDate: "2026-07-01",
	})
	assert.ErrorIs(t, err, shared.ErrConcurrentModification)

	var domainErr *shared.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, shared.CodeConcurrentModification, domainErr.Code)
	pub.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
}

func TestService_GetMissing(t *testing.T) {
	svc, repo, _ := newTestService(t)
	id := uuid.New()
	repo.On("FindByID", mock.Anything, id).Return(nil, shared.ErrNotFound)

	_, err := svc.Get(context.Background(), uuid.New(), id)
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestService_ListAndListActive(t *testing.T) {
	svc, repo, _ := newTestService(t)
	userID := uuid.New()
	a := existing(t, userID, "10", valueobject.PLN, subscription.BillingCycleMonthly)
	b := existing(t, userID, "20", valueobject.USD, subscription.BillingCycleTrial)

	repo.On("FindByUserID", mock.Anything, userID).Return([]*subscription.Subscription{a, b}, nil)
	repo.On("FindActiveByUserID", mock.Anything, userID).Return([]*subscription.Subscription{a}, nil)

	all, err := svc.List(context.Background(), userID)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "0.00", all[1].MonthlyCost)

	active, err := svc.ListActive(context.Background(), userID)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, a.ID, active[0].ID)

	empty := uuid.New()
	repo.On("FindByUserID", mock.Anything, empty).Return([]*subscription.Subscription{}, nil)
	none, err := svc.List(context.Background(), empty)
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func TestService_MonthlyCost(t *testing.T) {
	svc, repo, _ := newTestService(t)
	userID := uuid.New()
	subs := []*subscription.Subscription{
		existing(t, userID, "29.99", valueobject.PLN, subscription.BillingCycleMonthly),
		existing(t, userID, "120", valueobject.USD, subscription.BillingCycleYearly),
		existing(t, userID, "10", valueobject.EUR, subscription.BillingCycleMonthly),
	}
	repo.On("FindActiveByUserID", mock.Anything, userID).Return(subs, nil)

	cost, err := svc.MonthlyCost(context.Background(), userID)
	require.NoError(t, err)

	// 29.99 + 10.00*4 + 10.00*4.25
	assert.Equal(t, "112.49", cost.Amount)
	assert.Equal(t, "PLN", cost.Currency)
	assert.Equal(t, 3, cost.SubscriptionCount)
}

func TestService_MonthlyCost_Empty(t *testing.T) {
	svc, repo, _ := newTestService(t)
	userID := uuid.New()
	repo.On("FindActiveByUserID", mock.Anything, userID).Return([]*subscription.Subscription{}, nil)

	cost, err := svc.MonthlyCost(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, MonthlyCostDTO{Amount: "0.00", Currency: "PLN", SubscriptionCount: 0}, *cost)
}

func TestService_MonthlyCost_ConversionUnavailable(t *testing.T) {
	metrics := testutil.NewMetricReader(t)
	svc, repo, _ := newTestService(t, WithMeter(metrics.Meter))
	userID := uuid.New()
	subs := []*subscription.Subscription{
		existing(t, userID, "10", valueobject.GBP, subscription.BillingCycleMonthly),
	}
	repo.On("FindActiveByUserID", mock.Anything, userID).Return(subs, nil)

	_, err := svc.MonthlyCost(context.Background(), userID)
	assert.ErrorIs(t, err, shared.ErrConversionUnavailable)
	assert.Equal(t, int64(1), metrics.Int64(t, "subtrack_conversion_unavailable_total"))
}

func TestService_MonthlyCost_RepositoryError(t *testing.T) {
	svc, repo, _ := newTestService(t)
	userID := uuid.New()
	repo.On("FindActiveByUserID", mock.Anything, userID).
		Return([]*subscription.Subscription(nil), errors.New("timeout"))

	_, err := svc.MonthlyCost(context.Background(), userID)
	assert.EqualError(t, err, "timeout")
}

func TestToSubscriptionDTO_TrialCostsNothing(t *testing.T) {
	sub := existing(t, uuid.New(), "99.99", valueobject.USD, subscription.BillingCycleTrial)
	dto := ToSubscriptionDTO(sub)
	assert.Equal(t, "0.00", dto.MonthlyCost)
	assert.Equal(t, "99.99", dto.Price)
	assert.True(t, decimal.RequireFromString(dto.Price).IsPositive())
}
