package identity

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/subtrack/backend/internal/domain/identity"
	"github.com/subtrack/backend/internal/domain/shared"
	"github.com/subtrack/backend/internal/infrastructure/auth"
	"github.com/subtrack/backend/internal/infrastructure/config"
)

// MockUserRepository is a mock implementation of identity.UserRepository
type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) FindByID(ctx context.Context, id uuid.UUID) (*identity.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*identity.User), args.Error(1)
}

func (m *MockUserRepository) FindByEmail(ctx context.Context, email string) (*identity.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*identity.User), args.Error(1)
}

func (m *MockUserRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	args := m.Called(ctx, email)
	return args.Bool(0), args.Error(1)
}

func (m *MockUserRepository) Save(ctx context.Context, user *identity.User) error {
	args := m.Called(ctx, user)
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

type testDeps struct {
	svc       *AuthService
	repo      *MockUserRepository
	pub       *MockPublisher
	jwt       *auth.JWTService
	blacklist *auth.InMemoryTokenBlacklist
	hasher    *auth.BcryptHasher
}

func setup(t *testing.T) testDeps {
	t.Helper()
	jwtService := auth.NewJWTService(config.JWTConfig{
		Secret:                 "test-access-secret-at-least-32-bytes!",
		RefreshSecret:          "test-refresh-secret-at-least-32-bytes",
		AccessTokenExpiration:  15 * time.Minute,
		RefreshTokenExpiration: 24 * time.Hour,
		Issuer:                 "subtrack-test",
	})
	d := testDeps{
		repo:      new(MockUserRepository),
		pub:       new(MockPublisher),
		jwt:       jwtService,
		blacklist: auth.NewInMemoryTokenBlacklist(),
		hasher:    auth.NewBcryptHasher(bcrypt.MinCost),
	}
	d.svc = NewAuthService(d.repo, d.hasher, d.jwt, d.blacklist, d.pub, zap.NewNop())
	return d
}

func (d testDeps) user(t *testing.T, email, password string) *identity.User {
	t.Helper()
	hash, err := d.hasher.Hash(password)
	require.NoError(t, err)
	u, err := identity.NewUser(email, hash, shared.SystemClock())
	require.NoError(t, err)
	u.ClearDomainEvents()
	return u
}

func TestAuthService_Register(t *testing.T) {
	d := setup(t)
	ctx := context.Background()

	d.repo.On("ExistsByEmail", ctx, "anna@example.com").Return(false, nil)
	d.repo.On("Save", ctx, mock.AnythingOfType("*identity.User")).Return(nil)
	d.pub.On("Publish", ctx, mock.MatchedBy(func(events []shared.DomainEvent) bool {
		return len(events) == 1 && events[0].EventType() == identity.EventTypeUserRegistered
	})).Return(nil)

	result, err := d.svc.Register(ctx, " Anna@Example.com ", "correct horse")
	require.NoError(t, err)

	assert.Equal(t, "anna@example.com", result.User.Email)
	assert.True(t, result.User.Active)
	assert.Equal(t, "Bearer", result.Tokens.TokenType)

	claims, err := d.jwt.ValidateAccessToken(result.Tokens.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, result.User.ID.String(), claims.UserID)
	assert.Equal(t, "anna@example.com", claims.Email)

	saved := d.repo.Calls[1].Arguments.Get(1).(*identity.User)
	assert.NotEqual(t, "correct horse", saved.PasswordHash)
	assert.True(t, d.hasher.Verify(saved.PasswordHash, "correct horse"))

	d.repo.AssertExpectations(t)
	d.pub.AssertExpectations(t)
}

func TestAuthService_Register_Rejections(t *testing.T) {
	ctx := context.Background()

	t.Run("taken email", func(t *testing.T) {
		d := setup(t)
		d.repo.On("ExistsByEmail", ctx, "anna@example.com").Return(true, nil)

		_, err := d.svc.Register(ctx, "anna@example.com", "correct horse")
		assert.ErrorIs(t, err, shared.ErrAlreadyExists)
		d.repo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
	})

	t.Run("short password", func(t *testing.T) {
		d := setup(t)
		_, err := d.svc.Register(ctx, "anna@example.com", "1234567")
		assert.ErrorIs(t, err, shared.ErrInvalidPassword)
	})

	t.Run("bad email", func(t *testing.T) {
		d := setup(t)
		_, err := d.svc.Register(ctx, "not-an-email", "correct horse")
		assert.ErrorIs(t, err, shared.ErrInvalidEmail)
	})

	t.Run("repository failure", func(t *testing.T) {
		d := setup(t)
		d.repo.On("ExistsByEmail", ctx, "anna@example.com").Return(false, errors.New("db down"))
		_, err := d.svc.Register(ctx, "anna@example.com", "correct horse")
		assert.EqualError(t, err, "db down")
	})
}

func TestAuthService_Login(t *testing.T) {
	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		d := setup(t)
		u := d.user(t, "anna@example.com", "correct horse")
		d.repo.On("FindByEmail", ctx, "anna@example.com").Return(u, nil)

		result, err := d.svc.Login(ctx, "anna@example.com", "correct horse")
		require.NoError(t, err)
		assert.Equal(t, u.ID, result.User.ID)
		assert.NotEmpty(t, result.Tokens.RefreshToken)
	})

	t.Run("unknown email", func(t *testing.T) {
		d := setup(t)
		d.repo.On("FindByEmail", ctx, "ghost@example.com").Return(nil, shared.ErrNotFound)

		_, err := d.svc.Login(ctx, "ghost@example.com", "whatever1")
		assert.ErrorIs(t, err, shared.ErrInvalidCredentials)
	})

	t.Run("wrong password", func(t *testing.T) {
		d := setup(t)
		u := d.user(t, "anna@example.com", "correct horse")
		d.repo.On("FindByEmail", ctx, "anna@example.com").Return(u, nil)

		_, err := d.svc.Login(ctx, "anna@example.com", "battery staple")
		assert.ErrorIs(t, err, shared.ErrInvalidCredentials)
	})

	t.Run("deactivated account", func(t *testing.T) {
		d := setup(t)
		u := d.user(t, "anna@example.com", "correct horse")
		require.NoError(t, u.Deactivate(shared.SystemClock()))
		d.repo.On("FindByEmail", ctx, "anna@example.com").Return(u, nil)

		_, err := d.svc.Login(ctx, "anna@example.com", "correct horse")
		assert.ErrorIs(t, err, shared.ErrAccountDisabled)
	})
}

func TestAuthService_Refresh(t *testing.T) {
	ctx := context.Background()
	d := setup(t)
	u := d.user(t, "anna@example.com", "correct horse")
	d.repo.On("FindByID", ctx, u.ID).Return(u, nil)

	pair, err := d.jwt.GenerateTokenPair(u.ID, u.Email)
	require.NoError(t, err)

	tokens, err := d.svc.Refresh(ctx, pair.RefreshToken)
	require.NoError(t, err)
	_, err = d.jwt.ValidateAccessToken(tokens.AccessToken)
	require.NoError(t, err)

	// The used refresh token is single use.
	_, err = d.svc.Refresh(ctx, pair.RefreshToken)
	assert.ErrorIs(t, err, shared.ErrUnauthorized)

	// An access token is not a refresh token.
	_, err = d.svc.Refresh(ctx, pair.AccessToken)
	assert.ErrorIs(t, err, shared.ErrUnauthorized)
}

func TestAuthService_Refresh_ConcurrentUseSucceedsOnce(t *testing.T) {
	ctx := context.Background()
	d := setup(t)
	u := d.user(t, "anna@example.com", "correct horse")
	d.repo.On("FindByID", ctx, u.ID).Return(u, nil)

	pair, err := d.jwt.GenerateTokenPair(u.ID, u.Email)
	require.NoError(t, err)

	const callers = 10
	var wg sync.WaitGroup
	results := make(chan error, callers)
	start := make(chan struct{})
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := d.svc.Refresh(ctx, pair.RefreshToken)
			results <- err
		}()
	}
	close(start)
	wg.Wait()
	close(results)

	var ok, rejected int
	for err := range results {
		if err == nil {
			ok++
			continue
		}
		assert.ErrorIs(t, err, shared.ErrUnauthorized)
		rejected++
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, callers-1, rejected)
}

func TestAuthService_Refresh_UserGoneOrDisabled(t *testing.T) {
	ctx := context.Background()

	t.Run("user deleted", func(t *testing.T) {
		d := setup(t)
		id := uuid.New()
		d.repo.On("FindByID", ctx, id).Return(nil, shared.ErrNotFound)
		pair, err := d.jwt.GenerateTokenPair(id, "gone@example.com")
		require.NoError(t, err)

		_, err = d.svc.Refresh(ctx, pair.RefreshToken)
		assert.ErrorIs(t, err, shared.ErrUnauthorized)
	})

	t.Run("user deactivated", func(t *testing.T) {
		d := setup(t)
		u := d.user(t, "anna@example.com", "correct horse")
		require.NoError(t, u.Deactivate(shared.SystemClock()))
		d.repo.On("FindByID", ctx, u.ID).Return(u, nil)
		pair, err := d.jwt.GenerateTokenPair(u.ID, u.Email)
		require.NoError(t, err)

		_, err = d.svc.Refresh(ctx, pair.RefreshToken)
		assert.ErrorIs(t, err, shared.ErrAccountDisabled)
	})
}

func TestAuthService_Logout(t *testing.T) {
	ctx := context.Background()
	d := setup(t)
	id := uuid.New()
	pair, err := d.jwt.GenerateTokenPair(id, "anna@example.com")
	require.NoError(t, err)

	require.NoError(t, d.svc.Logout(ctx, pair.AccessToken, ""))

	claims, err := d.jwt.ValidateAccessToken(pair.AccessToken)
	require.NoError(t, err)
	revoked, err := d.blacklist.IsBlacklisted(ctx, claims.ID)
	require.NoError(t, err)
	assert.True(t, revoked)

	assert.ErrorIs(t, d.svc.Logout(ctx, "garbage", ""), shared.ErrUnauthorized)
}

func TestAuthService_LogoutRevokesRefreshToken(t *testing.T) {
	ctx := context.Background()
	d := setup(t)
	u := d.user(t, "anna@example.com", "correct horse")
	d.repo.On("FindByID", ctx, u.ID).Return(u, nil)
	pair, err := d.jwt.GenerateTokenPair(u.ID, u.Email)
	require.NoError(t, err)

	require.NoError(t, d.svc.Logout(ctx, pair.AccessToken, pair.RefreshToken))

	_, err = d.svc.Refresh(ctx, pair.RefreshToken)
	assert.ErrorIs(t, err, shared.ErrUnauthorized)

	t.Run("refresh token must be a refresh token", func(t *testing.T) {
		other, err := d.jwt.GenerateTokenPair(u.ID, u.Email)
		require.NoError(t, err)
		assert.ErrorIs(t, d.svc.Logout(ctx, other.AccessToken, other.AccessToken), shared.ErrUnauthorized)
	})

	t.Run("refresh token of another user", func(t *testing.T) {
		mine, err := d.jwt.GenerateTokenPair(u.ID, u.Email)
		require.NoError(t, err)
		theirs, err := d.jwt.GenerateTokenPair(uuid.New(), "piotr@example.com")
		require.NoError(t, err)

		assert.ErrorIs(t, d.svc.Logout(ctx, mine.AccessToken, theirs.RefreshToken), shared.ErrUnauthorized)

		claims, err := d.jwt.ValidateAccessToken(mine.AccessToken)
		require.NoError(t, err)
		revoked, err := d.blacklist.IsBlacklisted(ctx, claims.ID)
		require.NoError(t, err)
		assert.False(t, revoked, "nothing is revoked when the request is rejected")
	})
}

func TestAuthService_Me(t *testing.T) {
	ctx := context.Background()
	d := setup(t)
	u := d.user(t, "anna@example.com", "correct horse")
	d.repo.On("FindByID", ctx, u.ID).Return(u, nil)

	me, err := d.svc.Me(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "anna@example.com", me.Email)

	missing := uuid.New()
	d.repo.On("FindByID", ctx, missing).Return(nil, shared.ErrNotFound)
	_, err = d.svc.Me(ctx, missing)
	assert.ErrorIs(t, err, shared.ErrNotFound)
}
