package persistence

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/subtrack/backend/internal/domain/identity"
	"github.com/subtrack/backend/internal/domain/shared"
)

func TestGormUserRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewGormUserRepository(setupSQLite(t))

	user, err := identity.NewUser("Anna@Example.com", "$2a$04$hash", shared.FixedClock(testNow))
	require.NoError(t, err)
	require.NoError(t, repo.Save(ctx, user))

	t.Run("find by id", func(t *testing.T) {
		found, err := repo.FindByID(ctx, user.ID)
		require.NoError(t, err)
		assert.Equal(t, user.Email, found.Email)
		assert.Equal(t, "$2a$04$hash", found.PasswordHash)
		assert.True(t, found.IsActive())
	})

	t.Run("find by email ignores case", func(t *testing.T) {
		found, err := repo.FindByEmail(ctx, "ANNA@example.COM")
		require.NoError(t, err)
		assert.Equal(t, user.ID, found.ID)
	})

	t.Run("exists by email", func(t *testing.T) {
		exists, err := repo.ExistsByEmail(ctx, "anna@example.com")
		require.NoError(t, err)
		assert.True(t, exists)

		exists, err = repo.ExistsByEmail(ctx, "nobody@example.com")
		require.NoError(t, err)
		assert.False(t, exists)
	})

	t.Run("not found", func(t *testing.T) {
		_, err := repo.FindByID(ctx, uuid.New())
		assert.ErrorIs(t, err, shared.ErrNotFound)
		_, err = repo.FindByEmail(ctx, "nobody@example.com")
		assert.ErrorIs(t, err, shared.ErrNotFound)
		_, err = repo.FindByEmail(ctx, "")
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})

	t.Run("save updates existing user", func(t *testing.T) {
		require.NoError(t, user.Deactivate(shared.FixedClock(testNow)))
		require.NoError(t, repo.Save(ctx, user))

		found, err := repo.FindByID(ctx, user.ID)
		require.NoError(t, err)
		assert.False(t, found.IsActive())
	})

	t.Run("duplicate email is rejected by the unique index", func(t *testing.T) {
		other, err := identity.NewUser("anna@example.com", "$2a$04$other", shared.FixedClock(testNow))
		require.NoError(t, err)
		assert.Error(t, repo.Save(ctx, other))
	})
}
