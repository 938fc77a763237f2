package user

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"gitlab.ozon.dev/pupkingeorgij/quantumshop/internal/apperr"
	"gitlab.ozon.dev/pupkingeorgij/quantumshop/internal/storage"
)

func newTestService(t *testing.T) (*Service, time.Time) {
	t.Helper()

	store, err := storage.NewFileStorage(t.TempDir(), zap.NewNop())
	require.NoError(t, err)

	now := time.Date(2025, 7, 15, 21, 0, 0, 0, time.UTC)
	svc := NewService(store, zap.NewNop())
	svc.timeNow = func() time.Time { return now }
	return svc, now
}

func TestRegister(t *testing.T) {
	ctx := context.Background()

	t.Run("registered with a generated id", func(t *testing.T) {
		svc, now := newTestService(t)

		u, err := svc.Register(ctx, "ada@example.com", "Ada")
		require.NoError(t, err)
		assert.Len(t, u.ID, 36)
		assert.Equal(t, now, u.CreatedAt)

		stored, err := svc.GetUser(ctx, u.ID)
		require.NoError(t, err)
		assert.Equal(t, "Ada", stored.Name)
	})

	t.Run("email and name are required", func(t *testing.T) {
		svc, _ := newTestService(t)

		_, err := svc.Register(ctx, "ada@example.com", "")
		assert.ErrorIs(t, err, apperr.ErrValidation)
		assert.Equal(t, "Email and name are required", err.Error())
	})

	t.Run("duplicate email", func(t *testing.T) {
		svc, _ := newTestService(t)

		_, err := svc.Register(ctx, "demo@example.com", "Someone")
		assert.ErrorIs(t, err, apperr.ErrUserExists)
	})
}

func TestLogin(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	u, err := svc.Login(ctx, "demo@example.com")
	require.NoError(t, err)
	assert.Equal(t, "demo-user", u.ID)

	_, err = svc.Login(ctx, "nobody@example.com")
	assert.ErrorIs(t, err, apperr.ErrUserNotFound)

	_, err = svc.Login(ctx, "")
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestUpdateProfile(t *testing.T) {
	ctx := context.Background()
	svc, now := newTestService(t)

	name := "Demo Customer"
	u, err := svc.UpdateProfile(ctx, "demo-user", ProfileUpdate{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, "Demo Customer", u.Name)
	assert.Equal(t, "demo@example.com", u.Email)
	require.NotNil(t, u.UpdatedAt)
	assert.Equal(t, now, *u.UpdatedAt)

	u, err = svc.UpdateProfile(ctx, "demo-user", ProfileUpdate{})
	require.NoError(t, err)
	assert.Equal(t, "Demo Customer", u.Name)

	_, err = svc.UpdateProfile(ctx, "nobody", ProfileUpdate{Name: &name})
	assert.ErrorIs(t, err, apperr.ErrUserNotFound)
}
