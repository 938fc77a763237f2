package postgresql

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	mock_database "gitlab.ozon.dev/pupkingeorgij/quantumshop/internal/db/mocks"
	"gitlab.ozon.dev/pupkingeorgij/quantumshop/internal/repository"
)

func TestUserRepo_Create(t *testing.T) {
	ctx := context.Background()
	created := time.Date(2025, 7, 15, 0, 0, 0, 0, time.UTC)
	user := &repository.User{ID: "u1", Email: "ada@example.com", Name: "Ada", CreatedAt: created}

	t.Run("success", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		mockDB := mock_database.NewMockDB(ctrl)
		mockDB.EXPECT().Exec(gomock.Any(), gomock.Any(), "u1", "ada@example.com", "Ada", created).Return(nil, nil)

		require.NoError(t, NewUserRepo(mockDB).Create(ctx, user))
	})

	t.Run("duplicate email", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		mockDB := mock_database.NewMockDB(ctrl)
		mockDB.EXPECT().Exec(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
			Return(nil, &pgconn.PgError{Code: "23505"})

		err := NewUserRepo(mockDB).Create(ctx, user)
		assert.ErrorIs(t, err, repository.ErrObjectExists)
	})

	t.Run("other failure", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		mockDB := mock_database.NewMockDB(ctrl)
		mockDB.EXPECT().Exec(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
			Return(nil, errors.New("connection reset"))

		err := NewUserRepo(mockDB).Create(ctx, user)
		require.Error(t, err)
		assert.NotErrorIs(t, err, repository.ErrObjectExists)
	})
}

func TestUserRepo_GetByID(t *testing.T) {
	ctx := context.Background()

	t.Run("found", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		mockDB := mock_database.NewMockDB(ctrl)
		mockDB.EXPECT().Get(gomock.Any(), gomock.Any(), gomock.Any(), "demo-user").
			DoAndReturn(func(_ context.Context, dest interface{}, _ string, _ ...interface{}) error {
				*dest.(*repository.User) = repository.User{ID: "demo-user", Email: "demo@example.com", Name: "Demo User"}
				return nil
			})

		u, err := NewUserRepo(mockDB).GetByID(ctx, "demo-user")
		require.NoError(t, err)
		assert.Equal(t, "demo@example.com", u.Email)
	})

	t.Run("not found", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		mockDB := mock_database.NewMockDB(ctrl)
		mockDB.EXPECT().Get(gomock.Any(), gomock.Any(), gomock.Any(), "missing").Return(pgx.ErrNoRows)

		_, err := NewUserRepo(mockDB).GetByID(ctx, "missing")
		assert.ErrorIs(t, err, repository.ErrObjectNotFound)
	})
}

func TestUserRepo_UpdateTx(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	updated := time.Date(2025, 7, 16, 0, 0, 0, 0, time.UTC)
	mockTx := mock_database.NewMockTx(ctrl)
	mockTx.EXPECT().Exec(gomock.Any(), gomock.Any(), "Ada L.", &updated, "u1").Return(nil, nil)

	repo := &UserRepo{db: mock_database.NewMockDB(ctrl)}
	require.NoError(t, repo.UpdateTx(context.Background(), mockTx, &repository.User{ID: "u1", Name: "Ada L.", UpdatedAt: &updated}))
}
