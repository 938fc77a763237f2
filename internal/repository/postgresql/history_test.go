package postgresql

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/mock/gomock"

	mock_database "gitlab.ozon.dev/pupkingeorgij/quantumshop/internal/db/mocks"
	"gitlab.ozon.dev/pupkingeorgij/quantumshop/internal/repository"
)

func TestHistoryRepo_CreateTx(t *testing.T) {
	ctx := context.Background()
	changed := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	t.Run("Success", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		mockDB := mock_database.NewMockDB(ctrl)
		mockTx := mock_database.NewMockTx(ctrl)
		repo := NewHistoryRepo(mockDB)

		entry := &repository.HistoryEntry{
			OrderID:   "order123",
			Status:    "delivered",
			ChangedAt: changed,
		}

		mockTx.EXPECT().
			Exec(gomock.Any(), gomock.Any(),
				gomock.Eq(entry.OrderID),
				gomock.Eq(entry.Status),
				gomock.Eq(entry.ChangedAt)).
			Return(nil, nil)

		err := repo.CreateTx(ctx, mockTx, entry)
		assert.NoError(t, err)
	})

	t.Run("DB Error", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		mockDB := mock_database.NewMockDB(ctrl)
		mockTx := mock_database.NewMockTx(ctrl)
		repo := NewHistoryRepo(mockDB)

		dbErr := errors.New("db error")
		mockTx.EXPECT().
			Exec(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
			Return(nil, dbErr)

		err := repo.CreateTx(ctx, mockTx, &repository.HistoryEntry{OrderID: "order123", ChangedAt: changed})
		assert.Equal(t, dbErr, err)
	})
}

func TestHistoryRepo_GetByOrderID(t *testing.T) {
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		mockDB := mock_database.NewMockDB(ctrl)
		repo := NewHistoryRepo(mockDB)

		changed := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
		expected := []*repository.HistoryEntry{
			{ID: 1, OrderID: "order123", Status: "pending", ChangedAt: changed},
			{ID: 2, OrderID: "order123", Status: "processing", ChangedAt: changed.Add(5 * time.Second)},
		}

		mockDB.EXPECT().
			Select(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Eq("order123")).
			DoAndReturn(func(_ context.Context, dest *[]*repository.HistoryEntry, _ string, _ ...interface{}) error {
				*dest = expected
				return nil
			})

		entries, err := repo.GetByOrderID(ctx, "order123")
		assert.NoError(t, err)
		assert.Equal(t, expected, entries)
	})

	t.Run("DB Error", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		mockDB := mock_database.NewMockDB(ctrl)
		repo := NewHistoryRepo(mockDB)

		dbErr := errors.New("db error")
		mockDB.EXPECT().Select(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Eq("order123")).Return(dbErr)

		entries, err := repo.GetByOrderID(ctx, "order123")
		assert.Nil(t, entries)
		assert.Equal(t, dbErr, err)
	})
}
