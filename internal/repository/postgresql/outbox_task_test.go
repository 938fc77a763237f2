package postgresql

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	mock_database "gitlab.ozon.dev/pupkingeorgij/quantumshop/internal/db/mocks"
	"gitlab.ozon.dev/pupkingeorgij/quantumshop/internal/repository"
)

func TestOutboxTaskRepo_CreateTx(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	now := time.Date(2025, 7, 15, 0, 0, 0, 0, time.UTC)
	mockTx := mock_database.NewMockTx(ctrl)
	repo := &OutboxTaskRepo{db: mock_database.NewMockDB(ctrl), timeNow: func() time.Time { return now }}

	task := &repository.OutboxTask{
		Payload: []byte(`{"type":"order.created"}`),
		Topic:   "order_events",
		Key:     "ORD-1",
	}

	mockTx.EXPECT().Exec(gomock.Any(), gomock.Any(),
		gomock.Any(),
		gomock.Eq(repository.TaskStatusCreated),
		gomock.Eq(task.Payload),
		gomock.Eq("order_events"),
		gomock.Eq("ORD-1"),
		gomock.Eq(now),
		gomock.Eq(now),
	).Return(nil, nil)

	require.NoError(t, repo.CreateTx(context.Background(), mockTx, task))
	assert.NotEqual(t, uuid.Nil, task.ID)
}

func TestOutboxTaskRepo_GetProcessableTasksTx(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	now := time.Date(2025, 7, 15, 12, 0, 0, 0, time.UTC)
	mockTx := mock_database.NewMockTx(ctrl)
	repo := &OutboxTaskRepo{db: mock_database.NewMockDB(ctrl), lease: time.Minute, timeNow: func() time.Time { return now }}

	stale := &repository.OutboxTask{ID: uuid.New(), Status: repository.TaskStatusProcessing}
	mockTx.EXPECT().Select(gomock.Any(), gomock.Any(), gomock.Any(),
		gomock.Eq(repository.TaskStatusCreated),
		gomock.Eq(repository.TaskStatusFailed),
		gomock.Eq(5),
		gomock.Eq(10),
		gomock.Eq(repository.TaskStatusProcessing),
		gomock.Eq(now.Add(-time.Minute)),
	).DoAndReturn(func(_ context.Context, dest interface{}, _ string, _ ...interface{}) error {
		*dest.(*[]*repository.OutboxTask) = []*repository.OutboxTask{stale}
		return nil
	})

	tasks, err := repo.GetProcessableTasksTx(context.Background(), mockTx, 10, 5)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, stale.ID, tasks[0].ID)
}

func TestOutboxTaskRepo_UpdateTaskStatus(t *testing.T) {
	ctx := context.Background()
	id := uuid.New()

	t.Run("not found", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		mockDB := mock_database.NewMockDB(ctrl)
		repo := NewOutboxTaskRepo(mockDB)

		mockDB.EXPECT().Exec(gomock.Any(), gomock.Any(), gomock.Eq(id), gomock.Eq(repository.TaskStatusDone),
			gomock.Eq(1), gomock.Any(), gomock.Any(), gomock.Any()).Return(pgconn.CommandTag("UPDATE 0"), nil)

		err := repo.UpdateTaskStatus(ctx, id, repository.TaskStatusDone, 1, nil, nil)
		assert.Equal(t, repository.ErrObjectNotFound, err)
	})

	t.Run("tx error is wrapped", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		mockTx := mock_database.NewMockTx(ctrl)
		repo := NewOutboxTaskRepo(mock_database.NewMockDB(ctrl))

		dbErr := errors.New("conn closed")
		mockTx.EXPECT().Exec(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(),
			gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, dbErr)

		err := repo.UpdateTaskStatusTx(ctx, mockTx, id, repository.TaskStatusProcessing, 0, nil, nil)
		assert.ErrorIs(t, err, dbErr)
	})
}
