package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap"

	mock_database "gitlab.ozon.dev/pupkingeorgij/quantumshop/internal/db/mocks"
	"gitlab.ozon.dev/pupkingeorgij/quantumshop/internal/repository"
	mock_storage "gitlab.ozon.dev/pupkingeorgij/quantumshop/internal/storage/mocks"
)

type sentMessage struct {
	topic string
	key   string
	value string
}

type fakeProducer struct {
	sent   []sentMessage
	err    error
	closed bool
}

func (p *fakeProducer) SendMessage(_ context.Context, topic string, key []byte, value []byte) error {
	if p.err != nil {
		return p.err
	}
	p.sent = append(p.sent, sentMessage{topic: topic, key: string(key), value: string(value)})
	return nil
}

func (p *fakeProducer) Close() error {
	p.closed = true
	return nil
}

type publisherFixture struct {
	publisher *Publisher
	db        *mock_database.MockDB
	tx        *mock_database.MockTx
	repo      *mock_storage.MockOutboxTaskRepository
	producer  *fakeProducer
	now       time.Time
}

func newPublisherFixture(t *testing.T) *publisherFixture {
	ctrl := gomock.NewController(t)

	f := &publisherFixture{
		db:       mock_database.NewMockDB(ctrl),
		tx:       mock_database.NewMockTx(ctrl),
		repo:     mock_storage.NewMockOutboxTaskRepository(ctrl),
		producer: &fakeProducer{},
		now:      time.Date(2025, 7, 15, 12, 0, 0, 0, time.UTC),
	}
	f.publisher = NewPublisher(f.db, f.repo, f.producer, PublisherConfig{
		PollInterval: time.Millisecond,
		BatchSize:    10,
		MaxAttempts:  3,
	}, zap.NewNop())
	f.publisher.timeNow = func() time.Time { return f.now }
	return f
}

func newTask(key string, attempts int) *repository.OutboxTask {
	return &repository.OutboxTask{
		ID:       uuid.New(),
		Status:   repository.TaskStatusCreated,
		Payload:  json.RawMessage(`{"type":"order_created"}`),
		Topic:    "order_events",
		Key:      key,
		Attempts: attempts,
	}
}

func (f *publisherFixture) expectClaim(ctx context.Context, tasks ...*repository.OutboxTask) {
	f.db.EXPECT().BeginTx(ctx).Return(f.tx, nil)
	f.repo.EXPECT().GetProcessableTasksTx(ctx, f.tx, 10, 3).Return(tasks, nil)
	for _, task := range tasks {
		f.repo.EXPECT().UpdateTaskStatusTx(ctx, f.tx, task.ID, repository.TaskStatusProcessing, task.Attempts, nil, nil).Return(nil)
	}
	f.tx.EXPECT().Commit(ctx).Return(nil)
	f.tx.EXPECT().Rollback(gomock.Any()).Return(nil).AnyTimes()
}

func TestPublisher_ProcessBatch(t *testing.T) {
	ctx := context.Background()

	t.Run("sends tasks keyed by order and marks them done", func(t *testing.T) {
		f := newPublisherFixture(t)
		first := newTask("ORD-1752612878561-ABC12", 0)
		second := newTask("", 1)

		f.expectClaim(ctx, first, second)
		f.repo.EXPECT().UpdateTaskStatus(ctx, first.ID, repository.TaskStatusDone, 0, nil, &f.now).Return(nil)
		f.repo.EXPECT().UpdateTaskStatus(ctx, second.ID, repository.TaskStatusDone, 1, nil, &f.now).Return(nil)

		require.NoError(t, f.publisher.processBatch(ctx))

		require.Len(t, f.producer.sent, 2)
		assert.Equal(t, sentMessage{
			topic: "order_events",
			key:   "ORD-1752612878561-ABC12",
			value: `{"type":"order_created"}`,
		}, f.producer.sent[0])
		assert.Equal(t, second.ID.String(), f.producer.sent[1].key)
	})

	t.Run("send failure records the attempt", func(t *testing.T) {
		f := newPublisherFixture(t)
		f.producer.err = errors.New("broker unavailable")
		task := newTask("ORD-1", 2)

		f.expectClaim(ctx, task)
		f.repo.EXPECT().UpdateTaskStatus(ctx, task.ID, repository.TaskStatusFailed, 3, gomock.Any(), nil).
			DoAndReturn(func(_ context.Context, _ uuid.UUID, _ repository.TaskStatus, _ int, lastError *string, _ *time.Time) error {
				require.NotNil(t, lastError)
				assert.Equal(t, "broker unavailable", *lastError)
				return nil
			})

		assert.NoError(t, f.publisher.processBatch(ctx))
	})

	t.Run("empty batch commits and sends nothing", func(t *testing.T) {
		f := newPublisherFixture(t)
		f.expectClaim(ctx)

		require.NoError(t, f.publisher.processBatch(ctx))
		assert.Empty(t, f.producer.sent)
	})

	t.Run("fetch failure rolls back", func(t *testing.T) {
		f := newPublisherFixture(t)
		f.db.EXPECT().BeginTx(ctx).Return(f.tx, nil)
		f.repo.EXPECT().GetProcessableTasksTx(ctx, f.tx, 10, 3).Return(nil, errors.New("connection reset"))
		f.tx.EXPECT().Rollback(gomock.Any()).Return(nil)

		err := f.publisher.processBatch(ctx)
		assert.ErrorContains(t, err, "failed to get processable tasks")
	})

	t.Run("shutdown releases claimed tasks", func(t *testing.T) {
		f := newPublisherFixture(t)
		first := newTask("ORD-1", 0)
		second := newTask("ORD-2", 2)
		f.expectClaim(ctx, first, second)
		f.repo.EXPECT().UpdateTaskStatus(gomock.Any(), first.ID, repository.TaskStatusCreated, 0, nil, nil).Return(nil)
		f.repo.EXPECT().UpdateTaskStatus(gomock.Any(), second.ID, repository.TaskStatusCreated, 2, nil, nil).Return(nil)

		close(f.publisher.shutdownSignal)

		assert.ErrorIs(t, f.publisher.processBatch(ctx), errShuttingDown)
		assert.Empty(t, f.producer.sent)
	})

	t.Run("cancellation releases claimed tasks", func(t *testing.T) {
		f := newPublisherFixture(t)
		task := newTask("ORD-1", 1)

		cancelled, cancel := context.WithCancel(ctx)
		f.db.EXPECT().BeginTx(cancelled).Return(f.tx, nil)
		f.repo.EXPECT().GetProcessableTasksTx(cancelled, f.tx, 10, 3).Return([]*repository.OutboxTask{task}, nil)
		f.repo.EXPECT().UpdateTaskStatusTx(cancelled, f.tx, task.ID, repository.TaskStatusProcessing, 1, nil, nil).Return(nil)
		f.tx.EXPECT().Commit(cancelled).DoAndReturn(func(context.Context) error {
			cancel()
			return nil
		})
		f.tx.EXPECT().Rollback(gomock.Any()).Return(nil).AnyTimes()
		f.repo.EXPECT().UpdateTaskStatus(gomock.Any(), task.ID, repository.TaskStatusCreated, 1, nil, nil).Return(nil)

		assert.ErrorIs(t, f.publisher.processBatch(cancelled), context.Canceled)
		assert.Empty(t, f.producer.sent)
	})
}

func TestPublisher_Shutdown(t *testing.T) {
	f := newPublisherFixture(t)
	f.db.EXPECT().BeginTx(gomock.Any()).Return(f.tx, nil).AnyTimes()
	f.repo.EXPECT().GetProcessableTasksTx(gomock.Any(), f.tx, 10, 3).Return(nil, nil).AnyTimes()
	f.tx.EXPECT().Commit(gomock.Any()).Return(nil).AnyTimes()
	f.tx.EXPECT().Rollback(gomock.Any()).Return(nil).AnyTimes()

	done := make(chan struct{})
	go func() {
		f.publisher.Run(context.Background())
		close(done)
	}()

	time.Sleep(10 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, f.publisher.Shutdown(ctx))
	require.NoError(t, f.publisher.Shutdown(ctx))

	<-done
	assert.True(t, f.producer.closed)
}
