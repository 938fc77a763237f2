package storage

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap"

	"gitlab.ozon.dev/pupkingeorgij/quantumshop/internal/apperr"
	"gitlab.ozon.dev/pupkingeorgij/quantumshop/internal/db"
	mock_db "gitlab.ozon.dev/pupkingeorgij/quantumshop/internal/db/mocks"
	"gitlab.ozon.dev/pupkingeorgij/quantumshop/internal/repository"
	mock_storage "gitlab.ozon.dev/pupkingeorgij/quantumshop/internal/storage/mocks"
)

type postgresMocks struct {
	db       *mock_db.MockDB
	tx       *mock_db.MockTx
	products *mock_storage.MockProductRepository
	orders   *mock_storage.MockOrderRepository
	returns  *mock_storage.MockReturnRepository
	history  *mock_storage.MockHistoryRepository
	chatLogs *mock_storage.MockChatLogRepository
	outbox   *mock_storage.MockOutboxTaskRepository
	users    *mock_storage.MockUserRepository
}

func newPostgresStorage(t *testing.T, fixedTime time.Time) (*PostgresStorage, *postgresMocks) {
	ctrl := gomock.NewController(t)

	m := &postgresMocks{
		db:       mock_db.NewMockDB(ctrl),
		tx:       mock_db.NewMockTx(ctrl),
		products: mock_storage.NewMockProductRepository(ctrl),
		orders:   mock_storage.NewMockOrderRepository(ctrl),
		returns:  mock_storage.NewMockReturnRepository(ctrl),
		history:  mock_storage.NewMockHistoryRepository(ctrl),
		chatLogs: mock_storage.NewMockChatLogRepository(ctrl),
		outbox:   mock_storage.NewMockOutboxTaskRepository(ctrl),
		users:    mock_storage.NewMockUserRepository(ctrl),
	}

	s := NewPostgresStorage(m.db, Repositories{
		Products: m.products,
		Orders:   m.orders,
		Returns:  m.returns,
		History:  m.history,
		ChatLogs: m.chatLogs,
		Outbox:   m.outbox,
		Users:    m.users,
	}, "order_events", zap.NewNop())
	s.timeNow = func() time.Time { return fixedTime }
	return s, m
}

func TestPostgresStorage_PlaceOrder(t *testing.T) {
	ctx := context.Background()
	fixedTime := time.Date(2025, 7, 15, 12, 0, 0, 0, time.UTC)

	headphones := &repository.Product{ID: "1", Name: "Quantum Wireless Headphones", Price: 299.99, Stock: 25}
	storageDevice := &repository.Product{ID: "4", Name: "Quantum Storage Device", Price: 499.99, Stock: 30}

	build := func(items []OrderItem) (*Order, error) {
		return &Order{
			ID:        "ORD-1",
			UserID:    "demo-user",
			Items:     items,
			Total:     RoundCents(items[0].Total),
			Status:    StatusPending,
			CreatedAt: fixedTime,
		}, nil
	}

	t.Run("successful checkout", func(t *testing.T) {
		s, m := newPostgresStorage(t, fixedTime)

		m.db.EXPECT().BeginTx(ctx).Return(m.tx, nil)
		m.products.EXPECT().GetByIDForUpdateTx(ctx, m.tx, "1").Return(headphones, nil)
		m.orders.EXPECT().CreateTx(ctx, m.tx, gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, _ db.Tx, o *repository.Order, items []*repository.OrderItem) error {
				assert.Equal(t, "ORD-1", o.ID)
				assert.Equal(t, "pending", o.Status)
				require.Len(t, items, 1)
				assert.Equal(t, 2, items[0].Quantity)
				assert.Equal(t, 599.98, items[0].Total)
				return nil
			})
		m.products.EXPECT().UpdateStockTx(ctx, m.tx, "1", 23).Return(nil)
		m.history.EXPECT().CreateTx(ctx, m.tx, &repository.HistoryEntry{
			OrderID:   "ORD-1",
			Status:    "pending",
			ChangedAt: fixedTime,
		}).Return(nil)
		m.outbox.EXPECT().CreateTx(ctx, m.tx, gomock.Any()).DoAndReturn(
			func(_ context.Context, _ db.Tx, task *repository.OutboxTask) error {
				assert.Equal(t, "order_events", task.Topic)
				assert.Equal(t, "ORD-1", task.Key)

				var event OrderEvent
				require.NoError(t, json.Unmarshal(task.Payload, &event))
				assert.Equal(t, EventOrderCreated, event.Type)
				return nil
			})
		m.tx.EXPECT().Commit(ctx).Return(nil)
		m.tx.EXPECT().Rollback(gomock.Any()).Return(nil).AnyTimes()

		order, err := s.PlaceOrder(ctx, []OrderLine{{ProductID: "1", Quantity: 2}}, build)
		require.NoError(t, err)
		assert.Equal(t, 599.98, order.Total)
	})

	t.Run("insufficient stock rolls back", func(t *testing.T) {
		s, m := newPostgresStorage(t, fixedTime)

		m.db.EXPECT().BeginTx(ctx).Return(m.tx, nil)
		m.products.EXPECT().GetByIDForUpdateTx(ctx, m.tx, "4").Return(storageDevice, nil)
		m.tx.EXPECT().Rollback(gomock.Any()).Return(nil)

		_, err := s.PlaceOrder(ctx, []OrderLine{{ProductID: "4", Quantity: 1000}}, build)

		var stockErr *apperr.StockError
		require.True(t, errors.As(err, &stockErr))
		assert.Equal(t, 30, stockErr.Available)
		assert.Equal(t, 1000, stockErr.Requested)
	})

	t.Run("unknown product", func(t *testing.T) {
		s, m := newPostgresStorage(t, fixedTime)

		m.db.EXPECT().BeginTx(ctx).Return(m.tx, nil)
		m.products.EXPECT().GetByIDForUpdateTx(ctx, m.tx, "999").Return(nil, repository.ErrObjectNotFound)
		m.tx.EXPECT().Rollback(gomock.Any()).Return(nil)

		_, err := s.PlaceOrder(ctx, []OrderLine{{ProductID: "999", Quantity: 1}}, build)
		assert.ErrorIs(t, err, apperr.ErrProductNotFound)
		assert.Equal(t, "Product not found: 999", err.Error())
	})

	t.Run("begin fails", func(t *testing.T) {
		s, m := newPostgresStorage(t, fixedTime)

		dbErr := errors.New("too many connections")
		m.db.EXPECT().BeginTx(ctx).Return(nil, dbErr)

		_, err := s.PlaceOrder(ctx, []OrderLine{{ProductID: "1", Quantity: 1}}, build)
		assert.ErrorIs(t, err, dbErr)
	})
}

func TestPostgresStorage_UpdateOrder(t *testing.T) {
	ctx := context.Background()
	fixedTime := time.Date(2025, 7, 16, 9, 0, 0, 0, time.UTC)

	row := &repository.Order{ID: "ORD-1", UserID: "demo-user", Status: "shipped", Total: 199.99}

	t.Run("status change writes history and event", func(t *testing.T) {
		s, m := newPostgresStorage(t, fixedTime)

		m.db.EXPECT().BeginTx(ctx).Return(m.tx, nil)
		m.orders.EXPECT().GetByIDForUpdateTx(ctx, m.tx, "ORD-1").Return(row, nil)
		m.orders.EXPECT().GetItems(ctx, []string{"ORD-1"}).Return([]*repository.OrderItem{
			{OrderID: "ORD-1", ProductID: "6", Name: "Smart Home Hub", Price: 199.99, Quantity: 1, Total: 199.99},
		}, nil)
		m.returns.EXPECT().GetByOrderIDs(ctx, []string{"ORD-1"}).Return(nil, nil)
		m.orders.EXPECT().UpdateTx(ctx, m.tx, gomock.Any()).DoAndReturn(
			func(_ context.Context, _ db.Tx, o *repository.Order) error {
				assert.Equal(t, "delivered", o.Status)
				require.NotNil(t, o.DeliveredAt)
				return nil
			})
		m.history.EXPECT().CreateTx(ctx, m.tx, &repository.HistoryEntry{
			OrderID:   "ORD-1",
			Status:    "delivered",
			ChangedAt: fixedTime,
		}).Return(nil)
		m.outbox.EXPECT().CreateTx(ctx, m.tx, gomock.Any()).Return(nil)
		m.tx.EXPECT().Commit(ctx).Return(nil)
		m.tx.EXPECT().Rollback(gomock.Any()).Return(nil).AnyTimes()

		order, err := s.UpdateOrder(ctx, "ORD-1", func(o *Order) error {
			o.Status = StatusDelivered
			o.DeliveredAt = &fixedTime
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, StatusDelivered, order.Status)
		assert.Len(t, order.Items, 1)
	})

	t.Run("new return is inserted", func(t *testing.T) {
		s, m := newPostgresStorage(t, fixedTime)

		m.db.EXPECT().BeginTx(ctx).Return(m.tx, nil)
		m.orders.EXPECT().GetByIDForUpdateTx(ctx, m.tx, "ORD-1").Return(row, nil)
		m.orders.EXPECT().GetItems(ctx, gomock.Any()).Return(nil, nil)
		m.returns.EXPECT().GetByOrderIDs(ctx, gomock.Any()).Return(nil, nil)
		m.orders.EXPECT().UpdateTx(ctx, m.tx, gomock.Any()).Return(nil)
		m.returns.EXPECT().CreateTx(ctx, m.tx, gomock.Any()).DoAndReturn(
			func(_ context.Context, _ db.Tx, ret *repository.ReturnEntry) error {
				assert.Equal(t, "RET-1", ret.ID)
				assert.Equal(t, "Damaged", ret.Reason)
				assert.JSONEq(t, `[]`, string(ret.Items))
				return nil
			})
		m.outbox.EXPECT().CreateTx(ctx, m.tx, gomock.Any()).Return(nil)
		m.tx.EXPECT().Commit(ctx).Return(nil)
		m.tx.EXPECT().Rollback(gomock.Any()).Return(nil).AnyTimes()

		order, err := s.UpdateOrder(ctx, "ORD-1", func(o *Order) error {
			o.Returns = append(o.Returns, ReturnRequest{
				ID: "RET-1", OrderID: o.ID, Reason: "Damaged", Items: []OrderItem{}, Status: "pending", CreatedAt: fixedTime,
			})
			return nil
		})
		require.NoError(t, err)
		assert.Len(t, order.Returns, 1)
	})

	t.Run("mutation error aborts", func(t *testing.T) {
		s, m := newPostgresStorage(t, fixedTime)

		m.db.EXPECT().BeginTx(ctx).Return(m.tx, nil)
		m.orders.EXPECT().GetByIDForUpdateTx(ctx, m.tx, "ORD-1").Return(row, nil)
		m.orders.EXPECT().GetItems(ctx, gomock.Any()).Return(nil, nil)
		m.returns.EXPECT().GetByOrderIDs(ctx, gomock.Any()).Return(nil, nil)
		m.tx.EXPECT().Rollback(gomock.Any()).Return(nil)

		_, err := s.UpdateOrder(ctx, "ORD-1", func(*Order) error { return apperr.ErrReturnNotAvailable })
		assert.ErrorIs(t, err, apperr.ErrReturnNotAvailable)
	})

	t.Run("order not found", func(t *testing.T) {
		s, m := newPostgresStorage(t, fixedTime)

		m.db.EXPECT().BeginTx(ctx).Return(m.tx, nil)
		m.orders.EXPECT().GetByIDForUpdateTx(ctx, m.tx, "missing").Return(nil, repository.ErrObjectNotFound)
		m.tx.EXPECT().Rollback(gomock.Any()).Return(nil)

		_, err := s.UpdateOrder(ctx, "missing", func(*Order) error { return nil })
		assert.ErrorIs(t, err, apperr.ErrOrderNotFound)
	})
}

func TestPostgresStorage_GetUserOrders(t *testing.T) {
	ctx := context.Background()
	s, m := newPostgresStorage(t, time.Now())

	m.orders.EXPECT().GetByUserID(ctx, "u1").Return([]*repository.Order{{ID: "A", UserID: "u1"}, {ID: "B", UserID: "u1"}}, nil)
	m.orders.EXPECT().GetItems(ctx, []string{"A", "B"}).Return([]*repository.OrderItem{
		{OrderID: "B", ProductID: "2", Quantity: 1},
	}, nil)
	m.returns.EXPECT().GetByOrderIDs(ctx, []string{"A", "B"}).Return([]*repository.ReturnEntry{
		{ID: "RET-1", OrderID: "A", Items: json.RawMessage(`[{"productId":"1","quantity":1}]`)},
	}, nil)

	orders, err := s.GetUserOrders(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, orders, 2)
	assert.Empty(t, orders[0].Items)
	require.Len(t, orders[0].Returns, 1)
	assert.Equal(t, "1", orders[0].Returns[0].Items[0].ProductID)
	assert.Equal(t, "2", orders[1].Items[0].ProductID)
}

func TestPostgresStorage_GetProductNotFound(t *testing.T) {
	ctx := context.Background()
	s, m := newPostgresStorage(t, time.Now())

	m.products.EXPECT().GetByID(ctx, "42").Return(nil, repository.ErrObjectNotFound)

	_, err := s.GetProduct(ctx, "42")
	assert.ErrorIs(t, err, apperr.ErrProductNotFound)
}

func TestPostgresStorage_ChatHistory(t *testing.T) {
	ctx := context.Background()
	s, m := newPostgresStorage(t, time.Now())

	m.chatLogs.EXPECT().GetBySessionID(ctx, "s1").Return([]*repository.ChatLog{
		{SessionID: "s1", UserMessage: "hi", BotResponse: "hello", TotalTokens: 12, PromptTokens: 10, CompletionTokens: 2},
	}, nil)

	history, err := s.ChatHistory(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, history, 1)
	require.NotNil(t, history[0].Usage)
	assert.Equal(t, 12, history[0].Usage.TotalTokens)
}

func TestPostgresStorage_Users(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 7, 15, 12, 0, 0, 0, time.UTC)

	t.Run("duplicate email", func(t *testing.T) {
		s, m := newPostgresStorage(t, now)
		m.users.EXPECT().Create(ctx, gomock.Any()).Return(repository.ErrObjectExists)

		err := s.CreateUser(ctx, &User{ID: "u1", Email: "demo@example.com", Name: "Again"})
		assert.ErrorIs(t, err, apperr.ErrUserExists)
	})

	t.Run("lookup by email", func(t *testing.T) {
		s, m := newPostgresStorage(t, now)
		m.users.EXPECT().GetByEmail(ctx, "demo@example.com").Return(&repository.User{ID: "demo-user", Email: "demo@example.com", Name: "Demo User"}, nil)
		m.users.EXPECT().GetByEmail(ctx, "nobody@example.com").Return(nil, repository.ErrObjectNotFound)

		u, err := s.GetUserByEmail(ctx, "demo@example.com")
		require.NoError(t, err)
		assert.Equal(t, "demo-user", u.ID)

		_, err = s.GetUserByEmail(ctx, "nobody@example.com")
		assert.ErrorIs(t, err, apperr.ErrUserNotFound)
	})

	t.Run("update locks the row and keeps the email", func(t *testing.T) {
		s, m := newPostgresStorage(t, now)
		m.db.EXPECT().BeginTx(ctx).Return(m.tx, nil)
		m.users.EXPECT().GetByIDForUpdateTx(ctx, m.tx, "demo-user").Return(&repository.User{ID: "demo-user", Email: "demo@example.com", Name: "Demo User"}, nil)
		m.users.EXPECT().UpdateTx(ctx, m.tx, &repository.User{ID: "demo-user", Email: "demo@example.com", Name: "Renamed", UpdatedAt: &now}).Return(nil)
		m.tx.EXPECT().Commit(ctx).Return(nil)
		m.tx.EXPECT().Rollback(gomock.Any()).Return(nil)

		u, err := s.UpdateUser(ctx, "demo-user", func(u *User) error {
			u.Name = "Renamed"
			u.Email = "other@example.com"
			u.UpdatedAt = &now
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, "Renamed", u.Name)
		assert.Equal(t, "demo@example.com", u.Email)
	})

	t.Run("update of a missing user", func(t *testing.T) {
		s, m := newPostgresStorage(t, now)
		m.db.EXPECT().BeginTx(ctx).Return(m.tx, nil)
		m.users.EXPECT().GetByIDForUpdateTx(ctx, m.tx, "nobody").Return(nil, repository.ErrObjectNotFound)
		m.tx.EXPECT().Rollback(gomock.Any()).Return(nil)

		_, err := s.UpdateUser(ctx, "nobody", func(*User) error { return nil })
		assert.ErrorIs(t, err, apperr.ErrUserNotFound)
	})
}
