//go:generate mockgen -source ./repositories.go -destination=./mocks/repositories.go -package=mock_storage
package storage

import (
	"context"
	"time"

	"github.com/google/uuid"

	"gitlab.ozon.dev/pupkingeorgij/quantumshop/internal/db"
	"gitlab.ozon.dev/pupkingeorgij/quantumshop/internal/repository"
)

type ProductRepository interface {
	List(ctx context.Context) ([]*repository.Product, error)
	GetByID(ctx context.Context, id string) (*repository.Product, error)
	GetByIDForUpdateTx(ctx context.Context, tx db.Tx, id string) (*repository.Product, error)
	UpdateStockTx(ctx context.Context, tx db.Tx, id string, stock int) error
}

type OrderRepository interface {
	CreateTx(ctx context.Context, tx db.Tx, order *repository.Order, items []*repository.OrderItem) error
	UpdateTx(ctx context.Context, tx db.Tx, order *repository.Order) error
	GetByID(ctx context.Context, id string) (*repository.Order, error)
	GetByIDForUpdateTx(ctx context.Context, tx db.Tx, id string) (*repository.Order, error)
	GetItems(ctx context.Context, orderIDs []string) ([]*repository.OrderItem, error)
	List(ctx context.Context) ([]*repository.Order, error)
	GetByUserID(ctx context.Context, userID string) ([]*repository.Order, error)
	GetActive(ctx context.Context) ([]*repository.Order, error)
}

type ReturnRepository interface {
	CreateTx(ctx context.Context, tx db.Tx, ret *repository.ReturnEntry) error
	GetByOrderIDs(ctx context.Context, orderIDs []string) ([]*repository.ReturnEntry, error)
}

type HistoryRepository interface {
	CreateTx(ctx context.Context, tx db.Tx, entry *repository.HistoryEntry) error
	GetByOrderID(ctx context.Context, orderID string) ([]*repository.HistoryEntry, error)
}

type ChatLogRepository interface {
	Create(ctx context.Context, log *repository.ChatLog) error
	GetBySessionID(ctx context.Context, sessionID string) ([]*repository.ChatLog, error)
}

type OutboxTaskRepository interface {
	CreateTx(ctx context.Context, tx db.Tx, task *repository.OutboxTask) error
	GetProcessableTasksTx(ctx context.Context, tx db.Tx, limit, maxAttempts int) ([]*repository.OutboxTask, error)
	UpdateTaskStatusTx(ctx context.Context, tx db.Tx, id uuid.UUID, status repository.TaskStatus, attempts int, lastError *string, completedAt *time.Time) error
	UpdateTaskStatus(ctx context.Context, id uuid.UUID, status repository.TaskStatus, attempts int, lastError *string, completedAt *time.Time) error
}

type UserRepository interface {
	Create(ctx context.Context, user *repository.User) error
	GetByID(ctx context.Context, id string) (*repository.User, error)
	GetByEmail(ctx context.Context, email string) (*repository.User, error)
	GetByIDForUpdateTx(ctx context.Context, tx db.Tx, id string) (*repository.User, error)
	UpdateTx(ctx context.Context, tx db.Tx, user *repository.User) error
}
