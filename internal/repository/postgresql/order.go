package postgresql

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"

	"gitlab.ozon.dev/pupkingeorgij/quantumshop/internal/db"
	"gitlab.ozon.dev/pupkingeorgij/quantumshop/internal/repository"
	"gitlab.ozon.dev/pupkingeorgij/quantumshop/internal/storage"
)

type OrderRepo struct {
	db db.DB
}

func NewOrderRepo(db db.DB) storage.OrderRepository {
	return &OrderRepo{db: db}
}

func (r *OrderRepo) CreateTx(ctx context.Context, tx db.Tx, order *repository.Order, items []*repository.OrderItem) error {
	_, err := tx.Exec(ctx, `
        INSERT INTO orders (
            id, user_id, total, status, shipping_address, payment_method,
            tracking_number, estimated_delivery, created_at
        ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
    `, order.ID, order.UserID, order.Total, order.Status, order.ShippingAddress, order.PaymentMethod,
		order.TrackingNumber, order.EstimatedDelivery, order.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}

	for _, item := range items {
		_, err := tx.Exec(ctx, `
            INSERT INTO order_items (
                order_id, product_id, name, price, quantity, total
            ) VALUES ($1, $2, $3, $4, $5, $6)
        `, order.ID, item.ProductID, item.Name, item.Price, item.Quantity, item.Total)
		if err != nil {
			return fmt.Errorf("insert order item %s: %w", item.ProductID, err)
		}
	}
	return nil
}

func (r *OrderRepo) UpdateTx(ctx context.Context, tx db.Tx, order *repository.Order) error {
	_, err := tx.Exec(ctx, `
        UPDATE orders
        SET
            status = $1,
            updated_at = $2,
            shipped_at = $3,
            delivered_at = $4
        WHERE id = $5
    `, order.Status, order.UpdatedAt, order.ShippedAt, order.DeliveredAt, order.ID)
	return err
}

func (r *OrderRepo) GetByID(ctx context.Context, id string) (*repository.Order, error) {
	var order repository.Order
	err := r.db.Get(ctx, &order, "SELECT * FROM orders WHERE id = $1", id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrObjectNotFound
		}
		return nil, err
	}
	return &order, nil
}

func (r *OrderRepo) GetByIDForUpdateTx(ctx context.Context, tx db.Tx, id string) (*repository.Order, error) {
	var order repository.Order
	err := tx.Get(ctx, &order, "SELECT * FROM orders WHERE id = $1 FOR UPDATE", id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrObjectNotFound
		}
		return nil, err
	}
	return &order, nil
}

func (r *OrderRepo) GetItems(ctx context.Context, orderIDs []string) ([]*repository.OrderItem, error) {
	var items []*repository.OrderItem
	err := r.db.Select(ctx, &items, `
        SELECT * FROM order_items
        WHERE order_id = ANY($1)
        ORDER BY id ASC
    `, orderIDs)
	return items, err
}

func (r *OrderRepo) List(ctx context.Context) ([]*repository.Order, error) {
	var orders []*repository.Order
	err := r.db.Select(ctx, &orders, "SELECT * FROM orders ORDER BY created_at ASC")
	return orders, err
}

func (r *OrderRepo) GetByUserID(ctx context.Context, userID string) ([]*repository.Order, error) {
	var orders []*repository.Order
	err := r.db.Select(ctx, &orders, `
        SELECT * FROM orders
        WHERE user_id = $1
        ORDER BY created_at ASC
    `, userID)
	return orders, err
}

func (r *OrderRepo) GetActive(ctx context.Context) ([]*repository.Order, error) {
	query := `
        SELECT * FROM orders
        WHERE status NOT IN ('delivered', 'cancelled')
        ORDER BY created_at ASC
    `
	var orders []*repository.Order
	err := r.db.Select(ctx, &orders, query)
	if err != nil {
		return nil, fmt.Errorf("failed to get active orders: %w", err)
	}
	return orders, nil
}
