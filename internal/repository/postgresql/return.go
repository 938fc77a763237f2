package postgresql

import (
	"context"

	"gitlab.ozon.dev/pupkingeorgij/quantumshop/internal/db"
	"gitlab.ozon.dev/pupkingeorgij/quantumshop/internal/repository"
	"gitlab.ozon.dev/pupkingeorgij/quantumshop/internal/storage"
)

type ReturnRepo struct {
	db db.DB
}

func NewReturnRepo(db db.DB) storage.ReturnRepository {
	return &ReturnRepo{db: db}
}

func (r *ReturnRepo) CreateTx(ctx context.Context, tx db.Tx, ret *repository.ReturnEntry) error {
	_, err := tx.Exec(ctx, `
        INSERT INTO order_returns (
            id, order_id, reason, items, status, created_at
        ) VALUES ($1, $2, $3, $4, $5, $6)
    `, ret.ID, ret.OrderID, ret.Reason, ret.Items, ret.Status, ret.CreatedAt)
	return err
}

func (r *ReturnRepo) GetByOrderIDs(ctx context.Context, orderIDs []string) ([]*repository.ReturnEntry, error) {
	var returns []*repository.ReturnEntry
	err := r.db.Select(ctx, &returns, `
        SELECT * FROM order_returns
        WHERE order_id = ANY($1)
        ORDER BY created_at ASC
    `, orderIDs)
	return returns, err
}
