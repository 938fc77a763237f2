package postgresql

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v4"

	"gitlab.ozon.dev/pupkingeorgij/quantumshop/internal/db"
	"gitlab.ozon.dev/pupkingeorgij/quantumshop/internal/repository"
	"gitlab.ozon.dev/pupkingeorgij/quantumshop/internal/storage"
)

type ProductRepo struct {
	db db.DB
}

func NewProductRepo(db db.DB) storage.ProductRepository {
	return &ProductRepo{db: db}
}

func (r *ProductRepo) List(ctx context.Context) ([]*repository.Product, error) {
	var products []*repository.Product
	err := r.db.Select(ctx, &products, "SELECT * FROM products ORDER BY id ASC")
	return products, err
}

func (r *ProductRepo) GetByID(ctx context.Context, id string) (*repository.Product, error) {
	var product repository.Product
	err := r.db.Get(ctx, &product, "SELECT * FROM products WHERE id = $1", id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrObjectNotFound
		}
		return nil, err
	}
	return &product, nil
}

func (r *ProductRepo) GetByIDForUpdateTx(ctx context.Context, tx db.Tx, id string) (*repository.Product, error) {
	var product repository.Product
	err := tx.Get(ctx, &product, "SELECT * FROM products WHERE id = $1 FOR UPDATE", id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrObjectNotFound
		}
		return nil, err
	}
	return &product, nil
}

func (r *ProductRepo) UpdateStockTx(ctx context.Context, tx db.Tx, id string, stock int) error {
	cmdTag, err := tx.Exec(ctx, "UPDATE products SET stock = $1 WHERE id = $2 AND $1 >= 0", stock, id)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return repository.ErrObjectNotFound
	}
	return nil
}
