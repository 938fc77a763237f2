package postgresql

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"

	"gitlab.ozon.dev/pupkingeorgij/quantumshop/internal/db"
	"gitlab.ozon.dev/pupkingeorgij/quantumshop/internal/repository"
	"gitlab.ozon.dev/pupkingeorgij/quantumshop/internal/storage"
)

const uniqueViolation = "23505"

type UserRepo struct {
	db db.DB
}

func NewUserRepo(db db.DB) storage.UserRepository {
	return &UserRepo{db: db}
}

func (r *UserRepo) Create(ctx context.Context, user *repository.User) error {
	_, err := r.db.Exec(ctx,
		"INSERT INTO users (id, email, name, created_at) VALUES ($1, $2, $3, $4)",
		user.ID, user.Email, user.Name, user.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return repository.ErrObjectExists
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (r *UserRepo) GetByID(ctx context.Context, id string) (*repository.User, error) {
	return r.getOne(ctx, r.db, "SELECT * FROM users WHERE id = $1", id)
}

func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*repository.User, error) {
	return r.getOne(ctx, r.db, "SELECT * FROM users WHERE email = $1", email)
}

func (r *UserRepo) GetByIDForUpdateTx(ctx context.Context, tx db.Tx, id string) (*repository.User, error) {
	return r.getOne(ctx, tx, "SELECT * FROM users WHERE id = $1 FOR UPDATE", id)
}

type getter interface {
	Get(ctx context.Context, dest interface{}, query string, args ...interface{}) error
}

func (r *UserRepo) getOne(ctx context.Context, q getter, query string, arg string) (*repository.User, error) {
	var user repository.User
	if err := q.Get(ctx, &user, query, arg); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrObjectNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (r *UserRepo) UpdateTx(ctx context.Context, tx db.Tx, user *repository.User) error {
	_, err := tx.Exec(ctx, "UPDATE users SET name = $1, updated_at = $2 WHERE id = $3",
		user.Name, user.UpdatedAt, user.ID)
	return err
}
