package repository

import (
	"context"
	"fmt"

	"github.com/Freeeeeet/class_scheduler/internal/model"
	"github.com/Freeeeeet/class_scheduler/internal/repository/base"
	"github.com/jackc/pgx/v5"
)

const userColumns = `id, name, password_hash, role`

// UserRepository stores users rows
type UserRepository struct {
	*base.Repository
}

// NewUserRepository creates a user repository over a pool or a transaction
func NewUserRepository(db base.DBTX) *UserRepository {
	return &UserRepository{Repository: base.NewRepository(db)}
}

// GetByName looks a user up by login name
func (r *UserRepository) GetByName(ctx context.Context, name string) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE name = $1`

	user, err := scanUser(r.QueryRow(ctx, query, name))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get user by name: %w", err)
	}

	return user, nil
}

// GetByID looks a user up by logical id
func (r *UserRepository) GetByID(ctx context.Context, id string) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	user, err := scanUser(r.QueryRow(ctx, query, id))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get user by id: %w", err)
	}

	return user, nil
}

// Upsert creates the user or replaces password and role of an existing name.
// The stored id wins over user.ID on conflict and is written back.
func (r *UserRepository) Upsert(ctx context.Context, user *model.User) error {
	query := `
		INSERT INTO users (id, name, password_hash, role)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (name) DO UPDATE
		SET password_hash = EXCLUDED.password_hash, role = EXCLUDED.role
		RETURNING id
	`

	err := r.QueryRow(ctx, query, user.ID, user.Name, user.PasswordHash, user.Role).Scan(&user.ID)
	if err != nil {
		return fmt.Errorf("upsert user: %w", err)
	}

	return nil
}

func scanUser(row pgx.Row) (*model.User, error) {
	var user model.User
	if err := row.Scan(&user.ID, &user.Name, &user.PasswordHash, &user.Role); err != nil {
		return nil, err
	}
	return &user, nil
}
