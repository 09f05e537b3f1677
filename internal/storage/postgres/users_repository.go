package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/Togather-Foundation/eventease/internal/domain/users"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

var _ users.Repository = (*UserRepository)(nil)

type UserRepository struct {
	pool *pgxpool.Pool
	tx   pgx.Tx
}

const userColumns = `SELECT id, username, email, role, password_hash, created_at FROM users`

func scanUser(row pgx.Row) (*users.User, error) {
	var (
		user      users.User
		createdAt pgtype.Timestamptz
	)
	if err := row.Scan(&user.ID, &user.Username, &user.Email, &user.Role, &user.PasswordHash, &createdAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, users.ErrNotFound
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}
	user.CreatedAt = timestamp(createdAt)
	return &user, nil
}

func (r *UserRepository) Create(ctx context.Context, params users.CreateParams) (*users.User, error) {
	_, err := r.queryer().Exec(ctx, `
INSERT INTO users (id, username, email, role, password_hash)
VALUES ($1, $2, $3, $4, $5)
`, params.ID, params.Username, params.Email, params.Role, params.PasswordHash)
	if err != nil {
		if pgErrorCode(err) == codeUniqueViolation {
			return nil, users.ErrUsernameTaken
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	return r.GetByID(ctx, params.ID)
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*users.User, error) {
	return scanUser(r.queryer().QueryRow(ctx, userColumns+` WHERE id = $1`, id))
}

func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*users.User, error) {
	return scanUser(r.queryer().QueryRow(ctx, userColumns+` WHERE username = $1`, username))
}

func (r *UserRepository) UpdateRole(ctx context.Context, id string, role string) (int64, error) {
	tag, err := r.queryer().Exec(ctx, `UPDATE users SET role = $2 WHERE id = $1`, id, role)
	if err != nil {
		return 0, fmt.Errorf("update user role: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *UserRepository) queryer() queryer {
	return pick(r.pool, r.tx)
}
