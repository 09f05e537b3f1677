package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Togather-Foundation/eventease/internal/domain/users"
)

var _ users.Repository = (*UserRepository)(nil)

type UserRepository struct {
	store *Store
}

const userColumns = `SELECT id, username, email, role, password_hash, created_at FROM users`

func scanUser(row scanner) (*users.User, error) {
	var (
		user      users.User
		createdAt int64
	)
	if err := row.Scan(&user.ID, &user.Username, &user.Email, &user.Role, &user.PasswordHash, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, users.ErrNotFound
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}
	user.CreatedAt = fromMillis(createdAt)
	return &user, nil
}

func (r *UserRepository) Create(ctx context.Context, params users.CreateParams) (*users.User, error) {
	_, err := r.store.queryer().ExecContext(ctx, `
INSERT INTO users (id, username, email, role, password_hash, created_at)
VALUES (?, ?, ?, ?, ?, ?)
`, params.ID, params.Username, params.Email, params.Role, params.PasswordHash, r.store.nowMillis())
	if err != nil {
		if isUniqueViolation(err) {
			return nil, users.ErrUsernameTaken
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	return r.GetByID(ctx, params.ID)
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*users.User, error) {
	return scanUser(r.store.queryer().QueryRowContext(ctx, userColumns+` WHERE id = ?`, id))
}

func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*users.User, error) {
	return scanUser(r.store.queryer().QueryRowContext(ctx, userColumns+` WHERE username = ?`, username))
}

func (r *UserRepository) UpdateRole(ctx context.Context, id string, role string) (int64, error) {
	result, err := r.store.queryer().ExecContext(ctx, `UPDATE users SET role = ? WHERE id = ?`, role, id)
	if err != nil {
		return 0, fmt.Errorf("update user role: %w", err)
	}
	return rowsAffected(result)
}
