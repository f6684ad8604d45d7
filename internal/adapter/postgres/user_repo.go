package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lib/pq"

	"matcha/internal/domain"
)

var _ domain.UserRepository = (*DB)(nil)

const userColumns = "id, email, username, password_hash, email_verified_at, created_at"

func scanUser(row *sql.Row) (*domain.User, error) {
	var u domain.User
	err := row.Scan(&u.ID, &u.Email, &u.Username, &u.PasswordHash, &u.EmailVerifiedAt, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// Create creates a new user.
func (d *DB) Create(ctx context.Context, email, username, passwordHash string) (*domain.User, error) {
	u, err := scanUser(d.sql.QueryRowContext(ctx,
		"INSERT INTO users (email, username, password_hash) VALUES ($1, $2, $3) RETURNING "+userColumns,
		email, username, passwordHash,
	))
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return nil, domain.ErrUserAlreadyExists
	}
	if err != nil {
		return nil, err
	}
	return u, nil
}

// GetByID retrieves a user by ID.
func (d *DB) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	return scanUser(d.sql.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id = $1", id))
}

// GetByUsername retrieves a user by username.
func (d *DB) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	return scanUser(d.sql.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE lower(username) = lower($1)", username))
}

// GetByEmailOrUsername retrieves a user matching q against email or username.
func (d *DB) GetByEmailOrUsername(ctx context.Context, q string) (*domain.User, error) {
	return scanUser(d.sql.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE lower(email) = lower($1) OR lower(username) = lower($1)", q))
}

// SetPasswordHash replaces a user's password hash.
func (d *DB) SetPasswordHash(ctx context.Context, id int64, hash string) error {
	res, err := d.sql.ExecContext(ctx, "UPDATE users SET password_hash = $1 WHERE id = $2", hash, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

// MarkEmailVerified records the verification time.
func (d *DB) MarkEmailVerified(ctx context.Context, id int64) error {
	res, err := d.sql.ExecContext(ctx,
		"UPDATE users SET email_verified_at = now() WHERE id = $1 AND email_verified_at IS NULL", id)
	if err != nil {
		return err
	}
	if _, err := res.RowsAffected(); err != nil {
		return err
	}
	return nil
}
