package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"matcha/internal/domain"
)

var _ domain.ActionTokenRepository = (*DB)(nil)

// CreateVerification stores an email verification token.
func (d *DB) CreateVerification(ctx context.Context, userID int64, token string, expiresAt time.Time) error {
	_, err := d.sql.ExecContext(ctx,
		"INSERT INTO email_verification_tokens (token, user_id, expires_at) VALUES ($1, $2, $3)",
		token, userID, expiresAt)
	return err
}

// GetVerification retrieves a verification token, or nil when unknown.
func (d *DB) GetVerification(ctx context.Context, token string) (*domain.ActionToken, error) {
	var t domain.ActionToken
	err := d.sql.QueryRowContext(ctx,
		"SELECT token, user_id, expires_at FROM email_verification_tokens WHERE token = $1",
		token,
	).Scan(&t.Token, &t.UserID, &t.ExpiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// DeleteVerification removes a verification token.
func (d *DB) DeleteVerification(ctx context.Context, token string) error {
	_, err := d.sql.ExecContext(ctx, "DELETE FROM email_verification_tokens WHERE token = $1", token)
	return err
}

// CreateReset stores a password reset token.
func (d *DB) CreateReset(ctx context.Context, userID int64, token string, expiresAt time.Time) error {
	_, err := d.sql.ExecContext(ctx,
		"INSERT INTO password_reset_tokens (token, user_id, expires_at) VALUES ($1, $2, $3)",
		token, userID, expiresAt)
	return err
}

// GetReset retrieves a reset token, or nil when unknown.
func (d *DB) GetReset(ctx context.Context, token string) (*domain.ActionToken, error) {
	var t domain.ActionToken
	err := d.sql.QueryRowContext(ctx,
		"SELECT token, user_id, expires_at, used_at FROM password_reset_tokens WHERE token = $1",
		token,
	).Scan(&t.Token, &t.UserID, &t.ExpiresAt, &t.UsedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// MarkResetUsed records that a reset token has been consumed.
func (d *DB) MarkResetUsed(ctx context.Context, token string) error {
	_, err := d.sql.ExecContext(ctx,
		"UPDATE password_reset_tokens SET used_at = now() WHERE token = $1 AND used_at IS NULL", token)
	return err
}
