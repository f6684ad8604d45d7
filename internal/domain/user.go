// Package domain contains the core business entities and interfaces.
package domain

import (
	"context"
	"time"
)

// User represents a registered account.
type User struct {
	ID              int64
	Email           string
	Username        string
	PasswordHash    string
	EmailVerifiedAt *time.Time
	CreatedAt       time.Time
}

// Identity is the per-request view of a verified credential. It is derived,
// never persisted.
type Identity struct {
	UserID   int64
	Username string
}

// Profile holds the editable public attributes of a user.
type Profile struct {
	UserID      int64
	DisplayName string
	Gender      *string
	SexualPref  *string
	Bio         string
	Birthdate   *string
	FameRating  int
}

// ProfilePatch is a partial profile update; nil fields are left untouched.
type ProfilePatch struct {
	DisplayName *string
	Gender      *string
	SexualPref  *string
	Bio         *string
	Birthdate   *string
	FameRating  *int
}

// IsEmpty reports whether the patch changes nothing.
func (p ProfilePatch) IsEmpty() bool {
	return p.DisplayName == nil && p.Gender == nil && p.SexualPref == nil &&
		p.Bio == nil && p.Birthdate == nil && p.FameRating == nil
}

// ActionToken is a single-use token mailed to a user for email verification
// or password reset.
type ActionToken struct {
	UserID    int64
	Token     string
	ExpiresAt time.Time
	UsedAt    *time.Time
}

// UserRepository defines the port for user persistence operations.
type UserRepository interface {
	Create(ctx context.Context, email, username, passwordHash string) (*User, error)
	GetByID(ctx context.Context, id int64) (*User, error)
	GetByUsername(ctx context.Context, username string) (*User, error)
	GetByEmailOrUsername(ctx context.Context, q string) (*User, error)
	SetPasswordHash(ctx context.Context, id int64, hash string) error
	MarkEmailVerified(ctx context.Context, id int64) error
}

// ProfileRepository defines the port for profile persistence operations.
type ProfileRepository interface {
	Get(ctx context.Context, userID int64) (*Profile, error)
	Upsert(ctx context.Context, userID int64, patch ProfilePatch) (*Profile, error)
}

// ActionTokenRepository defines the port for verification and reset tokens.
type ActionTokenRepository interface {
	CreateVerification(ctx context.Context, userID int64, token string, expiresAt time.Time) error
	GetVerification(ctx context.Context, token string) (*ActionToken, error)
	DeleteVerification(ctx context.Context, token string) error

	CreateReset(ctx context.Context, userID int64, token string, expiresAt time.Time) error
	GetReset(ctx context.Context, token string) (*ActionToken, error)
	MarkResetUsed(ctx context.Context, token string) error
}
