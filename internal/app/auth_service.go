// Package app holds the application services and business logic.
package app

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"net/mail"
	"time"

	"golang.org/x/crypto/bcrypt"

	"matcha/internal/domain"
	"matcha/internal/logging"
	outmail "matcha/internal/mail"
)

const (
	bcryptCost     = 10
	actionTokenTTL = time.Hour
)

// AuthService handles account lifecycle: registration, password login,
// email verification and password reset. Credential minting lives in the
// HTTP adapter; this service only proves who the user is.
type AuthService struct {
	users  domain.UserRepository
	tokens domain.ActionTokenRepository
	mailer outmail.Mailer
	log    logging.Logger

	// frontendURL is the base for links embedded in outbound mail.
	frontendURL string
}

// NewAuthService creates an AuthService.
func NewAuthService(users domain.UserRepository, tokens domain.ActionTokenRepository, mailer outmail.Mailer, log logging.Logger, frontendURL string) *AuthService {
	return &AuthService{
		users:       users,
		tokens:      tokens,
		mailer:      mailer,
		log:         log,
		frontendURL: frontendURL,
	}
}

// Register creates an account and fires off a verification mail. The mail is
// best-effort: a delivery failure is logged and never fails the
// registration.
func (s *AuthService) Register(ctx context.Context, email, username, password string) (*domain.User, error) {
	details := map[string]string{}
	if _, err := mail.ParseAddress(email); err != nil {
		details["email"] = "invalid email"
	}
	if len(username) < 3 || len(username) > 30 {
		details["username"] = "must be 3-30 characters"
	}
	if err := validatePassword(password); err != nil {
		details["password"] = err.Error()
	}
	if len(details) > 0 {
		return nil, domain.BadRequest("VALIDATION_ERROR", "Invalid request").WithDetails(details)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return nil, err
	}

	user, err := s.users.Create(ctx, email, username, string(hash))
	if err != nil {
		return nil, err
	}

	if err := s.sendVerification(ctx, user); err != nil {
		s.log.Warn("verification mail failed", "user_id", user.ID, "error", err)
	}
	return user, nil
}

// Login authenticates by email or username plus password.
func (s *AuthService) Login(ctx context.Context, emailOrUsername, password string) (*domain.User, error) {
	user, err := s.users.GetByEmailOrUsername(ctx, emailOrUsername)
	if err != nil {
		return nil, err
	}
	// SSO-provisioned accounts have no password hash; they cannot use
	// password login.
	if user == nil || user.PasswordHash == "" {
		return nil, domain.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, domain.ErrInvalidCredentials
	}
	return user, nil
}

// GetUser loads a user by id.
func (s *AuthService) GetUser(ctx context.Context, id int64) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, domain.ErrUserNotFound
	}
	return user, nil
}

// VerifyEmail consumes a verification token and marks the account verified.
func (s *AuthService) VerifyEmail(ctx context.Context, tok string) error {
	if tok == "" {
		return domain.ErrMissingToken
	}
	row, err := s.tokens.GetVerification(ctx, tok)
	if err != nil {
		return err
	}
	if row == nil {
		return domain.ErrInvalidToken
	}
	if time.Now().After(row.ExpiresAt) {
		return domain.ErrTokenExpired
	}
	if err := s.users.MarkEmailVerified(ctx, row.UserID); err != nil {
		return err
	}
	return s.tokens.DeleteVerification(ctx, tok)
}

// ForgotPassword creates and mails a reset token. It succeeds whether or not
// the account exists, so callers cannot enumerate users.
func (s *AuthService) ForgotPassword(ctx context.Context, emailOrUsername string) error {
	user, err := s.users.GetByEmailOrUsername(ctx, emailOrUsername)
	if err != nil {
		return err
	}
	if user == nil {
		return nil
	}

	tok, err := randomToken(24)
	if err != nil {
		return err
	}
	if err := s.tokens.CreateReset(ctx, user.ID, tok, time.Now().Add(actionTokenTTL)); err != nil {
		s.log.Warn("reset token create failed", "user_id", user.ID, "error", err)
		return nil
	}
	err = s.mailer.Send(ctx, outmail.Message{
		To:      user.Email,
		Subject: "Reset your password",
		Text:    "To reset your password, open: " + s.frontendURL + "/reset-password?token=" + tok,
	})
	if err != nil {
		s.log.Warn("reset mail failed", "user_id", user.ID, "error", err)
	}
	return nil
}

// ResetPassword consumes a reset token and replaces the password.
func (s *AuthService) ResetPassword(ctx context.Context, tok, newPassword string) error {
	if tok == "" {
		return domain.ErrMissingToken
	}
	if err := validatePassword(newPassword); err != nil {
		return domain.BadRequest("VALIDATION_ERROR", "Invalid request").
			WithDetails(map[string]string{"newPassword": err.Error()})
	}

	row, err := s.tokens.GetReset(ctx, tok)
	if err != nil {
		return err
	}
	if row == nil {
		return domain.ErrInvalidToken
	}
	if row.UsedAt != nil {
		return domain.ErrTokenAlreadyUsed
	}
	if time.Now().After(row.ExpiresAt) {
		return domain.ErrTokenExpired
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcryptCost)
	if err != nil {
		return err
	}
	if err := s.users.SetPasswordHash(ctx, row.UserID, string(hash)); err != nil {
		return err
	}
	return s.tokens.MarkResetUsed(ctx, tok)
}

// LoginSSO loads or provisions the account for an externally authenticated
// user. SSO accounts are created with an empty password hash.
func (s *AuthService) LoginSSO(ctx context.Context, email string) (*domain.User, error) {
	user, err := s.users.GetByEmailOrUsername(ctx, email)
	if err != nil {
		return nil, err
	}
	if user != nil {
		return user, nil
	}

	user, err = s.users.Create(ctx, email, email, "")
	if err != nil {
		// Lost a provisioning race; the row exists now.
		user, err = s.users.GetByEmailOrUsername(ctx, email)
		if err != nil || user == nil {
			return nil, domain.ErrInvalidCredentials
		}
	}
	return user, nil
}

func (s *AuthService) sendVerification(ctx context.Context, user *domain.User) error {
	tok, err := randomToken(24)
	if err != nil {
		return err
	}
	if err := s.tokens.CreateVerification(ctx, user.ID, tok, time.Now().Add(actionTokenTTL)); err != nil {
		return err
	}
	return s.mailer.Send(ctx, outmail.Message{
		To:      user.Email,
		Subject: "Verify your email",
		Text:    "Click to verify: " + s.frontendURL + "/verify-email?token=" + tok,
	})
}

func validatePassword(pw string) error {
	if len(pw) < 8 || len(pw) > 128 {
		return domain.BadRequest("VALIDATION_ERROR", "must be 8-128 characters")
	}
	return nil
}

func randomToken(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
