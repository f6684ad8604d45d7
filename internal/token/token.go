// Package token implements the credential codec: a compact signed token
// carrying user identity and expiry. Validity is purely cryptographic plus
// expiry; nothing is persisted server-side and there is no refresh path.
package token

import (
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"matcha/internal/domain"
)

// CredentialTTL is the fixed credential lifetime. Re-authentication is the
// only way to obtain a new token.
const CredentialTTL = 15 * time.Minute

type claims struct {
	jwt.RegisteredClaims
	Username string `json:"username"`
}

// Codec mints and verifies credentials with a process-wide HS256 key.
type Codec struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewCodec creates a codec signing with secret. ttl <= 0 falls back to
// CredentialTTL.
func NewCodec(secret string, ttl time.Duration) *Codec {
	if ttl <= 0 {
		ttl = CredentialTTL
	}
	return &Codec{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Mint produces a signed, time-bounded credential for the user.
func (c *Codec) Mint(userID int64, username string) (string, error) {
	now := c.now()
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(userID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.ttl)),
		},
		Username: username,
	})
	return t.SignedString(c.secret)
}

// Verify checks the signature and expiry and returns the embedded identity.
// Any failure is domain.ErrInvalidCredentials: a bad signature, a malformed
// payload, or a token at or past its expiry.
func (c *Codec) Verify(tok string) (domain.Identity, error) {
	cl := &claims{}
	parsed, err := jwt.ParseWithClaims(tok, cl, func(*jwt.Token) (any, error) {
		return c.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(c.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !parsed.Valid {
		return domain.Identity{}, domain.ErrInvalidCredentials
	}

	userID, err := strconv.ParseInt(cl.Subject, 10, 64)
	if err != nil {
		return domain.Identity{}, domain.ErrInvalidCredentials
	}
	return domain.Identity{UserID: userID, Username: cl.Username}, nil
}
