// Package config loads process configuration from the environment once at
// startup. The resulting value is immutable; nothing mutates it at runtime.
package config

import (
	"os"
	"strings"
)

// DefaultJWTSecret is the development fallback signing key. Running with it
// is reported as a warning at startup, not a failure, so local setups work
// out of the box.
const DefaultJWTSecret = "dev"

// Config holds all process-wide settings.
type Config struct {
	Addr        string
	DatabaseURL string
	UploadDir   string
	FrontendURL string

	// JWTSecret signs credentials; JWTSecretIsDefault marks the dev fallback.
	JWTSecret          string
	JWTSecretIsDefault bool

	// AllowedOrigins are the origins accepted for CORS and for websocket
	// upgrades.
	AllowedOrigins []string

	// SecureCookies marks cookies Secure; enable behind HTTPS.
	SecureCookies bool

	SMTPHost string
	SMTPPort string
	SMTPUser string
	SMTPPass string
	SMTPFrom string

	// Optional OIDC SSO; the SSO routes are registered only when Issuer,
	// ClientID and RedirectURL are all set.
	OIDCIssuer       string
	OIDCClientID     string
	OIDCClientSecret string
	OIDCRedirectURL  string
}

// Load reads the environment into a Config.
func Load() Config {
	secret := env("JWT_SECRET", DefaultJWTSecret)

	return Config{
		Addr:        env("ADDR", ":3000"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		UploadDir:   env("UPLOAD_DIR", "uploads"),
		FrontendURL: env("FRONTEND_URL", "http://localhost:5173"),

		JWTSecret:          secret,
		JWTSecretIsDefault: secret == DefaultJWTSecret,

		AllowedOrigins: splitOrigins(env("CORS_ORIGIN", "http://localhost:5173")),
		SecureCookies:  os.Getenv("SECURE_COOKIES") == "true",

		SMTPHost: env("SMTP_HOST", "localhost"),
		SMTPPort: env("SMTP_PORT", "1025"),
		SMTPUser: os.Getenv("SMTP_USER"),
		SMTPPass: os.Getenv("SMTP_PASS"),
		SMTPFrom: env("SMTP_FROM", "Matcha <no-reply@matcha.local>"),

		OIDCIssuer:       os.Getenv("OIDC_ISSUER"),
		OIDCClientID:     os.Getenv("OIDC_CLIENT_ID"),
		OIDCClientSecret: os.Getenv("OIDC_CLIENT_SECRET"),
		OIDCRedirectURL:  os.Getenv("OIDC_REDIRECT_URL"),
	}
}

// SSOEnabled reports whether the OIDC login flow is configured.
func (c Config) SSOEnabled() bool {
	return c.OIDCIssuer != "" && c.OIDCClientID != "" && c.OIDCRedirectURL != ""
}

func env(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func splitOrigins(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
