package adapthttp

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"net/http"
	"time"

	"matcha/internal/token"
)

// Cookie and header names of the session wire contract.
const (
	credentialCookieName = "access_token"
	csrfCookieName       = "csrf_token"
	csrfHeaderName       = "X-CSRF-Token"
)

const csrfTTL = 7 * 24 * time.Hour

// newCSRFToken mints a fresh double-submit token.
func newCSRFToken() string {
	b := make([]byte, 32)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

func csrfTokensMatch(cookie, header string) bool {
	if cookie == "" || header == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(cookie), []byte(header)) == 1
}

// setCredentialCookie installs the signed credential. HttpOnly keeps it away
// from scripts; SameSite=Lax still sends it on top-level navigations.
func (s *Server) setCredentialCookie(w http.ResponseWriter, credential string) {
	http.SetCookie(w, &http.Cookie{
		Name:     credentialCookieName,
		Value:    credential,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.cfg.SecureCookies,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(token.CredentialTTL / time.Second),
	})
}

// setCSRFCookie installs the double-submit token. The cookie is readable on
// purpose: the client echoes its value in the request header.
func (s *Server) setCSRFCookie(w http.ResponseWriter, tok string) {
	http.SetCookie(w, &http.Cookie{
		Name:     csrfCookieName,
		Value:    tok,
		Path:     "/",
		HttpOnly: false,
		Secure:   s.cfg.SecureCookies,
		SameSite: http.SameSiteStrictMode,
		MaxAge:   int(csrfTTL / time.Second),
	})
	w.Header().Set(csrfHeaderName, tok)
}

func (s *Server) clearSessionCookies(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     credentialCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   s.cfg.SecureCookies,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	})
	http.SetCookie(w, &http.Cookie{
		Name:     csrfCookieName,
		Value:    "",
		Path:     "/",
		Secure:   s.cfg.SecureCookies,
		SameSite: http.SameSiteStrictMode,
		MaxAge:   -1,
	})
}
