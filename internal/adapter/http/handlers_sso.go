package adapthttp

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"net/http"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"

	"matcha/internal/config"
	"matcha/internal/domain"
)

// SSO holds the OIDC provider state for the optional single sign-on flow.
type SSO struct {
	provider *oidc.Provider
	oauth2   oauth2.Config
}

// NewSSO discovers the configured OIDC provider.
func NewSSO(ctx context.Context, cfg config.Config) (*SSO, error) {
	provider, err := oidc.NewProvider(ctx, cfg.OIDCIssuer)
	if err != nil {
		return nil, err
	}
	return &SSO{
		provider: provider,
		oauth2: oauth2.Config{
			ClientID:     cfg.OIDCClientID,
			ClientSecret: cfg.OIDCClientSecret,
			RedirectURL:  cfg.OIDCRedirectURL,
			Endpoint:     provider.Endpoint(),
			Scopes:       []string{oidc.ScopeOpenID, "email", "profile"},
		},
	}, nil
}

func (s *Server) handleSSOLogin(w http.ResponseWriter, r *http.Request) {
	state := generateState()
	http.SetCookie(w, &http.Cookie{
		Name:     "oauth_state",
		Value:    state,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.cfg.SecureCookies,
		SameSite: http.SameSiteLaxMode, // Lax required for cross-site redirect returns
		MaxAge:   300,
	})
	http.Redirect(w, r, s.sso.oauth2.AuthCodeURL(state), http.StatusFound)
}

func (s *Server) handleSSOCallback(w http.ResponseWriter, r *http.Request) {
	state, err := r.Cookie("oauth_state")
	if err != nil || r.URL.Query().Get("state") != state.Value {
		s.writeError(w, r, domain.BadRequest("VALIDATION_ERROR", "Invalid state"))
		return
	}
	http.SetCookie(w, &http.Cookie{Name: "oauth_state", MaxAge: -1, Path: "/"})

	oauthToken, err := s.sso.oauth2.Exchange(r.Context(), r.URL.Query().Get("code"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	rawIDToken, ok := oauthToken.Extra("id_token").(string)
	if !ok {
		s.writeError(w, r, domain.ErrInvalidCredentials)
		return
	}
	idToken, err := s.sso.provider.Verifier(&oidc.Config{ClientID: s.sso.oauth2.ClientID}).Verify(r.Context(), rawIDToken)
	if err != nil {
		s.writeError(w, r, domain.ErrInvalidCredentials)
		return
	}

	var claims struct {
		Email string `json:"email"`
		Sub   string `json:"sub"`
	}
	if err := idToken.Claims(&claims); err != nil {
		s.writeError(w, r, domain.ErrInvalidCredentials)
		return
	}
	email := claims.Email
	if email == "" {
		email = claims.Sub
	}

	user, err := s.auth.LoginSSO(r.Context(), email)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if !s.openSession(w, r, user) {
		return
	}
	http.Redirect(w, r, s.cfg.FrontendURL, http.StatusFound)
}

func generateState() string {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	return base64.URLEncoding.EncodeToString(b)
}
