package adapthttp

import (
	"net/http"
	"time"

	"matcha/internal/domain"
)

type userBody struct {
	ID            int64     `json:"id"`
	Email         string    `json:"email"`
	Username      string    `json:"username"`
	EmailVerified bool      `json:"emailVerified"`
	CreatedAt     time.Time `json:"createdAt"`
}

func toUserBody(u *domain.User) userBody {
	return userBody{
		ID:            u.ID,
		Email:         u.Email,
		Username:      u.Username,
		EmailVerified: u.EmailVerifiedAt != nil,
		CreatedAt:     u.CreatedAt,
	}
}

// openSession mints the credential for user and installs both session
// cookies, so the client can mutate right away without a prior safe request.
func (s *Server) openSession(w http.ResponseWriter, r *http.Request, user *domain.User) bool {
	credential, err := s.codec.Mint(user.ID, user.Username)
	if err != nil {
		s.writeError(w, r, err)
		return false
	}
	s.setCredentialCookie(w, credential)
	s.setCSRFCookie(w, newCSRFToken())
	return true
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if !s.parseJSON(w, r, &req) {
		return
	}

	user, err := s.auth.Register(r.Context(), req.Email, req.Username, req.Password)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if !s.openSession(w, r, user) {
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"user": toUserBody(user)})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Login    string `json:"login"`
		Password string `json:"password"`
	}
	if !s.parseJSON(w, r, &req) {
		return
	}

	user, err := s.auth.Login(r.Context(), req.Login, req.Password)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if !s.openSession(w, r, user) {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": toUserBody(user)})
}

// handleLogout clears the session cookies. It works for anonymous callers
// too: logging out twice is not an error.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.clearSessionCookies(w)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	identity, _ := identityFrom(r.Context())
	user, err := s.auth.GetUser(r.Context(), identity.UserID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	body := map[string]any{"user": toUserBody(user)}
	if avatar, err := s.photos.Avatar(r.Context(), user.ID); err == nil && avatar != nil {
		body["avatarUrl"] = "/uploads/" + avatar.StorageKey
	}
	writeJSON(w, http.StatusOK, body)
}

func (s *Server) handleVerifyEmail(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token string `json:"token"`
	}
	if !s.parseJSON(w, r, &req) {
		return
	}
	if err := s.auth.VerifyEmail(r.Context(), req.Token); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Login string `json:"login"`
	}
	if !s.parseJSON(w, r, &req) {
		return
	}
	if err := s.auth.ForgotPassword(r.Context(), req.Login); err != nil {
		s.writeError(w, r, err)
		return
	}
	// Same answer whether or not the account exists.
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token       string `json:"token"`
		NewPassword string `json:"newPassword"`
	}
	if !s.parseJSON(w, r, &req) {
		return
	}
	if err := s.auth.ResetPassword(r.Context(), req.Token, req.NewPassword); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}
