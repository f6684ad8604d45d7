// Package adapthttp implements the HTTP adapter for the application.
package adapthttp

import (
	"net/http"
	"time"

	"matcha/internal/app"
	"matcha/internal/config"
	"matcha/internal/logging"
	"matcha/internal/token"
)

// Server is the driving HTTP adapter that routes requests to application
// services.
type Server struct {
	auth     *app.AuthService
	profiles *app.ProfileService
	photos   *app.PhotoService
	codec    *token.Codec
	sso      *SSO
	cfg      config.Config
	log      logging.Logger
	limiter  *rateLimiter
	started  time.Time
}

// New creates a Server wired to the given application services. sso may be
// nil, in which case the SSO routes are not registered.
func New(auth *app.AuthService, profiles *app.ProfileService, photos *app.PhotoService, codec *token.Codec, sso *SSO, cfg config.Config, log logging.Logger) *Server {
	return &Server{
		auth:     auth,
		profiles: profiles,
		photos:   photos,
		codec:    codec,
		sso:      sso,
		cfg:      cfg,
		log:      log,
		limiter:  newRateLimiter(),
		started:  time.Now(),
	}
}

// Handler returns the root http.Handler for the application.
//
// Every route is registered through one of the helpers below, which pins its
// classification: safe routes only read state and may be handed a CSRF
// token, mutating routes change state and pass the double-submit check
// first.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// safe routes, no session required
	safe := func(pattern string, h http.HandlerFunc) {
		mux.HandleFunc(pattern, h)
	}
	// safe routes behind the session guard
	safeAuth := func(pattern string, h http.HandlerFunc) {
		mux.HandleFunc(pattern, s.requireAuth(h))
	}
	// mutating routes, no session required (login, register, ...)
	mutating := func(pattern string, h http.HandlerFunc) {
		mux.HandleFunc(pattern, s.enforceCSRF(h))
	}
	// mutating routes behind the session guard
	mutatingAuth := func(pattern string, h http.HandlerFunc) {
		mux.HandleFunc(pattern, s.enforceCSRF(s.requireAuth(h)))
	}

	safe("GET /api/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"status":    "ok",
			"uptime":    time.Since(s.started).Round(time.Second).String(),
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
	})

	mutating("POST /api/auth/register", s.handleRegister)
	mutating("POST /api/auth/login", s.handleLogin)
	mutating("POST /api/auth/logout", s.handleLogout)
	safeAuth("GET /api/auth/me", s.handleMe)
	mutating("POST /api/auth/verify-email", s.handleVerifyEmail)
	mutating("POST /api/auth/forgot-password", s.handleForgotPassword)
	mutating("POST /api/auth/reset-password", s.handleResetPassword)

	if s.sso != nil {
		safe("GET /api/auth/sso/login", s.handleSSOLogin)
		safe("GET /api/auth/sso/callback", s.handleSSOCallback)
	}

	safeAuth("GET /api/me/profile", s.handleGetProfile)
	mutatingAuth("PATCH /api/me/profile", s.handlePatchProfile)
	safeAuth("GET /api/users/{username}", s.handlePublicProfile)

	safeAuth("GET /api/me/photos", s.handleListPhotos)
	mutatingAuth("POST /api/me/avatar", s.handleUploadAvatar)
	mutatingAuth("POST /api/me/photos", s.handleUploadGallery)
	mutatingAuth("DELETE /api/me/photos/{id}", s.handleDeletePhoto)
	mutatingAuth("PATCH /api/me/photos/reorder", s.handleReorderPhotos)

	safe("GET /api/ws", s.handleWS)

	// Rendition keys embed a fresh uuid per upload, so a given URL never
	// serves changing bytes.
	uploads := http.StripPrefix("/uploads/", http.FileServer(http.Dir(s.cfg.UploadDir)))
	mux.Handle("GET /uploads/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
		uploads.ServeHTTP(w, r)
	}))

	var h http.Handler = mux
	h = s.issueCSRF(h)
	h = s.withIdentity(h)
	h = s.rateLimitMiddleware(h)
	h = s.corsMiddleware(h)
	h = s.loggingMiddleware(h)
	return h
}
