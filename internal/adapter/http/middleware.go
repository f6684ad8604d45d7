package adapthttp

import (
	"bufio"
	"context"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"matcha/internal/domain"
)

type contextKey string

const identityContextKey contextKey = "identity"

// identityFrom returns the verified identity of the request, if any.
func identityFrom(ctx context.Context) (domain.Identity, bool) {
	id, ok := ctx.Value(identityContextKey).(domain.Identity)
	return id, ok
}

// withIdentity verifies the credential cookie and stashes the resulting
// identity in the request context. A missing or failing credential leaves
// the request anonymous; route guards decide what that means.
func (s *Server) withIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(credentialCookieName)
		if err != nil || cookie.Value == "" {
			next.ServeHTTP(w, r)
			return
		}
		identity, err := s.codec.Verify(cookie.Value)
		if err != nil {
			next.ServeHTTP(w, r)
			return
		}
		ctx := context.WithValue(r.Context(), identityContextKey, identity)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// issueCSRF hands authenticated browsers a double-submit token on safe
// requests, so the first mutating request after a fresh login already has
// one to echo.
func (s *Server) issueCSRF(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			if _, ok := identityFrom(r.Context()); ok {
				if _, err := r.Cookie(csrfCookieName); err != nil {
					s.setCSRFCookie(w, newCSRFToken())
				}
			}
		}
		next.ServeHTTP(w, r)
	})
}

// enforceCSRF applies the double-submit check to a mutating route. The check
// only fires for authenticated requests: an anonymous mutating request has
// no session to ride and falls through to the route's own auth guard.
func (s *Server) enforceCSRF(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := identityFrom(r.Context()); ok {
			cookie, err := r.Cookie(csrfCookieName)
			if err != nil || !csrfTokensMatch(cookie.Value, r.Header.Get(csrfHeaderName)) {
				s.writeError(w, r, domain.ErrCSRFInvalid)
				return
			}
		}
		next(w, r)
	}
}

// requireAuth rejects anonymous requests before the handler runs.
func (s *Server) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := identityFrom(r.Context()); !ok {
			s.writeError(w, r, domain.ErrUnauthorized)
			return
		}
		next(w, r)
	}
}

// corsMiddleware answers preflights and marks responses for the configured
// origins. Credentialed requests require echoing the exact origin back.
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	allowed := make(map[string]bool, len(s.cfg.AllowedOrigins))
	for _, o := range s.cfg.AllowedOrigins {
		allowed[o] = true
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && allowed[origin] {
			h := w.Header()
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Access-Control-Allow-Credentials", "true")
			h.Set("Access-Control-Expose-Headers", csrfHeaderName)
			h.Add("Vary", "Origin")
			if r.Method == http.MethodOptions {
				h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE")
				h.Set("Access-Control-Allow-Headers", "Content-Type, "+csrfHeaderName)
				h.Set("Access-Control-Max-Age", "600")
				w.WriteHeader(http.StatusNoContent)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

// statusRecorder captures the response code for the request log.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Hijack lets the websocket upgrade reach the underlying connection.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, http.ErrNotSupported
	}
	return h.Hijack()
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r)
		s.log.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start).Round(time.Microsecond).String(),
		)
	})
}

const (
	rateLimitWindow = time.Minute
	rateLimitMax    = 120
)

// rateLimiter is a fixed-window request counter keyed by client IP.
type rateLimiter struct {
	mu      sync.Mutex
	window  time.Time
	counts  map[string]int
	nowFunc func() time.Time
}

func newRateLimiter() *rateLimiter {
	return &rateLimiter{counts: map[string]int{}, nowFunc: time.Now}
}

// allow reports whether another request from ip fits in the current window.
func (l *rateLimiter) allow(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.nowFunc()
	if now.Sub(l.window) >= rateLimitWindow {
		l.window = now
		l.counts = map[string]int{}
	}
	l.counts[ip]++
	return l.counts[ip] <= rateLimitMax
}

func (s *Server) rateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			ip = r.RemoteAddr
		}
		if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
			if first, _, found := strings.Cut(fwd, ","); found || first != "" {
				ip = strings.TrimSpace(first)
			}
		}
		if !s.limiter.allow(ip) {
			writeJSON(w, http.StatusTooManyRequests, map[string]any{"error": errorBody{
				Code:    "RATE_LIMITED",
				Message: "Too many requests",
			}})
			return
		}
		next.ServeHTTP(w, r)
	})
}
