package adapthttp

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const (
	wsReadLimit    = 4 << 10
	wsReadTimeout  = 60 * time.Second
	wsWriteTimeout = 10 * time.Second
)

type wsEvent struct {
	Event   string `json:"event"`
	Message string `json:"message,omitempty"`
	UserID  int64  `json:"userId,omitempty"`
}

// handleWS guards and serves the realtime socket. The credential is checked
// before the upgrade so an unauthenticated client gets a plain 401 on the
// handshake response instead of a dead socket.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityFrom(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}
			for _, o := range s.cfg.AllowedOrigins {
				if o == origin {
					return true
				}
			}
			return false
		},
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the handshake error.
		return
	}
	defer conn.Close()

	conn.SetReadLimit(wsReadLimit)
	_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	if err := conn.WriteJSON(wsEvent{Event: "hello", Message: "connected", UserID: identity.UserID}); err != nil {
		return
	}

	for {
		_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
		var ev wsEvent
		if err := conn.ReadJSON(&ev); err != nil {
			return
		}
		if ev.Event == "ping" {
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteJSON(wsEvent{Event: "pong"}); err != nil {
				return
			}
		}
	}
}
