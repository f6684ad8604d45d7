package adapthttp

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
)

func dialWS(t *testing.T, url string, header http.Header) (*websocket.Conn, *http.Response, error) {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(url, "http") + "/api/ws"
	return websocket.DefaultDialer.Dial(wsURL, header)
}

func TestWS_RejectsAnonymousHandshake(t *testing.T) {
	_, h := newTestServer(t)
	ts := httptest.NewServer(h)
	defer ts.Close()

	conn, resp, err := dialWS(t, ts.URL, nil)
	if err == nil {
		conn.Close()
		t.Fatal("expected the handshake to fail without a credential")
	}
	if !errors.Is(err, websocket.ErrBadHandshake) {
		t.Fatalf("expected ErrBadHandshake, got %v", err)
	}
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", resp.StatusCode)
	}
}

func TestWS_HelloAndPing(t *testing.T) {
	srv, h := newTestServer(t)
	ts := httptest.NewServer(h)
	defer ts.Close()

	credential, err := srv.codec.Mint(7, "alice")
	if err != nil {
		t.Fatalf("mint credential: %v", err)
	}
	header := http.Header{}
	header.Set("Cookie", credentialCookieName+"="+credential)

	conn, _, err := dialWS(t, ts.URL, header)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	var hello wsEvent
	if err := conn.ReadJSON(&hello); err != nil {
		t.Fatalf("read hello: %v", err)
	}
	if hello.Event != "hello" || hello.Message != "connected" || hello.UserID != 7 {
		t.Errorf("unexpected hello event: %+v", hello)
	}

	if err := conn.WriteJSON(wsEvent{Event: "ping"}); err != nil {
		t.Fatalf("write ping: %v", err)
	}
	var pong wsEvent
	if err := conn.ReadJSON(&pong); err != nil {
		t.Fatalf("read pong: %v", err)
	}
	if pong.Event != "pong" {
		t.Errorf("expected pong, got %+v", pong)
	}
}
