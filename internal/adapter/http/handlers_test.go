package adapthttp

import (
	"bytes"
	"encoding/json"
	"image"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"matcha/internal/adapter/memory"
	"matcha/internal/app"
	"matcha/internal/config"
	img "matcha/internal/image"
	"matcha/internal/logging"
	"matcha/internal/mail"
	"matcha/internal/token"
)

// testStore keeps uploaded renditions in memory.
type testStore struct {
	files map[string][]byte
}

func (s *testStore) Write(key string, data []byte) error {
	s.files[key] = data
	return nil
}

func (s *testStore) Remove(keys ...string) {
	for _, k := range keys {
		delete(s.files, k)
	}
}

func (s *testStore) ThumbKey(key string) string { return key + ".thumb" }

func newTestServer(t *testing.T) (*Server, http.Handler) {
	t.Helper()
	db := memory.New()
	log := logging.Discard()
	auth := app.NewAuthService(db, db, mail.NewLog(log), log, "http://localhost:5173")
	profiles := app.NewProfileService(db, db)
	photos := app.NewPhotoService(db, &testStore{files: map[string][]byte{}}, img.NewResizer(1024), log)
	cfg := config.Config{
		UploadDir:      t.TempDir(),
		AllowedOrigins: []string{"http://localhost:5173"},
	}
	srv := New(auth, profiles, photos, token.NewCodec("test-secret", 0), nil, cfg, log)
	return srv, srv.Handler()
}

// session carries the cookies a logged-in browser would hold.
type session struct {
	credential *http.Cookie
	csrf       *http.Cookie
}

func (s session) apply(r *http.Request, withHeader bool) {
	if s.credential != nil {
		r.AddCookie(s.credential)
	}
	if s.csrf != nil {
		r.AddCookie(s.csrf)
		if withHeader {
			r.Header.Set(csrfHeaderName, s.csrf.Value)
		}
	}
}

func register(t *testing.T, h http.Handler, username string) session {
	t.Helper()
	body := `{"email":"` + username + `@example.com","username":"` + username + `","password":"password123"}`
	req := httptest.NewRequest("POST", "/api/auth/register", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("register: expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var sess session
	for _, c := range w.Result().Cookies() {
		switch c.Name {
		case credentialCookieName:
			sess.credential = c
		case csrfCookieName:
			sess.csrf = c
		}
	}
	if sess.credential == nil || sess.csrf == nil {
		t.Fatal("register did not set both session cookies")
	}
	return sess
}

func errorCode(t *testing.T, body *bytes.Buffer) string {
	t.Helper()
	var resp struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body.Bytes(), &resp); err != nil {
		t.Fatalf("decode error envelope from %q: %v", body.String(), err)
	}
	return resp.Error.Code
}

func TestRegister_SetsSessionCookies(t *testing.T) {
	_, h := newTestServer(t)
	sess := register(t, h, "alice")

	if !sess.credential.HttpOnly {
		t.Error("credential cookie must be HttpOnly")
	}
	if sess.csrf.HttpOnly {
		t.Error("csrf cookie must stay readable by the client")
	}
}

func TestLogin(t *testing.T) {
	_, h := newTestServer(t)
	register(t, h, "alice")

	req := httptest.NewRequest("POST", "/api/auth/login",
		strings.NewReader(`{"login":"alice","password":"password123"}`))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	req = httptest.NewRequest("POST", "/api/auth/login",
		strings.NewReader(`{"login":"alice","password":"wrong"}`))
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
	if code := errorCode(t, w.Body); code != "INVALID_CREDENTIALS" {
		t.Errorf("expected INVALID_CREDENTIALS, got %s", code)
	}
}

func TestMe(t *testing.T) {
	_, h := newTestServer(t)
	sess := register(t, h, "alice")

	req := httptest.NewRequest("GET", "/api/auth/me", nil)
	sess.apply(req, false)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), `"username":"alice"`) {
		t.Errorf("unexpected body: %s", w.Body.String())
	}

	// Anonymous.
	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest("GET", "/api/auth/me", nil))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without credential, got %d", w.Code)
	}
	if code := errorCode(t, w.Body); code != "UNAUTHORIZED" {
		t.Errorf("expected UNAUTHORIZED, got %s", code)
	}
}

func TestCSRF_DoubleSubmit(t *testing.T) {
	_, h := newTestServer(t)
	sess := register(t, h, "alice")

	patch := func(configure func(*http.Request)) *httptest.ResponseRecorder {
		req := httptest.NewRequest("PATCH", "/api/me/profile",
			strings.NewReader(`{"displayName":"Alice"}`))
		configure(req)
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		return w
	}

	// Credential present, header missing.
	w := patch(func(r *http.Request) {
		r.AddCookie(sess.credential)
		r.AddCookie(sess.csrf)
	})
	if w.Code != http.StatusForbidden {
		t.Fatalf("missing header: expected 403, got %d", w.Code)
	}
	if code := errorCode(t, w.Body); code != "CSRF_INVALID" {
		t.Errorf("expected CSRF_INVALID, got %s", code)
	}

	// Credential present, header does not match the cookie.
	w = patch(func(r *http.Request) {
		r.AddCookie(sess.credential)
		r.AddCookie(sess.csrf)
		r.Header.Set(csrfHeaderName, "not-the-cookie-value")
	})
	if w.Code != http.StatusForbidden {
		t.Fatalf("mismatched header: expected 403, got %d", w.Code)
	}

	// Cookie and header agree.
	w = patch(func(r *http.Request) { sess.apply(r, true) })
	if w.Code != http.StatusOK {
		t.Fatalf("matching tokens: expected 200, got %d: %s", w.Code, w.Body.String())
	}
}

func TestCSRF_AnonymousMutationHitsAuthGuard(t *testing.T) {
	_, h := newTestServer(t)

	// No credential at all: the CSRF check must not fire; the auth guard
	// answers.
	req := httptest.NewRequest("PATCH", "/api/me/profile", strings.NewReader(`{}`))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
	if code := errorCode(t, w.Body); code != "UNAUTHORIZED" {
		t.Errorf("expected UNAUTHORIZED, got %s", code)
	}

	// A garbage credential counts as anonymous too.
	req = httptest.NewRequest("PATCH", "/api/me/profile", strings.NewReader(`{}`))
	req.AddCookie(&http.Cookie{Name: credentialCookieName, Value: "garbage"})
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("garbage credential: expected 401, got %d", w.Code)
	}
}

func TestCSRF_IssuedOnSafeRequest(t *testing.T) {
	_, h := newTestServer(t)
	sess := register(t, h, "alice")

	// Authenticated safe request without a CSRF cookie gets one.
	req := httptest.NewRequest("GET", "/api/auth/me", nil)
	req.AddCookie(sess.credential)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	issued := false
	for _, c := range w.Result().Cookies() {
		if c.Name == csrfCookieName && c.Value != "" {
			issued = true
		}
	}
	if !issued {
		t.Error("expected a fresh csrf cookie on a safe authenticated request")
	}
	if w.Header().Get(csrfHeaderName) == "" {
		t.Error("expected the csrf token mirrored in the response header")
	}

	// Anonymous safe requests get nothing.
	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest("GET", "/api/health", nil))
	for _, c := range w.Result().Cookies() {
		if c.Name == csrfCookieName {
			t.Error("anonymous request must not receive a csrf cookie")
		}
	}
}

func TestLogout_ClearsCookies(t *testing.T) {
	_, h := newTestServer(t)
	sess := register(t, h, "alice")

	req := httptest.NewRequest("POST", "/api/auth/logout", nil)
	sess.apply(req, true)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", w.Code)
	}
	for _, c := range w.Result().Cookies() {
		if (c.Name == credentialCookieName || c.Name == csrfCookieName) && c.MaxAge != -1 {
			t.Errorf("cookie %s not expired", c.Name)
		}
	}
}

func TestProfileFlow(t *testing.T) {
	_, h := newTestServer(t)
	sess := register(t, h, "alice")

	req := httptest.NewRequest("PATCH", "/api/me/profile",
		strings.NewReader(`{"displayName":"Alice","gender":"female"}`))
	sess.apply(req, true)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("patch: expected 200, got %d: %s", w.Code, w.Body.String())
	}

	req = httptest.NewRequest("GET", "/api/me/profile", nil)
	sess.apply(req, false)
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if !strings.Contains(w.Body.String(), `"displayName":"Alice"`) {
		t.Errorf("unexpected profile body: %s", w.Body.String())
	}

	// Validation failures carry field details.
	req = httptest.NewRequest("PATCH", "/api/me/profile",
		strings.NewReader(`{"gender":"unknown"}`))
	sess.apply(req, true)
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	if code := errorCode(t, w.Body); code != "VALIDATION_ERROR" {
		t.Errorf("expected VALIDATION_ERROR, got %s", code)
	}

	// Public lookup by username.
	req = httptest.NewRequest("GET", "/api/users/alice", nil)
	sess.apply(req, false)
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("public profile: expected 200, got %d", w.Code)
	}

	req = httptest.NewRequest("GET", "/api/users/nobody", nil)
	sess.apply(req, false)
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Fatalf("unknown user: expected 404, got %d", w.Code)
	}
}

func uploadRequest(t *testing.T, target string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 8, 8))); err != nil {
		t.Fatalf("encode png: %v", err)
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", "photo.png")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := part.Write(buf.Bytes()); err != nil {
		t.Fatalf("write part: %v", err)
	}
	mw.Close()

	req := httptest.NewRequest("POST", target, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestPhotoFlow(t *testing.T) {
	_, h := newTestServer(t)
	sess := register(t, h, "alice")

	// Avatar.
	req := uploadRequest(t, "/api/me/avatar")
	sess.apply(req, true)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusCreated {
		t.Fatalf("avatar: expected 201, got %d: %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), `"kind":"avatar"`) {
		t.Errorf("unexpected avatar body: %s", w.Body.String())
	}

	// Two gallery photos.
	var ids []int64
	for i := 0; i < 2; i++ {
		req = uploadRequest(t, "/api/me/photos")
		sess.apply(req, true)
		w = httptest.NewRecorder()
		h.ServeHTTP(w, req)
		if w.Code != http.StatusCreated {
			t.Fatalf("gallery upload %d: expected 201, got %d: %s", i+1, w.Code, w.Body.String())
		}
		var resp struct {
			Photo struct {
				ID       int64 `json:"id"`
				Position *int  `json:"position"`
			} `json:"photo"`
		}
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode upload response: %v", err)
		}
		if resp.Photo.Position == nil || *resp.Photo.Position != i+1 {
			t.Errorf("upload %d: unexpected position %v", i+1, resp.Photo.Position)
		}
		ids = append(ids, resp.Photo.ID)
	}

	// Reorder: swap the two.
	body := `{"order":[` +
		`{"id":` + strconv.FormatInt(ids[0], 10) + `,"position":2},` +
		`{"id":` + strconv.FormatInt(ids[1], 10) + `,"position":1}]}`
	req = httptest.NewRequest("PATCH", "/api/me/photos/reorder", strings.NewReader(body))
	sess.apply(req, true)
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("reorder: expected 200, got %d: %s", w.Code, w.Body.String())
	}

	// Out-of-range position is rejected before touching the repository.
	req = httptest.NewRequest("PATCH", "/api/me/photos/reorder",
		strings.NewReader(`{"order":[{"id":`+strconv.FormatInt(ids[0], 10)+`,"position":9}]}`))
	sess.apply(req, true)
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("bad position: expected 400, got %d", w.Code)
	}
	if code := errorCode(t, w.Body); code != "INVALID_POSITIONS" {
		t.Errorf("expected INVALID_POSITIONS, got %s", code)
	}

	// Delete.
	req = httptest.NewRequest("DELETE", "/api/me/photos/"+strconv.FormatInt(ids[0], 10), nil)
	sess.apply(req, true)
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusNoContent {
		t.Fatalf("delete: expected 204, got %d: %s", w.Code, w.Body.String())
	}

	req = httptest.NewRequest("DELETE", "/api/me/photos/99999", nil)
	sess.apply(req, true)
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Fatalf("delete unknown: expected 404, got %d", w.Code)
	}

	// List.
	req = httptest.NewRequest("GET", "/api/me/photos", nil)
	sess.apply(req, false)
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("list: expected 200, got %d", w.Code)
	}
	var list struct {
		Photos []struct {
			Kind string `json:"kind"`
		} `json:"photos"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(list.Photos) != 2 {
		t.Fatalf("expected 2 photos, got %d", len(list.Photos))
	}
	if list.Photos[0].Kind != "avatar" {
		t.Errorf("expected avatar first, got %s", list.Photos[0].Kind)
	}
}

func TestPhotoUpload_NoFile(t *testing.T) {
	_, h := newTestServer(t)
	sess := register(t, h, "alice")

	req := httptest.NewRequest("POST", "/api/me/photos", strings.NewReader("not multipart"))
	req.Header.Set("Content-Type", "application/json")
	sess.apply(req, true)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	if code := errorCode(t, w.Body); code != "NO_FILE" {
		t.Errorf("expected NO_FILE, got %s", code)
	}
}

func TestCORS(t *testing.T) {
	_, h := newTestServer(t)

	req := httptest.NewRequest("OPTIONS", "/api/auth/login", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusNoContent {
		t.Fatalf("preflight: expected 204, got %d", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:5173" {
		t.Errorf("unexpected allow-origin %q", got)
	}
	if w.Header().Get("Access-Control-Allow-Credentials") != "true" {
		t.Error("expected credentials allowed")
	}

	// Unknown origins get no CORS headers at all.
	req = httptest.NewRequest("GET", "/api/health", nil)
	req.Header.Set("Origin", "http://evil.example")
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Error("unexpected CORS headers for unknown origin")
	}
}
