package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/GoCodeAlone/taskboard/config"
	"github.com/GoCodeAlone/taskboard/store"
)

func newTestServer(t *testing.T, mutate func(*config.Config)) *Server {
	t.Helper()
	st, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "server.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	cfg := *config.DefaultConfig()
	cfg.Server.Addr = ":0"
	cfg.Auth.JWTSecret = "test-secret-key-1234567890"
	cfg.Auth.BcryptCost = 4
	if mutate != nil {
		mutate(&cfg)
	}
	s, err := New(cfg, "test", st, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s
}

func request(t *testing.T, s *Server, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", token)
	}
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func signupAndLogin(t *testing.T, s *Server) string {
	t.Helper()
	w := request(t, s, http.MethodPost, "/auth/signup", "", map[string]string{
		"name": "Ann", "email": "ann@x.io", "password": "pw",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("signup: %d %s", w.Code, w.Body.String())
	}
	w = request(t, s, http.MethodPost, "/auth/login", "", map[string]string{"email": "ann@x.io", "password": "pw"})
	if w.Code != http.StatusOK {
		t.Fatalf("login: %d %s", w.Code, w.Body.String())
	}
	var resp map[string]string
	json.NewDecoder(w.Body).Decode(&resp) //nolint:errcheck
	if resp["message"] != "Login successfully" || resp["token"] == "" {
		t.Fatalf("login response = %v", resp)
	}
	return resp["token"]
}

func TestRoot(t *testing.T) {
	s := newTestServer(t, nil)
	w := request(t, s, http.MethodGet, "/", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp map[string]any
	json.NewDecoder(w.Body).Decode(&resp) //nolint:errcheck
	if resp["ok"] != true || resp["message"] != "app is working." {
		t.Errorf("unexpected body: %v", resp)
	}
}

func TestVersion(t *testing.T) {
	s := newTestServer(t, nil)
	w := request(t, s, http.MethodGet, "/version", "", nil)
	var resp map[string]string
	json.NewDecoder(w.Body).Decode(&resp) //nolint:errcheck
	if resp["version"] != "test" {
		t.Errorf("version = %q", resp["version"])
	}
}

func TestUnknownRoute(t *testing.T) {
	s := newTestServer(t, nil)
	if w := request(t, s, http.MethodGet, "/does/not/exist", "", nil); w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}

func TestSignup_DuplicateAndMissing(t *testing.T) {
	s := newTestServer(t, nil)
	signupAndLogin(t, s)

	w := request(t, s, http.MethodPost, "/auth/signup", "", map[string]string{
		"name": "Other", "email": "ANN@x.io", "password": "pw",
	})
	if w.Code != http.StatusConflict {
		t.Errorf("duplicate email: expected 409, got %d", w.Code)
	}
	w = request(t, s, http.MethodPost, "/auth/signup", "", map[string]string{"name": "NoMail"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("missing email: expected 400, got %d", w.Code)
	}
}

func TestLogin_InvalidCredentials(t *testing.T) {
	s := newTestServer(t, nil)
	signupAndLogin(t, s)

	wrong := request(t, s, http.MethodPost, "/auth/login", "", map[string]string{"email": "ann@x.io", "password": "nope"})
	unknown := request(t, s, http.MethodPost, "/auth/login", "", map[string]string{"email": "bob@x.io", "password": "pw"})
	if wrong.Code != http.StatusUnauthorized || unknown.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401/401, got %d/%d", wrong.Code, unknown.Code)
	}
	if wrong.Body.String() != unknown.Body.String() {
		t.Errorf("failure bodies differ: %q vs %q", wrong.Body.String(), unknown.Body.String())
	}
}

func TestMe(t *testing.T) {
	s := newTestServer(t, nil)
	token := signupAndLogin(t, s)

	for _, header := range []string{"Bearer " + token, token} {
		w := request(t, s, http.MethodGet, "/auth/me", header, nil)
		if w.Code != http.StatusOK {
			t.Fatalf("me with %q: %d %s", header[:6], w.Code, w.Body.String())
		}
		var resp struct {
			User map[string]any `json:"user"`
		}
		json.NewDecoder(w.Body).Decode(&resp) //nolint:errcheck
		if resp.User["email"] != "ann@x.io" {
			t.Errorf("user = %v", resp.User)
		}
		if _, leaked := resp.User["password"]; leaked {
			t.Error("password leaked")
		}
	}
}

func TestMe_Unauthorized(t *testing.T) {
	s := newTestServer(t, nil)
	cases := map[string]string{
		"missing": "",
		"garbage": "Bearer not.a.token",
	}
	for name, header := range cases {
		if w := request(t, s, http.MethodGet, "/auth/me", header, nil); w.Code != http.StatusUnauthorized {
			t.Errorf("%s: expected 401, got %d", name, w.Code)
		}
	}

	other := newTestServer(t, func(c *config.Config) { c.Auth.JWTSecret = "different" })
	token := signupAndLogin(t, other)
	if w := request(t, s, http.MethodGet, "/auth/me", "Bearer "+token, nil); w.Code != http.StatusUnauthorized {
		t.Errorf("foreign token: expected 401, got %d", w.Code)
	}
}

func TestMe_ExpiredToken(t *testing.T) {
	s := newTestServer(t, nil)
	token := signupAndLogin(t, s)
	s.issuer.SetClock(func() time.Time { return time.Now().Add(48 * time.Hour) })
	if w := request(t, s, http.MethodGet, "/auth/me", "Bearer "+token, nil); w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", w.Code)
	}
}

func TestRequireForAPI(t *testing.T) {
	open := newTestServer(t, nil)
	if w := request(t, open, http.MethodGet, "/teams", "", nil); w.Code != http.StatusOK {
		t.Errorf("open api: expected 200, got %d", w.Code)
	}

	gated := newTestServer(t, func(c *config.Config) { c.Auth.RequireForAPI = true })
	if w := request(t, gated, http.MethodGet, "/teams", "", nil); w.Code != http.StatusUnauthorized {
		t.Errorf("gated without token: expected 401, got %d", w.Code)
	}
	token := signupAndLogin(t, gated)
	if w := request(t, gated, http.MethodGet, "/teams", "Bearer "+token, nil); w.Code != http.StatusOK {
		t.Errorf("gated with token: expected 200, got %d", w.Code)
	}
	if w := request(t, gated, http.MethodGet, "/", "", nil); w.Code != http.StatusOK {
		t.Errorf("root must stay public: got %d", w.Code)
	}
}

func TestCORS(t *testing.T) {
	s := newTestServer(t, func(c *config.Config) { c.Server.CORSOrigin = "https://board.example" })
	req := httptest.NewRequest(http.MethodOptions, "/tasks", nil)
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	if w.Code != http.StatusNoContent {
		t.Errorf("preflight: expected 204, got %d", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "https://board.example" {
		t.Errorf("Allow-Origin = %q", got)
	}
}

func TestGeneratedSecretIsStable(t *testing.T) {
	s := newTestServer(t, func(c *config.Config) { c.Auth.JWTSecret = "" })
	if s.jwtSecret() == "" || s.jwtSecret() != s.jwtSecret() {
		t.Error("generated secret should be non-empty and stable")
	}
	token := signupAndLogin(t, s)
	if w := request(t, s, http.MethodGet, "/auth/me", "Bearer "+token, nil); w.Code != http.StatusOK {
		t.Errorf("token from generated secret rejected: %d", w.Code)
	}
}
