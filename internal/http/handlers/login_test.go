package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/dropDatabas3/linkpass/internal/http/handlers"
	"github.com/dropDatabas3/linkpass/internal/login"
	"github.com/dropDatabas3/linkpass/internal/security/password"
	"github.com/dropDatabas3/linkpass/internal/store/core"
	"github.com/dropDatabas3/linkpass/internal/token"
)

// fakes mínimos: un usuario activo, dos providers con un fingerprint cada uno.

type memUsers struct {
	user  *core.User
	conns int
	metas int
}

func (m *memUsers) GetByID(_ context.Context, id string) (*core.User, error) {
	if m.user != nil && m.user.ID == id {
		return m.user, nil
	}
	return nil, core.ErrNotFound
}

func (m *memUsers) GetByEmail(_ context.Context, email string) (*core.User, error) {
	if m.user != nil && m.user.Email == email {
		return m.user, nil
	}
	return nil, core.ErrNotFound
}

func (m *memUsers) GetConnection(_ context.Context, _, _ string) (*core.Connection, error) {
	return nil, core.ErrNotFound
}

func (m *memUsers) CreateOrGetConnection(_ context.Context, conn core.Connection) (*core.Connection, bool, error) {
	created := m.conns == 0
	if created {
		m.conns++
	}
	return &conn, created, nil
}

func (m *memUsers) AppendConnectionMeta(_ context.Context, _, _ string, _ core.ConnectionMeta) (int64, error) {
	m.metas++
	return 1, nil
}

type memProviders struct {
	byID     map[string]*core.Provider
	bySecret map[string]*core.Provider
}

func (m *memProviders) GetByID(_ context.Context, id string) (*core.Provider, error) {
	if p, ok := m.byID[id]; ok && p.State {
		return p, nil
	}
	return nil, core.ErrNotFound
}

func (m *memProviders) GetByFingerprint(_ context.Context, secret string) (*core.Provider, error) {
	if p, ok := m.bySecret[secret]; ok && p.State {
		return p, nil
	}
	return nil, core.ErrNotFound
}

func (m *memProviders) InsertFingerprint(_ context.Context, _ string, _ core.Fingerprint) error {
	return nil
}
func (m *memProviders) RemoveFingerprint(_ context.Context, _, _ string) (int64, error) {
	return 0, nil
}
func (m *memProviders) ListFingerprints(_ context.Context, _ string) ([]core.Fingerprint, error) {
	return nil, nil
}

type env struct {
	router   chi.Router
	users    *memUsers
	sessions *token.Sessions
}

func newEnv(t *testing.T) *env {
	t.Helper()

	hash, err := password.Hash(password.Default, "hunter22")
	if err != nil {
		t.Fatal(err)
	}
	users := &memUsers{user: &core.User{
		ID:           "u1",
		Email:        "a@b.com",
		Status:       core.UserActive,
		PasswordHash: hash,
	}}

	p1 := &core.Provider{
		ID: "p1", Name: "Partner One", State: true, IsLoginEnabled: true,
		LoginRedirectURL: "https://partner.example/cb",
	}
	p2 := &core.Provider{ID: "p2", Name: "Partner Two", State: true, IsLoginEnabled: true}
	providers := &memProviders{
		byID:     map[string]*core.Provider{"p1": p1, "p2": p2},
		bySecret: map[string]*core.Provider{"abc123": p1, "def456": p2},
	}

	secret := []byte("test-handoff-secret-32-bytes-ok!")
	svc := login.New(login.Options{
		Users:     users,
		Providers: providers,
		Creds:     &login.StoreVerifier{Users: users},
		Issuer:    token.NewIssuer(secret, "linkpass", "linkpass:provider", 5*time.Minute),
		Verifier:  token.NewVerifier(secret, "linkpass", "linkpass:provider", 5*time.Minute),
	})
	sessions := token.NewSessions([]byte("test-session-secret-32-bytes-ok!"), "linkpass", time.Hour)

	r := chi.NewRouter()
	handlers.NewLoginHandler(svc, sessions).Register(r)
	handlers.NewSessionHandler(&login.StoreVerifier{Users: users}, sessions).Register(r)

	return &env{router: r, users: users, sessions: sessions}
}

func (e *env) do(t *testing.T, method, path, body string, hdr map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader([]byte(body)))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decodeJSON(t *testing.T, w *httptest.ResponseRecorder, dst any) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), dst); err != nil {
		t.Fatalf("decode response: %v (%s)", err, w.Body.String())
	}
}

func TestEmailLoginEndpointFullHandoff(t *testing.T) {
	e := newEnv(t)

	w := e.do(t, http.MethodPost, "/v1/login/provider/email",
		`{"email":"a@b.com","password":"hunter22","provider_id":"p1"}`, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("email login status = %d: %s", w.Code, w.Body.String())
	}
	var issued struct {
		Token       string `json:"token"`
		RedirectURL string `json:"redirect_url"`
	}
	decodeJSON(t, w, &issued)
	if issued.Token == "" || !strings.Contains(issued.RedirectURL, "redirect_token=") {
		t.Fatalf("issued = %+v", issued)
	}

	// El provider hace el callback con su fingerprint.
	w = e.do(t, http.MethodPut, "/v1/login/provider/approve",
		`{"token":"`+issued.Token+`","fingerprint":"abc123"}`,
		map[string]string{"User-Agent": "partner-backend/1.0"})
	if w.Code != http.StatusOK {
		t.Fatalf("approve status = %d: %s", w.Code, w.Body.String())
	}
	var res struct {
		UserID string `json:"id"`
		Email  string `json:"email"`
	}
	decodeJSON(t, w, &res)
	if res.UserID != "u1" || res.Email != "a@b.com" {
		t.Errorf("result = %+v", res)
	}
	if e.users.metas != 1 {
		t.Errorf("metas = %d, want 1", e.users.metas)
	}
}

func TestEmailLoginEndpointBadCredentials(t *testing.T) {
	e := newEnv(t)

	w := e.do(t, http.MethodPost, "/v1/login/provider/email",
		`{"email":"a@b.com","password":"nope","provider_id":"p1"}`, nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
	var apiErr struct {
		Error string `json:"error"`
	}
	decodeJSON(t, w, &apiErr)
	if apiErr.Error != "user_not_found" {
		t.Errorf("error = %q", apiErr.Error)
	}
}

func TestEmailLoginEndpointValidation(t *testing.T) {
	e := newEnv(t)

	w := e.do(t, http.MethodPost, "/v1/login/provider/email",
		`{"email":"a@b.com"}`, nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("missing fields status = %d, want 400", w.Code)
	}

	// sin Content-Type JSON
	req := httptest.NewRequest(http.MethodPost, "/v1/login/provider/email",
		strings.NewReader("email=a@b.com"))
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnsupportedMediaType {
		t.Errorf("non-json status = %d, want 415", rec.Code)
	}
}

func TestApproveEndpointCrossProvider(t *testing.T) {
	e := newEnv(t)

	w := e.do(t, http.MethodPost, "/v1/login/provider/email",
		`{"email":"a@b.com","password":"hunter22","provider_id":"p1"}`, nil)
	var issued struct {
		Token string `json:"token"`
	}
	decodeJSON(t, w, &issued)

	// Fingerprint de p2 con token de p1.
	w = e.do(t, http.MethodPut, "/v1/login/provider/approve",
		`{"token":"`+issued.Token+`","fingerprint":"def456"}`, nil)
	if w.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", w.Code)
	}
	var apiErr struct {
		Error string `json:"error"`
	}
	decodeJSON(t, w, &apiErr)
	if apiErr.Error != "access_denied" {
		t.Errorf("error = %q", apiErr.Error)
	}
}

func TestApproveEndpointQueryParams(t *testing.T) {
	e := newEnv(t)

	w := e.do(t, http.MethodPost, "/v1/login/provider/email",
		`{"email":"a@b.com","password":"hunter22","provider_id":"p1"}`, nil)
	var issued struct {
		Token string `json:"token"`
	}
	decodeJSON(t, w, &issued)

	w = e.do(t, http.MethodPut,
		"/v1/login/provider/approve?token="+issued.Token+"&fingerprint=abc123", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("query approve status = %d: %s", w.Code, w.Body.String())
	}
}

func TestInstantLoginEndpoint(t *testing.T) {
	e := newEnv(t)

	// Sin Bearer: 401
	w := e.do(t, http.MethodPost, "/v1/login/provider/instant/p1", "", nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("no session status = %d, want 401", w.Code)
	}

	// Sesión del broker + instant login
	w = e.do(t, http.MethodPost, "/v1/session/login",
		`{"email":"a@b.com","password":"hunter22"}`, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("session login status = %d: %s", w.Code, w.Body.String())
	}
	var sess struct {
		AccessToken string `json:"access_token"`
	}
	decodeJSON(t, w, &sess)

	w = e.do(t, http.MethodPost, "/v1/login/provider/instant/p1", "",
		map[string]string{"Authorization": "Bearer " + sess.AccessToken})
	if w.Code != http.StatusOK {
		t.Fatalf("instant status = %d: %s", w.Code, w.Body.String())
	}
	var issued struct {
		Token string `json:"token"`
	}
	decodeJSON(t, w, &issued)
	if issued.Token == "" {
		t.Error("empty token")
	}

	// Un token de sesión NO sirve como token de handoff.
	w = e.do(t, http.MethodPut, "/v1/login/provider/approve",
		`{"token":"`+sess.AccessToken+`","fingerprint":"abc123"}`, nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("session token as handoff status = %d, want 401", w.Code)
	}
}
