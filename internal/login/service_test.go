package login_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dropDatabas3/linkpass/internal/cache/memory"
	"github.com/dropDatabas3/linkpass/internal/login"
	"github.com/dropDatabas3/linkpass/internal/security/password"
	"github.com/dropDatabas3/linkpass/internal/store/core"
	"github.com/dropDatabas3/linkpass/internal/token"
)

// ─── fakes en memoria ───

type connKey struct{ user, provider string }

type fakeUsers struct {
	users map[string]*core.User // por id
	conns map[connKey]*core.Connection
	metas map[connKey][]core.ConnectionMeta
}

func newFakeUsers(users ...*core.User) *fakeUsers {
	f := &fakeUsers{
		users: map[string]*core.User{},
		conns: map[connKey]*core.Connection{},
		metas: map[connKey][]core.ConnectionMeta{},
	}
	for _, u := range users {
		f.users[u.ID] = u
	}
	return f
}

func (f *fakeUsers) GetByID(_ context.Context, id string) (*core.User, error) {
	if u, ok := f.users[id]; ok {
		return u, nil
	}
	return nil, core.ErrNotFound
}

func (f *fakeUsers) GetByEmail(_ context.Context, email string) (*core.User, error) {
	for _, u := range f.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, core.ErrNotFound
}

func (f *fakeUsers) GetConnection(_ context.Context, userID, providerID string) (*core.Connection, error) {
	if c, ok := f.conns[connKey{userID, providerID}]; ok {
		return c, nil
	}
	return nil, core.ErrNotFound
}

func (f *fakeUsers) CreateOrGetConnection(_ context.Context, conn core.Connection) (*core.Connection, bool, error) {
	k := connKey{conn.UserID, conn.ProviderID}
	if existing, ok := f.conns[k]; ok {
		return existing, false, nil
	}
	if conn.Roles == nil {
		conn.Roles = []string{}
	}
	conn.CreatedTime = time.Now()
	conn.UpdatedTime = conn.CreatedTime
	f.conns[k] = &conn
	return &conn, true, nil
}

func (f *fakeUsers) AppendConnectionMeta(_ context.Context, userID, providerID string, meta core.ConnectionMeta) (int64, error) {
	k := connKey{userID, providerID}
	if _, ok := f.conns[k]; !ok {
		return 0, nil
	}
	f.metas[k] = append(f.metas[k], meta)
	f.conns[k].UpdatedTime = time.Now()
	return 1, nil
}

type fakeProviders struct {
	providers map[string]*core.Provider
	secrets   map[string]string // secret → provider id
	names     map[string][]core.Fingerprint
}

func newFakeProviders(providers ...*core.Provider) *fakeProviders {
	f := &fakeProviders{
		providers: map[string]*core.Provider{},
		secrets:   map[string]string{},
		names:     map[string][]core.Fingerprint{},
	}
	for _, p := range providers {
		f.providers[p.ID] = p
	}
	return f
}

func (f *fakeProviders) addFingerprint(providerID, name, secret string) {
	f.secrets[secret] = providerID
	f.names[providerID] = append(f.names[providerID], core.Fingerprint{Name: name, Secret: secret})
}

func (f *fakeProviders) GetByID(_ context.Context, id string) (*core.Provider, error) {
	if p, ok := f.providers[id]; ok && p.State {
		return p, nil
	}
	return nil, core.ErrNotFound
}

func (f *fakeProviders) GetByFingerprint(_ context.Context, secret string) (*core.Provider, error) {
	id, ok := f.secrets[secret]
	if !ok {
		return nil, core.ErrNotFound
	}
	p, ok := f.providers[id]
	if !ok || !p.State {
		return nil, core.ErrNotFound
	}
	return p, nil
}

func (f *fakeProviders) InsertFingerprint(_ context.Context, providerID string, fp core.Fingerprint) error {
	if _, ok := f.providers[providerID]; !ok {
		return core.ErrNotFound
	}
	if _, ok := f.secrets[fp.Secret]; ok {
		return core.ErrDuplicateSecret
	}
	for _, existing := range f.names[providerID] {
		if existing.Name == fp.Name {
			return core.ErrConflict
		}
	}
	f.addFingerprint(providerID, fp.Name, fp.Secret)
	return nil
}

func (f *fakeProviders) RemoveFingerprint(_ context.Context, providerID, name string) (int64, error) {
	fps := f.names[providerID]
	for i, fp := range fps {
		if fp.Name == name {
			delete(f.secrets, fp.Secret)
			f.names[providerID] = append(fps[:i], fps[i+1:]...)
			return 1, nil
		}
	}
	return 0, nil
}

func (f *fakeProviders) ListFingerprints(_ context.Context, providerID string) ([]core.Fingerprint, error) {
	return f.names[providerID], nil
}

// ─── setup ───

const (
	testSecretKey = "test-handoff-secret-32-bytes-ok!"
	testIss       = "linkpass"
	testAud       = "linkpass:provider"
)

func mustHash(t *testing.T, plain string) string {
	t.Helper()
	h, err := password.Hash(password.Default, plain)
	if err != nil {
		t.Fatal(err)
	}
	return h
}

type fixture struct {
	svc       *login.Service
	users     *fakeUsers
	providers *fakeProviders
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	u1 := &core.User{
		ID:           "u1",
		Email:        "a@b.com",
		Status:       core.UserActive,
		PasswordHash: mustHash(t, "hunter22"),
		AvatarURL:    "https://cdn.example/u1.png",
		Phone:        "+15550001111",
	}
	blocked := &core.User{
		ID:           "u2",
		Email:        "blocked@b.com",
		Status:       core.UserBlocked,
		PasswordHash: mustHash(t, "hunter22"),
	}
	p1 := &core.Provider{
		ID:               "p1",
		Name:             "Partner One",
		State:            true,
		IsLoginEnabled:   true,
		LoginRedirectURL: "https://partner.example/cb",
		DefaultRoles:     []string{"member"},
	}
	p2 := &core.Provider{
		ID:             "p2",
		Name:           "Partner Two",
		State:          true,
		IsLoginEnabled: true,
	}
	disabled := &core.Provider{
		ID:             "p3",
		Name:           "Disabled Partner",
		State:          true,
		IsLoginEnabled: false,
	}

	users := newFakeUsers(u1, blocked)
	providers := newFakeProviders(p1, p2, disabled)
	providers.addFingerprint("p1", "main", "abc123")
	providers.addFingerprint("p2", "main", "def456")
	providers.addFingerprint("p3", "main", "ghi789")

	svc := login.New(login.Options{
		Users:     users,
		Providers: providers,
		Creds:     &login.StoreVerifier{Users: users},
		Issuer:    token.NewIssuer([]byte(testSecretKey), testIss, testAud, 5*time.Minute),
		Verifier:  token.NewVerifier([]byte(testSecretKey), testIss, testAud, 5*time.Minute),
		Cache:     memory.New(30 * time.Second),
	})
	return &fixture{svc: svc, users: users, providers: providers}
}

// ─── tests ───

func TestEmailLoginIssuesChallengeableToken(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	resp, err := fx.svc.EmailLogin(ctx, "a@b.com", "hunter22", "p1")
	if err != nil {
		t.Fatalf("email login: %v", err)
	}
	if resp.Token == "" {
		t.Fatal("empty token")
	}
	if want := "https://partner.example/cb?redirect_token=" + resp.Token; resp.RedirectURL != want {
		t.Errorf("redirect = %q, want %q", resp.RedirectURL, want)
	}

	res, err := fx.svc.ApproveLogin(ctx, resp.Token, "abc123", core.ConnectionMeta{IP: "1.2.3.4", UserAgent: "go-test"})
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if res.UserID != "u1" || res.Email != "a@b.com" {
		t.Errorf("result = %+v", res)
	}
	if len(res.Roles) != 1 || res.Roles[0] != "member" {
		t.Errorf("roles = %v, want default roles from provider", res.Roles)
	}
	if res.AvatarURL == "" || res.Phone == "" {
		t.Errorf("projection incomplete: %+v", res)
	}
}

func TestEmailLoginFailures(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	cases := []struct {
		name               string
		email, pass, prov  string
		want               error
	}{
		{"wrong password", "a@b.com", "nope", "p1", login.ErrUserNotFound},
		{"unknown user", "who@b.com", "hunter22", "p1", login.ErrUserNotFound},
		{"unknown provider", "a@b.com", "hunter22", "p404", login.ErrProviderNotFound},
		{"login disabled", "a@b.com", "hunter22", "p3", login.ErrProviderUnavailable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := fx.svc.EmailLogin(ctx, tc.email, tc.pass, tc.prov)
			if !errors.Is(err, tc.want) {
				t.Errorf("got %v, want %v", err, tc.want)
			}
		})
	}
}

func TestInstantLogin(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	if _, err := fx.svc.InstantLogin(ctx, "", "p1"); !errors.Is(err, login.ErrNotAuthorized) {
		t.Errorf("no session: got %v", err)
	}

	resp, err := fx.svc.InstantLogin(ctx, "u1", "p1")
	if err != nil {
		t.Fatalf("instant login: %v", err)
	}
	if resp.Token == "" || resp.RedirectURL == "" {
		t.Errorf("resp = %+v", resp)
	}
}

func TestApproveWrongSecret(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	resp, _ := fx.svc.EmailLogin(ctx, "a@b.com", "hunter22", "p1")
	_, err := fx.svc.ApproveLogin(ctx, resp.Token, "wrong-secret", core.ConnectionMeta{})
	if !errors.Is(err, login.ErrTokenProviderNotFound) {
		t.Fatalf("got %v, want ErrTokenProviderNotFound", err)
	}
}

func TestApproveCrossProviderBinding(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	// Token emitido para p1, presentado con el fingerprint de p2:
	// la firma es válida pero el binding tiene que rechazarlo.
	resp, _ := fx.svc.EmailLogin(ctx, "a@b.com", "hunter22", "p1")
	_, err := fx.svc.ApproveLogin(ctx, resp.Token, "def456", core.ConnectionMeta{})
	if !errors.Is(err, login.ErrAccessDenied) {
		t.Fatalf("got %v, want ErrAccessDenied", err)
	}
}

func TestApproveProviderDisabledAfterIssue(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	resp, _ := fx.svc.EmailLogin(ctx, "a@b.com", "hunter22", "p1")
	fx.providers.providers["p1"].IsLoginEnabled = false

	_, err := fx.svc.ApproveLogin(ctx, resp.Token, "abc123", core.ConnectionMeta{})
	if !errors.Is(err, login.ErrTokenProviderNotAllowed) {
		t.Fatalf("got %v, want ErrTokenProviderNotAllowed", err)
	}
}

func TestApproveBlockedUser(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	resp, err := fx.svc.EmailLogin(ctx, "blocked@b.com", "hunter22", "p1")
	if err != nil {
		t.Fatalf("email login: %v", err)
	}
	_, err = fx.svc.ApproveLogin(ctx, resp.Token, "abc123", core.ConnectionMeta{})
	if !errors.Is(err, login.ErrUserBlocked) {
		t.Fatalf("got %v, want ErrUserBlocked", err)
	}
}

func TestApproveIdempotentConnection(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		resp, err := fx.svc.EmailLogin(ctx, "a@b.com", "hunter22", "p1")
		if err != nil {
			t.Fatalf("email login #%d: %v", i+1, err)
		}
		if _, err := fx.svc.ApproveLogin(ctx, resp.Token, "abc123", core.ConnectionMeta{IP: "1.2.3.4"}); err != nil {
			t.Fatalf("approve #%d: %v", i+1, err)
		}
	}

	k := connKey{"u1", "p1"}
	if len(fx.users.conns) != 1 {
		t.Errorf("connections = %d, want 1", len(fx.users.conns))
	}
	if got := len(fx.users.metas[k]); got != 2 {
		t.Errorf("meta entries = %d, want 2", got)
	}
}

func TestApproveExpiredToken(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	// Emisor con reloj 11 minutos en el pasado: exp+skew ya venció.
	old := token.NewIssuer([]byte(testSecretKey), testIss, testAud, 5*time.Minute).
		WithClock(func() time.Time { return time.Now().Add(-11 * time.Minute) })
	stale, err := old.Issue("u1", "a@b.com", "p1")
	if err != nil {
		t.Fatal(err)
	}

	_, err = fx.svc.ApproveLogin(ctx, stale, "abc123", core.ConnectionMeta{})
	if !errors.Is(err, login.ErrTokenChallengeFailed) {
		t.Fatalf("got %v, want ErrTokenChallengeFailed", err)
	}
}

func TestApproveGarbageToken(t *testing.T) {
	fx := newFixture(t)
	_, err := fx.svc.ApproveLogin(context.Background(), "not-a-jwt", "abc123", core.ConnectionMeta{})
	if !errors.Is(err, login.ErrTokenChallengeFailed) {
		t.Fatalf("got %v, want ErrTokenChallengeFailed", err)
	}
}
