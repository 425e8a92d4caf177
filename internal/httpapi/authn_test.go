package httpapi

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"fundihub.org/internal/auth"
	"fundihub.org/internal/identity"
	"fundihub.org/internal/provider"
	"fundihub.org/internal/ratelimit"
)

const testAdminSentinel = "fundihub-root"

type testEnv struct {
	api      *API
	handler  http.Handler
	verifier *auth.Verifier
	users    *identity.InMemoryStore
	clock    *time.Time
}

// newTestEnv builds a fully wired API over in-memory stores. The handler
// chain omits the per-IP bucket, which has its own tests, so flows with
// many requests from one test address do not trip it.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := &now

	users := identity.NewInMemoryStore()
	verifier := auth.NewVerifier("httpapi-test-secret", auth.WithTokenTTL(time.Hour))
	resolver := identity.NewResolver(users, testAdminSentinel)
	providers := provider.NewService(provider.NewInMemoryStore(),
		provider.WithClock(func() time.Time { return *clock }))
	limiter := ratelimit.New(ratelimit.WithClock(func() time.Time { return *clock }))

	api := New(Config{
		Verifier:  verifier,
		Resolver:  resolver,
		Providers: providers,
		Limiter:   limiter,
		Mirror:    users,
		Version:   "test",
	})
	return &testEnv{
		api:      api,
		handler:  RequestID(api.withAuth(api.mux)),
		verifier: verifier,
		users:    users,
		clock:    clock,
	}
}

func (e *testEnv) addUser(t *testing.T, rec *identity.UserRecord) string {
	t.Helper()
	if rec.PasswordHash == "" {
		hash, err := auth.HashPassword("correct horse")
		if err != nil {
			t.Fatalf("HashPassword: %v", err)
		}
		rec.PasswordHash = hash
	}
	e.users.Put(rec)
	token, _, err := e.verifier.Issue(rec.ID, rec.Email, rec.DisplayName, false)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	return token
}

func (e *testEnv) adminToken(t *testing.T) string {
	t.Helper()
	token, _, err := e.verifier.Issue(testAdminSentinel, "root@fundihub.org", "Root", true)
	if err != nil {
		t.Fatalf("Issue admin: %v", err)
	}
	return token
}

func (e *testEnv) do(t *testing.T, method, path, token string, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, jsonBody(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	e.handler.ServeHTTP(rr, req)
	return rr
}

func jsonBody(s string) io.Reader { return strings.NewReader(s) }

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode body %q: %v", rr.Body.String(), err)
	}
	return out
}

func TestAuthRequiredOnProtectedRoutes(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, http.MethodGet, "/v1/me", "", "")
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
	body := decodeBody(t, rr)
	if body["kind"] != "access_denied" || body["error"] != "access denied" {
		t.Fatalf("denial must be uniform, got %v", body)
	}
}

func TestAuthUniformDenialAcrossFailureKinds(t *testing.T) {
	env := newTestEnv(t)

	// Expired credential.
	past := auth.NewVerifier("httpapi-test-secret",
		auth.WithTokenTTL(time.Minute),
		auth.WithClock(func() time.Time { return time.Now().Add(-time.Hour) }))
	expired, _, err := past.Issue("user-1", "a@b.c", "A", false)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	// Wrong signing secret.
	foreign := auth.NewVerifier("other-secret")
	badSig, _, err := foreign.Issue("user-1", "a@b.c", "A", false)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	for name, token := range map[string]string{
		"expired":       expired,
		"bad signature": badSig,
		"garbage":       "definitely-not-a-token",
	} {
		rr := env.do(t, http.MethodGet, "/v1/me", token, "")
		if rr.Code != http.StatusUnauthorized {
			t.Fatalf("%s: expected 401, got %d", name, rr.Code)
		}
		body := decodeBody(t, rr)
		if body["kind"] != "access_denied" {
			t.Fatalf("%s: caller-facing kind must be uniform, got %v", name, body["kind"])
		}
	}
}

func TestAuthDeactivatedUser(t *testing.T) {
	env := newTestEnv(t)
	token := env.addUser(t, &identity.UserRecord{
		ID: "user-1", Email: "off@example.com", Role: auth.RoleClient, Active: false,
	})

	rr := env.do(t, http.MethodGet, "/v1/me", token, "")
	if rr.Code != http.StatusForbidden {
		t.Fatalf("deactivated user must get 403, got %d", rr.Code)
	}
	if decodeBody(t, rr)["kind"] != "access_denied" {
		t.Fatal("denial must stay uniform")
	}
}

func TestAuthViaCookie(t *testing.T) {
	env := newTestEnv(t)
	token := env.addUser(t, &identity.UserRecord{
		ID: "user-1", Email: "jane@example.com", DisplayName: "Jane",
		Role: auth.RoleClient, Active: true, EmailVerified: true,
	})

	req := httptest.NewRequest(http.MethodGet, "/v1/me", nil)
	req.AddCookie(&http.Cookie{Name: "token", Value: token})
	rr := httptest.NewRecorder()
	env.handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("cookie credential should work, got %d: %s", rr.Code, rr.Body.String())
	}
	if decodeBody(t, rr)["id"] != "user-1" {
		t.Fatal("unexpected principal")
	}
}

func TestAdminSynthesizedFromClaims(t *testing.T) {
	env := newTestEnv(t)
	// Note: the admin is never in the user store.
	token, _, err := env.verifier.Issue(testAdminSentinel, "root@fundihub.org", "Root", true)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	rr := env.do(t, http.MethodGet, "/v1/me", token, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("admin resolve failed: %d %s", rr.Code, rr.Body.String())
	}
	body := decodeBody(t, rr)
	if body["role"] != "admin" || body["active"] != true {
		t.Fatalf("synthesized admin is wrong: %v", body)
	}

	// Admin flag without the sentinel subject must hit the store and fail.
	impostor, _, err := env.verifier.Issue("user-999", "x@y.z", "X", true)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if rr := env.do(t, http.MethodGet, "/v1/me", impostor, ""); rr.Code != http.StatusUnauthorized {
		t.Fatalf("impostor must be denied, got %d", rr.Code)
	}
}

func TestPublicPathsSkipAuth(t *testing.T) {
	env := newTestEnv(t)
	for _, path := range []string{"/healthz", "/v1/info"} {
		rr := env.do(t, http.MethodGet, path, "", "")
		if rr.Code != http.StatusOK {
			t.Fatalf("%s should be public, got %d", path, rr.Code)
		}
	}
}
