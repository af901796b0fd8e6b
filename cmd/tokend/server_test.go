package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	goToken "github.com/MrEthical07/goToken"
	"github.com/MrEthical07/goToken/credentials"
	"github.com/MrEthical07/goToken/store"
	"golang.org/x/crypto/bcrypt"
)

type failingRevokeStore struct {
	*store.MemoryStore
}

func (s failingRevokeStore) RevokeIfActive(context.Context, string) (store.RevokeResult, error) {
	return store.RevokeFailed, store.ErrPersistence
}

func newTestServer(t *testing.T, st store.Store) http.Handler {
	t.Helper()

	cfg := goToken.DefaultConfig()
	cfg.Token.AccessSecret = bytes.Repeat([]byte("a"), 64)
	cfg.Token.RefreshSecret = bytes.Repeat([]byte("r"), 64)
	cfg.Token.Issuer = "tokend-test"
	cfg.Token.Audience = "tokend-clients"
	cfg.Metrics.Enabled = true

	hash, err := bcrypt.GenerateFromPassword([]byte("correct-horse"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	users := credentials.NewStaticUsers()
	users.AddHash("alice@example.com", hash)
	validator, err := credentials.NewValidator(users)
	if err != nil {
		t.Fatalf("validator: %v", err)
	}

	engine, err := goToken.New().
		WithConfig(cfg).
		WithStore(st).
		WithCredentialValidator(validator).
		Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	t.Cleanup(engine.Close)

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return newHandler(engine, log, false)
}

func do(t *testing.T, h http.Handler, method, path string, body any, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	var rdr io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		rdr = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, rdr)
	for k, v := range header {
		req.Header[k] = v
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodePair(t *testing.T, rec *httptest.ResponseRecorder) pairResponse {
	t.Helper()
	var out pairResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return out
}

func login(t *testing.T, h http.Handler) pairResponse {
	t.Helper()
	rec := do(t, h, http.MethodPost, "/auth/token", credentialsRequest{
		Identifier: "alice@example.com",
		Secret:     "correct-horse",
	}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("login: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	return decodePair(t, rec)
}

func TestTokenEndpoint(t *testing.T) {
	h := newTestServer(t, store.NewMemoryStore())

	pair := login(t, h)
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		t.Fatalf("expected both tokens, got %+v", pair)
	}

	rec := do(t, h, http.MethodPost, "/auth/token", credentialsRequest{
		Identifier: "alice@example.com",
		Secret:     "wrong",
	}, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("wrong secret: expected 401, got %d", rec.Code)
	}

	rec = do(t, h, http.MethodPost, "/auth/token", map[string]string{"user": "x"}, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unknown fields: expected 400, got %d", rec.Code)
	}
}

func TestRefreshRotatesOnce(t *testing.T) {
	h := newTestServer(t, store.NewMemoryStore())
	first := login(t, h)

	rec := do(t, h, http.MethodPost, "/auth/refresh", refreshRequest{RefreshToken: first.RefreshToken}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("refresh: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	second := decodePair(t, rec)
	if second.RefreshToken == first.RefreshToken {
		t.Fatal("refresh token was not rotated")
	}
	if second.Warning != "" {
		t.Fatalf("unexpected warning %q", second.Warning)
	}

	rec = do(t, h, http.MethodPost, "/auth/refresh", refreshRequest{RefreshToken: first.RefreshToken}, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("replay: expected 401, got %d", rec.Code)
	}

	rec = do(t, h, http.MethodPost, "/auth/refresh", refreshRequest{}, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("empty token: expected 400, got %d", rec.Code)
	}
}

func TestRefreshPartialFailureReturnsWarning(t *testing.T) {
	mem := store.NewMemoryStore()
	h := newTestServer(t, failingRevokeStore{MemoryStore: mem})
	first := login(t, h)

	rec := do(t, h, http.MethodPost, "/auth/refresh", refreshRequest{RefreshToken: first.RefreshToken}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	pair := decodePair(t, rec)
	if pair.Warning == "" || pair.RefreshToken == "" {
		t.Fatalf("expected pair with warning, got %+v", pair)
	}
}

func TestRevokeEndpoint(t *testing.T) {
	mem := store.NewMemoryStore()
	h := newTestServer(t, mem)
	pair := login(t, h)

	rec := do(t, h, http.MethodPatch, "/auth/revoke", refreshRequest{RefreshToken: pair.RefreshToken}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("revoke: expected 200, got %d", rec.Code)
	}
	rec = do(t, h, http.MethodPatch, "/auth/revoke", refreshRequest{RefreshToken: pair.RefreshToken}, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("second revoke: expected 404, got %d", rec.Code)
	}
	rec = do(t, h, http.MethodPost, "/auth/refresh", refreshRequest{RefreshToken: pair.RefreshToken}, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("refresh after revoke: expected 401, got %d", rec.Code)
	}
}

func TestRevokeStoreFaultIsUnavailable(t *testing.T) {
	h := newTestServer(t, failingRevokeStore{MemoryStore: store.NewMemoryStore()})
	pair := login(t, h)

	rec := do(t, h, http.MethodPatch, "/auth/revoke", refreshRequest{RefreshToken: pair.RefreshToken}, nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
}

func TestMeRequiresAccessToken(t *testing.T) {
	h := newTestServer(t, store.NewMemoryStore())
	pair := login(t, h)

	rec := do(t, h, http.MethodGet, "/auth/me", nil, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("no token: expected 401, got %d", rec.Code)
	}

	rec = do(t, h, http.MethodGet, "/auth/me", nil, http.Header{"Authorization": {"Bearer " + pair.RefreshToken}})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("refresh token as access: expected 401, got %d", rec.Code)
	}

	rec = do(t, h, http.MethodGet, "/auth/me", nil, http.Header{"Authorization": {"Bearer " + pair.AccessToken}})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["subject"] != "alice@example.com" {
		t.Fatalf("unexpected subject %v", body["subject"])
	}
}

func TestHealthAndMetrics(t *testing.T) {
	h := newTestServer(t, store.NewMemoryStore())
	login(t, h)

	rec := do(t, h, http.MethodGet, "/healthz", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("healthz: expected 200, got %d", rec.Code)
	}

	rec = do(t, h, http.MethodGet, "/metrics", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("metrics: expected 200, got %d", rec.Code)
	}
	if !bytes.Contains(rec.Body.Bytes(), []byte("gotoken_login_success_total 1")) {
		t.Fatalf("login counter missing from:\n%s", rec.Body.String())
	}
}
