package middleware

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	goToken "github.com/MrEthical07/goToken"
	"github.com/MrEthical07/goToken/store"
	"github.com/stretchr/testify/require"
)

func newTestEngine(t *testing.T) *goToken.Engine {
	t.Helper()
	cfg := goToken.DefaultConfig()
	cfg.Token.AccessSecret = bytes.Repeat([]byte("a"), 64)
	cfg.Token.RefreshSecret = bytes.Repeat([]byte("r"), 64)
	cfg.Token.Issuer = "issuer"
	cfg.Token.Audience = "audience"

	engine, err := goToken.New().WithConfig(cfg).WithStore(store.NewMemoryStore()).Build()
	require.NoError(t, err)
	t.Cleanup(engine.Close)
	return engine
}

func subjectHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := ClaimsFromContext(r.Context())
		if !ok {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte(claims.Subject))
	})
}

func TestRequireAccess(t *testing.T) {
	engine := newTestEngine(t)
	pair, err := engine.IssuePair(context.Background(), "a@b.com")
	require.NoError(t, err)

	h := RequireAccess(engine)(subjectHandler())

	tests := []struct {
		name   string
		header string
		status int
	}{
		{"no header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic " + pair.AccessToken, http.StatusUnauthorized},
		{"empty bearer", "Bearer ", http.StatusUnauthorized},
		{"garbage", "Bearer not-a-jwt", http.StatusUnauthorized},
		{"refresh token", "Bearer " + pair.RefreshToken, http.StatusUnauthorized},
		{"access token", "Bearer " + pair.AccessToken, http.StatusOK},
		{"lowercase scheme", "bearer " + pair.AccessToken, http.StatusOK},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			require.Equal(t, tc.status, rec.Code)
			if tc.status == http.StatusOK {
				require.Equal(t, "a@b.com", rec.Body.String())
			} else {
				require.NotEmpty(t, rec.Header().Get("WWW-Authenticate"))
			}
		})
	}
}

func TestRequireAccessNilVerifier(t *testing.T) {
	rec := httptest.NewRecorder()
	RequireAccess(nil)(subjectHandler()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestClientIP(t *testing.T) {
	var got string
	probe := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = goToken.ClientIPFromContext(r.Context())
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.10:5555"
	req.Header.Set("X-Forwarded-For", "203.0.113.5, 10.0.0.1")

	ClientIP(false)(probe).ServeHTTP(httptest.NewRecorder(), req)
	require.Equal(t, "192.0.2.10", got)

	ClientIP(true)(probe).ServeHTTP(httptest.NewRecorder(), req)
	require.Equal(t, "203.0.113.5", got)

	req.Header.Set("X-Forwarded-For", "junk")
	ClientIP(true)(probe).ServeHTTP(httptest.NewRecorder(), req)
	require.Equal(t, "192.0.2.10", got)
}
