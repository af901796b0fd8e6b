package main

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	goToken "github.com/MrEthical07/goToken"
	"github.com/MrEthical07/goToken/metrics/export/prometheus"
	"github.com/MrEthical07/goToken/middleware"
)

const maxBodyBytes = 64 << 10

type server struct {
	engine *goToken.Engine
	log    *slog.Logger
}

// newHandler wires the HTTP surface around engine.
//
//	POST  /auth/token    {"identifier","secret"}  -> pair
//	POST  /auth/refresh  {"refresh_token"}        -> pair
//	PATCH /auth/revoke   {"refresh_token"}
//	GET   /auth/me       Bearer access token
//	GET   /metrics
//	GET   /healthz
func newHandler(engine *goToken.Engine, log *slog.Logger, trustForwarded bool) http.Handler {
	s := &server{engine: engine, log: log}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/token", s.token)
	mux.HandleFunc("POST /auth/refresh", s.refresh)
	mux.HandleFunc("PATCH /auth/revoke", s.revoke)
	mux.Handle("GET /auth/me", middleware.RequireAccess(engine)(http.HandlerFunc(s.me)))
	mux.Handle("GET /metrics", prometheus.NewPrometheusExporter(engine).Handler())
	mux.HandleFunc("GET /healthz", s.healthz)

	return middleware.ClientIP(trustForwarded)(mux)
}

type credentialsRequest struct {
	Identifier string `json:"identifier"`
	Secret     string `json:"secret"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type pairResponse struct {
	goToken.TokenPair
	Warning string `json:"warning,omitempty"`
}

func (s *server) token(w http.ResponseWriter, r *http.Request) {
	var body credentialsRequest
	if !decodeBody(w, r, &body) {
		return
	}

	pair, err := s.engine.Login(r.Context(), body.Identifier, body.Secret)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, pairResponse{TokenPair: pair})
	case errors.Is(err, goToken.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "invalid identifier or secret")
	case errors.Is(err, goToken.ErrLoginRateLimited):
		writeError(w, http.StatusTooManyRequests, "too many login attempts")
	default:
		s.writeFault(w, r, "login", err)
	}
}

func (s *server) refresh(w http.ResponseWriter, r *http.Request) {
	var body refreshRequest
	if !decodeBody(w, r, &body) {
		return
	}
	if body.RefreshToken == "" {
		writeError(w, http.StatusBadRequest, "refresh_token is required")
		return
	}

	pair, err := s.engine.Renew(r.Context(), body.RefreshToken)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, pairResponse{TokenPair: pair})
	case errors.Is(err, goToken.ErrRotationPartialFailure):
		writeJSON(w, http.StatusOK, pairResponse{
			TokenPair: pair,
			Warning:   "previous refresh token could not be revoked",
		})
	case errors.Is(err, goToken.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, "invalid refresh token")
	case errors.Is(err, goToken.ErrRenewRateLimited):
		writeError(w, http.StatusTooManyRequests, "too many renewals")
	default:
		s.writeFault(w, r, "refresh", err)
	}
}

func (s *server) revoke(w http.ResponseWriter, r *http.Request) {
	var body refreshRequest
	if !decodeBody(w, r, &body) {
		return
	}
	if body.RefreshToken == "" {
		writeError(w, http.StatusBadRequest, "refresh_token is required")
		return
	}

	outcome, err := s.engine.Revoke(r.Context(), body.RefreshToken)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]string{"status": outcome.String()})
	case errors.Is(err, goToken.ErrNothingToRevoke):
		writeError(w, http.StatusNotFound, "token not found or already revoked")
	default:
		s.writeFault(w, r, "revoke", err)
	}
}

func (s *server) me(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	resp := map[string]any{
		"subject": claims.Subject,
		"issuer":  claims.Issuer,
	}
	if claims.ExpiresAt != nil {
		resp["expires_at"] = claims.ExpiresAt.Time
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *server) healthz(w http.ResponseWriter, r *http.Request) {
	latency, err := s.engine.Ping(r.Context())
	if err != nil {
		s.log.WarnContext(r.Context(), "store ping failed", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":          "ok",
		"store_latency_s": latency.Seconds(),
	})
}

// writeFault maps store faults to 503 and everything else to 500.
func (s *server) writeFault(w http.ResponseWriter, r *http.Request, op string, err error) {
	s.log.ErrorContext(r.Context(), op+" failed", "error", err)
	if errors.Is(err, goToken.ErrPersistence) {
		writeError(w, http.StatusServiceUnavailable, "token store unavailable")
		return
	}
	writeError(w, http.StatusInternalServerError, "internal error")
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return false
	}
	return true
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
