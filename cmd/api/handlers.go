package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strings"

	"refundflow/auth"
	"refundflow/claim"
	"refundflow/engine"
	"refundflow/sink"
)

// maxClaimBody caps inbound claim payloads; transcripts are text, so a
// megabyte is generous.
const maxClaimBody = 1 << 20

type ctxKey int

const (
	ctxKeyClientID ctxKey = iota
	ctxKeyRole
)

// Server bundles the HTTP surface of the adjudication service.
type Server struct {
	engine      *engine.Engine
	runner      *sink.Runner
	authService *auth.Service
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/api/token", s.handleToken)
	mux.HandleFunc("/api/adjudications", s.requireAuth(s.handleAdjudicate))
	return mux
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req auth.TokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	token, err := s.authService.IssueToken(r.Context(), req)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			writeError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		log.Printf("issue token: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

// handleAdjudicate accepts one claim payload and returns its
// disposition. Side effects for upheld contests run before the reply so
// the caller observes an already-audited decision, but their failures
// never change the status code or body.
func (s *Server) handleAdjudicate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	raw, err := io.ReadAll(io.LimitReader(r.Body, maxClaimBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "read request body")
		return
	}

	d, effects, err := s.engine.Process(r.Context(), raw)
	if err != nil {
		var ve *claim.ValidationError
		if errors.As(err, &ve) {
			writeJSON(w, http.StatusBadRequest, d)
			return
		}
		log.Printf("adjudicate: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	if s.runner != nil {
		s.runner.Run(r.Context(), d, effects)
	}

	writeJSON(w, http.StatusOK, d)
}

// requireAuth enforces a Bearer token issued by /api/token.
func (s *Server) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}

		clientID, role, err := s.authService.VerifyToken(strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}

		ctx := context.WithValue(r.Context(), ctxKeyClientID, clientID)
		ctx = context.WithValue(ctx, ctxKeyRole, role)
		next(w, r.WithContext(ctx))
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
