package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"refundflow/auth"
	"refundflow/capability"
	"refundflow/engine"
)

type stubImages struct{}

func (stubImages) AnalyzeImage(context.Context, capability.ImageRequest) (capability.ImageAnalysis, error) {
	return capability.ImageAnalysis{Verdict: capability.VerdictDeny, Confidence: 0.9}, nil
}

type stubChats struct{}

func (stubChats) AnalyzeChat(context.Context, capability.ChatRequest) (capability.ChatAnalysis, error) {
	return capability.ChatAnalysis{}, nil
}

type stubPolicies struct{}

func (stubPolicies) RetrievePolicy(context.Context, string) (string, error) {
	return "official policy", nil
}

type stubComposer struct{}

func (stubComposer) Compose(context.Context, capability.ComposeRequest) (string, error) {
	return "composed justification", nil
}

type stubAuthRepo struct {
	client auth.Client
	err    error
}

func (s *stubAuthRepo) CreateClient(_ context.Context, _ auth.CreateClientParams) (auth.Client, error) {
	return s.client, s.err
}

func (s *stubAuthRepo) GetClientByID(_ context.Context, _ string) (auth.Client, error) {
	return s.client, s.err
}

func testServer(t *testing.T) *Server {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("a-long-enough-secret"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash secret: %v", err)
	}
	repo := &stubAuthRepo{client: auth.Client{ID: "runner-1", SecretHash: string(hash), Role: auth.RoleAutomation}}
	return &Server{
		engine:      engine.New(stubImages{}, stubChats{}, stubPolicies{}, stubComposer{}),
		authService: auth.NewService(repo, "jwt-test-secret"),
	}
}

func TestHandleAdjudicate_PinUpheld(t *testing.T) {
	server := testServer(t)

	body := strings.NewReader(`{
		"order_id": "ord-1",
		"reason_code": "ITEM_NOT_RECEIVED",
		"financial_impact": 125.0,
		"timestamps": {"eta_max": "2025-01-01T10:00:00Z"},
		"delivery_evidence": {"delivery_pin_validated": true, "pin_validated_at": "2025-01-01T09:58:00Z"}
	}`)
	req := httptest.NewRequest(http.MethodPost, "/api/adjudications", body)
	rec := httptest.NewRecorder()

	server.handleAdjudicate(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var d engine.Disposition
	if err := json.Unmarshal(rec.Body.Bytes(), &d); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if d.Action != engine.ActionUpholdMerchant || d.Confidence != 1.0 {
		t.Fatalf("unexpected disposition: %+v", d)
	}
	if d.OrderID != "ord-1" {
		t.Fatalf("unexpected order id %q", d.OrderID)
	}
}

func TestHandleAdjudicate_InvalidPayload(t *testing.T) {
	server := testServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/adjudications", strings.NewReader(`{"reason_code": "other"}`))
	rec := httptest.NewRecorder()

	server.handleAdjudicate(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}

	var d engine.Disposition
	if err := json.Unmarshal(rec.Body.Bytes(), &d); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if d.Action != engine.ActionRejectedInvalidInput {
		t.Fatalf("expected REJECTED_INVALID_INPUT, got %s", d.Action)
	}
}

func TestHandleAdjudicate_WrongMethod(t *testing.T) {
	server := testServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/adjudications", nil)
	rec := httptest.NewRecorder()

	server.handleAdjudicate(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
}

func TestHandleToken_RoundTrip(t *testing.T) {
	server := testServer(t)

	body := strings.NewReader(`{"client_id": "runner-1", "secret": "a-long-enough-secret"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/token", body)
	rec := httptest.NewRecorder()

	server.handleToken(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Token == "" {
		t.Fatal("expected a token")
	}

	clientID, role, err := server.authService.VerifyToken(resp.Token)
	if err != nil {
		t.Fatalf("verify issued token: %v", err)
	}
	if clientID != "runner-1" || role != auth.RoleAutomation {
		t.Fatalf("unexpected identity %s/%s", clientID, role)
	}
}

func TestHandleToken_BadCredentials(t *testing.T) {
	server := testServer(t)

	body := strings.NewReader(`{"client_id": "runner-1", "secret": "nope"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/token", body)
	rec := httptest.NewRecorder()

	server.handleToken(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestRequireAuth(t *testing.T) {
	server := testServer(t)

	var gotClientID string
	protected := server.requireAuth(func(w http.ResponseWriter, r *http.Request) {
		gotClientID, _ = r.Context().Value(ctxKeyClientID).(string)
		w.WriteHeader(http.StatusNoContent)
	})

	// No token.
	rec := httptest.NewRecorder()
	protected(rec, httptest.NewRequest(http.MethodPost, "/api/adjudications", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rec.Code)
	}

	// Garbage token.
	req := httptest.NewRequest(http.MethodPost, "/api/adjudications", nil)
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	rec = httptest.NewRecorder()
	protected(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 with bad token, got %d", rec.Code)
	}

	// Valid token.
	token, err := server.authService.IssueToken(context.Background(), auth.TokenRequest{ClientID: "runner-1", Secret: "a-long-enough-secret"})
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	req = httptest.NewRequest(http.MethodPost, "/api/adjudications", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	protected(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204 with valid token, got %d", rec.Code)
	}
	if gotClientID != "runner-1" {
		t.Fatalf("expected client id in context, got %q", gotClientID)
	}
}
