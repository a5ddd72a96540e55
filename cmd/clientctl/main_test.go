package main

import (
	"context"
	"errors"
	"testing"

	"refundflow/auth"
)

type fakeClientRepo struct {
	clients map[string]auth.Client
}

func newFakeClientRepo() *fakeClientRepo {
	return &fakeClientRepo{clients: make(map[string]auth.Client)}
}

func (r *fakeClientRepo) CreateClient(_ context.Context, params auth.CreateClientParams) (auth.Client, error) {
	if _, ok := r.clients[params.ID]; ok {
		return auth.Client{}, auth.ErrDuplicateClient
	}
	c := auth.Client{ID: params.ID, Name: params.Name, SecretHash: params.SecretHash, Role: params.Role}
	r.clients[params.ID] = c
	return c, nil
}

func (r *fakeClientRepo) GetClientByID(_ context.Context, clientID string) (auth.Client, error) {
	c, ok := r.clients[clientID]
	if !ok {
		return auth.Client{}, auth.ErrClientNotFound
	}
	return c, nil
}

func TestRegisterClient_StoresUsableCredentials(t *testing.T) {
	repo := newFakeClientRepo()
	svc := auth.NewService(repo, "jwt-secret")

	client, secret, err := registerClient(context.Background(), svc, registration{
		ID:     "workflow-runner",
		Name:   "Workflow Runner",
		Role:   auth.RoleAutomation,
		Secret: "a-long-enough-secret",
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if client.ID != "workflow-runner" || client.Role != auth.RoleAutomation {
		t.Fatalf("unexpected client: %+v", client)
	}
	if secret != "a-long-enough-secret" {
		t.Fatalf("explicit secret must be kept, got %q", secret)
	}

	// The stored hash must authenticate the returned secret.
	if _, err := svc.IssueToken(context.Background(), auth.TokenRequest{
		ClientID: "workflow-runner",
		Secret:   secret,
	}); err != nil {
		t.Fatalf("issue token with registered secret: %v", err)
	}
}

func TestRegisterClient_GeneratesSecretWhenEmpty(t *testing.T) {
	repo := newFakeClientRepo()
	svc := auth.NewService(repo, "jwt-secret")

	_, secret, err := registerClient(context.Background(), svc, registration{
		ID:   "seed-client",
		Name: "Seed Client",
		Role: auth.RoleAdmin,
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if len(secret) < 16 {
		t.Fatalf("generated secret too short: %q", secret)
	}

	if _, err := svc.IssueToken(context.Background(), auth.TokenRequest{
		ClientID: "seed-client",
		Secret:   secret,
	}); err != nil {
		t.Fatalf("issue token with generated secret: %v", err)
	}
}

func TestRegisterClient_RejectsWeakExplicitSecret(t *testing.T) {
	svc := auth.NewService(newFakeClientRepo(), "jwt-secret")

	_, _, err := registerClient(context.Background(), svc, registration{
		ID:     "weak",
		Name:   "Weak",
		Role:   auth.RoleAutomation,
		Secret: "short",
	})
	if !errors.Is(err, auth.ErrWeakSecret) {
		t.Fatalf("expected ErrWeakSecret, got %v", err)
	}
}
