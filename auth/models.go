package auth

import "time"

type Role string

const (
	// RoleAutomation is the workflow runner submitting claims.
	RoleAutomation Role = "automation"
	// RoleReviewer is a human reviewing escalated cases.
	RoleReviewer Role = "reviewer"
	RoleAdmin    Role = "admin"
)

// Client is the domain representation of an API client. It mirrors the
// api_clients table and should not include JSON annotations so it can be
// reused by different presentation layers.
type Client struct {
	ID         string
	Name       string
	SecretHash string
	Role       Role
	CreatedAt  time.Time
}

// TokenRequest contains client credentials supplied by callers.
type TokenRequest struct {
	ClientID string `json:"client_id"`
	Secret   string `json:"secret"`
}
