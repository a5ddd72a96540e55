package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

var (
	// ErrInvalidCredentials signals wrong client id or secret.
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
	// ErrWeakSecret signals the secret doesn't meet requirements.
	ErrWeakSecret = errors.New("auth: secret must be at least 16 characters")
)

// Service handles API authentication business logic.
type Service struct {
	repo      Repository
	jwtSecret []byte
	now       func() time.Time
}

// NewService creates a new authentication service.
func NewService(repo Repository, jwtSecret string) *Service {
	return &Service{
		repo:      repo,
		jwtSecret: []byte(jwtSecret),
		now:       time.Now,
	}
}

func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// RegisterClient creates a new API client account.
func (s *Service) RegisterClient(ctx context.Context, id, name, secret string, role Role) (Client, error) {
	if len(secret) < 16 {
		return Client{}, ErrWeakSecret
	}
	if id == "" || name == "" {
		return Client{}, fmt.Errorf("auth: id and name are required")
	}
	if !isValidRole(role) {
		return Client{}, fmt.Errorf("auth: invalid role %q", role)
	}

	secretHash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return Client{}, fmt.Errorf("auth: hash secret: %w", err)
	}

	return s.repo.CreateClient(ctx, CreateClientParams{
		ID:         id,
		Name:       name,
		SecretHash: string(secretHash),
		Role:       role,
	})
}

// IssueToken authenticates a client and returns a JWT token.
func (s *Service) IssueToken(ctx context.Context, req TokenRequest) (string, error) {
	client, err := s.repo.GetClientByID(ctx, req.ClientID)
	if err != nil {
		if errors.Is(err, ErrClientNotFound) {
			return "", ErrInvalidCredentials
		}
		return "", err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(client.SecretHash), []byte(req.Secret)); err != nil {
		return "", ErrInvalidCredentials
	}

	claims := jwt.MapClaims{
		"client_id": client.ID,
		"role":      client.Role,
		"exp":       s.now().Add(24 * time.Hour).Unix(),
		"iat":       s.now().Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("auth: sign token: %w", err)
	}
	return signed, nil
}

// VerifyToken validates a JWT token and returns the client id and role.
func (s *Service) VerifyToken(tokenString string) (string, Role, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		return "", "", fmt.Errorf("auth: parse token: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return "", "", fmt.Errorf("auth: invalid token")
	}

	clientID, ok := claims["client_id"].(string)
	if !ok {
		return "", "", fmt.Errorf("auth: invalid client_id in token")
	}
	roleStr, ok := claims["role"].(string)
	if !ok {
		return "", "", fmt.Errorf("auth: invalid role in token")
	}
	role := Role(roleStr)
	if !isValidRole(role) {
		return "", "", fmt.Errorf("auth: invalid role %q in token", roleStr)
	}
	return clientID, role, nil
}

func isValidRole(role Role) bool {
	switch role {
	case RoleAutomation, RoleReviewer, RoleAdmin:
		return true
	default:
		return false
	}
}
