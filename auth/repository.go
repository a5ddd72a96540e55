package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrClientNotFound signals that the API client does not exist.
	ErrClientNotFound = errors.New("auth: client not found")
	// ErrDuplicateClient signals that the client id is already taken.
	ErrDuplicateClient = errors.New("auth: client id already exists")
)

// Repository handles data access for API clients.
type Repository interface {
	CreateClient(ctx context.Context, params CreateClientParams) (Client, error)
	GetClientByID(ctx context.Context, clientID string) (Client, error)
}

// CreateClientParams contains write parameters for registering clients.
type CreateClientParams struct {
	ID         string
	Name       string
	SecretHash string
	Role       Role
}

// PGRepository implements Repository backed by PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a PostgreSQL-backed client repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// CreateClient registers a new API client with a hashed secret.
func (r *PGRepository) CreateClient(ctx context.Context, params CreateClientParams) (Client, error) {
	const insertSQL = `
		INSERT INTO api_clients (id, name, secret_hash, role)
		VALUES ($1, $2, $3, $4)
		RETURNING id, name, secret_hash, role, created_at
	`

	client, err := scanClient(r.pool.QueryRow(ctx, insertSQL, params.ID, params.Name, params.SecretHash, params.Role))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Client{}, ErrDuplicateClient
		}
		return Client{}, fmt.Errorf("auth: create client: %w", err)
	}
	return client, nil
}

// GetClientByID retrieves an API client.
func (r *PGRepository) GetClientByID(ctx context.Context, clientID string) (Client, error) {
	const selectSQL = `
		SELECT id, name, secret_hash, role, created_at
		FROM api_clients
		WHERE id = $1
	`

	client, err := scanClient(r.pool.QueryRow(ctx, selectSQL, clientID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Client{}, ErrClientNotFound
		}
		return Client{}, fmt.Errorf("auth: get client: %w", err)
	}
	return client, nil
}

func scanClient(row pgx.Row) (Client, error) {
	var c Client
	err := row.Scan(&c.ID, &c.Name, &c.SecretHash, &c.Role, &c.CreatedAt)
	return c, err
}
