package infra

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// schemaDDL creates the tables the adjudication service persists to.
// Kept as a single idempotent script so integration tests can apply it
// against a fresh container or a reused database.
const schemaDDL = `
CREATE EXTENSION IF NOT EXISTS pgcrypto;

CREATE TABLE IF NOT EXISTS ledger_entries (
	id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
	order_id TEXT NOT NULL,
	financial_impact NUMERIC(12,2) NOT NULL DEFAULT 0,
	entry_date DATE NOT NULL,
	justification_excerpt TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE UNIQUE INDEX IF NOT EXISTS ledger_entries_order_id_key ON ledger_entries (order_id);

CREATE TABLE IF NOT EXISTS api_clients (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	secret_hash TEXT NOT NULL,
	role TEXT NOT NULL DEFAULT 'automation',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

// ApplySchema creates the service tables on the given pool.
func ApplySchema(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schemaDDL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// StartMigratedPostgres starts (or reuses) a Postgres, applies the
// service schema, and returns a ready pool. The returned teardown
// closes the pool and terminates the container.
func StartMigratedPostgres(ctx context.Context) (*pgxpool.Pool, func(), error) {
	pgC, dsn, err := StartPostgres16(ctx, "")
	if err != nil {
		return nil, nil, err
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		_ = pgC.Terminate(ctx)
		return nil, nil, fmt.Errorf("connect pool: %w", err)
	}

	if err := ApplySchema(ctx, pool); err != nil {
		pool.Close()
		_ = pgC.Terminate(ctx)
		return nil, nil, err
	}

	teardown := func() {
		pool.Close()
		_ = pgC.Terminate(context.Background())
	}
	return pool, teardown, nil
}
