// Package ledger persists the append-only audit record of upheld
// contests. Appends are idempotent per order: the original sheet-based
// ledger accumulated duplicate rows on resubmission, so the table
// carries a unique index on order_id instead.
package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrNotFound signals that no ledger entry exists for the order.
	ErrNotFound = errors.New("ledger: entry not found")
)

// Repository handles data access for the audit ledger.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a PostgreSQL-backed ledger repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Append records an upheld contest. It reports false without error when
// the order is already in the ledger.
func (r *Repository) Append(ctx context.Context, params AppendParams) (bool, error) {
	if params.OrderID == "" {
		return false, fmt.Errorf("ledger: missing order id")
	}

	const insertSQL = `
		INSERT INTO ledger_entries (order_id, financial_impact, entry_date, justification_excerpt)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (order_id) DO NOTHING
	`

	tag, err := r.pool.Exec(ctx, insertSQL,
		params.OrderID,
		params.FinancialImpact,
		params.EntryDate,
		truncate(params.Justification, ExcerptLimit),
	)
	if err != nil {
		return false, fmt.Errorf("ledger: append: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// GetByOrderID retrieves the ledger entry for an order.
func (r *Repository) GetByOrderID(ctx context.Context, orderID string) (Entry, error) {
	const selectSQL = `
		SELECT id, order_id, financial_impact, entry_date, justification_excerpt, created_at
		FROM ledger_entries
		WHERE order_id = $1
	`

	var e Entry
	err := r.pool.QueryRow(ctx, selectSQL, orderID).
		Scan(&e.ID, &e.OrderID, &e.FinancialImpact, &e.EntryDate, &e.JustificationExcerpt, &e.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Entry{}, ErrNotFound
		}
		return Entry{}, fmt.Errorf("ledger: get by order id: %w", err)
	}
	return e, nil
}

// List returns the most recent entries, newest first.
func (r *Repository) List(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}

	const listSQL = `
		SELECT id, order_id, financial_impact, entry_date, justification_excerpt, created_at
		FROM ledger_entries
		ORDER BY created_at DESC
		LIMIT $1
	`

	rows, err := r.pool.Query(ctx, listSQL, limit)
	if err != nil {
		return nil, fmt.Errorf("ledger: list: %w", err)
	}
	defer rows.Close()

	out := make([]Entry, 0, 8)
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.OrderID, &e.FinancialImpact, &e.EntryDate, &e.JustificationExcerpt, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("ledger: scan: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ledger: iterate: %w", err)
	}
	return out, nil
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
