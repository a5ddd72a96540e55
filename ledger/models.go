package ledger

import "time"

// ExcerptLimit caps the stored justification so one runaway composition
// cannot bloat the audit trail.
const ExcerptLimit = 500

// Entry mirrors the ledger_entries table: one row per upheld contest.
type Entry struct {
	ID                   string
	OrderID              string
	FinancialImpact      float64
	EntryDate            time.Time
	JustificationExcerpt string
	CreatedAt            time.Time
}

// AppendParams contains write parameters for recording an upheld
// contest. Justification longer than ExcerptLimit is truncated.
type AppendParams struct {
	OrderID         string
	FinancialImpact float64
	EntryDate       time.Time
	Justification   string
}
