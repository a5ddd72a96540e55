package engine

import "time"

// Action is the final disposition of a refund claim.
type Action string

const (
	ActionUpholdMerchant       Action = "UPHOLD_MERCHANT"
	ActionAcceptCustomerClaim  Action = "ACCEPT_CUSTOMER_CLAIM"
	ActionEscalate             Action = "ESCALATE"
	ActionRejectedInvalidInput Action = "REJECTED_INVALID_INPUT"
)

// Disposition is the engine's single output per claim.
type Disposition struct {
	ID              string            `json:"disposition_id"`
	OrderID         string            `json:"order_id"`
	Action          Action            `json:"action"`
	Confidence      float64           `json:"confidence"`
	Justification   string            `json:"justification"`
	EvidenceTrace   map[string]string `json:"evidence_trace"`
	FinancialImpact float64           `json:"financial_impact"`
	DecidedAt       time.Time         `json:"decided_at"`
}

// EffectKind identifies a post-decision side effect.
type EffectKind string

const (
	// EffectNotifyReviewer asks a human reviewer to approve the upheld
	// contest before it is sent to the platform.
	EffectNotifyReviewer EffectKind = "notify_reviewer"
	// EffectAppendLedger records the upheld contest in the audit ledger.
	EffectAppendLedger EffectKind = "append_ledger"
)

// Effect is a side effect the caller should perform after the decision.
// The engine itself never executes effects; it only declares them, so
// callers can run and retry them independently of the pure decision.
type Effect struct {
	Kind EffectKind `json:"kind"`
}
