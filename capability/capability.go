// Package capability defines the contracts for the external analysis
// capabilities the adjudication engine consults. Implementations may be
// model-backed, rule-based, or stubbed; the engine only depends on these
// interfaces.
package capability

import (
	"context"

	"refundflow/claim"
)

// Verdict is the image adjudicator's conclusion about a photo claim.
type Verdict string

const (
	// VerdictUphold means the photo supports the customer's claim.
	VerdictUphold Verdict = "uphold"
	// VerdictDeny means the photo contradicts the customer's claim.
	VerdictDeny Verdict = "deny"
	// VerdictEscalate means the analysis was inconclusive and a human
	// must review the evidence.
	VerdictEscalate Verdict = "escalate"
)

// ImageRequest carries the photo reference plus order context for a
// quality-issue analysis.
type ImageRequest struct {
	PhotoRef        string
	ClaimType       string
	OrderID         string
	FinancialImpact float64
}

// ImageAnalysis is the adjudicator's structured finding.
type ImageAnalysis struct {
	Verdict    Verdict  `json:"verdict"`
	Confidence float64  `json:"confidence"`
	Reasoning  string   `json:"reasoning"`
	RedFlags   []string `json:"red_flags"`
}

// ImageAdjudicator scores photographic evidence against a claim.
type ImageAdjudicator interface {
	AnalyzeImage(ctx context.Context, req ImageRequest) (ImageAnalysis, error)
}

// ChatRequest carries the transcript plus order context.
type ChatRequest struct {
	Messages   []claim.ChatMessage
	OrderID    string
	ReasonCode claim.ReasonCode
}

// AbsenceSignal reports whether the customer ignored contact attempts.
type AbsenceSignal struct {
	Likely   bool   `json:"likely"`
	Evidence string `json:"evidence"`
}

// AgreementSignal reports an informal delivery agreement found in chat,
// e.g. "leave it with the doorman".
type AgreementSignal struct {
	Exists  bool   `json:"exists"`
	Details string `json:"details"`
}

// ChatAnalysis is the analyzer's structured reading of the transcript.
type ChatAnalysis struct {
	CustomerAbsent    AbsenceSignal   `json:"customer_absent"`
	InformalAgreement AgreementSignal `json:"informal_agreement"`
	ContactAttempts   int             `json:"contact_attempts"`
	Sentiment         string          `json:"sentiment"`
	Findings          []string        `json:"findings"`
	RedFlags          []string        `json:"red_flags"`
}

// ChatAnalyzer extracts structured findings from a message transcript.
type ChatAnalyzer interface {
	AnalyzeChat(ctx context.Context, req ChatRequest) (ChatAnalysis, error)
}

// PolicyRetriever returns the official policy text relevant to a query.
type PolicyRetriever interface {
	RetrievePolicy(ctx context.Context, query string) (string, error)
}

// ComposeRequest bundles everything the composer needs to write the
// justification sent to the merchant.
type ComposeRequest struct {
	Situation     string
	Evidence      string
	PolicyText    string
	OrderID       string
	CustomerClaim string
}

// Composer turns situation, evidence and policy text into prose.
type Composer interface {
	Compose(ctx context.Context, req ComposeRequest) (string, error)
}
