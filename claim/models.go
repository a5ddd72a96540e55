package claim

import "time"

// ReasonCode identifies why the customer asked for a refund. The set is
// open: the platform keeps adding codes, so only the ones with dedicated
// rule handling are enumerated here.
type ReasonCode string

const (
	ReasonItemNotReceived ReasonCode = "item-not-received"
	ReasonQualityIssue    ReasonCode = "quality-issue"
	ReasonLateDelivery    ReasonCode = "late-delivery"
	ReasonOther           ReasonCode = "other"
)

// ChatMessage is one entry of the courier/customer transcript.
type ChatMessage struct {
	Timestamp string `json:"timestamp"`
	Sender    string `json:"sender"`
	Text      string `json:"text"`
}

// Record is the validated, immutable form of an inbound refund claim.
// It is consumed exactly once to produce a disposition and should not
// include JSON annotations so it can be reused by different presentation
// layers.
type Record struct {
	OrderID         string
	ReasonCode      ReasonCode
	FinancialImpact float64
	ETAMax          time.Time
	ActualArrivalAt *time.Time
	PinValidated    bool
	PinValidatedAt  *time.Time
	GPSLogs         []map[string]any
	ChatHistory     []ChatMessage
	PhotoEvidence   string
}
