package claim

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// ValidationError names the payload field that failed validation.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("claim: invalid field %s: %s", e.Field, e.Reason)
}

// payloadSchema gates the overall payload shape before coercion. Unknown
// extra fields are deliberately allowed.
const payloadSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["order_id", "reason_code", "timestamps"],
  "properties": {
    "order_id": {"type": "string", "minLength": 1},
    "reason_code": {"type": "string", "minLength": 1},
    "financial_impact": {"type": "number"},
    "timestamps": {
      "type": "object",
      "required": ["eta_max"],
      "properties": {
        "eta_max": {"type": "string"},
        "actual_arrival_at": {"type": ["string", "null"]}
      }
    },
    "delivery_evidence": {
      "type": "object",
      "properties": {
        "gps_logs": {"type": "array", "items": {"type": "object"}},
        "delivery_pin_validated": {"type": "boolean"},
        "pin_validated_at": {"type": ["string", "null"]}
      }
    },
    "chat_history": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "timestamp": {"type": "string"},
          "sender": {"type": "string"},
          "text": {"type": "string"}
        }
      }
    },
    "photo_evidence_url": {"type": ["string", "null"]}
  }
}`

var compiledSchema = mustCompileSchema()

func mustCompileSchema() *jsonschema.Schema {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	const url = "https://refundflow.schemas.local/claim.schema.json"
	if err := c.AddResource(url, strings.NewReader(payloadSchema)); err != nil {
		panic(fmt.Sprintf("claim: load schema: %v", err))
	}
	return c.MustCompile(url)
}

// payload mirrors the inbound JSON document.
type payload struct {
	OrderID         string   `json:"order_id"`
	ReasonCode      string   `json:"reason_code"`
	FinancialImpact *float64 `json:"financial_impact"`
	Timestamps      struct {
		ETAMax          string `json:"eta_max"`
		ActualArrivalAt string `json:"actual_arrival_at"`
	} `json:"timestamps"`
	DeliveryEvidence struct {
		GPSLogs        []map[string]any `json:"gps_logs"`
		PinValidated   bool             `json:"delivery_pin_validated"`
		PinValidatedAt string           `json:"pin_validated_at"`
	} `json:"delivery_evidence"`
	ChatHistory   []ChatMessage `json:"chat_history"`
	PhotoEvidence string        `json:"photo_evidence_url"`
}

// reasonAliases maps legacy upper-snake reason codes still emitted by the
// ordering platform onto the canonical kebab-case codes.
var reasonAliases = map[string]ReasonCode{
	"ITEM_NOT_RECEIVED": ReasonItemNotReceived,
	"QUALITY_ISSUE":     ReasonQualityIssue,
	"LATE_DELIVERY":     ReasonLateDelivery,
	"OTHER":             ReasonOther,
}

// NormalizeReason canonicalizes a raw reason code. Unknown codes pass
// through lowercased with underscores folded to dashes; the rule chain
// only compares against the known codes.
func NormalizeReason(raw string) ReasonCode {
	if code, ok := reasonAliases[raw]; ok {
		return code
	}
	return ReasonCode(strings.ReplaceAll(strings.ToLower(raw), "_", "-"))
}

// Validate turns a raw claim payload into an immutable Record, or fails
// with a *ValidationError naming the offending field. It has no side
// effects and performs no capability calls.
func Validate(raw []byte) (Record, error) {
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return Record{}, &ValidationError{Field: "payload", Reason: "not valid JSON"}
	}
	if err := compiledSchema.Validate(doc); err != nil {
		return Record{}, &ValidationError{Field: schemaErrorField(err), Reason: "schema violation"}
	}

	var p payload
	if err := json.Unmarshal(raw, &p); err != nil {
		return Record{}, &ValidationError{Field: "payload", Reason: err.Error()}
	}

	rec := Record{
		OrderID:       p.OrderID,
		ReasonCode:    NormalizeReason(p.ReasonCode),
		GPSLogs:       p.DeliveryEvidence.GPSLogs,
		ChatHistory:   p.ChatHistory,
		PhotoEvidence: p.PhotoEvidence,
		PinValidated:  p.DeliveryEvidence.PinValidated,
	}

	if p.FinancialImpact != nil {
		if *p.FinancialImpact < 0 {
			return Record{}, &ValidationError{Field: "financial_impact", Reason: "must be non-negative"}
		}
		rec.FinancialImpact = *p.FinancialImpact
	}
	if rec.ChatHistory == nil {
		rec.ChatHistory = []ChatMessage{}
	}

	etaMax, err := time.Parse(time.RFC3339, p.Timestamps.ETAMax)
	if err != nil {
		return Record{}, &ValidationError{Field: "timestamps.eta_max", Reason: "not an ISO-8601 timestamp"}
	}
	rec.ETAMax = etaMax

	if p.Timestamps.ActualArrivalAt != "" {
		arrival, err := time.Parse(time.RFC3339, p.Timestamps.ActualArrivalAt)
		if err != nil {
			return Record{}, &ValidationError{Field: "timestamps.actual_arrival_at", Reason: "not an ISO-8601 timestamp"}
		}
		rec.ActualArrivalAt = &arrival
	}

	if p.DeliveryEvidence.PinValidatedAt != "" {
		pinAt, err := time.Parse(time.RFC3339, p.DeliveryEvidence.PinValidatedAt)
		if err != nil {
			return Record{}, &ValidationError{Field: "delivery_evidence.pin_validated_at", Reason: "not an ISO-8601 timestamp"}
		}
		rec.PinValidatedAt = &pinAt
	}

	// A validated PIN without its timestamp is an inconsistent evidence
	// record, not a softer signal.
	if rec.PinValidated && rec.PinValidatedAt == nil {
		return Record{}, &ValidationError{Field: "delivery_evidence.pin_validated_at", Reason: "required when delivery_pin_validated is true"}
	}

	return rec, nil
}

// schemaErrorField extracts the most specific failing field from a
// jsonschema validation error.
func schemaErrorField(err error) string {
	ve, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return "payload"
	}
	for len(ve.Causes) > 0 {
		ve = ve.Causes[0]
	}
	loc := strings.TrimPrefix(ve.InstanceLocation, "/")
	if loc == "" {
		return "payload"
	}
	return strings.ReplaceAll(loc, "/", ".")
}
