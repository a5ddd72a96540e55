package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"refundflow/capability"
	"refundflow/claim"
)

// arrivalTolerance is the grace period past the promised deadline before
// a delay counts against the merchant.
const arrivalTolerance = 15 * time.Minute

// outcome is what a rule produces when its precondition matched. For
// resolved outcomes, policyQuery/situation/evidence feed the policy
// retrieval and composition steps; escalations carry the justification
// directly and skip both.
type outcome struct {
	action        Action
	confidence    float64
	policyQuery   string
	situation     string
	evidence      string
	justification string
	trace         map[string]string
}

// rule is one step of the decision chain. Rules are evaluated in slice
// order and the first one whose precondition holds decides the claim.
type rule struct {
	name     string
	applies  func(rec claim.Record) bool
	evaluate func(ctx context.Context, e *Engine, rec claim.Record) (outcome, error)
}

// defaultRules returns the decision chain in strict priority order: the
// PIN is the strongest signal and dominates everything; photographic and
// timing evidence outrank chat inference; chat inference is the weakest
// signal and runs last before escalation.
func defaultRules() []rule {
	return []rule{
		{name: "pin", applies: pinApplies, evaluate: evaluatePin},
		{name: "quality_imagery", applies: qualityImageryApplies, evaluate: evaluateQualityImagery},
		{name: "arrival_timing", applies: arrivalTimingApplies, evaluate: evaluateArrivalTiming},
		{name: "chat_context", applies: chatContextApplies, evaluate: evaluateChatContext},
		{name: "no_arrival_data", applies: noArrivalDataApplies, evaluate: evaluateNoArrivalData},
	}
}

func pinApplies(rec claim.Record) bool { return rec.PinValidated }

func evaluatePin(_ context.Context, _ *Engine, rec claim.Record) (outcome, error) {
	validatedAt := "unknown"
	if rec.PinValidatedAt != nil {
		validatedAt = rec.PinValidatedAt.Format(time.RFC3339)
	}
	return outcome{
		action:      ActionUpholdMerchant,
		confidence:  1.0,
		policyQuery: "rule on the delivery PIN as proof of receipt",
		situation:   "The customer's claim is unfounded: the order was received and confirmed by the account holder.",
		evidence:    fmt.Sprintf("Delivery PIN validated successfully at %s.", validatedAt),
		trace:       map[string]string{"pin_validated_at": validatedAt},
	}, nil
}

func qualityImageryApplies(rec claim.Record) bool {
	return rec.ReasonCode == claim.ReasonQualityIssue && rec.PhotoEvidence != ""
}

func evaluateQualityImagery(ctx context.Context, e *Engine, rec claim.Record) (outcome, error) {
	analysis, err := e.images.AnalyzeImage(ctx, capability.ImageRequest{
		PhotoRef:        rec.PhotoEvidence,
		ClaimType:       string(rec.ReasonCode),
		OrderID:         rec.OrderID,
		FinancialImpact: rec.FinancialImpact,
	})
	if err != nil {
		return outcome{}, err
	}

	trace := map[string]string{
		"image_verdict":    string(analysis.Verdict),
		"image_confidence": fmt.Sprintf("%.2f", analysis.Confidence),
	}
	if len(analysis.RedFlags) > 0 {
		trace["image_red_flags"] = strings.Join(analysis.RedFlags, ", ")
	}

	switch analysis.Verdict {
	case capability.VerdictDeny:
		return outcome{
			action:      ActionUpholdMerchant,
			confidence:  analysis.Confidence,
			policyQuery: "rule on quality complaints without verified photographic evidence",
			situation:   fmt.Sprintf("The customer's claim was denied. Image analysis: %s", analysis.Reasoning),
			evidence:    fmt.Sprintf("Analysis confidence %.0f%%. Red flags: %s.", analysis.Confidence*100, strings.Join(analysis.RedFlags, ", ")),
			trace:       trace,
		}, nil
	case capability.VerdictUphold:
		return outcome{
			action:      ActionAcceptCustomerClaim,
			confidence:  analysis.Confidence,
			policyQuery: "rule on visually confirmed quality defects",
			situation:   "The customer's claim was accepted. The quality problem was confirmed visually.",
			evidence:    fmt.Sprintf("Image analysis: %s", analysis.Reasoning),
			trace:       trace,
		}, nil
	default:
		trace["escalate_reason"] = "inconclusive image analysis"
		return outcome{
			action:        ActionEscalate,
			justification: fmt.Sprintf("%s Image analysis inconclusive: %s", escalatedJustification, analysis.Reasoning),
			trace:         trace,
		}, nil
	}
}

func arrivalTimingApplies(rec claim.Record) bool {
	if rec.ActualArrivalAt == nil {
		return false
	}
	return rec.ActualArrivalAt.After(rec.ETAMax.Add(arrivalTolerance))
}

func evaluateArrivalTiming(_ context.Context, _ *Engine, rec claim.Record) (outcome, error) {
	limit := rec.ETAMax.Add(arrivalTolerance)
	arrival := rec.ActualArrivalAt.Format(time.RFC3339)
	return outcome{
		action:      ActionAcceptCustomerClaim,
		confidence:  1.0,
		policyQuery: "rule on cancellation for deliveries beyond the late-arrival tolerance",
		situation:   "The customer's claim was accepted. The logistics delay exceeded the 15 minute tolerance.",
		evidence:    fmt.Sprintf("Delivery arrived at %s, past the tolerance limit of %s.", arrival, limit.Format(time.RFC3339)),
		trace: map[string]string{
			"actual_arrival_at": arrival,
			"tolerance_limit":   limit.Format(time.RFC3339),
		},
	}, nil
}

// chatContextApplies holds when the delivery arrived on time without a
// PIN: the transcript is the only signal left.
func chatContextApplies(rec claim.Record) bool { return rec.ActualArrivalAt != nil }

func evaluateChatContext(ctx context.Context, e *Engine, rec claim.Record) (outcome, error) {
	analysis, err := e.chats.AnalyzeChat(ctx, capability.ChatRequest{
		Messages:   rec.ChatHistory,
		OrderID:    rec.OrderID,
		ReasonCode: rec.ReasonCode,
	})
	if err != nil {
		return outcome{}, err
	}

	switch {
	case analysis.CustomerAbsent.Likely:
		evidence := analysis.CustomerAbsent.Evidence
		if evidence == "" {
			evidence = "customer did not respond"
		}
		return outcome{
			action:      ActionUpholdMerchant,
			confidence:  1.0,
			policyQuery: "rule on responsibility when the customer does not answer the courier",
			situation:   "The customer's claim was denied. The customer was absent at the time of delivery.",
			evidence:    fmt.Sprintf("Chat analysis: %s. Contact attempts: %d.", evidence, analysis.ContactAttempts),
			trace: map[string]string{
				"customer_absent":  evidence,
				"contact_attempts": fmt.Sprintf("%d", analysis.ContactAttempts),
			},
		}, nil
	case analysis.InformalAgreement.Exists && rec.ReasonCode == claim.ReasonItemNotReceived:
		return outcome{
			action:      ActionUpholdMerchant,
			confidence:  1.0,
			policyQuery: "rule on deliveries agreed to an alternate drop-off location",
			situation:   "The customer's claim was denied. The claim contradicts an informal delivery agreement made in chat.",
			evidence:    fmt.Sprintf("Agreement detected: %s", analysis.InformalAgreement.Details),
			trace:       map[string]string{"informal_agreement": analysis.InformalAgreement.Details},
		}, nil
	case analysis.InformalAgreement.Exists:
		return escalatedOutcome("informal agreement needs human interpretation", map[string]string{
			"informal_agreement": analysis.InformalAgreement.Details,
		}), nil
	default:
		return escalatedOutcome("inconclusive chat analysis", nil), nil
	}
}

func noArrivalDataApplies(rec claim.Record) bool { return rec.ActualArrivalAt == nil }

func evaluateNoArrivalData(_ context.Context, _ *Engine, _ claim.Record) (outcome, error) {
	return escalatedOutcome("incomplete delivery timestamps", nil), nil
}

func escalatedOutcome(reason string, trace map[string]string) outcome {
	if trace == nil {
		trace = map[string]string{}
	}
	trace["escalate_reason"] = reason
	return outcome{
		action:        ActionEscalate,
		justification: fmt.Sprintf("%s %s.", escalatedJustification, capitalize(reason)),
		trace:         trace,
	}
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
