// Package engine implements the refund adjudication state machine: an
// ordered rule chain over a validated claim record that produces exactly
// one disposition plus the side effects the caller should perform.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"refundflow/capability"
	"refundflow/claim"
)

// escalatedJustification is the fixed placeholder used whenever the
// decision is deferred to a human reviewer.
const escalatedJustification = "Requires human review."

// Engine decides refund dispositions. It holds no mutable state between
// invocations; independent claims are safe to adjudicate concurrently.
type Engine struct {
	images   capability.ImageAdjudicator
	chats    capability.ChatAnalyzer
	policies capability.PolicyRetriever
	composer capability.Composer

	rules       []rule
	idGenerator func() string
	now         func() time.Time
}

// New constructs an engine with the given capabilities. All four are
// required; tests substitute deterministic stubs.
func New(images capability.ImageAdjudicator, chats capability.ChatAnalyzer, policies capability.PolicyRetriever, composer capability.Composer) *Engine {
	return &Engine{
		images:      images,
		chats:       chats,
		policies:    policies,
		composer:    composer,
		rules:       defaultRules(),
		idGenerator: func() string { return uuid.NewString() },
		now:         time.Now,
	}
}

func (e *Engine) WithIDGenerator(gen func() string) *Engine {
	e.idGenerator = gen
	return e
}

func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// Process validates a raw claim payload and adjudicates it. A validation
// failure yields a REJECTED_INVALID_INPUT disposition along with the
// *claim.ValidationError; no rule runs in that case.
func (e *Engine) Process(ctx context.Context, raw []byte) (Disposition, []Effect, error) {
	rec, err := claim.Validate(raw)
	if err != nil {
		d := Disposition{
			ID:            e.idGenerator(),
			Action:        ActionRejectedInvalidInput,
			Justification: err.Error(),
			EvidenceTrace: map[string]string{},
			DecidedAt:     e.now().UTC(),
		}
		var ve *claim.ValidationError
		if errors.As(err, &ve) {
			d.EvidenceTrace["validation_error"] = ve.Field
		}
		return d, nil, err
	}

	d, effects := e.Decide(ctx, rec)
	return d, effects, nil
}

// Decide runs the rule chain over a validated record. It never fails:
// capability errors degrade to escalation, so the caller always gets a
// well-formed disposition.
func (e *Engine) Decide(ctx context.Context, rec claim.Record) (Disposition, []Effect) {
	for _, r := range e.rules {
		if !r.applies(rec) {
			continue
		}

		out, err := r.evaluate(ctx, e, rec)
		if err != nil {
			return e.capabilityFailure(rec, r.name, err), nil
		}

		if out.action == ActionEscalate {
			return e.finalize(rec, r.name, out), nil
		}
		return e.resolve(ctx, rec, r.name, out)
	}

	// The chain covers both arrival-data cases, so exhaustion means a
	// rule precondition regressed. Escalate rather than guess.
	return e.finalize(rec, "exhausted", escalatedOutcome("no rule matched", nil)), nil
}

// resolve completes a non-escalated outcome: retrieve the policy text
// for the matched rule, compose the justification, and declare the
// notify/ledger effects for upheld contests.
func (e *Engine) resolve(ctx context.Context, rec claim.Record, ruleName string, out outcome) (Disposition, []Effect) {
	policyText, err := e.policies.RetrievePolicy(ctx, out.policyQuery)
	if err != nil {
		return e.capabilityFailure(rec, ruleName, err), nil
	}

	justification, err := e.composer.Compose(ctx, capability.ComposeRequest{
		Situation:     out.situation,
		Evidence:      out.evidence,
		PolicyText:    policyText,
		OrderID:       rec.OrderID,
		CustomerClaim: string(rec.ReasonCode),
	})
	if err != nil {
		return e.capabilityFailure(rec, ruleName, err), nil
	}

	out.justification = justification
	d := e.finalize(rec, ruleName, out)

	var effects []Effect
	if d.Action == ActionUpholdMerchant {
		effects = []Effect{{Kind: EffectNotifyReviewer}, {Kind: EffectAppendLedger}}
	}
	return d, effects
}

func (e *Engine) finalize(rec claim.Record, ruleName string, out outcome) Disposition {
	trace := out.trace
	if trace == nil {
		trace = map[string]string{}
	}
	trace["rule"] = ruleName

	return Disposition{
		ID:              e.idGenerator(),
		OrderID:         rec.OrderID,
		Action:          out.action,
		Confidence:      out.confidence,
		Justification:   out.justification,
		EvidenceTrace:   trace,
		FinancialImpact: rec.FinancialImpact,
		DecidedAt:       e.now().UTC(),
	}
}

// capabilityFailure converts a capability error into an escalated
// disposition. A downstream failure never surfaces as a hard failure of
// the whole request.
func (e *Engine) capabilityFailure(rec claim.Record, ruleName string, err error) Disposition {
	return e.finalize(rec, ruleName, outcome{
		action:        ActionEscalate,
		justification: fmt.Sprintf("%s Capability call failed: %v", escalatedJustification, err),
		trace:         map[string]string{"escalate_reason": "capability_error"},
	})
}
