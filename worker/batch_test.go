package worker

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"refundflow/capability"
	"refundflow/claim"
	"refundflow/engine"
)

type stubImages struct{}

func (stubImages) AnalyzeImage(context.Context, capability.ImageRequest) (capability.ImageAnalysis, error) {
	return capability.ImageAnalysis{Verdict: capability.VerdictDeny, Confidence: 0.9}, nil
}

type stubChats struct{}

func (stubChats) AnalyzeChat(context.Context, capability.ChatRequest) (capability.ChatAnalysis, error) {
	return capability.ChatAnalysis{}, nil
}

type stubPolicies struct{}

func (stubPolicies) RetrievePolicy(context.Context, string) (string, error) {
	return "policy text", nil
}

type stubComposer struct{}

func (stubComposer) Compose(context.Context, capability.ComposeRequest) (string, error) {
	return "justification", nil
}

func pinPayload(orderID string) []byte {
	return []byte(fmt.Sprintf(`{
		"order_id": %q,
		"reason_code": "other",
		"timestamps": {"eta_max": "2025-01-01T10:00:00Z"},
		"delivery_evidence": {"delivery_pin_validated": true, "pin_validated_at": "2025-01-01T09:55:00Z"}
	}`, orderID))
}

func TestProcessBatch_PreservesOrderUnderConcurrency(t *testing.T) {
	eng := engine.New(stubImages{}, stubChats{}, stubPolicies{}, stubComposer{})

	const n = 25
	payloads := make([][]byte, n)
	for i := range payloads {
		payloads[i] = pinPayload(fmt.Sprintf("ord-%03d", i))
	}

	results := ProcessBatch(context.Background(), eng, payloads, 5)

	if len(results) != n {
		t.Fatalf("expected %d results, got %d", n, len(results))
	}
	for i, res := range results {
		if res.Index != i {
			t.Fatalf("result %d carries index %d", i, res.Index)
		}
		if res.Err != nil {
			t.Fatalf("result %d: unexpected error %v", i, res.Err)
		}
		if res.Disposition.OrderID != fmt.Sprintf("ord-%03d", i) {
			t.Fatalf("result %d: order mismatch %q", i, res.Disposition.OrderID)
		}
		if res.Disposition.Action != engine.ActionUpholdMerchant {
			t.Fatalf("result %d: expected uphold, got %s", i, res.Disposition.Action)
		}
	}
}

func TestProcessBatch_MixedValidity(t *testing.T) {
	eng := engine.New(stubImages{}, stubChats{}, stubPolicies{}, stubComposer{})

	payloads := [][]byte{
		pinPayload("ord-ok"),
		[]byte(`{"reason_code": "other"}`),
	}

	results := ProcessBatch(context.Background(), eng, payloads, 2)

	if results[0].Err != nil {
		t.Fatalf("valid payload errored: %v", results[0].Err)
	}
	var ve *claim.ValidationError
	if !errors.As(results[1].Err, &ve) {
		t.Fatalf("expected ValidationError for malformed payload, got %v", results[1].Err)
	}
	if results[1].Disposition.Action != engine.ActionRejectedInvalidInput {
		t.Fatalf("expected REJECTED_INVALID_INPUT, got %s", results[1].Disposition.Action)
	}
}

func TestProcessBatch_ZeroConcurrencyDefaultsToSequential(t *testing.T) {
	eng := engine.New(stubImages{}, stubChats{}, stubPolicies{}, stubComposer{})

	results := ProcessBatch(context.Background(), eng, [][]byte{pinPayload("ord-1")}, 0)
	if len(results) != 1 || results[0].Disposition.OrderID != "ord-1" {
		t.Fatalf("unexpected results: %+v", results)
	}
}
