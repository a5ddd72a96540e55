// Package worker fans a batch of claim payloads across a bounded number
// of adjudication slots. The engine itself is strictly sequential per
// claim; batching concurrency lives here, at the caller's side.
package worker

import (
	"context"

	"golang.org/x/sync/errgroup"

	"refundflow/engine"
)

// Result pairs one payload's disposition with its position in the
// batch. Err is non-nil only for validation failures; decision-time
// capability errors are already folded into the disposition.
type Result struct {
	Index       int
	Disposition engine.Disposition
	Effects     []engine.Effect
	Err         error
}

// ProcessBatch adjudicates every payload with at most concurrency
// in-flight claims and returns results in input order.
func ProcessBatch(ctx context.Context, eng *engine.Engine, payloads [][]byte, concurrency int) []Result {
	if concurrency <= 0 {
		concurrency = 1
	}

	results := make([]Result, len(payloads))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for i, raw := range payloads {
		g.Go(func() error {
			d, effects, err := eng.Process(ctx, raw)
			results[i] = Result{Index: i, Disposition: d, Effects: effects, Err: err}
			return nil
		})
	}

	// Workers never return errors; Wait is just the join point.
	_ = g.Wait()
	return results
}
