// Package sink executes the side effects declared by the engine for an
// upheld contest: reviewer notification and the audit-ledger append.
// Sink failures are logged and never alter the already-computed
// disposition.
package sink

import (
	"context"
	"log"
	"time"

	"refundflow/engine"
	"refundflow/ledger"
)

// ReviewRequest is the payload handed to the reviewer notification
// collaborator.
type ReviewRequest struct {
	OrderID         string
	FinancialImpact float64
	Action          engine.Action
	Confidence      float64
	Justification   string
}

// NotifyResult reports whether the notification went out. Sent=false
// without an error means the collaborator deliberately skipped (e.g.
// not configured).
type NotifyResult struct {
	Sent   bool
	Detail string
}

// ReviewerNotifier notifies a human reviewer of an upheld contest.
type ReviewerNotifier interface {
	NotifyReviewer(ctx context.Context, req ReviewRequest) (NotifyResult, error)
}

// LedgerAppender appends an audit row for an upheld contest.
type LedgerAppender interface {
	Append(ctx context.Context, params ledger.AppendParams) (bool, error)
}

// Runner performs engine effects in order. Either collaborator may be
// nil, in which case its effect is skipped with a log line.
type Runner struct {
	notifier ReviewerNotifier
	ledger   LedgerAppender
	now      func() time.Time
	logf     func(format string, args ...any)
}

func NewRunner(notifier ReviewerNotifier, appender LedgerAppender) *Runner {
	return &Runner{
		notifier: notifier,
		ledger:   appender,
		now:      time.Now,
		logf:     log.Printf,
	}
}

func (r *Runner) WithClock(now func() time.Time) *Runner {
	r.now = now
	return r
}

func (r *Runner) WithLogf(logf func(format string, args ...any)) *Runner {
	r.logf = logf
	return r
}

// Run executes the declared effects. It never fails: every sink error is
// logged and swallowed so the disposition the caller already holds
// stays authoritative.
func (r *Runner) Run(ctx context.Context, d engine.Disposition, effects []engine.Effect) {
	for _, effect := range effects {
		switch effect.Kind {
		case engine.EffectNotifyReviewer:
			r.runNotify(ctx, d)
		case engine.EffectAppendLedger:
			r.runAppend(ctx, d)
		default:
			r.logf("sink: unknown effect %q for order %s", effect.Kind, d.OrderID)
		}
	}
}

func (r *Runner) runNotify(ctx context.Context, d engine.Disposition) {
	if r.notifier == nil {
		r.logf("sink: no reviewer notifier configured, skipping order %s", d.OrderID)
		return
	}

	res, err := r.notifier.NotifyReviewer(ctx, ReviewRequest{
		OrderID:         d.OrderID,
		FinancialImpact: d.FinancialImpact,
		Action:          d.Action,
		Confidence:      d.Confidence,
		Justification:   d.Justification,
	})
	if err != nil {
		r.logf("sink: notify reviewer for order %s: %v", d.OrderID, err)
		return
	}
	if !res.Sent {
		r.logf("sink: reviewer notification skipped for order %s: %s", d.OrderID, res.Detail)
	}
}

func (r *Runner) runAppend(ctx context.Context, d engine.Disposition) {
	if r.ledger == nil {
		r.logf("sink: no ledger configured, skipping order %s", d.OrderID)
		return
	}

	inserted, err := r.ledger.Append(ctx, ledger.AppendParams{
		OrderID:         d.OrderID,
		FinancialImpact: d.FinancialImpact,
		EntryDate:       r.now().UTC().Truncate(24 * time.Hour),
		Justification:   d.Justification,
	})
	if err != nil {
		r.logf("sink: append ledger for order %s: %v", d.OrderID, err)
		return
	}
	if !inserted {
		r.logf("sink: order %s already in ledger, append skipped", d.OrderID)
	}
}
