package verification

import (
	"context"
	"time"
)

// Await blocks until the ledger holds a result for (callID, participantID), the
// deadline passes, or ctx ends. It never holds a lock while waiting.
//
// The subscription is opened before the first lookup, so a result published at any
// point after entry is observed: either by that lookup or by the wake-up. Poll ticks
// cover notifications lost across processes. The deadline timer starts at entry.
func Await(ctx context.Context, ledger Ledger, notifier Notifier, callID int64, participantID string, deadline, poll time.Duration) (Result, error) {
	timer := time.NewTimer(deadline)
	defer timer.Stop()

	var wakeups <-chan struct{}
	if notifier != nil {
		sub, err := notifier.Subscribe(ctx, ResultKey(callID, participantID))
		if err == nil {
			defer sub.Close()
			wakeups = sub.C()
		}
		// Without a subscription the poll keeps the wait correct.
	}

	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	for {
		r, ok, err := ledger.Lookup(ctx, callID, participantID)
		if err != nil {
			return Result{}, err
		}
		if ok {
			return r, nil
		}

		select {
		case <-ctx.Done():
			return Result{}, ctx.Err()
		case <-timer.C:
			if r, ok, err := ledger.Lookup(ctx, callID, participantID); err == nil && ok {
				return r, nil
			}
			return Result{}, ErrVerificationTimeout
		case <-wakeups:
		case <-ticker.C:
		}
	}
}
