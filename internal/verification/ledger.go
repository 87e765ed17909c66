package verification

import (
	"context"
	"sync"
)

// Ledger is the exchange medium between the two legs of a call.
// Lookup must be a pure read so it can be used as a polling primitive.
type Ledger interface {
	// Publish stores r keyed by (CallID, ParticipantID) and reports whether it was applied.
	// A stored row with a newer Attempt wins.
	Publish(ctx context.Context, r Result) (bool, error)
	Lookup(ctx context.Context, callID int64, participantID string) (Result, bool, error)
}

type ledgerKey struct {
	callID        int64
	participantID string
}

// MemoryLedger is a process-local Ledger.
type MemoryLedger struct {
	mu   sync.RWMutex
	rows map[ledgerKey]Result
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{rows: map[ledgerKey]Result{}}
}

func (l *MemoryLedger) Publish(ctx context.Context, r Result) (bool, error) {
	k := ledgerKey{r.CallID, r.ParticipantID}
	l.mu.Lock()
	defer l.mu.Unlock()
	if prev, ok := l.rows[k]; ok && prev.Attempt > r.Attempt {
		return false, nil
	}
	if r.Speaker != nil {
		sp := *r.Speaker
		r.Speaker = &sp
	}
	l.rows[k] = r
	return true, nil
}

func (l *MemoryLedger) Lookup(ctx context.Context, callID int64, participantID string) (Result, bool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	r, ok := l.rows[ledgerKey{callID, participantID}]
	return r, ok, nil
}
