package calls

import (
	"context"
	"sync"
	"time"
)

// MemoryRepo is an in-memory Repository for tests and STORE_DRIVER=memory.
// A single mutex serializes every select-then-update, which gives the same
// atomicity as the Postgres row locks.
type MemoryRepo struct {
	mu     sync.Mutex
	nextID int64
	calls  []Call
}

func NewMemoryRepo() *MemoryRepo { return &MemoryRepo{} }

func (r *MemoryRepo) Insert(ctx context.Context, c Call) (Call, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	c.ID = r.nextID
	r.calls = append(r.calls, c)
	return c, nil
}

func (r *MemoryRepo) UpdateLatestCalling(ctx context.Context, phone string, status Status, now time.Time) (Call, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	i := r.latestCallingLocked(func(c Call) bool { return c.HasParty(phone) })
	if i < 0 {
		return Call{}, false, nil
	}
	r.calls[i].Status = status
	r.calls[i].UpdatedAt = now
	return r.calls[i], true, nil
}

func (r *MemoryRepo) UpdateCallingBySession(ctx context.Context, sessionID, phone string, status Status, now time.Time) (Call, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	i := r.latestCallingLocked(func(c Call) bool { return c.SessionID == sessionID && c.HasParty(phone) })
	if i < 0 {
		return Call{}, false, nil
	}
	r.calls[i].Status = status
	r.calls[i].UpdatedAt = now
	return r.calls[i], true, nil
}

func (r *MemoryRepo) FindLatestCalling(ctx context.Context, phone string) (Call, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	i := r.latestCallingLocked(func(c Call) bool { return c.HasParty(phone) })
	if i < 0 {
		return Call{}, false, nil
	}
	return r.calls[i], true, nil
}

func (r *MemoryRepo) FindCallingBySession(ctx context.Context, sessionID string) (Call, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	i := r.latestCallingLocked(func(c Call) bool { return c.SessionID == sessionID })
	if i < 0 {
		return Call{}, false, nil
	}
	return r.calls[i], true, nil
}

// Calls returns a snapshot of all rows in insertion order.
func (r *MemoryRepo) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Call, len(r.calls))
	copy(out, r.calls)
	return out
}

func (r *MemoryRepo) latestCallingLocked(match func(Call) bool) int {
	best := -1
	for i, c := range r.calls {
		if !c.Status.IsCalling() || !match(c) {
			continue
		}
		if best < 0 || newer(c, r.calls[best]) {
			best = i
		}
	}
	return best
}

// newer orders by CreatedAt, then ID.
func newer(a, b Call) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return a.ID > b.ID
}
