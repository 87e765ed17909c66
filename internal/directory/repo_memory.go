package directory

import (
	"context"
	"sync"
)

// MemoryRepo is an in-memory Repository for tests and STORE_DRIVER=memory.
type MemoryRepo struct {
	mu      sync.RWMutex
	byID    map[string]Identity
	byPhone map[string]string
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{byID: map[string]Identity{}, byPhone: map[string]string{}}
}

func (r *MemoryRepo) ByID(ctx context.Context, id string) (Identity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ident, ok := r.byID[id]
	if !ok {
		return Identity{}, ErrNotFound
	}
	return ident, nil
}

func (r *MemoryRepo) ByPhone(ctx context.Context, phone string) (Identity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byPhone[phone]
	if !ok {
		return Identity{}, ErrNotFound
	}
	return r.byID[id], nil
}

func (r *MemoryRepo) Upsert(ctx context.Context, ident Identity) (Identity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if owner, ok := r.byPhone[ident.Phone]; ok && owner != ident.ID {
		return Identity{}, ErrPhoneTaken
	}
	if prev, ok := r.byID[ident.ID]; ok {
		delete(r.byPhone, prev.Phone)
		if ident.CreatedAt.IsZero() {
			ident.CreatedAt = prev.CreatedAt
		}
	}
	r.byID[ident.ID] = ident
	r.byPhone[ident.Phone] = ident.ID
	return ident, nil
}
