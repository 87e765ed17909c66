package speaker

import (
	"context"
	"sync"
)

// MemoryStore keeps embeddings in enrollment order.
type MemoryStore struct {
	mu    sync.RWMutex
	dim   int
	order []string
	byID  map[string]Embedding
}

func NewMemoryStore(dim int) *MemoryStore {
	return &MemoryStore{dim: dim, byID: map[string]Embedding{}}
}

func (s *MemoryStore) Dim() int { return s.dim }

func (s *MemoryStore) Upsert(ctx context.Context, e Embedding) error {
	if err := checkDim(s.dim, e.Vector); err != nil {
		return err
	}
	cp := make([]float32, len(e.Vector))
	copy(cp, e.Vector)
	e.Vector = cp

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[e.IdentityID]; !ok {
		s.order = append(s.order, e.IdentityID)
	}
	s.byID[e.IdentityID] = e
	return nil
}

func (s *MemoryStore) List(ctx context.Context) ([]Embedding, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Embedding, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.byID[id])
	}
	return out, nil
}
