package speaker

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"time"
)

var (
	ErrDimensionMismatch = errors.New("speaker: embedding dimension mismatch")
	ErrEmptyEmbedding    = errors.New("speaker: empty embedding")
	ErrCorruptEmbedding  = errors.New("speaker: corrupt embedding bytes")
)

// Embedding is the enrolled voice print of one identity.
//
// Invariants:
// - One embedding per identity; re-enrollment replaces the vector in place.
// - Every stored vector has the store's dimensionality.
// - Stored order is first-enrollment order and does not change on replace.
type Embedding struct {
	IdentityID string    `json:"identity_id" db:"user_id"`
	Vector     []float32 `json:"-" db:"embedding"`
	UpdatedAt  time.Time `json:"updated_at" db:"updated_at"`
}

// Store persists embeddings keyed by identity.
type Store interface {
	// Upsert inserts or replaces the embedding for e.IdentityID.
	Upsert(ctx context.Context, e Embedding) error
	// List returns every embedding in stored order.
	List(ctx context.Context) ([]Embedding, error)
	// Dim is the fixed dimensionality accepted by the store.
	Dim() int
}

func checkDim(dim int, v []float32) error {
	if len(v) == 0 {
		return ErrEmptyEmbedding
	}
	if len(v) != dim {
		return fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(v), dim)
	}
	return nil
}

// encodeVector packs v as little-endian float32.
func encodeVector(v []float32) []byte {
	b := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(b[4*i:], math.Float32bits(f))
	}
	return b
}

func decodeVector(b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, ErrCorruptEmbedding
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[4*i:]))
	}
	return v, nil
}
