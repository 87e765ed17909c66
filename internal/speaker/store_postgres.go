package speaker

import (
	"context"
	"database/sql"
	"fmt"
)

// PostgresStore keeps embeddings in speaker_embeddings. Stored order is the
// seq column, which an upsert leaves untouched.
type PostgresStore struct {
	db  *sql.DB
	dim int
}

func NewPostgresStore(db *sql.DB, dim int) *PostgresStore {
	return &PostgresStore{db: db, dim: dim}
}

func (s *PostgresStore) Dim() int { return s.dim }

func (s *PostgresStore) Upsert(ctx context.Context, e Embedding) error {
	if err := checkDim(s.dim, e.Vector); err != nil {
		return err
	}
	const q = `
INSERT INTO speaker_embeddings (user_id, dim, embedding, updated_at)
VALUES ($1, $2, $3, $4)
ON CONFLICT (user_id) DO UPDATE
SET dim = EXCLUDED.dim, embedding = EXCLUDED.embedding, updated_at = EXCLUDED.updated_at
`
	_, err := s.db.ExecContext(ctx, q, e.IdentityID, len(e.Vector), encodeVector(e.Vector), e.UpdatedAt)
	return err
}

func (s *PostgresStore) List(ctx context.Context) ([]Embedding, error) {
	const q = `
SELECT user_id, dim, embedding, updated_at
FROM speaker_embeddings
ORDER BY seq ASC
`
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Embedding
	for rows.Next() {
		var (
			e   Embedding
			dim int
			raw []byte
		)
		if err := rows.Scan(&e.IdentityID, &dim, &raw, &e.UpdatedAt); err != nil {
			return nil, err
		}
		v, err := decodeVector(raw)
		if err != nil {
			return nil, fmt.Errorf("embedding %s: %w", e.IdentityID, err)
		}
		if len(v) != dim || dim != s.dim {
			return nil, fmt.Errorf("embedding %s: %w: stored %d, want %d", e.IdentityID, ErrDimensionMismatch, len(v), s.dim)
		}
		e.Vector = v
		out = append(out, e)
	}
	return out, rows.Err()
}
