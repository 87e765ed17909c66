package directory

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

// PostgresRepo reads identities from the users table.
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

func (r *PostgresRepo) ByID(ctx context.Context, id string) (Identity, error) {
	const q = `SELECT id, fullname, phone, created_at FROM users WHERE id = $1`
	return scanIdentity(r.db.QueryRowContext(ctx, q, id))
}

func (r *PostgresRepo) ByPhone(ctx context.Context, phone string) (Identity, error) {
	const q = `SELECT id, fullname, phone, created_at FROM users WHERE phone = $1`
	return scanIdentity(r.db.QueryRowContext(ctx, q, phone))
}

func (r *PostgresRepo) Upsert(ctx context.Context, ident Identity) (Identity, error) {
	const q = `
INSERT INTO users (id, fullname, phone, created_at)
VALUES ($1, $2, $3, $4)
ON CONFLICT (id) DO UPDATE SET fullname = EXCLUDED.fullname, phone = EXCLUDED.phone
RETURNING id, fullname, phone, created_at
`
	out, err := scanIdentity(r.db.QueryRowContext(ctx, q, ident.ID, ident.Name, ident.Phone, ident.CreatedAt))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Identity{}, ErrPhoneTaken
		}
		return Identity{}, err
	}
	return out, nil
}

func scanIdentity(row *sql.Row) (Identity, error) {
	var ident Identity
	if err := row.Scan(&ident.ID, &ident.Name, &ident.Phone, &ident.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Identity{}, ErrNotFound
		}
		return Identity{}, err
	}
	return ident, nil
}
