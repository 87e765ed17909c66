package calls

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"voiceguard/pkg/utils"
)

// PostgresRepo stores calls in the calls table (see internal/schema).
//
// Every write runs in a transaction holding advisory locks on the phones it touches, so an
// insert for a phone and a status update for the same phone cannot interleave. The target
// row of an update is then selected FOR UPDATE inside the same transaction.
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

const lockNamespace = "calls.phone"

const callColumns = `id, caller, callee, status, session_id, created_at, updated_at`

func (r *PostgresRepo) Insert(ctx context.Context, c Call) (Call, error) {
	const q = `
INSERT INTO calls (caller, callee, status, session_id, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING ` + callColumns

	var out Call
	err := utils.WithTx(ctx, r.db, &sql.TxOptions{}, func(ctx context.Context, tx *sql.Tx) error {
		if err := utils.LockAdvisory(ctx, tx, utils.AdvisoryKeys(lockNamespace, c.Caller, c.Callee)); err != nil {
			return err
		}
		row := tx.QueryRowContext(ctx, q, c.Caller, c.Callee, c.Status, c.SessionID, c.CreatedAt, c.UpdatedAt)
		var err error
		out, err = scanCall(row)
		return err
	})
	return out, err
}

func (r *PostgresRepo) UpdateLatestCalling(ctx context.Context, phone string, status Status, now time.Time) (Call, bool, error) {
	const sel = `
SELECT id
FROM calls
WHERE (caller = $1 OR callee = $1) AND status = 'calling'
ORDER BY created_at DESC, id DESC
LIMIT 1
FOR UPDATE
`
	return r.updateSelected(ctx, phone, status, now, sel, phone)
}

func (r *PostgresRepo) UpdateCallingBySession(ctx context.Context, sessionID, phone string, status Status, now time.Time) (Call, bool, error) {
	const sel = `
SELECT id
FROM calls
WHERE session_id = $1 AND (caller = $2 OR callee = $2) AND status = 'calling'
ORDER BY created_at DESC, id DESC
LIMIT 1
FOR UPDATE
`
	return r.updateSelected(ctx, phone, status, now, sel, sessionID, phone)
}

func (r *PostgresRepo) updateSelected(ctx context.Context, phone string, status Status, now time.Time, sel string, args ...any) (Call, bool, error) {
	const upd = `
UPDATE calls SET status = $2, updated_at = $3
WHERE id = $1
RETURNING ` + callColumns

	var out Call
	var found bool
	err := utils.WithTx(ctx, r.db, &sql.TxOptions{}, func(ctx context.Context, tx *sql.Tx) error {
		if err := utils.LockAdvisory(ctx, tx, utils.AdvisoryKeys(lockNamespace, phone)); err != nil {
			return err
		}
		var id int64
		if err := tx.QueryRowContext(ctx, sel, args...).Scan(&id); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil
			}
			return err
		}
		c, err := scanCall(tx.QueryRowContext(ctx, upd, id, status, now))
		if err != nil {
			return err
		}
		out, found = c, true
		return nil
	})
	if err != nil {
		return Call{}, false, err
	}
	return out, found, nil
}

func (r *PostgresRepo) FindLatestCalling(ctx context.Context, phone string) (Call, bool, error) {
	const q = `
SELECT ` + callColumns + `
FROM calls
WHERE (caller = $1 OR callee = $1) AND status = 'calling'
ORDER BY created_at DESC, id DESC
LIMIT 1
`
	return findOne(r.db.QueryRowContext(ctx, q, phone))
}

func (r *PostgresRepo) FindCallingBySession(ctx context.Context, sessionID string) (Call, bool, error) {
	const q = `
SELECT ` + callColumns + `
FROM calls
WHERE session_id = $1 AND status = 'calling'
ORDER BY created_at DESC, id DESC
LIMIT 1
`
	return findOne(r.db.QueryRowContext(ctx, q, sessionID))
}

func findOne(row *sql.Row) (Call, bool, error) {
	c, err := scanCall(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Call{}, false, nil
		}
		return Call{}, false, err
	}
	return c, true, nil
}

func scanCall(row *sql.Row) (Call, error) {
	var c Call
	err := row.Scan(
		&c.ID,
		&c.Caller,
		&c.Callee,
		&c.Status,
		&c.SessionID,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	return c, err
}
