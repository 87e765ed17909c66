package audit

import (
	"context"
	"database/sql"
)

// PostgresRepo appends to call_status_reports. The table has no update path.
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

func (r *PostgresRepo) Append(ctx context.Context, rep Report) error {
	const q = `
INSERT INTO call_status_reports
  (id, source, caller, callee, status, session_id, disposition, call_id, remote_ip, received_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
`
	var callID sql.NullInt64
	if rep.CallID != 0 {
		callID = sql.NullInt64{Int64: rep.CallID, Valid: true}
	}
	_, err := r.db.ExecContext(ctx, q,
		rep.ID, string(rep.Source), rep.Caller, rep.Callee, rep.Status, rep.SessionID,
		string(rep.Disposition), callID, rep.RemoteIP, rep.ReceivedAt,
	)
	return err
}
