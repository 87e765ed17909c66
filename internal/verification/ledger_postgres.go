package verification

import (
	"context"
	"database/sql"
	"errors"

	"voiceguard/internal/inference"
)

// PostgresLedger stores results in verification_results, one row per
// (call_id, user_id). The upsert's WHERE clause keeps the newest attempt.
type PostgresLedger struct {
	db *sql.DB
}

func NewPostgresLedger(db *sql.DB) *PostgresLedger { return &PostgresLedger{db: db} }

func (l *PostgresLedger) Publish(ctx context.Context, r Result) (bool, error) {
	const q = `
INSERT INTO verification_results
  (call_id, user_id, opponent_id, result, score, reason, speaker_id, speaker_name, speaker_phone, attempt, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
ON CONFLICT (call_id, user_id) DO UPDATE SET
  opponent_id = EXCLUDED.opponent_id,
  result = EXCLUDED.result,
  score = EXCLUDED.score,
  reason = EXCLUDED.reason,
  speaker_id = EXCLUDED.speaker_id,
  speaker_name = EXCLUDED.speaker_name,
  speaker_phone = EXCLUDED.speaker_phone,
  attempt = EXCLUDED.attempt,
  created_at = EXCLUDED.created_at
WHERE verification_results.attempt <= EXCLUDED.attempt
`
	var spID, spName, spPhone sql.NullString
	if r.Speaker != nil {
		spID = sql.NullString{String: r.Speaker.ID, Valid: true}
		spName = sql.NullString{String: r.Speaker.Name, Valid: true}
		spPhone = sql.NullString{String: r.Speaker.Phone, Valid: true}
	}
	res, err := l.db.ExecContext(ctx, q,
		r.CallID, r.ParticipantID, r.OpponentID, string(r.Label), r.Score, r.Reason,
		spID, spName, spPhone, r.Attempt, r.CreatedAt,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (l *PostgresLedger) Lookup(ctx context.Context, callID int64, participantID string) (Result, bool, error) {
	const q = `
SELECT call_id, user_id, opponent_id, result, score, reason, speaker_id, speaker_name, speaker_phone, attempt, created_at
FROM verification_results
WHERE call_id = $1 AND user_id = $2
`
	var (
		r                     Result
		label                 string
		spID, spName, spPhone sql.NullString
	)
	err := l.db.QueryRowContext(ctx, q, callID, participantID).Scan(
		&r.CallID, &r.ParticipantID, &r.OpponentID, &label, &r.Score, &r.Reason,
		&spID, &spName, &spPhone, &r.Attempt, &r.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Result{}, false, nil
		}
		return Result{}, false, err
	}
	r.Label = inference.Label(label)
	if spID.Valid {
		r.Speaker = &Speaker{ID: spID.String, Name: spName.String, Phone: spPhone.String}
	}
	return r, true, nil
}
