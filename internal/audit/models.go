package audit

import "time"

// Report is an immutable record of one raw call status report as received.
//
// Invariants:
// - Reports are never updated or deleted.
// - Every report is kept, including ones the registry dropped or rejected.
// - Recording is best-effort; do not block status handling on audit failures.
type Report struct {
	ID string `json:"id" db:"id"`

	// Source names the adapter that received the report.
	Source Source `json:"source" db:"source"`

	Caller    string `json:"caller" db:"caller"`
	Callee    string `json:"callee" db:"callee"`
	Status    string `json:"status" db:"status"`
	SessionID string `json:"session_id,omitempty" db:"session_id"`

	// Disposition is what the registry did with the report.
	Disposition Disposition `json:"disposition" db:"disposition"`
	// CallID is set when a call row was created or updated.
	CallID int64 `json:"call_id,omitempty" db:"call_id"`

	// RemoteIP should be the resolved client IP (gin ClientIP).
	RemoteIP string `json:"remote_ip,omitempty" db:"remote_ip"`

	ReceivedAt time.Time `json:"received_at" db:"received_at"`
}

type Source string

const (
	SourceHook   Source = "hook"
	SourceTwilio Source = "twilio"
)

type Disposition string

const (
	DispositionCreated  Disposition = "created"
	DispositionUpdated  Disposition = "updated"
	DispositionDropped  Disposition = "dropped"
	DispositionRejected Disposition = "rejected"
	DispositionFailed   Disposition = "failed"
)
