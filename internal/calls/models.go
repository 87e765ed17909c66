package calls

import (
	"strings"
	"time"
)

// Call is a tracked pairing of two participant phones.
//
// Invariants:
// - ID is assigned by the repository in insertion order and never reused.
// - Rows are never deleted; a terminal status keeps the row as history.
// - At lookup time the active call for a phone is the newest Calling row touching it
//   (CreatedAt, then ID, descending).
type Call struct {
	ID     int64  `json:"id" db:"id"`
	Caller string `json:"caller" db:"caller"`
	Callee string `json:"callee" db:"callee"`

	Status Status `json:"status" db:"status"`

	// SessionID is an optional stable identifier supplied by the status reporter
	// (e.g. a provider call sid). When present it disambiguates call-waiting.
	SessionID string `json:"session_id,omitempty" db:"session_id"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// HasParty reports whether phone is either side of the call.
func (c Call) HasParty(phone string) bool {
	return phone != "" && (c.Caller == phone || c.Callee == phone)
}

// Opponent returns the other party's phone.
func (c Call) Opponent(phone string) (string, bool) {
	switch phone {
	case c.Caller:
		return c.Callee, true
	case c.Callee:
		return c.Caller, true
	default:
		return "", false
	}
}

// Status is the call lifecycle status. Only StatusCalling is meaningful to the registry;
// every other value is a terminal string reported by telephony (hangup, busy, ...).
type Status string

const StatusCalling Status = "calling"

// NormalizeStatus lower-cases and trims a reported status.
func NormalizeStatus(s string) Status {
	return Status(strings.ToLower(strings.TrimSpace(s)))
}

func (s Status) IsCalling() bool { return s == StatusCalling }

// StatusEvent is one status report from telephony signaling.
// Caller is the reporting phone for non-calling events.
type StatusEvent struct {
	Caller    string `json:"caller"`
	Callee    string `json:"callee"`
	Status    Status `json:"status"`
	SessionID string `json:"session_id,omitempty"`
}

// ParticipantState is the externally visible call state of one phone.
type ParticipantState string

const (
	StateCalling ParticipantState = "calling"
	StateIdle    ParticipantState = "idle"
)
