package verification

import (
	"time"

	"voiceguard/internal/inference"
)

// Speaker is the enrolled identity matched by voice, with directory display data.
type Speaker struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

// Result is one participant's published analysis for one call.
//
// Invariants:
// - At most one Result per (CallID, ParticipantID); a newer Attempt replaces an older one.
// - A publish carrying an older Attempt than the stored row is ignored.
// - Label is always one of genuine, spoof, error.
type Result struct {
	CallID        int64           `json:"call_id" db:"call_id"`
	ParticipantID string          `json:"participant_id" db:"user_id"`
	OpponentID    string          `json:"opponent_id" db:"opponent_id"`
	Label         inference.Label `json:"label" db:"result"`
	Score         float64         `json:"score" db:"score"`
	Speaker       *Speaker        `json:"speaker,omitempty"`

	// Reason explains an error label (detector, queue_full, spool, capacity).
	Reason string `json:"reason,omitempty" db:"reason"`

	Attempt   int64     `json:"attempt" db:"attempt"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Outcome is what a submitter receives: the opponent's verdict.
type Outcome struct {
	CallID     int64           `json:"call_id"`
	OpponentID string          `json:"opponent_id"`
	Label      inference.Label `json:"label"`
	Speaker    *Speaker        `json:"speaker,omitempty"`
}

// Submission is one participant's audio sample.
type Submission struct {
	ParticipantID string
	Audio         []byte

	// SessionID optionally pins the call when the reporter supplied one.
	SessionID string
}

const (
	ReasonDetector  = "detector"
	ReasonQueueFull = "queue_full"
	ReasonSpool     = "spool"
	ReasonCapacity  = "capacity"
)
