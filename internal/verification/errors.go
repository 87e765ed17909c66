package verification

import (
	"context"
	"errors"
)

var (
	ErrInvalidSubmission   = errors.New("verification: invalid submission")
	ErrUnknownParticipant  = errors.New("verification: unknown participant")
	ErrNoActiveCall        = errors.New("verification: no active call")
	ErrOpponentUnresolved  = errors.New("verification: opponent unresolved")
	ErrVerificationTimeout = errors.New("verification: timed out waiting for opponent")
	ErrQueueFull           = errors.New("verification: analysis queue full")
	ErrPoolStopped         = errors.New("verification: analysis pool stopped")
)

// Stable outcome codes returned to clients.
const (
	CodeOK                  = "ok"
	CodeInvalidSubmission   = "invalid_submission"
	CodeUnknownParticipant  = "unknown_participant"
	CodeNoActiveCall        = "no_active_call"
	CodeOpponentUnresolved  = "opponent_unresolved"
	CodeVerificationTimeout = "verification_timeout"
	CodeCanceled            = "canceled"
	CodeInternal            = "internal"
)

// OutcomeCode maps a Submit error to its stable code. A caller context that was
// canceled or ran past its own deadline reports CodeCanceled.
func OutcomeCode(err error) string {
	switch {
	case err == nil:
		return CodeOK
	case errors.Is(err, ErrInvalidSubmission):
		return CodeInvalidSubmission
	case errors.Is(err, ErrUnknownParticipant):
		return CodeUnknownParticipant
	case errors.Is(err, ErrNoActiveCall):
		return CodeNoActiveCall
	case errors.Is(err, ErrOpponentUnresolved):
		return CodeOpponentUnresolved
	case errors.Is(err, ErrVerificationTimeout):
		return CodeVerificationTimeout
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return CodeCanceled
	default:
		return CodeInternal
	}
}
