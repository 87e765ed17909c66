package calls

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

var (
	ErrInvalidEvent = errors.New("calls: invalid status event")
	ErrNotAParty    = errors.New("calls: phone is not a party to the call")
)

// Registry tracks which two phones are paired in an active call.
//
// Invariants:
// - A calling event always inserts a new row; rows are never deleted.
// - Any other status updates the newest Calling row touching the reporting phone
//   (Caller of the event). No such row is a silent no-op.
// - When the event carries a SessionID the update targets that session instead of
//   phone recency.
// - The select-latest and the update happen atomically inside the repository.
type Registry struct {
	repo  Repository
	clock func() time.Time
	log   *slog.Logger
}

func NewRegistry(repo Repository, log *slog.Logger) *Registry {
	if log == nil {
		log = slog.Default()
	}
	return &Registry{repo: repo, clock: time.Now, log: log}
}

// WithClock replaces the time source. Intended for tests.
func (r *Registry) WithClock(clock func() time.Time) *Registry {
	r.clock = clock
	return r
}

// RecordStatus applies one status report.
// It returns the affected call and whether any row was created or updated.
func (r *Registry) RecordStatus(ctx context.Context, ev StatusEvent) (Call, bool, error) {
	ev.Caller = strings.TrimSpace(ev.Caller)
	ev.Callee = strings.TrimSpace(ev.Callee)
	ev.SessionID = strings.TrimSpace(ev.SessionID)
	ev.Status = NormalizeStatus(string(ev.Status))

	if ev.Caller == "" || ev.Status == "" {
		return Call{}, false, ErrInvalidEvent
	}

	now := r.clock().UTC()

	if ev.Status.IsCalling() {
		if ev.Callee == "" || ev.Callee == ev.Caller {
			return Call{}, false, ErrInvalidEvent
		}
		c, err := r.repo.Insert(ctx, Call{
			Caller:    ev.Caller,
			Callee:    ev.Callee,
			Status:    StatusCalling,
			SessionID: ev.SessionID,
			CreatedAt: now,
			UpdatedAt: now,
		})
		if err != nil {
			return Call{}, false, fmt.Errorf("insert call: %w", err)
		}
		r.log.InfoContext(ctx, "call started", "call_id", c.ID, "caller", c.Caller, "callee", c.Callee)
		return c, true, nil
	}

	var (
		c     Call
		found bool
		err   error
	)
	if ev.SessionID != "" {
		c, found, err = r.repo.UpdateCallingBySession(ctx, ev.SessionID, ev.Caller, ev.Status, now)
	} else {
		c, found, err = r.repo.UpdateLatestCalling(ctx, ev.Caller, ev.Status, now)
	}
	if err != nil {
		return Call{}, false, fmt.Errorf("update call status: %w", err)
	}
	if !found {
		r.log.DebugContext(ctx, "status dropped, no calling record", "phone", ev.Caller, "status", ev.Status)
		return Call{}, false, nil
	}
	r.log.InfoContext(ctx, "call status updated", "call_id", c.ID, "status", c.Status)
	return c, true, nil
}

// FindActiveCall returns the newest Calling row touching phone.
// Not found is a normal outcome and is reported with ok=false.
func (r *Registry) FindActiveCall(ctx context.Context, phone string) (Call, bool, error) {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return Call{}, false, nil
	}
	return r.repo.FindLatestCalling(ctx, phone)
}

// FindActiveCallForSession prefers the session's Calling row when sessionID is set and
// the session includes phone; otherwise it falls back to FindActiveCall.
func (r *Registry) FindActiveCallForSession(ctx context.Context, phone, sessionID string) (Call, bool, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return r.FindActiveCall(ctx, phone)
	}
	c, ok, err := r.repo.FindCallingBySession(ctx, sessionID)
	if err != nil {
		return Call{}, false, err
	}
	if !ok || !c.HasParty(strings.TrimSpace(phone)) {
		return Call{}, false, nil
	}
	return c, true, nil
}

// OpponentPhone returns the other party of c.
func (r *Registry) OpponentPhone(c Call, phone string) (string, error) {
	other, ok := c.Opponent(phone)
	if !ok {
		return "", ErrNotAParty
	}
	return other, nil
}

// ParticipantState reports calling when phone has an active call, idle otherwise.
func (r *Registry) ParticipantState(ctx context.Context, phone string) (ParticipantState, error) {
	_, ok, err := r.FindActiveCall(ctx, phone)
	if err != nil {
		return "", err
	}
	if ok {
		return StateCalling, nil
	}
	return StateIdle, nil
}
