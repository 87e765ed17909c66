package telephony

import (
	"context"
	"errors"
	"log/slog"

	"voiceguard/internal/audit"
	"voiceguard/internal/calls"
)

// Recorder applies a status event to the call registry.
type Recorder interface {
	RecordStatus(ctx context.Context, ev calls.StatusEvent) (calls.Call, bool, error)
}

// Trail keeps the raw report history (see internal/audit).
type Trail interface {
	Record(ctx context.Context, rep audit.Report)
}

// Ingest is the single path from provider adapters into the registry.
// Adapters translate their payloads into calls.StatusEvent; no business logic lives in them.
type Ingest struct {
	recorder Recorder
	trail    Trail
	log      *slog.Logger
}

func NewIngest(recorder Recorder, trail Trail, log *slog.Logger) *Ingest {
	if log == nil {
		log = slog.Default()
	}
	return &Ingest{recorder: recorder, trail: trail, log: log}
}

// Apply records ev and appends the outcome to the trail.
// A report for a call the registry never saw as calling is dropped without error.
func (i *Ingest) Apply(ctx context.Context, src audit.Source, ev calls.StatusEvent, remoteIP string) (calls.Call, audit.Disposition, error) {
	rep := audit.Report{
		Source:    src,
		Caller:    ev.Caller,
		Callee:    ev.Callee,
		Status:    string(ev.Status),
		SessionID: ev.SessionID,
		RemoteIP:  remoteIP,
	}

	c, changed, err := i.recorder.RecordStatus(ctx, ev)
	switch {
	case errors.Is(err, calls.ErrInvalidEvent):
		rep.Disposition = audit.DispositionRejected
	case err != nil:
		rep.Disposition = audit.DispositionFailed
	case !changed:
		rep.Disposition = audit.DispositionDropped
	case calls.NormalizeStatus(string(ev.Status)).IsCalling():
		rep.Disposition = audit.DispositionCreated
		rep.CallID = c.ID
	default:
		rep.Disposition = audit.DispositionUpdated
		rep.CallID = c.ID
	}

	if i.trail != nil {
		i.trail.Record(ctx, rep)
	}
	return c, rep.Disposition, err
}
