package calls

import (
	"context"
	"time"
)

// Repository is the persistence contract for Call rows.
//
// Atomicity: UpdateLatestCalling and UpdateCallingBySession must pick the target row and
// write it as one serialized step. Callers never read-then-write on their side.
type Repository interface {
	// Insert stores a new Calling row and assigns its ID.
	Insert(ctx context.Context, c Call) (Call, error)

	// UpdateLatestCalling sets status on the newest Calling row touching phone.
	// Returns (Call{}, false, nil) when there is none.
	UpdateLatestCalling(ctx context.Context, phone string, status Status, now time.Time) (Call, bool, error)

	// UpdateCallingBySession sets status on the Calling row with sessionID that touches phone.
	UpdateCallingBySession(ctx context.Context, sessionID, phone string, status Status, now time.Time) (Call, bool, error)

	// FindLatestCalling returns the newest Calling row touching phone.
	FindLatestCalling(ctx context.Context, phone string) (Call, bool, error)

	// FindCallingBySession returns the Calling row with sessionID.
	FindCallingBySession(ctx context.Context, sessionID string) (Call, bool, error)
}
