package audit

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Repository is the persistence contract for status reports.
//
// It MUST be append-only.
type Repository interface {
	Append(ctx context.Context, rep Report) error
}

// Service keeps the status report trail.
//
// Callers should treat recording as best-effort: Record logs and swallows
// repository failures, Append returns them.
type Service struct {
	repo  Repository
	clock func() time.Time
	log   *slog.Logger
}

func NewService(repo Repository, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{repo: repo, clock: time.Now, log: log}
}

var ErrInvalidReport = errors.New("audit: invalid report")

func (s *Service) Append(ctx context.Context, rep Report) error {
	if s.repo == nil {
		return errors.New("audit: repository not configured")
	}
	if rep.Source == "" || rep.Disposition == "" {
		return ErrInvalidReport
	}

	if rep.ID == "" {
		rep.ID = uuid.NewString()
	}
	if rep.ReceivedAt.IsZero() {
		rep.ReceivedAt = s.clock().UTC()
	}
	return s.repo.Append(ctx, rep)
}

// Record appends rep and only logs a failure.
func (s *Service) Record(ctx context.Context, rep Report) {
	if s == nil {
		return
	}
	if err := s.Append(ctx, rep); err != nil {
		s.log.WarnContext(ctx, "audit append failed", "source", rep.Source, "err", err)
	}
}
