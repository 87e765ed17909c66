package inference

import (
	"context"
	"fmt"
	"log/slog"
)

// FailClosed wraps a Detector so that every failure, including a panic, becomes a
// Prediction labelled error. Its Predict never returns a non-nil error.
type FailClosed struct {
	next Detector
	log  *slog.Logger
}

func NewFailClosed(next Detector, log *slog.Logger) *FailClosed {
	if log == nil {
		log = slog.Default()
	}
	return &FailClosed{next: next, log: log}
}

func (f *FailClosed) Predict(ctx context.Context, audio []byte) (p Prediction, err error) {
	defer func() {
		if r := recover(); r != nil {
			f.log.ErrorContext(ctx, "detector panicked", "panic", fmt.Sprint(r))
			p, err = Prediction{Label: LabelError}, nil
		}
	}()

	p, err = f.next.Predict(ctx, audio)
	if err != nil {
		f.log.WarnContext(ctx, "detector failed", "err", err)
		return Prediction{Label: LabelError}, nil
	}
	if !p.Label.Valid() || p.Label == LabelError {
		return Prediction{Score: p.Score, Label: LabelError}, nil
	}
	return p, nil
}
