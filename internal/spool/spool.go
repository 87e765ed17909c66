package spool

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
)

var ErrInvalidKey = errors.New("spool: invalid key")

// Store is a flat key/value blob store for parked audio.
// Get on a missing key returns an error wrapping os.ErrNotExist; Delete is idempotent.
type Store interface {
	Put(ctx context.Context, key string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
}

// Spool parks submitted audio between the request and its analysis job.
// Every parked ticket must be released by whoever consumes it.
type Spool struct {
	store Store
}

func New(store Store) *Spool { return &Spool{store: store} }

// Ticket names one parked waveform.
type Ticket struct {
	Key string
}

// Park writes audio under a fresh key scoped to the submitting participant.
func (s *Spool) Park(ctx context.Context, participantID string, audio []byte) (Ticket, error) {
	key := fmt.Sprintf("temp_%s_%s.wav", sanitize(participantID), uuid.NewString())
	if err := s.store.Put(ctx, key, audio); err != nil {
		return Ticket{}, fmt.Errorf("park audio: %w", err)
	}
	return Ticket{Key: key}, nil
}

func (s *Spool) Load(ctx context.Context, t Ticket) ([]byte, error) {
	return s.store.Get(ctx, t.Key)
}

// Release deletes the parked audio. Releasing twice is fine.
func (s *Spool) Release(ctx context.Context, t Ticket) error {
	if t.Key == "" {
		return nil
	}
	return s.store.Delete(ctx, t.Key)
}

// IsNotExist reports whether err is a missing-key error from a Store.
func IsNotExist(err error) bool { return errors.Is(err, os.ErrNotExist) }

func validKey(key string) error {
	if key == "" || strings.ContainsAny(key, `/\`) || key == "." || key == ".." {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return nil
}

func sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-':
			return r
		default:
			return '_'
		}
	}, s)
}
