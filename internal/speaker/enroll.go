package speaker

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

var ErrNoAudio = errors.New("speaker: no audio")

// Extractor turns a waveform into a fixed-length voice embedding.
type Extractor interface {
	Extract(ctx context.Context, audio []byte) ([]float32, error)
}

// IdentityChecker confirms the identity exists before enrolling it.
type IdentityChecker interface {
	ResolvePhone(ctx context.Context, id string) (string, error)
}

// Enroller records the voice print of a known identity.
type Enroller struct {
	extractor  Extractor
	store      Store
	identities IdentityChecker
	clock      func() time.Time
}

func NewEnroller(extractor Extractor, store Store, identities IdentityChecker) *Enroller {
	return &Enroller{extractor: extractor, store: store, identities: identities, clock: time.Now}
}

// Enroll extracts an embedding from audio and inserts or replaces it for identityID.
func (e *Enroller) Enroll(ctx context.Context, identityID string, audio []byte) (Embedding, error) {
	identityID = strings.TrimSpace(identityID)
	if len(audio) == 0 {
		return Embedding{}, ErrNoAudio
	}
	if e.identities != nil {
		if _, err := e.identities.ResolvePhone(ctx, identityID); err != nil {
			return Embedding{}, err
		}
	}

	vec, err := e.extractor.Extract(ctx, audio)
	if err != nil {
		return Embedding{}, fmt.Errorf("extract embedding: %w", err)
	}
	emb := Embedding{IdentityID: identityID, Vector: vec, UpdatedAt: e.clock().UTC()}
	if err := e.store.Upsert(ctx, emb); err != nil {
		return Embedding{}, err
	}
	return emb, nil
}
