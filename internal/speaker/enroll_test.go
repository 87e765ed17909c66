package speaker

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubExtractor struct {
	vec []float32
	err error
}

func (s stubExtractor) Extract(ctx context.Context, audio []byte) ([]float32, error) {
	return s.vec, s.err
}

type stubIdentities map[string]string

var errUnknown = errors.New("unknown identity")

func (s stubIdentities) ResolvePhone(ctx context.Context, id string) (string, error) {
	p, ok := s[id]
	if !ok {
		return "", errUnknown
	}
	return p, nil
}

func TestEnroller_StoresExtractedEmbedding(t *testing.T) {
	store := NewMemoryStore(2)
	en := NewEnroller(stubExtractor{vec: []float32{0.1, 0.9}}, store, stubIdentities{"u1": "7003"})

	emb, err := en.Enroll(context.Background(), "u1", []byte("wav"))
	require.NoError(t, err)
	assert.Equal(t, "u1", emb.IdentityID)

	all, err := store.List(context.Background())
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, []float32{0.1, 0.9}, all[0].Vector)
}

func TestEnroller_Failures(t *testing.T) {
	store := NewMemoryStore(2)
	ids := stubIdentities{"u1": "7003"}
	ctx := context.Background()

	_, err := NewEnroller(stubExtractor{vec: []float32{1, 0}}, store, ids).Enroll(ctx, "u1", nil)
	assert.ErrorIs(t, err, ErrNoAudio)

	_, err = NewEnroller(stubExtractor{vec: []float32{1, 0}}, store, ids).Enroll(ctx, "ghost", []byte("wav"))
	assert.ErrorIs(t, err, errUnknown)

	boom := errors.New("model down")
	_, err = NewEnroller(stubExtractor{err: boom}, store, ids).Enroll(ctx, "u1", []byte("wav"))
	assert.ErrorIs(t, err, boom)

	_, err = NewEnroller(stubExtractor{vec: []float32{1, 0, 0}}, store, ids).Enroll(ctx, "u1", []byte("wav"))
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}
