package directory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestService_ResolvesBothWays(t *testing.T) {
	svc := NewService(NewMemoryRepo())
	ctx := context.Background()

	_, err := svc.Provision(ctx, Identity{ID: "u1", Name: "Alice", Phone: " 7003 "})
	require.NoError(t, err)

	phone, err := svc.ResolvePhone(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "7003", phone)

	id, err := svc.ResolveIdentity(ctx, "7003")
	require.NoError(t, err)
	assert.Equal(t, "u1", id)

	ident, err := svc.Lookup(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "Alice", ident.Name)
	assert.False(t, ident.CreatedAt.IsZero())
}

func TestService_MissesAreNotFound(t *testing.T) {
	svc := NewService(NewMemoryRepo())
	ctx := context.Background()

	_, err := svc.ResolvePhone(ctx, "nobody")
	assert.True(t, IsNotFound(err))
	_, err = svc.ResolveIdentity(ctx, "")
	assert.True(t, IsNotFound(err))
}

func TestService_ProvisionRejectsTakenPhone(t *testing.T) {
	svc := NewService(NewMemoryRepo())
	ctx := context.Background()

	_, err := svc.Provision(ctx, Identity{ID: "u1", Phone: "7003"})
	require.NoError(t, err)
	_, err = svc.Provision(ctx, Identity{ID: "u2", Phone: "7003"})
	assert.ErrorIs(t, err, ErrPhoneTaken)

	_, err = svc.Provision(ctx, Identity{ID: "u1", Phone: "7005"})
	require.NoError(t, err)
	id, err := svc.ResolveIdentity(ctx, "7005")
	require.NoError(t, err)
	assert.Equal(t, "u1", id)
	_, err = svc.ResolveIdentity(ctx, "7003")
	assert.True(t, IsNotFound(err))

	_, err = svc.Provision(ctx, Identity{Phone: "7006"})
	assert.ErrorIs(t, err, ErrInvalidIdentity)
}
