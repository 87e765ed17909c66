//go:build integration

package directory

import (
	"context"
	"testing"

	"voiceguard/pkg/testutil/containers"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostgresDirectory(t *testing.T) {
	pg := containers.NewPostgresContainer(t)
	ctx := context.Background()
	svc := NewService(NewPostgresRepo(pg.DB))

	_, err := svc.Provision(ctx, Identity{ID: "7003", Name: "Ana", Phone: "+1003"})
	require.NoError(t, err)

	phone, err := svc.ResolvePhone(ctx, "7003")
	require.NoError(t, err)
	assert.Equal(t, "+1003", phone)

	id, err := svc.ResolveIdentity(ctx, "+1003")
	require.NoError(t, err)
	assert.Equal(t, "7003", id)

	_, err = svc.ResolveIdentity(ctx, "+1999")
	assert.True(t, IsNotFound(err))

	_, err = svc.Provision(ctx, Identity{ID: "7004", Phone: "+1003"})
	assert.ErrorIs(t, err, ErrPhoneTaken)

	renamed, err := svc.Provision(ctx, Identity{ID: "7003", Name: "Ana R", Phone: "+1003"})
	require.NoError(t, err)
	assert.Equal(t, "Ana R", renamed.Name)
}
