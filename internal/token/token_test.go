package token

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MKhiriev/cloudsync/internal/statestore"
	"github.com/MKhiriev/cloudsync/models"
)

func TestStore_GetSetClear(t *testing.T) {
	ctx := context.Background()
	store := NewStore(statestore.NewMemory(), "zone/change_token")

	got, err := store.Get(ctx)
	require.NoError(t, err)
	assert.True(t, got.IsZero())

	require.NoError(t, store.Set(ctx, models.ChangeToken("cursor-1")))
	got, err = store.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.ChangeToken("cursor-1"), got)

	require.NoError(t, store.Clear(ctx))
	got, err = store.Get(ctx)
	require.NoError(t, err)
	assert.True(t, got.IsZero())
}

func TestStore_KeysAreIsolated(t *testing.T) {
	ctx := context.Background()
	state := statestore.NewMemory()
	first := NewStore(state, "zone-a/change_token")
	second := NewStore(state, "zone-b/change_token")

	require.NoError(t, first.Set(ctx, models.ChangeToken("cursor-a")))

	got, err := second.Get(ctx)
	require.NoError(t, err)
	assert.True(t, got.IsZero())
}
