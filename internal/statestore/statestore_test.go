package statestore

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MKhiriev/cloudsync/internal/logger"
)

func testStores(t *testing.T) map[string]StateStore {
	t.Helper()

	sqlite, err := NewSQLite(context.Background(), filepath.Join(t.TempDir(), "state.db"), logger.Nop())
	require.NoError(t, err)

	return map[string]StateStore{
		"sqlite": sqlite,
		"memory": NewMemory(),
	}
}

func TestStateStore_SetGetDelete(t *testing.T) {
	ctx := context.Background()

	for name, store := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			_, ok, err := store.Get(ctx, "missing")
			require.NoError(t, err)
			assert.False(t, ok)

			require.NoError(t, store.Set(ctx, "k", []byte("v1")))
			value, ok, err := store.Get(ctx, "k")
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, []byte("v1"), value)

			// overwrite
			require.NoError(t, store.Set(ctx, "k", []byte("v2")))
			value, _, err = store.Get(ctx, "k")
			require.NoError(t, err)
			assert.Equal(t, []byte("v2"), value)

			require.NoError(t, store.Delete(ctx, "k"))
			_, ok, err = store.Get(ctx, "k")
			require.NoError(t, err)
			assert.False(t, ok)

			// deleting a missing key is not an error
			require.NoError(t, store.Delete(ctx, "k"))
		})
	}
}

func TestSQLite_SurvivesReopen(t *testing.T) {
	ctx := context.Background()
	dsn := filepath.Join(t.TempDir(), "state.db")

	store, err := NewSQLite(ctx, dsn, logger.Nop())
	require.NoError(t, err)
	require.NoError(t, store.Set(ctx, "durable", []byte("payload")))
	require.NoError(t, store.(*sqliteStore).Close())

	reopened, err := NewSQLite(ctx, dsn, logger.Nop())
	require.NoError(t, err)
	value, ok, err := reopened.Get(ctx, "durable")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("payload"), value)
}
