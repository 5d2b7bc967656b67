package vectorindex

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aslamsikder/VoiceRAG-Agent-System/database"
	"github.com/aslamsikder/VoiceRAG-Agent-System/domain"
)

func TestPostgresStoreNilPool(t *testing.T) {
	store := NewPostgresStore(nil)
	ctx := context.Background()

	assert.Error(t, store.Save(ctx, sampleIndex(t)))
	_, err := store.Load(ctx)
	assert.Error(t, err)
	assert.Error(t, store.Clear(ctx))
}

func TestPostgresStoreRoundTrip(t *testing.T) {
	if os.Getenv("RUN_DB_INTEGRATION_TESTS") != "1" {
		t.Skip("set RUN_DB_INTEGRATION_TESTS=1 to run database connectivity checks")
	}

	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		dsn = "postgres://localhost:5432/voicerag?sslmode=disable"
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, dsn)
	require.NoError(t, err)
	defer pool.Close()

	store := NewPostgresStore(pool)
	t.Cleanup(func() { _ = store.Clear(ctx) })

	require.NoError(t, store.Clear(ctx))
	_, err = store.Load(ctx)
	require.ErrorIs(t, err, domain.ErrNotFound)

	ix := sampleIndex(t)
	require.NoError(t, store.Save(ctx, ix))

	loaded, err := store.Load(ctx)
	require.NoError(t, err)
	require.Equal(t, ix.Len(), loaded.Len())

	want, err := ix.Search([]float32{0.9, 0}, 3)
	require.NoError(t, err)
	got, err := loaded.Search([]float32{0.9, 0}, 3)
	require.NoError(t, err)
	assert.Equal(t, contents(want), contents(got))
}
