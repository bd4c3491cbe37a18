package redisbackend

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blueberrycongee/semcache/internal/cachemodel"
	"github.com/blueberrycongee/semcache/internal/semvector"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	return NewWithClient(client, "test", 0)
}

func fixedVector() *semvector.MultiLayerVector {
	layers := make(map[semvector.Kind]semvector.Vector, len(semvector.Kinds))
	for _, k := range semvector.Kinds {
		layers[k] = make([]float32, semvector.Dimension(k))
	}
	m := &semvector.MultiLayerVector{Layers: layers, Timestamp: time.Unix(10, 0)}
	for i := 0; i < 5; i++ {
		m.Relation[i][i] = 1
	}
	return m
}

func TestPutGet_RoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	item := cachemodel.NewCacheItem(fixedVector(), []byte("img-bytes"), cachemodel.Metadata{OriginalPrompt: "x"}, 0.3)
	require.NoError(t, store.Put(ctx, item))

	got, ok, err := store.Get(ctx, item.ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, item.ID, got.ID)
	assert.Equal(t, item.Payload, got.Payload)
	assert.Equal(t, cachemodel.Cold, got.Tier)
}

func TestGet_MissingKeyReturnsNotOkNoError(t *testing.T) {
	store := newTestStore(t)
	_, ok, err := store.Get(context.Background(), "does-not-exist")
	assert.NoError(t, err)
	assert.False(t, ok)
}

func TestDelete_IsIdempotent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	item := cachemodel.NewCacheItem(fixedVector(), []byte("x"), cachemodel.Metadata{}, 0)
	require.NoError(t, store.Put(ctx, item))

	require.NoError(t, store.Delete(ctx, item.ID))
	_, ok, err := store.Get(ctx, item.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	// deleting again is a no-op, not an error
	assert.NoError(t, store.Delete(ctx, item.ID))
}

func TestPing_Succeeds(t *testing.T) {
	store := newTestStore(t)
	assert.NoError(t, store.Ping(context.Background()))
}
