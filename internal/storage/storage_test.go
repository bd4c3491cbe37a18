package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blueberrycongee/semcache/internal/cachemodel"
	"github.com/blueberrycongee/semcache/internal/semvector"
)

func tinyVector() *semvector.MultiLayerVector {
	layers := make(map[semvector.Kind]semvector.Vector, len(semvector.Kinds))
	for _, k := range semvector.Kinds {
		layers[k] = make([]float32, semvector.Dimension(k))
	}
	return &semvector.MultiLayerVector{Layers: layers}
}

func TestPlacementTier(t *testing.T) {
	assert.Equal(t, cachemodel.L1, PlacementTier(101))
	assert.Equal(t, cachemodel.L2, PlacementTier(11))
	assert.Equal(t, cachemodel.L3, PlacementTier(2))
	assert.Equal(t, cachemodel.Cold, PlacementTier(0))
}

// TestAdd_EvictionMaintainsCapacityInvariant is scenario S5: filling a
// tier past its cap and inserting one more evicts lowest-score items so
// usage never exceeds the 0.92 cap, and the inserted item resides in
// exactly one tier.
func TestAdd_EvictionMaintainsCapacityInvariant(t *testing.T) {
	payload := make([]byte, 100)
	probe := cachemodel.NewCacheItem(tinyVector(), payload, cachemodel.Metadata{}, 0)
	itemSize := int64(probe.Size())
	capacity := itemSize * 100

	store := New(Options{
		Capacities:         map[cachemodel.Tier]int64{cachemodel.L1: capacity, cachemodel.L2: capacity, cachemodel.L3: capacity, cachemodel.Cold: capacity},
		EvictionWeights:    DefaultEvictionWeights(),
		PromotionThreshold: defaultPromotionThreshold,
	})

	var ids []string
	for i := 0; i < 100; i++ {
		item := cachemodel.NewCacheItem(tinyVector(), payload, cachemodel.Metadata{}, 0)
		require.NoError(t, store.Add(item, cachemodel.L1))
		ids = append(ids, item.ID)
	}

	extra := cachemodel.NewCacheItem(tinyVector(), payload, cachemodel.Metadata{}, 0)
	err := store.Add(extra, cachemodel.L1)
	require.NoError(t, err)

	tier := store.Tier(cachemodel.L1)
	assert.LessOrEqual(t, tier.CurrentUsage(), tier.maxUsage())

	seen := 0
	for _, level := range cachemodel.Tiers {
		if _, ok := store.Tier(level).get(extra.ID); ok {
			seen++
		}
	}
	assert.Equal(t, 1, seen, "item must reside in exactly one tier")
}

func TestLookup_IncrementsAccessCount(t *testing.T) {
	store := New(DefaultOptions())
	item := cachemodel.NewCacheItem(tinyVector(), []byte("x"), cachemodel.Metadata{}, 0)
	require.NoError(t, store.Add(item, cachemodel.L1))
	require.Equal(t, int64(1), item.AccessCount, "insertion itself counts as the first access")

	_, ok := store.Lookup(item.ID)
	require.True(t, ok)
	got, _ := store.Lookup(item.ID)
	assert.Equal(t, int64(3), got.AccessCount)
}

// fakeOverflow is a minimal in-memory stand-in for redisbackend.Store,
// used to exercise Store's cold-overflow wiring without a real Redis
// dependency.
type fakeOverflow struct {
	items map[string]*cachemodel.CacheItem
}

func newFakeOverflow() *fakeOverflow {
	return &fakeOverflow{items: make(map[string]*cachemodel.CacheItem)}
}

func (f *fakeOverflow) Put(_ context.Context, item *cachemodel.CacheItem) error {
	f.items[item.ID] = item
	return nil
}

func (f *fakeOverflow) Get(_ context.Context, id string) (*cachemodel.CacheItem, bool, error) {
	item, ok := f.items[id]
	return item, ok, nil
}

func (f *fakeOverflow) Delete(_ context.Context, id string) error {
	delete(f.items, id)
	return nil
}

// TestAdd_ColdEvictionSpillsToOverflow covers §4.7: a cold-tier eviction
// that would otherwise drop the item instead spills it to the wired
// overflow, and a subsequent Lookup miss rehydrates it back into memory.
func TestAdd_ColdEvictionSpillsToOverflow(t *testing.T) {
	payload := make([]byte, 100)
	probe := cachemodel.NewCacheItem(tinyVector(), payload, cachemodel.Metadata{}, 0)
	itemSize := int64(probe.Size())
	capacity := itemSize * 10

	overflow := newFakeOverflow()
	store := New(Options{
		Capacities:          map[cachemodel.Tier]int64{cachemodel.L1: capacity, cachemodel.L2: capacity, cachemodel.L3: capacity, cachemodel.Cold: capacity},
		EvictionWeights:     DefaultEvictionWeights(),
		PromotionThreshold:  defaultPromotionThreshold,
		MemoryLimitFraction: defaultMemoryLimitFraction,
		ColdOverflow:        overflow,
	})

	var ids []string
	for i := 0; i < 10; i++ {
		item := cachemodel.NewCacheItem(tinyVector(), payload, cachemodel.Metadata{}, 0)
		require.NoError(t, store.Add(item, cachemodel.Cold))
		ids = append(ids, item.ID)
	}

	extra := cachemodel.NewCacheItem(tinyVector(), payload, cachemodel.Metadata{}, 0)
	require.NoError(t, store.Add(extra, cachemodel.Cold))

	require.NotEmpty(t, overflow.items, "at least one victim should have spilled to overflow")

	var spilledID string
	for id := range overflow.items {
		spilledID = id
		break
	}

	got, ok := store.Lookup(spilledID)
	require.True(t, ok, "a cold miss must rehydrate from overflow")
	assert.Equal(t, cachemodel.Cold, got.Tier)

	_, stillSpilled := overflow.items[spilledID]
	assert.False(t, stillSpilled, "rehydrated item is removed from overflow")
}

func TestPromoteDemote_MovesOneTierAtATime(t *testing.T) {
	store := New(DefaultOptions())
	item := cachemodel.NewCacheItem(tinyVector(), []byte("x"), cachemodel.Metadata{}, 0)
	require.NoError(t, store.Add(item, cachemodel.Cold))

	require.NoError(t, store.Promote(item.ID))
	got, ok := store.Lookup(item.ID)
	require.True(t, ok)
	assert.Equal(t, cachemodel.L3, got.Tier)

	require.NoError(t, store.Demote(item.ID))
	got, ok = store.Lookup(item.ID)
	require.True(t, ok)
	assert.Equal(t, cachemodel.Cold, got.Tier)
}

func TestClear_RemovesEverythingFromNamedTierOnly(t *testing.T) {
	store := New(DefaultOptions())
	a := cachemodel.NewCacheItem(tinyVector(), []byte("a"), cachemodel.Metadata{}, 0)
	b := cachemodel.NewCacheItem(tinyVector(), []byte("b"), cachemodel.Metadata{}, 0)
	require.NoError(t, store.Add(a, cachemodel.L1))
	require.NoError(t, store.Add(b, cachemodel.L2))

	removed := store.Clear(cachemodel.L1)
	assert.Len(t, removed, 1)
	_, ok := store.Lookup(a.ID)
	assert.False(t, ok)
	_, ok = store.Lookup(b.ID)
	assert.True(t, ok)
}
