package semcache

import (
	"context"
	"hash/fnv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blueberrycongee/semcache/internal/cachemodel"
	"github.com/blueberrycongee/semcache/internal/config"
	"github.com/blueberrycongee/semcache/internal/decision"
	"github.com/blueberrycongee/semcache/internal/semvector"
	"github.com/blueberrycongee/semcache/pkg/embedtable"
)

// buildTable assigns every distinct token a deterministic, token-specific
// vector per layer (via a hash seed), so identical prompts vectorize
// identically and unrelated prompts land far apart in cosine space.
func buildTable(vocab ...string) *embedtable.InMemory {
	table := embedtable.NewInMemory()
	for _, tok := range vocab {
		h := fnv.New64a()
		_, _ = h.Write([]byte(tok))
		seed := h.Sum64()
		for _, k := range semvector.Kinds {
			dim := semvector.Dimension(k)
			vec := make([]float32, dim)
			for i := range vec {
				seed = seed*6364136223846793005 + 1
				vec[i] = float32(int64(seed%2000)-1000) / 1000
			}
			table.Put(embedtable.Layer(k), tok, vec)
		}
	}
	return table
}

var fullVocab = []string{
	"a", "cat", "on", "windowsill", "futuristic", "cyberpunk", "city",
	"dog", "in", "garden",
}

// fakeProducer returns fixed image bytes tagged with the prompt, so tests
// can tell which generation produced a given cache item.
type fakeProducer struct {
	calls int
}

func (p *fakeProducer) Generate(ctx context.Context, req GenerationRequest) (GenerationResult, error) {
	p.calls++
	return GenerationResult{
		ImageBytes: []byte("img:" + req.Prompt),
		Params:     map[string]any{"prompt": req.Prompt},
		Width:      512, Height: 512, Format: "png",
		Difficulty: 0.5,
	}, nil
}

func newTestCache(t *testing.T) (*Cache, *fakeProducer) {
	t.Helper()
	prod := &fakeProducer{}
	c, err := New(Options{Config: config.Default(), Table: buildTable(fullVocab...), Producer: prod})
	require.NoError(t, err)
	return c, prod
}

// TestRequest_ColdCacheAlwaysGeneratesNew is scenario S1: against an empty
// cache any prompt decides "new", and the façade inserts the producer's
// result.
func TestRequest_ColdCacheAlwaysGeneratesNew(t *testing.T) {
	c, prod := newTestCache(t)

	res, err := c.Request(context.Background(), "a cat on windowsill", cachemodel.ContextFingerprint{}, nil)
	require.NoError(t, err)
	assert.Equal(t, decision.New, res.Decision.Action)
	assert.Equal(t, 1.0, res.Decision.Confidence)
	assert.Equal(t, 0.0, res.Decision.Uncertainty)
	assert.Equal(t, 1, prod.calls)

	item, ok := c.Get(res.Item.ID, cachemodel.ContextFingerprint{})
	require.True(t, ok)
	assert.Equal(t, res.Item.ID, item.ID)
}

// TestRequest_ExactMatchHitsOrDiffs is scenario S2: re-requesting the exact
// same prompt that seeded the cache resolves to the same item, whether the
// ensemble lands on hit or diff.
func TestRequest_ExactMatchHitsOrDiffs(t *testing.T) {
	c, _ := newTestCache(t)

	first, err := c.Request(context.Background(), "a cat on windowsill", cachemodel.ContextFingerprint{}, nil)
	require.NoError(t, err)
	require.Equal(t, decision.New, first.Decision.Action)

	second, err := c.Request(context.Background(), "a cat on windowsill", cachemodel.ContextFingerprint{}, nil)
	require.NoError(t, err)
	assert.Contains(t, []decision.Action{decision.Hit, decision.Diff}, second.Decision.Action)
	require.NotNil(t, second.Decision.MatchedItem)
	assert.Equal(t, first.Item.ID, second.Decision.MatchedItem.ID)
}

// TestRequest_DissimilarPromptYieldsNew is scenario S3: an unrelated prompt
// against a warm single-item cache still decides "new".
func TestRequest_DissimilarPromptYieldsNew(t *testing.T) {
	c, _ := newTestCache(t)

	_, err := c.Request(context.Background(), "a cat on windowsill", cachemodel.ContextFingerprint{}, nil)
	require.NoError(t, err)

	second, err := c.Request(context.Background(), "futuristic cyberpunk city", cachemodel.ContextFingerprint{}, nil)
	require.NoError(t, err)
	assert.Equal(t, decision.New, second.Decision.Action)
}

func TestNew_RequiresTableAndProducer(t *testing.T) {
	_, err := New(Options{Producer: &fakeProducer{}})
	assert.Error(t, err)

	_, err = New(Options{Table: embedtable.NewInMemory()})
	assert.Error(t, err)
}

func TestAddGetRemove_RoundTrip(t *testing.T) {
	c, _ := newTestCache(t)

	vec := c.vec.Vectorize("a dog in garden")
	item := cachemodel.NewCacheItem(vec, []byte("payload"), cachemodel.Metadata{OriginalPrompt: "a dog in garden"}, 0.2)
	require.NoError(t, c.Add(item, cachemodel.L1))

	got, ok := c.Get(item.ID, cachemodel.ContextFingerprint{})
	require.True(t, ok)
	assert.Equal(t, item.ID, got.ID)
	// insertion seeds AccessCount to 1, the Get above is itself an access
	assert.GreaterOrEqual(t, got.AccessCount, int64(2))

	c.Remove(item.ID)
	_, ok = c.Get(item.ID, cachemodel.ContextFingerprint{})
	assert.False(t, ok)

	// idempotent
	c.Remove(item.ID)
}

func TestStatisticsAndHealth_ReflectActivity(t *testing.T) {
	c, _ := newTestCache(t)

	_, err := c.Request(context.Background(), "a cat on windowsill", cachemodel.ContextFingerprint{}, nil)
	require.NoError(t, err)

	stats := c.Statistics()
	assert.Equal(t, int64(1), stats.Misses)

	health := c.HealthReport()
	assert.Equal(t, int64(1), health.TotalOps)
	for _, frac := range health.MemoryUsage {
		assert.LessOrEqual(t, frac, 1.0)
	}
}

func TestOptimizeMemory_ReturnsNonNegativeFreed(t *testing.T) {
	c, _ := newTestCache(t)
	freed := c.OptimizeMemory()
	assert.GreaterOrEqual(t, freed, int64(0))
}

func TestClearCache_RemovesFromStorageAndShardIndex(t *testing.T) {
	c, _ := newTestCache(t)
	_, err := c.Request(context.Background(), "a cat on windowsill", cachemodel.ContextFingerprint{}, nil)
	require.NoError(t, err)

	removed := c.ClearCache("")
	assert.Equal(t, 1, removed)

	results := c.Search("a cat on windowsill", 5, cachemodel.ContextFingerprint{}, false)
	assert.Empty(t, results)
}

func TestSnapshotRestore_RoundTrip(t *testing.T) {
	c, _ := newTestCache(t)
	res, err := c.Request(context.Background(), "a cat on windowsill", cachemodel.ContextFingerprint{}, nil)
	require.NoError(t, err)

	payload, err := c.Snapshot()
	require.NoError(t, err)

	c2, _ := newTestCache(t)
	require.NoError(t, c2.Restore(payload))

	got, ok := c2.Get(res.Item.ID, cachemodel.ContextFingerprint{})
	require.True(t, ok)
	assert.Equal(t, res.Item.ID, got.ID)
}

func TestRecordFeedback_TrainsEnsembleAndThreshold(t *testing.T) {
	c, _ := newTestCache(t)
	res, err := c.Request(context.Background(), "a cat on windowsill", cachemodel.ContextFingerprint{}, nil)
	require.NoError(t, err)

	query := c.vec.Vectorize("a cat on windowsill")
	for i := 0; i < 60; i++ {
		c.RecordFeedback(cachemodel.FeedbackRecord{
			PromptID: "p", ResultID: res.Item.ID,
			Explicit: cachemodel.Rejected,
			Implicit: cachemodel.ImplicitFeedback{RegenerationCount: 0},
		}, query, res.Item)
	}

	stats := c.Statistics()
	assert.GreaterOrEqual(t, stats.ThresholdHitCut, 0.85)
}
