package decision

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/blueberrycongee/semcache/internal/cachemodel"
	"github.com/blueberrycongee/semcache/internal/ensemble"
	"github.com/blueberrycongee/semcache/internal/semvector"
	"github.com/blueberrycongee/semcache/internal/threshold"
)

func flatVector(seed float32) *semvector.MultiLayerVector {
	v := &semvector.MultiLayerVector{Layers: make(map[semvector.Kind]semvector.Vector, len(semvector.Kinds)), Timestamp: time.Now()}
	for _, k := range semvector.Kinds {
		vec := make([]float32, semvector.Dimension(k))
		for i := range vec {
			vec[i] = seed
		}
		v.Layers[k] = vec
	}
	for i := 0; i < 5; i++ {
		v.Relation[i][i] = 1
	}
	return v
}

func TestDecide_EmptyCandidatesAlwaysNew(t *testing.T) {
	em := ensemble.NewModel(ensemble.DefaultParameters())
	th := threshold.NewAdapter(threshold.Default())
	e := NewEngine(em, th, 0.3)

	d := e.Decide(flatVector(1), nil)
	assert.Equal(t, New, d.Action)
	assert.Equal(t, 1.0, d.Confidence)
	assert.Equal(t, 0.0, d.Uncertainty)
}

func TestDecide_HighUncertaintyDowngradesOneStep(t *testing.T) {
	em := ensemble.NewModel(ensemble.Parameters{Weights: [4]float64{1, 0, 0, 0}, Bias: 10})
	th := threshold.NewAdapter(threshold.Pair{HitCut: 0.85, DiffCut: 0.65})
	e := NewEngine(em, th, 0.0) // any uncertainty triggers downgrade

	item := cachemodel.NewCacheItem(flatVector(1), []byte("x"), cachemodel.Metadata{}, 0)
	d := e.Decide(flatVector(1), []*cachemodel.CacheItem{item})

	assert.NotEqual(t, Hit, d.Action)
}

func TestDecide_TieBreaksByLowerUncertaintyThenRecency(t *testing.T) {
	em := ensemble.NewModel(ensemble.DefaultParameters())
	th := threshold.NewAdapter(threshold.Default())
	e := NewEngine(em, th, 0.5)

	older := cachemodel.NewCacheItem(flatVector(1), []byte("a"), cachemodel.Metadata{}, 0)
	older.LastAccess = time.Now().Add(-time.Hour)
	newer := cachemodel.NewCacheItem(flatVector(1), []byte("b"), cachemodel.Metadata{}, 0)
	newer.LastAccess = time.Now()

	d := e.Decide(flatVector(1), []*cachemodel.CacheItem{older, newer})
	assert.Equal(t, newer.ID, d.MatchedItem.ID)
}
