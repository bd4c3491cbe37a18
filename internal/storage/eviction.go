package storage

import (
	"math"
	"sort"
	"time"

	"github.com/blueberrycongee/semcache/internal/cachemodel"
)

// EvictionWeights are the composite eviction score's alpha/beta/gamma
// (§4.7 defaults: frequency and difficulty weighted equally, age
// subtracted at half that weight).
type EvictionWeights struct {
	Alpha float64 // frequency
	Beta  float64 // difficulty
	Gamma float64 // age
}

// DefaultEvictionWeights matches §4.7's documented defaults.
func DefaultEvictionWeights() EvictionWeights {
	return EvictionWeights{Alpha: 0.4, Beta: 0.4, Gamma: 0.2}
}

const maxAge = 24 * time.Hour

// Score computes the composite eviction score for item (§4.7):
// score = alpha*normalized_frequency + beta*normalized_difficulty -
// gamma*normalized_age. Lower scores are evicted first.
func Score(item *cachemodel.CacheItem, w EvictionWeights, now time.Time) float64 {
	freq := normalizedFrequency(item.AccessCount)
	difficulty := item.GenerationDifficulty
	age := normalizedAge(now.Sub(item.LastAccess))
	return w.Alpha*freq + w.Beta*difficulty - w.Gamma*age
}

func normalizedFrequency(accessCount int64) float64 {
	n := float64(accessCount)
	if n < 0 {
		n = 0
	}
	return math.Log(1+n) / math.Log(1001)
}

func normalizedAge(age time.Duration) float64 {
	ratio := float64(age) / float64(maxAge)
	if ratio > 1 {
		ratio = 1
	}
	if ratio < 0 {
		ratio = 0
	}
	return ratio
}

// selectVictims returns, from candidates, the lowest-scoring items whose
// combined size is at least needed bytes, in eviction order. If the full
// candidate set cannot free enough room, it returns all candidates and
// false so the caller can fail the insertion atomically (§4.7, §7
// capacity exhaustion).
func selectVictims(candidates []*cachemodel.CacheItem, w EvictionWeights, needed int64, now time.Time) ([]*cachemodel.CacheItem, bool) {
	sorted := append([]*cachemodel.CacheItem(nil), candidates...)
	sort.Slice(sorted, func(i, j int) bool {
		return Score(sorted[i], w, now) < Score(sorted[j], w, now)
	})

	var freed int64
	var victims []*cachemodel.CacheItem
	for _, item := range sorted {
		if freed >= needed {
			break
		}
		victims = append(victims, item)
		freed += int64(item.Size())
	}
	return victims, freed >= needed
}
