// Package cachemodel holds the domain structs shared across the storage,
// sharding, prefetch, and decision packages: CacheItem, its owning tier,
// access patterns, and feedback records.
package cachemodel

import (
	"time"

	"github.com/google/uuid"

	"github.com/blueberrycongee/semcache/internal/semvector"
)

// Tier identifies which storage layer currently owns an item.
type Tier string

const (
	L1   Tier = "L1"
	L2   Tier = "L2"
	L3   Tier = "L3"
	Cold Tier = "cold"
)

// Tiers lists every tier from hottest to coldest.
var Tiers = []Tier{L1, L2, L3, Cold}

// Metadata carries the original-generation bookkeeping for an item (§3).
type Metadata struct {
	OriginalPrompt    string
	GenerationParams  map[string]any
	SizeBytes         int
	Format            string
	Width, Height     int
	CreationTimestamp time.Time
}

// CacheItem is a single cached generation result (§3). id is unique;
// AccessCount is monotone non-decreasing; a given id resides in exactly
// one tier at a time, tracked here for diagnostics (the storage package is
// the source of truth for current membership).
type CacheItem struct {
	ID                 string
	Vector             *semvector.MultiLayerVector
	Payload            []byte
	Metadata           Metadata
	AccessCount        int64
	LastAccess         time.Time
	GenerationDifficulty float64 // cost to regenerate from scratch, in [0,1]
	Tier               Tier
}

// NewCacheItem builds a fresh item with a generated ID, placed in the cold
// tier (storage overwrites the tier when the item is added).
func NewCacheItem(vector *semvector.MultiLayerVector, payload []byte, meta Metadata, difficulty float64) *CacheItem {
	now := time.Now()
	meta.CreationTimestamp = now
	return &CacheItem{
		ID:                   uuid.New().String(),
		Vector:               vector,
		Payload:              payload,
		Metadata:             meta,
		AccessCount:          0,
		LastAccess:           now,
		GenerationDifficulty: clamp01(difficulty),
		Tier:                 Cold,
	}
}

// Size returns the item's contribution to a tier's current_usage: payload
// bytes, a rough estimate of serialized metadata, plus the layer vectors
// (4 bytes per float32 component) and the 5x5 relation matrix (8 bytes per
// float64 cell), per §4.7.
func (c *CacheItem) Size() int {
	size := len(c.Payload) + len(c.Metadata.OriginalPrompt) + len(c.Metadata.Format) + 64
	if c.Vector != nil {
		for _, layer := range c.Vector.Layers {
			size += 4 * len(layer)
		}
		size += 8 * 25
	}
	return size
}

func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}
