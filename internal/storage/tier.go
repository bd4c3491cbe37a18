// Package storage implements the four-tier hierarchical cache (C10) and
// the composite eviction policy that keeps each tier within its capacity
// (C11).
package storage

import (
	"sync"
	"time"

	"github.com/blueberrycongee/semcache/internal/cachemodel"
)

// defaultMemoryLimitFraction is the fraction of capacity a tier may use
// before eviction kicks in (§4.7) when the caller leaves
// config.Config.MemoryLimit unset or invalid. Store threads the real,
// validated value in from config via Options.MemoryLimitFraction.
const defaultMemoryLimitFraction = 0.92

// defaultCapacities are the default per-tier byte budgets (§6).
var defaultCapacities = map[cachemodel.Tier]int64{
	cachemodel.L1:   100 * 1 << 20,
	cachemodel.L2:   500 * 1 << 20,
	cachemodel.L3:   2 * 1 << 30,
	cachemodel.Cold: 10 * 1 << 30,
}

// defaultLatencies are the nominal per-tier access costs (§4.7); informational
// only, not enforced as real delays (the core has no suspension points).
var defaultLatencies = map[cachemodel.Tier]time.Duration{
	cachemodel.L1:   1 * time.Millisecond,
	cachemodel.L2:   5 * time.Millisecond,
	cachemodel.L3:   10 * time.Millisecond,
	cachemodel.Cold: 50 * time.Millisecond,
}

// defaultPromotionThreshold is the access_count at which a promotion is
// triggered (§4.7) when Options.PromotionThreshold does not override it.
const defaultPromotionThreshold = 10

// Tier is one hierarchical storage layer: a capacity-bounded map of
// member items guarded by its own lock (§5: one lock per tier, never held
// across callbacks — there are none here).
type Tier struct {
	mu                  sync.RWMutex
	Level               cachemodel.Tier
	Capacity            int64
	Latency             time.Duration
	MemoryLimitFraction float64
	currentUsage        int64
	members             map[string]*cachemodel.CacheItem
}

func newTier(level cachemodel.Tier, capacity int64, latency time.Duration, memoryLimitFraction float64) *Tier {
	if memoryLimitFraction <= 0 || memoryLimitFraction > 1 {
		memoryLimitFraction = defaultMemoryLimitFraction
	}
	return &Tier{
		Level:               level,
		Capacity:            capacity,
		Latency:             latency,
		MemoryLimitFraction: memoryLimitFraction,
		members:             make(map[string]*cachemodel.CacheItem),
	}
}

// CurrentUsage returns the tier's current_usage invariant value (§3/§8
// property 1): always equal to the sum of member sizes.
func (t *Tier) CurrentUsage() int64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.currentUsage
}

// Len returns the number of items currently in the tier.
func (t *Tier) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.members)
}

// maxUsage is the capacity cap enforced on insert (§3/§8 property 1).
func (t *Tier) maxUsage() int64 {
	return int64(float64(t.Capacity) * t.MemoryLimitFraction)
}

func (t *Tier) get(id string) (*cachemodel.CacheItem, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	item, ok := t.members[id]
	return item, ok
}

// insertLocked adds item assuming the caller has already ensured there is
// room (via eviction); it is the single place currentUsage is mutated on
// insert, keeping the invariant atomic from this tier's perspective. A
// freshly constructed item (AccessCount 0) is seeded to 1 here: placing it
// in a tier is itself an observed access, so a later add(x)+get(x.id)
// round trip satisfies the access_count >= 2 invariant (spec §8 property
// 10). Items already carrying a higher count (promotion/demotion moves)
// are left untouched.
func (t *Tier) insertLocked(item *cachemodel.CacheItem) {
	if item.AccessCount < 1 {
		item.AccessCount = 1
	}
	t.members[item.ID] = item
	item.Tier = t.Level
	t.currentUsage += int64(item.Size())
}

func (t *Tier) removeLocked(id string) (*cachemodel.CacheItem, bool) {
	item, ok := t.members[id]
	if !ok {
		return nil, false
	}
	delete(t.members, id)
	t.currentUsage -= int64(item.Size())
	return item, true
}

func (t *Tier) snapshotLocked() []*cachemodel.CacheItem {
	out := make([]*cachemodel.CacheItem, 0, len(t.members))
	for _, item := range t.members {
		out = append(out, item)
	}
	return out
}

// Snapshot returns a point-in-time copy of every item currently in the
// tier, used by Store.AllItems.
func (t *Tier) Snapshot() []*cachemodel.CacheItem {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.snapshotLocked()
}
