package storage

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/blueberrycongee/semcache/internal/cachemodel"
	"github.com/blueberrycongee/semcache/internal/metrics"
	"github.com/blueberrycongee/semcache/pkg/cacheerr"
)

// ColdOverflow is the optional spill target for items demoted out of the
// cold tier entirely. When set on Store, a cold-tier eviction that would
// otherwise drop the item spills it here instead, and a cold-tier miss
// falls through to a rehydrate attempt (§4.7: Redis-backed cold overflow,
// internal/storage/redisbackend.Store satisfies this).
type ColdOverflow interface {
	Put(ctx context.Context, item *cachemodel.CacheItem) error
	Get(ctx context.Context, id string) (*cachemodel.CacheItem, bool, error)
	Delete(ctx context.Context, id string) error
}

// Store is the hierarchical storage façade over the four tiers (C10).
// Each tier has its own lock; Store never holds more than one tier's lock
// at a time across a blocking call (§5).
type Store struct {
	tiers              map[cachemodel.Tier]*Tier
	evictionWeights    EvictionWeights
	promotionThreshold int64
	coldOverflow       ColdOverflow
}

// Options configures tier capacities and the eviction/promotion policy.
type Options struct {
	Capacities          map[cachemodel.Tier]int64
	EvictionWeights     EvictionWeights
	PromotionThreshold  int64
	MemoryLimitFraction float64
	ColdOverflow        ColdOverflow
}

// DefaultOptions gives the spec's documented defaults (§6).
func DefaultOptions() Options {
	return Options{
		Capacities:          defaultCapacities,
		EvictionWeights:     DefaultEvictionWeights(),
		PromotionThreshold:  defaultPromotionThreshold,
		MemoryLimitFraction: defaultMemoryLimitFraction,
	}
}

// New creates a Store with the four tiers initialized per opts.
func New(opts Options) *Store {
	s := &Store{
		tiers:              make(map[cachemodel.Tier]*Tier, 4),
		evictionWeights:    opts.EvictionWeights,
		promotionThreshold: opts.PromotionThreshold,
		coldOverflow:       opts.ColdOverflow,
	}
	for _, level := range cachemodel.Tiers {
		capacity := opts.Capacities[level]
		if capacity == 0 {
			capacity = defaultCapacities[level]
		}
		s.tiers[level] = newTier(level, capacity, defaultLatencies[level], opts.MemoryLimitFraction)
	}
	return s
}

// Tier returns the named tier, or nil if level is not one of the four
// recognized tiers (§7: "a requested tier is missing" is a configuration
// error, logged by the caller, not fatal here).
func (s *Store) Tier(level cachemodel.Tier) *Tier {
	return s.tiers[level]
}

// PlacementTier applies the insert placement rule of §4.7: access_count >
// 100 -> L1, > 10 -> L2, > 1 -> L3, else cold.
func PlacementTier(accessCount int64) cachemodel.Tier {
	switch {
	case accessCount > 100:
		return cachemodel.L1
	case accessCount > 10:
		return cachemodel.L2
	case accessCount > 1:
		return cachemodel.L3
	default:
		return cachemodel.Cold
	}
}

// Add places item into the given tier (or the placement-rule tier derived
// from its access count when preferred is empty), evicting lower-scored
// members of that tier if needed to fit. Fails atomically — no partial
// membership — if eviction cannot free enough room (§4.7, §7).
func (s *Store) Add(item *cachemodel.CacheItem, preferred cachemodel.Tier) error {
	level := preferred
	if level == "" {
		level = PlacementTier(item.AccessCount)
	}
	tier := s.tiers[level]
	if tier == nil {
		return cacheerr.New(cacheerr.Configuration, fmt.Sprintf("unknown tier %q", level))
	}

	tier.mu.Lock()
	defer tier.mu.Unlock()

	needed := int64(item.Size())
	if tier.currentUsage+needed > tier.maxUsage() {
		over := tier.currentUsage + needed - tier.maxUsage()
		candidates := tier.snapshotLocked()
		victims, ok := selectVictims(candidates, s.evictionWeights, over, time.Now())
		if !ok {
			return cacheerr.New(cacheerr.CapacityExhausted, fmt.Sprintf("tier %s cannot free %d bytes", level, needed))
		}
		for _, v := range victims {
			tier.removeLocked(v.ID)
			metrics.EvictionsTotal.WithLabelValues(string(level)).Inc()
			// a cold-tier eviction is the last stop before the item would be
			// dropped outright; spill it to the configured overflow instead
			// when one is wired (§4.7).
			if level == cachemodel.Cold && s.coldOverflow != nil {
				_ = s.coldOverflow.Put(context.Background(), v)
			}
		}
	}

	tier.insertLocked(item)
	return nil
}

// Lookup searches L1->L2->L3->cold for id. On a match, it increments
// access_count and updates last_access before returning (§4.7, testable
// property 10). On a full miss, it falls through to the optional cold
// overflow (§4.7): a hit there is rehydrated back into the cold tier so
// subsequent lookups are served from memory again.
func (s *Store) Lookup(id string) (*cachemodel.CacheItem, bool) {
	for _, level := range cachemodel.Tiers {
		tier := s.tiers[level]
		tier.mu.Lock()
		item, ok := tier.members[id]
		if ok {
			item.AccessCount++
			item.LastAccess = time.Now()
			tier.mu.Unlock()
			return item, true
		}
		tier.mu.Unlock()
	}

	if s.coldOverflow == nil {
		return nil, false
	}
	item, ok, err := s.coldOverflow.Get(context.Background(), id)
	if err != nil || !ok {
		return nil, false
	}
	item.AccessCount++
	item.LastAccess = time.Now()
	if err := s.Add(item, cachemodel.Cold); err == nil {
		_ = s.coldOverflow.Delete(context.Background(), id)
	}
	return item, true
}

// Remove deletes id from whichever tier owns it, and from the cold
// overflow if one is wired. Idempotent: removing an absent id is a no-op,
// not an error (§7).
func (s *Store) Remove(id string) (*cachemodel.CacheItem, bool) {
	if s.coldOverflow != nil {
		_ = s.coldOverflow.Delete(context.Background(), id)
	}
	for _, level := range cachemodel.Tiers {
		tier := s.tiers[level]
		tier.mu.Lock()
		item, ok := tier.removeLocked(id)
		tier.mu.Unlock()
		if ok {
			return item, true
		}
	}
	return nil, false
}

var promotionOrder = map[cachemodel.Tier]cachemodel.Tier{
	cachemodel.Cold: cachemodel.L3,
	cachemodel.L3:   cachemodel.L2,
	cachemodel.L2:   cachemodel.L1,
}

var demotionOrder = map[cachemodel.Tier]cachemodel.Tier{
	cachemodel.L1: cachemodel.L2,
	cachemodel.L2: cachemodel.L3,
	cachemodel.L3: cachemodel.Cold,
}

// Promote moves id one tier up (cold->L3->L2->L1; L1 is terminal). A
// no-op if id is already in L1 or not found.
func (s *Store) Promote(id string) error {
	return s.move(id, promotionOrder, metrics.PromotionsTotal)
}

// Demote moves id one tier down (L1->L2->L3->cold; cold is terminal).
func (s *Store) Demote(id string) error {
	return s.move(id, demotionOrder, metrics.DemotionsTotal)
}

func (s *Store) move(id string, order map[cachemodel.Tier]cachemodel.Tier, counter prometheus.Counter) error {
	item, ok := s.Remove(id)
	if !ok {
		return nil
	}
	next, hasNext := order[item.Tier]
	if !hasNext {
		// terminal tier for this direction: put it back where it was.
		return s.Add(item, item.Tier)
	}
	if err := s.Add(item, next); err != nil {
		// fall back to the original tier rather than losing the item.
		_ = s.Add(item, item.Tier)
		return err
	}
	counter.Inc()
	return nil
}

// ShouldPromote reports whether item's access_count has crossed the
// configured promotion threshold (§4.7).
func (s *Store) ShouldPromote(item *cachemodel.CacheItem) bool {
	return item.AccessCount >= s.promotionThreshold && item.Tier != cachemodel.L1
}

// OptimizeMemory demotes the bottom 20% by score from each tier that
// exceeds its configured memory_limit cap, cascading L1->L2->L3->cold,
// and returns the total bytes freed (§4.10).
func (s *Store) OptimizeMemory() int64 {
	var freed int64
	order := []cachemodel.Tier{cachemodel.L1, cachemodel.L2, cachemodel.L3}
	for _, level := range order {
		tier := s.tiers[level]
		tier.mu.RLock()
		over := tier.currentUsage > tier.maxUsage()
		members := tier.snapshotLocked()
		tier.mu.RUnlock()
		if !over || len(members) == 0 {
			continue
		}

		now := time.Now()
		sortedByScore := append([]*cachemodel.CacheItem(nil), members...)
		sort.Slice(sortedByScore, func(i, j int) bool {
			return Score(sortedByScore[i], s.evictionWeights, now) < Score(sortedByScore[j], s.evictionWeights, now)
		})

		n := len(sortedByScore) / 5
		if n == 0 {
			n = 1
		}
		for _, item := range sortedByScore[:n] {
			before := item.Size()
			if err := s.Demote(item.ID); err == nil {
				freed += int64(before)
			}
		}
	}
	return freed
}

// AllItems returns every item across every tier, used for the façade's
// snapshot operation.
func (s *Store) AllItems() []*cachemodel.CacheItem {
	var out []*cachemodel.CacheItem
	for _, level := range cachemodel.Tiers {
		out = append(out, s.tiers[level].Snapshot()...)
	}
	return out
}

// Clear removes every item from level, or from every tier when level is
// the zero value (§9 open question: ClearCache now actually clears).
func (s *Store) Clear(level cachemodel.Tier) []*cachemodel.CacheItem {
	levels := cachemodel.Tiers
	if level != "" {
		levels = []cachemodel.Tier{level}
	}
	var removed []*cachemodel.CacheItem
	for _, l := range levels {
		tier := s.tiers[l]
		tier.mu.Lock()
		for id := range tier.members {
			if item, ok := tier.removeLocked(id); ok {
				removed = append(removed, item)
			}
		}
		tier.mu.Unlock()
	}
	return removed
}
