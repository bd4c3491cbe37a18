package semcache

import (
	"time"

	"github.com/blueberrycongee/semcache/pkg/semcache/snapshot"
)

// Snapshot exports the full live state — every item across every tier
// plus the ensemble and threshold learned parameters — for a host to
// persist across a restart (§1 Non-goals carve-out: the core stays
// memory-only, durability is the host's opt-in via this method).
func (c *Cache) Snapshot() (snapshot.Payload, error) {
	items := c.store.AllItems()
	params := c.engine.Ensemble.Parameters()
	pair := c.engine.Threshold.Current()
	return snapshot.ToPayload(items, params, pair, time.Now())
}

// Restore loads a previously exported Payload back into the cache: every
// item is re-added via Add into the tier recorded in the snapshot (its
// shard is re-derived from its vector), and the ensemble/threshold
// parameters are republished as the live
// state. Existing cache contents are not cleared first; callers that want
// a clean restore should ClearCache beforehand.
func (c *Cache) Restore(payload snapshot.Payload) error {
	items, err := payload.Items()
	if err != nil {
		return err
	}
	for _, item := range items {
		if err := c.Add(item, item.Tier); err != nil {
			return err
		}
	}

	c.engine.Ensemble.SetParameters(payload.Ensemble)
	c.engine.Threshold.Set(payload.Threshold)
	return nil
}
