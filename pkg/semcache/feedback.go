package semcache

import (
	"github.com/blueberrycongee/semcache/internal/cachemodel"
	"github.com/blueberrycongee/semcache/internal/ensemble"
	"github.com/blueberrycongee/semcache/internal/semvector"
	"github.com/blueberrycongee/semcache/internal/similarity"
)

// RecordFeedback feeds one observation into both the threshold adapter
// (C8) and, when query/matched are known, the ensemble model (C7), then
// runs each component's optimize step (§3 "feedback is fed back into C7
// and C8"; §9 open question, resolved: feedback is no longer a no-op).
//
// query and matched may be nil when the decision was "new" with no
// candidate to compare against — the record still trains the threshold
// adapter's acceptance-rate statistics.
func (c *Cache) RecordFeedback(r cachemodel.FeedbackRecord, query *semvector.MultiLayerVector, matched *cachemodel.CacheItem) {
	c.engine.Threshold.Observe(r)
	c.engine.Threshold.Optimize()

	if query == nil || matched == nil {
		return
	}

	metrics := similarity.Compute(query, matched.Vector)
	c.engine.Ensemble.Observe(ensemble.Sample{Metrics: metrics, GroundTruth: groundTruth(r)})
	c.engine.Ensemble.Optimize()
}

// groundTruth maps explicit feedback to a training label: accepted means
// the match was a correct hit (label 1.0), rejected means it was not
// (label 0.0). Absent an explicit verdict, the implicit regeneration
// heuristic stands in (0 regenerations -> 1.0, else 0.0).
func groundTruth(r cachemodel.FeedbackRecord) float64 {
	switch r.Explicit {
	case cachemodel.Accepted:
		return 1.0
	case cachemodel.Rejected:
		return 0.0
	default:
		if r.InferredAction() == cachemodel.ActionHit {
			return 1.0
		}
		return 0.0
	}
}
