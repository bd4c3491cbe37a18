// Package decision implements the decision engine (C9): combines the
// similarity, uncertainty, ensemble, and threshold components into a
// single hit/diff/new action for a query against a bounded candidate list.
package decision

import (
	"github.com/blueberrycongee/semcache/internal/cachemodel"
	"github.com/blueberrycongee/semcache/internal/ensemble"
	"github.com/blueberrycongee/semcache/internal/semvector"
	"github.com/blueberrycongee/semcache/internal/similarity"
	"github.com/blueberrycongee/semcache/internal/threshold"
	"github.com/blueberrycongee/semcache/internal/uncertainty"
)

// Action is re-exported from cachemodel so callers needn't import both.
type Action = cachemodel.Action

const (
	Hit  = cachemodel.ActionHit
	Diff = cachemodel.ActionDiff
	New  = cachemodel.ActionNew
)

// Decision is the outcome of one decide() call.
type Decision struct {
	Action       Action
	MatchedItem  *cachemodel.CacheItem
	Similarity   float64
	Confidence   float64
	Uncertainty  float64
	DiffStrength float64
}

// Engine owns the ensemble model and threshold adapter it reads on every
// decision, and exposes the uncertainty downgrade threshold.
type Engine struct {
	Ensemble               *ensemble.Model
	Threshold              *threshold.Adapter
	UncertaintyDowngrade float64 // in [0.2, 0.5] per deployment, spec §4.6
}

// NewEngine wires an engine from the ensemble model and threshold adapter
// the façade owns, with the given uncertainty downgrade cutoff.
func NewEngine(em *ensemble.Model, th *threshold.Adapter, uncertaintyDowngrade float64) *Engine {
	return &Engine{Ensemble: em, Threshold: th, UncertaintyDowngrade: uncertaintyDowngrade}
}

// Decide runs the full C5-C9 pipeline for query against candidates (§4.6).
// An empty candidate list always yields "new" with confidence 1.0 and
// uncertainty 0.0, independent of everything else (§4.6, testable
// property 8, scenario S1).
func (e *Engine) Decide(query *semvector.MultiLayerVector, candidates []*cachemodel.CacheItem) Decision {
	if len(candidates) == 0 {
		return Decision{Action: New, Confidence: 1.0, Uncertainty: 0.0}
	}

	var best *scoredCandidate
	for _, c := range candidates {
		metrics := similarity.Compute(query, c.Vector)
		predicted := e.Ensemble.Predict(metrics)
		report := uncertainty.Quantify(metrics)

		cand := &scoredCandidate{item: c, metrics: metrics, predicted: predicted, report: report}

		if best == nil || isBetter(cand, best) {
			best = cand
		}
	}

	action := e.Threshold.Current().ActionFor(best.predicted)
	uncert := best.report.Uncertainty
	if uncert > e.UncertaintyDowngrade {
		action = downgrade(action)
	}

	d := Decision{
		Action:      action,
		MatchedItem: best.item,
		Similarity:  best.predicted,
		Confidence:  best.report.Confidence,
		Uncertainty: uncert,
	}
	if action == Diff {
		d.DiffStrength = 1 - best.predicted
	}
	return d
}

// scoredCandidate is one candidate's computed similarity/uncertainty,
// kept around only long enough to pick the best one per Decide call.
type scoredCandidate struct {
	item      *cachemodel.CacheItem
	metrics   similarity.Metrics
	predicted float64
	report    uncertainty.Report
}

// isBetter implements the tie-break order from §4.6: higher predicted
// similarity wins; ties broken by lower uncertainty, then by more recent
// last_access.
func isBetter(a, b *scoredCandidate) bool {
	if a.predicted != b.predicted {
		return a.predicted > b.predicted
	}
	if a.report.Uncertainty != b.report.Uncertainty {
		return a.report.Uncertainty < b.report.Uncertainty
	}
	return a.item.LastAccess.After(b.item.LastAccess)
}

// downgrade maps an action one step toward "new", never upgrading
// (§4.6): hit->diff, diff->new, new stays new.
func downgrade(a Action) Action {
	switch a {
	case Hit:
		return Diff
	case Diff:
		return New
	default:
		return New
	}
}
