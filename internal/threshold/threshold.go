// Package threshold implements the adaptive two-cut-point threshold (C8):
// similarity >= hit_cut -> hit, >= diff_cut -> diff, else new. Cut points
// adapt from aggregated feedback acceptance rates.
package threshold

import (
	"math"
	"sync"

	"github.com/blueberrycongee/semcache/internal/cachemodel"
)

// Action mirrors cachemodel.Action locally to avoid a decision package
// importing threshold importing decision in a cycle; both alias the same
// three string values.
type Action = cachemodel.Action

const (
	Hit  = cachemodel.ActionHit
	Diff = cachemodel.ActionDiff
	New  = cachemodel.ActionNew
)

// Pair is the spec's ThresholdPair (§3), always kept within its invariant:
// hit_cut >= diff_cut + epsilon, hit_cut in [0.7,0.95], diff_cut in
// [0.4, hit_cut-0.05].
type Pair struct {
	HitCut  float64
	DiffCut float64
}

const epsilon = 1e-9

// Default gives the spec's documented defaults (§6).
func Default() Pair {
	return clamp(Pair{HitCut: 0.85, DiffCut: 0.65})
}

func clamp(p Pair) Pair {
	if p.HitCut < 0.7 {
		p.HitCut = 0.7
	}
	if p.HitCut > 0.95 {
		p.HitCut = 0.95
	}
	maxDiff := p.HitCut - 0.05
	if p.DiffCut > maxDiff {
		p.DiffCut = maxDiff
	}
	if p.DiffCut < 0.4 {
		p.DiffCut = 0.4
	}
	if p.HitCut < p.DiffCut+epsilon {
		p.HitCut = p.DiffCut + 0.05
	}
	return p
}

// ActionFor maps a similarity score to hit/diff/new via the current cut
// points (§4.5).
func (p Pair) ActionFor(similarity float64) Action {
	switch {
	case similarity >= p.HitCut:
		return Hit
	case similarity >= p.DiffCut:
		return Diff
	default:
		return New
	}
}

const (
	minFeedbackForUpdate = 50
	minSamplesPerAction  = 10
)

// Adapter holds the live threshold pair and the bounded feedback buffer it
// learns from (spec §5: bounded queue of 1000, drops oldest on overflow).
type Adapter struct {
	mu       sync.RWMutex
	pair     Pair
	feedback []cachemodel.FeedbackRecord
}

const maxFeedback = 1000

// NewAdapter creates an adapter starting from the given pair.
func NewAdapter(start Pair) *Adapter {
	return &Adapter{pair: clamp(start)}
}

// Current returns a copy of the live threshold pair.
func (a *Adapter) Current() Pair {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.pair
}

// Set atomically republishes pair (clamped to the invariant), e.g. when
// restoring a snapshot exported by an earlier process.
func (a *Adapter) Set(pair Pair) {
	a.mu.Lock()
	a.pair = clamp(pair)
	a.mu.Unlock()
}

// Observe appends a feedback record to the bounded buffer.
func (a *Adapter) Observe(r cachemodel.FeedbackRecord) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.feedback = append(a.feedback, r)
	if len(a.feedback) > maxFeedback {
		a.feedback = a.feedback[len(a.feedback)-maxFeedback:]
	}
}

// Optimize applies the update rule of §4.5 once at least 50 feedback
// records have accumulated, atomically publishing the new pair. Idempotent
// and safe to call concurrently with ActionFor/Observe.
func (a *Adapter) Optimize() {
	a.mu.RLock()
	records := append([]cachemodel.FeedbackRecord(nil), a.feedback...)
	current := a.pair
	a.mu.RUnlock()

	if len(records) < minFeedbackForUpdate {
		return
	}

	rates := acceptanceRates(records)

	next := current
	if hit, ok := rates[Hit]; ok && hit.total >= minSamplesPerAction {
		rate := hit.acceptanceRate()
		if rate < 0.7 {
			next.HitCut += 0.02
		} else if rate > 0.9 {
			// lowering stops at 0.75; a cut already below that is left as is.
			next.HitCut = math.Max(next.HitCut-0.01, math.Min(next.HitCut, 0.75))
		}
	}
	if diff, ok := rates[Diff]; ok && diff.total >= minSamplesPerAction {
		rate := diff.acceptanceRate()
		if rate < 0.6 {
			next.DiffCut += 0.02
		} else if rate > 0.85 {
			next.DiffCut -= 0.01
		}
	}

	next = clamp(next)

	a.mu.Lock()
	a.pair = next
	a.mu.Unlock()
}

type accRate struct {
	accepted int
	total    int
}

func (r accRate) acceptanceRate() float64 {
	if r.total == 0 {
		return 0
	}
	return float64(r.accepted) / float64(r.total)
}

func acceptanceRates(records []cachemodel.FeedbackRecord) map[Action]*accRate {
	out := map[Action]*accRate{Hit: {}, Diff: {}, New: {}}
	for _, r := range records {
		rate := out[r.InferredAction()]
		rate.total++
		if r.Explicit == cachemodel.Accepted {
			rate.accepted++
		}
	}
	return out
}
