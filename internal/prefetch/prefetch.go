package prefetch

import (
	"sync"
	"time"

	"github.com/blueberrycongee/semcache/internal/cachemodel"
	"github.com/blueberrycongee/semcache/internal/metrics"
)

// Weights are the three-component blend of §4.9: sequence, context,
// popularity.
const (
	weightSequence   = 0.4
	weightContext    = 0.4
	weightPopularity = 0.2
)

// probabilityThreshold is the eligibility cutoff for a prefetch
// recommendation (§4.9, §6 default).
const probabilityThreshold = 0.6

// maxPredictions is the cap on ids emitted per access (§4.9, §6 default).
const maxPredictions = 5

// Prediction carries a candidate item id, its blended probability, a
// confidence derived from data sufficiency, and a diagnostic reason
// string used only for debugging (§4.9 — "used only for diagnostics").
type Prediction struct {
	ItemID     string
	Probability float64
	Confidence float64
	Reason     string
}

// Prefetcher observes accesses and predicts which items are likely to be
// requested next, for the façade to speculatively promote into L1.
type Prefetcher struct {
	sequence *SequenceTable
	log      *accessLog

	mu           sync.Mutex
	accessCounts map[string]int
	lastAccess   map[string]time.Time // item id -> last seen, to build sequences
}

// New creates a Prefetcher with empty state.
func New() *Prefetcher {
	return &Prefetcher{
		sequence:     NewSequenceTable(),
		log:          newAccessLog(),
		accessCounts: make(map[string]int),
		lastAccess:   make(map[string]time.Time),
	}
}

// Observe records an access to itemID under the given context, updating
// the sequence table for any other item accessed within the session
// window (§3, §4.9). Earlier log entries still inside the window have
// itemID appended to their FollowingItems, since it genuinely followed
// them; itemID's own pattern starts with no FollowingItems, since nothing
// has followed it yet.
func (p *Prefetcher) Observe(itemID string, ctx cachemodel.ContextFingerprint) cachemodel.AccessPattern {
	now := time.Now()

	p.mu.Lock()
	p.accessCounts[itemID]++
	for id, last := range p.lastAccess {
		if id == itemID {
			continue
		}
		if now.Sub(last) <= cachemodel.SessionWindow {
			p.sequence.Record(id, itemID)
		}
	}
	p.lastAccess[itemID] = now
	p.mu.Unlock()

	p.log.appendFollowing(itemID, now)

	pattern := cachemodel.AccessPattern{
		ItemID:             itemID,
		ContextFingerprint: ctx,
		Timestamp:          now,
	}
	p.log.append(pattern)
	return pattern
}

// Predict returns up to maxPredictions candidate items likely to be
// accessed next given the current item and query context (§4.9).
func (p *Prefetcher) Predict(current string, ctx cachemodel.ContextFingerprint) []Prediction {
	candidates := p.sequence.Candidates(current)
	if len(candidates) == 0 {
		return nil
	}

	history := p.log.snapshot()
	popCounts, maxPop := p.popularitySnapshot()

	var predictions []Prediction
	for _, x := range candidates {
		seqProb := p.sequence.Probability(current, x)
		ctxProb := contextProbability(history, ctx, x)
		popProb := 0.0
		if maxPop > 0 {
			popProb = float64(popCounts[x]) / float64(maxPop)
		}

		score := weightSequence*seqProb + weightContext*ctxProb + weightPopularity*popProb
		if score < probabilityThreshold {
			continue
		}

		predictions = append(predictions, Prediction{
			ItemID:      x,
			Probability: score,
			Confidence:  dataSufficiency(history, current),
			Reason:      reasonFor(seqProb, ctxProb, popProb),
		})
	}

	sortByProbabilityDesc(predictions)
	if len(predictions) > maxPredictions {
		predictions = predictions[:maxPredictions]
	}
	metrics.PrefetchPredictionsTotal.Add(float64(len(predictions)))
	return predictions
}

func (p *Prefetcher) popularitySnapshot() (map[string]int, int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make(map[string]int, len(p.accessCounts))
	max := 0
	for id, c := range p.accessCounts {
		out[id] = c
		if c > max {
			max = c
		}
	}
	return out, max
}

// contextProbability is the fraction of past access patterns whose
// context similarity to ctx exceeds 0.5 and whose FollowingItems contains
// x (§4.9).
func contextProbability(history []cachemodel.AccessPattern, ctx cachemodel.ContextFingerprint, x string) float64 {
	relevant := 0
	matching := 0
	for _, p := range history {
		if contextSimilarity(p.ContextFingerprint, ctx) <= 0.5 {
			continue
		}
		relevant++
		if contains(p.FollowingItems, x) {
			matching++
		}
	}
	if relevant == 0 {
		return 0
	}
	return float64(matching) / float64(relevant)
}

// contextSimilarity is an equal-weighted vote over userId match, sessionId
// match, |hour-hour| <= 1, and Jaccard of recent-prompt sets (§4.9).
func contextSimilarity(a, b cachemodel.ContextFingerprint) float64 {
	votes := 0.0
	total := 4.0

	if a.UserID != "" && a.UserID == b.UserID {
		votes++
	}
	if a.SessionID != "" && a.SessionID == b.SessionID {
		votes++
	}
	hourDiff := a.Hour - b.Hour
	if hourDiff < 0 {
		hourDiff = -hourDiff
	}
	if hourDiff <= 1 {
		votes++
	}
	votes += jaccard(a.RecentPrompts, b.RecentPrompts)

	return votes / total
}

func jaccard(a, b []string) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	setA := make(map[string]struct{}, len(a))
	for _, s := range a {
		setA[s] = struct{}{}
	}
	setB := make(map[string]struct{}, len(b))
	for _, s := range b {
		setB[s] = struct{}{}
	}
	intersection := 0
	for s := range setA {
		if _, ok := setB[s]; ok {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

func contains(items []string, target string) bool {
	for _, i := range items {
		if i == target {
			return true
		}
	}
	return false
}

// dataSufficiency gives a simple confidence signal: more history for the
// current item yields higher confidence in the prediction, saturating at
// 20 logged accesses of the current item.
func dataSufficiency(history []cachemodel.AccessPattern, current string) float64 {
	count := 0
	for _, p := range history {
		if p.ItemID == current {
			count++
		}
	}
	conf := float64(count) / 20
	if conf > 1 {
		conf = 1
	}
	return conf
}

func reasonFor(seq, ctx, pop float64) string {
	switch {
	case seq >= ctx && seq >= pop:
		return "sequence"
	case ctx >= seq && ctx >= pop:
		return "context"
	default:
		return "popularity"
	}
}

func sortByProbabilityDesc(p []Prediction) {
	for i := 1; i < len(p); i++ {
		for j := i; j > 0 && p[j].Probability > p[j-1].Probability; j-- {
			p[j], p[j-1] = p[j-1], p[j]
		}
	}
}
