// Package prefetch implements the predictive prefetcher (C13): a
// sequence-transition table, access-pattern log, and popularity counter
// combine into a next-likely-items prediction.
package prefetch

import (
	"sync"
	"time"

	"github.com/blueberrycongee/semcache/internal/cachemodel"
)

// SequenceTable tracks observed A->B transition counts within the session
// window (§3).
type SequenceTable struct {
	mu          sync.RWMutex
	transitions map[string]map[string]int
}

// NewSequenceTable creates an empty table.
func NewSequenceTable() *SequenceTable {
	return &SequenceTable{transitions: make(map[string]map[string]int)}
}

// Record increments the A->B transition count.
func (t *SequenceTable) Record(a, b string) {
	if a == "" || b == "" || a == b {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	m, ok := t.transitions[a]
	if !ok {
		m = make(map[string]int)
		t.transitions[a] = m
	}
	m[b]++
}

// Probability returns count(a->b) / sum(count(a->*)) (§4.9).
func (t *SequenceTable) Probability(a, b string) float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	m, ok := t.transitions[a]
	if !ok {
		return 0
	}
	total := 0
	for _, c := range m {
		total += c
	}
	if total == 0 {
		return 0
	}
	return float64(m[b]) / float64(total)
}

// Candidates returns every item ever observed following a, used to build
// the candidate set before scoring probabilities.
func (t *SequenceTable) Candidates(a string) []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	m, ok := t.transitions[a]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(m))
	for id := range m {
		out = append(out, id)
	}
	return out
}

// accessLogCapacity is the ring buffer size for raw access events (§5).
const accessLogCapacity = 1000

// accessLog is a bounded ring buffer of cachemodel.AccessPattern events
// that drops the oldest entry on overflow.
type accessLog struct {
	mu      sync.Mutex
	entries []cachemodel.AccessPattern
}

func newAccessLog() *accessLog {
	return &accessLog{entries: make([]cachemodel.AccessPattern, 0, accessLogCapacity)}
}

func (l *accessLog) append(p cachemodel.AccessPattern) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, p)
	if len(l.entries) > accessLogCapacity {
		l.entries = l.entries[len(l.entries)-accessLogCapacity:]
	}
}

func (l *accessLog) snapshot() []cachemodel.AccessPattern {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]cachemodel.AccessPattern(nil), l.entries...)
}

// appendFollowing records that itemID was accessed after every still-open
// entry within the session window, so each such entry's FollowingItems
// ends up listing what actually came after it (§3, §4.9) rather than what
// came before.
func (l *accessLog) appendFollowing(itemID string, now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i := range l.entries {
		e := &l.entries[i]
		if e.ItemID == itemID {
			continue
		}
		if now.Sub(e.Timestamp) > cachemodel.SessionWindow {
			continue
		}
		if !contains(e.FollowingItems, itemID) {
			e.FollowingItems = append(e.FollowingItems, itemID)
		}
	}
}
