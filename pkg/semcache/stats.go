package semcache

import (
	"time"

	"github.com/blueberrycongee/semcache/internal/cachemodel"
	"github.com/blueberrycongee/semcache/internal/metrics"
)

// Stats is the aggregated counters §4.10's statistics() returns.
type Stats struct {
	Hits, Diffs, Misses, Errors, Lookups int64
	HitRate                              float64
	AvgLatency                           time.Duration
	TierUsage                            map[cachemodel.Tier]int64
	TierCount                            map[cachemodel.Tier]int
	EnsembleMSE, EnsembleAccuracy         float64
	ThresholdHitCut, ThresholdDiffCut     float64
}

// Statistics reports aggregated counters across every component (§4.10).
// As a side effect it publishes the current snapshot to the Prometheus
// collectors so a scrape always reflects the latest call.
func (c *Cache) Statistics() Stats {
	hits := c.hits.Load()
	diffs := c.diffs.Load()
	misses := c.misses.Load()
	total := hits + diffs + misses

	var hitRate float64
	if total > 0 {
		hitRate = float64(hits+diffs) / float64(total)
	}

	var avgLatency time.Duration
	if n := c.latencyCount.Load(); n > 0 {
		avgLatency = time.Duration(c.latencySum.Load() / n)
	}

	usage := make(map[cachemodel.Tier]int64, 4)
	count := make(map[cachemodel.Tier]int, 4)
	for _, level := range cachemodel.Tiers {
		tier := c.store.Tier(level)
		usage[level] = tier.CurrentUsage()
		count[level] = tier.Len()
		metrics.TierUsageBytes.WithLabelValues(string(level)).Set(float64(usage[level]))
		metrics.TierItemCount.WithLabelValues(string(level)).Set(float64(count[level]))
	}

	mse, acc := c.engine.Ensemble.Evaluate()
	metrics.EnsembleMSE.Set(mse)
	metrics.EnsembleAccuracy.Set(acc)

	pair := c.engine.Threshold.Current()
	metrics.ThresholdHitCut.Set(pair.HitCut)
	metrics.ThresholdDiffCut.Set(pair.DiffCut)

	return Stats{
		Hits: hits, Diffs: diffs, Misses: misses,
		Errors: c.errors.Load(), Lookups: c.lookups.Load(),
		HitRate: hitRate, AvgLatency: avgLatency,
		TierUsage: usage, TierCount: count,
		EnsembleMSE: mse, EnsembleAccuracy: acc,
		ThresholdHitCut: pair.HitCut, ThresholdDiffCut: pair.DiffCut,
	}
}

// Severity classifies a health Issue.
type Severity string

const (
	Warn     Severity = "warn"
	Critical Severity = "critical"
)

// Issue is one health-check finding.
type Issue struct {
	Severity Severity
	Message  string
}

// Health is the §4.10 "health()" report: memory usage, hit rate, average
// latency, and a list of threshold-triggered issues.
type Health struct {
	MemoryUsage map[cachemodel.Tier]float64 // fraction of capacity, per tier
	HitRate     float64
	AvgLatency  time.Duration
	TotalOps    int64
	Issues      []Issue
}

// thresholds from §4.10: memory >0.90 warn / >0.95 critical; hit rate
// <0.5 after >100 requests warn; avg latency >100ms warn.
const (
	memoryWarnFraction     = 0.90
	memoryCriticalFraction = 0.95
	hitRateWarnFloor       = 0.5
	hitRateMinRequests     = 100
	latencyWarnThreshold   = 100 * time.Millisecond
)

// HealthReport computes the health snapshot. Background maintenance never
// fails externally (§7); any anomaly surfaces here instead.
func (c *Cache) HealthReport() Health {
	stats := c.Statistics()
	total := stats.Hits + stats.Diffs + stats.Misses

	h := Health{
		MemoryUsage: make(map[cachemodel.Tier]float64, 4),
		HitRate:     stats.HitRate,
		AvgLatency:  stats.AvgLatency,
		TotalOps:    total,
	}

	for _, level := range cachemodel.Tiers {
		tier := c.store.Tier(level)
		fraction := 0.0
		if tier.Capacity > 0 {
			fraction = float64(tier.CurrentUsage()) / float64(tier.Capacity)
		}
		h.MemoryUsage[level] = fraction

		switch {
		case fraction > memoryCriticalFraction:
			h.Issues = append(h.Issues, Issue{Critical, "tier " + string(level) + " memory usage above 0.95"})
		case fraction > memoryWarnFraction:
			h.Issues = append(h.Issues, Issue{Warn, "tier " + string(level) + " memory usage above 0.90"})
		}
	}

	if total > hitRateMinRequests && stats.HitRate < hitRateWarnFloor {
		h.Issues = append(h.Issues, Issue{Warn, "hit rate below 0.5 over more than 100 requests"})
	}
	if stats.AvgLatency > latencyWarnThreshold {
		h.Issues = append(h.Issues, Issue{Warn, "average request latency above 100ms"})
	}

	return h
}
