// Package metrics exposes Prometheus collectors for the semantic cache
// core: tier occupancy, decision outcomes, eviction/promotion activity,
// and ensemble/threshold training — grounded on the host application's
// promauto-based collector style.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "semcache"

var (
	// TierUsageBytes tracks current_usage per tier.
	TierUsageBytes = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "tier_usage_bytes",
			Help:      "Current byte usage of a storage tier",
		},
		[]string{"tier"},
	)

	// TierItemCount tracks member count per tier.
	TierItemCount = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "tier_item_count",
			Help:      "Number of items currently held in a storage tier",
		},
		[]string{"tier"},
	)

	// DecisionsTotal counts decide() outcomes by action.
	DecisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decisions_total",
			Help:      "Total decisions made, by action (hit/diff/new)",
		},
		[]string{"action"},
	)

	// DecisionLatencySeconds times the decide() call.
	DecisionLatencySeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "decision_latency_seconds",
			Help:      "Latency of the decision pipeline (vectorize+search excluded)",
			Buckets:   prometheus.DefBuckets,
		},
	)

	// EvictionsTotal counts items evicted to make room for an insert.
	EvictionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "evictions_total",
			Help:      "Total items evicted, by tier",
		},
		[]string{"tier"},
	)

	// PromotionsTotal and DemotionsTotal count tier moves.
	PromotionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{Namespace: namespace, Name: "promotions_total", Help: "Total tier promotions"},
	)
	DemotionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{Namespace: namespace, Name: "demotions_total", Help: "Total tier demotions"},
	)

	// EnsembleMSE and EnsembleAccuracy publish the last Evaluate() result.
	EnsembleMSE = promauto.NewGauge(
		prometheus.GaugeOpts{Namespace: namespace, Name: "ensemble_mse", Help: "Mean squared error over the buffered training samples"},
	)
	EnsembleAccuracy = promauto.NewGauge(
		prometheus.GaugeOpts{Namespace: namespace, Name: "ensemble_accuracy", Help: "Fraction of buffered samples predicted within 0.1 of ground truth"},
	)

	// ThresholdHitCut and ThresholdDiffCut publish the live adaptive
	// threshold pair.
	ThresholdHitCut = promauto.NewGauge(
		prometheus.GaugeOpts{Namespace: namespace, Name: "threshold_hit_cut", Help: "Current hit_cut value"},
	)
	ThresholdDiffCut = promauto.NewGauge(
		prometheus.GaugeOpts{Namespace: namespace, Name: "threshold_diff_cut", Help: "Current diff_cut value"},
	)

	// PrefetchPredictionsTotal counts predictions issued by the prefetcher.
	PrefetchPredictionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{Namespace: namespace, Name: "prefetch_predictions_total", Help: "Total prefetch predictions issued"},
	)
)
